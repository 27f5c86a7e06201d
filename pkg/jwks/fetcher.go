package jwks

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nao1215/coffeeshop/pkg/httpclient"
)

// WellKnownPath は鍵セットを公開する既定のパス。
const WellKnownPath = "/.well-known/jwks.json"

// ErrKeySetUnavailable は鍵セットを取得または解釈できなかったことを表す。
var ErrKeySetUnavailable = errors.New("鍵セットを取得できない")

// Source は鍵セットの取得元。
type Source interface {
	// Fetch は現在の鍵セットを取得する。
	Fetch(ctx context.Context) (KeySet, error)
}

// Fetcher は発行者ドメインの /.well-known/jwks.json から鍵セットを取得する。
type Fetcher struct {
	// client はJWKSエンドポイントを呼び出すHTTPクライアント。
	client *httpclient.Client
}

// FetcherOption はFetcherの生成オプション。
type FetcherOption func(*fetcherOptions)

type fetcherOptions struct {
	timeout    time.Duration
	httpClient *http.Client
}

// WithFetchTimeout は鍵セット取得のタイムアウトを設定する。
func WithFetchTimeout(d time.Duration) FetcherOption {
	return func(o *fetcherOptions) { o.timeout = d }
}

// WithHTTPClient は鍵セット取得に使うhttp.Clientを設定する。
func WithHTTPClient(hc *http.Client) FetcherOption {
	return func(o *fetcherOptions) { o.httpClient = hc }
}

// NewFetcher は発行者ドメイン（例: "dev-xxxx.eu.auth0.com"）用のFetcherを生成する。
func NewFetcher(domain string, opts ...FetcherOption) *Fetcher {
	o := fetcherOptions{timeout: httpclient.DefaultTimeout}
	for _, opt := range opts {
		opt(&o)
	}
	clientOpts := []httpclient.Option{httpclient.WithTimeout(o.timeout)}
	if o.httpClient != nil {
		clientOpts = append(clientOpts, httpclient.WithHTTPClient(o.httpClient))
	}
	return &Fetcher{client: httpclient.New("https://"+domain, clientOpts...)}
}

// URL は鍵セットの取得先URLを返す。
func (f *Fetcher) URL() string {
	return f.client.BaseURL() + WellKnownPath
}

// Fetch は鍵セットを取得する。通信失敗、2xx以外の応答、解釈できない応答、
// 空の鍵セットはいずれもErrKeySetUnavailableをラップしたエラーになる。
func (f *Fetcher) Fetch(ctx context.Context) (KeySet, error) {
	var set KeySet
	if err := f.client.GetJSON(ctx, WellKnownPath, &set); err != nil {
		return KeySet{}, fmt.Errorf("%w: %w", ErrKeySetUnavailable, err)
	}
	if len(set.Keys) == 0 {
		return KeySet{}, fmt.Errorf("%w: %s に鍵が含まれていない", ErrKeySetUnavailable, f.URL())
	}
	return set, nil
}
