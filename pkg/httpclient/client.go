package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultTimeout はリクエスト1件あたりの既定タイムアウト。
const DefaultTimeout = 5 * time.Second

// maxErrorBody はエラー時にメッセージへ含めるレスポンスボディの最大バイト数。
const maxErrorBody = 512

// userAgent はすべてのリクエストに付与するUser-Agentヘッダー値。
const userAgent = "coffeeshop-httpclient/1.0"

// Client はJSON APIを呼び出すためのHTTPクライアント。
type Client struct {
	// httpClient は内部で使用するHTTPクライアント。
	httpClient *http.Client
	// baseURL は接続先のベースURL（例: "https://example.auth0.com"）。
	baseURL string
}

// Option はClientの設定を変更する関数。
type Option func(*Client)

// WithTimeout はリクエストのタイムアウトを設定する。0以下の値は無視する。
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithHTTPClient は内部で使用するhttp.Clientを差し替える。
// テストでTLSテストサーバーのクライアントを使う場合などに指定する。
// 差し替えたクライアントにタイムアウトが未設定の場合は既定値を適用する。
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc == nil {
			return
		}
		timeout := c.httpClient.Timeout
		copied := *hc
		if copied.Timeout == 0 {
			copied.Timeout = timeout
		}
		c.httpClient = &copied
	}
}

// New は新しいHTTPクライアントを生成する。
// baseURLの末尾のスラッシュは取り除く。
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL は接続先のベースURLを返す。
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Timeout はリクエストのタイムアウトを返す。
func (c *Client) Timeout() time.Duration {
	return c.httpClient.Timeout
}

// StatusError は上流が2xx以外のステータスを返したことを表す。
type StatusError struct {
	// URL はリクエスト先のURL。
	URL string
	// StatusCode は上流が返したHTTPステータスコード。
	StatusCode int
	// Body はレスポンスボディの先頭部分。
	Body string
}

// Error はエラーメッセージを返す。
func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTPエラー: url=%s, status=%d, body=%s", e.URL, e.StatusCode, e.Body)
}

// GetJSON は指定パスにGETリクエストを送信し、
// レスポンスボディをresultにデシリアライズする。
func (c *Client) GetJSON(ctx context.Context, path string, result any) error {
	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTPリクエストの送信に失敗: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{URL: url, StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("レスポンスボディのデシリアライズに失敗: %w", err)
		}
	}
	return nil
}
