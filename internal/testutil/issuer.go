// Package testutil はテスト用の認可サーバー（トークン発行者）を提供する。
//
// RSA鍵ペアを生成し、/.well-known/jwks.json を配信するTLSテストサーバーを起動する。
// 任意のクレーム、kid、署名方式でトークンを発行できる。
package testutil

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/nao1215/coffeeshop/pkg/jwks"
)

// DefaultAudience はテスト用発行者が使うaudience。
const DefaultAudience = "coffee-shop"

// DefaultKeyID はテスト用発行者が署名に使う鍵のkid。
const DefaultKeyID = "test-key-1"

// Issuer はテスト用のトークン発行者。
type Issuer struct {
	// Server は鍵セットを配信するTLSテストサーバー。
	Server *httptest.Server
	// Domain はスキームを除いた発行者ドメイン（host:port）。
	Domain string
	// Audience は発行するトークンのaudience。
	Audience string
	// Key は署名に使うRSA秘密鍵。
	Key *rsa.PrivateKey
	// KeyID は署名に使う鍵のkid。
	KeyID string

	fetches atomic.Int32

	mu         sync.Mutex
	keySet     jwks.KeySet
	statusCode int
}

// NewIssuer はテスト用の発行者を生成し、テスト終了時にサーバーを停止する。
func NewIssuer(t testing.TB) *Issuer {
	t.Helper()

	key := NewRSAKey(t)
	iss := &Issuer{
		Audience:   DefaultAudience,
		Key:        key,
		KeyID:      DefaultKeyID,
		keySet:     jwks.KeySet{Keys: []jwks.KeyDescriptor{jwks.FromRSAPublicKey(DefaultKeyID, &key.PublicKey)}},
		statusCode: http.StatusOK,
	}

	mux := http.NewServeMux()
	mux.HandleFunc(jwks.WellKnownPath, iss.serveKeySet)
	iss.Server = httptest.NewTLSServer(mux)
	iss.Domain = strings.TrimPrefix(iss.Server.URL, "https://")
	t.Cleanup(iss.Server.Close)

	return iss
}

// NewRSAKey はテスト用の2048ビットRSA鍵を生成する。
func NewRSAKey(t testing.TB) *rsa.PrivateKey {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("RSA鍵の生成に失敗: %v", err)
	}
	return key
}

// IssuerURL は発行するトークンのissuer（"https://<domain>/"）を返す。
func (i *Issuer) IssuerURL() string {
	return "https://" + i.Domain + "/"
}

// Client は発行者のTLS証明書を信頼するHTTPクライアントを返す。
func (i *Issuer) Client() *http.Client {
	return i.Server.Client()
}

// Fetcher は発行者の鍵セットを取得するFetcherを返す。
func (i *Issuer) Fetcher() *jwks.Fetcher {
	return jwks.NewFetcher(i.Domain, jwks.WithHTTPClient(i.Client()))
}

// Fetches は鍵セットが取得された回数を返す。
func (i *Issuer) Fetches() int {
	return int(i.fetches.Load())
}

// SetKeySet は配信する鍵セットを差し替える。
func (i *Issuer) SetKeySet(set jwks.KeySet) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.keySet = set
}

// SetStatus は鍵セット配信時のステータスコードを設定する。
// 200以外を設定すると鍵セットの代わりにエラー応答を返す。
func (i *Issuer) SetStatus(code int) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.statusCode = code
}

// serveKeySet は鍵セットを配信するハンドラ。
func (i *Issuer) serveKeySet(w http.ResponseWriter, _ *http.Request) {
	i.fetches.Add(1)

	i.mu.Lock()
	set, code := i.keySet, i.statusCode
	i.mu.Unlock()

	if code != http.StatusOK {
		http.Error(w, http.StatusText(code), code)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(set)
}

// Claims は正常なトークン用の基本クレームを返す。permissionsを含み、1時間後に失効する。
func (i *Issuer) Claims(permissions ...string) jwt.MapClaims {
	now := time.Now()
	perms := make([]any, 0, len(permissions))
	for _, p := range permissions {
		perms = append(perms, p)
	}
	return jwt.MapClaims{
		"iss":         i.IssuerURL(),
		"sub":         "auth0|barista",
		"aud":         i.Audience,
		"iat":         now.Unix(),
		"exp":         now.Add(time.Hour).Unix(),
		"permissions": perms,
	}
}

// Token は指定したpermissionsを持つ正常なトークンを発行する。
func (i *Issuer) Token(t testing.TB, permissions ...string) string {
	t.Helper()
	return i.Sign(t, i.Claims(permissions...))
}

// Sign は発行者の鍵でクレームにRS256署名する。
func (i *Issuer) Sign(t testing.TB, claims jwt.Claims) string {
	t.Helper()
	return SignWith(t, jwt.SigningMethodRS256, i.Key, i.KeyID, claims)
}

// SignWith は任意の署名方式、鍵、kidでクレームに署名する。kidが空の場合はヘッダーに含めない。
func SignWith(t testing.TB, method jwt.SigningMethod, key any, kid string, claims jwt.Claims) string {
	t.Helper()

	token := jwt.NewWithClaims(method, claims)
	if kid != "" {
		token.Header["kid"] = kid
	}
	signed, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("トークンの署名に失敗: %v", err)
	}
	return signed
}
