package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testPayload はテスト用のレスポンスペイロード。
type testPayload struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

// TestNew はNew関数でクライアントが正しく生成されることを検証する。
func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("既定のタイムアウトが設定されること", func(t *testing.T) {
		t.Parallel()

		client := New("https://issuer.example.com/")
		assert.Equal(t, "https://issuer.example.com", client.BaseURL())
		assert.Equal(t, DefaultTimeout, client.Timeout())
	})

	t.Run("WithTimeoutでタイムアウトを変更できること", func(t *testing.T) {
		t.Parallel()

		client := New("https://issuer.example.com", WithTimeout(3*time.Second))
		assert.Equal(t, 3*time.Second, client.Timeout())
	})

	t.Run("0以下のタイムアウトは無視されること", func(t *testing.T) {
		t.Parallel()

		client := New("https://issuer.example.com", WithTimeout(0))
		assert.Equal(t, DefaultTimeout, client.Timeout())
	})

	t.Run("差し替えたクライアントにタイムアウトが引き継がれること", func(t *testing.T) {
		t.Parallel()

		client := New("https://issuer.example.com", WithTimeout(4*time.Second), WithHTTPClient(&http.Client{}))
		assert.Equal(t, 4*time.Second, client.Timeout())
	})
}

// TestGetJSON はGetJSON関数を検証する。
func TestGetJSON(t *testing.T) {
	t.Parallel()

	t.Run("レスポンスをデシリアライズできること", func(t *testing.T) {
		t.Parallel()

		var gotPath, gotAccept string
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			gotAccept = r.Header.Get("Accept")
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(testPayload{Name: "keys", Value: 2})
		}))
		defer ts.Close()

		var result testPayload
		err := New(ts.URL).GetJSON(context.Background(), "/.well-known/jwks.json", &result)
		require.NoError(t, err)
		assert.Equal(t, "/.well-known/jwks.json", gotPath)
		assert.Equal(t, "application/json", gotAccept)
		assert.Equal(t, testPayload{Name: "keys", Value: 2}, result)
	})

	t.Run("2xx以外はStatusErrorを返すこと", func(t *testing.T) {
		t.Parallel()

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
		}))
		defer ts.Close()

		err := New(ts.URL).GetJSON(context.Background(), "/", &testPayload{})
		var statusErr *StatusError
		require.True(t, errors.As(err, &statusErr))
		assert.Equal(t, http.StatusServiceUnavailable, statusErr.StatusCode)
		assert.Contains(t, statusErr.Body, "unavailable")
	})

	t.Run("不正なJSONはエラーになること", func(t *testing.T) {
		t.Parallel()

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("<html>not json</html>"))
		}))
		defer ts.Close()

		err := New(ts.URL).GetJSON(context.Background(), "/", &testPayload{})
		assert.Error(t, err)
	})

	t.Run("タイムアウトを超えるとエラーになること", func(t *testing.T) {
		t.Parallel()

		release := make(chan struct{})
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}))
		defer ts.Close()
		defer close(release)

		err := New(ts.URL, WithTimeout(50*time.Millisecond)).GetJSON(context.Background(), "/", &testPayload{})
		assert.Error(t, err)
	})

	t.Run("キャンセル済みのコンテキストではエラーになること", func(t *testing.T) {
		t.Parallel()

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{}`))
		}))
		defer ts.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := New(ts.URL).GetJSON(ctx, "/", &testPayload{})
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("接続できない場合はエラーになること", func(t *testing.T) {
		t.Parallel()

		err := New("http://127.0.0.1:1").GetJSON(context.Background(), "/", &testPayload{})
		assert.Error(t, err)
	})
}
