package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// validConfig は検証を通る設定を返す。
func validConfig() Config {
	cfg := Default()
	cfg.Auth.Domain = "dev-coffee.eu.auth0.com"
	cfg.Auth.Audience = "coffee-shop"
	cfg.Auth.Algorithms = []string{"RS256"}
	return cfg
}

// envFrom はmapを環境変数の参照関数に変換する。
func envFrom(m map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

// TestDefault は既定値を検証する。
func TestDefault(t *testing.T) {
	t.Parallel()

	cfg := Default()
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 5*time.Second, cfg.Auth.FetchTimeout)
	assert.Equal(t, time.Duration(0), cfg.Auth.KeySetTTL, "既定では鍵セットをキャッシュしない")
	assert.Error(t, cfg.Validate(), "認可ゲートの必須項目には既定値がない")
}

// TestLoad は設定ファイルの読み込みを検証する。
func TestLoad(t *testing.T) {
	t.Run("YAMLファイルから読み込めること", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
port: "9090"
database_path: /tmp/drinks.db
log_level: debug
allowed_origins: ["http://localhost:8100"]
auth:
  domain: dev-coffee.eu.auth0.com
  audience: coffee-shop
  algorithms: [RS256]
  key_set_ttl: 10m
  fetch_timeout: 3s
`), 0o600))

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "9090", cfg.Port)
		assert.Equal(t, "/tmp/drinks.db", cfg.DatabasePath)
		assert.Equal(t, []string{"http://localhost:8100"}, cfg.AllowedOrigins)
		assert.Equal(t, "dev-coffee.eu.auth0.com", cfg.Auth.Domain)
		assert.Equal(t, 10*time.Minute, cfg.Auth.KeySetTTL)
		assert.Equal(t, 3*time.Second, cfg.Auth.FetchTimeout)
		assert.Equal(t, time.Minute, cfg.Auth.MinRefreshInterval, "未指定の項目は既定値のまま")
		assert.Equal(t, "https://dev-coffee.eu.auth0.com/", cfg.Auth.Issuer())
		assert.NoError(t, cfg.Validate())
	})

	t.Run("存在しないファイルはエラーになること", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.Error(t, err)
	})

	t.Run("不正なYAMLはエラーになること", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "broken.yaml")
		require.NoError(t, os.WriteFile(path, []byte("auth: [unterminated"), 0o600))
		_, err := Load(path)
		assert.Error(t, err)
	})

	t.Run("環境変数で上書きできること", func(t *testing.T) {
		t.Setenv("AUTH0_DOMAIN", "env.auth0.com")
		t.Setenv("API_AUDIENCE", "env-audience")
		t.Setenv("AUTH_ALGORITHMS", "RS256, RS512")
		t.Setenv("JWKS_CACHE_TTL", "30m")

		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, "env.auth0.com", cfg.Auth.Domain)
		assert.Equal(t, "env-audience", cfg.Auth.Audience)
		assert.Equal(t, []string{"RS256", "RS512"}, cfg.Auth.Algorithms)
		assert.Equal(t, 30*time.Minute, cfg.Auth.KeySetTTL)
	})
}

// TestApplyEnv は環境変数による上書きを検証する。
func TestApplyEnv(t *testing.T) {
	t.Parallel()

	t.Run("すべての項目を上書きできること", func(t *testing.T) {
		t.Parallel()

		cfg := Default()
		err := cfg.applyEnv(envFrom(map[string]string{
			"COFFEESHOP_PORT":            "7000",
			"COFFEESHOP_DATABASE_PATH":   ":memory:",
			"COFFEESHOP_LOG_LEVEL":       "warn",
			"COFFEESHOP_ALLOWED_ORIGINS": "*",
			"AUTH0_DOMAIN":               "d.auth0.com",
			"API_AUDIENCE":               "aud",
			"AUTH_ALGORITHMS":            "RS256",
			"JWKS_FETCH_TIMEOUT":         "4s",
			"JWKS_MIN_REFRESH_INTERVAL":  "30s",
			"AUTH_LEEWAY":                "2s",
		}))
		require.NoError(t, err)
		assert.Equal(t, "7000", cfg.Port)
		assert.Equal(t, ":memory:", cfg.DatabasePath)
		assert.Equal(t, "warn", cfg.LogLevel)
		assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
		assert.Equal(t, 4*time.Second, cfg.Auth.FetchTimeout)
		assert.Equal(t, 30*time.Second, cfg.Auth.MinRefreshInterval)
		assert.Equal(t, 2*time.Second, cfg.Auth.Leeway)
		assert.NoError(t, cfg.Validate())
	})

	t.Run("不正な期間はエラーになること", func(t *testing.T) {
		t.Parallel()

		cfg := Default()
		err := cfg.applyEnv(envFrom(map[string]string{"JWKS_CACHE_TTL": "ten minutes"}))
		assert.ErrorContains(t, err, "JWKS_CACHE_TTL")
	})
}

// TestValidate は設定値の検証を確認する。
func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "正しい設定", mutate: func(*Config) {}},
		{name: "ドメインなし", mutate: func(c *Config) { c.Auth.Domain = "" }, wantErr: "auth.domain"},
		{name: "ドメインにスキームを含む", mutate: func(c *Config) { c.Auth.Domain = "https://x.auth0.com/" }, wantErr: "auth.domain"},
		{name: "audienceなし", mutate: func(c *Config) { c.Auth.Audience = "" }, wantErr: "auth.audience"},
		{name: "アルゴリズムなし", mutate: func(c *Config) { c.Auth.Algorithms = nil }, wantErr: "auth.algorithms"},
		{name: "HS256は不可", mutate: func(c *Config) { c.Auth.Algorithms = []string{"HS256"} }, wantErr: "HS256"},
		{name: "負のTTL", mutate: func(c *Config) { c.Auth.KeySetTTL = -time.Second }, wantErr: "key_set_ttl"},
		{name: "タイムアウト0", mutate: func(c *Config) { c.Auth.FetchTimeout = 0 }, wantErr: "fetch_timeout"},
		{name: "タイムアウト過大", mutate: func(c *Config) { c.Auth.FetchTimeout = time.Minute }, wantErr: "fetch_timeout"},
		{name: "不正なログレベル", mutate: func(c *Config) { c.LogLevel = "verbose" }, wantErr: "log_level"},
		{name: "ポートなし", mutate: func(c *Config) { c.Port = "" }, wantErr: "port"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
