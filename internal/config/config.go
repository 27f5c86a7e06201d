// Package config はcoffeeshopサーバーの設定を読み込む。
//
// YAML設定ファイル、環境変数、コマンドラインフラグの順に上書きする。
// 認可ゲートの発行者ドメイン、audience、署名アルゴリズムには既定値がなく、
// 起動時に必ず与える必要がある。
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// defaultPort はHTTPサーバーの既定のリッスンポート。
	defaultPort = "8080"
	// defaultDatabasePath はSQLiteデータベースファイルの既定パス。
	defaultDatabasePath = "coffeeshop.db"
	// defaultLogLevel は既定のログレベル。
	defaultLogLevel = "info"
	// defaultFetchTimeout は鍵セット取得の既定タイムアウト。
	defaultFetchTimeout = 5 * time.Second
	// maxFetchTimeout は鍵セット取得タイムアウトの上限。
	maxFetchTimeout = 30 * time.Second
	// defaultMinRefreshInterval は未知のkidによる鍵セット再取得の既定の最小間隔。
	defaultMinRefreshInterval = time.Minute
)

// supportedAlgorithms は認可ゲートが受け入れられる署名アルゴリズム。
var supportedAlgorithms = map[string]struct{}{
	"RS256": {},
	"RS384": {},
	"RS512": {},
}

// Config はサーバー全体の設定。
type Config struct {
	// Port はHTTPサーバーのリッスンポート。
	Port string `yaml:"port"`
	// DatabasePath はSQLiteデータベースのパス。":memory:"も指定できる。
	DatabasePath string `yaml:"database_path"`
	// LogLevel はログレベル（debug, info, warn, error）。
	LogLevel string `yaml:"log_level"`
	// AllowedOrigins はCORSで許可するオリジン。"*"ですべて許可する。
	AllowedOrigins []string `yaml:"allowed_origins"`
	// Auth は認可ゲートの設定。
	Auth AuthConfig `yaml:"auth"`
}

// AuthConfig は認可ゲートの設定。
type AuthConfig struct {
	// Domain はトークン発行者のドメイン（例: "dev-xxxx.eu.auth0.com"）。
	Domain string `yaml:"domain"`
	// Audience は期待するaudience。
	Audience string `yaml:"audience"`
	// Algorithms は受け入れる署名アルゴリズム。
	Algorithms []string `yaml:"algorithms"`
	// KeySetTTL は鍵セットのキャッシュ期間。0なら検証ごとに取得する。
	KeySetTTL time.Duration `yaml:"key_set_ttl"`
	// FetchTimeout は鍵セット取得のタイムアウト。
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
	// MinRefreshInterval は未知のkidを受け取ったときに鍵セットを取り直す最小間隔。
	MinRefreshInterval time.Duration `yaml:"min_refresh_interval"`
	// Leeway は有効期限の比較で許容する時計のずれ。
	Leeway time.Duration `yaml:"leeway"`
}

// Issuer は期待するissuer（"https://<domain>/"）を返す。
func (a AuthConfig) Issuer() string {
	return "https://" + a.Domain + "/"
}

// Default は既定値を設定したConfigを返す。認可ゲートの必須項目は空のまま。
func Default() Config {
	return Config{
		Port:         defaultPort,
		DatabasePath: defaultDatabasePath,
		LogLevel:     defaultLogLevel,
		Auth: AuthConfig{
			FetchTimeout:       defaultFetchTimeout,
			MinRefreshInterval: defaultMinRefreshInterval,
		},
	}
}

// Load は設定ファイル（pathが空なら読まない）と環境変数から設定を読み込む。
// フラグによる上書きがあるため、検証は呼び出し側がValidateで行う。
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("設定ファイルの読み込みに失敗: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("設定ファイルの解析に失敗: %w", err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv は環境変数で設定を上書きする。
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	setString := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	setList := func(key string, dst *[]string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = splitList(v)
		}
	}
	setDuration := func(key string, dst *time.Duration) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("環境変数 %s の値が不正: %w", key, err)
		}
		*dst = d
		return nil
	}

	setString("COFFEESHOP_PORT", &c.Port)
	setString("COFFEESHOP_DATABASE_PATH", &c.DatabasePath)
	setString("COFFEESHOP_LOG_LEVEL", &c.LogLevel)
	setList("COFFEESHOP_ALLOWED_ORIGINS", &c.AllowedOrigins)
	setString("AUTH0_DOMAIN", &c.Auth.Domain)
	setString("API_AUDIENCE", &c.Auth.Audience)
	setList("AUTH_ALGORITHMS", &c.Auth.Algorithms)

	return errors.Join(
		setDuration("JWKS_CACHE_TTL", &c.Auth.KeySetTTL),
		setDuration("JWKS_FETCH_TIMEOUT", &c.Auth.FetchTimeout),
		setDuration("JWKS_MIN_REFRESH_INTERVAL", &c.Auth.MinRefreshInterval),
		setDuration("AUTH_LEEWAY", &c.Auth.Leeway),
	)
}

// Validate は設定値を検証する。
func (c Config) Validate() error {
	var errs []error
	if c.Port == "" {
		errs = append(errs, errors.New("portが指定されていない"))
	}
	if c.DatabasePath == "" {
		errs = append(errs, errors.New("database_pathが指定されていない"))
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log_levelが不正: %q", c.LogLevel))
	}
	if err := c.Auth.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Validate は認可ゲートの設定を検証する。
func (a AuthConfig) Validate() error {
	var errs []error
	if a.Domain == "" {
		errs = append(errs, errors.New("auth.domainが指定されていない"))
	} else if strings.Contains(a.Domain, "/") {
		errs = append(errs, fmt.Errorf("auth.domainにはスキームやパスを含めない: %q", a.Domain))
	}
	if a.Audience == "" {
		errs = append(errs, errors.New("auth.audienceが指定されていない"))
	}
	if len(a.Algorithms) == 0 {
		errs = append(errs, errors.New("auth.algorithmsが指定されていない"))
	}
	for _, alg := range a.Algorithms {
		if _, ok := supportedAlgorithms[alg]; !ok {
			errs = append(errs, fmt.Errorf("auth.algorithmsに対応していない値: %q", alg))
		}
	}
	if a.KeySetTTL < 0 {
		errs = append(errs, errors.New("auth.key_set_ttlは0以上"))
	}
	if a.FetchTimeout <= 0 || a.FetchTimeout > maxFetchTimeout {
		errs = append(errs, fmt.Errorf("auth.fetch_timeoutは0より大きく%v以下", maxFetchTimeout))
	}
	if a.MinRefreshInterval < 0 {
		errs = append(errs, errors.New("auth.min_refresh_intervalは0以上"))
	}
	if a.Leeway < 0 {
		errs = append(errs, errors.New("auth.leewayは0以上"))
	}
	return errors.Join(errs...)
}

// splitList はカンマ区切りの文字列を空要素を除いて分割する。
func splitList(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
