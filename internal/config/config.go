// Package config は環境変数からアプリケーション設定を読み込む。
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string `env:"DATABASE_URL,notEmpty"`

	// Redis（空の場合はウォレットチャレンジをメモリに保持する）
	RedisURL string `env:"REDIS_URL"`

	// OAuth
	GoogleClientID     string        `env:"GOOGLE_CLIENT_ID,notEmpty"`
	GoogleClientSecret string        `env:"GOOGLE_CLIENT_SECRET,notEmpty"`
	GoogleRedirectURL  string        `env:"GOOGLE_REDIRECT_URL,notEmpty"`
	OAuthTimeout       time.Duration `env:"OAUTH_TIMEOUT" envDefault:"10s"`

	// Token
	JWTSecret string        `env:"JWT_SECRET,notEmpty"`
	JWTTTL    time.Duration `env:"JWT_TTL" envDefault:"168h"`

	// Session（OAuth中間stateの署名用）
	SessionSecret string `env:"SESSION_SECRET,notEmpty"`

	// Store
	StoreTimeout time.Duration `env:"STORE_TIMEOUT" envDefault:"5s"`

	// Wallet
	WalletNonceTTL     time.Duration `env:"WALLET_NONCE_TTL" envDefault:"5m"`
	WalletRequireNonce bool          `env:"WALLET_REQUIRE_NONCE" envDefault:"false"`

	// Rate Limit（req/min/IP）
	LoginRatePerMin int `env:"LOGIN_RATE_PER_MIN" envDefault:"30"`

	// 転送ヘッダーを信用するリバースプロキシ（CIDRまたはIP、カンマ区切り）。空の場合は転送ヘッダーを無視する
	TrustedProxies []string `env:"TRUSTED_PROXIES" envSeparator:","`

	// Server
	ServerPort  string `env:"SERVER_PORT" envDefault:"5000"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`

	// Frontend（CORS許可オリジン、リダイレクト先）
	FrontendURL      string `env:"FRONTEND_URL,notEmpty"`
	LoginFailurePath string `env:"LOGIN_FAILURE_PATH" envDefault:"/login"`

	// Cookie
	CookieDomain string `env:"COOKIE_DOMAIN"`
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合は未設定の変数名をすべて含むエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("required environment variables are not set or invalid: %w", err)
	}

	cfg.FrontendURL = strings.TrimRight(cfg.FrontendURL, "/")
	if !strings.HasPrefix(cfg.LoginFailurePath, "/") {
		cfg.LoginFailurePath = "/" + cfg.LoginFailurePath
	}

	return cfg, nil
}

// IsProduction は本番環境で動作しているかを返す。
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// CookieSecure はCookieにSecure属性を付与するべきかを返す。
func (c *Config) CookieSecure() bool {
	return c.IsProduction() || strings.HasPrefix(c.FrontendURL, "https://")
}

// LoginFailureURL はOAuth失敗時のリダイレクト先URLを返す。
func (c *Config) LoginFailureURL() string {
	return c.FrontendURL + c.LoginFailurePath
}

// AuthSuccessURL はOAuth成功時のフロントエンド着地URLを返す。
func (c *Config) AuthSuccessURL() string {
	return c.FrontendURL + "/auth/success"
}

// ClientConfig はCLIクライアント（wallet-login, whoami, logout）の設定を保持する。
// サーバー用の必須設定とは独立して読み込む。
type ClientConfig struct {
	APIBaseURL       string        `env:"API_BASE_URL" envDefault:"http://localhost:5000"`
	WalletPrivateKey string        `env:"WALLET_PRIVATE_KEY"`
	SessionFile      string        `env:"SESSION_FILE"`
	RequestTimeout   time.Duration `env:"API_TIMEOUT" envDefault:"10s"`
}

// LoadClient は環境変数からClientConfigを読み込む。
func LoadClient() (*ClientConfig, error) {
	cfg := &ClientConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("invalid client environment variables: %w", err)
	}
	cfg.APIBaseURL = strings.TrimRight(cfg.APIBaseURL, "/")
	return cfg, nil
}
