// Package config はアプリケーション設定の読み込みを提供する。
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
// コンポーネントはこの構造体を注入で受け取り、グローバル状態は参照しない。
type Config struct {
	// Database
	DatabaseURL string

	// Kakao Login (OAuth)
	KakaoClientID     string
	KakaoClientSecret string
	KakaoRedirectURI  string

	// Kakao Pay
	KakaoAdminKey string
	KakaoPayCID   string

	// Session credential
	JWTSecretKey   string
	AccessTokenTTL time.Duration

	// Payment correlation cookie
	PaymentCookieTTL time.Duration

	// Kakao API呼び出しのタイムアウト。無制限の外部呼び出しは
	// リクエスト処理リソースを占有するため必ず上限を設ける。
	KakaoHTTPTimeout time.Duration

	// 未ログインでの決済準備を許可するか（partner_user_id="GUEST"）。
	AllowGuestCheckout bool

	// Server
	ServerPort string
	BaseURL    string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.KakaoClientID = os.Getenv("KAKAO_CLIENT_ID")
	if cfg.KakaoClientID == "" {
		missing = append(missing, "KAKAO_CLIENT_ID")
	}

	cfg.KakaoClientSecret = os.Getenv("KAKAO_CLIENT_SECRET")
	if cfg.KakaoClientSecret == "" {
		missing = append(missing, "KAKAO_CLIENT_SECRET")
	}

	cfg.KakaoRedirectURI = os.Getenv("KAKAO_REDIRECT_URI")
	if cfg.KakaoRedirectURI == "" {
		missing = append(missing, "KAKAO_REDIRECT_URI")
	}

	cfg.KakaoAdminKey = os.Getenv("KAKAO_ADMIN_KEY")
	if cfg.KakaoAdminKey == "" {
		missing = append(missing, "KAKAO_ADMIN_KEY")
	}

	cfg.JWTSecretKey = os.Getenv("JWT_SECRET_KEY")
	if cfg.JWTSecretKey == "" {
		missing = append(missing, "JWT_SECRET_KEY")
	}

	cfg.BaseURL = os.Getenv("BASE_URL")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.KakaoPayCID = getEnvString("KAKAO_PAY_CID", "TC0ONETIME")
	cfg.AccessTokenTTL = time.Duration(getEnvInt("ACCESS_TOKEN_EXPIRE_MINUTES", 120)) * time.Minute
	cfg.PaymentCookieTTL = time.Duration(getEnvInt("PAYMENT_COOKIE_TTL_MINUTES", 30)) * time.Minute
	cfg.KakaoHTTPTimeout = getEnvDuration("KAKAO_HTTP_TIMEOUT", 5*time.Second)
	cfg.AllowGuestCheckout = getEnvBool("ALLOW_GUEST_CHECKOUT", false)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
