package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lol-chang/name2sign/internal/middleware"
	"github.com/lol-chang/name2sign/internal/repository"
)

// HealthChecker はヘルスチェックに必要なインターフェース。
// *sql.DBがそのまま満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Verifier          middleware.CredentialVerifier
	CORSAllowedOrigin string
	CSRFConfig        middleware.CSRFConfig
	Logger            *slog.Logger
	StatusRecorder    middleware.StatusRecorder
	MetricsHandler    http.Handler

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// 決済
	PaymentService      PaymentServiceInterface
	CorrelationVerifier CorrelationVerifier
	PaymentConfig       PaymentHandlerConfig

	// 署名
	Signatures repository.SignatureRepository

	// ヘルスチェック
	Health HealthChecker
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Logging
//
// ブラウザ系ルート（/login, /callback, /payment/*など）はセッション
// ミドルウェアの外に置き、ハンドラー側で寛容に資格情報を扱う。
// /api/*はCSRF検証とセッション検証の内側に置く。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger, deps.StatusRecorder))

	authHandler := NewAuthHandler(deps.AuthService, deps.Verifier, deps.AuthConfig)
	paymentHandler := NewPaymentHandler(deps.PaymentService, deps.Verifier, deps.CorrelationVerifier, deps.PaymentConfig)
	signatureHandler := NewSignatureHandler(deps.Signatures)

	// --- ブラウザ系ルート ---

	r.Get("/login", authHandler.Login)
	r.Get("/callback", authHandler.Callback)
	r.Get("/profile", authHandler.Profile)
	r.Post("/logout", authHandler.Logout)

	r.Route("/payment", func(r chi.Router) {
		r.Get("/success", paymentHandler.Success)
		r.Get("/cancel", paymentHandler.Cancel)
		r.Get("/fail", paymentHandler.Fail)
	})

	// --- API系ルート ---
	// CSRF検証は状態変更メソッドにのみ効く

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))

		r.Method(http.MethodGet, "/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))

		// 決済準備はゲスト決済を許可しうるため、
		// セッションミドルウェアではなくハンドラー側で認証を解決する
		r.Post("/payment/prepare", paymentHandler.Prepare)

		r.Group(func(r chi.Router) {
			r.Use(middleware.NewSessionMiddleware(deps.Verifier))

			r.Get("/user", authHandler.APIUser)
			r.Route("/signatures", func(r chi.Router) {
				r.Post("/", signatureHandler.Create)
				r.Get("/", signatureHandler.List)
			})
		})
	})

	// 退会はセッション必須の状態変更だがブラウザのフォーム送信も受ける
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.Verifier))
		r.Post("/delete-account", authHandler.DeleteAccount)
	})

	// --- 運用系ルート ---

	r.Get("/healthz", newHealthzHandler(deps.Health))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	return r
}

// newHealthzHandler はDB接続を確認するヘルスチェックハンドラーを返す。
func newHealthzHandler(health HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		status := "ok"
		code := http.StatusOK
		if health != nil {
			if err := health.PingContext(ctx); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				status = "database unreachable"
				code = http.StatusServiceUnavailable
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(map[string]string{"status": status})
	}
}
