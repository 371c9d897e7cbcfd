// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/lol-chang/name2sign/internal/middleware"
	"github.com/lol-chang/name2sign/internal/model"
	"github.com/lol-chang/name2sign/internal/token"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	LoginURL() string
	HandleCallback(ctx context.Context, code string) (string, *model.User, error)
	Logout(ctx context.Context, identity *token.Identity)
	Withdraw(ctx context.Context, identity *token.Identity) error
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	BaseURL      string
	CookieDomain string
	CookieSecure bool
	SessionTTL   time.Duration // access_token Cookieの有効期間
}

// AuthHandler はカカオログイン関連のHTTPハンドラー。
type AuthHandler struct {
	service  AuthServiceInterface
	verifier middleware.CredentialVerifier
	config   AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, verifier middleware.CredentialVerifier, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service:  service,
		verifier: verifier,
		config:   config,
	}
}

// Login はカカオログインフローを開始する。
// GET /login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, h.service.LoginURL(), http.StatusTemporaryRedirect)
}

// Callback はOAuthコールバックを処理する。
// GET /callback?code=xxx
// 成功時はaccess_token Cookieを設定して/profileへリダイレクトする。
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		// ユーザーが認可を拒否した場合もここに入る
		slog.Warn("callback without authorization code",
			slog.String("error_param", r.URL.Query().Get("error")),
		)
		http.Redirect(w, r, h.config.BaseURL+"/?error=login_failed", http.StatusTemporaryRedirect)
		return
	}

	credential, user, err := h.service.HandleCallback(r.Context(), code)
	if err != nil {
		slog.Error("login callback failed", slog.String("error", err.Error()))
		http.Redirect(w, r, h.config.BaseURL+"/?error=login_failed", http.StatusTemporaryRedirect)
		return
	}

	h.setSessionCookie(w, credential)

	slog.Info("session established", slog.String("user_id", user.ID))
	http.Redirect(w, r, h.config.BaseURL+"/profile", http.StatusTemporaryRedirect)
}

// Profile は現在のログインユーザー情報を返す（ブラウザ系）。
// GET /profile
// 資格情報が無効な場合はJSONエラーではなくトップへリダイレクトする。
func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	identity := h.identityFromCookie(r)
	if identity == nil {
		http.Redirect(w, r, h.config.BaseURL+"/", http.StatusTemporaryRedirect)
		return
	}
	writeIdentityJSON(w, identity)
}

// APIUser は現在のログインユーザー情報を返す（API系）。
// GET /api/user
// セッションミドルウェアの通過を前提とする。
func (h *AuthHandler) APIUser(w http.ResponseWriter, r *http.Request) {
	identity, err := middleware.IdentityFromContext(r.Context())
	if err != nil {
		middleware.WriteAPIError(w, model.NewAuthenticationFailedError())
		return
	}
	writeIdentityJSON(w, identity)
}

// Logout はセッションを破棄する。
// POST /logout
// 資格情報が無効でもCookieはクリアしてトップへリダイレクトする。
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if identity := h.identityFromCookie(r); identity != nil {
		h.service.Logout(r.Context(), identity)
	}

	h.clearSessionCookie(w)
	http.Redirect(w, r, h.config.BaseURL+"/", http.StatusTemporaryRedirect)
}

// DeleteAccount は退会処理を実行する。
// POST /delete-account
// セッションミドルウェアの通過を前提とする。
func (h *AuthHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	identity, err := middleware.IdentityFromContext(r.Context())
	if err != nil {
		middleware.WriteAPIError(w, model.NewAuthenticationFailedError())
		return
	}

	if err := h.service.Withdraw(r.Context(), identity); err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) {
			h.clearSessionCookie(w)
			middleware.WriteAPIError(w, apiErr)
			return
		}
		slog.Error("withdraw failed", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	h.clearSessionCookie(w)
	http.Redirect(w, r, h.config.BaseURL+"/", http.StatusSeeOther)
}

// identityFromCookie はaccess_token Cookieを寛容に検証する。
// Cookieの欠落や検証失敗はnilを返し、エラーレスポンスは書かない。
func (h *AuthHandler) identityFromCookie(r *http.Request) *token.Identity {
	cookie, err := r.Cookie(middleware.SessionCookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}
	identity, err := h.verifier.VerifyIdentity(cookie.Value)
	if err != nil {
		return nil
	}
	return identity
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, credential string) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    credential,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   int(h.config.SessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func writeIdentityJSON(w http.ResponseWriter, identity *token.Identity) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"user_id":       identity.UserID,
		"kakao_id":      identity.KakaoID,
		"email":         identity.Email,
		"nickname":      identity.Nickname,
		"profile_image": identity.ProfileImage,
	})
}
