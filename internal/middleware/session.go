// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/lol-chang/name2sign/internal/model"
	"github.com/lol-chang/name2sign/internal/token"
)

// SessionCookieName はセッション資格情報を保持するCookieの名前。
const SessionCookieName = "access_token"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// identityContextKey はリクエストコンテキストに認証済みアイデンティティを格納するためのキー。
var identityContextKey = contextKey("identity")

// CredentialVerifier はセッション資格情報の検証に必要なインターフェース。
// token.Codecの部分集合として定義する。
type CredentialVerifier interface {
	VerifyIdentity(raw string) (*token.Identity, error)
}

// NewSessionMiddleware はHTTP Only Cookieからセッション資格情報を読み取り、
// 署名と有効期限を検証するミドルウェアを返す。
// 認証済みアイデンティティをリクエストコンテキストに注入する。
// 未認証リクエストには401の統一エラーレスポンスを返す。
func NewSessionMiddleware(verifier CredentialVerifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// 1. Cookieから資格情報を取得
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				unauthorized(w)
				return
			}

			// 2. 資格情報の署名・有効期限を検証
			identity, err := verifier.VerifyIdentity(cookie.Value)
			if err != nil {
				slog.Warn("session credential rejected",
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
				unauthorized(w)
				return
			}

			// 3. 認証済みアイデンティティをコンテキストに注入
			ctx := ContextWithIdentity(r.Context(), identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	apiErr := model.NewAuthenticationFailedError()
	WriteErrorResponse(w, apiErr.Status, apiErr)
}

// IdentityFromContext はリクエストコンテキストから認証済みアイデンティティを取得する。
// セッションミドルウェアを通過したリクエストでのみ有効。
func IdentityFromContext(ctx context.Context) (*token.Identity, error) {
	identity, ok := ctx.Value(identityContextKey).(*token.Identity)
	if !ok || identity == nil {
		return nil, fmt.Errorf("identity not found in context")
	}
	return identity, nil
}

// ContextWithIdentity はコンテキストに認証済みアイデンティティを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithIdentity(ctx context.Context, identity *token.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}
