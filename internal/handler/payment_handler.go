package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/lol-chang/name2sign/internal/kakao"
	"github.com/lol-chang/name2sign/internal/middleware"
	"github.com/lol-chang/name2sign/internal/model"
	"github.com/lol-chang/name2sign/internal/payment"
	"github.com/lol-chang/name2sign/internal/token"
)

// PaymentCookieName は決済相関情報を保持するCookieの名前。
const PaymentCookieName = "payment_info"

// PaymentServiceInterface は決済ハンドラーが必要とするサービスインターフェース。
type PaymentServiceInterface interface {
	Prepare(ctx context.Context, partnerUserID, itemName string, quantity, totalAmount int) (*payment.PrepareResult, error)
	Confirm(ctx context.Context, correlation *token.Correlation, pgToken string) (*kakao.ApproveResponse, error)
}

// CorrelationVerifier は決済相関資格情報の検証インターフェース。
// token.Codecの部分集合として定義する。
type CorrelationVerifier interface {
	VerifyCorrelation(raw string) (*token.Correlation, error)
}

// PaymentHandlerConfig は決済ハンドラーの設定。
type PaymentHandlerConfig struct {
	BaseURL            string
	CookieDomain       string
	CookieSecure       bool
	CorrelationTTL     time.Duration // payment_info Cookieの有効期間
	AllowGuestCheckout bool          // 未ログインでの決済準備を許可するか
}

// PaymentHandler はカカオペイ決済関連のHTTPハンドラー。
type PaymentHandler struct {
	service     PaymentServiceInterface
	sessions    middleware.CredentialVerifier
	correlation CorrelationVerifier
	config      PaymentHandlerConfig
}

// NewPaymentHandler はPaymentHandlerを生成する。
func NewPaymentHandler(
	service PaymentServiceInterface,
	sessions middleware.CredentialVerifier,
	correlation CorrelationVerifier,
	config PaymentHandlerConfig,
) *PaymentHandler {
	return &PaymentHandler{
		service:     service,
		sessions:    sessions,
		correlation: correlation,
		config:      config,
	}
}

// prepareRequest は決済準備リクエストのボディ。
type prepareRequest struct {
	ItemName    string `json:"item_name"`
	Quantity    int    `json:"quantity"`
	TotalAmount int    `json:"total_amount"`
}

// prepareResponse は決済準備レスポンスのボディ。
type prepareResponse struct {
	NextRedirectPCURL string `json:"next_redirect_pc_url"`
	TID               string `json:"tid"`
	OrderID           string `json:"order_id"`
}

// Prepare は決済準備を実行し、payment_info Cookieを設定する。
// POST /api/payment/prepare
// ログイン済みならユーザーIDを、ALLOW_GUEST_CHECKOUT有効時のみ
// 未ログインでもゲストとして決済を許可する。
func (h *PaymentHandler) Prepare(w http.ResponseWriter, r *http.Request) {
	partnerUserID, ok := h.resolvePartnerUserID(r)
	if !ok {
		middleware.WriteAPIError(w, model.NewAuthenticationFailedError())
		return
	}

	var req prepareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteAPIError(w, model.NewInvalidRequestError("invalid JSON body"))
		return
	}
	if req.ItemName == "" {
		middleware.WriteAPIError(w, model.NewInvalidRequestError("item_name is required"))
		return
	}
	if req.Quantity < 1 {
		middleware.WriteAPIError(w, model.NewInvalidRequestError("quantity must be at least 1"))
		return
	}
	if req.TotalAmount < 1 {
		middleware.WriteAPIError(w, model.NewInvalidRequestError("total_amount must be positive"))
		return
	}

	result, err := h.service.Prepare(r.Context(), partnerUserID, req.ItemName, req.Quantity, req.TotalAmount)
	if err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) {
			middleware.WriteAPIError(w, apiErr)
			return
		}
		slog.Error("payment prepare failed", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	// 相関資格情報をHTTP Only Cookieで往復させる
	http.SetCookie(w, &http.Cookie{
		Name:     PaymentCookieName,
		Value:    result.Correlation,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   int(h.config.CorrelationTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(prepareResponse{
		NextRedirectPCURL: result.NextRedirectPC,
		TID:               result.TID,
		OrderID:           result.OrderID,
	})
}

// Success はゲートウェイからの成功コールバックを処理する。
// GET /payment/success?pg_token=xxx
// 承認の成否に関わらずpayment_info Cookieはクリアする。
func (h *PaymentHandler) Success(w http.ResponseWriter, r *http.Request) {
	correlation := h.correlationFromCookie(r)
	h.clearPaymentCookie(w)

	pgToken := r.URL.Query().Get("pg_token")
	if _, err := h.service.Confirm(r.Context(), correlation, pgToken); err != nil {
		slog.Warn("payment confirmation failed", slog.String("error", err.Error()))
		http.Redirect(w, r, h.config.BaseURL+"/?payment=fail", http.StatusTemporaryRedirect)
		return
	}

	http.Redirect(w, r, h.config.BaseURL+"/?payment=success", http.StatusTemporaryRedirect)
}

// Cancel はユーザーが決済画面でキャンセルした場合のコールバック。
// GET /payment/cancel
func (h *PaymentHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.clearPaymentCookie(w)
	http.Redirect(w, r, h.config.BaseURL+"/?payment=cancel", http.StatusTemporaryRedirect)
}

// Fail はゲートウェイ側で決済が失敗した場合のコールバック。
// GET /payment/fail
func (h *PaymentHandler) Fail(w http.ResponseWriter, r *http.Request) {
	h.clearPaymentCookie(w)
	http.Redirect(w, r, h.config.BaseURL+"/?payment=fail", http.StatusTemporaryRedirect)
}

// resolvePartnerUserID は決済主体を決定する。
// 有効なセッションがあればそのユーザーID、なければゲスト決済の可否に従う。
func (h *PaymentHandler) resolvePartnerUserID(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(middleware.SessionCookieName)
	if err == nil && cookie.Value != "" {
		if identity, err := h.sessions.VerifyIdentity(cookie.Value); err == nil {
			return identity.UserID, true
		}
	}
	if h.config.AllowGuestCheckout {
		return payment.GuestPartnerID, true
	}
	return "", false
}

// correlationFromCookie はpayment_info Cookieを寛容に検証する。
// 欠落や検証失敗はnilを返し、サービス層でPAYMENT_NOT_PREPAREDに落ちる。
func (h *PaymentHandler) correlationFromCookie(r *http.Request) *token.Correlation {
	cookie, err := r.Cookie(PaymentCookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}
	correlation, err := h.correlation.VerifyCorrelation(cookie.Value)
	if err != nil {
		slog.Warn("payment correlation rejected", slog.String("error", err.Error()))
		return nil
	}
	return correlation
}

func (h *PaymentHandler) clearPaymentCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     PaymentCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}
