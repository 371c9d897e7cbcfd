package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/lol-chang/name2sign/internal/middleware"
	"github.com/lol-chang/name2sign/internal/model"
	"github.com/lol-chang/name2sign/internal/repository"
)

// SignatureHandler は署名設定レコードのHTTPハンドラー。
type SignatureHandler struct {
	signatures repository.SignatureRepository
}

// NewSignatureHandler はSignatureHandlerを生成する。
func NewSignatureHandler(signatures repository.SignatureRepository) *SignatureHandler {
	return &SignatureHandler{signatures: signatures}
}

// createSignatureRequest は署名作成リクエストのボディ。
type createSignatureRequest struct {
	FontStyle string `json:"font_style"`
	Color     string `json:"color"`
}

// signatureResponse は署名レコードのレスポンス表現。
type signatureResponse struct {
	ID        string    `json:"id"`
	FontStyle string    `json:"font_style"`
	Color     string    `json:"color"`
	CreatedAt time.Time `json:"created_at"`
}

// Create は呼び出しユーザーの署名設定を保存する。
// POST /api/signatures
func (h *SignatureHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity, err := middleware.IdentityFromContext(r.Context())
	if err != nil {
		middleware.WriteAPIError(w, model.NewAuthenticationFailedError())
		return
	}

	var req createSignatureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteAPIError(w, model.NewInvalidRequestError("invalid JSON body"))
		return
	}
	if req.FontStyle == "" {
		middleware.WriteAPIError(w, model.NewInvalidRequestError("font_style is required"))
		return
	}

	signature := &model.Signature{
		ID:        uuid.New().String(),
		UserID:    identity.UserID,
		FontStyle: req.FontStyle,
		Color:     req.Color,
		CreatedAt: time.Now(),
	}

	if err := h.signatures.Create(r.Context(), signature); err != nil {
		slog.Error("failed to create signature",
			slog.String("user_id", identity.UserID),
			slog.String("error", err.Error()),
		)
		middleware.WriteInternalServerError(w)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toSignatureResponse(signature))
}

// List は呼び出しユーザーの署名設定を新しい順で返す。
// GET /api/signatures
func (h *SignatureHandler) List(w http.ResponseWriter, r *http.Request) {
	identity, err := middleware.IdentityFromContext(r.Context())
	if err != nil {
		middleware.WriteAPIError(w, model.NewAuthenticationFailedError())
		return
	}

	signatures, err := h.signatures.ListByUserID(r.Context(), identity.UserID)
	if err != nil {
		slog.Error("failed to list signatures",
			slog.String("user_id", identity.UserID),
			slog.String("error", err.Error()),
		)
		middleware.WriteInternalServerError(w)
		return
	}

	responses := make([]signatureResponse, 0, len(signatures))
	for _, s := range signatures {
		responses = append(responses, toSignatureResponse(s))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(responses)
}

func toSignatureResponse(s *model.Signature) signatureResponse {
	return signatureResponse{
		ID:        s.ID,
		FontStyle: s.FontStyle,
		Color:     s.Color,
		CreatedAt: s.CreatedAt,
	}
}
