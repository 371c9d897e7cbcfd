// Package payment はカカオペイ決済の準備・承認のオーケストレーションを提供する。
package payment

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/lol-chang/name2sign/internal/kakao"
	"github.com/lol-chang/name2sign/internal/model"
	"github.com/lol-chang/name2sign/internal/token"
)

// GuestPartnerID はゲスト決済時のpartner_user_id。
const GuestPartnerID = "GUEST"

// Gateway は決済ゲートウェイ（カカオペイ）のインターフェース。
type Gateway interface {
	Ready(ctx context.Context, req kakao.ReadyRequest) (*kakao.ReadyResponse, error)
	Approve(ctx context.Context, req kakao.ApproveRequest) (*kakao.ApproveResponse, error)
}

// CorrelationIssuer は決済相関資格情報の発行インターフェース。
type CorrelationIssuer interface {
	IssueCorrelation(correlation token.Correlation, ttl time.Duration) (string, error)
}

// PremiumSetter は承認成功後のプレミアム昇格インターフェース。
type PremiumSetter interface {
	SetPremium(ctx context.Context, id string) error
}

// MetricsRecorder は決済結果の記録インターフェース。
type MetricsRecorder interface {
	RecordPaymentPrepared()
	RecordPaymentApproved()
	RecordPaymentFailure(reason string)
}

// ServiceConfig は決済サービスの設定。
type ServiceConfig struct {
	BaseURL        string        // 承認・キャンセル・失敗コールバックの基点URL
	CorrelationTTL time.Duration // payment_info資格情報の有効期間
}

// Service は決済フローのビジネスロジックを提供する。
type Service struct {
	gateway Gateway
	issuer  CorrelationIssuer
	premium PremiumSetter
	config  ServiceConfig
	metrics MetricsRecorder

	// ULIDのエントロピーは単調増加を保証するため排他制御する
	entropyMu sync.Mutex
	entropy   *ulid.MonotonicEntropy

	now func() time.Time
}

// NewService はServiceを生成する。premiumとmetricsはnil可。
func NewService(
	gateway Gateway,
	issuer CorrelationIssuer,
	premium PremiumSetter,
	config ServiceConfig,
	metrics MetricsRecorder,
) *Service {
	return &Service{
		gateway: gateway,
		issuer:  issuer,
		premium: premium,
		config:  config,
		metrics: metrics,
		entropy: ulid.Monotonic(rand.Reader, 0),
		now:     time.Now,
	}
}

// newOrderID はULIDベースの注文IDを生成する。
// 同一ミリ秒内でも単調増加し、辞書順が生成順と一致する。
func (s *Service) newOrderID() (string, error) {
	s.entropyMu.Lock()
	defer s.entropyMu.Unlock()

	id, err := ulid.New(ulid.Timestamp(s.now().UTC()), s.entropy)
	if err != nil {
		return "", fmt.Errorf("failed to generate order id: %w", err)
	}
	return "ORDER_" + id.String(), nil
}

// PrepareResult は決済準備の結果。
type PrepareResult struct {
	TID                string // ゲートウェイの取引ID
	OrderID            string
	NextRedirectPC     string // PC向け決済画面URL
	NextRedirectMobile string
	Correlation        string // payment_info Cookieに格納する署名付き資格情報
}

// Prepare は決済準備（ready）を実行し、相関資格情報を発行する。
// partnerUserIDはログイン済みならユーザーID、ゲスト決済ならGuestPartnerID。
func (s *Service) Prepare(ctx context.Context, partnerUserID, itemName string, quantity, totalAmount int) (*PrepareResult, error) {
	orderID, err := s.newOrderID()
	if err != nil {
		return nil, err
	}

	res, err := s.gateway.Ready(ctx, kakao.ReadyRequest{
		OrderID:       orderID,
		PartnerUserID: partnerUserID,
		ItemName:      itemName,
		Quantity:      quantity,
		TotalAmount:   totalAmount,
		TaxFreeAmount: 0,
		ApprovalURL:   s.config.BaseURL + "/payment/success",
		CancelURL:     s.config.BaseURL + "/payment/cancel",
		FailURL:       s.config.BaseURL + "/payment/fail",
	})
	if err != nil {
		slog.Error("payment ready failed",
			slog.String("order_id", orderID),
			slog.String("error", err.Error()),
		)
		s.recordFailure("ready")
		return nil, model.NewPaymentReadyFailedError()
	}

	correlation, err := s.issuer.IssueCorrelation(token.Correlation{
		TID:           res.TID,
		OrderID:       orderID,
		PartnerUserID: partnerUserID,
	}, s.config.CorrelationTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to issue payment correlation: %w", err)
	}

	slog.Info("payment prepared",
		slog.String("order_id", orderID),
		slog.String("tid", res.TID),
		slog.String("partner_user_id", partnerUserID),
		slog.Int("amount", totalAmount),
	)
	if s.metrics != nil {
		s.metrics.RecordPaymentPrepared()
	}

	return &PrepareResult{
		TID:                res.TID,
		OrderID:            orderID,
		NextRedirectPC:     res.NextRedirectPCURL,
		NextRedirectMobile: res.NextRedirectMobileURL,
		Correlation:        correlation,
	}, nil
}

// Confirm は決済承認（approve）を実行する。
// 相関情報の欠落やpg_tokenの空はゲートウェイ呼び出しの前に失敗させる。
// 承認成功後、既知の購入者はプレミアムに昇格する（ベストエフォート）。
func (s *Service) Confirm(ctx context.Context, correlation *token.Correlation, pgToken string) (*kakao.ApproveResponse, error) {
	if correlation == nil || correlation.TID == "" || correlation.OrderID == "" {
		s.recordFailure("not_prepared")
		return nil, model.NewPaymentNotPreparedError()
	}
	if pgToken == "" {
		s.recordFailure("missing_pg_token")
		return nil, model.NewInvalidRequestError("pg_token is required")
	}

	res, err := s.gateway.Approve(ctx, kakao.ApproveRequest{
		TID:           correlation.TID,
		OrderID:       correlation.OrderID,
		PartnerUserID: correlation.PartnerUserID,
		PGToken:       pgToken,
	})
	if err != nil {
		slog.Error("payment approve failed",
			slog.String("order_id", correlation.OrderID),
			slog.String("tid", correlation.TID),
			slog.String("error", err.Error()),
		)
		s.recordFailure("approve")
		return nil, model.NewApprovalFailedError()
	}

	slog.Info("payment approved",
		slog.String("order_id", res.OrderID),
		slog.String("aid", res.AID),
		slog.Int("amount", res.Amount.Total),
	)
	if s.metrics != nil {
		s.metrics.RecordPaymentApproved()
	}

	// ゲスト購入者には昇格対象の行がない
	if s.premium != nil && correlation.PartnerUserID != GuestPartnerID {
		if err := s.premium.SetPremium(ctx, correlation.PartnerUserID); err != nil {
			slog.Warn("premium upgrade failed after approval (ignored)",
				slog.String("user_id", correlation.PartnerUserID),
				slog.String("error", err.Error()),
			)
		}
	}

	return res, nil
}

func (s *Service) recordFailure(reason string) {
	if s.metrics != nil {
		s.metrics.RecordPaymentFailure(reason)
	}
}
