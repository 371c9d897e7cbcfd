// Package auth はカカオログインの認証フローとセッション資格情報の発行を提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lol-chang/name2sign/internal/kakao"
	"github.com/lol-chang/name2sign/internal/model"
	"github.com/lol-chang/name2sign/internal/repository"
	"github.com/lol-chang/name2sign/internal/token"
)

// Provider は外部IdP（カカオ）のインターフェース。
type Provider interface {
	// AuthorizeURL は認可エンドポイントのURLを生成する。
	AuthorizeURL() string
	// ExchangeCode は認可コードをアクセストークンに交換する。
	ExchangeCode(ctx context.Context, code string) (*kakao.Token, error)
	// FetchProfile はアクセストークンでプロフィールを取得する。
	FetchProfile(ctx context.Context, accessToken string) (*kakao.Profile, error)
	// Logout はIdP側のセッションを破棄する（ベストエフォート）。
	Logout(ctx context.Context, kakaoID string) error
	// Unlink はIdPとの連結を解除する（ベストエフォート）。
	Unlink(ctx context.Context, kakaoID string) error
}

// CredentialIssuer はセッション資格情報の発行インターフェース。
// token.Codecの部分集合として定義する。
type CredentialIssuer interface {
	IssueIdentity(identity token.Identity, ttl time.Duration) (string, error)
}

// MetricsRecorder はログイン結果の記録インターフェース。
type MetricsRecorder interface {
	RecordLoginSuccess(created bool)
	RecordLoginFailure(reason string)
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	CredentialTTL time.Duration // セッション資格情報の有効期間
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	provider Provider
	users    repository.UserRepository
	issuer   CredentialIssuer
	config   ServiceConfig
	metrics  MetricsRecorder
}

// NewService はServiceを生成する。metricsはnil可。
func NewService(
	provider Provider,
	users repository.UserRepository,
	issuer CredentialIssuer,
	config ServiceConfig,
	metrics MetricsRecorder,
) *Service {
	return &Service{
		provider: provider,
		users:    users,
		issuer:   issuer,
		config:   config,
		metrics:  metrics,
	}
}

// LoginURL はカカオ認可エンドポイントのURLを返す。
func (s *Service) LoginURL() string {
	return s.provider.AuthorizeURL()
}

// HandleCallback はOAuthコールバックを処理し、セッション資格情報を発行する。
// 未登録ユーザーは自動作成し、登録済みユーザーはプロフィールを部分更新する。
func (s *Service) HandleCallback(ctx context.Context, code string) (string, *model.User, error) {
	// 1. 認可コードをアクセストークンに交換
	tok, err := s.provider.ExchangeCode(ctx, code)
	if err != nil {
		slog.Error("oauth code exchange failed", slog.String("error", err.Error()))
		s.recordLoginFailure("exchange")
		return "", nil, model.NewOAuthExchangeFailedError()
	}

	// 2. アクセストークンでプロフィールを取得
	profile, err := s.provider.FetchProfile(ctx, tok.AccessToken)
	if err != nil {
		slog.Error("profile fetch failed", slog.String("error", err.Error()))
		s.recordLoginFailure("profile")
		return "", nil, model.NewProfileFetchFailedError()
	}

	// 3. ユーザーのfind-or-create + プロフィール部分更新
	user, created, err := s.findOrCreateUser(ctx, profile)
	if err != nil {
		s.recordLoginFailure("directory")
		return "", nil, fmt.Errorf("failed to find or create user: %w", err)
	}

	// 4. セッション資格情報を発行
	credential, err := s.issuer.IssueIdentity(token.Identity{
		UserID:       user.ID,
		KakaoID:      user.KakaoID,
		Email:        user.Email,
		Nickname:     user.Nickname,
		ProfileImage: user.ProfileImage,
	}, s.config.CredentialTTL)
	if err != nil {
		s.recordLoginFailure("issue")
		return "", nil, fmt.Errorf("failed to issue credential: %w", err)
	}

	if created {
		slog.Info("new user created",
			slog.String("user_id", user.ID),
			slog.String("kakao_id", user.KakaoID),
		)
	} else {
		slog.Info("existing user logged in",
			slog.String("user_id", user.ID),
		)
	}
	if s.metrics != nil {
		s.metrics.RecordLoginSuccess(created)
	}

	return credential, user, nil
}

// findOrCreateUser はkakao_idでユーザーを検索し、なければ作成する。
// 既存ユーザーのプロフィールは非空のフィールドのみ上書きする。
// 同時初回ログインの競合（DuplicateIdentity）は再検索して処理を継続する。
func (s *Service) findOrCreateUser(ctx context.Context, profile *kakao.Profile) (*model.User, bool, error) {
	user, err := s.users.FindByKakaoID(ctx, profile.KakaoID)
	if err != nil {
		return nil, false, err
	}

	if user == nil {
		now := time.Now()
		newUser := &model.User{
			ID:           uuid.New().String(),
			KakaoID:      profile.KakaoID,
			Email:        profile.Email,
			Nickname:     profile.Nickname,
			ProfileImage: profile.ProfileImage,
			IsActive:     true,
			CreatedAt:    now,
			UpdatedAt:    now,
		}

		err := s.users.Create(ctx, newUser)
		if err == nil {
			return newUser, true, nil
		}
		if !errors.Is(err, model.ErrDuplicateIdentity) {
			return nil, false, err
		}

		// 競合の敗者: 勝者が作成した行を再検索して続行する
		slog.Info("concurrent first login detected, refetching",
			slog.String("kakao_id", profile.KakaoID),
		)
		user, err = s.users.FindByKakaoID(ctx, profile.KakaoID)
		if err != nil {
			return nil, false, err
		}
		if user == nil {
			return nil, false, fmt.Errorf("user vanished after duplicate identity: %s", profile.KakaoID)
		}
	}

	// 部分更新: 空のフィールドは既存値を維持する
	if err := s.users.UpdateProfile(ctx, user.ID, profile.Email, profile.Nickname, profile.ProfileImage); err != nil {
		return nil, false, err
	}
	applyProfile(user, profile)

	return user, false, nil
}

// applyProfile はリポジトリの部分更新と同じ規則でメモリ上のUserを更新する。
func applyProfile(user *model.User, profile *kakao.Profile) {
	if profile.Email != "" {
		user.Email = profile.Email
	}
	if profile.Nickname != "" {
		user.Nickname = profile.Nickname
	}
	if profile.ProfileImage != "" {
		user.ProfileImage = profile.ProfileImage
	}
}

// Logout はIdP側のログアウトをベストエフォートで実行する。
// 失敗はログに記録して握りつぶす。Cookieのクリアは呼び出し元の責務。
func (s *Service) Logout(ctx context.Context, identity *token.Identity) {
	if identity == nil {
		return
	}
	if err := s.provider.Logout(ctx, identity.KakaoID); err != nil {
		slog.Warn("provider logout failed (ignored)",
			slog.String("kakao_id", identity.KakaoID),
			slog.String("error", err.Error()),
		)
		return
	}
	slog.Info("user logged out", slog.String("user_id", identity.UserID))
}

// Withdraw は退会処理を実行する。
// IdPとの連結解除はベストエフォートで、失敗しても行削除は続行する。
// ユーザーが存在しない場合はmodel.NewUserNotFoundError()を返す。
func (s *Service) Withdraw(ctx context.Context, identity *token.Identity) error {
	user, err := s.users.FindByID(ctx, identity.UserID)
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return model.NewUserNotFoundError()
	}

	// 1. カカオ連結解除（ベストエフォート）
	if err := s.provider.Unlink(ctx, user.KakaoID); err != nil {
		slog.Warn("provider unlink failed (ignored)",
			slog.String("kakao_id", user.KakaoID),
			slog.String("error", err.Error()),
		)
	}

	// 2. ユーザー行を削除（signaturesはCASCADE削除）
	found, err := s.users.DeleteByID(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if !found {
		// 並行リクエストが先に削除した場合。冪等に成功扱いとする。
		slog.Info("user already deleted", slog.String("user_id", user.ID))
	}

	slog.Info("user withdrawn", slog.String("user_id", user.ID))
	return nil
}

func (s *Service) recordLoginFailure(reason string) {
	if s.metrics != nil {
		s.metrics.RecordLoginFailure(reason)
	}
}
