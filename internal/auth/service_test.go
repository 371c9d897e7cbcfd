package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lol-chang/name2sign/internal/kakao"
	"github.com/lol-chang/name2sign/internal/model"
	"github.com/lol-chang/name2sign/internal/token"
)

// mockProvider はProviderのモック実装。
type mockProvider struct {
	authorizeURLFunc func() string
	exchangeCodeFunc func(ctx context.Context, code string) (*kakao.Token, error)
	fetchProfileFunc func(ctx context.Context, accessToken string) (*kakao.Profile, error)
	logoutFunc       func(ctx context.Context, kakaoID string) error
	unlinkFunc       func(ctx context.Context, kakaoID string) error
}

func (m *mockProvider) AuthorizeURL() string {
	if m.authorizeURLFunc != nil {
		return m.authorizeURLFunc()
	}
	return "https://example.com/authorize"
}

func (m *mockProvider) ExchangeCode(ctx context.Context, code string) (*kakao.Token, error) {
	if m.exchangeCodeFunc != nil {
		return m.exchangeCodeFunc(ctx, code)
	}
	return &kakao.Token{AccessToken: "access-token"}, nil
}

func (m *mockProvider) FetchProfile(ctx context.Context, accessToken string) (*kakao.Profile, error) {
	if m.fetchProfileFunc != nil {
		return m.fetchProfileFunc(ctx, accessToken)
	}
	return &kakao.Profile{KakaoID: "12345"}, nil
}

func (m *mockProvider) Logout(ctx context.Context, kakaoID string) error {
	if m.logoutFunc != nil {
		return m.logoutFunc(ctx, kakaoID)
	}
	return nil
}

func (m *mockProvider) Unlink(ctx context.Context, kakaoID string) error {
	if m.unlinkFunc != nil {
		return m.unlinkFunc(ctx, kakaoID)
	}
	return nil
}

// mockUserRepo はrepository.UserRepositoryのモック実装。
type mockUserRepo struct {
	findByIDFunc      func(ctx context.Context, id string) (*model.User, error)
	findByKakaoIDFunc func(ctx context.Context, kakaoID string) (*model.User, error)
	createFunc        func(ctx context.Context, user *model.User) error
	updateProfileFunc func(ctx context.Context, id, email, nickname, profileImage string) error
	setPremiumFunc    func(ctx context.Context, id string) error
	deleteByIDFunc    func(ctx context.Context, id string) (bool, error)
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockUserRepo) FindByKakaoID(ctx context.Context, kakaoID string) (*model.User, error) {
	if m.findByKakaoIDFunc != nil {
		return m.findByKakaoIDFunc(ctx, kakaoID)
	}
	return nil, nil
}

func (m *mockUserRepo) Create(ctx context.Context, user *model.User) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, user)
	}
	return nil
}

func (m *mockUserRepo) UpdateProfile(ctx context.Context, id, email, nickname, profileImage string) error {
	if m.updateProfileFunc != nil {
		return m.updateProfileFunc(ctx, id, email, nickname, profileImage)
	}
	return nil
}

func (m *mockUserRepo) SetPremium(ctx context.Context, id string) error {
	if m.setPremiumFunc != nil {
		return m.setPremiumFunc(ctx, id)
	}
	return nil
}

func (m *mockUserRepo) DeleteByID(ctx context.Context, id string) (bool, error) {
	if m.deleteByIDFunc != nil {
		return m.deleteByIDFunc(ctx, id)
	}
	return true, nil
}

func newTestService(provider *mockProvider, repo *mockUserRepo) *Service {
	return NewService(provider, repo, token.NewCodec("test-secret-key"), ServiceConfig{
		CredentialTTL: 30 * time.Minute,
	}, nil)
}

func TestService_LoginURL(t *testing.T) {
	provider := &mockProvider{
		authorizeURLFunc: func() string {
			return "https://kauth.kakao.com/oauth/authorize?client_id=abc"
		},
	}
	service := newTestService(provider, &mockUserRepo{})

	got := service.LoginURL()
	if got != "https://kauth.kakao.com/oauth/authorize?client_id=abc" {
		t.Errorf("unexpected login URL: %s", got)
	}
}

func TestService_HandleCallback_NewUser(t *testing.T) {
	var createdUser *model.User
	provider := &mockProvider{
		fetchProfileFunc: func(ctx context.Context, accessToken string) (*kakao.Profile, error) {
			if accessToken != "access-token" {
				t.Errorf("unexpected access token: %s", accessToken)
			}
			return &kakao.Profile{
				KakaoID:  "12345",
				Email:    "user@example.com",
				Nickname: "テスト太郎",
			}, nil
		},
	}
	repo := &mockUserRepo{
		findByKakaoIDFunc: func(ctx context.Context, kakaoID string) (*model.User, error) {
			return nil, nil
		},
		createFunc: func(ctx context.Context, user *model.User) error {
			createdUser = user
			return nil
		},
	}
	service := newTestService(provider, repo)

	credential, user, err := service.HandleCallback(context.Background(), "auth-code")
	if err != nil {
		t.Fatalf("HandleCallback failed: %v", err)
	}
	if credential == "" {
		t.Error("credential should not be empty")
	}
	if createdUser == nil {
		t.Fatal("user should have been created")
	}
	if createdUser.KakaoID != "12345" {
		t.Errorf("kakao_id = %s, want 12345", createdUser.KakaoID)
	}
	if createdUser.ID == "" {
		t.Error("user ID should be generated")
	}
	if !createdUser.IsActive {
		t.Error("new user should be active")
	}
	if user.Email != "user@example.com" {
		t.Errorf("email = %s, want user@example.com", user.Email)
	}

	// 発行された資格情報が検証可能であること
	identity, err := token.NewCodec("test-secret-key").VerifyIdentity(credential)
	if err != nil {
		t.Fatalf("credential verification failed: %v", err)
	}
	if identity.KakaoID != "12345" {
		t.Errorf("identity kakao_id = %s, want 12345", identity.KakaoID)
	}
	if identity.UserID != createdUser.ID {
		t.Errorf("identity user_id = %s, want %s", identity.UserID, createdUser.ID)
	}
}

func TestService_HandleCallback_ExistingUserPartialUpdate(t *testing.T) {
	existing := &model.User{
		ID:           "user-1",
		KakaoID:      "12345",
		Email:        "stored@example.com",
		Nickname:     "旧ニックネーム",
		ProfileImage: "https://img.example.com/old.png",
		IsActive:     true,
	}
	var updateArgs []string
	provider := &mockProvider{
		fetchProfileFunc: func(ctx context.Context, accessToken string) (*kakao.Profile, error) {
			// メール同意が取り消された場合: emailが空で届く
			return &kakao.Profile{
				KakaoID:  "12345",
				Email:    "",
				Nickname: "新ニックネーム",
			}, nil
		},
	}
	repo := &mockUserRepo{
		findByKakaoIDFunc: func(ctx context.Context, kakaoID string) (*model.User, error) {
			u := *existing
			return &u, nil
		},
		createFunc: func(ctx context.Context, user *model.User) error {
			t.Error("Create should not be called for an existing user")
			return nil
		},
		updateProfileFunc: func(ctx context.Context, id, email, nickname, profileImage string) error {
			updateArgs = []string{id, email, nickname, profileImage}
			return nil
		},
	}
	service := newTestService(provider, repo)

	_, user, err := service.HandleCallback(context.Background(), "auth-code")
	if err != nil {
		t.Fatalf("HandleCallback failed: %v", err)
	}
	if len(updateArgs) != 4 {
		t.Fatal("UpdateProfile should have been called")
	}
	if updateArgs[0] != "user-1" || updateArgs[1] != "" || updateArgs[2] != "新ニックネーム" {
		t.Errorf("unexpected update args: %v", updateArgs)
	}
	// 空のフィールドは既存値を維持、非空のフィールドは上書き
	if user.Email != "stored@example.com" {
		t.Errorf("email = %s, want stored@example.com", user.Email)
	}
	if user.Nickname != "新ニックネーム" {
		t.Errorf("nickname = %s, want 新ニックネーム", user.Nickname)
	}
}

func TestService_HandleCallback_DuplicateIdentityRace(t *testing.T) {
	winner := &model.User{ID: "winner-id", KakaoID: "12345", IsActive: true}
	findCalls := 0
	provider := &mockProvider{}
	repo := &mockUserRepo{
		findByKakaoIDFunc: func(ctx context.Context, kakaoID string) (*model.User, error) {
			findCalls++
			if findCalls == 1 {
				// 敗者側: 最初の検索ではまだ行がない
				return nil, nil
			}
			u := *winner
			return &u, nil
		},
		createFunc: func(ctx context.Context, user *model.User) error {
			return model.ErrDuplicateIdentity
		},
	}
	service := newTestService(provider, repo)

	credential, user, err := service.HandleCallback(context.Background(), "auth-code")
	if err != nil {
		t.Fatalf("HandleCallback should recover from duplicate identity: %v", err)
	}
	if user.ID != "winner-id" {
		t.Errorf("user ID = %s, want winner-id", user.ID)
	}
	if credential == "" {
		t.Error("credential should be issued for the refetched user")
	}
	if findCalls != 2 {
		t.Errorf("FindByKakaoID calls = %d, want 2", findCalls)
	}
}

func TestService_HandleCallback_ExchangeFailure(t *testing.T) {
	provider := &mockProvider{
		exchangeCodeFunc: func(ctx context.Context, code string) (*kakao.Token, error) {
			return nil, errors.New("kakao token endpoint returned status 400")
		},
	}
	service := newTestService(provider, &mockUserRepo{})

	_, _, err := service.HandleCallback(context.Background(), "bad-code")
	if err == nil {
		t.Fatal("expected error")
	}
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T", err)
	}
	if apiErr.Code != "OAUTH_EXCHANGE_FAILED" {
		t.Errorf("code = %s, want OAUTH_EXCHANGE_FAILED", apiErr.Code)
	}
}

func TestService_HandleCallback_ProfileFailure(t *testing.T) {
	provider := &mockProvider{
		fetchProfileFunc: func(ctx context.Context, accessToken string) (*kakao.Profile, error) {
			return nil, errors.New("kakao user info endpoint returned status 401")
		},
	}
	service := newTestService(provider, &mockUserRepo{})

	_, _, err := service.HandleCallback(context.Background(), "auth-code")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != "PROFILE_FETCH_FAILED" {
		t.Errorf("code = %s, want PROFILE_FETCH_FAILED", apiErr.Code)
	}
}

func TestService_Logout_ProviderFailureIgnored(t *testing.T) {
	provider := &mockProvider{
		logoutFunc: func(ctx context.Context, kakaoID string) error {
			return errors.New("kakao logout endpoint returned status 500")
		},
	}
	service := newTestService(provider, &mockUserRepo{})

	// パニックやエラーなしに完了すること
	service.Logout(context.Background(), &token.Identity{UserID: "user-1", KakaoID: "12345"})
	service.Logout(context.Background(), nil)
}

func TestService_Withdraw(t *testing.T) {
	unlinked := false
	deleted := false
	provider := &mockProvider{
		unlinkFunc: func(ctx context.Context, kakaoID string) error {
			if kakaoID != "12345" {
				t.Errorf("unlink kakao_id = %s, want 12345", kakaoID)
			}
			unlinked = true
			return nil
		},
	}
	repo := &mockUserRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.User, error) {
			return &model.User{ID: id, KakaoID: "12345", IsActive: true}, nil
		},
		deleteByIDFunc: func(ctx context.Context, id string) (bool, error) {
			deleted = true
			return true, nil
		},
	}
	service := newTestService(provider, repo)

	err := service.Withdraw(context.Background(), &token.Identity{UserID: "user-1", KakaoID: "12345"})
	if err != nil {
		t.Fatalf("Withdraw failed: %v", err)
	}
	if !unlinked {
		t.Error("provider unlink should have been called")
	}
	if !deleted {
		t.Error("user row should have been deleted")
	}
}

func TestService_Withdraw_UserNotFound(t *testing.T) {
	repo := &mockUserRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.User, error) {
			return nil, nil
		},
	}
	service := newTestService(&mockProvider{}, repo)

	err := service.Withdraw(context.Background(), &token.Identity{UserID: "ghost", KakaoID: "12345"})
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != "USER_NOT_FOUND" {
		t.Errorf("code = %s, want USER_NOT_FOUND", apiErr.Code)
	}
}

func TestService_Withdraw_UnlinkFailureContinues(t *testing.T) {
	deleted := false
	provider := &mockProvider{
		unlinkFunc: func(ctx context.Context, kakaoID string) error {
			return errors.New("kakao unlink endpoint returned status 500")
		},
	}
	repo := &mockUserRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.User, error) {
			return &model.User{ID: id, KakaoID: "12345"}, nil
		},
		deleteByIDFunc: func(ctx context.Context, id string) (bool, error) {
			deleted = true
			return true, nil
		},
	}
	service := newTestService(provider, repo)

	if err := service.Withdraw(context.Background(), &token.Identity{UserID: "user-1", KakaoID: "12345"}); err != nil {
		t.Fatalf("Withdraw should succeed despite unlink failure: %v", err)
	}
	if !deleted {
		t.Error("user row should have been deleted even after unlink failure")
	}
}
