package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/lol-chang/name2sign/internal/model"
)

// PostgresUserRepoはUserRepositoryインターフェースを満たすことを検証
func TestPostgresUserRepo_ImplementsInterface(t *testing.T) {
	var _ UserRepository = (*PostgresUserRepo)(nil)
}

func TestPostgresSignatureRepo_ImplementsInterface(t *testing.T) {
	var _ SignatureRepository = (*PostgresSignatureRepo)(nil)
}

func newUserRepoWithMock(t *testing.T) (*PostgresUserRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewPostgresUserRepo(db), mock
}

func userRows(u *model.User) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "kakao_id", "email", "nickname", "profile_image",
		"is_premium", "is_active", "created_at", "updated_at",
	}).AddRow(
		u.ID, u.KakaoID, u.Email, u.Nickname, u.ProfileImage,
		u.IsPremium, u.IsActive, u.CreatedAt, u.UpdatedAt,
	)
}

func TestPostgresUserRepo_FindByKakaoID_Found(t *testing.T) {
	repo, mock := newUserRepoWithMock(t)

	now := time.Now()
	want := &model.User{
		ID:        "user-1",
		KakaoID:   "123456",
		Email:     "a@x.com",
		Nickname:  "Ann",
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT`)).
		WithArgs("123456").
		WillReturnRows(userRows(want))

	got, err := repo.FindByKakaoID(context.Background(), "123456")
	if err != nil {
		t.Fatalf("FindByKakaoID() error = %v", err)
	}
	if got == nil {
		t.Fatal("expected non-nil user")
	}
	if got.ID != want.ID || got.KakaoID != want.KakaoID || got.Email != want.Email {
		t.Errorf("user = %+v, want %+v", got, want)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPostgresUserRepo_FindByKakaoID_NotFound(t *testing.T) {
	repo, mock := newUserRepoWithMock(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT`)).
		WithArgs("unknown").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "kakao_id", "email", "nickname", "profile_image",
			"is_premium", "is_active", "created_at", "updated_at",
		}))

	got, err := repo.FindByKakaoID(context.Background(), "unknown")
	if err != nil {
		t.Fatalf("FindByKakaoID() error = %v", err)
	}
	if got != nil {
		t.Errorf("expected nil user for unknown kakao_id, got %+v", got)
	}
}

// ユニーク制約違反がErrDuplicateIdentityにマップされること
func TestPostgresUserRepo_Create_DuplicateKakaoID(t *testing.T) {
	repo, mock := newUserRepoWithMock(t)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO users`)).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "idx_users_kakao_id"})

	err := repo.Create(context.Background(), &model.User{
		ID:       "user-2",
		KakaoID:  "123456",
		IsActive: true,
	})
	if !errors.Is(err, model.ErrDuplicateIdentity) {
		t.Errorf("error = %v, want model.ErrDuplicateIdentity", err)
	}
}

func TestPostgresUserRepo_Create_Success(t *testing.T) {
	repo, mock := newUserRepoWithMock(t)

	now := time.Now()
	user := &model.User{
		ID:        "user-1",
		KakaoID:   "123456",
		Email:     "a@x.com",
		Nickname:  "Ann",
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO users`)).
		WithArgs(user.ID, user.KakaoID, user.Email, user.Nickname, user.ProfileImage,
			user.IsPremium, user.IsActive, user.CreatedAt, user.UpdatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Create(context.Background(), user); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

// 部分更新: 空文字のフィールドが既存値を消さないSQL（NULLIF+COALESCE）であること
func TestPostgresUserRepo_UpdateProfile_UsesPartialUpdateSQL(t *testing.T) {
	repo, mock := newUserRepoWithMock(t)

	mock.ExpectExec(`UPDATE users SET\s+email = COALESCE\(NULLIF\(\$2, ''\), email\)`).
		WithArgs("user-1", "", "Annie", "").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateProfile(context.Background(), "user-1", "", "Annie", "")
	if err != nil {
		t.Fatalf("UpdateProfile() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPostgresUserRepo_SetPremium(t *testing.T) {
	repo, mock := newUserRepoWithMock(t)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE users SET is_premium = TRUE`)).
		WithArgs("user-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.SetPremium(context.Background(), "user-1"); err != nil {
		t.Fatalf("SetPremium() error = %v", err)
	}
}

func TestPostgresUserRepo_DeleteByID_Found(t *testing.T) {
	repo, mock := newUserRepoWithMock(t)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM users`)).
		WithArgs("user-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	found, err := repo.DeleteByID(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("DeleteByID() error = %v", err)
	}
	if !found {
		t.Error("expected found = true")
	}
}

// 既に削除済みの行へのDeleteは冪等なno-opであること
func TestPostgresUserRepo_DeleteByID_AlreadyGone(t *testing.T) {
	repo, mock := newUserRepoWithMock(t)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM users`)).
		WithArgs("user-gone").
		WillReturnResult(sqlmock.NewResult(0, 0))

	found, err := repo.DeleteByID(context.Background(), "user-gone")
	if err != nil {
		t.Fatalf("DeleteByID() error = %v, want nil（冪等）", err)
	}
	if found {
		t.Error("expected found = false")
	}
}
