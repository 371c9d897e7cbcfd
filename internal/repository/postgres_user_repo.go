package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/lol-chang/name2sign/internal/model"
)

// uniqueViolation はPostgreSQLのunique_violationエラーコード。
const uniqueViolation = "23505"

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

const userColumns = `id, kakao_id, email, nickname, profile_image, is_premium, is_active, created_at, updated_at`

func scanUser(row *sql.Row) (*model.User, error) {
	user := &model.User{}
	err := row.Scan(
		&user.ID, &user.KakaoID, &user.Email, &user.Nickname, &user.ProfileImage,
		&user.IsPremium, &user.IsActive, &user.CreatedAt, &user.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}
	return user, nil
}

// FindByKakaoID は外部IdPのIDでユーザーを検索する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByKakaoID(ctx context.Context, kakaoID string) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE kakao_id = $1`, kakaoID,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to find user by kakao ID: %w", err)
	}
	return user, nil
}

// Create はユーザーを作成する。
// kakao_idのユニーク制約違反はmodel.ErrDuplicateIdentityにマップする。
// 同時初回ログインの敗者はこれを受けて再検索する。
func (r *PostgresUserRepo) Create(ctx context.Context, user *model.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, kakao_id, email, nickname, profile_image, is_premium, is_active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		user.ID, user.KakaoID, user.Email, user.Nickname, user.ProfileImage,
		user.IsPremium, user.IsActive, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return model.ErrDuplicateIdentity
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// UpdateProfile はプロフィールの可変フィールドを部分更新する。
// NULLIF + COALESCEにより、空文字で渡されたフィールドは既存値を維持する。
func (r *PostgresUserRepo) UpdateProfile(ctx context.Context, id, email, nickname, profileImage string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET
			email = COALESCE(NULLIF($2, ''), email),
			nickname = COALESCE(NULLIF($3, ''), nickname),
			profile_image = COALESCE(NULLIF($4, ''), profile_image),
			updated_at = now()
		 WHERE id = $1`,
		id, email, nickname, profileImage,
	)
	if err != nil {
		return fmt.Errorf("failed to update user profile: %w", err)
	}
	return nil
}

// SetPremium はエンタイトルメントフラグを立てる。
func (r *PostgresUserRepo) SetPremium(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET is_premium = TRUE, updated_at = now() WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to set premium flag: %w", err)
	}
	return nil
}

// DeleteByID は指定IDのユーザーを削除する。
// 関連するsignaturesはCASCADE削除される。
// 行が存在しなかった場合はfalse, nilを返し、エラーにはしない（冪等）。
func (r *PostgresUserRepo) DeleteByID(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM users WHERE id = $1`, id,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete user: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
