package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lol-chang/name2sign/internal/model"
)

// PostgresSignatureRepo はPostgreSQLを使用した署名スタイルリポジトリ。
type PostgresSignatureRepo struct {
	db *sql.DB
}

// NewPostgresSignatureRepo はPostgresSignatureRepoを生成する。
func NewPostgresSignatureRepo(db *sql.DB) *PostgresSignatureRepo {
	return &PostgresSignatureRepo{db: db}
}

// Create は署名スタイルを作成する。
func (r *PostgresSignatureRepo) Create(ctx context.Context, sig *model.Signature) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO signatures (id, user_id, font_style, color, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		sig.ID, sig.UserID, sig.FontStyle, sig.Color, sig.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert signature: %w", err)
	}
	return nil
}

// ListByUserID はユーザーの署名スタイル一覧を作成日時の降順で返す。
func (r *PostgresSignatureRepo) ListByUserID(ctx context.Context, userID string) ([]*model.Signature, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, font_style, color, created_at
		 FROM signatures WHERE user_id = $1 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list signatures: %w", err)
	}
	defer rows.Close()

	var sigs []*model.Signature
	for rows.Next() {
		sig := &model.Signature{}
		if err := rows.Scan(&sig.ID, &sig.UserID, &sig.FontStyle, &sig.Color, &sig.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan signature: %w", err)
		}
		sigs = append(sigs, sig)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate signatures: %w", err)
	}

	return sigs, nil
}

// compile-time interface check
var _ SignatureRepository = (*PostgresSignatureRepo)(nil)
