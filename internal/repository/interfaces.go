// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/lol-chang/name2sign/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByKakaoID は外部IdPのIDでユーザーを検索する。見つからない場合はnilを返す。
	FindByKakaoID(ctx context.Context, kakaoID string) (*model.User, error)

	// Create はユーザーを作成する。
	// kakao_idのユニーク制約違反はmodel.ErrDuplicateIdentityを返す。
	Create(ctx context.Context, user *model.User) error

	// UpdateProfile はプロフィールの可変フィールドを部分更新する。
	// 空文字のフィールドは既存値を維持する。コールバックのペイロードは
	// 完全とは限らないため、全上書きではなくこの非対称な更新を行う。
	UpdateProfile(ctx context.Context, id, email, nickname, profileImage string) error

	// SetPremium は決済承認後にエンタイトルメントフラグを立てる。
	SetPremium(ctx context.Context, id string) error

	// DeleteByID は指定IDのユーザーを削除する。
	// 行が存在したかどうかを返し、既に削除済みの場合はfalse, nil（冪等）。
	DeleteByID(ctx context.Context, id string) (bool, error)
}

// SignatureRepository は署名スタイルデータの永続化インターフェース。
type SignatureRepository interface {
	// Create は署名スタイルを作成する。
	Create(ctx context.Context, sig *model.Signature) error

	// ListByUserID はユーザーの署名スタイル一覧を作成日時の降順で返す。
	ListByUserID(ctx context.Context, userID string) ([]*model.Signature, error)
}
