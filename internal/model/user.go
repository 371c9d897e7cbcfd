// Package model はドメインモデルを定義する。
package model

import "time"

// User はカカオログインで認証されたサービス利用ユーザーを表す。
// KakaoIDが外部IdP側の自然キーであり、全行で一意。
type User struct {
	ID           string
	KakaoID      string
	Email        string
	Nickname     string
	ProfileImage string
	IsPremium    bool
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Signature はユーザーが保存した署名スタイルを表す。
type Signature struct {
	ID        string
	UserID    string
	FontStyle string
	Color     string
	CreatedAt time.Time
}
