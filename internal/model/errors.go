// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// ErrDuplicateIdentity は同一kakao_idの初回ログインが競合した場合に
// リポジトリ層が返すセンチネルエラー。呼び出し元は再検索して処理を継続する。
var ErrDuplicateIdentity = errors.New("duplicate identity")

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, payment, validation, system
	Action   string // ユーザー向け対処方法
	Status   int    // HTTPステータスコード
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeAuthenticationFailed = "AUTHENTICATION_FAILED"
	ErrCodeOAuthExchangeFailed  = "OAUTH_EXCHANGE_FAILED"
	ErrCodeProfileFetchFailed   = "PROFILE_FETCH_FAILED"
	ErrCodePaymentReadyFailed   = "PAYMENT_READY_FAILED"
	ErrCodePaymentNotPrepared   = "PAYMENT_NOT_PREPARED"
	ErrCodeApprovalFailed       = "APPROVAL_FAILED"
	ErrCodeUserNotFound         = "USER_NOT_FOUND"
	ErrCodeInvalidRequest       = "INVALID_REQUEST"
	ErrCodeInternalError        = "INTERNAL_ERROR"
)

// NewAuthenticationFailedError は認証失敗エラーを生成する。
// 資格情報の欠落・改ざん・期限切れはすべてこのエラーに集約される。
func NewAuthenticationFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeAuthenticationFailed,
		Message:  "認証に失敗しました。",
		Category: "auth",
		Action:   "ログインし直してください。",
		Status:   401,
	}
}

// NewOAuthExchangeFailedError は認可コード交換失敗エラーを生成する。
// IdP側の詳細メッセージはログにのみ記録し、ユーザーには露出しない。
func NewOAuthExchangeFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeOAuthExchangeFailed,
		Message:  "カカオログインのトークン取得に失敗しました。",
		Category: "auth",
		Action:   "しばらく待ってから再度ログインしてください。",
		Status:   400,
	}
}

// NewProfileFetchFailedError はプロフィール取得失敗エラーを生成する。
func NewProfileFetchFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeProfileFetchFailed,
		Message:  "カカオアカウント情報の取得に失敗しました。",
		Category: "auth",
		Action:   "しばらく待ってから再度ログインしてください。",
		Status:   400,
	}
}

// NewPaymentReadyFailedError は決済準備失敗エラーを生成する。
func NewPaymentReadyFailedError() *APIError {
	return &APIError{
		Code:     ErrCodePaymentReadyFailed,
		Message:  "カカオペイ決済準備リクエストに失敗しました。",
		Category: "payment",
		Action:   "しばらく待ってから再度お試しください。",
		Status:   400,
	}
}

// NewPaymentNotPreparedError は決済相関情報の欠落エラーを生成する。
// 準備済みの決済が見つからない（Cookieの欠落・期限切れ・改ざん）場合に使う。
func NewPaymentNotPreparedError() *APIError {
	return &APIError{
		Code:     ErrCodePaymentNotPrepared,
		Message:  "決済情報が見つかりません。",
		Category: "payment",
		Action:   "決済をはじめからやり直してください。",
		Status:   400,
	}
}

// NewApprovalFailedError は決済承認失敗エラーを生成する。
func NewApprovalFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeApprovalFailed,
		Message:  "カカオペイ決済承認リクエストに失敗しました。",
		Category: "payment",
		Action:   "決済をはじめからやり直してください。",
		Status:   400,
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
		Status:   404,
	}
}

// NewInvalidRequestError はリクエスト不正エラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("リクエストが不正です: %s", reason),
		Category: "validation",
		Action:   "リクエスト内容を確認してください。",
		Status:   400,
	}
}

// NewInternalError は内部エラーを生成する。詳細はログのみに記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternalError,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
		Status:   500,
	}
}
