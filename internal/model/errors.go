// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, resource, system
	Action   string // ユーザー向け対処方法
	Field    string // バリデーションエラーの対象フィールド（該当時のみ）
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeValidation             = "VALIDATION_ERROR"
	ErrCodeAuthenticationRequired = "AUTHENTICATION_REQUIRED"
	ErrCodeAuthenticationFailed   = "AUTHENTICATION_FAILED"
	ErrCodeAuthorizationFailed    = "AUTHORIZATION_FAILED"
	ErrCodeNotFound               = "RESOURCE_NOT_FOUND"
	ErrCodeInternal               = "INTERNAL_ERROR"
)

// NewValidationError は必須項目の欠落や形式不正を表すエラーを生成する。
func NewValidationError(field, message string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  message,
		Category: "validation",
		Action:   "入力内容を確認してください。",
		Field:    field,
	}
}

// NewAuthenticationRequiredError は未ログインまたはセッション切れのエラーを生成する。
func NewAuthenticationRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeAuthenticationRequired,
		Message:  "ログインが必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewAuthenticationFailedError はログイン失敗のエラーを生成する。
// メールアドレスとパスワードのどちらが誤っているかは区別しない。
func NewAuthenticationFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeAuthenticationFailed,
		Message:  "メールアドレスまたはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認して再度ログインしてください。",
	}
}

// NewAuthorizationFailedError は他テナントのリソースへのアクセスを拒否するエラーを生成する。
func NewAuthorizationFailedError(message string) *APIError {
	if message == "" {
		message = "この操作を実行する権限がありません。"
	}
	return &APIError{
		Code:     ErrCodeAuthorizationFailed,
		Message:  message,
		Category: "auth",
		Action:   "所属する団体または企業のデータのみ操作できます。",
	}
}

// NewNotFoundError はリソース未検出エラーを生成する。
func NewNotFoundError(resource, id string) *APIError {
	return &APIError{
		Code:     ErrCodeNotFound,
		Message:  fmt.Sprintf("%sが見つかりません: %s", resource, id),
		Category: "resource",
		Action:   "IDを確認してください。",
	}
}

// NewChatRoomNotFoundError はチャットルーム未検出エラーを生成する。
func NewChatRoomNotFoundError(roomID string) *APIError {
	return NewNotFoundError("チャットルーム", roomID)
}

// NewChatMessageNotFoundError はチャットメッセージ未検出エラーを生成する。
func NewChatMessageNotFoundError(messageID string) *APIError {
	return NewNotFoundError("メッセージ", messageID)
}

// NewProposalNotFoundError は協賛申請未検出エラーを生成する。
func NewProposalNotFoundError(proposalID string) *APIError {
	return NewNotFoundError("申請", proposalID)
}

// NewInternalError は内部エラーの利用者向け表現を生成する。
// 詳細はログにのみ記録し、レスポンスには含めない。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
