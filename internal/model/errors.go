// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, persistence, payment, blog, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeValidationFailed       = "VALIDATION_FAILED"
	ErrCodePersistenceUnavailable = "PERSISTENCE_UNAVAILABLE"
	ErrCodeCourseNotFound         = "COURSE_NOT_FOUND"
	ErrCodeNotAuthenticated       = "NOT_AUTHENTICATED"
	ErrCodeCartEmpty              = "CART_EMPTY"
	ErrCodeCheckoutFailed         = "CHECKOUT_FAILED"
	ErrCodeBlogUnavailable        = "BLOG_UNAVAILABLE"
)

// NewValidationError は入力検証エラーを生成する。
// 検証エラーが返された場合、状態変更も永続化書き込みも行われない。
func NewValidationError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidationFailed,
		Message:  fmt.Sprintf("入力が不正です: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewPersistenceUnavailableError は永続化ストアへの書き込み/読み込み失敗エラーを生成する。
// メモリ上の状態変更は成立しており、致命的エラーではない（耐久性のみ低下）。
func NewPersistenceUnavailableError(cause error) *APIError {
	return &APIError{
		Code:     ErrCodePersistenceUnavailable,
		Message:  fmt.Sprintf("カートの保存に失敗しました: %s", cause.Error()),
		Category: "persistence",
		Action:   "操作は反映されていますが、再読み込みで失われる可能性があります。",
	}
}

// NewCourseNotFoundError はコース未検出エラーを生成する。
func NewCourseNotFoundError(courseID int) *APIError {
	return &APIError{
		Code:     ErrCodeCourseNotFound,
		Message:  fmt.Sprintf("指定されたコースが見つかりません: %d", courseID),
		Category: "validation",
		Action:   "コースIDを確認してください。",
	}
}

// NewNotAuthenticatedError は未ログイン状態での操作エラーを生成する。
func NewNotAuthenticatedError() *APIError {
	return &APIError{
		Code:     ErrCodeNotAuthenticated,
		Message:  "ログインしていません。",
		Category: "auth",
		Action:   "ログインしてから再度お試しください。",
	}
}

// NewCartEmptyError は空カートでのチェックアウトエラーを生成する。
func NewCartEmptyError() *APIError {
	return &APIError{
		Code:     ErrCodeCartEmpty,
		Message:  "カートが空です。",
		Category: "validation",
		Action:   "コースをカートに追加してからチェックアウトしてください。",
	}
}

// NewCheckoutFailedError は決済プロバイダ側の失敗エラーを生成する。
func NewCheckoutFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeCheckoutFailed,
		Message:  fmt.Sprintf("チェックアウトに失敗しました: %s", reason),
		Category: "payment",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewBlogUnavailableError はブログフィード取得失敗エラーを生成する。
func NewBlogUnavailableError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeBlogUnavailable,
		Message:  fmt.Sprintf("ブログの取得に失敗しました: %s", reason),
		Category: "blog",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
