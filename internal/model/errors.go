// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法、フィールド単位のメッセージを含む。
type APIError struct {
	Code     string              // エラーコード
	Message  string              // エラーメッセージ
	Category string              // カテゴリ: auth, validation, recipe, system
	Action   string              // ユーザー向け対処方法
	Fields   map[string][]string // フィールド単位のエラーメッセージ（任意）
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	if len(e.Fields) > 0 {
		return fmt.Sprintf("[%s] %s %v", e.Code, e.Message, e.Fields)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// WithField はフィールド単位のメッセージを追加したAPIErrorを返す。
func (e *APIError) WithField(field, message string) *APIError {
	if e.Fields == nil {
		e.Fields = make(map[string][]string)
	}
	e.Fields[field] = append(e.Fields[field], message)
	return e
}

// 定義済みエラーコード
const (
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeInvalidRequest     = "INVALID_REQUEST"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeInvalidImage       = "INVALID_IMAGE"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodePermissionDenied   = "PERMISSION_DENIED"
	ErrCodeRecipeNotFound     = "RECIPE_NOT_FOUND"
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeMethodNotAllowed   = "METHOD_NOT_ALLOWED"
	ErrCodeRateLimitExceeded  = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal           = "INTERNAL_ERROR"
)

// 定義済みフィールドメッセージ
const (
	MsgFieldRequired  = "This field is required."
	MsgFieldBlank     = "This field may not be blank."
	MsgNullCharacters = "Null characters are not allowed."
)

// NewValidationError は入力検証エラーを生成する。
// field が空でない場合はそのフィールドにメッセージを紐付ける。
func NewValidationError(field, message string) *APIError {
	err := &APIError{
		Code:     ErrCodeValidation,
		Message:  "入力内容に誤りがあります。",
		Category: "validation",
		Action:   "各項目の入力内容を確認してください。",
	}
	if field != "" {
		err.WithField(field, message)
	}
	return err
}

// NewInvalidRequestError はリクエストボディの解析失敗エラーを生成する。
func NewInvalidRequestError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	}
}

// NewInvalidCredentialsError は認証情報不一致エラーを生成する。
// ユーザー不在とパスワード誤りを区別しない。
func NewInvalidCredentialsError() *APIError {
	return (&APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "Unable to authenticate with provided credentials",
		Category: "auth",
		Action:   "メールアドレスとパスワードを確認してください。",
	}).WithField("non_field_errors", "Unable to authenticate with provided credentials")
}

// NewInvalidImageError はアップロードされたファイルが画像として解釈できない場合のエラーを生成する。
func NewInvalidImageError() *APIError {
	return (&APIError{
		Code:     ErrCodeInvalidImage,
		Message:  "アップロードされたファイルは画像ではありません。",
		Category: "validation",
		Action:   "JPEG、PNG、GIFなどの有効な画像ファイルを選択してください。",
	}).WithField("image", "Upload a valid image. The file you uploaded was either not an image or a corrupted image.")
}

// NewUnauthorizedError は未認証エラーを生成する。
// トークン不在・無効・非アクティブユーザーを区別しない。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証情報が含まれていないか、無効です。",
		Category: "auth",
		Action:   "Authorization: Token <token> ヘッダーを付与してください。",
	}
}

// NewPermissionDeniedError は認証済みだが権限のない操作のエラーを生成する。
func NewPermissionDeniedError() *APIError {
	return &APIError{
		Code:     ErrCodePermissionDenied,
		Message:  "You do not have permission to perform this action.",
		Category: "auth",
		Action:   "スタッフ権限を持つユーザーで操作してください。",
	}
}

// NewRecipeNotFoundError はレシピ未検出エラーを生成する。
// 他ユーザーのレシピも存在しないものとして扱う。
func NewRecipeNotFoundError(recipeID string) *APIError {
	return &APIError{
		Code:     ErrCodeRecipeNotFound,
		Message:  fmt.Sprintf("指定されたレシピが見つかりません: %s", recipeID),
		Category: "recipe",
		Action:   "レシピIDを確認してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewNotFoundError は存在しないパスへのアクセスエラーを生成する。
func NewNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeNotFound,
		Message:  "指定されたリソースが見つかりません。",
		Category: "system",
		Action:   "URLを確認してください。",
	}
}

// NewMethodNotAllowedError は許可されていないHTTPメソッドのエラーを生成する。
func NewMethodNotAllowedError(method string) *APIError {
	return &APIError{
		Code:     ErrCodeMethodNotAllowed,
		Message:  fmt.Sprintf("メソッド \"%s\" は許可されていません。", method),
		Category: "system",
		Action:   "APIドキュメントで利用可能なメソッドを確認してください。",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログのみに記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewRateLimitExceededError はレート制限超過エラーを生成する。
func NewRateLimitExceededError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimitExceeded,
		Message:  "リクエストが多すぎます。",
		Category: "system",
		Action:   "Retry-Afterヘッダーの秒数だけ待ってから再度お試しください。",
	}
}
