// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, product, vote, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeProductNotFound    = "PRODUCT_NOT_FOUND"
	ErrCodeDuplicateProduct   = "DUPLICATE_PRODUCT"
	ErrCodeInvalidProductName = "INVALID_PRODUCT_NAME"
	ErrCodeInvalidScore       = "INVALID_SCORE"
	ErrCodeInvalidPrice       = "INVALID_PRICE"
	ErrCodeInvalidGeoPoint    = "INVALID_GEO_POINT"
	ErrCodeInvalidIdentity    = "INVALID_IDENTITY"
	ErrCodeRegisteredOnly     = "REGISTERED_ONLY"
	ErrCodeInvalidRequest     = "INVALID_REQUEST"
)

// NewProductNotFoundError は商品未検出エラーを生成する。
func NewProductNotFoundError(productID string) *APIError {
	return &APIError{
		Code:     ErrCodeProductNotFound,
		Message:  fmt.Sprintf("指定された商品が見つかりません: %s", productID),
		Category: "product",
		Action:   "商品IDを確認してください。",
	}
}

// NewDuplicateProductError は商品名重複エラーを生成する。
func NewDuplicateProductError(name string) *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateProduct,
		Message:  fmt.Sprintf("同じ名前の商品が既に登録されています: %s", name),
		Category: "product",
		Action:   "既存の商品に投票するか、別の名前で登録してください。",
	}
}

// NewInvalidProductNameError は無効な商品名エラーを生成する。
func NewInvalidProductNameError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidProductName,
		Message:  fmt.Sprintf("無効な商品名です: %s", reason),
		Category: "validation",
		Action:   "1文字以上200文字以下の商品名を入力してください。",
	}
}

// NewInvalidScoreError はスコア範囲外エラーを生成する。
func NewInvalidScoreError(field string, value int) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidScore,
		Message:  fmt.Sprintf("無効なスコアです: %s=%d", field, value),
		Category: "validation",
		Action:   fmt.Sprintf("スコアは%dから%dの範囲で指定してください。", ScoreMin, ScoreMax),
	}
}

// NewInvalidPriceError は価格範囲外エラーを生成する。
func NewInvalidPriceError(value float64) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidPrice,
		Message:  fmt.Sprintf("無効な価格評価です: %g", value),
		Category: "validation",
		Action:   "価格評価は1から5の範囲で指定してください。",
	}
}

// NewInvalidGeoPointError は不完全な位置情報エラーを生成する。
func NewInvalidGeoPointError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidGeoPoint,
		Message:  "位置情報は緯度と経度の両方を指定する必要があります。",
		Category: "validation",
		Action:   "緯度・経度を両方指定するか、位置情報を省略してください。",
	}
}

// NewInvalidIdentityError は投票者識別情報の不正エラーを生成する。
func NewInvalidIdentityError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidIdentity,
		Message:  fmt.Sprintf("投票者の識別情報が不正です: %s", reason),
		Category: "auth",
		Action:   "ログインするか、クライアントの匿名トークンを確認してください。",
	}
}

// NewRegisteredOnlyError は登録ユーザー限定操作のエラーを生成する。
func NewRegisteredOnlyError() *APIError {
	return &APIError{
		Code:     ErrCodeRegisteredOnly,
		Message:  "この操作にはログインが必要です。",
		Category: "auth",
		Action:   "ログインしてから再度お試しください。",
	}
}
