// Package handler はHTTP APIのハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/gfrate/internal/model"
)

// ProductServiceInterface は商品ハンドラーが必要とするサービスインターフェース。
type ProductServiceInterface interface {
	// CreateProduct は商品名を検証して商品を登録する。
	CreateProduct(ctx context.Context, name string) (*model.Product, error)
	// GetProduct は商品を集計キャッシュ込みで取得する。
	GetProduct(ctx context.Context, productID string) (*model.Product, error)
	// ListProducts は商品一覧を返す。
	ListProducts(ctx context.Context, limit, offset int) ([]*model.Product, error)
	// ListSnapshots は商品の価格スナップショット履歴を新しい順で返す。
	ListSnapshots(ctx context.Context, productID string, limit int) ([]*model.PriceSnapshot, error)
}

// ProductHandler は商品管理のHTTPハンドラー。
type ProductHandler struct {
	service ProductServiceInterface
}

// NewProductHandler はProductHandlerを生成する。
func NewProductHandler(service ProductServiceInterface) *ProductHandler {
	return &ProductHandler{service: service}
}

// createProductRequest は商品登録リクエストのボディ。
type createProductRequest struct {
	Name string `json:"name"`
}

// productResponse は商品情報のAPIレスポンス。
type productResponse struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	AverageSafety   float64    `json:"average_safety"`
	AverageTaste    float64    `json:"average_taste"`
	AvgPrice        *float64   `json:"avg_price"`
	VoteCount       int        `json:"vote_count"`
	RegisteredVotes int        `json:"registered_votes"`
	AnonymousVotes  int        `json:"anonymous_votes"`
	LastUpdated     *time.Time `json:"last_updated"`
	CreatedAt       time.Time  `json:"created_at"`
}

// snapshotResponse は価格スナップショットのAPIレスポンス。
type snapshotResponse struct {
	ProductID    string    `json:"product_id"`
	SnapshotDate time.Time `json:"snapshot_date"`
	Price        string    `json:"price"`
	CreatedAt    time.Time `json:"created_at"`
}

// apiErrorResponse は統一エラーフォーマットのレスポンス。
type apiErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// CreateProduct は商品登録を処理する。
// POST /api/products
func (h *ProductHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req createProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     model.ErrCodeInvalidRequest,
			Message:  "リクエストボディの解析に失敗しました。",
			Category: "validation",
			Action:   "正しいJSON形式でリクエストしてください。",
		})
		return
	}

	product, err := h.service.CreateProduct(r.Context(), req.Name)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toProductResponse(product))
}

// GetProduct は商品詳細を取得する。
// GET /api/products/:id
func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "id")

	product, err := h.service.GetProduct(r.Context(), productID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if product == nil {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewProductNotFoundError(productID))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toProductResponse(product))
}

// ListProducts は商品一覧を取得する。
// GET /api/products?limit=&offset=
func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	limit := parseIntQuery(r, "limit", 0)
	offset := parseIntQuery(r, "offset", 0)

	products, err := h.service.ListProducts(r.Context(), limit, offset)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	results := make([]productResponse, len(products))
	for i, p := range products {
		results[i] = toProductResponse(p)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(results)
}

// ListSnapshots は商品の価格スナップショット履歴を取得する。
// GET /api/products/:id/snapshots?limit=
func (h *ProductHandler) ListSnapshots(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "id")
	limit := parseIntQuery(r, "limit", 0)

	snapshots, err := h.service.ListSnapshots(r.Context(), productID, limit)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	results := make([]snapshotResponse, len(snapshots))
	for i, s := range snapshots {
		results[i] = snapshotResponse{
			ProductID:    s.ProductID,
			SnapshotDate: s.SnapshotDate,
			Price:        s.Price.StringFixed(2),
			CreatedAt:    s.CreatedAt,
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(results)
}

// toProductResponse はドメインのProductをAPIレスポンス型に変換する。
func toProductResponse(p *model.Product) productResponse {
	resp := productResponse{
		ID:              p.ID,
		Name:            p.Name,
		AverageSafety:   p.AverageSafety,
		AverageTaste:    p.AverageTaste,
		AvgPrice:        p.AvgPrice,
		VoteCount:       p.VoteCount,
		RegisteredVotes: p.RegisteredVotes,
		AnonymousVotes:  p.AnonymousVotes,
		CreatedAt:       p.CreatedAt,
	}
	if !p.LastUpdated.IsZero() {
		lu := p.LastUpdated
		resp.LastUpdated = &lu
	}
	return resp
}

// parseIntQuery はクエリパラメータを整数として解釈する。
// 欠落・不正値の場合はフォールバック値を返す。
func parseIntQuery(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

// writeAPIErrorResponse は統一エラーフォーマットでレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(apiErrorResponse{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// handleServiceError はサービス層のエラーをHTTPレスポンスに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		statusCode := mapAPIErrorToHTTPStatus(apiErr)
		writeAPIErrorResponse(w, statusCode, apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}

// mapAPIErrorToHTTPStatus はAPIErrorのコードからHTTPステータスコードを決定する。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeProductNotFound:
		return http.StatusNotFound
	case model.ErrCodeDuplicateProduct:
		return http.StatusConflict
	case model.ErrCodeInvalidProductName,
		model.ErrCodeInvalidScore,
		model.ErrCodeInvalidPrice,
		model.ErrCodeInvalidGeoPoint,
		model.ErrCodeInvalidRequest:
		return http.StatusBadRequest
	case model.ErrCodeInvalidIdentity:
		return http.StatusBadRequest
	case model.ErrCodeRegisteredOnly:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
