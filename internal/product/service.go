// Package product は商品管理のドメインロジックを提供する。
package product

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/hitoshi/gfrate/internal/model"
	"github.com/hitoshi/gfrate/internal/repository"
)

// 商品名の最大長（文字数）。
const maxNameLength = 200

// 一覧取得のページサイズ制限。
const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// スナップショット履歴のデフォルト取得件数。
const defaultSnapshotLimit = 90

// Sanitizer はユーザー入力名のサニタイズに必要なインターフェース。
type Sanitizer interface {
	Sanitize(input string) string
}

// Service は商品管理のサービス層。
// 商品は誰でも（匿名でも）最初の投稿で作成できる。削除はこのコアの責務外。
type Service struct {
	productRepo  repository.ProductRepository
	snapshotRepo repository.SnapshotRepository
	sanitizer    Sanitizer
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	productRepo repository.ProductRepository,
	snapshotRepo repository.SnapshotRepository,
	sanitizer Sanitizer,
) *Service {
	return &Service{
		productRepo:  productRepo,
		snapshotRepo: snapshotRepo,
		sanitizer:    sanitizer,
	}
}

// CreateProduct は商品を新規作成する。
// 商品名はサニタイズ後に検証され、一意制約に違反する場合はAPIErrorを返す。
func (s *Service) CreateProduct(ctx context.Context, name string) (*model.Product, error) {
	name = s.sanitizer.Sanitize(name)

	if name == "" {
		return nil, model.NewInvalidProductNameError("商品名が空です")
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return nil, model.NewInvalidProductNameError("商品名が長すぎます")
	}

	now := time.Now()
	product := &model.Product{
		ID:          uuid.NewString(),
		Name:        name,
		LastUpdated: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.productRepo.Create(ctx, product); err != nil {
		return nil, err
	}

	return product, nil
}

// GetProduct は商品を集計キャッシュ付きで取得する。見つからない場合はAPIErrorを返す。
func (s *Service) GetProduct(ctx context.Context, productID string) (*model.Product, error) {
	product, err := s.productRepo.FindByID(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("商品の取得に失敗しました: %w", err)
	}
	if product == nil {
		return nil, model.NewProductNotFoundError(productID)
	}
	return product, nil
}

// ListProducts は商品一覧を返す。limitは上限を超えない範囲に正規化される。
func (s *Service) ListProducts(ctx context.Context, limit, offset int) ([]*model.Product, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return s.productRepo.List(ctx, limit, offset)
}

// ListSnapshots は商品の価格スナップショット履歴を返す。
// 商品が存在しない場合はAPIErrorを返す。
func (s *Service) ListSnapshots(ctx context.Context, productID string, limit int) ([]*model.PriceSnapshot, error) {
	product, err := s.productRepo.FindByID(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("商品の取得に失敗しました: %w", err)
	}
	if product == nil {
		return nil, model.NewProductNotFoundError(productID)
	}

	if limit <= 0 {
		limit = defaultSnapshotLimit
	}
	return s.snapshotRepo.ListByProduct(ctx, productID, limit)
}
