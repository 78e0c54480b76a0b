// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/gfrate/internal/model"
)

// VoteRepository は投票データの永続化インターフェース。
// 投票は追記専用であり、更新は匿名→登録ユーザーへの移行のみ許される。
type VoteRepository interface {
	// Create は投票を追記する。
	Create(ctx context.Context, vote *model.Vote) error

	// ListByProduct は指定商品の全投票をcreated_at昇順で返す。
	ListByProduct(ctx context.Context, productID string) ([]*model.Vote, error)

	// ListByUser は指定登録ユーザーの全投票を返す。
	ListByUser(ctx context.Context, userID string) ([]*model.Vote, error)

	// ListByAnonymousToken は指定匿名トークンの未移行投票を返す。
	ListByAnonymousToken(ctx context.Context, token string) ([]*model.Vote, error)

	// ReassignAnonymous は匿名トークンの全未移行投票を登録ユーザーへ付け替える。
	// user_idの設定とis_anonymousフラグの反転を1文でアトミックに行い、
	// 移行件数と影響のあった商品IDの重複なしリストを返す。
	// 該当投票が0件の場合は (0, nil, nil) を返す（リトライ安全）。
	ReassignAnonymous(ctx context.Context, userID, anonymousID string) (int, []string, error)
}

// ProductRepository は商品データの永続化インターフェース。
// 集計フィールドはRecomputeAggregate経由でのみ更新される。
type ProductRepository interface {
	// FindByID は指定IDの商品を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Product, error)

	// FindByName は商品名（ビジネスキー）で商品を検索する。見つからない場合はnilを返す。
	FindByName(ctx context.Context, name string) (*model.Product, error)

	// Create は商品を作成する。名前の一意制約違反はmodel.APIErrorで返す。
	Create(ctx context.Context, product *model.Product) error

	// List は商品一覧をlast_updated降順で返す。
	List(ctx context.Context, limit, offset int) ([]*model.Product, error)

	// ListIDs は全商品のIDを返す。全件再集計の列挙に使用する。
	ListIDs(ctx context.Context) ([]string, error)

	// ListWithPrice はavg_priceが定義されている商品を返す。
	// 価格スナップショットの取得対象の列挙に使用する。
	ListWithPrice(ctx context.Context) ([]*model.Product, error)

	// RecomputeAggregate は1商品の再集計を1トランザクションで実行する。
	// 商品行をFOR UPDATEでロックし、全投票を読み、computeの結果と
	// lastUpdatedを集計キャッシュへ書き戻す。同一商品に対する並行再集計は
	// 行ロックで直列化される。商品が存在しない場合はfalseを返す（エラーではない）。
	RecomputeAggregate(ctx context.Context, productID string, lastUpdated time.Time, compute func(votes []*model.Vote) model.Aggregate) (bool, error)
}

// SnapshotRepository は価格スナップショットの永続化インターフェース。
// スナップショットは書き込み後不変であり、更新・削除は行わない。
type SnapshotRepository interface {
	// FindLatestByProduct は指定商品の最新スナップショットを返す。
	// 1件もない場合はnilを返す。
	FindLatestByProduct(ctx context.Context, productID string) (*model.PriceSnapshot, error)

	// Create はスナップショットを挿入する。
	// 同一 (product_id, snapshot_date) が既に存在する場合は挿入せずfalseを返す。
	Create(ctx context.Context, snapshot *model.PriceSnapshot) (bool, error)

	// ListByProduct は指定商品のスナップショット履歴をsnapshot_date降順で返す。
	ListByProduct(ctx context.Context, productID string, limit int) ([]*model.PriceSnapshot, error)
}

// SettingsRepository は実行時設定の読み取りインターフェース。
// 設定は管理操作で変更されうるため、各サイクルの開始時に毎回Loadを呼び、
// 結果を呼び出しをまたいでキャッシュしてはならない。
type SettingsRepository interface {
	// Load は現在の設定を読み込む。存在しないキー、解釈できない値は
	// デフォルト値で補われる。
	Load(ctx context.Context) (model.Settings, error)
}
