package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/hitoshi/gfrate/internal/model"
)

// uniqueViolation はPostgreSQLの一意制約違反のSQLSTATE。
const uniqueViolation = "23505"

// PostgresProductRepo はPostgreSQLを使用した商品リポジトリ。
type PostgresProductRepo struct {
	db *sql.DB
}

// NewPostgresProductRepo はPostgresProductRepoを生成する。
func NewPostgresProductRepo(db *sql.DB) *PostgresProductRepo {
	return &PostgresProductRepo{db: db}
}

const productColumns = `id, name, average_safety, average_taste, avg_price,
	vote_count, registered_votes, anonymous_votes, last_updated, created_at, updated_at`

// FindByID は指定IDの商品を取得する。見つからない場合はnilを返す。
func (r *PostgresProductRepo) FindByID(ctx context.Context, id string) (*model.Product, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	return scanProductRow(row, "商品の取得に失敗しました")
}

// FindByName は商品名で商品を検索する。見つからない場合はnilを返す。
func (r *PostgresProductRepo) FindByName(ctx context.Context, name string) (*model.Product, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE name = $1`, name)
	return scanProductRow(row, "商品名による検索に失敗しました")
}

// Create は商品を作成する。商品名の一意制約違反はAPIErrorとして返す。
func (r *PostgresProductRepo) Create(ctx context.Context, product *model.Product) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO products (id, name, average_safety, average_taste, avg_price,
		                       vote_count, registered_votes, anonymous_votes,
		                       last_updated, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		product.ID, product.Name,
		product.AverageSafety, product.AverageTaste, product.AvgPrice,
		product.VoteCount, product.RegisteredVotes, product.AnonymousVotes,
		product.LastUpdated, product.CreatedAt, product.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return model.NewDuplicateProductError(product.Name)
		}
		return fmt.Errorf("商品の作成に失敗しました: %w", err)
	}
	return nil
}

// List は商品一覧をlast_updated降順で返す。
func (r *PostgresProductRepo) List(ctx context.Context, limit, offset int) ([]*model.Product, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+productColumns+` FROM products
		 ORDER BY last_updated DESC, name ASC
		 LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("商品一覧の取得に失敗しました: %w", err)
	}
	return scanProducts(rows)
}

// ListIDs は全商品のIDを返す。
func (r *PostgresProductRepo) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM products ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("商品IDの列挙に失敗しました: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("商品IDの読み取りに失敗しました: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("商品IDの走査に失敗しました: %w", err)
	}
	return ids, nil
}

// ListWithPrice はavg_priceが定義されている商品を返す。
func (r *PostgresProductRepo) ListWithPrice(ctx context.Context) ([]*model.Product, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+productColumns+` FROM products
		 WHERE avg_price IS NOT NULL
		 ORDER BY created_at ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("価格付き商品一覧の取得に失敗しました: %w", err)
	}
	return scanProducts(rows)
}

// RecomputeAggregate は1商品の再集計を1トランザクションで実行する。
//
// 商品行をSELECT ... FOR UPDATEでロックしてから投票を読むため、
// 同一商品への並行投票が read-then-write 競合で片方の寄与を落とすことはない。
// 商品が存在しない場合はロールバックしてfalseを返す（削除との競合は無害なno-op）。
func (r *PostgresProductRepo) RecomputeAggregate(ctx context.Context, productID string, lastUpdated time.Time, compute func(votes []*model.Vote) model.Aggregate) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("再集計トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	// 商品行のロック。並行する再集計をここで直列化する
	var id string
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM products WHERE id = $1 FOR UPDATE`, productID,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("商品行のロックに失敗しました: %w", err)
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT `+voteColumns+` FROM votes WHERE product_id = $1 ORDER BY created_at ASC`,
		productID,
	)
	if err != nil {
		return false, fmt.Errorf("再集計対象の投票の取得に失敗しました: %w", err)
	}
	votes, err := scanVotes(rows)
	if err != nil {
		return false, err
	}

	agg := compute(votes)

	_, err = tx.ExecContext(ctx,
		`UPDATE products
		 SET average_safety = $2, average_taste = $3, avg_price = $4,
		     vote_count = $5, registered_votes = $6, anonymous_votes = $7,
		     last_updated = $8, updated_at = NOW()
		 WHERE id = $1`,
		productID,
		agg.AverageSafety, agg.AverageTaste, agg.AvgPrice,
		agg.VoteCount, agg.RegisteredVotes, agg.AnonymousVotes,
		lastUpdated,
	)
	if err != nil {
		return false, fmt.Errorf("集計キャッシュの書き戻しに失敗しました: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("再集計トランザクションのコミットに失敗しました: %w", err)
	}
	return true, nil
}

// scanProducts は商品行の集合をモデルへ読み取る。
func scanProducts(rows *sql.Rows) ([]*model.Product, error) {
	defer rows.Close()

	var products []*model.Product
	for rows.Next() {
		p := &model.Product{}
		var avgPrice sql.NullFloat64
		if err := rows.Scan(
			&p.ID, &p.Name, &p.AverageSafety, &p.AverageTaste, &avgPrice,
			&p.VoteCount, &p.RegisteredVotes, &p.AnonymousVotes,
			&p.LastUpdated, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("商品行の読み取りに失敗しました: %w", err)
		}
		if avgPrice.Valid {
			v := avgPrice.Float64
			p.AvgPrice = &v
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("商品一覧の走査に失敗しました: %w", err)
	}
	return products, nil
}

// scanProductRow は単一の商品行をモデルへ読み取る。見つからない場合はnilを返す。
func scanProductRow(row *sql.Row, failMsg string) (*model.Product, error) {
	p := &model.Product{}
	var avgPrice sql.NullFloat64
	err := row.Scan(
		&p.ID, &p.Name, &p.AverageSafety, &p.AverageTaste, &avgPrice,
		&p.VoteCount, &p.RegisteredVotes, &p.AnonymousVotes,
		&p.LastUpdated, &p.CreatedAt, &p.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", failMsg, err)
	}
	if avgPrice.Valid {
		v := avgPrice.Float64
		p.AvgPrice = &v
	}
	return p, nil
}

// compile-time interface check
var _ ProductRepository = (*PostgresProductRepo)(nil)
