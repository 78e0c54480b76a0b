package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/gfrate/internal/model"
)

// PostgresSnapshotRepo はPostgreSQLを使用した価格スナップショットリポジトリ。
type PostgresSnapshotRepo struct {
	db *sql.DB
}

// NewPostgresSnapshotRepo はPostgresSnapshotRepoを生成する。
func NewPostgresSnapshotRepo(db *sql.DB) *PostgresSnapshotRepo {
	return &PostgresSnapshotRepo{db: db}
}

// FindLatestByProduct は指定商品の最新スナップショットを返す。1件もない場合はnilを返す。
func (r *PostgresSnapshotRepo) FindLatestByProduct(ctx context.Context, productID string) (*model.PriceSnapshot, error) {
	snap := &model.PriceSnapshot{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, product_id, snapshot_date, price, created_at
		 FROM price_snapshots
		 WHERE product_id = $1
		 ORDER BY snapshot_date DESC
		 LIMIT 1`,
		productID,
	).Scan(&snap.ID, &snap.ProductID, &snap.SnapshotDate, &snap.Price, &snap.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("最新スナップショットの取得に失敗しました: %w", err)
	}
	return snap, nil
}

// Create はスナップショットを挿入する。
// 同一 (product_id, snapshot_date) が既に存在する場合はON CONFLICT DO NOTHINGで
// 挿入せずfalseを返す。同日2回目以降の実行を無害なno-opにするための仕組み。
func (r *PostgresSnapshotRepo) Create(ctx context.Context, snapshot *model.PriceSnapshot) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO price_snapshots (id, product_id, snapshot_date, price, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (product_id, snapshot_date) DO NOTHING`,
		snapshot.ID, snapshot.ProductID, snapshot.SnapshotDate, snapshot.Price, snapshot.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("スナップショットの作成に失敗しました: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("スナップショット作成結果の取得に失敗しました: %w", err)
	}
	return affected > 0, nil
}

// ListByProduct は指定商品のスナップショット履歴をsnapshot_date降順で返す。
func (r *PostgresSnapshotRepo) ListByProduct(ctx context.Context, productID string, limit int) ([]*model.PriceSnapshot, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, product_id, snapshot_date, price, created_at
		 FROM price_snapshots
		 WHERE product_id = $1
		 ORDER BY snapshot_date DESC
		 LIMIT $2`,
		productID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("スナップショット履歴の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var snapshots []*model.PriceSnapshot
	for rows.Next() {
		snap := &model.PriceSnapshot{}
		if err := rows.Scan(&snap.ID, &snap.ProductID, &snap.SnapshotDate, &snap.Price, &snap.CreatedAt); err != nil {
			return nil, fmt.Errorf("スナップショット行の読み取りに失敗しました: %w", err)
		}
		snapshots = append(snapshots, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("スナップショット履歴の走査に失敗しました: %w", err)
	}
	return snapshots, nil
}

// compile-time interface check
var _ SnapshotRepository = (*PostgresSnapshotRepo)(nil)
