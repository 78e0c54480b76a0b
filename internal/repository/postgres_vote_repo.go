package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/gfrate/internal/model"
)

// PostgresVoteRepo はPostgreSQLを使用した投票リポジトリ。
type PostgresVoteRepo struct {
	db *sql.DB
}

// NewPostgresVoteRepo はPostgresVoteRepoを生成する。
func NewPostgresVoteRepo(db *sql.DB) *PostgresVoteRepo {
	return &PostgresVoteRepo{db: db}
}

const voteColumns = `id, product_id, user_id, anonymous_id, is_anonymous,
	safety, taste, price, store_name, latitude, longitude, created_at`

// Create は投票を追記する。
func (r *PostgresVoteRepo) Create(ctx context.Context, vote *model.Vote) error {
	var lat, lng *float64
	if vote.Location != nil {
		lat = &vote.Location.Latitude
		lng = &vote.Location.Longitude
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO votes (id, product_id, user_id, anonymous_id, is_anonymous,
		                    safety, taste, price, store_name, latitude, longitude, created_at)
		 VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5, $6, $7, $8, NULLIF($9, ''), $10, $11, $12)`,
		vote.ID, vote.ProductID, vote.UserID, vote.AnonymousID, vote.IsAnonymous,
		vote.Safety, vote.Taste, vote.Price, vote.StoreName, lat, lng, vote.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("投票の作成に失敗しました: %w", err)
	}
	return nil
}

// ListByProduct は指定商品の全投票をcreated_at昇順で返す。
func (r *PostgresVoteRepo) ListByProduct(ctx context.Context, productID string) ([]*model.Vote, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+voteColumns+` FROM votes WHERE product_id = $1 ORDER BY created_at ASC`,
		productID,
	)
	if err != nil {
		return nil, fmt.Errorf("商品の投票一覧の取得に失敗しました: %w", err)
	}
	return scanVotes(rows)
}

// ListByUser は指定登録ユーザーの全投票を返す。
func (r *PostgresVoteRepo) ListByUser(ctx context.Context, userID string) ([]*model.Vote, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+voteColumns+` FROM votes WHERE user_id = $1 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの投票一覧の取得に失敗しました: %w", err)
	}
	return scanVotes(rows)
}

// ListByAnonymousToken は指定匿名トークンの未移行投票を返す。
func (r *PostgresVoteRepo) ListByAnonymousToken(ctx context.Context, token string) ([]*model.Vote, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+voteColumns+` FROM votes
		 WHERE anonymous_id = $1 AND is_anonymous = true
		 ORDER BY created_at DESC`,
		token,
	)
	if err != nil {
		return nil, fmt.Errorf("匿名トークンの投票一覧の取得に失敗しました: %w", err)
	}
	return scanVotes(rows)
}

// ReassignAnonymous は匿名トークンの全未移行投票を登録ユーザーへ付け替える。
// UPDATE ... RETURNING の1文で実行されるため、各投票のuser_id設定と
// is_anonymous反転は投票単位でアトミックに行われる。
// anonymous_idは監査用にそのまま残す。is_anonymous = true の述語により、
// 移行完了後の再実行は0件にマッチしリトライ安全となる。
func (r *PostgresVoteRepo) ReassignAnonymous(ctx context.Context, userID, anonymousID string) (int, []string, error) {
	rows, err := r.db.QueryContext(ctx,
		`UPDATE votes
		 SET user_id = $1, is_anonymous = false
		 WHERE anonymous_id = $2 AND is_anonymous = true
		 RETURNING product_id`,
		userID, anonymousID,
	)
	if err != nil {
		return 0, nil, fmt.Errorf("匿名投票の付け替えに失敗しました: %w", err)
	}
	defer rows.Close()

	migrated := 0
	seen := make(map[string]struct{})
	var productIDs []string

	for rows.Next() {
		var productID string
		if err := rows.Scan(&productID); err != nil {
			return 0, nil, fmt.Errorf("付け替え結果の読み取りに失敗しました: %w", err)
		}
		migrated++
		if _, ok := seen[productID]; !ok {
			seen[productID] = struct{}{}
			productIDs = append(productIDs, productID)
		}
	}
	if err := rows.Err(); err != nil {
		return 0, nil, fmt.Errorf("付け替え結果の走査に失敗しました: %w", err)
	}

	return migrated, productIDs, nil
}

// scanVotes は投票行の集合をモデルへ読み取る。
func scanVotes(rows *sql.Rows) ([]*model.Vote, error) {
	defer rows.Close()

	var votes []*model.Vote
	for rows.Next() {
		vote, err := scanVote(rows)
		if err != nil {
			return nil, err
		}
		votes = append(votes, vote)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("投票一覧の走査に失敗しました: %w", err)
	}
	return votes, nil
}

// scanVote は1行を投票モデルへ読み取る。NULL許容カラムを適切にマッピングする。
func scanVote(rows *sql.Rows) (*model.Vote, error) {
	vote := &model.Vote{}
	var (
		userID      sql.NullString
		anonymousID sql.NullString
		price       sql.NullFloat64
		storeName   sql.NullString
		lat, lng    sql.NullFloat64
	)

	if err := rows.Scan(
		&vote.ID, &vote.ProductID, &userID, &anonymousID, &vote.IsAnonymous,
		&vote.Safety, &vote.Taste, &price, &storeName, &lat, &lng, &vote.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("投票行の読み取りに失敗しました: %w", err)
	}

	vote.UserID = userID.String
	vote.AnonymousID = anonymousID.String
	vote.StoreName = storeName.String
	if price.Valid {
		p := price.Float64
		vote.Price = &p
	}
	if lat.Valid && lng.Valid {
		vote.Location = &model.GeoPoint{Latitude: lat.Float64, Longitude: lng.Float64}
	}

	return vote, nil
}

// compile-time interface check
var _ VoteRepository = (*PostgresVoteRepo)(nil)
