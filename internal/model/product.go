// Package model はドメインモデルを定義する。
package model

import "time"

// Product はグルテンフリー商品を表す。
// 集計フィールド（AverageSafety以下）は投票集合から導出されるキャッシュであり、
// 真のデータソースは常にVoteの集合である。手動で書き換えてはならない。
type Product struct {
	ID   string
	Name string // ビジネスキー。一意制約を持つ

	// 集計キャッシュ。再集計でのみ更新される
	AverageSafety   float64
	AverageTaste    float64
	AvgPrice        *float64 // 価格付き投票が1件もない場合はnil
	VoteCount       int
	RegisteredVotes int
	AnonymousVotes  int
	LastUpdated     time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Aggregate は1商品の集計結果を表す。
// スコアリング関数の出力であり、Productの集計キャッシュへ書き戻される。
type Aggregate struct {
	AverageSafety   float64
	AverageTaste    float64
	AvgPrice        *float64
	VoteCount       int
	RegisteredVotes int
	AnonymousVotes  int
}
