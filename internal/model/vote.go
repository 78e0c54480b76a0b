// Package model はドメインモデルを定義する。
package model

import (
	"fmt"
	"time"
)

// スコアの有効範囲。書き込み時にこの範囲へバリデーションする。
const (
	ScoreMin = 0   // safety / taste の下限
	ScoreMax = 100 // safety / taste の上限
	PriceMin = 1.0 // price の下限
	PriceMax = 5.0 // price の上限
)

// Voter は投票者の識別情報を表す。
// 登録ユーザーIDと匿名トークンのどちらか一方だけを保持する。
// 両方が設定された状態、どちらも空の状態は不正であり、Validateで検出される。
type Voter struct {
	UserID      string
	AnonymousID string
}

// RegisteredVoter は登録ユーザーのVoterを生成する。
func RegisteredVoter(userID string) Voter {
	return Voter{UserID: userID}
}

// AnonymousVoter は匿名トークンのVoterを生成する。
func AnonymousVoter(token string) Voter {
	return Voter{AnonymousID: token}
}

// IsAnonymous は匿名投票者かどうかを返す。
func (v Voter) IsAnonymous() bool {
	return v.UserID == ""
}

// Validate は識別情報が「登録ユーザーか匿名のどちらか一方」であることを検証する。
func (v Voter) Validate() error {
	if v.UserID == "" && v.AnonymousID == "" {
		return fmt.Errorf("投票者の識別情報がありません")
	}
	if v.UserID != "" && v.AnonymousID != "" {
		return fmt.Errorf("登録ユーザーIDと匿名トークンの両方が設定されています")
	}
	return nil
}

// GeoPoint は投票時の位置情報を表す。緯度・経度は常に対で保持する。
type GeoPoint struct {
	Latitude  float64
	Longitude float64
}

// Vote は1件の投票を表す。
// 挿入後は匿名→登録ユーザーへの移行を除いて不変のレコードとして扱う。
type Vote struct {
	ID          string
	ProductID   string
	UserID      string // 登録ユーザーの投票のみ設定される
	AnonymousID string // 匿名トークン。移行後も監査用に保持される
	IsAnonymous bool
	Safety      int
	Taste       int
	Price       *float64 // 任意。未入力の投票はnil
	StoreName   string   // 任意。購入店舗名
	Location    *GeoPoint
	CreatedAt   time.Time
}

// Voter は投票の識別情報をVoterとして返す。
func (v *Vote) Voter() Voter {
	if v.IsAnonymous {
		return AnonymousVoter(v.AnonymousID)
	}
	return RegisteredVoter(v.UserID)
}

// Clamped はスコアを有効範囲に収めたコピーを返す。レシーバは変更しない。
// 書き込み時バリデーションを通過したデータでは値は変わらないが、
// 読み取り時に範囲外の値を検出した場合の防御として集計前に適用する。
func (v Vote) Clamped() Vote {
	v.Safety = clampInt(v.Safety, ScoreMin, ScoreMax)
	v.Taste = clampInt(v.Taste, ScoreMin, ScoreMax)
	if v.Price != nil {
		p := clampFloat(*v.Price, PriceMin, PriceMax)
		v.Price = &p
	}
	return v
}

func clampInt(n, min, max int) int {
	if n < min {
		return min
	}
	if n > max {
		return max
	}
	return n
}

func clampFloat(f, min, max float64) float64 {
	if f < min {
		return min
	}
	if f > max {
		return max
	}
	return f
}
