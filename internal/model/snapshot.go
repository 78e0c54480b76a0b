// Package model はドメインモデルを定義する。
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceSnapshot は商品の平均価格の日次スナップショットを表す。
// (ProductID, SnapshotDate) につき最大1件。書き込み後は不変。
type PriceSnapshot struct {
	ID           string
	ProductID    string
	SnapshotDate time.Time // UTCの暦日。時刻部分は常に0時
	Price        decimal.Decimal
	CreatedAt    time.Time
}

// SnapshotDay は時刻をUTCの暦日に正規化する。
func SnapshotDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
