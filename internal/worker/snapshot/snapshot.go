// Package snapshot は商品平均価格の日次スナップショット取得ジョブを提供する。
// 前回スナップショットとの差分が閾値以上の商品についてのみ、
// 当日のUTC暦日付きスナップショットを書き込む。
package snapshot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hitoshi/gfrate/internal/model"
	"github.com/hitoshi/gfrate/internal/repository"
)

// threshold は新しいスナップショットを書く最小の価格差。
// |今回の平均価格 - 前回スナップショットの価格| がこの値以上で書き込む。
var threshold = decimal.NewFromFloat(0.2)

// Metrics はスナップショット取得のメトリクス記録に必要なインターフェース。
type Metrics interface {
	RecordSnapshotsWritten(count int)
}

// nopMetrics はメトリクス未設定時の何もしない実装。
type nopMetrics struct{}

func (nopMetrics) RecordSnapshotsWritten(count int) {}

// Job は価格スナップショットの日次バッチジョブ。
// 冪等: 同一のUTC暦日に2回実行されても、2回目は各商品についてno-opとなる
// （(product_id, snapshot_date) の一意制約とON CONFLICT DO NOTHINGによる）。
type Job struct {
	productRepo  repository.ProductRepository
	snapshotRepo repository.SnapshotRepository
	settingsRepo repository.SettingsRepository
	logger       *slog.Logger
	metrics      Metrics
}

// NewJob は新しいJobを生成する。metricsがnilの場合は記録を行わない。
func NewJob(
	productRepo repository.ProductRepository,
	snapshotRepo repository.SnapshotRepository,
	settingsRepo repository.SettingsRepository,
	logger *slog.Logger,
	metrics Metrics,
) *Job {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &Job{
		productRepo:  productRepo,
		snapshotRepo: snapshotRepo,
		settingsRepo: settingsRepo,
		logger:       logger,
		metrics:      metrics,
	}
}

// Run は平均価格が定義されている全商品についてスナップショット取得を1回実行し、
// 書き込んだ件数を返す。
//
// 設定は実行のたびに読み直し、スナップショットが無効なら全体をスキップする。
// 1商品の失敗は兄弟の処理を中断せず、ログに記録して続行する。
func (j *Job) Run(ctx context.Context) (int, error) {
	start := time.Now()

	settings, err := j.settingsRepo.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("スナップショット用の設定読み込みに失敗しました: %w", err)
	}
	if !settings.SnapshotEnabled {
		j.logger.Info("価格スナップショットは設定で無効化されています")
		return 0, nil
	}

	products, err := j.productRepo.ListWithPrice(ctx)
	if err != nil {
		return 0, fmt.Errorf("スナップショット対象商品の列挙に失敗しました: %w", err)
	}

	today := model.SnapshotDay(time.Now())
	written := 0
	failed := 0

	for _, product := range products {
		ok, err := j.captureOne(ctx, product, today)
		if err != nil {
			failed++
			j.logger.Error("商品のスナップショット取得に失敗しました",
				slog.String("product_id", product.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		if ok {
			written++
		}
	}

	if written > 0 {
		j.metrics.RecordSnapshotsWritten(written)
	}

	duration := time.Since(start)
	j.logger.Info("価格スナップショットジョブが完了しました",
		slog.Int("products", len(products)),
		slog.Int("written", written),
		slog.Int("failed", failed),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return written, nil
}

// captureOne は1商品のスナップショット取得を行う。
// 前回スナップショットとの差が閾値未満なら書き込まずfalseを返す。
func (j *Job) captureOne(ctx context.Context, product *model.Product, today time.Time) (bool, error) {
	if product.AvgPrice == nil {
		return false, nil
	}
	price := decimal.NewFromFloat(*product.AvgPrice).Round(2)

	last, err := j.snapshotRepo.FindLatestByProduct(ctx, product.ID)
	if err != nil {
		return false, err
	}

	if last != nil && price.Sub(last.Price).Abs().LessThan(threshold) {
		return false, nil
	}

	inserted, err := j.snapshotRepo.Create(ctx, &model.PriceSnapshot{
		ID:           uuid.NewString(),
		ProductID:    product.ID,
		SnapshotDate: today,
		Price:        price,
		CreatedAt:    time.Now(),
	})
	if err != nil {
		return false, err
	}

	// 同日分が既に存在する場合はinserted=false（無害なno-op）
	return inserted, nil
}
