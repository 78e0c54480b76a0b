// Package aggregate は商品集計キャッシュの再計算を提供する。
// 投票時・移行時の単品再集計と、日次の全件再集計の2つの入口を持ち、
// どちらもscoringパッケージの純粋関数へ委譲する。
package aggregate

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/gfrate/internal/model"
	"github.com/hitoshi/gfrate/internal/repository"
	"github.com/hitoshi/gfrate/internal/scoring"
)

// Metrics は再集計のメトリクス記録に必要なインターフェース。
type Metrics interface {
	RecordRecomputeSuccess()
	RecordRecomputeFailure()
	RecordRecomputeLatency(duration time.Duration)
}

// nopMetrics はメトリクス未設定時の何もしない実装。
type nopMetrics struct{}

func (nopMetrics) RecordRecomputeSuccess()                      {}
func (nopMetrics) RecordRecomputeFailure()                      {}
func (nopMetrics) RecordRecomputeLatency(duration time.Duration) {}

// Result は全件再集計の実行結果を表す。
type Result struct {
	Succeeded int
	Failed    int
}

// Service は集計再計算のサービス層。
// 1商品の再集計はリポジトリのトランザクション内で read-compute-write を
// 1つの論理単位として実行する。同一商品への並行呼び出しは行ロックで直列化される。
type Service struct {
	productRepo    repository.ProductRepository
	settingsRepo   repository.SettingsRepository
	logger         *slog.Logger
	metrics        Metrics
	maxConcurrency int
}

// NewService はServiceの新しいインスタンスを生成する。
// maxConcurrencyが0以下の場合はデフォルト値4を使用する。
// metricsがnilの場合は記録を行わない。
func NewService(
	productRepo repository.ProductRepository,
	settingsRepo repository.SettingsRepository,
	logger *slog.Logger,
	metrics Metrics,
	maxConcurrency int,
) *Service {
	if maxConcurrency <= 0 {
		maxConcurrency = 4
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &Service{
		productRepo:    productRepo,
		settingsRepo:   settingsRepo,
		logger:         logger,
		metrics:        metrics,
		maxConcurrency: maxConcurrency,
	}
}

// RecomputeOne は1商品の集計キャッシュを再計算する。
//
// 設定は呼び出しのたびに読み直す（管理操作で減衰率が変わりうるため）。
// 商品が存在しない場合は無害なno-opとして扱い、エラーにしない
// （削除直後のIDを掴んだ呼び出し元を巻き込まないため）。
// 冪等: 投票に変化がなければ、同じnowに対して同じ結果を書き戻す。
func (s *Service) RecomputeOne(ctx context.Context, productID string) error {
	start := time.Now()

	settings, err := s.settingsRepo.Load(ctx)
	if err != nil {
		s.metrics.RecordRecomputeFailure()
		return fmt.Errorf("再集計用の設定読み込みに失敗しました: %w", err)
	}

	now := time.Now()
	found, err := s.productRepo.RecomputeAggregate(ctx, productID, now,
		func(votes []*model.Vote) model.Aggregate {
			return scoring.Compute(now, settings, votes)
		},
	)
	if err != nil {
		s.metrics.RecordRecomputeFailure()
		return fmt.Errorf("商品の再集計に失敗しました: %w", err)
	}

	if !found {
		s.logger.Info("再集計対象の商品が存在しないためスキップしました",
			slog.String("product_id", productID),
		)
		return nil
	}

	s.metrics.RecordRecomputeSuccess()
	s.metrics.RecordRecomputeLatency(time.Since(start))
	return nil
}

// RecomputeAll は全商品の集計キャッシュを再計算する。
//
// 日次の減衰パスとして外部スケジューラ（workerモード）から呼ばれる。
// semaphoreパターンで並列数を制御しながら商品ごとに独立して実行し、
// 1商品の失敗は兄弟の処理を中断しない。失敗は件数として集計され、
// エラーとしては返されない（商品列挙自体の失敗のみエラー）。
func (s *Service) RecomputeAll(ctx context.Context) (Result, error) {
	start := time.Now()

	ids, err := s.productRepo.ListIDs(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("全件再集計の商品列挙に失敗しました: %w", err)
	}

	if len(ids) == 0 {
		s.logger.Info("再集計対象の商品はありません")
		return Result{}, nil
	}

	s.logger.Info("全件再集計を開始します",
		slog.Int("product_count", len(ids)),
		slog.Int("max_concurrency", s.maxConcurrency),
	)

	sem := make(chan struct{}, s.maxConcurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex
	result := Result{}

	for _, id := range ids {
		wg.Add(1)
		sem <- struct{}{} // semaphore取得（ブロック）

		go func(productID string) {
			defer wg.Done()
			defer func() { <-sem }() // semaphore解放

			if err := s.RecomputeOne(ctx, productID); err != nil {
				s.logger.Error("商品の再集計に失敗しました",
					slog.String("product_id", productID),
					slog.String("error", err.Error()),
				)
				mu.Lock()
				result.Failed++
				mu.Unlock()
				return
			}

			mu.Lock()
			result.Succeeded++
			mu.Unlock()
		}(id)
	}

	wg.Wait()

	duration := time.Since(start)
	s.logger.Info("全件再集計が完了しました",
		slog.Int("succeeded", result.Succeeded),
		slog.Int("failed", result.Failed),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return result, nil
}
