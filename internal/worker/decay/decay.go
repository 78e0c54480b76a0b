// Package decay は日次の減衰再集計ジョブを提供する。
// 新しい投票がない商品も、時間経過による重みの減衰を集計キャッシュへ
// 反映するために毎日1回全件再集計される。
package decay

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/gfrate/internal/aggregate"
)

// Recomputer は全件再集計の実行インターフェース。
type Recomputer interface {
	// RecomputeAll は全商品の集計キャッシュを再計算する。
	RecomputeAll(ctx context.Context) (aggregate.Result, error)
}

// Job は日次減衰パスのバッチジョブ。
// 減衰が設定で無効化されていても実行される（減衰重みが1になるだけで、
// カウンタや平均価格の整合は保たれる必要があるため）。
// 冪等: 投票に変化がなければ、繰り返し実行しても集計は同じnowに対して同じ値になる。
type Job struct {
	recomputer Recomputer
	logger     *slog.Logger
}

// NewJob は新しいJobを生成する。
func NewJob(recomputer Recomputer, logger *slog.Logger) *Job {
	return &Job{
		recomputer: recomputer,
		logger:     logger,
	}
}

// Run は全商品の減衰再集計を1回実行する。
// 個々の商品の失敗は集計サービス側で隔離されるため、
// ここへ届くエラーは商品列挙の失敗のみ。
func (j *Job) Run(ctx context.Context) error {
	start := time.Now()

	result, err := j.recomputer.RecomputeAll(ctx)
	if err != nil {
		j.logger.Error("減衰再集計ジョブの実行に失敗しました",
			slog.String("error", err.Error()),
		)
		return err
	}

	duration := time.Since(start)
	j.logger.Info("減衰再集計ジョブが完了しました",
		slog.Int("succeeded", result.Succeeded),
		slog.Int("failed", result.Failed),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}
