// Package worker は日次バッチジョブのスケジューリングを提供する。
// ジョブそのものはサブパッケージ（decay, snapshot）が持ち、
// このパッケージは「毎日UTCのH時に実行する」という待ち合わせだけを担う。
package worker

import (
	"context"
	"log/slog"
	"time"
)

// NextRun はnowより後で最も近い「UTCのhour時ちょうど」を返す。
// hourが範囲外の場合は0時として扱う。
func NextRun(now time.Time, hour int) time.Time {
	if hour < 0 || hour > 23 {
		hour = 0
	}

	u := now.UTC()
	next := time.Date(u.Year(), u.Month(), u.Day(), hour, 0, 0, 0, time.UTC)
	if !next.After(u) {
		next = next.Add(24 * time.Hour)
	}
	return next
}

// RunDaily は毎日指定時刻（UTC）にfnを実行し続ける。
// 実行時刻は毎サイクルhourFnで取り直す（設定変更を次回分から反映するため）。
// コンテキストがキャンセルされるまで実行を継続する。
// fnのエラーはログに記録するだけで、ループは停止しない。
func RunDaily(ctx context.Context, logger *slog.Logger, name string, hourFn func(ctx context.Context) int, fn func(ctx context.Context) error) {
	for {
		hour := hourFn(ctx)
		next := NextRun(time.Now(), hour)
		wait := time.Until(next)

		logger.Info("日次ジョブの次回実行を待機します",
			slog.String("job", name),
			slog.Time("next_run", next),
			slog.Int("hour_utc", hour),
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			logger.Info("日次ジョブを停止しました", slog.String("job", name))
			return
		case <-timer.C:
		}

		if err := fn(ctx); err != nil {
			logger.Error("日次ジョブの実行に失敗しました",
				slog.String("job", name),
				slog.String("error", err.Error()),
			)
		}
	}
}
