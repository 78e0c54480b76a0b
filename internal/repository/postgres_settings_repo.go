package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/hitoshi/gfrate/internal/model"
)

// PostgresSettingsRepo はPostgreSQLのsettingsテーブルを読む設定リポジトリ。
// 設定は管理操作で随時変更されうるため、結果をキャッシュせず毎回読み直す。
type PostgresSettingsRepo struct {
	db *sql.DB
}

// NewPostgresSettingsRepo はPostgresSettingsRepoを生成する。
func NewPostgresSettingsRepo(db *sql.DB) *PostgresSettingsRepo {
	return &PostgresSettingsRepo{db: db}
}

// Load は現在の設定を読み込む。
// 存在しないキーや解釈できない値はデフォルト値で補い、エラーにはしない。
// 不正値は警告ログを出して読み飛ばす。
func (r *PostgresSettingsRepo) Load(ctx context.Context) (model.Settings, error) {
	settings := model.DefaultSettings()

	rows, err := r.db.QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return settings, fmt.Errorf("設定の読み込みに失敗しました: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return settings, fmt.Errorf("設定行の読み取りに失敗しました: %w", err)
		}
		applySetting(&settings, key, value)
	}
	if err := rows.Err(); err != nil {
		return settings, fmt.Errorf("設定の走査に失敗しました: %w", err)
	}

	return settings, nil
}

// applySetting は1件の設定値をパースしてsettingsへ反映する。
func applySetting(settings *model.Settings, key, value string) {
	switch key {
	case model.SettingKeyDecayRate:
		rate, err := strconv.ParseFloat(value, 64)
		if err != nil || rate <= 0 || rate > 1 {
			slog.Warn("不正な減衰率設定を読み飛ばします",
				slog.String("key", key),
				slog.String("value", value),
			)
			return
		}
		settings.DecayRate = rate
	case model.SettingKeyDecayEnabled:
		enabled, err := strconv.ParseBool(value)
		if err != nil {
			slog.Warn("不正な減衰有効フラグを読み飛ばします",
				slog.String("key", key),
				slog.String("value", value),
			)
			return
		}
		settings.DecayEnabled = enabled
	case model.SettingKeyDecayHour:
		hour, err := strconv.Atoi(value)
		if err != nil || hour < 0 || hour > 23 {
			slog.Warn("不正な減衰実行時刻を読み飛ばします",
				slog.String("key", key),
				slog.String("value", value),
			)
			return
		}
		settings.DecayHour = hour
	case model.SettingKeySnapshotEnabled:
		enabled, err := strconv.ParseBool(value)
		if err != nil {
			slog.Warn("不正なスナップショット有効フラグを読み飛ばします",
				slog.String("key", key),
				slog.String("value", value),
			)
			return
		}
		settings.SnapshotEnabled = enabled
	}
}

// compile-time interface check
var _ SettingsRepository = (*PostgresSettingsRepo)(nil)
