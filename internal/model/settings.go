// Package model はドメインモデルを定義する。
package model

// settingsテーブルのキー。
const (
	SettingKeyDecayRate       = "decay_rate"
	SettingKeyDecayEnabled    = "decay_enabled"
	SettingKeyDecayHour       = "decay_hour"
	SettingKeySnapshotEnabled = "snapshot_enabled"
)

// デフォルト設定値。settingsテーブルに該当キーがない場合に使用する。
const (
	DefaultDecayRate       = 0.995 // 1日あたりの重み残存率（0.5%/日の減衰）
	DefaultDecayEnabled    = true
	DefaultDecayHour       = 0 // 減衰再集計の実行時刻（UTC時）
	DefaultSnapshotEnabled = true
)

// Settings は再集計・スナップショットの実行時設定を表す。
// 管理操作で変更されうるため、各サイクルの開始時に毎回読み直し、
// 呼び出しをまたいでキャッシュしてはならない。
type Settings struct {
	DecayRate       float64 // 1日あたりの重み残存率。(0,1]
	DecayEnabled    bool    // falseのとき全投票の減衰重みを1とする
	DecayHour       int     // 日次減衰パスの実行時刻（UTC時、0-23）
	SnapshotEnabled bool    // falseのとき価格スナップショットを全てスキップ
}

// DefaultSettings はデフォルト値で初期化されたSettingsを返す。
func DefaultSettings() Settings {
	return Settings{
		DecayRate:       DefaultDecayRate,
		DecayEnabled:    DefaultDecayEnabled,
		DecayHour:       DefaultDecayHour,
		SnapshotEnabled: DefaultSnapshotEnabled,
	}
}
