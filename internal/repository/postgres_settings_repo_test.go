package repository

import (
	"testing"

	"github.com/hitoshi/gfrate/internal/model"
)

// applySettingが有効な設定値を反映することを検証
func TestApplySetting_ValidValues(t *testing.T) {
	settings := model.DefaultSettings()

	applySetting(&settings, model.SettingKeyDecayRate, "0.99")
	applySetting(&settings, model.SettingKeyDecayEnabled, "false")
	applySetting(&settings, model.SettingKeyDecayHour, "3")
	applySetting(&settings, model.SettingKeySnapshotEnabled, "false")

	if settings.DecayRate != 0.99 {
		t.Errorf("DecayRate = %g, want 0.99", settings.DecayRate)
	}
	if settings.DecayEnabled {
		t.Error("DecayEnabled should be false")
	}
	if settings.DecayHour != 3 {
		t.Errorf("DecayHour = %d, want 3", settings.DecayHour)
	}
	if settings.SnapshotEnabled {
		t.Error("SnapshotEnabled should be false")
	}
}

// 不正な設定値はデフォルト値のまま読み飛ばされることを検証
func TestApplySetting_InvalidValuesKeepDefaults(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"減衰率が数値でない", model.SettingKeyDecayRate, "abc"},
		{"減衰率が0", model.SettingKeyDecayRate, "0"},
		{"減衰率が1超", model.SettingKeyDecayRate, "1.5"},
		{"減衰率が負", model.SettingKeyDecayRate, "-0.5"},
		{"有効フラグが不正", model.SettingKeyDecayEnabled, "yes/no"},
		{"実行時刻が範囲外", model.SettingKeyDecayHour, "24"},
		{"実行時刻が負", model.SettingKeyDecayHour, "-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settings := model.DefaultSettings()
			applySetting(&settings, tt.key, tt.value)

			def := model.DefaultSettings()
			if settings != def {
				t.Errorf("settings = %+v, want defaults %+v", settings, def)
			}
		})
	}
}

// 未知のキーは無視されることを検証
func TestApplySetting_UnknownKeyIgnored(t *testing.T) {
	settings := model.DefaultSettings()
	applySetting(&settings, "unknown_key", "value")

	if settings != model.DefaultSettings() {
		t.Errorf("unknown key should not change settings: %+v", settings)
	}
}
