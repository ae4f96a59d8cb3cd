package risk

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"alpacabot/internal/config"
	"alpacabot/internal/repository"
)

// SettingKey is the bot_settings row that overrides configured limits.
const SettingKey = "risk"

// Manager resolves the limits in force for a run: config defaults,
// overridden field by field by the "risk" setting.
type Manager struct {
	Config config.RiskConfig
	Repo   repository.SettingRepository
	Logger *zap.Logger
}

func (m *Manager) Limits(ctx context.Context) Limits {
	if m == nil {
		return DefaultLimits()
	}
	limits := LimitsFromConfig(m.Config)
	if m.Repo == nil {
		return limits
	}
	item, err := m.Repo.GetSetting(ctx, SettingKey)
	if err != nil {
		if m.Logger != nil {
			m.Logger.Warn("risk: load limits setting failed, using config", zap.Error(err))
		}
		return limits
	}
	if item == nil || len(item.Value) == 0 {
		return limits
	}
	var override struct {
		MaxPositionQty  *float64 `json:"max_position_qty"`
		MaxOrdersPerRun *int     `json:"max_orders_per_run"`
	}
	if err := json.Unmarshal(item.Value, &override); err != nil {
		if m.Logger != nil {
			m.Logger.Warn("risk: invalid limits setting, using config", zap.Error(err))
		}
		return limits
	}
	if override.MaxPositionQty != nil && *override.MaxPositionQty > 0 {
		limits.MaxPositionQty = *override.MaxPositionQty
	}
	if override.MaxOrdersPerRun != nil && *override.MaxOrdersPerRun > 0 {
		limits.MaxOrdersPerRun = *override.MaxOrdersPerRun
	}
	return limits
}
