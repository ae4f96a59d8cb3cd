package models

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	MinIntervalSeconds     = 5
	MaxIntervalSeconds     = 86400
	DefaultIntervalSeconds = 60
)

// StrategyConfig is a user-defined strategy instance evaluated by the scheduler.
type StrategyConfig struct {
	ID              string `gorm:"type:varchar(36);primaryKey" json:"id"`
	Name            string `gorm:"type:varchar(120);uniqueIndex;not null" json:"name"`
	Type            string `gorm:"type:varchar(64);not null;index" json:"type"`
	Enabled         bool   `gorm:"not null;default:false;index" json:"enabled"`
	IntervalSeconds int    `gorm:"not null;default:60" json:"interval_seconds"`

	// JSON list of tickers.
	Symbols datatypes.JSON `gorm:"type:jsonb;not null" json:"symbols"`
	// Strategy-specific parameters, opaque to the engine.
	Params datatypes.JSON `gorm:"type:jsonb;not null" json:"params"`

	// Written only when a run is finalized.
	LastRunAt *time.Time `gorm:"type:timestamptz" json:"last_run_at"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime" json:"updated_at"`

	Runs []StrategyRun `gorm:"foreignKey:StrategyID;constraint:OnDelete:CASCADE" json:"-"`
}

func (StrategyConfig) TableName() string {
	return "strategy_configs"
}

func (s *StrategyConfig) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if len(s.Symbols) == 0 {
		s.Symbols = datatypes.JSON("[]")
	}
	if len(s.Params) == 0 {
		s.Params = datatypes.JSON("{}")
	}
	return nil
}

// Interval returns the configured cadence as a duration.
func (s StrategyConfig) Interval() time.Duration {
	return time.Duration(s.IntervalSeconds) * time.Second
}

// SymbolList decodes Symbols. Invalid JSON yields an empty list.
func (s StrategyConfig) SymbolList() []string {
	var out []string
	if len(s.Symbols) == 0 {
		return out
	}
	if err := json.Unmarshal(s.Symbols, &out); err != nil {
		return nil
	}
	return out
}

// ParamMap decodes Params. Invalid JSON yields an empty map.
func (s StrategyConfig) ParamMap() map[string]any {
	out := map[string]any{}
	if len(s.Params) == 0 {
		return out
	}
	if err := json.Unmarshal(s.Params, &out); err != nil || out == nil {
		return map[string]any{}
	}
	return out
}

// NormalizeSymbols trims, upper-cases and de-duplicates tickers, keeping order.
func NormalizeSymbols(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, sym := range in {
		sym = strings.ToUpper(strings.TrimSpace(sym))
		if sym == "" {
			continue
		}
		if _, ok := seen[sym]; ok {
			continue
		}
		seen[sym] = struct{}{}
		out = append(out, sym)
	}
	return out
}
