package risk

import (
	"context"
	"errors"
	"math"
	"testing"

	"gorm.io/datatypes"

	"alpacabot/internal/config"
	"alpacabot/internal/models"
	"alpacabot/internal/repository/memory"
	"alpacabot/internal/strategy"
)

func TestValidate(t *testing.T) {
	limits := DefaultLimits()
	cases := []struct {
		name   string
		sig    strategy.Signal
		reason string
	}{
		{"ok", strategy.Signal{Symbol: "AAPL", Side: strategy.Buy, Qty: 1}, ""},
		{"at max", strategy.Signal{Symbol: "AAPL", Side: strategy.Sell, Qty: 100}, ""},
		{"zero qty", strategy.Signal{Symbol: "AAPL", Side: strategy.Buy, Qty: 0}, "qty must be > 0"},
		{"negative qty", strategy.Signal{Symbol: "AAPL", Side: strategy.Buy, Qty: -2}, "qty must be > 0"},
		{"over max", strategy.Signal{Symbol: "AAPL", Side: strategy.Buy, Qty: 100.5}, "qty exceeds max_position_qty (100)"},
		{"bad side", strategy.Signal{Symbol: "AAPL", Side: "hold", Qty: 1}, `unknown side "hold"`},
		{"nan qty", strategy.Signal{Symbol: "AAPL", Side: strategy.Buy, Qty: math.NaN()}, "qty must be a finite number"},
		{"inf qty", strategy.Signal{Symbol: "AAPL", Side: strategy.Buy, Qty: math.Inf(1)}, "qty must be a finite number"},
	}
	for _, tc := range cases {
		err := Validate(tc.sig, limits)
		if tc.reason == "" {
			if err != nil {
				t.Fatalf("%s: err=%v want nil", tc.name, err)
			}
			continue
		}
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("%s: err=%v want ValidationError", tc.name, err)
		}
		if verr.Reason != tc.reason {
			t.Fatalf("%s: reason=%q want=%q", tc.name, verr.Reason, tc.reason)
		}
	}
}

func TestLimitsNormalize(t *testing.T) {
	got := Limits{}.Normalize()
	if got != DefaultLimits() {
		t.Fatalf("limits=%+v want defaults", got)
	}
	if got := (Limits{MaxPositionQty: math.NaN(), MaxOrdersPerRun: 3}).Normalize(); got.MaxPositionQty != DefaultMaxPositionQty {
		t.Fatalf("nan max_position_qty not replaced: %+v", got)
	}
}

func TestValidate_NonFiniteLimit(t *testing.T) {
	err := Validate(strategy.Signal{Symbol: "AAPL", Side: strategy.Buy, Qty: 1}, Limits{MaxPositionQty: math.Inf(1), MaxOrdersPerRun: 1})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err=%v want ValidationError", err)
	}
}

func TestManagerLimits_SettingOverridesConfig(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	m := &Manager{Config: config.RiskConfig{MaxPositionQty: 50, MaxOrdersPerRun: 10}, Repo: repo}

	if got := m.Limits(ctx); got.MaxPositionQty != 50 || got.MaxOrdersPerRun != 10 {
		t.Fatalf("limits=%+v want config values", got)
	}

	_ = repo.UpsertSetting(ctx, &models.BotSetting{Key: SettingKey, Value: datatypes.JSON(`{"max_orders_per_run":3}`)})
	got := m.Limits(ctx)
	if got.MaxPositionQty != 50 || got.MaxOrdersPerRun != 3 {
		t.Fatalf("limits=%+v want qty=50 orders=3", got)
	}

	_ = repo.UpsertSetting(ctx, &models.BotSetting{Key: SettingKey, Value: datatypes.JSON(`"garbage"`)})
	if got := m.Limits(ctx); got.MaxOrdersPerRun != 10 {
		t.Fatalf("limits=%+v want fallback to config", got)
	}
}
