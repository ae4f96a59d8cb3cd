package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_EnvOnlyDefaults(t *testing.T) {
	cfg, err := Load("", true)
	require.NoError(t, err)

	require.Equal(t, ":8080", cfg.Server.HTTPAddr)
	require.Equal(t, "postgres", cfg.DB.Driver)
	require.Equal(t, "bot_events", cfg.Events.Channel)
	require.Equal(t, float64(100), cfg.Risk.MaxPositionQty)
	require.Equal(t, 20, cfg.Risk.MaxOrdersPerRun)
	require.Equal(t, "@every 60s", cfg.Scheduler.TickSpec)
	require.Equal(t, 2*time.Minute, cfg.Scheduler.RunTimeout)
	require.Equal(t, 6, cfg.MarketData.Massive.MaxRetries)
	require.Equal(t, 600*time.Millisecond, cfg.MarketData.Massive.BackoffBase)
	require.Equal(t, "dry-run", cfg.Alpaca.Mode)
}

func TestLoad_FileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := []byte(`
db:
  driver: memory
risk:
  max_position_qty: 5
scheduler:
  workers: 2
strategy_defaults:
  sma_cross:
    fast: 5
`)
	require.NoError(t, os.WriteFile(path, body, 0o600))
	t.Setenv("ALPACABOT_RISK_MAX_ORDERS_PER_RUN", "3")

	cfg, err := Load(path, false)
	require.NoError(t, err)

	require.Equal(t, "memory", cfg.DB.Driver)
	require.Equal(t, float64(5), cfg.Risk.MaxPositionQty)
	require.Equal(t, 3, cfg.Risk.MaxOrdersPerRun)
	require.Equal(t, 2, cfg.Scheduler.Workers)
	require.EqualValues(t, 5, cfg.StrategyDefaults["sma_cross"]["fast"])
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), false)
	require.Error(t, err)
}
