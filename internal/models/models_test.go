package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestNormalizeSymbols(t *testing.T) {
	got := NormalizeSymbols([]string{" aapl", "MSFT", "", "aapl ", "tsla"})
	assert.Equal(t, []string{"AAPL", "MSFT", "TSLA"}, got)
	assert.Empty(t, NormalizeSymbols(nil))
	assert.NotNil(t, NormalizeSymbols(nil))
}

func TestStrategyConfigDecoders(t *testing.T) {
	s := StrategyConfig{
		IntervalSeconds: 90,
		Symbols:         datatypes.JSON(`["AAPL","MSFT"]`),
		Params:          datatypes.JSON(`{"fast":5}`),
	}
	assert.Equal(t, 90*time.Second, s.Interval())
	assert.Equal(t, []string{"AAPL", "MSFT"}, s.SymbolList())
	assert.Equal(t, map[string]any{"fast": float64(5)}, s.ParamMap())

	bad := StrategyConfig{Symbols: datatypes.JSON(`{`), Params: datatypes.JSON(`[1]`)}
	assert.Nil(t, bad.SymbolList())
	assert.Equal(t, map[string]any{}, bad.ParamMap())
}

func TestBeforeCreateDefaults(t *testing.T) {
	s := &StrategyConfig{}
	require.NoError(t, s.BeforeCreate(nil))
	assert.NotEmpty(t, s.ID)
	assert.JSONEq(t, `[]`, string(s.Symbols))
	assert.JSONEq(t, `{}`, string(s.Params))

	r := &StrategyRun{ID: "fixed"}
	require.NoError(t, r.BeforeCreate(nil))
	assert.Equal(t, "fixed", r.ID)
}

func TestRunTerminal(t *testing.T) {
	assert.False(t, StrategyRun{Status: RunStatusRunning}.Terminal())
	assert.True(t, StrategyRun{Status: RunStatusOK}.Terminal())
	assert.True(t, StrategyRun{Status: RunStatusError}.Terminal())
}
