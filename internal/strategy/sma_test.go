package strategy

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alpacabot/internal/marketdata"
)

type stubMarketData struct {
	closes map[string][]float64
	err    error
	limits map[string]int
}

func (s *stubMarketData) FetchBars(ctx context.Context, symbol string, limit int) ([]marketdata.Bar, error) {
	if s.limits == nil {
		s.limits = map[string]int{}
	}
	s.limits[symbol] = limit
	if s.err != nil {
		return nil, s.err
	}
	closes := s.closes[symbol]
	if len(closes) > limit {
		closes = closes[len(closes)-limit:]
	}
	out := make([]marketdata.Bar, len(closes))
	for i, c := range closes {
		out[i] = marketdata.Bar{Close: c}
	}
	return out, nil
}

func signalsOverPrefixes(series []float64, fast, slow int) map[int]Side {
	out := map[int]Side{}
	for n := 1; n <= len(series); n++ {
		if side, ok := Crossover(series[:n], fast, slow); ok {
			out[n] = side
		}
	}
	return out
}

func TestCrossover_SingleBuyOnUpCross(t *testing.T) {
	series := []float64{1, 1, 1, 1, 1, 2, 3, 4, 5, 6}
	got := signalsOverPrefixes(series, 2, 4)
	if len(got) != 1 || got[6] != Buy {
		t.Fatalf("signals=%v want exactly one buy at n=6", got)
	}
}

func TestCrossover_SingleSellOnDownCross(t *testing.T) {
	series := []float64{6, 6, 6, 6, 6, 5, 4, 3, 2, 1}
	got := signalsOverPrefixes(series, 2, 4)
	if len(got) != 1 || got[6] != Sell {
		t.Fatalf("signals=%v want exactly one sell at n=6", got)
	}
}

func TestCrossover_ConstantSeriesNoSignal(t *testing.T) {
	series := []float64{3, 3, 3, 3, 3, 3, 3, 3}
	if got := signalsOverPrefixes(series, 2, 4); len(got) != 0 {
		t.Fatalf("signals=%v want none", got)
	}
}

func TestSMACross_Evaluate(t *testing.T) {
	md := &stubMarketData{closes: map[string][]float64{
		"AAPL": {1, 1, 1, 1, 1, 2},
		"MSFT": {1, 1},
		"TSLA": {6, 6, 6, 6, 6, 5},
	}}
	tp := 0.02
	s := NewSMACross(md)
	sigs, err := s.Evaluate(context.Background(), []string{"aapl", "MSFT", "TSLA"}, Params{
		"fast":            2,
		"slow":            4,
		"qty":             3.0,
		"take_profit_pct": tp,
	})
	require.NoError(t, err)
	require.Len(t, sigs, 2)
	assert.Equal(t, "AAPL", sigs[0].Symbol)
	assert.Equal(t, Buy, sigs[0].Side)
	assert.Equal(t, 3.0, sigs[0].Qty)
	require.NotNil(t, sigs[0].TakeProfitPct)
	assert.Equal(t, tp, *sigs[0].TakeProfitPct)
	assert.Nil(t, sigs[0].StopLossPct)
	assert.Equal(t, "SMA crossover UP (fast=2, slow=4)", sigs[0].Reason)
	assert.Equal(t, Sell, sigs[1].Side)
	assert.Equal(t, 60, md.limits["AAPL"])
}

func TestSMACross_FetchErrorPropagates(t *testing.T) {
	fetchErr := &marketdata.FetchError{Provider: "stub", Symbol: "AAPL", Err: errors.New("boom")}
	s := NewSMACross(&stubMarketData{err: fetchErr})
	_, err := s.Evaluate(context.Background(), []string{"AAPL"}, Params{})
	var target *marketdata.FetchError
	require.ErrorAs(t, err, &target)
}

func TestSMACross_InvalidParams(t *testing.T) {
	s := NewSMACross(&stubMarketData{})
	cases := []Params{
		{"fast": 5, "slow": 5},
		{"fast": 0},
		{"slow": "abc"},
		{"fast": 2.5},
		{"fast": 2, "slow": 4, "qty": "NaN"},
		{"fast": 2, "slow": 4, "qty": "+Inf"},
		{"fast": 2, "slow": 4, "take_profit_pct": "-inf"},
	}
	for _, p := range cases {
		_, err := s.Evaluate(context.Background(), []string{"AAPL"}, p)
		var perr *ParamError
		if !errors.As(err, &perr) {
			t.Fatalf("params=%v err=%v want ParamError", p, err)
		}
	}
}

func TestCrossOver_NeedsTwoExtraBars(t *testing.T) {
	md := &stubMarketData{closes: map[string][]float64{
		"AAPL": {1, 1, 1, 1, 1, 2},
		"MSFT": {1, 1, 1, 1, 2},
	}}
	s := NewCrossOver(md)
	sigs, err := s.Evaluate(context.Background(), []string{"AAPL", "MSFT"}, Params{"fast": 2, "slow": 4})
	require.NoError(t, err)
	require.Len(t, sigs, 1)
	assert.Equal(t, "AAPL", sigs[0].Symbol)
	assert.Equal(t, 9, md.limits["AAPL"])
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(&stubMarketData{})
	assert.Equal(t, []string{CrossOverKey, SMACrossKey}, r.Keys())
	s, ok := r.Build(SMACrossKey)
	require.True(t, ok)
	assert.Equal(t, SMACrossKey, s.Key())
	_, ok = r.Build("nope")
	assert.False(t, ok)
	assert.False(t, r.Has("nope"))
}

func TestMergeParams(t *testing.T) {
	p := MergeParams(
		map[string]any{"fast": 10, "slow": 30},
		map[string]any{"slow": 40, "enabled": true},
		map[string]any{"fast": 5},
	)
	assert.Equal(t, Params{"fast": 5, "slow": 40}, p)
}
