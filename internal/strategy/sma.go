package strategy

import (
	"context"
	"fmt"
	"strings"

	"alpacabot/internal/marketdata"
)

const (
	SMACrossKey  = "sma_cross"
	CrossOverKey = "cross_over"
)

// smaCrossover emits a buy when the fast SMA crosses above the slow SMA on the
// latest bar, and a sell when it crosses below. Both built-in types share it and
// differ in defaults and required history.
type smaCrossover struct {
	key         string
	name        string
	md          marketdata.Provider
	defaultSlow int
	// bars returns how many bars to request and the minimum needed for a signal.
	bars func(p Params, fast, slow int) (fetch, need int, err error)
}

// NewSMACross builds the sma_cross strategy: fast 10, slow 30, lookback max(slow+1, 60).
func NewSMACross(md marketdata.Provider) Strategy {
	return &smaCrossover{
		key:         SMACrossKey,
		name:        "SMA Cross",
		md:          md,
		defaultSlow: 30,
		bars: func(p Params, fast, slow int) (int, int, error) {
			need := maxInt(fast, slow) + 1
			lookback, err := p.Int("lookback", maxInt(slow+1, 60))
			if err != nil {
				return 0, 0, err
			}
			return maxInt(lookback, need), need, nil
		},
	}
}

// NewCrossOver builds the cross_over strategy: fast 10, slow 50, min_bars slow+5.
func NewCrossOver(md marketdata.Provider) Strategy {
	return &smaCrossover{
		key:         CrossOverKey,
		name:        "Crossover System",
		md:          md,
		defaultSlow: 50,
		bars: func(p Params, fast, slow int) (int, int, error) {
			minBars, err := p.Int("min_bars", slow+5)
			if err != nil {
				return 0, 0, err
			}
			return maxInt(minBars, slow+5), maxInt(fast, slow) + 2, nil
		},
	}
}

func (s *smaCrossover) Key() string  { return s.key }
func (s *smaCrossover) Name() string { return s.name }

func (s *smaCrossover) DefaultParams() Params {
	return Params{"fast": 10, "slow": s.defaultSlow, "qty": 1}
}

func (s *smaCrossover) Evaluate(ctx context.Context, symbols []string, params Params) ([]Signal, error) {
	fast, err := params.Int("fast", 10)
	if err != nil {
		return nil, err
	}
	slow, err := params.Int("slow", s.defaultSlow)
	if err != nil {
		return nil, err
	}
	if fast <= 0 {
		return nil, &ParamError{Param: "fast", Reason: "must be > 0"}
	}
	if slow <= 0 {
		return nil, &ParamError{Param: "slow", Reason: "must be > 0"}
	}
	if fast >= slow {
		return nil, &ParamError{Param: "fast", Reason: fmt.Sprintf("must be < slow (%d)", slow)}
	}
	qty, err := params.Float("qty", 1)
	if err != nil {
		return nil, err
	}
	takeProfit, err := params.OptFloat("take_profit_pct")
	if err != nil {
		return nil, err
	}
	stopLoss, err := params.OptFloat("stop_loss_pct")
	if err != nil {
		return nil, err
	}
	fetch, need, err := s.bars(params, fast, slow)
	if err != nil {
		return nil, err
	}
	if s.md == nil {
		return nil, fmt.Errorf("%s: market data provider unavailable", s.key)
	}

	out := make([]Signal, 0)
	for _, sym := range symbols {
		sym = strings.ToUpper(strings.TrimSpace(sym))
		if sym == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		bars, err := s.md.FetchBars(ctx, sym, fetch)
		if err != nil {
			return nil, fmt.Errorf("fetch bars %s: %w", sym, err)
		}
		closes := marketdata.Closes(bars)
		if len(closes) < need {
			continue
		}
		side, ok := Crossover(closes, fast, slow)
		if !ok {
			continue
		}
		dir := "UP"
		if side == Sell {
			dir = "DOWN"
		}
		out = append(out, Signal{
			Symbol:        sym,
			Side:          side,
			Qty:           qty,
			Reason:        fmt.Sprintf("SMA crossover %s (fast=%d, slow=%d)", dir, fast, slow),
			TakeProfitPct: takeProfit,
			StopLossPct:   stopLoss,
		})
	}
	return out, nil
}

// Crossover compares the fast and slow SMAs at the last two closes.
// It needs at least max(fast, slow)+1 closes.
func Crossover(closes []float64, fast, slow int) (Side, bool) {
	if fast <= 0 || slow <= 0 || len(closes) < maxInt(fast, slow)+1 {
		return "", false
	}
	prev := closes[:len(closes)-1]
	fPrev, fNow := sma(prev, fast), sma(closes, fast)
	sPrev, sNow := sma(prev, slow), sma(closes, slow)
	switch {
	case fPrev <= sPrev && fNow > sNow:
		return Buy, true
	case fPrev >= sPrev && fNow < sNow:
		return Sell, true
	}
	return "", false
}

// sma is the mean of the last n values.
func sma(values []float64, n int) float64 {
	sum := 0.0
	for _, v := range values[len(values)-n:] {
		sum += v
	}
	return sum / float64(n)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
