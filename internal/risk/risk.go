package risk

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"alpacabot/internal/config"
	"alpacabot/internal/strategy"
)

const (
	DefaultMaxPositionQty  = 100
	DefaultMaxOrdersPerRun = 20
)

// Limits bound what a single run may send to the broker.
type Limits struct {
	MaxPositionQty  float64 `json:"max_position_qty"`
	MaxOrdersPerRun int     `json:"max_orders_per_run"`
}

func DefaultLimits() Limits {
	return Limits{MaxPositionQty: DefaultMaxPositionQty, MaxOrdersPerRun: DefaultMaxOrdersPerRun}
}

func LimitsFromConfig(cfg config.RiskConfig) Limits {
	return Limits{MaxPositionQty: cfg.MaxPositionQty, MaxOrdersPerRun: cfg.MaxOrdersPerRun}.Normalize()
}

// Normalize replaces non-positive or non-finite fields with the defaults.
func (l Limits) Normalize() Limits {
	if l.MaxPositionQty <= 0 || math.IsNaN(l.MaxPositionQty) || math.IsInf(l.MaxPositionQty, 0) {
		l.MaxPositionQty = DefaultMaxPositionQty
	}
	if l.MaxOrdersPerRun <= 0 {
		l.MaxOrdersPerRun = DefaultMaxOrdersPerRun
	}
	return l
}

// ValidationError rejects a single signal before it reaches the broker.
type ValidationError struct {
	Symbol string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Symbol == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Symbol, e.Reason)
}

// Validate checks a signal against limits. It returns *ValidationError on rejection.
func Validate(sig strategy.Signal, limits Limits) error {
	if strings.TrimSpace(sig.Symbol) == "" {
		return &ValidationError{Reason: "symbol is required"}
	}
	if sig.Side != strategy.Buy && sig.Side != strategy.Sell {
		return &ValidationError{Symbol: sig.Symbol, Reason: fmt.Sprintf("unknown side %q", sig.Side)}
	}
	if math.IsNaN(sig.Qty) || math.IsInf(sig.Qty, 0) {
		return &ValidationError{Symbol: sig.Symbol, Reason: "qty must be a finite number"}
	}
	if math.IsNaN(limits.MaxPositionQty) || math.IsInf(limits.MaxPositionQty, 0) {
		return &ValidationError{Symbol: sig.Symbol, Reason: "max_position_qty must be a finite number"}
	}
	qty := decimal.NewFromFloat(sig.Qty)
	if !qty.IsPositive() {
		return &ValidationError{Symbol: sig.Symbol, Reason: "qty must be > 0"}
	}
	maxQty := decimal.NewFromFloat(limits.MaxPositionQty)
	if qty.GreaterThan(maxQty) {
		return &ValidationError{Symbol: sig.Symbol, Reason: fmt.Sprintf("qty exceeds max_position_qty (%s)", maxQty.String())}
	}
	return nil
}
