package execution

import (
	"context"
	"errors"
	"math"

	"go.uber.org/zap"

	"alpacabot/internal/broker"
	"alpacabot/internal/risk"
	"alpacabot/internal/strategy"
)

// Order is one order placed during a run, as stored on the run record.
type Order struct {
	ID     string        `json:"id"`
	Symbol string        `json:"symbol"`
	Side   strategy.Side `json:"side"`
	Qty    float64       `json:"qty"`
	Reason string        `json:"reason"`
}

// Rejection is a signal dropped by the risk check.
type Rejection struct {
	Symbol string  `json:"symbol"`
	Side   string  `json:"side"`
	Qty    float64 `json:"qty"`
	Reason string  `json:"reason"`
}

type Result struct {
	Orders   []Order
	Rejected []Rejection
	// Capped counts signals not attempted because max_orders_per_run was reached.
	Capped int
}

// Executor sends validated signals to the broker.
type Executor struct {
	Broker      broker.Broker
	Logger      *zap.Logger
	TimeInForce string
}

// Execute places at most limits.MaxOrdersPerRun orders, in signal order.
// Signals failing validation are skipped. The first broker failure stops
// execution and is returned together with the orders placed before it.
func (e *Executor) Execute(ctx context.Context, signals []strategy.Signal, limits risk.Limits) (Result, error) {
	var res Result
	err := e.ExecuteInto(ctx, signals, limits, &res)
	return res, err
}

// ExecuteInto is Execute writing into res as it goes, so a caller that
// recovers from a panic still sees every order placed before it.
func (e *Executor) ExecuteInto(ctx context.Context, signals []strategy.Signal, limits risk.Limits, res *Result) error {
	if res == nil {
		return errors.New("execution: nil result")
	}
	if res.Orders == nil {
		res.Orders = make([]Order, 0)
	}
	if res.Rejected == nil {
		res.Rejected = make([]Rejection, 0)
	}
	if e == nil || e.Broker == nil {
		if len(signals) == 0 {
			return nil
		}
		return errors.New("execution: broker unavailable")
	}
	logger := e.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	limits = limits.Normalize()
	tif := e.TimeInForce
	if tif == "" {
		tif = broker.TimeInForceDay
	}

	for i, sig := range signals {
		if len(res.Orders) >= limits.MaxOrdersPerRun {
			res.Capped = len(signals) - i
			logger.Info("execution: max orders per run reached",
				zap.Int("max_orders_per_run", limits.MaxOrdersPerRun),
				zap.Int("skipped", res.Capped),
			)
			break
		}
		if err := risk.Validate(sig, limits); err != nil {
			logger.Warn("execution: signal rejected",
				zap.String("symbol", sig.Symbol),
				zap.String("side", string(sig.Side)),
				zap.Float64("qty", sig.Qty),
				zap.Error(err),
			)
			reason := err.Error()
			var verr *risk.ValidationError
			if errors.As(err, &verr) {
				reason = verr.Reason
			}
			qty := sig.Qty
			if math.IsNaN(qty) || math.IsInf(qty, 0) {
				qty = 0
			}
			res.Rejected = append(res.Rejected, Rejection{Symbol: sig.Symbol, Side: string(sig.Side), Qty: qty, Reason: reason})
			continue
		}
		placed, err := e.Broker.SubmitMarketOrder(ctx, broker.OrderRequest{
			Symbol:      sig.Symbol,
			Side:        string(sig.Side),
			Qty:         sig.Qty,
			TimeInForce: tif,
		})
		if err != nil {
			var oerr *broker.OrderError
			if !errors.As(err, &oerr) {
				err = &broker.OrderError{Symbol: sig.Symbol, Side: string(sig.Side), Qty: sig.Qty, Err: err}
			}
			return err
		}
		res.Orders = append(res.Orders, Order{
			ID:     placed.ID,
			Symbol: sig.Symbol,
			Side:   sig.Side,
			Qty:    sig.Qty,
			Reason: sig.Reason,
		})
	}
	return nil
}
