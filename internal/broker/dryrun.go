package broker

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DryRunBroker accepts every valid order without contacting an exchange.
type DryRunBroker struct {
	logger *zap.Logger

	mu     sync.Mutex
	orders []OrderRequest
}

func NewDryRunBroker(logger *zap.Logger) *DryRunBroker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DryRunBroker{logger: logger}
}

func (b *DryRunBroker) SubmitMarketOrder(ctx context.Context, req OrderRequest) (OrderResult, error) {
	if err := ctx.Err(); err != nil {
		return OrderResult{}, &OrderError{Symbol: req.Symbol, Side: req.Side, Qty: req.Qty, Err: err}
	}
	if _, err := parseSide(req.Side); err != nil {
		return OrderResult{}, &OrderError{Symbol: req.Symbol, Side: req.Side, Qty: req.Qty, Err: err}
	}
	if req.Qty <= 0 {
		return OrderResult{}, &OrderError{Symbol: req.Symbol, Side: req.Side, Qty: req.Qty, Err: errors.New("qty must be > 0")}
	}
	id := "dry-" + uuid.NewString()
	b.mu.Lock()
	b.orders = append(b.orders, req)
	b.mu.Unlock()
	b.logger.Info("dry-run order",
		zap.String("order_id", id),
		zap.String("symbol", req.Symbol),
		zap.String("side", req.Side),
		zap.Float64("qty", req.Qty),
	)
	return OrderResult{ID: id, Status: "accepted"}, nil
}

// Orders returns a copy of every accepted request.
func (b *DryRunBroker) Orders() []OrderRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]OrderRequest, len(b.orders))
	copy(out, b.orders)
	return out
}
