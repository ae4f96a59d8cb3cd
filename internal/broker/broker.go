package broker

import (
	"context"
	"fmt"
)

const (
	TimeInForceDay = "day"
	TimeInForceGTC = "gtc"
)

type OrderRequest struct {
	Symbol      string
	Side        string
	Qty         float64
	TimeInForce string
}

type OrderResult struct {
	ID     string
	Status string
}

// Broker submits orders. Implementations must be safe for concurrent use.
type Broker interface {
	SubmitMarketOrder(ctx context.Context, req OrderRequest) (OrderResult, error)
}

// OrderError wraps a rejected or failed order submission.
type OrderError struct {
	Symbol string
	Side   string
	Qty    float64
	Err    error
}

func (e *OrderError) Error() string {
	return fmt.Sprintf("order %s %v %s failed: %v", e.Side, e.Qty, e.Symbol, e.Err)
}

func (e *OrderError) Unwrap() error { return e.Err }
