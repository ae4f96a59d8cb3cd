package broker

import (
	"context"
	"fmt"
	"strings"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// AlpacaBroker places orders through the Alpaca trading API.
type AlpacaBroker struct {
	client *alpaca.Client
	logger *zap.Logger
}

func NewAlpacaBroker(apiKey, apiSecret, baseURL string, logger *zap.Logger) *AlpacaBroker {
	opts := alpaca.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
		BaseURL:   baseURL,
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AlpacaBroker{client: alpaca.NewClient(opts), logger: logger}
}

func (b *AlpacaBroker) SubmitMarketOrder(ctx context.Context, req OrderRequest) (OrderResult, error) {
	side, err := parseSide(req.Side)
	if err != nil {
		return OrderResult{}, &OrderError{Symbol: req.Symbol, Side: req.Side, Qty: req.Qty, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return OrderResult{}, &OrderError{Symbol: req.Symbol, Side: req.Side, Qty: req.Qty, Err: err}
	}
	qty := decimal.NewFromFloat(req.Qty)
	order, err := b.client.PlaceOrder(alpaca.PlaceOrderRequest{
		Symbol:      req.Symbol,
		Qty:         &qty,
		Side:        side,
		Type:        alpaca.Market,
		TimeInForce: parseTimeInForce(req.TimeInForce),
	})
	if err != nil {
		b.logger.Warn("place order failed",
			zap.String("symbol", req.Symbol),
			zap.String("side", req.Side),
			zap.Float64("qty", req.Qty),
			zap.Error(err),
		)
		return OrderResult{}, &OrderError{Symbol: req.Symbol, Side: req.Side, Qty: req.Qty, Err: err}
	}
	b.logger.Info("place order ok",
		zap.String("order_id", order.ID),
		zap.String("symbol", req.Symbol),
		zap.String("side", req.Side),
		zap.Float64("qty", req.Qty),
		zap.String("status", string(order.Status)),
	)
	return OrderResult{ID: order.ID, Status: string(order.Status)}, nil
}

func parseSide(v string) (alpaca.Side, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "buy":
		return alpaca.Buy, nil
	case "sell":
		return alpaca.Sell, nil
	}
	return "", fmt.Errorf("unsupported side %q", v)
}

func parseTimeInForce(v string) alpaca.TimeInForce {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case TimeInForceGTC:
		return alpaca.GTC
	default:
		return alpaca.Day
	}
}
