package strategy

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"alpacabot/internal/marketdata"
)

type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// Signal is a strategy's request to trade. It is transient and only persisted inside a run record.
type Signal struct {
	Symbol        string   `json:"symbol"`
	Side          Side     `json:"side"`
	Qty           float64  `json:"qty"`
	Reason        string   `json:"reason"`
	TakeProfitPct *float64 `json:"take_profit_pct,omitempty"`
	StopLossPct   *float64 `json:"stop_loss_pct,omitempty"`
}

// Strategy turns a symbol list and parameters into signals.
// Implementations must not keep state between Evaluate calls.
type Strategy interface {
	Key() string
	Name() string
	DefaultParams() Params
	Evaluate(ctx context.Context, symbols []string, params Params) ([]Signal, error)
}

// Factory builds a fresh Strategy bound to a market data provider.
type Factory func(md marketdata.Provider) Strategy

// Registry maps strategy type keys to factories. It is filled once at startup.
type Registry struct {
	mu        sync.RWMutex
	md        marketdata.Provider
	factories map[string]Factory
}

// NewRegistry returns a registry with the built-in strategies registered.
func NewRegistry(md marketdata.Provider) *Registry {
	r := &Registry{md: md, factories: map[string]Factory{}}
	r.Register(SMACrossKey, NewSMACross)
	r.Register(CrossOverKey, NewCrossOver)
	return r
}

func (r *Registry) Register(key string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[key] = f
}

// Build returns a new Strategy for key, or false when the type is unknown.
func (r *Registry) Build(key string) (Strategy, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	f, ok := r.factories[key]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return f(r.md), true
}

func (r *Registry) Has(key string) bool {
	if r == nil {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[key]
	return ok
}

func (r *Registry) Keys() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	keys := make([]string, 0, len(r.factories))
	for k := range r.factories {
		keys = append(keys, k)
	}
	r.mu.RUnlock()
	sort.Strings(keys)
	return keys
}

// ParamError reports a strategy parameter that cannot be used.
type ParamError struct {
	Param  string
	Reason string
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("invalid param %q: %s", e.Param, e.Reason)
}
