package marketdata

import (
	"context"
	"fmt"
	"time"
)

// Bar is one OHLCV aggregate.
type Bar struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// Provider returns up to limit of the most recent bars for symbol, oldest first.
// The result may be shorter than limit when history is missing.
type Provider interface {
	FetchBars(ctx context.Context, symbol string, limit int) ([]Bar, error)
}

// FetchError reports a market data request that could not be completed.
type FetchError struct {
	Provider string
	Symbol   string
	Attempts int
	Err      error
}

func (e *FetchError) Error() string {
	if e.Attempts > 0 {
		return fmt.Sprintf("%s bars for %s failed after %d attempts: %v", e.Provider, e.Symbol, e.Attempts, e.Err)
	}
	return fmt.Sprintf("%s bars for %s failed: %v", e.Provider, e.Symbol, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Closes extracts close prices in order.
func Closes(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

func lastN(bars []Bar, n int) []Bar {
	if n <= 0 || len(bars) <= n {
		return bars
	}
	return bars[len(bars)-n:]
}
