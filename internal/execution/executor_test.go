package execution

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alpacabot/internal/broker"
	"alpacabot/internal/risk"
	"alpacabot/internal/strategy"
)

type stubBroker struct {
	calls  []broker.OrderRequest
	failAt int
}

func (b *stubBroker) SubmitMarketOrder(ctx context.Context, req broker.OrderRequest) (broker.OrderResult, error) {
	b.calls = append(b.calls, req)
	if b.failAt > 0 && len(b.calls) == b.failAt {
		return broker.OrderResult{}, errors.New("insufficient buying power")
	}
	return broker.OrderResult{ID: fmt.Sprintf("o%d", len(b.calls))}, nil
}

func buys(n int) []strategy.Signal {
	out := make([]strategy.Signal, n)
	for i := range out {
		out[i] = strategy.Signal{Symbol: fmt.Sprintf("S%d", i), Side: strategy.Buy, Qty: 1, Reason: "r"}
	}
	return out
}

func TestExecute_CapsOrdersPerRun(t *testing.T) {
	b := &stubBroker{}
	e := &Executor{Broker: b}
	res, err := e.Execute(context.Background(), buys(5), risk.Limits{MaxPositionQty: 100, MaxOrdersPerRun: 3})
	require.NoError(t, err)
	assert.Len(t, res.Orders, 3)
	assert.Len(t, b.calls, 3)
	assert.Equal(t, 2, res.Capped)
	assert.Equal(t, "day", b.calls[0].TimeInForce)
}

func TestExecute_InvalidSignalNeverReachesBroker(t *testing.T) {
	b := &stubBroker{}
	e := &Executor{Broker: b}
	signals := []strategy.Signal{
		{Symbol: "AAPL", Side: strategy.Buy, Qty: 0},
		{Symbol: "MSFT", Side: strategy.Buy, Qty: 500},
		{Symbol: "TSLA", Side: strategy.Sell, Qty: 2, Reason: "x"},
	}
	res, err := e.Execute(context.Background(), signals, risk.DefaultLimits())
	require.NoError(t, err)
	require.Len(t, b.calls, 1)
	assert.Equal(t, "TSLA", b.calls[0].Symbol)
	require.Len(t, res.Rejected, 2)
	assert.Equal(t, "qty must be > 0", res.Rejected[0].Reason)
	assert.Equal(t, []Order{{ID: "o1", Symbol: "TSLA", Side: strategy.Sell, Qty: 2, Reason: "x"}}, res.Orders)
}

func TestExecute_BrokerFailureKeepsPlacedOrders(t *testing.T) {
	b := &stubBroker{failAt: 2}
	e := &Executor{Broker: b}
	res, err := e.Execute(context.Background(), buys(4), risk.DefaultLimits())
	var oerr *broker.OrderError
	require.ErrorAs(t, err, &oerr)
	assert.Equal(t, "S1", oerr.Symbol)
	assert.Len(t, res.Orders, 1)
	assert.Len(t, b.calls, 2)
}

func TestExecute_NeverExceedsMin(t *testing.T) {
	for n := 0; n <= 6; n++ {
		for limit := 1; limit <= 4; limit++ {
			b := &stubBroker{}
			res, err := (&Executor{Broker: b}).Execute(context.Background(), buys(n), risk.Limits{MaxPositionQty: 10, MaxOrdersPerRun: limit})
			require.NoError(t, err)
			want := n
			if limit < want {
				want = limit
			}
			if len(res.Orders) != want {
				t.Fatalf("n=%d limit=%d orders=%d want=%d", n, limit, len(res.Orders), want)
			}
		}
	}
}

type panicBroker struct {
	calls int
}

func (b *panicBroker) SubmitMarketOrder(ctx context.Context, req broker.OrderRequest) (broker.OrderResult, error) {
	b.calls++
	if b.calls == 2 {
		panic("socket closed")
	}
	return broker.OrderResult{ID: fmt.Sprintf("o%d", b.calls)}, nil
}

func TestExecuteInto_KeepsOrdersAcrossPanic(t *testing.T) {
	var res Result
	func() {
		defer func() { _ = recover() }()
		_ = (&Executor{Broker: &panicBroker{}}).ExecuteInto(context.Background(), buys(3), risk.DefaultLimits(), &res)
	}()
	require.Len(t, res.Orders, 1)
	assert.Equal(t, "o1", res.Orders[0].ID)
}

func TestExecute_NonFiniteQtyRejected(t *testing.T) {
	b := &stubBroker{}
	signals := []strategy.Signal{
		{Symbol: "AAPL", Side: strategy.Buy, Qty: math.NaN()},
		{Symbol: "MSFT", Side: strategy.Buy, Qty: 1},
	}
	res, err := (&Executor{Broker: b}).Execute(context.Background(), signals, risk.DefaultLimits())
	require.NoError(t, err)
	require.Len(t, res.Rejected, 1)
	assert.Equal(t, "qty must be a finite number", res.Rejected[0].Reason)
	require.Len(t, b.calls, 1)
	assert.Equal(t, "MSFT", b.calls[0].Symbol)
}
