package broker

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDryRunBroker_Submit(t *testing.T) {
	b := NewDryRunBroker(nil)
	res, err := b.SubmitMarketOrder(context.Background(), OrderRequest{Symbol: "AAPL", Side: "buy", Qty: 1, TimeInForce: TimeInForceDay})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(res.ID, "dry-"))
	assert.Len(t, b.Orders(), 1)
}

func TestDryRunBroker_Rejects(t *testing.T) {
	b := NewDryRunBroker(nil)
	_, err := b.SubmitMarketOrder(context.Background(), OrderRequest{Symbol: "AAPL", Side: "short", Qty: 1})
	var oerr *OrderError
	require.True(t, errors.As(err, &oerr))
	assert.Equal(t, "AAPL", oerr.Symbol)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = b.SubmitMarketOrder(ctx, OrderRequest{Symbol: "AAPL", Side: "buy", Qty: 1})
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, b.Orders())
}

func TestParseTimeInForce(t *testing.T) {
	assert.EqualValues(t, "day", parseTimeInForce(""))
	assert.EqualValues(t, "gtc", parseTimeInForce("GTC"))
}
