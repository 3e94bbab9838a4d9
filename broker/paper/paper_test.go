package paper

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/daytrader/broker"
)

func TestPaperFills(t *testing.T) {
	t.Parallel()

	r, err := New(Options{SlippageBps: 10}, zerolog.Nop())
	require.NoError(t, err)
	ctx := context.Background()

	f, err := r.Buy(ctx, broker.Order{Symbol: "AAA", Quantity: 10, Price: 100})
	require.NoError(t, err)
	assert.True(t, f.Filled)
	assert.Equal(t, int64(10), f.Quantity)
	assert.InDelta(t, 100.1, f.Price, 1e-9)
	assert.Len(t, f.OrderID, 26)

	f, err = r.Sell(ctx, broker.Order{Symbol: "AAA", Quantity: 10, Price: 100})
	require.NoError(t, err)
	assert.InDelta(t, 99.9, f.Price, 1e-9)

	orders := r.Orders()
	require.Len(t, orders, 2)
	assert.Equal(t, broker.Buy, orders[0].Order.Side)
	assert.Equal(t, broker.Sell, orders[1].Order.Side)
}

func TestPaperPartialAndReject(t *testing.T) {
	t.Parallel()

	r, err := New(Options{MaxFillQty: 3, Reject: []string{"BAD"}}, zerolog.Nop())
	require.NoError(t, err)
	ctx := context.Background()

	f, err := r.Sell(ctx, broker.Order{Symbol: "AAA", Quantity: 10, Price: 50})
	require.NoError(t, err)
	assert.Equal(t, int64(3), f.Quantity)
	assert.Equal(t, 50.0, f.Price)

	f, err = r.Buy(ctx, broker.Order{Symbol: "BAD", Quantity: 1, Price: 50})
	assert.ErrorIs(t, err, broker.ErrRejected)
	assert.False(t, f.Filled)

	_, err = r.Buy(ctx, broker.Order{Symbol: "AAA", Quantity: 0, Price: 50})
	assert.ErrorIs(t, err, broker.ErrInvalidOrder)

	orders := r.Orders()
	require.Len(t, orders, 3)
	assert.Error(t, orders[1].Err)
}

func TestPaperHonorsContext(t *testing.T) {
	t.Parallel()

	r, err := New(Options{}, zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f, err := r.Buy(ctx, broker.Order{Symbol: "AAA", Quantity: 1, Price: 1})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, f.Filled)
}

func TestNewValidation(t *testing.T) {
	t.Parallel()

	_, err := New(Options{SlippageBps: -1}, zerolog.Nop())
	assert.Error(t, err)
	_, err = New(Options{MaxFillQty: -1}, zerolog.Nop())
	assert.Error(t, err)
}

func TestRoute(t *testing.T) {
	t.Parallel()

	r, err := New(Options{}, zerolog.Nop())
	require.NoError(t, err)

	f, err := broker.Route(context.Background(), r, broker.Order{Symbol: "AAA", Side: broker.Sell, Quantity: 2, Price: 5})
	require.NoError(t, err)
	assert.True(t, f.Filled)

	_, err = broker.Route(context.Background(), r, broker.Order{Symbol: "AAA", Side: "HOLD", Quantity: 2, Price: 5})
	assert.ErrorIs(t, err, broker.ErrInvalidOrder)
}
