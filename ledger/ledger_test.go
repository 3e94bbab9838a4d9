package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/daytrader/market"
)

var t0 = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

func TestWeightedAverage(t *testing.T) {
	t.Parallel()
	l := New()

	p, err := l.ApplyBuy("AAA", 10, 100, 1, t0)
	require.NoError(t, err)
	assert.Equal(t, int64(10), p.Quantity)
	assert.Equal(t, 100.0, p.AveragePrice)
	assert.Equal(t, 100.0, p.PeakPrice)

	p, err = l.ApplyBuy("AAA", 30, 104, 2, t0.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(40), p.Quantity)
	assert.InDelta(t, 103.0, p.AveragePrice, 1e-9)
	assert.Equal(t, 104.0, p.PeakPrice)
	assert.Equal(t, int64(1), p.EntryTick)
	assert.Equal(t, t0, p.OpenedAt)
}

func TestSellKeepsAverage(t *testing.T) {
	t.Parallel()
	l := New()
	_, err := l.ApplyBuy("AAA", 10, 100, 1, t0)
	require.NoError(t, err)
	_, err = l.ApplyBuy("AAA", 10, 110, 2, t0)
	require.NoError(t, err)

	s, err := l.ApplySell("AAA", 5, 120)
	require.NoError(t, err)
	assert.Equal(t, int64(5), s.Quantity)
	assert.Equal(t, int64(15), s.Remaining)
	assert.InDelta(t, 75.0, s.RealizedPnL, 1e-9)
	assert.InDelta(t, 120.0/105-1, s.PnLPct, 1e-12)

	p, ok := l.Get("AAA")
	require.True(t, ok)
	assert.Equal(t, int64(15), p.Quantity)
	assert.InDelta(t, 105.0, p.AveragePrice, 1e-9)

	s, err = l.ApplySell("AAA", 50, 90)
	require.NoError(t, err)
	assert.Equal(t, int64(15), s.Quantity, "sell is capped at the held quantity")
	assert.Equal(t, int64(0), s.Remaining)
	assert.InDelta(t, -225.0, s.RealizedPnL, 1e-9)
	assert.False(t, l.Held("AAA"))
	assert.Equal(t, 0, l.Len())
}

func TestInvalidFills(t *testing.T) {
	t.Parallel()
	l := New()

	_, err := l.ApplyBuy("AAA", 0, 100, 1, t0)
	assert.Error(t, err)
	_, err = l.ApplyBuy("AAA", 1, 0, 1, t0)
	assert.Error(t, err)
	_, err = l.ApplySell("AAA", 1, 100)
	assert.Error(t, err)
	assert.Equal(t, 0, l.Len())
}

func TestMark(t *testing.T) {
	t.Parallel()
	l := New()
	_, _ = l.ApplyBuy("AAA", 10, 100, 1, t0)
	_, _ = l.ApplyBuy("BBB", 5, 50, 1, t0)

	l.Mark(map[string]float64{"AAA": 105, "BBB": 0, "CCC": 10})
	l.Mark(map[string]float64{"AAA": 102})

	a, _ := l.Get("AAA")
	assert.Equal(t, 102.0, a.LastPrice)
	assert.Equal(t, 105.0, a.PeakPrice)
	assert.Equal(t, int64(2), a.HoldTicks)

	b, _ := l.Get("BBB")
	assert.Equal(t, int64(0), b.HoldTicks)
	assert.Equal(t, 50.0, b.LastPrice)

	assert.InDelta(t, 10*102+5*50, l.MarketValue(), 1e-9)
	assert.Equal(t, market.Portfolio{
		"AAA": {Quantity: 10, AveragePrice: 100},
		"BBB": {Quantity: 5, AveragePrice: 50},
	}, l.Portfolio())
	assert.Equal(t, map[string]float64{"AAA": 102, "BBB": 50}, l.LastPrices())

	ps := l.Positions()
	require.Len(t, ps, 2)
	assert.Equal(t, "AAA", ps[0].Symbol)
	assert.Equal(t, "BBB", ps[1].Symbol)
}
