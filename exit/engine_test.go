package exit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/daytrader/internal/errs"
	"github.com/rustyeddy/daytrader/market"
)

func newTestEngine(t *testing.T, mut func(*Params)) *Engine {
	t.Helper()
	p := Params{
		TakeProfitPct: 0.012,
		StopLossPct:   -0.01,
		TrailingPct:   0.02,
		MinHoldTicks:  3,
		CooldownTicks: 2,
	}
	if mut != nil {
		mut(&p)
	}
	e, err := NewEngine(p)
	require.NoError(t, err)
	return e
}

func TestTakeProfitAfterMinHold(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, nil)
	e.OnEntryFill("AAA", 100, 1)

	d := e.Evaluate("AAA", 100, 100, 2)
	assert.Equal(t, ReasonHoldTooShort, d.Reason)
	assert.False(t, d.ShouldExit)

	d = e.Evaluate("AAA", 100, 103, 3)
	assert.Equal(t, ReasonHoldTooShort, d.Reason)

	d = e.Evaluate("AAA", 100, 103, 4)
	assert.True(t, d.ShouldExit)
	assert.Equal(t, ReasonTakeProfit, d.Reason)
	require.NotNil(t, d.PnLPct)
	assert.InDelta(t, 0.03, *d.PnLPct, 1e-9)
}

func TestPeakTrackedDuringMinHold(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, func(p *Params) { p.MinHoldTicks = 5 })
	e.OnEntryFill("AAA", 100, 0)

	e.Evaluate("AAA", 100, 104, 1)
	st, ok := e.State("AAA")
	require.True(t, ok)
	assert.Equal(t, 104.0, st.PeakPrice)
	assert.Equal(t, int64(1), st.HoldTicks)
}

func TestTrailingStop(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, func(p *Params) {
		p.TakeProfitPct = 0.05
		p.MinHoldTicks = 0
	})
	e.OnEntryFill("AAA", 100, 0)

	assert.Equal(t, ReasonHold, e.Evaluate("AAA", 100, 101, 1).Reason)
	assert.Equal(t, ReasonHold, e.Evaluate("AAA", 100, 103, 2).Reason)

	d := e.Evaluate("AAA", 100, 100.9, 3)
	assert.True(t, d.ShouldExit)
	assert.Equal(t, ReasonTrailingStop, d.Reason)
	assert.InDelta(t, 0.009, *d.PnLPct, 1e-9)
}

func TestTrailingStopNeedsProfit(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, func(p *Params) {
		p.TakeProfitPct = 0.05
		p.StopLossPct = -0.5
		p.MinHoldTicks = 0
	})
	e.OnEntryFill("AAA", 100, 0)
	e.Evaluate("AAA", 100, 104, 1)

	d := e.Evaluate("AAA", 100, 99, 2)
	assert.False(t, d.ShouldExit)
	assert.Equal(t, ReasonHold, d.Reason)
}

func TestStopLossWinsOverTakeProfit(t *testing.T) {
	t.Parallel()
	// Thresholds that overlap on the loss side, built past validation.
	e := &Engine{
		p:      Params{TakeProfitPct: -0.05, StopLossPct: -0.01, TrailingPct: 0.02},
		states: map[string]*State{},
	}
	e.OnEntryFill("AAA", 100, 0)

	d := e.Evaluate("AAA", 100, 98, 1)
	assert.True(t, d.ShouldExit)
	assert.Equal(t, ReasonStopLoss, d.Reason)
	assert.InDelta(t, -0.02, *d.PnLPct, 1e-9)
}

func TestApplyExitBatch(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, func(p *Params) { p.MinHoldTicks = 0 })
	for _, s := range []string{"AAA", "BBB", "CCC", "DDD"} {
		e.OnEntryFill(s, 100, 0)
	}

	pf := market.Portfolio{
		"CCC": {Quantity: 5, AveragePrice: 100},
		"AAA": {Quantity: 10, AveragePrice: 100},
		"BBB": {Quantity: 7, AveragePrice: 100},
		"DDD": {Quantity: 3, AveragePrice: 100},
		"EEE": {Quantity: 0, AveragePrice: 100},
	}
	prices := map[string]float64{"AAA": 102, "BBB": 100.5, "CCC": 98}

	fills := e.ApplyExitBatch(pf, prices, 7)
	require.Len(t, fills, 2)
	assert.Equal(t, ExitFill{Symbol: "AAA", Quantity: 10, Price: 102, Reason: ReasonTakeProfit, PnLPct: fills[0].PnLPct}, fills[0])
	assert.Equal(t, "CCC", fills[1].Symbol)
	assert.Equal(t, ReasonStopLoss, fills[1].Reason)

	assert.False(t, e.CanReenter("AAA", 8))
	assert.True(t, e.CanReenter("AAA", 9))
	assert.True(t, e.CanReenter("BBB", 8))
	assert.True(t, e.CanReenter("ZZZ", 0))

	st, _ := e.State("DDD")
	assert.Equal(t, int64(0), st.HoldTicks, "unpriced holdings are not evaluated")
}

func TestRearmAfterFailedExit(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, func(p *Params) { p.MinHoldTicks = 0 })
	e.OnEntryFill("AAA", 100, 0)
	e.Evaluate("AAA", 100, 105, 1)
	e.OnExitFill("AAA", 1)
	assert.False(t, e.CanReenter("AAA", 2))

	e.Rearm("AAA", 105, 1)
	st, ok := e.State("AAA")
	require.True(t, ok)
	assert.Equal(t, 105.0, st.PeakPrice)
	assert.Equal(t, int64(1), st.HoldTicks)
	assert.True(t, e.CanReenter("AAA", 2))

	e.Forget("AAA")
	_, ok = e.State("AAA")
	assert.False(t, ok)
}

func TestNewEngineValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		mut  func(*Params)
		msg  string
	}{
		{"take profit", func(p *Params) { p.TakeProfitPct = 0 }, "exits.take_profit_pct"},
		{"stop loss", func(p *Params) { p.StopLossPct = 0.01 }, "configuration error: exits.stop_loss_pct: must be negative, got 0.010"},
		{"trailing", func(p *Params) { p.TrailingPct = -1 }, "exits.trailing_pct"},
		{"min hold", func(p *Params) { p.MinHoldTicks = -1 }, "exits.min_hold_ticks"},
		{"cooldown", func(p *Params) { p.CooldownTicks = -1 }, "exits.cooldown_ticks"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Params{TakeProfitPct: 0.01, StopLossPct: -0.01, TrailingPct: 0.01}
			tt.mut(&p)
			_, err := NewEngine(p)
			require.ErrorIs(t, err, errs.ErrConfiguration)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}
