// Package exit decides when an open position should be closed.
package exit

import (
	"sort"
	"sync"

	"github.com/rustyeddy/daytrader/internal/errs"
	"github.com/rustyeddy/daytrader/market"
)

// Exit reasons.
const (
	ReasonTakeProfit   = "take_profit"
	ReasonStopLoss     = "stop_loss"
	ReasonTrailingStop = "trailing_stop"
	ReasonHoldTooShort = "hold_too_short"
	ReasonHold         = "hold"
)

// Params are fractions of the average price, e.g. 0.012 for +1.2%.
type Params struct {
	TakeProfitPct float64
	StopLossPct   float64
	TrailingPct   float64
	MinHoldTicks  int64
	CooldownTicks int64
}

func (p Params) validate() error {
	if p.TakeProfitPct <= 0 {
		return errs.Config("exits.take_profit_pct", "must be positive, got %.3f", p.TakeProfitPct)
	}
	if p.StopLossPct >= 0 {
		return errs.Config("exits.stop_loss_pct", "must be negative, got %.3f", p.StopLossPct)
	}
	if p.TrailingPct <= 0 {
		return errs.Config("exits.trailing_pct", "must be positive, got %.3f", p.TrailingPct)
	}
	if p.MinHoldTicks < 0 {
		return errs.Config("exits.min_hold_ticks", "must not be negative, got %d", p.MinHoldTicks)
	}
	if p.CooldownTicks < 0 {
		return errs.Config("exits.cooldown_ticks", "must not be negative, got %d", p.CooldownTicks)
	}
	return nil
}

// Decision is the outcome of evaluating one position.
type Decision struct {
	ShouldExit bool
	Reason     string
	PnLPct     *float64
}

// ExitFill is a sell the caller should route.
type ExitFill struct {
	Symbol   string
	Quantity int64
	Price    float64
	Reason   string
	PnLPct   float64
}

// State is the tracking kept for one symbol.
type State struct {
	PeakPrice         float64
	HoldTicks         int64
	CooldownUntilTick int64
	tracking          bool
}

// Engine tracks each position's high-water mark and hold time.
type Engine struct {
	p Params

	mu     sync.Mutex
	states map[string]*State
}

func NewEngine(p Params) (*Engine, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	return &Engine{p: p, states: map[string]*State{}}, nil
}

func (e *Engine) Params() Params { return e.p }

func (e *Engine) state(symbol string) *State {
	st, ok := e.states[symbol]
	if !ok {
		st = &State{}
		e.states[symbol] = st
	}
	return st
}

// OnEntryFill starts tracking a new position.
func (e *Engine) OnEntryFill(symbol string, entryPrice float64, tick int64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := e.state(symbol)
	st.PeakPrice = entryPrice
	st.HoldTicks = 0
	st.CooldownUntilTick = 0
	st.tracking = true
}

// Evaluate counts one more held tick and applies the exit rules in fixed
// priority: stop loss, take profit, then trailing stop.
func (e *Engine) Evaluate(symbol string, averagePrice, currentPrice float64, tick int64) Decision {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.evaluate(symbol, averagePrice, currentPrice)
}

func (e *Engine) evaluate(symbol string, avg, cur float64) Decision {
	st := e.state(symbol)
	if !st.tracking {
		st.PeakPrice = avg
		st.tracking = true
	}
	st.HoldTicks++
	if cur > st.PeakPrice {
		st.PeakPrice = cur
	}
	if st.HoldTicks < e.p.MinHoldTicks {
		return Decision{Reason: ReasonHoldTooShort}
	}
	if avg <= 0 || cur <= 0 {
		return Decision{Reason: ReasonHold}
	}

	pnl := cur/avg - 1
	switch {
	case pnl <= e.p.StopLossPct:
		return Decision{ShouldExit: true, Reason: ReasonStopLoss, PnLPct: &pnl}
	case pnl >= e.p.TakeProfitPct:
		return Decision{ShouldExit: true, Reason: ReasonTakeProfit, PnLPct: &pnl}
	case pnl > 0 && st.PeakPrice > 0 && cur/st.PeakPrice-1 <= -e.p.TrailingPct:
		return Decision{ShouldExit: true, Reason: ReasonTrailingStop, PnLPct: &pnl}
	}
	return Decision{Reason: ReasonHold, PnLPct: &pnl}
}

// OnExitFill stops tracking symbol and starts its re-entry cooldown.
func (e *Engine) OnExitFill(symbol string, tick int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onExit(symbol, tick)
}

func (e *Engine) onExit(symbol string, tick int64) {
	st := e.state(symbol)
	st.PeakPrice = 0
	st.HoldTicks = 0
	st.tracking = false
	st.CooldownUntilTick = tick + e.p.CooldownTicks
}

// ApplyExitBatch evaluates every open, priced holding in symbol order and
// returns the sells to route. Each returned symbol is already marked exited.
func (e *Engine) ApplyExitBatch(portfolio market.Portfolio, prices map[string]float64, tick int64) []ExitFill {
	syms := make([]string, 0, len(portfolio))
	for sym, h := range portfolio {
		if h.Quantity <= 0 {
			continue
		}
		if px, ok := prices[sym]; !ok || px <= 0 {
			continue
		}
		syms = append(syms, sym)
	}
	sort.Strings(syms)

	e.mu.Lock()
	defer e.mu.Unlock()

	var fills []ExitFill
	for _, sym := range syms {
		h := portfolio[sym]
		px := prices[sym]
		d := e.evaluate(sym, h.AveragePrice, px)
		if !d.ShouldExit {
			continue
		}
		fills = append(fills, ExitFill{
			Symbol:   sym,
			Quantity: h.Quantity,
			Price:    px,
			Reason:   d.Reason,
			PnLPct:   *d.PnLPct,
		})
		e.onExit(sym, tick)
	}
	return fills
}

// CanReenter reports whether symbol's cooldown has elapsed at tick.
func (e *Engine) CanReenter(symbol string, tick int64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	st, ok := e.states[symbol]
	if !ok {
		return true
	}
	return tick >= st.CooldownUntilTick
}

// Rearm restores tracking for a position whose exit was not fully filled.
func (e *Engine) Rearm(symbol string, peak float64, holdTicks int64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := e.state(symbol)
	st.PeakPrice = peak
	st.HoldTicks = holdTicks
	st.CooldownUntilTick = 0
	st.tracking = true
}

// State returns a copy of symbol's tracking state.
func (e *Engine) State(symbol string) (State, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	st, ok := e.states[symbol]
	if !ok {
		return State{}, false
	}
	return *st, true
}

// Forget drops all state for symbol.
func (e *Engine) Forget(symbol string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.states, symbol)
}
