// Package hub runs the per-tick control loop: mark positions, route exits,
// then score, gate and route entries. The hub owns the ledger and is the
// only writer to it.
package hub

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/daytrader/broker"
	"github.com/rustyeddy/daytrader/exit"
	"github.com/rustyeddy/daytrader/internal/errs"
	"github.com/rustyeddy/daytrader/internal/id"
	"github.com/rustyeddy/daytrader/journal"
	"github.com/rustyeddy/daytrader/ledger"
	"github.com/rustyeddy/daytrader/market"
	"github.com/rustyeddy/daytrader/risk"
	"github.com/rustyeddy/daytrader/scoring"
)

// ReasonForceFlatten marks sells triggered by a risk policy rather than an
// exit rule.
const ReasonForceFlatten = "force_flatten"

// Config sizes orders and bounds the session.
type Config struct {
	// Symbols restricts trading; empty trades every priced symbol.
	Symbols      []string
	Cash         float64
	Budget       float64 // capital base for risk; 0 uses Cash
	OrderValue   float64
	LotSize      int64
	BuyThreshold float64
	OrderTimeout time.Duration
	// ThrottleTicks is how many ticks a symbol's re-entry counter runs
	// after it is sold out.
	ThrottleTicks int
	Location      *time.Location
}

func (c Config) validate() error {
	if c.Cash <= 0 {
		return errs.Config("session.cash", "must be positive, got %v", c.Cash)
	}
	if c.Budget < 0 {
		return errs.Config("session.budget", "must not be negative, got %v", c.Budget)
	}
	if c.OrderValue <= 0 {
		return errs.Config("session.order_value", "must be positive, got %v", c.OrderValue)
	}
	if c.LotSize < 1 {
		return errs.Config("session.lot_size", "must be at least 1, got %d", c.LotSize)
	}
	if c.BuyThreshold < -1 || c.BuyThreshold > 1 {
		return errs.Config("session.buy_threshold", "must be in [-1, 1], got %v", c.BuyThreshold)
	}
	if c.ThrottleTicks < 0 {
		return errs.Config("risk.throttle.cooldown_ticks", "must not be negative, got %d", c.ThrottleTicks)
	}
	return nil
}

// Deps are the hub's collaborators. Gate, Exits, Router and Scorer are
// required.
type Deps struct {
	Gate    *risk.Gate
	Exits   *exit.Engine
	Router  broker.Router
	Scorer  scoring.Scorer
	Sectors market.SectorLookup
	Journal journal.Journal
	Metrics *Metrics
	Log     zerolog.Logger
}

// Decision is an order the hub routed and the venue confirmed.
type Decision struct {
	Tick        int64
	Time        time.Time
	Symbol      string
	Side        broker.Side
	Quantity    int64
	Price       float64
	Reason      string
	Score       float64
	OrderID     string
	RealizedPnL float64
	PnLPct      float64
}

type Hub struct {
	cfg       Config
	gate      *risk.Gate
	exits     *exit.Engine
	router    broker.Router
	scorer    scoring.Scorer
	sectors   market.SectorLookup
	journal   journal.Journal
	metrics   *Metrics
	log       zerolog.Logger
	ledger    *ledger.Ledger
	sessionID string
	universe  map[string]bool

	mu             sync.Mutex
	tick           int64
	cash           float64
	states         map[string]State
	throttle       map[string]int
	scoreState     map[string]*scoring.SymbolState
	lastPrices     map[string]float64
	day            string
	dayStartEquity float64
	stats          stats

	stopped atomic.Bool
}

type stats struct {
	buys, sells, wins, losses int
	realized                  float64
	realizedPct               float64
	exitReasons               map[string]int
}

func New(cfg Config, d Deps) (*Hub, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	switch {
	case d.Gate == nil:
		return nil, errs.Config("hub.gate", "required")
	case d.Exits == nil:
		return nil, errs.Config("hub.exits", "required")
	case d.Router == nil:
		return nil, errs.Config("hub.router", "required")
	case d.Scorer == nil:
		return nil, errs.Config("hub.scorer", "required")
	}
	if d.Journal == nil {
		d.Journal = journal.Nop{}
	}
	if d.Metrics == nil {
		d.Metrics = NewMetrics(nil)
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.OrderTimeout <= 0 {
		cfg.OrderTimeout = 5 * time.Second
	}

	h := &Hub{
		cfg:        cfg,
		gate:       d.Gate,
		exits:      d.Exits,
		router:     d.Router,
		scorer:     d.Scorer,
		sectors:    d.Sectors,
		journal:    d.Journal,
		metrics:    d.Metrics,
		log:        d.Log,
		ledger:     ledger.New(),
		sessionID:  id.New(),
		cash:       cfg.Cash,
		states:     map[string]State{},
		throttle:   map[string]int{},
		scoreState: map[string]*scoring.SymbolState{},
		lastPrices: map[string]float64{},
		stats:      stats{exitReasons: map[string]int{}},
	}
	if len(cfg.Symbols) > 0 {
		h.universe = map[string]bool{}
		for _, s := range cfg.Symbols {
			h.universe[s] = true
		}
	}
	h.metrics.Cash.Set(h.cash)
	h.metrics.Equity.Set(h.cash)
	return h, nil
}

func (h *Hub) SessionID() string { return h.sessionID }

// Portfolio is a snapshot of the open holdings.
func (h *Hub) Portfolio() market.Portfolio { return h.ledger.Portfolio() }

// Positions returns the open positions sorted by symbol.
func (h *Hub) Positions() []ledger.Position { return h.ledger.Positions() }

// Stop asks RunSession to return after the current tick.
func (h *Hub) Stop() { h.stopped.Store(true) }

// StateOf reports where symbol is in the entry/exit cycle.
func (h *Hub) StateOf(symbol string) State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.states[symbol]
}

func (h *Hub) Cash() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cash
}

// Equity is cash plus every position at its last price.
func (h *Hub) Equity() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.equity()
}

func (h *Hub) equity() float64 {
	return h.cash + h.ledger.MarketValue()
}

// OnTick processes one snapshot. It returns the confirmed orders; orders
// the venue did not fill are logged and journaled but not returned.
func (h *Hub) OnTick(ctx context.Context, snap market.Snapshot) ([]Decision, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	started := time.Now()
	defer func() { h.metrics.TickDuration.Observe(time.Since(started).Seconds()) }()

	h.tick++
	tick := h.tick
	now := snap.Time
	if now.IsZero() {
		now = started
	}

	prices := h.pricesFor(snap)
	h.rollDay(now)
	h.releaseCooldowns(tick)

	for sym, px := range prices {
		h.lastPrices[sym] = px
	}
	h.ledger.Mark(prices)

	var out []Decision
	out = append(out, h.runExits(ctx, tick, now, prices)...)
	out = append(out, h.runForceFlatten(ctx, tick, now, prices)...)
	out = append(out, h.runEntries(ctx, tick, now, prices)...)

	h.decrementThrottle()
	for sym, px := range prices {
		h.symbolState(sym).Observe(px)
	}
	h.recordEquity(tick, now)
	h.metrics.Ticks.Inc()

	return out, nil
}

func (h *Hub) pricesFor(snap market.Snapshot) map[string]float64 {
	out := make(map[string]float64, len(snap.Prices))
	for _, sym := range snap.Symbols() {
		if h.universe != nil && !h.universe[sym] {
			continue
		}
		if px, ok := snap.Price(sym); ok && !math.IsInf(px, 0) && !math.IsNaN(px) {
			out[sym] = px
		}
	}
	return out
}

// rollDay resets the day's reference equity when now falls on a new
// trading day in the session time zone.
func (h *Hub) rollDay(now time.Time) {
	day := now.In(h.cfg.Location).Format("2006-01-02")
	if day == h.day {
		return
	}
	prev := h.day
	h.day = day
	h.dayStartEquity = h.equity()
	if prev != "" {
		h.log.Info().Str("day", day).Float64("day_start_equity", h.dayStartEquity).Msg("DAY_ROLL")
	}
}

func (h *Hub) releaseCooldowns(tick int64) {
	for sym, st := range h.states {
		if st == Cooldown && h.exits.CanReenter(sym, tick) {
			h.states[sym] = Flat
		}
	}
}

func (h *Hub) decrementThrottle() {
	for sym, n := range h.throttle {
		if h.ledger.Held(sym) {
			continue
		}
		if n <= 1 {
			delete(h.throttle, sym)
			continue
		}
		h.throttle[sym] = n - 1
	}
}

func (h *Hub) symbolState(sym string) *scoring.SymbolState {
	st, ok := h.scoreState[sym]
	if !ok {
		st = scoring.NewSymbolState()
		h.scoreState[sym] = st
	}
	return st
}

// guard isolates one symbol's processing so a panic skips only that symbol.
func (h *Hub) guard(sym, phase string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			h.metrics.Panics.Inc()
			h.log.Error().Str("symbol", sym).Str("phase", phase).Interface("panic", r).Msg("symbol processing panic")
		}
	}()
	fn()
}

func (h *Hub) runExits(ctx context.Context, tick int64, now time.Time, prices map[string]float64) []Decision {
	pf := h.ledger.Portfolio()
	before := make(map[string]exit.State, len(pf))
	for sym := range pf {
		if st, ok := h.exits.State(sym); ok {
			before[sym] = st
		}
	}

	var out []Decision
	for _, f := range h.exits.ApplyExitBatch(pf, prices, tick) {
		f := f
		h.guard(f.Symbol, "exit", func() {
			h.log.Info().
				Str("symbol", f.Symbol).
				Str("reason", f.Reason).
				Float64("pnl_pct", f.PnLPct*100).
				Float64("price", f.Price).
				Msg("EXIT")
			prev := before[f.Symbol]
			prev.HoldTicks++ // the batch counted this tick
			if d, ok := h.sell(ctx, tick, now, f.Symbol, f.Quantity, f.Price, f.Reason, prev); ok {
				out = append(out, d)
			}
		})
	}
	return out
}

// runForceFlatten sells every remaining holding when the gate, asked about
// the portfolio as a whole, demands it.
func (h *Hub) runForceFlatten(ctx context.Context, tick int64, now time.Time, prices map[string]float64) []Decision {
	if h.ledger.Len() == 0 {
		return nil
	}
	v := h.gate.Evaluate(h.riskContext("", 0, nil, tick, now))
	if !v.ForceFlatten {
		return nil
	}
	h.log.Warn().Strs("reasons", v.Reasons).Int("positions", h.ledger.Len()).Msg("FORCE_FLATTEN")

	var out []Decision
	for _, pos := range h.ledger.Positions() {
		pos := pos
		px, ok := prices[pos.Symbol]
		if !ok {
			px = pos.LastPrice
		}
		h.guard(pos.Symbol, "flatten", func() {
			prev, _ := h.exits.State(pos.Symbol)
			h.exits.OnExitFill(pos.Symbol, tick)
			if d, ok := h.sell(ctx, tick, now, pos.Symbol, pos.Quantity, px, ReasonForceFlatten, prev); ok {
				out = append(out, d)
			}
		})
	}
	return out
}

// sell routes a market sell for an exit the engine has already recorded.
// Anything short of a complete fill rearms the engine with prev.
func (h *Hub) sell(ctx context.Context, tick int64, now time.Time, sym string, qty int64, px float64, reason string, prev exit.State) (Decision, bool) {
	order := broker.Order{Symbol: sym, Side: broker.Sell, Quantity: qty, Price: px, Reason: reason, Time: now}
	fill, err := h.route(ctx, order)

	rec := journal.FillRecord{
		OrderID:   fill.OrderID,
		SessionID: h.sessionID,
		Time:      now,
		Tick:      tick,
		Symbol:    sym,
		Side:      string(broker.Sell),
		Quantity:  qty,
		Price:     px,
		Reason:    reason,
	}

	if err != nil || !fill.Filled || fill.Quantity <= 0 {
		h.exits.Rearm(sym, prev.PeakPrice, prev.HoldTicks)
		h.metrics.Orders.WithLabelValues("sell", "unfilled").Inc()
		rec.Error = errString(err, "not filled")
		h.log.Warn().Err(err).Str("symbol", sym).Int64("qty", qty).Str("reason", reason).Msg("sell not executed")
		h.recordFill(rec)
		return Decision{}, false
	}

	h.checkMismatch(order, fill)
	sale, err := h.ledger.ApplySell(sym, fill.Quantity, fill.Price)
	if err != nil {
		h.exits.Rearm(sym, prev.PeakPrice, prev.HoldTicks)
		rec.Error = err.Error()
		h.log.Error().Err(err).Str("symbol", sym).Msg("sell fill rejected by ledger")
		h.recordFill(rec)
		return Decision{}, false
	}

	h.cash += float64(sale.Quantity) * sale.Price
	h.metrics.Orders.WithLabelValues("sell", "filled").Inc()
	h.metrics.Exits.WithLabelValues(reason).Inc()

	h.stats.sells++
	h.stats.realized += sale.RealizedPnL
	h.stats.realizedPct += sale.PnLPct * 100
	h.stats.exitReasons[reason]++
	switch {
	case sale.RealizedPnL > 0:
		h.stats.wins++
	case sale.RealizedPnL < 0:
		h.stats.losses++
	}
	h.metrics.RealizedPnL.Set(h.stats.realized)

	if sale.Remaining == 0 {
		h.states[sym] = Cooldown
		if h.cfg.ThrottleTicks > 0 {
			h.throttle[sym] = h.cfg.ThrottleTicks
		}
	} else {
		h.exits.Rearm(sym, sale.Position.PeakPrice, prev.HoldTicks)
		h.states[sym] = Held
	}

	rec.FilledQty = sale.Quantity
	rec.FillPrice = sale.Price
	rec.Executed = true
	rec.RealizedPnL = sale.RealizedPnL
	rec.PnLPct = sale.PnLPct
	h.recordFill(rec)

	h.log.Info().
		Str("symbol", sym).
		Int64("qty", sale.Quantity).
		Float64("price", sale.Price).
		Float64("avg", sale.AveragePrice).
		Float64("pnl", sale.RealizedPnL).
		Float64("pnl_pct", sale.PnLPct*100).
		Int64("remaining", sale.Remaining).
		Str("reason", reason).
		Msg("SELL")

	return Decision{
		Tick:        tick,
		Time:        now,
		Symbol:      sym,
		Side:        broker.Sell,
		Quantity:    sale.Quantity,
		Price:       sale.Price,
		Reason:      reason,
		OrderID:     fill.OrderID,
		RealizedPnL: sale.RealizedPnL,
		PnLPct:      sale.PnLPct,
	}, true
}

func (h *Hub) runEntries(ctx context.Context, tick int64, now time.Time, prices map[string]float64) []Decision {
	syms := make([]string, 0, len(prices))
	for sym := range prices {
		syms = append(syms, sym)
	}
	sort.Strings(syms)

	var out []Decision
	for _, sym := range syms {
		if h.ledger.Held(sym) || h.states[sym] == Cooldown {
			continue
		}
		sym, px := sym, prices[sym]
		h.guard(sym, "entry", func() {
			if d, ok := h.enter(ctx, tick, now, sym, px); ok {
				out = append(out, d)
			}
		})
	}
	return out
}

func (h *Hub) enter(ctx context.Context, tick int64, now time.Time, sym string, px float64) (Decision, bool) {
	score, err := scoring.Eval(h.scorer, sym, px, scoring.Context{Tick: tick, Time: now, State: h.symbolState(sym)})
	if err != nil {
		h.metrics.ScoringErrors.Inc()
		h.log.Warn().Err(err).Str("symbol", sym).Msg("score unavailable")
	}
	if score < h.cfg.BuyThreshold {
		return Decision{}, false
	}

	base := risk.BaseQuantity(h.cfg.OrderValue, px, h.cfg.LotSize)
	res := h.gate.Check(h.riskContext(sym, px, &base, tick, now), base)
	if !res.Allow {
		h.metrics.RiskDenials.WithLabelValues(firstReason(res.Reasons)).Inc()
		h.log.Info().Str("symbol", sym).Float64("score", score).Str("reason", res.Reason).Msg("RISK_HOLD")
		return Decision{}, false
	}

	qty := base
	if res.SizeHint < qty {
		qty = res.SizeHint
	}
	if affordable := int64(h.cash / px); qty > affordable {
		qty = affordable
	}
	qty = (qty / h.cfg.LotSize) * h.cfg.LotSize
	if qty <= 0 {
		h.log.Info().Str("symbol", sym).Float64("score", score).Str("reason", res.Reason).Int64("hint", res.SizeHint).Msg("RISK_HOLD")
		return Decision{}, false
	}

	order := broker.Order{Symbol: sym, Side: broker.Buy, Quantity: qty, Price: px, Reason: "entry", Time: now}
	fill, err := h.route(ctx, order)

	rec := journal.FillRecord{
		OrderID:   fill.OrderID,
		SessionID: h.sessionID,
		Time:      now,
		Tick:      tick,
		Symbol:    sym,
		Side:      string(broker.Buy),
		Quantity:  qty,
		Price:     px,
		Reason:    res.Reason,
		Score:     score,
	}

	if err != nil || !fill.Filled || fill.Quantity <= 0 {
		h.metrics.Orders.WithLabelValues("buy", "unfilled").Inc()
		rec.Error = errString(err, "not filled")
		h.log.Warn().Err(err).Str("symbol", sym).Int64("qty", qty).Msg("buy not executed")
		h.recordFill(rec)
		return Decision{}, false
	}

	h.checkMismatch(order, fill)
	pos, err := h.ledger.ApplyBuy(sym, fill.Quantity, fill.Price, tick, now)
	if err != nil {
		rec.Error = err.Error()
		h.log.Error().Err(err).Str("symbol", sym).Msg("buy fill rejected by ledger")
		h.recordFill(rec)
		return Decision{}, false
	}

	h.cash -= float64(fill.Quantity) * fill.Price
	h.exits.OnEntryFill(sym, fill.Price, tick)
	h.states[sym] = Held
	h.stats.buys++
	h.metrics.Orders.WithLabelValues("buy", "filled").Inc()

	rec.FilledQty = fill.Quantity
	rec.FillPrice = fill.Price
	rec.Executed = true
	h.recordFill(rec)

	h.log.Info().
		Str("symbol", sym).
		Int64("qty", fill.Quantity).
		Float64("price", fill.Price).
		Float64("avg", pos.AveragePrice).
		Float64("score", score).
		Float64("scale", res.Scale).
		Str("risk", res.Reason).
		Msg("BUY")

	return Decision{
		Tick:     tick,
		Time:     now,
		Symbol:   sym,
		Side:     broker.Buy,
		Quantity: fill.Quantity,
		Price:    fill.Price,
		Reason:   res.Reason,
		Score:    score,
		OrderID:  fill.OrderID,
	}, true
}

func (h *Hub) route(ctx context.Context, o broker.Order) (broker.Fill, error) {
	octx, cancel := context.WithTimeout(ctx, h.cfg.OrderTimeout)
	defer cancel()
	return broker.Route(octx, h.router, o)
}

func (h *Hub) checkMismatch(o broker.Order, f broker.Fill) {
	if f.Quantity == o.Quantity && math.Abs(f.Price-o.Price) < 1e-9 {
		return
	}
	h.metrics.FillMismatch.Inc()
	h.log.Warn().
		Err(fmt.Errorf("%w: %s %s", errs.ErrFillMismatch, o.Side, o.Symbol)).
		Int64("requested_qty", o.Quantity).
		Int64("filled_qty", f.Quantity).
		Float64("requested_price", o.Price).
		Float64("fill_price", f.Price).
		Msg("fill differs from order")
}

func (h *Hub) riskContext(sym string, px float64, planned *int64, tick int64, now time.Time) risk.Context {
	pf := h.ledger.Portfolio()
	live := make(map[string]float64, len(h.lastPrices))
	for k, v := range h.lastPrices {
		live[k] = v
	}
	cooldown := make(map[string]int, len(h.throttle))
	for k, v := range h.throttle {
		cooldown[k] = v
	}
	budget := h.cfg.Budget
	if budget <= 0 {
		budget = h.cfg.Cash
	}

	ctx := risk.Context{
		Symbol:          sym,
		Price:           px,
		Portfolio:       pf,
		LivePrices:      live,
		Budget:          budget,
		EquityNow:       h.equity(),
		DayStartEquity:  h.dayStartEquity,
		Sectors:         h.sectors,
		PlannedQuantity: planned,
		CooldownTicks:   cooldown,
		NowTick:         tick,
		Now:             now,
	}
	if h.sectors != nil {
		ctx.SectorExposure = risk.SectorExposure(pf, h.sectors, live)
	}
	return ctx
}

func (h *Hub) recordFill(rec journal.FillRecord) {
	if rec.OrderID == "" {
		rec.OrderID = id.At(rec.Time)
	}
	if err := h.journal.RecordFill(rec); err != nil {
		h.log.Warn().Err(err).Str("symbol", rec.Symbol).Msg("journal fill")
	}
}

func (h *Hub) recordEquity(tick int64, now time.Time) {
	exposure := h.ledger.MarketValue()
	equity := h.cash + exposure
	var dayPct float64
	if h.dayStartEquity > 0 {
		dayPct = (equity/h.dayStartEquity - 1) * 100
	}

	h.metrics.Cash.Set(h.cash)
	h.metrics.Equity.Set(equity)
	h.metrics.Exposure.Set(exposure)
	h.metrics.DayPnLPct.Set(dayPct)
	h.metrics.OpenPositions.Set(float64(h.ledger.Len()))

	err := h.journal.RecordEquity(journal.EquitySnapshot{
		SessionID: h.sessionID,
		Time:      now,
		Tick:      tick,
		Cash:      h.cash,
		Equity:    equity,
		Exposure:  exposure,
		DayPnLPct: dayPct,
		Positions: h.ledger.Len(),
	})
	if err != nil {
		h.log.Warn().Err(err).Msg("journal equity")
	}
}

func firstReason(reasons []string) string {
	if len(reasons) == 0 {
		return "none"
	}
	r := reasons[0]
	// keep label cardinality bounded: "daydd_hard(-2.10%)" → "daydd_hard"
	for i, c := range r {
		if c == '(' || c == ':' {
			return r[:i]
		}
	}
	return r
}

func errString(err error, fallback string) string {
	if err == nil {
		return fallback
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "order timeout"
	}
	return err.Error()
}
