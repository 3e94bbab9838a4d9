// Package ledger keeps the open positions. It changes only on confirmed fills.
package ledger

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/daytrader/market"
)

// Position is one open holding.
type Position struct {
	Symbol       string    `json:"symbol"`
	Quantity     int64     `json:"quantity"`
	AveragePrice float64   `json:"average_price"`
	PeakPrice    float64   `json:"peak_price"`
	LastPrice    float64   `json:"last_price"`
	EntryTick    int64     `json:"entry_tick"`
	HoldTicks    int64     `json:"hold_ticks"`
	OpenedAt     time.Time `json:"opened_at"`
}

// MarketValue is the position valued at its last price.
func (p Position) MarketValue() float64 {
	px := p.LastPrice
	if px <= 0 {
		px = p.AveragePrice
	}
	return float64(p.Quantity) * px
}

// Sale is the accounting result of a confirmed sell.
type Sale struct {
	Symbol       string
	Quantity     int64
	Price        float64
	AveragePrice float64
	Remaining    int64
	RealizedPnL  float64
	PnLPct       float64
	Position     Position // as it stood before the sale
}

type entry struct {
	pos Position
	avg decimal.Decimal
}

// Ledger is safe for concurrent use.
type Ledger struct {
	mu        sync.RWMutex
	positions map[string]*entry
}

func New() *Ledger {
	return &Ledger{positions: map[string]*entry{}}
}

// ApplyBuy records a confirmed buy. The average becomes the quantity
// weighted mean of the old holding and the fill.
func (l *Ledger) ApplyBuy(symbol string, qty int64, price float64, tick int64, at time.Time) (Position, error) {
	if qty <= 0 || price <= 0 {
		return Position{}, fmt.Errorf("buy %s: invalid fill %d @ %v", symbol, qty, price)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	px := decimal.NewFromFloat(price)
	e, ok := l.positions[symbol]
	if !ok {
		e = &entry{
			pos: Position{
				Symbol:    symbol,
				PeakPrice: price,
				EntryTick: tick,
				OpenedAt:  at,
			},
			avg: decimal.Zero,
		}
		l.positions[symbol] = e
	}

	oldQty := decimal.NewFromInt(e.pos.Quantity)
	addQty := decimal.NewFromInt(qty)
	newQty := oldQty.Add(addQty)
	e.avg = e.avg.Mul(oldQty).Add(px.Mul(addQty)).Div(newQty)

	e.pos.Quantity += qty
	e.pos.AveragePrice = e.avg.InexactFloat64()
	e.pos.LastPrice = price
	if price > e.pos.PeakPrice {
		e.pos.PeakPrice = price
	}
	return e.pos, nil
}

// ApplySell records a confirmed sell of up to the held quantity. The average
// of what remains is unchanged; a position sold to zero is removed.
func (l *Ledger) ApplySell(symbol string, qty int64, price float64) (Sale, error) {
	if qty <= 0 || price <= 0 {
		return Sale{}, fmt.Errorf("sell %s: invalid fill %d @ %v", symbol, qty, price)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.positions[symbol]
	if !ok {
		return Sale{}, fmt.Errorf("sell %s: no open position", symbol)
	}
	before := e.pos
	if qty > e.pos.Quantity {
		qty = e.pos.Quantity
	}

	px := decimal.NewFromFloat(price)
	pnl := px.Sub(e.avg).Mul(decimal.NewFromInt(qty))
	pct := decimal.Zero
	if e.avg.IsPositive() {
		pct = px.Div(e.avg).Sub(decimal.NewFromInt(1))
	}

	e.pos.Quantity -= qty
	e.pos.LastPrice = price
	if e.pos.Quantity == 0 {
		delete(l.positions, symbol)
	}

	return Sale{
		Symbol:       symbol,
		Quantity:     qty,
		Price:        price,
		AveragePrice: before.AveragePrice,
		Remaining:    e.pos.Quantity,
		RealizedPnL:  pnl.InexactFloat64(),
		PnLPct:       pct.InexactFloat64(),
		Position:     before,
	}, nil
}

// Mark records the latest prices for held symbols, raising peaks and
// counting one more held tick for every symbol with a price.
func (l *Ledger) Mark(prices map[string]float64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for sym, e := range l.positions {
		px, ok := prices[sym]
		if !ok || px <= 0 {
			continue
		}
		e.pos.LastPrice = px
		if px > e.pos.PeakPrice {
			e.pos.PeakPrice = px
		}
		e.pos.HoldTicks++
	}
}

func (l *Ledger) Get(symbol string) (Position, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	e, ok := l.positions[symbol]
	if !ok {
		return Position{}, false
	}
	return e.pos, true
}

func (l *Ledger) Held(symbol string) bool {
	_, ok := l.Get(symbol)
	return ok
}

// Positions returns every open position sorted by symbol.
func (l *Ledger) Positions() []Position {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Position, 0, len(l.positions))
	for _, e := range l.positions {
		out = append(out, e.pos)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// Portfolio is a snapshot of quantity and average price per symbol.
func (l *Ledger) Portfolio() market.Portfolio {
	l.mu.RLock()
	defer l.mu.RUnlock()

	pf := make(market.Portfolio, len(l.positions))
	for sym, e := range l.positions {
		pf[sym] = market.Holding{Quantity: e.pos.Quantity, AveragePrice: e.pos.AveragePrice}
	}
	return pf
}

// LastPrices returns the last marked price per held symbol.
func (l *Ledger) LastPrices() map[string]float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make(map[string]float64, len(l.positions))
	for sym, e := range l.positions {
		out[sym] = e.pos.LastPrice
	}
	return out
}

// MarketValue sums every position at its last price.
func (l *Ledger) MarketValue() float64 {
	var total float64
	for _, p := range l.Positions() {
		total += p.MarketValue()
	}
	return total
}

func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.positions)
}
