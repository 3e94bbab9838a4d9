package risk

import (
	"time"

	"github.com/rustyeddy/daytrader/market"
)

// PolicyResult is one policy's verdict on a proposed entry.
//
// When Allow is false, Scale is advisory and callers size the order at zero.
type PolicyResult struct {
	Allow           bool
	Scale           float64
	ForceFlatten    bool
	Reason          string
	MaxQuantityHint *int64
}

// Allowed returns a full-size allow.
func Allowed(reason string) PolicyResult {
	return PolicyResult{Allow: true, Scale: 1, Reason: reason}
}

// Denied returns a deny with zero scale.
func Denied(reason string) PolicyResult {
	return PolicyResult{Allow: false, Scale: 0, Reason: reason}
}

// WithHint returns r with a quantity hint attached.
func (r PolicyResult) WithHint(qty int64) PolicyResult {
	if qty < 0 {
		qty = 0
	}
	r.MaxQuantityHint = &qty
	return r
}

// Context is the read-only input to a single policy evaluation. The hub
// builds a fresh one for every evaluation; policies must not modify it.
type Context struct {
	Symbol    string
	Price     float64
	Portfolio market.Portfolio

	// LivePrices holds the latest observed price per symbol, used for
	// conservative valuation of existing holdings.
	LivePrices map[string]float64

	Budget         float64
	EquityNow      float64
	DayStartEquity float64
	// DayPnLPct is a directly supplied intraday PnL percentage, used when
	// equity figures are not available.
	DayPnLPct *float64

	Sectors        market.SectorLookup
	SectorExposure map[string]float64

	// PlannedQuantity is the order size under consideration, if any.
	PlannedQuantity *int64

	// CooldownTicks is the hub's per-symbol re-entry counter.
	CooldownTicks map[string]int

	NowTick int64
	Now     time.Time
}

// Planned returns the planned quantity, or 0 when none was supplied.
func (c Context) Planned() int64 {
	if c.PlannedQuantity == nil || *c.PlannedQuantity < 0 {
		return 0
	}
	return *c.PlannedQuantity
}

// SectorOf resolves the context symbol's sector.
func (c Context) SectorOf(sym string) (string, bool) {
	if c.Sectors == nil {
		return "", false
	}
	return c.Sectors.SectorOf(sym)
}

// livePrice is the best known live price for sym.
func (c Context) livePrice(sym string) float64 {
	if sym == c.Symbol && c.Price > 0 {
		return c.Price
	}
	return c.LivePrices[sym]
}

// Verdict is the gate's merge of every policy result.
type Verdict struct {
	Allow        bool
	Scale        float64
	ForceFlatten bool
	Reasons      []string
}

// CheckResult is the hub-facing summary of an entry check.
type CheckResult struct {
	Allow        bool
	Reason       string
	SizeHint     int64
	Scale        float64
	ForceFlatten bool
	Reasons      []string
}
