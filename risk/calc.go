package risk

import (
	"math"

	"github.com/rustyeddy/daytrader/market"
)

// floorLots rounds qty down to a whole number of lots.
func floorLots(qty, lot int64) int64 {
	if qty <= 0 {
		return 0
	}
	if lot <= 1 {
		return qty
	}
	return (qty / lot) * lot
}

// qtyFor is the whole number of shares value buys at price.
func qtyFor(value, price float64) int64 {
	if price <= 0 || value <= 0 || math.IsNaN(value) {
		return 0
	}
	if math.IsInf(value, 1) {
		return math.MaxInt64
	}
	// tolerate float error just below a whole share
	q := math.Floor(value/price + 1e-9)
	if q >= math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(q)
}

// room is the remaining headroom under a cap, floored at zero.
func room(capPct, base, current float64) float64 {
	return math.Max(0, capPct*base-current)
}

// BaseQuantity is the default order size for a target order value: the whole
// lots orderValue buys at price, and never less than one lot.
func BaseQuantity(orderValue, price float64, lot int64) int64 {
	if price <= 0 {
		return 0
	}
	if lot < 1 {
		lot = 1
	}
	q := floorLots(qtyFor(orderValue, price), lot)
	if q == 0 {
		q = lot
	}
	return q
}

// SectorExposure sums the conservative value of every holding by sector.
// Holdings without a sector are grouped under market.UnknownSector.
func SectorExposure(pf market.Portfolio, sectors market.SectorLookup, live map[string]float64) map[string]float64 {
	out := map[string]float64{}
	for sym, h := range pf {
		if h.Quantity <= 0 {
			continue
		}
		sec := market.UnknownSector
		if sectors != nil {
			if s, ok := sectors.SectorOf(sym); ok {
				sec = s
			}
		}
		out[sec] += h.MarkValue(live[sym])
	}
	return out
}

// PortfolioValue is the conservative total value of pf.
func PortfolioValue(pf market.Portfolio, live map[string]float64) float64 {
	var total float64
	for sym, h := range pf {
		if h.Quantity > 0 {
			total += h.MarkValue(live[sym])
		}
	}
	return total
}
