package market

import "sort"

// Holding is the read-only view of one open position that risk policies and
// the exit engine consume.
type Holding struct {
	Quantity     int64   `json:"qty"`
	AveragePrice float64 `json:"avg_price"`
}

// Portfolio maps symbol to holding.
type Portfolio map[string]Holding

// Clone returns an independent copy.
func (p Portfolio) Clone() Portfolio {
	out := make(Portfolio, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Symbols returns held symbols (quantity > 0) in lexical order.
func (p Portfolio) Symbols() []string {
	out := make([]string, 0, len(p))
	for sym, h := range p {
		if h.Quantity > 0 {
			out = append(out, sym)
		}
	}
	sort.Strings(out)
	return out
}

// MarkValue is the conservative value of a holding: quantity times the larger
// of average cost and live price. A missing live price falls back to cost.
func (h Holding) MarkValue(live float64) float64 {
	base := h.AveragePrice
	if live > base {
		base = live
	}
	return float64(h.Quantity) * base
}
