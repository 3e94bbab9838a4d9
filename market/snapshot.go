package market

import (
	"sort"
	"time"
)

// Snapshot is one tick of the market: the latest price per symbol.
type Snapshot struct {
	Time   time.Time
	Prices map[string]float64
}

// Price returns the snapshot price for sym. Non-positive prices count as missing.
func (s Snapshot) Price(sym string) (float64, bool) {
	p, ok := s.Prices[sym]
	if !ok || p <= 0 {
		return 0, false
	}
	return p, true
}

// Symbols returns the priced symbols in lexical order so every pass over a
// snapshot is deterministic.
func (s Snapshot) Symbols() []string {
	out := make([]string, 0, len(s.Prices))
	for sym, p := range s.Prices {
		if p > 0 {
			out = append(out, sym)
		}
	}
	sort.Strings(out)
	return out
}
