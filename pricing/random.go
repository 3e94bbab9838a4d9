package pricing

import (
	"context"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/rustyeddy/daytrader/market"
)

// RandomWalkParams configure a deterministic mock feed.
type RandomWalkParams struct {
	Start      map[string]float64
	Seed       int64
	Volatility float64 // per-tick standard deviation of returns, e.g. 0.002
	Interval   time.Duration
	From       time.Time
}

// RandomWalk moves every symbol by a normal return each tick. The same
// seed always yields the same series.
type RandomWalk struct {
	p      RandomWalkParams
	rng    *rand.Rand
	syms   []string
	prices map[string]float64
	now    time.Time
}

func NewRandomWalk(p RandomWalkParams) *RandomWalk {
	if p.Interval <= 0 {
		p.Interval = time.Second
	}
	if p.From.IsZero() {
		p.From = time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)
	}
	w := &RandomWalk{
		p:      p,
		rng:    rand.New(rand.NewSource(p.Seed)),
		prices: map[string]float64{},
		now:    p.From,
	}
	for sym, px := range p.Start {
		if px > 0 {
			w.syms = append(w.syms, sym)
			w.prices[sym] = px
		}
	}
	sort.Strings(w.syms)
	return w
}

// Next never runs out; bound it with the session's tick limit.
func (w *RandomWalk) Next(ctx context.Context) (market.Snapshot, bool, error) {
	if err := ctx.Err(); err != nil {
		return market.Snapshot{}, false, err
	}
	snap := market.Snapshot{Time: w.now, Prices: make(map[string]float64, len(w.syms))}
	for _, sym := range w.syms {
		snap.Prices[sym] = w.prices[sym]
		ret := w.rng.NormFloat64() * w.p.Volatility
		w.prices[sym] = math.Max(0.01, w.prices[sym]*(1+ret))
	}
	w.now = w.now.Add(w.p.Interval)
	return snap, true, nil
}

func (w *RandomWalk) Close() error { return nil }
