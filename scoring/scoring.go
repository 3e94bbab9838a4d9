// Package scoring is the boundary to signal computation. A Scorer turns the
// latest price of a symbol into a score in [-1, 1]; the hub buys at or above
// its threshold.
package scoring

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rustyeddy/daytrader/internal/errs"
)

type Scorer interface {
	Score(symbol string, price float64, ctx Context) (float64, error)
}

// Context is what the hub knows about the symbol when it asks for a score.
type Context struct {
	Tick  int64
	Time  time.Time
	State *SymbolState
}

// SymbolState is per-symbol history owned by the hub. The hub calls Observe
// once per tick after scoring, so during Score PrevPrice is the price from
// the previous tick.
type SymbolState struct {
	PrevPrice float64
	Observed  int64

	emas map[int]*EMA
}

func NewSymbolState() *SymbolState {
	return &SymbolState{emas: map[int]*EMA{}}
}

// Observe records price as the latest seen.
func (s *SymbolState) Observe(price float64) {
	if price <= 0 {
		return
	}
	for _, e := range s.emas {
		e.Update(price)
	}
	s.PrevPrice = price
	s.Observed++
}

// EMA returns the symbol's EMA for period, starting one if needed.
func (s *SymbolState) EMA(period int) *EMA {
	if s.emas == nil {
		s.emas = map[int]*EMA{}
	}
	e, ok := s.emas[period]
	if !ok {
		e = NewEMA(period)
		s.emas[period] = e
	}
	return e
}

// Clamp bounds x to [-1, 1]. NaN is 0.
func Clamp(x float64) float64 {
	switch {
	case math.IsNaN(x):
		return 0
	case x > 1:
		return 1
	case x < -1:
		return -1
	}
	return x
}

// Eval calls s and never fails the caller: errors and panics give a zero
// score and an error wrapping errs.ErrScoring.
func Eval(s Scorer, symbol string, price float64, ctx Context) (score float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			score = 0
			err = fmt.Errorf("%w: %s: panic: %v", errs.ErrScoring, symbol, r)
		}
	}()
	if s == nil {
		return 0, fmt.Errorf("%w: no scorer", errs.ErrScoring)
	}
	v, err := s.Score(symbol, price, ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", errs.ErrScoring, symbol, err)
	}
	return Clamp(v), nil
}

// Params configure the built-in scorers.
type Params struct {
	Name    string             `json:"name" yaml:"name" default:"momentum"`
	Gain    float64            `json:"gain" yaml:"gain" default:"50"`
	Fast    int                `json:"fast" yaml:"fast" default:"5"`
	Slow    int                `json:"slow" yaml:"slow" default:"20"`
	Scores  map[string]float64 `json:"scores,omitempty" yaml:"scores,omitempty"`
	Default float64            `json:"default" yaml:"default"`
}

// ByName builds one of the built-in scorers.
func ByName(p Params) (Scorer, error) {
	switch strings.ToLower(strings.TrimSpace(p.Name)) {
	case "momentum", "":
		return Momentum{Gain: p.Gain}, nil
	case "ema-cross", "emacross":
		if p.Fast <= 0 || p.Slow <= p.Fast {
			return nil, errs.Config("scoring.slow", "must exceed fast (%d), got %d", p.Fast, p.Slow)
		}
		return EMACross{Fast: p.Fast, Slow: p.Slow, Gain: p.Gain}, nil
	case "static":
		return Static{Scores: p.Scores, Default: p.Default}, nil
	default:
		return nil, errs.Config("scoring.name", "unknown scorer %q (supported: momentum, ema-cross, static)", p.Name)
	}
}
