package risk

import (
	"fmt"
	"math"
	"strings"

	"github.com/rs/zerolog"
)

// Gate folds a fixed, ordered set of policies into one verdict.
//
// Allow is the AND of every policy, Scale the minimum (clamped to [0, 1]) and
// ForceFlatten the OR. A policy that errors or panics denies with reason
// "error:<kind>".
type Gate struct {
	policies []Policy
	log      zerolog.Logger
}

func NewGate(log zerolog.Logger, policies ...Policy) *Gate {
	return &Gate{policies: policies, log: log}
}

// Policies returns the registered policies in evaluation order.
func (g *Gate) Policies() []Policy {
	out := make([]Policy, len(g.policies))
	copy(out, g.policies)
	return out
}

func (g *Gate) Evaluate(ctx Context) Verdict {
	v := Verdict{Allow: true, Scale: 1}
	for _, p := range g.policies {
		r := g.checkOne(p, ctx)
		v.Allow = v.Allow && r.Allow
		v.Scale = math.Min(v.Scale, r.Scale)
		v.ForceFlatten = v.ForceFlatten || r.ForceFlatten
		if r.Reason != "" {
			v.Reasons = append(v.Reasons, r.Reason)
		}
	}
	v.Scale = clamp01(v.Scale)
	return v
}

func (g *Gate) checkOne(p Policy, ctx Context) (res PolicyResult) {
	defer func() {
		if rec := recover(); rec != nil {
			err := &PolicyError{Policy: p.Name(), Kind: KindPanic, Err: fmt.Errorf("%v", rec)}
			g.log.Error().Err(err).Str("symbol", ctx.Symbol).Msg("policy panic")
			res = Denied("error:" + KindPanic)
		}
	}()

	r, err := p.CheckEntry(ctx)
	if err != nil {
		kind := kindOf(err)
		g.log.Warn().Err(err).Str("policy", p.Name()).Str("symbol", ctx.Symbol).Msg("policy failed")
		return Denied("error:" + kind)
	}
	if math.IsNaN(r.Scale) {
		g.log.Warn().Str("policy", p.Name()).Str("symbol", ctx.Symbol).Msg("policy returned NaN scale")
		return Denied("error:" + KindShape)
	}
	return r
}

func (g *Gate) sizeOne(p Policy, ctx Context) (qty int64, ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			g.log.Error().Str("policy", p.Name()).Interface("panic", rec).Msg("size hint panic")
			qty, ok = 0, true
		}
	}()

	q, ok, err := p.SizeHint(ctx)
	if err != nil {
		g.log.Warn().Err(err).Str("policy", p.Name()).Msg("size hint failed")
		return 0, true
	}
	return q, ok
}

// Check evaluates ctx and sizes the entry. SizeHint is the smallest
// non-negative hint any policy offers, or floor(scale * baseQuantity) when
// none does. A failing hint counts as zero.
func (g *Gate) Check(ctx Context, baseQuantity int64) CheckResult {
	v := g.Evaluate(ctx)

	hint := int64(-1)
	for _, p := range g.policies {
		q, ok := g.sizeOne(p, ctx)
		if !ok || q < 0 {
			continue
		}
		if hint < 0 || q < hint {
			hint = q
		}
	}
	if hint < 0 {
		hint = int64(math.Floor(v.Scale * float64(baseQuantity)))
		if hint < 0 {
			hint = 0
		}
	}

	reason := "ok"
	if len(v.Reasons) > 0 {
		reason = strings.Join(v.Reasons, " | ")
	}
	return CheckResult{
		Allow:        v.Allow,
		Reason:       reason,
		SizeHint:     hint,
		Scale:        v.Scale,
		ForceFlatten: v.ForceFlatten,
		Reasons:      v.Reasons,
	}
}

func clamp01(x float64) float64 {
	switch {
	case x < 0:
		return 0
	case x > 1:
		return 1
	}
	return x
}
