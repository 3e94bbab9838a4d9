package risk

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rustyeddy/daytrader/internal/errs"
)

// DayDrawdownParams are percentages of day-start equity, e.g. -2.0 for -2%.
type DayDrawdownParams struct {
	HardLimitPct    float64
	SoftLimitPct    float64
	CooldownMinutes float64
	MinScale        float64
	FlattenOnHard   bool
}

// DayDrawdownPolicy blocks entries once the day's loss crosses the hard
// limit and shrinks them in the soft zone above it.
type DayDrawdownPolicy struct {
	p DayDrawdownParams

	mu         sync.Mutex
	blockUntil time.Time
}

func NewDayDrawdownPolicy(p DayDrawdownParams) (*DayDrawdownPolicy, error) {
	if p.HardLimitPct >= 0 {
		return nil, errs.Config("day_drawdown.hard_limit_pct", "must be negative, got %v", p.HardLimitPct)
	}
	if p.SoftLimitPct <= p.HardLimitPct {
		return nil, errs.Config("day_drawdown.soft_limit_pct", "must be above hard limit %v, got %v", p.HardLimitPct, p.SoftLimitPct)
	}
	if p.CooldownMinutes < 0 {
		return nil, errs.Config("day_drawdown.cooldown_minutes", "must not be negative, got %v", p.CooldownMinutes)
	}
	if p.MinScale <= 0 || p.MinScale >= 1 {
		return nil, errs.Config("day_drawdown.min_scale", "must be in (0, 1), got %v", p.MinScale)
	}
	return &DayDrawdownPolicy{p: p}, nil
}

func (d *DayDrawdownPolicy) Name() string { return "day_drawdown" }

// DayPnLPct is the intraday PnL percentage seen by ctx: from equity when both
// figures are present, else the supplied percentage, else zero.
func DayPnLPct(ctx Context) float64 {
	if ctx.DayStartEquity > 0 && ctx.EquityNow > 0 {
		return (ctx.EquityNow/ctx.DayStartEquity - 1) * 100
	}
	if ctx.DayPnLPct != nil {
		return *ctx.DayPnLPct
	}
	return 0
}

func (d *DayDrawdownPolicy) now(ctx Context) time.Time {
	if ctx.Now.IsZero() {
		return time.Now()
	}
	return ctx.Now
}

// scaleFor interpolates MinScale at the hard limit to 1.0 at the soft limit.
func (d *DayDrawdownPolicy) scaleFor(pnl float64) float64 {
	if pnl >= d.p.SoftLimitPct {
		return 1
	}
	if pnl <= d.p.HardLimitPct {
		return d.p.MinScale
	}
	frac := (pnl - d.p.HardLimitPct) / (d.p.SoftLimitPct - d.p.HardLimitPct)
	return d.p.MinScale + frac*(1-d.p.MinScale)
}

func (d *DayDrawdownPolicy) CheckEntry(ctx Context) (PolicyResult, error) {
	now := d.now(ctx)
	pnl := DayPnLPct(ctx)

	d.mu.Lock()
	defer d.mu.Unlock()

	if pnl <= d.p.HardLimitPct {
		d.blockUntil = now.Add(time.Duration(d.p.CooldownMinutes * float64(time.Minute)))
		r := Denied(fmt.Sprintf("daydd_hard(%.2f%%)", pnl))
		r.ForceFlatten = d.p.FlattenOnHard
		return r, nil
	}
	if now.Before(d.blockUntil) {
		left := math.Ceil(d.blockUntil.Sub(now).Seconds())
		return Denied(fmt.Sprintf("daydd_cooldown(%ds)", int64(left))), nil
	}
	if pnl <= d.p.SoftLimitPct {
		r := Allowed(fmt.Sprintf("daydd_soft(%.2f%%)", pnl))
		r.Scale = d.scaleFor(pnl)
		return r, nil
	}
	return Allowed(""), nil
}

// SizeHint scales a planned quantity in the soft zone. It has no opinion
// without a planned quantity or outside the soft zone.
func (d *DayDrawdownPolicy) SizeHint(ctx Context) (int64, bool, error) {
	if ctx.PlannedQuantity == nil {
		return 0, false, nil
	}
	pnl := DayPnLPct(ctx)
	if pnl > d.p.SoftLimitPct || pnl <= d.p.HardLimitPct {
		return 0, false, nil
	}
	return int64(math.Floor(float64(ctx.Planned()) * d.scaleFor(pnl))), true, nil
}

// BlockedUntil reports the end of the current hard-limit cooldown.
func (d *DayDrawdownPolicy) BlockedUntil() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.blockUntil
}
