package risk

import (
	"math"

	"github.com/rustyeddy/daytrader/internal/errs"
	"github.com/rustyeddy/daytrader/market"
)

// ExposureParams caps portfolio exposure as fractions of the capital base.
type ExposureParams struct {
	MaxTotalPct  float64 // total held value, e.g. 0.50
	MaxSymbolPct float64 // per symbol, e.g. 0.12
	MaxSectorPct float64 // per sector; 0 disables, only applied with a sector lookup
	LotSize      int64
	// MinOrderValue zeroes any size whose value would fall below it.
	MinOrderValue float64
	// Budget is the capital base used when the context carries none.
	Budget float64
}

// ExposurePolicy limits total, per-symbol and per-sector exposure.
type ExposurePolicy struct {
	p ExposureParams
}

func NewExposurePolicy(p ExposureParams) (*ExposurePolicy, error) {
	if p.MaxTotalPct <= 0 || p.MaxTotalPct > 1 {
		return nil, errs.Config("exposure.max_total_pct", "must be in (0, 1], got %v", p.MaxTotalPct)
	}
	if p.MaxSymbolPct <= 0 || p.MaxSymbolPct > 1 {
		return nil, errs.Config("exposure.max_symbol_pct", "must be in (0, 1], got %v", p.MaxSymbolPct)
	}
	if p.MaxSectorPct < 0 || p.MaxSectorPct > 1 {
		return nil, errs.Config("exposure.max_sector_pct", "must be in [0, 1], got %v", p.MaxSectorPct)
	}
	if p.LotSize < 0 {
		return nil, errs.Config("exposure.lot_size", "must not be negative, got %d", p.LotSize)
	}
	if p.LotSize == 0 {
		p.LotSize = 1
	}
	if p.MinOrderValue < 0 {
		return nil, errs.Config("exposure.min_order_value", "must not be negative, got %v", p.MinOrderValue)
	}
	if p.Budget < 0 {
		return nil, errs.Config("exposure.budget", "must not be negative, got %v", p.Budget)
	}
	return &ExposurePolicy{p: p}, nil
}

func (e *ExposurePolicy) Name() string { return "exposure" }

type exposureRoom struct {
	total, symbol, sector float64
	sectorApplies         bool
}

func (e *ExposurePolicy) base(ctx Context) float64 {
	switch {
	case ctx.Budget > 0:
		return ctx.Budget
	case e.p.Budget > 0:
		return e.p.Budget
	default:
		return ctx.EquityNow
	}
}

func (e *ExposurePolicy) rooms(ctx Context) exposureRoom {
	base := e.base(ctx)

	var total, symbol float64
	for sym, h := range ctx.Portfolio {
		if h.Quantity <= 0 {
			continue
		}
		v := h.MarkValue(ctx.livePrice(sym))
		total += v
		if sym == ctx.Symbol {
			symbol = v
		}
	}

	r := exposureRoom{
		total:  room(e.p.MaxTotalPct, base, total),
		symbol: room(e.p.MaxSymbolPct, base, symbol),
		sector: math.Inf(1),
	}

	if e.p.MaxSectorPct > 0 && ctx.Sectors != nil {
		target := sectorOrUnknown(ctx, ctx.Symbol)
		var sector float64
		for sym, h := range ctx.Portfolio {
			if h.Quantity > 0 && sectorOrUnknown(ctx, sym) == target {
				sector += h.MarkValue(ctx.livePrice(sym))
			}
		}
		r.sector = room(e.p.MaxSectorPct, base, sector)
		r.sectorApplies = true
	}
	return r
}

func sectorOrUnknown(ctx Context, sym string) string {
	if s, ok := ctx.SectorOf(sym); ok {
		return s
	}
	return market.UnknownSector
}

func (e *ExposurePolicy) maxQty(r exposureRoom, price float64) int64 {
	head := math.Min(r.total, math.Min(r.symbol, r.sector))
	q := floorLots(qtyFor(head, price), e.p.LotSize)
	if e.p.MinOrderValue > 0 && float64(q)*price < e.p.MinOrderValue {
		return 0
	}
	return q
}

func (e *ExposurePolicy) CheckEntry(ctx Context) (PolicyResult, error) {
	if ctx.Price <= 0 {
		return Allowed(""), nil
	}
	r := e.rooms(ctx)
	planned := float64(ctx.Planned()) * ctx.Price

	if planned > r.total {
		return Denied("total_exposure_cap"), nil
	}
	if planned > r.symbol {
		return Denied("symbol_exposure_cap"), nil
	}
	if r.sectorApplies && planned > r.sector {
		return Denied("sector_exposure_cap"), nil
	}
	return Allowed("").WithHint(e.maxQty(r, ctx.Price)), nil
}

func (e *ExposurePolicy) SizeHint(ctx Context) (int64, bool, error) {
	if ctx.Price <= 0 {
		return 0, false, nil
	}
	return e.maxQty(e.rooms(ctx), ctx.Price), true, nil
}
