package risk

import (
	"fmt"

	"github.com/rustyeddy/daytrader/internal/errs"
	"github.com/rustyeddy/daytrader/market"
)

// SectorCapParams caps the value held in any one sector.
type SectorCapParams struct {
	SectorCapPct float64
	Budget       float64
}

// SectorCapPolicy denies entries into a sector already at its cap. Symbols
// with no known sector are never limited.
type SectorCapPolicy struct {
	p SectorCapParams
}

func NewSectorCapPolicy(p SectorCapParams) (*SectorCapPolicy, error) {
	if p.SectorCapPct <= 0 || p.SectorCapPct > 1 {
		return nil, errs.Config("sector_cap.sector_cap_pct", "must be in (0, 1], got %v", p.SectorCapPct)
	}
	if p.Budget < 0 {
		return nil, errs.Config("sector_cap.budget", "must not be negative, got %v", p.Budget)
	}
	return &SectorCapPolicy{p: p}, nil
}

func (s *SectorCapPolicy) Name() string { return "sector_cap" }

func (s *SectorCapPolicy) limit(ctx Context) float64 {
	budget := s.p.Budget
	if ctx.Budget > 0 {
		budget = ctx.Budget
	}
	return s.p.SectorCapPct * budget
}

func (s *SectorCapPolicy) current(ctx Context, sector string) float64 {
	if ctx.SectorExposure != nil {
		return ctx.SectorExposure[sector]
	}
	return SectorExposure(ctx.Portfolio, ctx.Sectors, ctx.LivePrices)[sector]
}

func knownSector(ctx Context) (string, bool) {
	sector, ok := ctx.SectorOf(ctx.Symbol)
	if !ok || sector == market.UnknownSector {
		return "", false
	}
	return sector, true
}

func (s *SectorCapPolicy) CheckEntry(ctx Context) (PolicyResult, error) {
	sector, ok := knownSector(ctx)
	if !ok {
		return Allowed(""), nil
	}
	limit := s.limit(ctx)
	cur := s.current(ctx, sector)
	if cur >= limit {
		return Denied(fmt.Sprintf("sector_cap:%s", sector)), nil
	}
	r := Allowed("")
	if ctx.Price > 0 {
		r = r.WithHint(qtyFor(limit-cur, ctx.Price))
	}
	return r, nil
}

func (s *SectorCapPolicy) SizeHint(ctx Context) (int64, bool, error) {
	sector, ok := knownSector(ctx)
	if !ok || ctx.Price <= 0 {
		return 0, false, nil
	}
	return qtyFor(s.limit(ctx)-s.current(ctx, sector), ctx.Price), true, nil
}
