package risk

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/daytrader/internal/errs"
	"github.com/rustyeddy/daytrader/market"
)

func ptrInt(v int64) *int64       { return &v }
func ptrFloat(v float64) *float64 { return &v }

func TestExposurePolicy(t *testing.T) {
	t.Parallel()

	pol, err := NewExposurePolicy(ExposureParams{
		MaxTotalPct:  0.5,
		MaxSymbolPct: 0.2,
		LotSize:      1,
	})
	require.NoError(t, err)
	assert.Equal(t, "exposure", pol.Name())

	base := Context{
		Symbol:    "AAA",
		Price:     100,
		Budget:    10000,
		Portfolio: market.Portfolio{"BBB": {Quantity: 30, AveragePrice: 100}},
	}

	t.Run("allows with hint", func(t *testing.T) {
		ctx := base
		ctx.PlannedQuantity = ptrInt(10)
		r, err := pol.CheckEntry(ctx)
		require.NoError(t, err)
		assert.True(t, r.Allow)
		require.NotNil(t, r.MaxQuantityHint)
		// total room 5000-3000=2000, symbol room 2000
		assert.Equal(t, int64(20), *r.MaxQuantityHint)

		q, ok, err := pol.SizeHint(ctx)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, int64(20), q)
	})

	t.Run("over total room", func(t *testing.T) {
		ctx := base
		ctx.PlannedQuantity = ptrInt(21)
		r, err := pol.CheckEntry(ctx)
		require.NoError(t, err)
		assert.False(t, r.Allow)
		assert.Equal(t, "total_exposure_cap", r.Reason)
	})

	t.Run("conservative valuation", func(t *testing.T) {
		ctx := base
		ctx.LivePrices = map[string]float64{"BBB": 150}
		ctx.PlannedQuantity = ptrInt(10)
		r, err := pol.CheckEntry(ctx)
		require.NoError(t, err)
		// 30 * 150 = 4500 held, 500 room left
		assert.False(t, r.Allow)
		assert.Equal(t, "total_exposure_cap", r.Reason)
	})

	t.Run("symbol room", func(t *testing.T) {
		ctx := base
		ctx.Portfolio = market.Portfolio{"AAA": {Quantity: 15, AveragePrice: 100}}
		ctx.PlannedQuantity = ptrInt(6)
		r, err := pol.CheckEntry(ctx)
		require.NoError(t, err)
		assert.False(t, r.Allow)
		assert.Equal(t, "symbol_exposure_cap", r.Reason)
	})

	t.Run("equity fallback", func(t *testing.T) {
		ctx := base
		ctx.Budget = 0
		ctx.EquityNow = 20000
		q, _, err := pol.SizeHint(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(40), q)
	})
}

func TestExposurePolicySectorAndLots(t *testing.T) {
	t.Parallel()

	pol, err := NewExposurePolicy(ExposureParams{
		MaxTotalPct:   1,
		MaxSymbolPct:  1,
		MaxSectorPct:  0.3,
		LotSize:       10,
		MinOrderValue: 500,
	})
	require.NoError(t, err)

	ctx := Context{
		Symbol:    "AAA",
		Price:     10,
		Budget:    10000,
		Sectors:   market.SectorMap{"AAA": "TECH", "BBB": "TECH"},
		Portfolio: market.Portfolio{"BBB": {Quantity: 200, AveragePrice: 10}},
	}
	q, ok, err := pol.SizeHint(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	// sector room 3000-2000=1000 → 100 shares
	assert.Equal(t, int64(100), q)

	ctx.Price = 7
	q, _, _ = pol.SizeHint(ctx)
	// 1000/7=142 → 140 in lots of 10
	assert.Equal(t, int64(140), q)

	ctx.Portfolio["BBB"] = market.Holding{Quantity: 260, AveragePrice: 10}
	q, _, _ = pol.SizeHint(ctx)
	// 400 of room is under the minimum order value
	assert.Equal(t, int64(0), q)

	ctx.PlannedQuantity = ptrInt(100)
	r, err := pol.CheckEntry(ctx)
	require.NoError(t, err)
	assert.False(t, r.Allow)
	assert.Equal(t, "sector_exposure_cap", r.Reason)
}

func TestNewExposurePolicyValidation(t *testing.T) {
	t.Parallel()

	_, err := NewExposurePolicy(ExposureParams{MaxTotalPct: 0, MaxSymbolPct: 0.1})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrConfiguration))

	_, err = NewExposurePolicy(ExposureParams{MaxTotalPct: 0.5, MaxSymbolPct: 1.5})
	assert.ErrorIs(t, err, errs.ErrConfiguration)

	_, err = NewExposurePolicy(ExposureParams{MaxTotalPct: 0.5, MaxSymbolPct: 0.1, LotSize: -1})
	assert.ErrorIs(t, err, errs.ErrConfiguration)
}

func TestDayDrawdownCooldown(t *testing.T) {
	t.Parallel()

	pol, err := NewDayDrawdownPolicy(DayDrawdownParams{
		HardLimitPct:    -2,
		SoftLimitPct:    -1,
		CooldownMinutes: 15,
		MinScale:        0.3,
	})
	require.NoError(t, err)

	t0 := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	r, err := pol.CheckEntry(Context{Now: t0, DayStartEquity: 100000, EquityNow: 97900})
	require.NoError(t, err)
	assert.False(t, r.Allow)
	assert.Equal(t, "daydd_hard(-2.10%)", r.Reason)
	assert.False(t, r.ForceFlatten)
	assert.Equal(t, t0.Add(15*time.Minute), pol.BlockedUntil())

	// recovered, still cooling down
	r, err = pol.CheckEntry(Context{Now: t0.Add(30 * time.Second), DayPnLPct: ptrFloat(0)})
	require.NoError(t, err)
	assert.False(t, r.Allow)
	assert.Equal(t, "daydd_cooldown(870s)", r.Reason)

	r, err = pol.CheckEntry(Context{Now: t0.Add(16 * time.Minute), DayPnLPct: ptrFloat(0)})
	require.NoError(t, err)
	assert.True(t, r.Allow)
	assert.Equal(t, 1.0, r.Scale)
	assert.Empty(t, r.Reason)
}

func TestDayDrawdownSoftZone(t *testing.T) {
	t.Parallel()

	pol, err := NewDayDrawdownPolicy(DayDrawdownParams{
		HardLimitPct:    -2,
		SoftLimitPct:    -1,
		CooldownMinutes: 15,
		MinScale:        0.2,
		FlattenOnHard:   true,
	})
	require.NoError(t, err)

	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	ctx := Context{Now: now, DayPnLPct: ptrFloat(-1.5), PlannedQuantity: ptrInt(100)}

	r, err := pol.CheckEntry(ctx)
	require.NoError(t, err)
	assert.True(t, r.Allow)
	assert.Equal(t, "daydd_soft(-1.50%)", r.Reason)
	assert.InDelta(t, 0.6, r.Scale, 1e-9)

	q, ok, err := pol.SizeHint(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(60), q)

	ctx.PlannedQuantity = nil
	_, ok, _ = pol.SizeHint(ctx)
	assert.False(t, ok)

	ctx.DayPnLPct = ptrFloat(-3)
	r, _ = pol.CheckEntry(ctx)
	assert.False(t, r.Allow)
	assert.True(t, r.ForceFlatten)
}

func TestNewDayDrawdownPolicyValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		p    DayDrawdownParams
	}{
		{"positive hard", DayDrawdownParams{HardLimitPct: 1, SoftLimitPct: 2, MinScale: 0.5}},
		{"soft below hard", DayDrawdownParams{HardLimitPct: -1, SoftLimitPct: -2, MinScale: 0.5}},
		{"negative cooldown", DayDrawdownParams{HardLimitPct: -2, SoftLimitPct: -1, CooldownMinutes: -1, MinScale: 0.5}},
		{"min scale one", DayDrawdownParams{HardLimitPct: -2, SoftLimitPct: -1, MinScale: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDayDrawdownPolicy(tt.p)
			assert.ErrorIs(t, err, errs.ErrConfiguration)
		})
	}
}

func TestSectorCapPolicy(t *testing.T) {
	t.Parallel()

	pol, err := NewSectorCapPolicy(SectorCapParams{SectorCapPct: 0.35, Budget: 3000000})
	require.NoError(t, err)

	ctx := Context{
		Symbol:         "005930",
		Price:          50000,
		Sectors:        market.SectorMap{"005930": "SEMI"},
		SectorExposure: map[string]float64{"SEMI": 900000},
	}
	r, err := pol.CheckEntry(ctx)
	require.NoError(t, err)
	assert.True(t, r.Allow)
	require.NotNil(t, r.MaxQuantityHint)
	assert.Equal(t, int64(3), *r.MaxQuantityHint)

	q, ok, err := pol.SizeHint(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(3), q)

	ctx.SectorExposure["SEMI"] = 1050000
	r, _ = pol.CheckEntry(ctx)
	assert.False(t, r.Allow)
	assert.Equal(t, "sector_cap:SEMI", r.Reason)

	ctx.Symbol = "999999"
	r, _ = pol.CheckEntry(ctx)
	assert.True(t, r.Allow)
	assert.Nil(t, r.MaxQuantityHint)
	_, ok, _ = pol.SizeHint(ctx)
	assert.False(t, ok)
}

func TestSectorCapPolicyComputesExposure(t *testing.T) {
	t.Parallel()

	pol, err := NewSectorCapPolicy(SectorCapParams{SectorCapPct: 0.5, Budget: 1000})
	require.NoError(t, err)

	ctx := Context{
		Symbol:    "AAA",
		Price:     10,
		Budget:    2000,
		Sectors:   market.SectorMap{"AAA": "X", "BBB": "X"},
		Portfolio: market.Portfolio{"BBB": {Quantity: 50, AveragePrice: 10}},
	}
	q, ok, err := pol.SizeHint(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	// ctx budget wins: 1000 cap - 500 held
	assert.Equal(t, int64(50), q)
}

func TestThrottlePolicy(t *testing.T) {
	t.Parallel()

	pol := NewThrottlePolicy()
	r, err := pol.CheckEntry(Context{Symbol: "AAA", CooldownTicks: map[string]int{"AAA": 2}})
	require.NoError(t, err)
	assert.False(t, r.Allow)
	assert.Equal(t, "cooldown(2)", r.Reason)

	r, err = pol.CheckEntry(Context{Symbol: "AAA", CooldownTicks: map[string]int{"AAA": 0}})
	require.NoError(t, err)
	assert.True(t, r.Allow)

	r, _ = pol.CheckEntry(Context{Symbol: "AAA"})
	assert.True(t, r.Allow)
}
