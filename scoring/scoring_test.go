package scoring

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/daytrader/internal/errs"
)

func TestMomentum(t *testing.T) {
	t.Parallel()

	st := NewSymbolState()
	m := Momentum{Gain: 50}

	v, err := m.Score("AAA", 100, Context{State: st})
	require.NoError(t, err)
	assert.Equal(t, 0.0, v, "no previous price")

	st.Observe(100)
	v, _ = m.Score("AAA", 101, Context{State: st})
	assert.InDelta(t, 0.5, v, 1e-9)

	v, _ = m.Score("AAA", 110, Context{State: st})
	assert.Equal(t, 1.0, v)

	v, _ = m.Score("AAA", 90, Context{State: st})
	assert.Equal(t, -1.0, v)

	v, _ = m.Score("AAA", 101, Context{})
	assert.Equal(t, 0.0, v)
}

func TestEMA(t *testing.T) {
	t.Parallel()

	e := NewEMA(3)
	assert.Equal(t, "EMA(3)", e.Name())
	e.Update(1)
	e.Update(2)
	assert.False(t, e.Ready())
	assert.Equal(t, 0.0, e.Value())

	v, ok := e.Peek(3)
	assert.True(t, ok)
	assert.InDelta(t, 2.0, v, 1e-12)
	assert.False(t, e.Ready(), "peek does not update")

	e.Update(3)
	assert.True(t, e.Ready())
	assert.InDelta(t, 2.0, e.Value(), 1e-12)

	e.Update(6)
	// (6-2)*0.5+2
	assert.InDelta(t, 4.0, e.Value(), 1e-12)
}

func TestEMACross(t *testing.T) {
	t.Parallel()

	st := NewSymbolState()
	c := EMACross{Fast: 2, Slow: 4, Gain: 10}

	v, err := c.Score("AAA", 10, Context{State: st})
	require.NoError(t, err)
	assert.Equal(t, 0.0, v)

	for _, px := range []float64{10, 10, 10, 10} {
		st.Observe(px)
	}
	v, _ = c.Score("AAA", 10, Context{State: st})
	assert.InDelta(t, 0.0, v, 1e-12)

	v, _ = c.Score("AAA", 12, Context{State: st})
	assert.Greater(t, v, 0.0)

	v, _ = c.Score("AAA", 8, Context{State: st})
	assert.Less(t, v, 0.0)
}

func TestEMACrossWarmsBothAverages(t *testing.T) {
	t.Parallel()

	st := NewSymbolState()
	c := EMACross{Fast: 2, Slow: 3, Gain: 10}

	// one score call is enough for both averages to follow every later tick
	v, _ := c.Score("AAA", 10, Context{State: st})
	assert.Zero(t, v)

	for _, px := range []float64{10, 10, 10} {
		st.Observe(px)
	}
	assert.True(t, st.EMA(2).Ready())
	assert.True(t, st.EMA(3).Ready())

	v, _ = c.Score("AAA", 11, Context{State: st})
	assert.Greater(t, v, 0.0)
}

func TestStatic(t *testing.T) {
	t.Parallel()

	s := Static{Scores: map[string]float64{"AAA": 0.9}, Default: -0.2}
	v, _ := s.Score("AAA", 1, Context{})
	assert.Equal(t, 0.9, v)
	v, _ = s.Score("BBB", 1, Context{})
	assert.Equal(t, -0.2, v)
}

func TestEval(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		s       Scorer
		want    float64
		wantErr bool
	}{
		{"clamps", Static{Default: 3}, 1, false},
		{"nan", Static{Default: math.NaN()}, 0, false},
		{"error", Func(func(string, float64, Context) (float64, error) { return 0.8, errors.New("stale") }), 0, true},
		{"panic", Func(func(string, float64, Context) (float64, error) { panic("boom") }), 0, true},
		{"nil", nil, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := Eval(tt.s, "AAA", 10, Context{})
			assert.Equal(t, tt.want, v)
			if tt.wantErr {
				assert.ErrorIs(t, err, errs.ErrScoring)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestByName(t *testing.T) {
	t.Parallel()

	s, err := ByName(Params{Name: "momentum", Gain: 5})
	require.NoError(t, err)
	assert.Equal(t, Momentum{Gain: 5}, s)

	s, err = ByName(Params{Name: "EMA-Cross", Fast: 3, Slow: 9, Gain: 1})
	require.NoError(t, err)
	assert.Equal(t, EMACross{Fast: 3, Slow: 9, Gain: 1}, s)

	_, err = ByName(Params{Name: "ema-cross", Fast: 9, Slow: 3})
	assert.ErrorIs(t, err, errs.ErrConfiguration)

	_, err = ByName(Params{Name: "astrology"})
	assert.ErrorIs(t, err, errs.ErrConfiguration)

	s, err = ByName(Params{Name: "static", Default: 1})
	require.NoError(t, err)
	assert.IsType(t, Static{}, s)
}
