package scoring

// Momentum scores the tick-over-tick return scaled by Gain.
type Momentum struct {
	Gain float64
}

func (m Momentum) Score(_ string, price float64, ctx Context) (float64, error) {
	if ctx.State == nil || ctx.State.PrevPrice <= 0 || price <= 0 {
		return 0, nil
	}
	return Clamp((price/ctx.State.PrevPrice - 1) * m.Gain), nil
}

// EMACross scores the gap between a fast and a slow EMA of tick prices.
// It is 0 until both have warmed up.
type EMACross struct {
	Fast, Slow int
	Gain       float64
}

func (c EMACross) Score(_ string, price float64, ctx Context) (float64, error) {
	if ctx.State == nil || price <= 0 {
		return 0, nil
	}
	// register both before any early return so each sees every observed price
	fastEMA, slowEMA := ctx.State.EMA(c.Fast), ctx.State.EMA(c.Slow)
	fast, ok := fastEMA.Peek(price)
	if !ok {
		return 0, nil
	}
	slow, ok := slowEMA.Peek(price)
	if !ok || slow <= 0 {
		return 0, nil
	}
	return Clamp((fast/slow - 1) * c.Gain), nil
}

// Static returns fixed per-symbol scores.
type Static struct {
	Scores  map[string]float64
	Default float64
}

func (s Static) Score(symbol string, _ float64, _ Context) (float64, error) {
	if v, ok := s.Scores[symbol]; ok {
		return v, nil
	}
	return s.Default, nil
}

// Func adapts a function to Scorer.
type Func func(symbol string, price float64, ctx Context) (float64, error)

func (f Func) Score(symbol string, price float64, ctx Context) (float64, error) {
	return f(symbol, price, ctx)
}
