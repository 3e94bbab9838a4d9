package scoring

import "fmt"

// EMA is a streaming exponential moving average seeded with the simple
// average of its first period values.
type EMA struct {
	period     int
	multiplier float64
	ema        float64
	count      int
	warmupSum  float64
}

func NewEMA(period int) *EMA {
	if period < 1 {
		period = 1
	}
	return &EMA{
		period:     period,
		multiplier: 2.0 / float64(period+1),
	}
}

func (e *EMA) Name() string { return fmt.Sprintf("EMA(%d)", e.period) }

func (e *EMA) Update(x float64) {
	e.ema, e.warmupSum, e.count = e.next(x)
}

func (e *EMA) next(x float64) (ema, sum float64, count int) {
	if e.count < e.period {
		sum = e.warmupSum + x
		count = e.count + 1
		if count == e.period {
			return sum / float64(e.period), sum, count
		}
		return e.ema, sum, count
	}
	return (x-e.ema)*e.multiplier + e.ema, e.warmupSum, e.count + 1
}

func (e *EMA) Ready() bool { return e.count >= e.period }

func (e *EMA) Value() float64 {
	if !e.Ready() {
		return 0
	}
	return e.ema
}

// Peek returns the value the EMA would have after Update(x), and whether it
// would be ready, without changing it.
func (e *EMA) Peek(x float64) (float64, bool) {
	ema, _, count := e.next(x)
	if count < e.period {
		return 0, false
	}
	return ema, true
}
