// Package journal records what the hub did: every routed order, per-tick
// equity and the end-of-session summary.
package journal

import (
	"errors"
	"time"
)

// FillRecord is one routed order and its outcome. Unexecuted orders are
// recorded too, with Executed false and Error set.
type FillRecord struct {
	OrderID   string
	SessionID string
	Time      time.Time
	Tick      int64
	Symbol    string
	Side      string
	Quantity  int64 // requested
	Price     float64
	FilledQty int64
	FillPrice float64
	Executed  bool
	Reason    string
	Score     float64
	// RealizedPnL and PnLPct are set on sells.
	RealizedPnL float64
	PnLPct      float64
	Error       string
}

type EquitySnapshot struct {
	SessionID string
	Time      time.Time
	Tick      int64
	Cash      float64
	Equity    float64
	Exposure  float64
	DayPnLPct float64
	Positions int
}

// SessionRecord summarizes one run of the hub.
type SessionRecord struct {
	SessionID      string
	Start          time.Time
	End            time.Time
	Ticks          int64
	Buys           int
	Sells          int
	Wins           int
	Losses         int
	RealizedPnL    float64
	RealizedPnLPct float64
	AvgPnLPct      float64
	FinalEquity    float64
	OpenPositions  int
	ExitReasons    map[string]int
}

type Journal interface {
	RecordFill(FillRecord) error
	RecordEquity(EquitySnapshot) error
	RecordSession(SessionRecord) error
	Close() error
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordFill(FillRecord) error       { return nil }
func (Nop) RecordEquity(EquitySnapshot) error { return nil }
func (Nop) RecordSession(SessionRecord) error { return nil }
func (Nop) Close() error                      { return nil }

// Multi writes to every journal in order and joins their errors.
type Multi []Journal

func (m Multi) RecordFill(r FillRecord) error {
	var errs []error
	for _, j := range m {
		errs = append(errs, j.RecordFill(r))
	}
	return errors.Join(errs...)
}

func (m Multi) RecordEquity(e EquitySnapshot) error {
	var errs []error
	for _, j := range m {
		errs = append(errs, j.RecordEquity(e))
	}
	return errors.Join(errs...)
}

func (m Multi) RecordSession(s SessionRecord) error {
	var errs []error
	for _, j := range m {
		errs = append(errs, j.RecordSession(s))
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, j := range m {
		errs = append(errs, j.Close())
	}
	return errors.Join(errs...)
}
