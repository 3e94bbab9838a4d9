package hub

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rustyeddy/daytrader/journal"
	"github.com/rustyeddy/daytrader/pricing"
)

// Summary describes one session.
type Summary struct {
	SessionID   string
	Start       time.Time
	End         time.Time
	Ticks       int64
	Buys        int
	Sells       int
	Wins        int
	Losses      int
	RealizedPnL float64
	// RealizedPnLPct is the sum of per-sale PnL percentages.
	RealizedPnLPct float64
	AvgPnLPct      float64
	FinalEquity    float64
	OpenPositions  int
	ExitReasons    map[string]int
}

// WinRate is the share of closing sales that made money.
func (s Summary) WinRate() float64 {
	if s.Wins+s.Losses == 0 {
		return 0
	}
	return float64(s.Wins) / float64(s.Wins+s.Losses)
}

func (s Summary) String() string {
	return fmt.Sprintf("session %s: ticks=%d buys=%d sells=%d wins=%d losses=%d pnl=%.2f pnl_pct=%.2f%% avg=%.3f%% equity=%.2f open=%d",
		s.SessionID, s.Ticks, s.Buys, s.Sells, s.Wins, s.Losses,
		s.RealizedPnL, s.RealizedPnLPct, s.AvgPnLPct, s.FinalEquity, s.OpenPositions)
}

// RunSession drives the hub from feed until the feed ends, maxTicks ticks
// have run (0 means no limit), ctx is cancelled or Stop is called. Stopping
// always happens between ticks and is not an error: orders of the tick in
// progress still get their own OrderTimeout. The summary is logged
// and written to the journal.
func (h *Hub) RunSession(ctx context.Context, feed pricing.Feed, maxTicks int64) (Summary, error) {
	start := time.Now()
	var (
		first, last time.Time
		ticks       int64
		runErr      error
	)

	h.log.Info().Str("session", h.sessionID).Int64("max_ticks", maxTicks).Msg("SESSION_START")

	for {
		if ctx.Err() != nil || h.stopped.Load() {
			break
		}
		if maxTicks > 0 && ticks >= maxTicks {
			break
		}

		snap, ok, err := feed.Next(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				break
			}
			runErr = fmt.Errorf("feed: %w", err)
			break
		}
		if !ok {
			break
		}

		// a tick always completes; cancellation is honored between ticks
		if _, err := h.OnTick(context.WithoutCancel(ctx), snap); err != nil {
			runErr = fmt.Errorf("tick %d: %w", ticks+1, err)
			break
		}
		ticks++
		if first.IsZero() {
			first = snap.Time
		}
		last = snap.Time
	}

	if first.IsZero() {
		first, last = start, time.Now()
	}
	sum := h.summary(first, last, ticks)

	h.log.Info().
		Str("session", sum.SessionID).
		Int64("ticks", sum.Ticks).
		Int("buys", sum.Buys).
		Int("sells", sum.Sells).
		Int("wins", sum.Wins).
		Int("losses", sum.Losses).
		Float64("realized_pnl", sum.RealizedPnL).
		Float64("realized_pnl_pct", sum.RealizedPnLPct).
		Float64("avg_pnl_pct", sum.AvgPnLPct).
		Float64("final_equity", sum.FinalEquity).
		Int("open_positions", sum.OpenPositions).
		Interface("exit_reasons", sum.ExitReasons).
		Msg("SESSION_SUMMARY")

	err := h.journal.RecordSession(journal.SessionRecord{
		SessionID:      sum.SessionID,
		Start:          sum.Start,
		End:            sum.End,
		Ticks:          sum.Ticks,
		Buys:           sum.Buys,
		Sells:          sum.Sells,
		Wins:           sum.Wins,
		Losses:         sum.Losses,
		RealizedPnL:    sum.RealizedPnL,
		RealizedPnLPct: sum.RealizedPnLPct,
		AvgPnLPct:      sum.AvgPnLPct,
		FinalEquity:    sum.FinalEquity,
		OpenPositions:  sum.OpenPositions,
		ExitReasons:    sum.ExitReasons,
	})
	if err != nil {
		h.log.Warn().Err(err).Msg("journal session")
	}

	return sum, runErr
}

func (h *Hub) summary(start, end time.Time, ticks int64) Summary {
	h.mu.Lock()
	defer h.mu.Unlock()

	reasons := make(map[string]int, len(h.stats.exitReasons))
	for k, v := range h.stats.exitReasons {
		reasons[k] = v
	}
	s := Summary{
		SessionID:      h.sessionID,
		Start:          start,
		End:            end,
		Ticks:          ticks,
		Buys:           h.stats.buys,
		Sells:          h.stats.sells,
		Wins:           h.stats.wins,
		Losses:         h.stats.losses,
		RealizedPnL:    h.stats.realized,
		RealizedPnLPct: h.stats.realizedPct,
		FinalEquity:    h.equity(),
		OpenPositions:  h.ledger.Len(),
		ExitReasons:    reasons,
	}
	if s.Sells > 0 {
		s.AvgPnLPct = s.RealizedPnLPct / float64(s.Sells)
	}
	return s
}
