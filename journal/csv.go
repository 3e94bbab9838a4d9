package journal

import (
	"encoding/csv"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

var (
	fillHeader    = []string{"order_id", "session_id", "time", "tick", "symbol", "side", "quantity", "price", "filled_qty", "fill_price", "executed", "reason", "score", "realized_pnl", "pnl_pct", "error"}
	equityHeader  = []string{"session_id", "time", "tick", "cash", "equity", "exposure", "day_pnl_pct", "positions"}
	sessionHeader = []string{"session_id", "start", "end", "ticks", "buys", "sells", "wins", "losses", "realized_pnl", "realized_pnl_pct", "avg_pnl_pct", "final_equity", "open_positions", "exit_reasons"}
)

// CSVJournal writes fills and equity to separate files, plus sessions when
// a sessions path is given. Every record is flushed as it is written.
type CSVJournal struct {
	fills    *csv.Writer
	equity   *csv.Writer
	sessions *csv.Writer
	files    []*os.File
}

func NewCSV(fillsPath, equityPath, sessionsPath string) (*CSVJournal, error) {
	j := &CSVJournal{}
	var err error

	if j.fills, err = j.open(fillsPath, fillHeader); err != nil {
		_ = j.Close()
		return nil, err
	}
	if j.equity, err = j.open(equityPath, equityHeader); err != nil {
		_ = j.Close()
		return nil, err
	}
	if sessionsPath != "" {
		if j.sessions, err = j.open(sessionsPath, sessionHeader); err != nil {
			_ = j.Close()
			return nil, err
		}
	}
	return j, nil
}

func (j *CSVJournal) open(path string, header []string) (*csv.Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	j.files = append(j.files, f)

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return nil, err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return w, nil
}

func write(w *csv.Writer, rec []string) error {
	if err := w.Write(rec); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

func (j *CSVJournal) RecordFill(r FillRecord) error {
	return write(j.fills, []string{
		r.OrderID,
		r.SessionID,
		r.Time.UTC().Format(time.RFC3339Nano),
		strconv.FormatInt(r.Tick, 10),
		r.Symbol,
		r.Side,
		strconv.FormatInt(r.Quantity, 10),
		f(r.Price),
		strconv.FormatInt(r.FilledQty, 10),
		f(r.FillPrice),
		strconv.FormatBool(r.Executed),
		r.Reason,
		f(r.Score),
		f(r.RealizedPnL),
		f(r.PnLPct),
		r.Error,
	})
}

func (j *CSVJournal) RecordEquity(e EquitySnapshot) error {
	return write(j.equity, []string{
		e.SessionID,
		e.Time.UTC().Format(time.RFC3339Nano),
		strconv.FormatInt(e.Tick, 10),
		f(e.Cash),
		f(e.Equity),
		f(e.Exposure),
		f(e.DayPnLPct),
		strconv.Itoa(e.Positions),
	})
}

func (j *CSVJournal) RecordSession(s SessionRecord) error {
	if j.sessions == nil {
		return nil
	}
	return write(j.sessions, []string{
		s.SessionID,
		s.Start.UTC().Format(time.RFC3339Nano),
		s.End.UTC().Format(time.RFC3339Nano),
		strconv.FormatInt(s.Ticks, 10),
		strconv.Itoa(s.Buys),
		strconv.Itoa(s.Sells),
		strconv.Itoa(s.Wins),
		strconv.Itoa(s.Losses),
		f(s.RealizedPnL),
		f(s.RealizedPnLPct),
		f(s.AvgPnLPct),
		f(s.FinalEquity),
		strconv.Itoa(s.OpenPositions),
		formatReasons(s.ExitReasons),
	})
}

// formatReasons renders counts as "reason=n;reason=n" in reason order.
func formatReasons(m map[string]int) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+strconv.Itoa(m[k]))
	}
	return strings.Join(parts, ";")
}

func (j *CSVJournal) Close() error {
	var first error
	for _, w := range []*csv.Writer{j.fills, j.equity, j.sessions} {
		if w == nil {
			continue
		}
		w.Flush()
		if err := w.Error(); err != nil && first == nil {
			first = err
		}
	}
	for _, fh := range j.files {
		if err := fh.Close(); err != nil && first == nil {
			first = err
		}
	}
	j.files = nil
	return first
}

func f(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}
