package pricing

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rustyeddy/daytrader/market"
)

// CSVFeed reads price rows:
//
//	time,symbol,price
//	time,symbol,bid,ask
//
// where time is RFC3339 or RFC3339Nano and a bid/ask row is priced at its
// mid. Consecutive rows with the same time form one snapshot.
//
// It optionally filters rows to [From, To). A header row ("time,...") is
// allowed. Empty or short rows are skipped.
type CSVFeed struct {
	c    io.Closer
	r    *csv.Reader
	from time.Time
	to   time.Time

	sawFirst bool
	pending  *row
	done     bool
}

type row struct {
	t     time.Time
	sym   string
	price float64
}

func NewCSVFeed(path string, from, to time.Time) (*CSVFeed, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	feed := NewCSVFeedReader(f, from, to)
	feed.c = f
	return feed, nil
}

// NewCSVFeedReader reads rows from r. The caller owns r.
func NewCSVFeedReader(r io.Reader, from, to time.Time) *CSVFeed {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	return &CSVFeed{r: cr, from: from, to: to}
}

func (f *CSVFeed) Close() error {
	if f.c != nil {
		return f.c.Close()
	}
	return nil
}

func (f *CSVFeed) Next(ctx context.Context) (market.Snapshot, bool, error) {
	if err := ctx.Err(); err != nil {
		return market.Snapshot{}, false, err
	}

	first := f.pending
	f.pending = nil
	if first == nil {
		r, ok, err := f.read()
		if err != nil || !ok {
			return market.Snapshot{}, false, err
		}
		first = r
	}

	snap := market.Snapshot{Time: first.t, Prices: map[string]float64{first.sym: first.price}}
	for {
		r, ok, err := f.read()
		if err != nil {
			return market.Snapshot{}, false, err
		}
		if !ok {
			return snap, true, nil
		}
		if !r.t.Equal(snap.Time) {
			f.pending = r
			return snap, true, nil
		}
		snap.Prices[r.sym] = r.price
	}
}

func (f *CSVFeed) read() (*row, bool, error) {
	if f.done {
		return nil, false, nil
	}
	for {
		rec, err := f.r.Read()
		if err == io.EOF {
			f.done = true
			return nil, false, nil
		}
		if err != nil {
			return nil, false, err
		}
		if len(rec) == 0 {
			continue
		}

		if !f.sawFirst {
			f.sawFirst = true
			if strings.EqualFold(strings.TrimSpace(rec[0]), "time") {
				continue
			}
		}

		r, ok, err := parseRow(rec)
		if err != nil {
			return nil, false, err
		}
		if !ok || !inRange(r.t, f.from, f.to) {
			continue
		}
		return r, true, nil
	}
}

func parseRow(rec []string) (*row, bool, error) {
	if len(rec) < 3 {
		return nil, false, nil
	}

	ts := strings.TrimSpace(rec[0])
	if ts == "" {
		return nil, false, nil
	}
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		t2, err2 := time.Parse(time.RFC3339Nano, ts)
		if err2 != nil {
			return nil, false, fmt.Errorf("bad time %q: %w", ts, err)
		}
		t = t2
	}

	sym := strings.TrimSpace(rec[1])
	if sym == "" {
		return nil, false, nil
	}

	px, err := strconv.ParseFloat(strings.TrimSpace(rec[2]), 64)
	if err != nil {
		return nil, false, fmt.Errorf("bad price %q: %w", rec[2], err)
	}
	if len(rec) >= 4 && strings.TrimSpace(rec[3]) != "" {
		ask, err := strconv.ParseFloat(strings.TrimSpace(rec[3]), 64)
		if err != nil {
			return nil, false, fmt.Errorf("bad ask %q: %w", rec[3], err)
		}
		px = (px + ask) / 2
	}
	if px <= 0 {
		return nil, false, nil
	}
	return &row{t: t, sym: sym, price: px}, true, nil
}

func inRange(t, from, to time.Time) bool {
	if !from.IsZero() && t.Before(from) {
		return false
	}
	if !to.IsZero() && !t.Before(to) {
		return false
	}
	return true
}
