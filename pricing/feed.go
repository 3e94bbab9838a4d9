// Package pricing supplies market snapshots to the hub.
package pricing

import (
	"context"

	"github.com/rustyeddy/daytrader/market"
)

// Feed yields snapshots in time order. Next returns ok=false once the feed
// is exhausted.
type Feed interface {
	Next(ctx context.Context) (snap market.Snapshot, ok bool, err error)
	Close() error
}

// SliceFeed replays snapshots held in memory.
type SliceFeed struct {
	snaps []market.Snapshot
	i     int
}

func NewSliceFeed(snaps ...market.Snapshot) *SliceFeed {
	return &SliceFeed{snaps: snaps}
}

func (f *SliceFeed) Next(ctx context.Context) (market.Snapshot, bool, error) {
	if err := ctx.Err(); err != nil {
		return market.Snapshot{}, false, err
	}
	if f.i >= len(f.snaps) {
		return market.Snapshot{}, false, nil
	}
	s := f.snaps[f.i]
	f.i++
	return s, true, nil
}

func (f *SliceFeed) Close() error { return nil }
