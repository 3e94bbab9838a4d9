// Package paper is an in-memory Router that fills market orders immediately.
package paper

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/daytrader/broker"
	"github.com/rustyeddy/daytrader/internal/id"
)

// Options shape the simulated venue.
type Options struct {
	// SlippageBps moves buys up and sells down by this many basis points.
	SlippageBps float64
	// MaxFillQty caps every fill; 0 means unlimited.
	MaxFillQty int64
	// Reject lists symbols the venue refuses.
	Reject []string
}

// Record is one order the router saw.
type Record struct {
	Order broker.Order
	Fill  broker.Fill
	Err   error
	At    time.Time
}

// Router is safe for concurrent use.
type Router struct {
	opts   Options
	log    zerolog.Logger
	reject map[string]bool

	mu     sync.Mutex
	orders []Record
}

func New(opts Options, log zerolog.Logger) (*Router, error) {
	if opts.SlippageBps < 0 || math.IsNaN(opts.SlippageBps) {
		return nil, fmt.Errorf("paper: slippage_bps must not be negative, got %v", opts.SlippageBps)
	}
	if opts.MaxFillQty < 0 {
		return nil, fmt.Errorf("paper: max_fill_qty must not be negative, got %d", opts.MaxFillQty)
	}
	r := &Router{opts: opts, log: log, reject: map[string]bool{}}
	for _, s := range opts.Reject {
		r.reject[s] = true
	}
	return r, nil
}

func (r *Router) Buy(ctx context.Context, o broker.Order) (broker.Fill, error) {
	o.Side = broker.Buy
	return r.execute(ctx, o)
}

func (r *Router) Sell(ctx context.Context, o broker.Order) (broker.Fill, error) {
	o.Side = broker.Sell
	return r.execute(ctx, o)
}

func (r *Router) execute(ctx context.Context, o broker.Order) (fill broker.Fill, err error) {
	defer func() { r.record(o, fill, err) }()

	if err := ctx.Err(); err != nil {
		return broker.Fill{}, err
	}
	if o.Quantity <= 0 || o.Price <= 0 {
		return broker.Fill{}, fmt.Errorf("%w: %s %d @ %v", broker.ErrInvalidOrder, o.Symbol, o.Quantity, o.Price)
	}

	oid := id.New()
	if r.reject[o.Symbol] {
		r.log.Debug().Str("order_id", oid).Str("symbol", o.Symbol).Msg("paper reject")
		return broker.Fill{OrderID: oid}, fmt.Errorf("%w: %s", broker.ErrRejected, o.Symbol)
	}

	qty := o.Quantity
	if r.opts.MaxFillQty > 0 && qty > r.opts.MaxFillQty {
		qty = r.opts.MaxFillQty
	}

	slip := o.Price * r.opts.SlippageBps / 10000
	price := o.Price + slip
	if o.Side == broker.Sell {
		price = o.Price - slip
	}

	return broker.Fill{
		OrderID:  oid,
		Filled:   true,
		Quantity: qty,
		Price:    price,
	}, nil
}

func (r *Router) record(o broker.Order, f broker.Fill, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders = append(r.orders, Record{Order: o, Fill: f, Err: err, At: time.Now()})
}

// Orders returns every order seen so far, oldest first.
func (r *Router) Orders() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Record, len(r.orders))
	copy(out, r.orders)
	return out
}
