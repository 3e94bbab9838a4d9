// Package broker is the order boundary between the hub and an execution venue.
package broker

import (
	"context"
	"errors"
	"time"
)

type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// Order is a market order for a whole number of shares.
type Order struct {
	Symbol   string
	Side     Side
	Quantity int64
	// Price is the reference price the hub decided on.
	Price  float64
	Reason string
	Time   time.Time
}

// Fill is the venue's confirmation. Nothing changes unless Filled is true;
// Quantity and Price are the confirmed values and may differ from the order.
type Fill struct {
	OrderID  string
	Filled   bool
	Quantity int64
	Price    float64
}

// Router sends market orders. Implementations honor ctx cancellation.
type Router interface {
	Buy(ctx context.Context, o Order) (Fill, error)
	Sell(ctx context.Context, o Order) (Fill, error)
}

var (
	ErrRejected     = errors.New("order rejected")
	ErrInvalidOrder = errors.New("invalid order")
)

// Route dispatches o to the router method for its side.
func Route(ctx context.Context, r Router, o Order) (Fill, error) {
	if o.Quantity <= 0 || o.Symbol == "" {
		return Fill{}, ErrInvalidOrder
	}
	switch o.Side {
	case Buy:
		return r.Buy(ctx, o)
	case Sell:
		return r.Sell(ctx, o)
	}
	return Fill{}, ErrInvalidOrder
}
