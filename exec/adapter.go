// Package exec defines the execution-adapter contract shared by the
// fill simulator and real venue adapters. The core is written once
// against Adapter and must not care which implementation is wired.
package exec

import (
	"context"
	"time"

	"github.com/rustyeddy/intrabot/market"
)

// Request is the order hand-off to the execution collaborator.
type Request struct {
	OrderID    string
	Instrument string
	Side       market.Side
	Units      float64

	// Limit, when set, requires the fill price to be at or better than
	// this level; nil means market-style immediate execution.
	Limit *float64
}

// Ack confirms the venue accepted a submit or cancel.
type Ack struct {
	OrderID string
	Time    time.Time
}

// Fill reports a (possibly partial) execution. Fills are immutable and
// append-only; the sum of fill units for an order never exceeds the
// order's requested units.
type Fill struct {
	OrderID    string
	Instrument string
	Side       market.Side
	Price      float64
	Units      float64
	Time       time.Time
	Partial    bool
	Fee        float64
}

// FillHandler receives fills from the adapter. Handlers must enqueue
// the fill for the decision loop rather than mutate state in place.
type FillHandler func(Fill)

// UnfillableHandler is notified when an adapter drops an order it
// cannot execute honestly, with a human-readable reason.
type UnfillableHandler func(orderID string, reason string)

// Adapter submits and cancels orders at the execution venue. Both
// methods return an Ack synchronously when the venue confirms inline;
// asynchronous venues return an empty Ack and deliver the confirmation
// as an event.
type Adapter interface {
	Submit(ctx context.Context, req Request) (Ack, error)
	Cancel(ctx context.Context, orderID string) (Ack, error)
}

// CandleMarker is implemented by local adapters (the fill simulator)
// that advance on bar boundaries. The decision loop calls MarkCandle
// with each newly closed bar before processing it and handles the
// returned fills first, preserving causal order.
type CandleMarker interface {
	MarkCandle(c market.Candle) []Fill
}
