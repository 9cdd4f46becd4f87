// Package order owns the order lifecycle from intent to terminal state.
package order

import (
	"errors"
	"fmt"
	"time"

	"github.com/rustyeddy/intrabot/market"
)

// State is an order lifecycle state.
type State int

const (
	Created State = iota
	RiskApproved
	Submitted
	PartiallyFilled
	Filled
	Closed
	Rejected
	Canceled
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case RiskApproved:
		return "risk_approved"
	case Submitted:
		return "submitted"
	case PartiallyFilled:
		return "partially_filled"
	case Filled:
		return "filled"
	case Closed:
		return "closed"
	case Rejected:
		return "rejected"
	case Canceled:
		return "canceled"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether no transition may ever leave s.
func (s State) Terminal() bool {
	return s == Closed || s == Rejected || s == Canceled
}

var (
	ErrTerminalState     = errors.New("order: transition out of terminal state")
	ErrInvalidTransition = errors.New("order: invalid transition")
	ErrOverfill          = errors.New("order: fills exceed order size")
)

// valid lists the forward transitions. Rejected and Canceled are
// reachable from every non-terminal state and handled separately.
var valid = map[State][]State{
	Created:         {RiskApproved},
	RiskApproved:    {Submitted},
	Submitted:       {PartiallyFilled, Filled},
	PartiallyFilled: {PartiallyFilled, Filled},
	Filled:          {Closed},
}

// Order is owned exclusively by the order book; other components hold
// references and must not mutate it.
type Order struct {
	ID         string
	Instrument string
	Side       market.Side
	Units      float64
	Stop       float64
	Target     float64

	State            State
	FilledUnits      float64
	AvgFillPrice     float64
	CreatedAt        time.Time
	LastTransitionAt time.Time

	SubmittedAt    time.Time
	Acked          bool
	AckedAt        time.Time
	CancelRetries  int
	NextCancelAt   time.Time
	SubmitAttempts int
	NextSubmitAt   time.Time

	// Exit marks orders that flatten an existing position; they bypass
	// the risk gate.
	Exit bool
}

func New(id, instrument string, side market.Side, units, stop, target float64, at time.Time) *Order {
	return &Order{
		ID:               id,
		Instrument:       instrument,
		Side:             side,
		Units:            units,
		Stop:             stop,
		Target:           target,
		State:            Created,
		CreatedAt:        at,
		LastTransitionAt: at,
	}
}

// Remaining returns the unfilled units.
func (o *Order) Remaining() float64 {
	return o.Units - o.FilledUnits
}

// Transition moves the order to a new state, enforcing the lifecycle
// graph and the terminal-state invariant.
func (o *Order) Transition(to State, at time.Time) error {
	if o.State.Terminal() {
		return fmt.Errorf("%w: %s is %s", ErrTerminalState, o.ID, o.State)
	}
	if to == Rejected || to == Canceled {
		o.apply(to, at)
		return nil
	}
	for _, next := range valid[o.State] {
		if next == to {
			o.apply(to, at)
			return nil
		}
	}
	return fmt.Errorf("%w: %s %s -> %s", ErrInvalidTransition, o.ID, o.State, to)
}

// ApplyFill accumulates one fill and advances the state to
// PartiallyFilled or Filled. The fill sum may never exceed the order
// size.
func (o *Order) ApplyFill(price, units float64, at time.Time) error {
	if o.State.Terminal() {
		return fmt.Errorf("%w: %s is %s", ErrTerminalState, o.ID, o.State)
	}
	if o.State != Submitted && o.State != PartiallyFilled {
		return fmt.Errorf("%w: fill in state %s", ErrInvalidTransition, o.State)
	}
	if units <= 0 {
		return fmt.Errorf("order: non-positive fill units %v", units)
	}
	if o.FilledUnits+units > o.Units+1e-9 {
		return fmt.Errorf("%w: %s filled %v + %v > %v",
			ErrOverfill, o.ID, o.FilledUnits, units, o.Units)
	}

	total := o.FilledUnits + units
	o.AvgFillPrice = (o.AvgFillPrice*o.FilledUnits + price*units) / total
	o.FilledUnits = total

	if o.Remaining() <= 1e-9 {
		o.FilledUnits = o.Units
		return o.Transition(Filled, at)
	}
	return o.Transition(PartiallyFilled, at)
}

func (o *Order) apply(to State, at time.Time) {
	o.State = to
	o.LastTransitionAt = at
}
