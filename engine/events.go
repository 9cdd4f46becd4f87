package engine

import (
	"time"

	"github.com/rustyeddy/intrabot/exec"
	"github.com/rustyeddy/intrabot/market"
)

// Kind tags the event variants the decision loop consumes.
type Kind int

const (
	KindCandleClosed Kind = iota + 1
	KindFill
	KindOrderAck
	KindPause
	KindResume
	KindCircuitResume
)

func (k Kind) String() string {
	switch k {
	case KindCandleClosed:
		return "candle_closed"
	case KindFill:
		return "fill"
	case KindOrderAck:
		return "order_ack"
	case KindPause:
		return "pause"
	case KindResume:
		return "resume"
	case KindCircuitResume:
		return "circuit_resume"
	default:
		return "unknown"
	}
}

// Event is the unit drained by the decision loop. Exactly one payload
// field is meaningful per kind.
type Event struct {
	Kind Kind
	Time time.Time

	Candle  market.Candle
	Fill    exec.Fill
	OrderID string
}

func CandleEvent(c market.Candle) Event {
	return Event{Kind: KindCandleClosed, Time: c.CloseTime(), Candle: c}
}

func FillEvent(f exec.Fill) Event {
	return Event{Kind: KindFill, Time: f.Time, Fill: f}
}

func AckEvent(orderID string, at time.Time) Event {
	return Event{Kind: KindOrderAck, Time: at, OrderID: orderID}
}
