package strategy

import "time"

// Direction classifies what a signal asks the engine to do.
type Direction int

const (
	Flat Direction = iota
	Long
	Short
	Exit
)

func (d Direction) String() string {
	switch d {
	case Long:
		return "long"
	case Short:
		return "short"
	case Exit:
		return "exit"
	default:
		return "flat"
	}
}

// Signal is an entry or exit recommendation produced at most once per
// closed candle. CandleTime is the open time of the last closed bar the
// signal was computed from; no later bar may influence it.
type Signal struct {
	Time       time.Time
	Instrument string
	Direction  Direction
	Strength   float64
	CandleTime time.Time

	// Entry is the reference price (the originating bar's close).
	// Stop and Target are only set on entry signals.
	Entry  float64
	Stop   float64
	Target float64

	Reason string
}
