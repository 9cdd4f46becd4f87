package ledger

import (
	"time"

	"github.com/rustyeddy/intrabot/market"
)

// Position is the net holding in one instrument. At most one position
// is open per instrument; only the ledger mutates it.
type Position struct {
	Instrument   string
	Side         market.Side
	Units        float64
	AvgEntry     float64
	Stop         float64
	Target       float64
	OpenTime     time.Time
	EntryOrderID string

	// Trailing is set once the stop has been moved to breakeven.
	Trailing bool
	// initialRisk is the entry-to-stop distance at open, used for the
	// breakeven trail trigger.
	initialRisk float64

	// Exit fills accumulate here so the blotter row covers the whole
	// trade, not just the closing chunk.
	exitedUnits float64
	exitValue   float64
	realized    float64
}

// Unrealized returns the open P&L marked at price.
func (p *Position) Unrealized(price float64) float64 {
	return (price - p.AvgEntry) * p.Units * p.Side.Sign()
}

// ExitTrigger reports a stop or target hit inside a closed bar. The
// decision loop turns it into an exit order through the normal chain.
type ExitTrigger struct {
	Instrument string
	Price      float64
	Reason     string
}

// checkExit tests the candle's traded range against the protective
// levels. The stop is checked first; if both lie inside one bar the
// conservative outcome wins.
func (p *Position) checkExit(c market.Candle) (ExitTrigger, bool) {
	if p.Side == market.Buy {
		if p.Stop > 0 && c.Low <= p.Stop {
			return ExitTrigger{Instrument: p.Instrument, Price: p.Stop, Reason: "StopLoss"}, true
		}
		if p.Target > 0 && c.High >= p.Target {
			return ExitTrigger{Instrument: p.Instrument, Price: p.Target, Reason: "TakeProfit"}, true
		}
	} else {
		if p.Stop > 0 && c.High >= p.Stop {
			return ExitTrigger{Instrument: p.Instrument, Price: p.Stop, Reason: "StopLoss"}, true
		}
		if p.Target > 0 && c.Low <= p.Target {
			return ExitTrigger{Instrument: p.Instrument, Price: p.Target, Reason: "TakeProfit"}, true
		}
	}
	return ExitTrigger{}, false
}

// updateTrailing moves the stop to breakeven once price has travelled
// one initial risk unit in the position's favor.
func (p *Position) updateTrailing(price float64) bool {
	if p.Trailing || p.initialRisk <= 0 {
		return false
	}
	if p.Side == market.Buy && price >= p.AvgEntry+p.initialRisk {
		p.Stop = p.AvgEntry
		p.Trailing = true
		return true
	}
	if p.Side == market.Sell && price <= p.AvgEntry-p.initialRisk {
		p.Stop = p.AvgEntry
		p.Trailing = true
		return true
	}
	return false
}
