package engine

import (
	"sort"
	"time"

	"github.com/rustyeddy/intrabot/circuit"
	"github.com/rustyeddy/intrabot/ledger"
)

// Status is a point-in-time snapshot of the session for operator
// tooling. It is assembled inside the decision loop, so fields are
// mutually consistent.
type Status struct {
	Mode        string            `json:"mode"`
	Time        time.Time         `json:"time"`
	Paused      bool              `json:"paused"`
	Circuit     circuit.Mode      `json:"circuit"`
	Equity      float64           `json:"equity"`
	Cash        float64           `json:"cash"`
	RealizedCum float64           `json:"realized_cum"`
	Positions   []ledger.Position `json:"positions"`
	OpenOrders  int               `json:"open_orders"`
	Trades      int               `json:"trades"`
	Wins        int               `json:"wins"`
	Losses      int               `json:"losses"`
	DataGaps    int               `json:"data_gaps"`
	Halted      []string          `json:"halted_instruments,omitempty"`
}

// Status reports the current session snapshot. Like Process, it must
// only be called from the decision-loop goroutine.
func (e *Engine) Status() Status {
	trades, wins, losses := e.ledger.Stats()

	halted := make([]string, 0, len(e.fatal))
	for instrument := range e.fatal {
		halted = append(halted, instrument)
	}
	sort.Strings(halted)

	return Status{
		Mode:        e.mode,
		Time:        e.now,
		Paused:      e.paused,
		Circuit:     e.breaker.Mode(),
		Equity:      e.ledger.Equity(),
		Cash:        e.ledger.Cash(),
		RealizedCum: e.ledger.RealizedCum(),
		Positions:   e.ledger.Positions(),
		OpenOrders:  len(e.book.Open()),
		Trades:      trades,
		Wins:        wins,
		Losses:      losses,
		DataGaps:    e.dataGaps,
		Halted:      halted,
	}
}
