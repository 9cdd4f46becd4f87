// journal/journal.go
package journal

import (
	"time"

	"github.com/rustyeddy/intrabot/market"
)

// TradeRecord is one row of the trade blotter: a fully closed trade.
type TradeRecord struct {
	OrderID    string
	Instrument string
	Side       market.Side
	Units      float64
	EntryPrice float64
	ExitPrice  float64
	OpenTime   time.Time
	CloseTime  time.Time
	RealizedPL float64
	Reason     string
}

// EquitySnapshot is one point of the equity curve.
type EquitySnapshot struct {
	Time        time.Time
	Balance     float64
	Equity      float64
	RealizedCum float64
}

type Journal interface {
	RecordTrade(TradeRecord) error
	RecordEquity(EquitySnapshot) error
	Close() error
}

// Nop discards everything. Used by tests and dry runs.
type Nop struct{}

func (Nop) RecordTrade(TradeRecord) error { return nil }
func (Nop) RecordEquity(EquitySnapshot) error { return nil }
func (Nop) Close() error { return nil }
