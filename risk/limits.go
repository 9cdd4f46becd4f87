package risk

import (
	"time"

	"github.com/rustyeddy/intrabot/market"
)

// Limits are the per-session risk limits. They are immutable while a
// session runs; reload only at session boundaries.
type Limits struct {
	// MaxRiskPct is the fraction of equity put at risk per trade, e.g. 0.005.
	// The daily drawdown limit lives on the circuit breaker; the gate
	// only ever sees its verdict through the circuit mode.
	MaxRiskPct float64
	// MaxConcurrentPositions bounds open positions globally.
	MaxConcurrentPositions int
	// PositionSizeCap clamps any single order's units. 0 disables.
	PositionSizeCap float64
}

// Intent is a proposed order, consumed by the gate and never persisted.
type Intent struct {
	Instrument string
	Side       market.Side
	Entry      float64
	Stop       float64
	Target     float64
	SignalTime time.Time
}

// AccountSnapshot is the gate's read-only view of the ledger at
// decision time.
type AccountSnapshot struct {
	Equity        float64
	OpenPositions int
	// HasPosition reports an open position in the intent's instrument.
	HasPosition bool
}
