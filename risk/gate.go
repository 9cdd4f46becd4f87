// Package risk validates and sizes proposed orders against session
// limits and current account state.
package risk

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/rustyeddy/intrabot/circuit"
	"github.com/rustyeddy/intrabot/market"
)

type Violation struct {
	Code string
	Msg  string
}

// Decision is the gate's observable verdict on one intent.
type Decision struct {
	Allowed    bool
	Violations []Violation

	// Units is the approved order size; zero unless Allowed.
	Units      float64
	RiskAmount float64
	RiskPct    float64
}

func (d *Decision) add(code, msg string) {
	d.Violations = append(d.Violations, Violation{Code: code, Msg: msg})
	d.Allowed = false
}

// Gate applies Limits to intents. It holds no state beyond the limits,
// counters for audit, and a logger; account and circuit state are
// passed in per decision.
type Gate struct {
	limits Limits
	log    *zap.Logger

	accepted int
	vetoed   int
}

func NewGate(limits Limits, log *zap.Logger) *Gate {
	if log == nil {
		log = zap.NewNop()
	}
	return &Gate{limits: limits, log: log}
}

// Limits returns the session limits the gate enforces.
func (g *Gate) Limits() Limits { return g.limits }

// Counts returns how many intents were accepted and vetoed.
func (g *Gate) Counts() (accepted, vetoed int) {
	return g.accepted, g.vetoed
}

// Evaluate sizes and validates an entry intent. Exits never pass
// through the gate; risk reduction must not be blocked.
func (g *Gate) Evaluate(intent Intent, acct AccountSnapshot, mode circuit.Mode) Decision {
	d := g.evaluate(intent, acct, mode)

	if d.Allowed {
		g.accepted++
		g.log.Info("risk accepted",
			zap.String("instrument", intent.Instrument),
			zap.String("side", intent.Side.String()),
			zap.Float64("units", d.Units),
			zap.Float64("risk_amount", d.RiskAmount),
			zap.Float64("risk_pct", d.RiskPct),
		)
	} else {
		g.vetoed++
		fields := []zap.Field{
			zap.String("instrument", intent.Instrument),
			zap.String("side", intent.Side.String()),
		}
		for _, v := range d.Violations {
			fields = append(fields, zap.String("violation", v.Code))
		}
		g.log.Warn("risk vetoed", fields...)
	}

	return d
}

func (g *Gate) evaluate(intent Intent, acct AccountSnapshot, mode circuit.Mode) Decision {
	d := Decision{Allowed: true}

	// Any circuit state other than Normal vetoes all new entries.
	if mode != circuit.Normal {
		d.add("CIRCUIT_NOT_NORMAL",
			fmt.Sprintf("circuit breaker is %s; new entries blocked", mode))
		return d
	}

	if intent.Entry == 0 || intent.Stop == 0 {
		d.add("NO_STOP_OR_ENTRY", "entry/stop must be set")
		return d
	}

	stopDist := math.Abs(intent.Entry - intent.Stop)
	if stopDist == 0 {
		d.add("ZERO_STOP_DISTANCE", "entry and stop are equal")
		return d
	}

	if acct.HasPosition {
		d.add("POSITION_OPEN",
			fmt.Sprintf("position already open in %s", intent.Instrument))
	}
	if g.limits.MaxConcurrentPositions > 0 && acct.OpenPositions >= g.limits.MaxConcurrentPositions {
		d.add("TOO_MANY_OPEN_POSITIONS",
			fmt.Sprintf("open positions %d >= max %d",
				acct.OpenPositions, g.limits.MaxConcurrentPositions))
	}
	if !d.Allowed {
		return d
	}

	riskAmt := acct.Equity * g.limits.MaxRiskPct
	units := riskAmt / stopDist

	if g.limits.PositionSizeCap > 0 && units > g.limits.PositionSizeCap {
		units = g.limits.PositionSizeCap
		riskAmt = units * stopDist
	}

	meta := market.Meta(intent.Instrument)
	if meta.SizeIncrement > 0 {
		units = math.Floor(units/meta.SizeIncrement) * meta.SizeIncrement
		riskAmt = units * stopDist
	}

	// Reject, never silently pass a zero-size order.
	if units <= 0 || units < meta.MinimumTradeSize {
		d.add("SIZE_TOO_SMALL",
			fmt.Sprintf("computed size %v below minimum %v", units, meta.MinimumTradeSize))
		return d
	}

	d.Units = units
	d.RiskAmount = riskAmt
	if acct.Equity > 0 {
		d.RiskPct = riskAmt / acct.Equity
	}
	return d
}
