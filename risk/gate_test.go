package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/intrabot/circuit"
	"github.com/rustyeddy/intrabot/market"
)

func testLimits() Limits {
	return Limits{
		MaxRiskPct:             0.01,
		MaxConcurrentPositions: 2,
	}
}

func testIntent() Intent {
	return Intent{
		Instrument: "EUR_USD",
		Side:       market.Buy,
		Entry:      1.10,
		Stop:       1.09,
		Target:     1.12,
	}
}

func codes(d Decision) []string {
	var out []string
	for _, v := range d.Violations {
		out = append(out, v.Code)
	}
	return out
}

func TestEvaluateSizesByRisk(t *testing.T) {
	g := NewGate(testLimits(), nil)

	d := g.Evaluate(testIntent(), AccountSnapshot{Equity: 10000}, circuit.Normal)
	require.True(t, d.Allowed)
	// 1% of 10000 = 100 at risk; stop distance 0.01 => 10000 units.
	assert.InDelta(t, 10000, d.Units, 1e-9)
	assert.InDelta(t, 100, d.RiskAmount, 1e-9)
	assert.InDelta(t, 0.01, d.RiskPct, 1e-9)

	// Realized risk never exceeds the configured bound.
	assert.LessOrEqual(t, d.RiskPct, g.Limits().MaxRiskPct+1e-12)
}

func TestEvaluateSizeCapReducesRisk(t *testing.T) {
	limits := testLimits()
	limits.PositionSizeCap = 5000
	g := NewGate(limits, nil)

	d := g.Evaluate(testIntent(), AccountSnapshot{Equity: 10000}, circuit.Normal)
	require.True(t, d.Allowed)
	assert.InDelta(t, 5000, d.Units, 1e-9)
	assert.InDelta(t, 50, d.RiskAmount, 1e-9)
	assert.InDelta(t, 0.005, d.RiskPct, 1e-9)
}

func TestEvaluateSizeIncrementFloor(t *testing.T) {
	g := NewGate(testLimits(), nil)

	intent := testIntent()
	intent.Entry = 1.10
	intent.Stop = 1.097 // distance 0.003 -> 33333.33 units
	d := g.Evaluate(intent, AccountSnapshot{Equity: 10000}, circuit.Normal)
	require.True(t, d.Allowed)
	assert.InDelta(t, 33333, d.Units, 1e-6)
	assert.LessOrEqual(t, d.RiskPct, g.Limits().MaxRiskPct+1e-12)
}

func TestEvaluateVetoesWhenCircuitNotNormal(t *testing.T) {
	g := NewGate(testLimits(), nil)

	for _, mode := range []circuit.Mode{circuit.Warning, circuit.Halted} {
		d := g.Evaluate(testIntent(), AccountSnapshot{Equity: 10000}, mode)
		assert.False(t, d.Allowed, "mode %s", mode)
		assert.Contains(t, codes(d), "CIRCUIT_NOT_NORMAL")
		assert.Zero(t, d.Units)
	}
}

func TestEvaluateVetoesMissingStop(t *testing.T) {
	g := NewGate(testLimits(), nil)

	intent := testIntent()
	intent.Stop = 0
	d := g.Evaluate(intent, AccountSnapshot{Equity: 10000}, circuit.Normal)
	assert.False(t, d.Allowed)
	assert.Contains(t, codes(d), "NO_STOP_OR_ENTRY")
}

func TestEvaluateVetoesZeroStopDistance(t *testing.T) {
	g := NewGate(testLimits(), nil)

	intent := testIntent()
	intent.Stop = intent.Entry
	d := g.Evaluate(intent, AccountSnapshot{Equity: 10000}, circuit.Normal)
	assert.False(t, d.Allowed)
	assert.Contains(t, codes(d), "ZERO_STOP_DISTANCE")
}

func TestEvaluateVetoesOpenPosition(t *testing.T) {
	g := NewGate(testLimits(), nil)

	d := g.Evaluate(testIntent(), AccountSnapshot{Equity: 10000, HasPosition: true, OpenPositions: 1}, circuit.Normal)
	assert.False(t, d.Allowed)
	assert.Contains(t, codes(d), "POSITION_OPEN")
}

func TestEvaluateVetoesTooManyPositions(t *testing.T) {
	g := NewGate(testLimits(), nil)

	d := g.Evaluate(testIntent(), AccountSnapshot{Equity: 10000, OpenPositions: 2}, circuit.Normal)
	assert.False(t, d.Allowed)
	assert.Contains(t, codes(d), "TOO_MANY_OPEN_POSITIONS")
}

func TestEvaluateVetoesTinySize(t *testing.T) {
	g := NewGate(testLimits(), nil)

	// Stop distance so wide the floored size drops below the minimum.
	intent := Intent{
		Instrument: "EUR_USD",
		Side:       market.Buy,
		Entry:      1.10,
		Stop:       200.0,
	}
	d := g.Evaluate(intent, AccountSnapshot{Equity: 10}, circuit.Normal)
	assert.False(t, d.Allowed)
	assert.Contains(t, codes(d), "SIZE_TOO_SMALL")
}

func TestCounts(t *testing.T) {
	g := NewGate(testLimits(), nil)

	g.Evaluate(testIntent(), AccountSnapshot{Equity: 10000}, circuit.Normal)
	g.Evaluate(testIntent(), AccountSnapshot{Equity: 10000}, circuit.Halted)

	accepted, vetoed := g.Counts()
	assert.Equal(t, 1, accepted)
	assert.Equal(t, 1, vetoed)
}
