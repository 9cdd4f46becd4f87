package backtest

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/intrabot/circuit"
	"github.com/rustyeddy/intrabot/engine"
	"github.com/rustyeddy/intrabot/feed"
	"github.com/rustyeddy/intrabot/ledger"
	"github.com/rustyeddy/intrabot/market"
	"github.com/rustyeddy/intrabot/order"
	"github.com/rustyeddy/intrabot/pkg/id"
	"github.com/rustyeddy/intrabot/risk"
	"github.com/rustyeddy/intrabot/sim"
	"github.com/rustyeddy/intrabot/strategy"
)

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

// dataset: EMA seed, bull cross, pullback, resumption entry, then a
// stop-out. The final bars give the simulator room to fill.
var closes = []float64{
	110, 108, 106, 104, 102, 106, 108, 110, 108.8, 109.6,
}

func dataset() []market.Candle {
	candles := make([]market.Candle, 0, len(closes)+3)
	for i, close := range closes {
		candles = append(candles, market.Candle{
			Instrument: "BTC_USD",
			Timeframe:  5 * time.Minute,
			OpenTime:   t0.Add(time.Duration(i) * 5 * time.Minute),
			Open:       close,
			High:       close + 1,
			Low:        close - 1,
			Close:      close,
		})
	}
	extra := []market.Candle{
		{Open: 109.8, High: 110.4, Low: 109.2, Close: 110.1},
		{Open: 108, High: 108.5, Low: 100.5, Close: 101.5},
		{Open: 101.2, High: 102, Low: 100.8, Close: 101.6},
	}
	for i := range extra {
		extra[i].Instrument = "BTC_USD"
		extra[i].Timeframe = 5 * time.Minute
		extra[i].OpenTime = t0.Add(time.Duration(len(closes)+i) * 5 * time.Minute)
	}
	return append(candles, extra...)
}

func newEngine(seed int64) *engine.Engine {
	return engine.New(engine.Params{
		Mode: "backtest",
		Strategy: strategy.Params{
			FastPeriod: 3,
			SlowPeriod: 5,
		},
		Gate: risk.NewGate(risk.Limits{
			MaxRiskPct:             0.01,
			MaxConcurrentPositions: 1,
		}, nil),
		Book:    order.NewBook(30*time.Second, time.Second, 3, nil),
		Adapter: sim.New(sim.Config{LatencyBars: 1}, nil),
		Ledger:  ledger.New(10000, nil, nil),
		Breaker: circuit.NewBreaker(circuit.Config{
			SoftDrawdownPct: 0.05,
			MaxDrawdownPct:  0.06,
			MaxExecErrors:   5,
		}, nil),
		IDs: id.NewGenerator(seed),
	})
}

func runOnce(t *testing.T, seed int64) Report {
	t.Helper()
	runner := &Runner{
		Engine:  newEngine(seed),
		Feed:    feed.NewSliceFeed(dataset()),
		Options: Options{CloseEnd: true},
	}
	report, err := runner.Run()
	require.NoError(t, err)
	return report
}

func TestRunProducesCompleteTrade(t *testing.T) {
	report := runOnce(t, 1)

	assert.Equal(t, 13, report.Candles)
	assert.Equal(t, t0, report.Start)
	assert.Equal(t, t0.Add(13*5*time.Minute), report.End)

	assert.Equal(t, 1, report.Trades)
	assert.Equal(t, 0, report.Wins)
	assert.Equal(t, 1, report.Losses)
	assert.InDelta(t, 10000, report.StartBalance, 1e-9)
	// The stop-out costs roughly the 1% risked.
	assert.InDelta(t, 9900, report.FinalEquity, 1)
	assert.Less(t, report.TotalReturnPct, 0.0)
	assert.Greater(t, report.MaxDrawdownPct, 0.0)
	assert.NotEmpty(t, report.Curve)
}

func TestReplayIsByteIdentical(t *testing.T) {
	a := runOnce(t, 42)
	b := runOnce(t, 42)
	assert.Equal(t, a, b)

	var bufA, bufB bytes.Buffer
	require.NoError(t, a.Render(&bufA))
	require.NoError(t, b.Render(&bufB))
	assert.Equal(t, bufA.Bytes(), bufB.Bytes())
}

func TestRenderFormat(t *testing.T) {
	report := runOnce(t, 1)

	var buf bytes.Buffer
	require.NoError(t, report.Render(&buf))

	out := buf.String()
	assert.Contains(t, out, "Backtest Report")
	assert.Contains(t, out, "Start balance: 10000.00")
	assert.Contains(t, out, "Trades:        1 (0 wins / 1 losses")
	assert.NotContains(t, out, "Data gaps")
}

func TestRunRequiresEngineAndFeed(t *testing.T) {
	_, err := (&Runner{Feed: feed.NewSliceFeed(nil)}).Run()
	assert.Error(t, err)

	_, err = (&Runner{Engine: newEngine(1)}).Run()
	assert.Error(t, err)
}

func TestMaxDrawdownPct(t *testing.T) {
	curve := []ledger.EquityPoint{
		{Equity: 100}, {Equity: 120}, {Equity: 90}, {Equity: 110},
	}
	// Peak 120 to trough 90 is a 25% drawdown.
	assert.InDelta(t, 25, maxDrawdownPct(curve), 1e-9)
}
