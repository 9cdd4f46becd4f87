package strategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/intrabot/market"
)

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func testParams() Params {
	return Params{
		FastPeriod: 3,
		SlowPeriod: 5,
	}
}

// cross-then-pullback closes: five falling bars seed the EMAs with the
// fast below the slow, three rising bars produce the bull cross, one
// bar retraces to the fast EMA and the last bar resumes the trend.
var scenarioCloses = []float64{110, 108, 106, 104, 102, 106, 108, 110, 108.8, 109.6}

func scenarioCandles() []market.Candle {
	out := make([]market.Candle, len(scenarioCloses))
	for i, close := range scenarioCloses {
		out[i] = market.Candle{
			Instrument: "BTC_USD",
			Timeframe:  5 * time.Minute,
			OpenTime:   t0.Add(time.Duration(i) * 5 * time.Minute),
			Open:       close,
			High:       close + 1,
			Low:        close - 1,
			Close:      close,
		}
	}
	return out
}

func collect(t *testing.T, g *Generator, candles []market.Candle) []Signal {
	t.Helper()
	var all []Signal
	for _, c := range candles {
		sigs, err := g.OnCandle(c)
		require.NoError(t, err)
		all = append(all, sigs...)
	}
	return all
}

func TestPullbackEntryAfterBullCross(t *testing.T) {
	g := NewGenerator("BTC_USD", testParams(), nil)
	candles := scenarioCandles()

	signals := collect(t, g, candles)
	require.Len(t, signals, 1)

	sig := signals[0]
	assert.Equal(t, Long, sig.Direction)
	assert.Equal(t, "PullbackResume", sig.Reason)
	assert.InDelta(t, 109.6, sig.Entry, 1e-9)
	// Swing stop: lowest low of the lookback window.
	assert.InDelta(t, 101, sig.Stop, 1e-9)
	// Target at 1.5R above entry: 109.6 + 1.5*8.6.
	assert.InDelta(t, 122.5, sig.Target, 1e-9)
	assert.Greater(t, sig.Strength, 0.0)

	// The signal stems from the final bar and nothing later.
	last := candles[len(candles)-1]
	assert.Equal(t, last.OpenTime, sig.CandleTime)
	assert.Equal(t, last.CloseTime(), sig.Time)
}

func TestDeterministicReplay(t *testing.T) {
	candles := scenarioCandles()

	a := collect(t, NewGenerator("BTC_USD", testParams(), nil), candles)
	b := collect(t, NewGenerator("BTC_USD", testParams(), nil), candles)
	assert.Equal(t, a, b)
}

func TestSignalsUseOnlyPastCandles(t *testing.T) {
	candles := scenarioCandles()

	full := collect(t, NewGenerator("BTC_USD", testParams(), nil), candles)
	require.Len(t, full, 1)

	// Replaying only the candles up to the signal's CandleTime must
	// reproduce the identical signal: later bars contributed nothing.
	var upto []market.Candle
	for _, c := range candles {
		if !c.OpenTime.After(full[0].CandleTime) {
			upto = append(upto, c)
		}
	}
	truncated := collect(t, NewGenerator("BTC_USD", testParams(), nil), upto)
	assert.Equal(t, full, truncated)
}

func TestNoEntryWithoutPullback(t *testing.T) {
	g := NewGenerator("BTC_USD", testParams(), nil)

	// The cross happens but price runs away without retracing to the
	// fast EMA: no entry.
	closes := []float64{110, 108, 106, 104, 102, 106, 110, 115, 121, 128}
	candles := make([]market.Candle, len(closes))
	for i, close := range closes {
		candles[i] = market.Candle{
			Instrument: "BTC_USD",
			Timeframe:  5 * time.Minute,
			OpenTime:   t0.Add(time.Duration(i) * 5 * time.Minute),
			Open:       close,
			High:       close + 0.5,
			Low:        close - 0.5,
			Close:      close,
		}
	}
	assert.Empty(t, collect(t, g, candles))
}

func TestExitSignalOnOppositeCross(t *testing.T) {
	g := NewGenerator("BTC_USD", testParams(), nil)
	candles := scenarioCandles()

	signals := collect(t, g, candles)
	require.Len(t, signals, 1)
	g.OnPositionOpened()

	// A sharp reversal crosses the EMAs back down.
	c := market.Candle{
		Instrument: "BTC_USD",
		Timeframe:  5 * time.Minute,
		OpenTime:   t0.Add(10 * 5 * time.Minute),
		Open:       104, High: 105, Low: 103, Close: 104,
	}
	sigs, err := g.OnCandle(c)
	require.NoError(t, err)
	require.Len(t, sigs, 1)
	assert.Equal(t, Exit, sigs[0].Direction)
	assert.Equal(t, "ExitOnBearCross", sigs[0].Reason)
}

func TestNoReentryWhileInPosition(t *testing.T) {
	g := NewGenerator("BTC_USD", testParams(), nil)
	candles := scenarioCandles()

	signals := collect(t, g, candles)
	require.Len(t, signals, 1)
	g.OnPositionOpened()

	// Same shape again: another cross and pullback, but with the
	// position open only the exit path may produce signals.
	again := scenarioCandles()
	for i := range again {
		again[i].OpenTime = t0.Add(time.Duration(10+i) * 5 * time.Minute)
	}
	for _, sig := range collect(t, g, again) {
		assert.Equal(t, Exit, sig.Direction)
	}
}

func TestVolatilityGuardBlocksEntry(t *testing.T) {
	params := testParams()
	params.ATRPeriod = 2
	params.VolatilityMax = 0.0001
	g := NewGenerator("BTC_USD", params, nil)

	assert.Empty(t, collect(t, g, scenarioCandles()))
}

func TestOutOfOrderCandleRejected(t *testing.T) {
	g := NewGenerator("BTC_USD", testParams(), nil)
	candles := scenarioCandles()

	_, err := g.OnCandle(candles[0])
	require.NoError(t, err)
	_, err = g.OnCandle(candles[0])
	assert.ErrorIs(t, err, ErrOutOfOrder)
}

func TestOtherInstrumentIgnored(t *testing.T) {
	g := NewGenerator("BTC_USD", testParams(), nil)

	c := scenarioCandles()[0]
	c.Instrument = "ETH_USD"
	sigs, err := g.OnCandle(c)
	require.NoError(t, err)
	assert.Empty(t, sigs)
}

func TestPositionClosedDisarmsWatch(t *testing.T) {
	g := NewGenerator("BTC_USD", testParams(), nil)

	// Stop right before the resumption bar: armed and pulled.
	candles := scenarioCandles()
	collect(t, g, candles[:9])

	g.OnPositionOpened()
	g.OnPositionClosed()

	// The resumption bar alone must not produce an entry now; a fresh
	// crossover is required first.
	sigs, err := g.OnCandle(candles[9])
	require.NoError(t, err)
	assert.Empty(t, sigs)
}
