package indicators

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rustyeddy/intrabot/market"
)

func createTestCandles() []market.Candle {
	return []market.Candle{
		{Open: 100, High: 105, Low: 99, Close: 102},
		{Open: 102, High: 107, Low: 101, Close: 105},
		{Open: 105, High: 108, Low: 104, Close: 106},
		{Open: 106, High: 110, Low: 105, Close: 108},
		{Open: 108, High: 112, Low: 107, Close: 110},
		{Open: 110, High: 113, Low: 109, Close: 111},
		{Open: 111, High: 115, Low: 110, Close: 113},
		{Open: 113, High: 116, Low: 112, Close: 114},
		{Open: 114, High: 118, Low: 113, Close: 116},
		{Open: 116, High: 120, Low: 115, Close: 118},
	}
}

func TestMA(t *testing.T) {
	candles := createTestCandles()

	ma, err := MA(candles, 5)
	assert.NoError(t, err)
	// Last 5 closes: 111,113,114,116,118 => 572/5 = 114.4
	assert.InDelta(t, 114.4, ma, 0.001)
}

func TestMANotEnoughCandles(t *testing.T) {
	_, err := MA(createTestCandles(), 11)
	assert.Error(t, err)
}

func TestEMA(t *testing.T) {
	candles := createTestCandles()

	ema, err := EMA(candles, 5)
	assert.NoError(t, err)
	assert.Greater(t, ema, 0.0)
}

func TestStreamingMAMatchesBatch(t *testing.T) {
	candles := createTestCandles()

	ma := NewMA(5)
	for _, c := range candles {
		ma.Update(c)
	}
	assert.True(t, ma.Ready())

	batch, err := MA(candles, 5)
	assert.NoError(t, err)
	assert.InDelta(t, batch, ma.Value(), 1e-9)
}

func TestStreamingEMAMatchesBatch(t *testing.T) {
	candles := createTestCandles()

	ema := NewEMA(5)
	for _, c := range candles {
		ema.Update(c)
	}
	assert.True(t, ema.Ready())

	batch, err := EMA(candles, 5)
	assert.NoError(t, err)
	assert.InDelta(t, batch, ema.Value(), 1e-9)
}

func TestStreamingNotReadyDuringWarmup(t *testing.T) {
	candles := createTestCandles()

	ma := NewMA(5)
	ema := NewEMA(5)
	for i := 0; i < 4; i++ {
		ma.Update(candles[i])
		ema.Update(candles[i])
	}

	assert.False(t, ma.Ready())
	assert.False(t, ema.Ready())
	assert.Equal(t, 0.0, ma.Value())
	assert.Equal(t, 0.0, ema.Value())
}

func TestStreamingReset(t *testing.T) {
	candles := createTestCandles()

	ema := NewEMA(3)
	for _, c := range candles {
		ema.Update(c)
	}
	assert.True(t, ema.Ready())

	ema.Reset()
	assert.False(t, ema.Ready())
	assert.Equal(t, 0.0, ema.Value())
}

func TestATRWarmupAndValue(t *testing.T) {
	candles := []market.Candle{
		{High: 10, Low: 8, Close: 9},
		{High: 11, Low: 9, Close: 10},
		{High: 12, Low: 10, Close: 11},
		{High: 11, Low: 9, Close: 10},
		{High: 12, Low: 10, Close: 11},
	}

	atr := NewATR(3)
	assert.Equal(t, 4, atr.Warmup())

	// First candle only seeds the previous close.
	atr.Update(candles[0])
	assert.False(t, atr.Ready())

	for _, c := range candles[1:] {
		atr.Update(c)
	}
	assert.True(t, atr.Ready())
	// All true ranges are 2, so Wilder smoothing stays at 2.
	assert.InDelta(t, 2.0, atr.Value(), 1e-9)
}

func TestATRGapUsesPrevClose(t *testing.T) {
	atr := NewATR(1)
	atr.Update(market.Candle{High: 10, Low: 9, Close: 10})
	// Gap up: TR = max(12-11, |12-10|, |11-10|) = 2
	atr.Update(market.Candle{High: 12, Low: 11, Close: 12})

	assert.True(t, atr.Ready())
	assert.InDelta(t, 2.0, atr.Value(), 1e-9)
}

func TestIndicatorNames(t *testing.T) {
	assert.Equal(t, "MA(5)", NewMA(5).Name())
	assert.Equal(t, "EMA(9)", NewEMA(9).Name())
	assert.Equal(t, "ATR(14)", NewATR(14).Name())
}
