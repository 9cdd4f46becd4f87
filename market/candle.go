package market

import "time"

// Candle represents one closed OHLC (Open, High, Low, Close) bar.
// Candles are immutable once emitted and strictly ordered by OpenTime
// per instrument; no two candles of the same instrument and timeframe
// share an OpenTime.
type Candle struct {
	Instrument string
	Timeframe  time.Duration
	OpenTime   time.Time

	Open  float64
	High  float64
	Low   float64
	Close float64

	Volume float64
}

// CloseTime is the first instant after the bar is fully closed.
func (c Candle) CloseTime() time.Time {
	return c.OpenTime.Add(c.Timeframe)
}

// Contains reports whether p lies inside the bar's traded range.
func (c Candle) Contains(p float64) bool {
	return p >= c.Low && p <= c.High
}
