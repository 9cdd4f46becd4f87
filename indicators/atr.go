package indicators

import (
	"fmt"
	"math"

	"github.com/rustyeddy/intrabot/market"
)

// AverageTrueRange is a streaming ATR indicator using Wilder smoothing.
type AverageTrueRange struct {
	period    int
	atr       float64
	count     int
	warmupSum float64
	prevClose float64
	havePrev  bool
}

// NewATR creates a new Average True Range indicator with the given period
func NewATR(period int) *AverageTrueRange {
	return &AverageTrueRange{period: period}
}

func (a *AverageTrueRange) Name() string {
	return fmt.Sprintf("ATR(%d)", a.period)
}

// Warmup returns the number of candles needed before Value is meaningful.
// One extra candle is required to seed the previous close.
func (a *AverageTrueRange) Warmup() int {
	return a.period + 1
}

func (a *AverageTrueRange) Reset() {
	a.atr = 0
	a.count = 0
	a.warmupSum = 0
	a.prevClose = 0
	a.havePrev = false
}

func (a *AverageTrueRange) Update(c market.Candle) {
	if !a.havePrev {
		a.prevClose = c.Close
		a.havePrev = true
		return
	}

	tr := trueRange(c, a.prevClose)
	a.prevClose = c.Close

	if a.count < a.period {
		a.warmupSum += tr
		a.count++
		if a.count == a.period {
			a.atr = a.warmupSum / float64(a.period)
		}
		return
	}

	// Wilder's smoothing
	a.atr = (a.atr*float64(a.period-1) + tr) / float64(a.period)
	a.count++
}

func (a *AverageTrueRange) Ready() bool {
	return a.count >= a.period
}

func (a *AverageTrueRange) Value() float64 {
	if !a.Ready() {
		return 0
	}
	return a.atr
}

// trueRange calculates the True Range for a candle given the previous close
func trueRange(current market.Candle, prevClose float64) float64 {
	highLow := current.High - current.Low
	highClose := math.Abs(current.High - prevClose)
	lowClose := math.Abs(current.Low - prevClose)

	return math.Max(highLow, math.Max(highClose, lowClose))
}
