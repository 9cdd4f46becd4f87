package strategy

import (
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/rustyeddy/intrabot/indicators"
	"github.com/rustyeddy/intrabot/market"
)

// ErrOutOfOrder is returned when a candle arrives at or before the last
// processed open time. The caller decides whether to skip the bar (data
// gap handling) or treat it as a programming fault.
var ErrOutOfOrder = errors.New("strategy: candle out of order")

// Params configures an EMA crossover + pullback generator.
type Params struct {
	FastPeriod int // e.g. 9
	SlowPeriod int // e.g. 21

	// PullbackPct widens the retrace band around the fast EMA.
	// 0 requires the bar to touch the fast EMA exactly.
	PullbackPct float64

	// VolatilityMax blocks entries when ATR/close exceeds it. 0 disables.
	VolatilityMax float64
	ATRPeriod     int // defaults to 14

	// StopLookback is the swing window for stop placement.
	StopLookback int // defaults to 10
	// TargetR is the take-profit distance as a multiple of risk.
	TargetR float64 // defaults to 1.5
}

func (p Params) withDefaults() Params {
	if p.ATRPeriod <= 0 {
		p.ATRPeriod = 14
	}
	if p.StopLookback <= 0 {
		p.StopLookback = 10
	}
	if p.TargetR <= 0 {
		p.TargetR = 1.5
	}
	return p
}

type phase int

const (
	phaseIdle phase = iota
	phaseArmed
	phasePulled
)

// Generator turns one instrument's closed-candle stream into entry and
// exit signals. It keeps fast/slow EMAs updated incrementally, arms a
// pullback watch when the fast EMA crosses the slow one, and emits an
// entry on the first bar confirming trend resumption after a retrace.
//
// The generator is deterministic: replaying the same candle sequence
// reproduces the identical signal sequence. It only ever sees closed
// candles, so every signal is computed from data available at its
// CandleTime.
type Generator struct {
	Instrument string

	params Params
	log    *zap.Logger

	fast *indicators.ExponentialMA
	slow *indicators.ExponentialMA
	atr  *indicators.AverageTrueRange

	lastDiff     float64
	haveLastDiff bool
	lastOpenTime time.Time
	prevClose    float64
	havePrev     bool

	phase      phase
	trend      Direction // Long or Short while armed/pulled
	inPosition bool

	lows  []float64
	highs []float64
}

func NewGenerator(instrument string, params Params, log *zap.Logger) *Generator {
	if log == nil {
		log = zap.NewNop()
	}
	params = params.withDefaults()
	return &Generator{
		Instrument: instrument,
		params:     params,
		log:        log,
		fast:       indicators.NewEMA(params.FastPeriod),
		slow:       indicators.NewEMA(params.SlowPeriod),
		atr:        indicators.NewATR(params.ATRPeriod),
	}
}

// OnPositionOpened tells the generator its entry was filled.
func (g *Generator) OnPositionOpened() { g.inPosition = true }

// OnPositionClosed tells the generator its position was flattened
// (stop, target, or exit fill). The pullback watch is disarmed so a
// fresh crossover is required before the next entry.
func (g *Generator) OnPositionClosed() {
	g.inPosition = false
	g.phase = phaseIdle
}

// OnCandle ingests one closed candle and returns the signals it
// produced, at most one entry and one exit per bar.
func (g *Generator) OnCandle(c market.Candle) ([]Signal, error) {
	if c.Instrument != g.Instrument {
		return nil, nil
	}
	if !g.lastOpenTime.IsZero() && !c.OpenTime.After(g.lastOpenTime) {
		return nil, fmt.Errorf("%w: %s at %s, last %s",
			ErrOutOfOrder, c.Instrument, c.OpenTime, g.lastOpenTime)
	}
	g.lastOpenTime = c.OpenTime

	g.fast.Update(c)
	g.slow.Update(c)
	g.atr.Update(c)
	g.pushSwing(c)

	prevClose := g.prevClose
	havePrev := g.havePrev
	g.prevClose = c.Close
	g.havePrev = true

	if !g.fast.Ready() || !g.slow.Ready() {
		return nil, nil
	}

	diff := g.fast.Value() - g.slow.Value()

	if !g.haveLastDiff {
		g.lastDiff = diff
		g.haveLastDiff = true
		return nil, nil
	}

	bullCross := diff > 0 && g.lastDiff <= 0
	bearCross := diff < 0 && g.lastDiff >= 0
	g.lastDiff = diff

	var signals []Signal

	switch {
	case bullCross:
		if g.inPosition && g.trend == Short {
			signals = append(signals, g.exitSignal(c, "BullCross"))
		}
		g.arm(Long, c)
	case bearCross:
		if g.inPosition && g.trend == Long {
			signals = append(signals, g.exitSignal(c, "BearCross"))
		}
		g.arm(Short, c)
	}

	if entry, ok := g.watchPullback(c, prevClose, havePrev); ok {
		signals = append(signals, entry)
	}

	return signals, nil
}

func (g *Generator) arm(dir Direction, c market.Candle) {
	g.phase = phaseArmed
	g.trend = dir
	g.log.Debug("pullback armed",
		zap.String("instrument", g.Instrument),
		zap.String("trend", dir.String()),
		zap.Time("candle", c.OpenTime),
	)
}

// watchPullback advances the armed/pulled state machine and returns an
// entry signal when the trend resumes after a retrace.
func (g *Generator) watchPullback(c market.Candle, prevClose float64, havePrev bool) (Signal, bool) {
	if g.phase == phaseIdle || g.inPosition {
		return Signal{}, false
	}

	fast := g.fast.Value()
	slow := g.slow.Value()

	// A close through the slow EMA invalidates the setup.
	if broken(g.trend, c.Close, slow) {
		g.phase = phaseIdle
		g.log.Debug("pullback disarmed, slow EMA broken",
			zap.String("instrument", g.Instrument),
			zap.Time("candle", c.OpenTime),
		)
		return Signal{}, false
	}

	switch g.phase {
	case phaseArmed:
		if retraced(g.trend, c, fast, g.params.PullbackPct) {
			g.phase = phasePulled
		}
		return Signal{}, false

	case phasePulled:
		if !resumed(g.trend, c, fast, prevClose, havePrev) {
			return Signal{}, false
		}
		if g.tooVolatile(c) {
			g.log.Debug("entry skipped, volatility guard",
				zap.String("instrument", g.Instrument),
				zap.Float64("atr", g.atr.Value()),
				zap.Time("candle", c.OpenTime),
			)
			return Signal{}, false
		}
		g.phase = phaseIdle
		return g.entrySignal(c), true
	}

	return Signal{}, false
}

func broken(trend Direction, close, slow float64) bool {
	if trend == Long {
		return close < slow
	}
	return close > slow
}

func retraced(trend Direction, c market.Candle, fast, pct float64) bool {
	if trend == Long {
		return c.Low <= fast*(1+pct)
	}
	return c.High >= fast*(1-pct)
}

func resumed(trend Direction, c market.Candle, fast, prevClose float64, havePrev bool) bool {
	if !havePrev {
		return false
	}
	if trend == Long {
		return c.Close > fast && c.Close > prevClose
	}
	return c.Close < fast && c.Close < prevClose
}

func (g *Generator) tooVolatile(c market.Candle) bool {
	if g.params.VolatilityMax <= 0 || !g.atr.Ready() || c.Close == 0 {
		return false
	}
	return g.atr.Value()/c.Close > g.params.VolatilityMax
}

func (g *Generator) entrySignal(c market.Candle) Signal {
	dir := g.trend
	stop := g.swingStop(dir)
	risk := math.Abs(c.Close - stop)
	target := c.Close + g.params.TargetR*risk
	if dir == Short {
		target = c.Close - g.params.TargetR*risk
	}

	slow := g.slow.Value()
	strength := 0.0
	if slow != 0 {
		strength = math.Abs(g.fast.Value()-slow) / math.Abs(slow)
	}

	return Signal{
		Time:       c.CloseTime(),
		Instrument: g.Instrument,
		Direction:  dir,
		Strength:   strength,
		CandleTime: c.OpenTime,
		Entry:      c.Close,
		Stop:       stop,
		Target:     target,
		Reason:     "PullbackResume",
	}
}

func (g *Generator) exitSignal(c market.Candle, reason string) Signal {
	return Signal{
		Time:       c.CloseTime(),
		Instrument: g.Instrument,
		Direction:  Exit,
		CandleTime: c.OpenTime,
		Entry:      c.Close,
		Reason:     "ExitOn" + reason,
	}
}

// swingStop places the protective stop at the swing extreme over the
// lookback window: lowest low for longs, highest high for shorts.
func (g *Generator) swingStop(dir Direction) float64 {
	if dir == Long {
		stop := g.lows[0]
		for _, l := range g.lows {
			if l < stop {
				stop = l
			}
		}
		return stop
	}
	stop := g.highs[0]
	for _, h := range g.highs {
		if h > stop {
			stop = h
		}
	}
	return stop
}

func (g *Generator) pushSwing(c market.Candle) {
	g.lows = append(g.lows, c.Low)
	g.highs = append(g.highs, c.High)
	if len(g.lows) > g.params.StopLookback {
		g.lows = g.lows[1:]
		g.highs = g.highs[1:]
	}
}
