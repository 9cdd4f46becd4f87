// Package circuit implements the session-wide trading circuit breaker.
//
// A single Breaker instance owns CircuitState for the session. All
// writes go through transition methods called from the decision loop;
// nothing else may mutate the state.
package circuit

import (
	"errors"
	"time"

	"go.uber.org/zap"
)

// Mode is the circuit breaker state.
type Mode int

const (
	Normal Mode = iota
	Warning
	Halted
)

func (m Mode) String() string {
	switch m {
	case Warning:
		return "warning"
	case Halted:
		return "halted"
	default:
		return "normal"
	}
}

// ResumePolicy selects how a halt clears.
type ResumePolicy int

const (
	// ResumeDaily clears a halt automatically at the next UTC day boundary.
	ResumeDaily ResumePolicy = iota
	// ResumeManual keeps the halt until an explicit Resume call.
	ResumeManual
)

var ErrNotHalted = errors.New("circuit: not halted")

// Config sets the breaker thresholds for a session.
type Config struct {
	// SoftDrawdownPct moves Normal -> Warning (alert only).
	SoftDrawdownPct float64
	// MaxDrawdownPct moves Warning -> Halted; all new entries are vetoed.
	MaxDrawdownPct float64
	// MaxExecErrors halts after this many consecutive execution-adapter
	// errors. 0 disables the error trip.
	MaxExecErrors int
	ResumePolicy  ResumePolicy
}

// Breaker tracks daily drawdown and execution errors and decides when
// trading must stop taking new risk.
type Breaker struct {
	cfg Config
	log *zap.Logger

	mode        Mode
	reason      string
	haltedSince time.Time

	day            time.Time // UTC midnight of the current trading day
	dayStartEquity float64
	execErrors     int
}

func NewBreaker(cfg Config, log *zap.Logger) *Breaker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Breaker{cfg: cfg, log: log}
}

// Mode returns the current state.
func (b *Breaker) Mode() Mode { return b.mode }

// Reason returns the cause recorded with the last transition.
func (b *Breaker) Reason() string { return b.reason }

// HaltedSince returns when the current halt began; zero if not halted.
func (b *Breaker) HaltedSince() time.Time { return b.haltedSince }

// DayStartEquity returns the equity snapshot at the UTC day boundary.
func (b *Breaker) DayStartEquity() float64 { return b.dayStartEquity }

// Observe updates the breaker with the equity at event time t. It must
// be called from the single decision loop only.
func (b *Breaker) Observe(t time.Time, equity float64) Mode {
	day := t.UTC().Truncate(24 * time.Hour)
	if b.day.IsZero() {
		b.day = day
		b.dayStartEquity = equity
	} else if day.After(b.day) {
		b.rollDay(day, equity)
	}

	if b.dayStartEquity <= 0 {
		return b.mode
	}
	dd := (b.dayStartEquity - equity) / b.dayStartEquity

	switch b.mode {
	case Normal:
		if b.cfg.MaxDrawdownPct > 0 && dd > b.cfg.MaxDrawdownPct {
			// Fast markets can blow through the soft band inside one bar.
			b.transition(Warning, "soft drawdown threshold exceeded", t)
			b.transition(Halted, "max daily drawdown exceeded", t)
		} else if b.cfg.SoftDrawdownPct > 0 && dd > b.cfg.SoftDrawdownPct {
			b.transition(Warning, "soft drawdown threshold exceeded", t)
		}
	case Warning:
		if b.cfg.MaxDrawdownPct > 0 && dd > b.cfg.MaxDrawdownPct {
			b.transition(Halted, "max daily drawdown exceeded", t)
		}
	}

	return b.mode
}

// RecordExecError counts one execution-adapter failure and halts when
// the consecutive-error bound is crossed.
func (b *Breaker) RecordExecError(t time.Time) Mode {
	b.execErrors++
	if b.cfg.MaxExecErrors > 0 && b.execErrors >= b.cfg.MaxExecErrors && b.mode != Halted {
		if b.mode == Normal {
			b.transition(Warning, "consecutive execution errors", t)
		}
		b.transition(Halted, "consecutive execution errors", t)
	}
	return b.mode
}

// RecordExecSuccess resets the consecutive-error counter.
func (b *Breaker) RecordExecSuccess() { b.execErrors = 0 }

// Resume clears a halt on operator request.
func (b *Breaker) Resume(t time.Time) error {
	if b.mode != Halted {
		return ErrNotHalted
	}
	b.execErrors = 0
	b.transition(Normal, "manual resume", t)
	return nil
}

func (b *Breaker) rollDay(day time.Time, equity float64) {
	b.day = day
	b.dayStartEquity = equity
	if b.mode == Halted && b.cfg.ResumePolicy == ResumeDaily {
		b.execErrors = 0
		b.transition(Normal, "daily reset", day)
	} else if b.mode == Warning {
		b.transition(Normal, "daily reset", day)
	}
}

func (b *Breaker) transition(to Mode, reason string, t time.Time) {
	from := b.mode
	b.mode = to
	b.reason = reason
	if to == Halted {
		b.haltedSince = t
	} else {
		b.haltedSince = time.Time{}
	}

	b.log.Warn("circuit transition",
		zap.String("from", from.String()),
		zap.String("to", to.String()),
		zap.String("reason", reason),
		zap.Time("at", t),
	)
}
