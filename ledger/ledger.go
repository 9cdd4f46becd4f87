// Package ledger aggregates fills into positions, realized and
// unrealized P&L, and the session equity curve.
package ledger

import (
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/rustyeddy/intrabot/exec"
	"github.com/rustyeddy/intrabot/journal"
	"github.com/rustyeddy/intrabot/market"
	"github.com/rustyeddy/intrabot/order"
)

// EquityPoint is one sample of the equity curve. Points are append-only
// and monotonic in time.
type EquityPoint struct {
	Time        time.Time
	Equity      float64
	RealizedCum float64
}

// Ledger consumes the fill stream in timestamp order. Equity is cash
// plus unrealized P&L of open positions; realized P&L is the
// irreversible component once a fill reduces or closes a position.
type Ledger struct {
	cash         float64
	startBalance float64
	realizedCum  float64

	positions   map[string]*Position
	instruments []string // first-seen order, for deterministic iteration
	lastPrice   map[string]float64

	curve []EquityPoint

	trades int
	wins   int
	losses int

	journal journal.Journal
	log     *zap.Logger
}

func New(balance float64, j journal.Journal, log *zap.Logger) *Ledger {
	if j == nil {
		j = journal.Nop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Ledger{
		cash:         balance,
		startBalance: balance,
		positions:    make(map[string]*Position),
		lastPrice:    make(map[string]float64),
		journal:      j,
		log:          log,
	}
}

// Equity returns cash plus unrealized P&L at last seen prices.
func (l *Ledger) Equity() float64 {
	equity := l.cash
	for _, inst := range l.instruments {
		p, ok := l.positions[inst]
		if !ok {
			continue
		}
		price, ok := l.lastPrice[inst]
		if !ok {
			price = p.AvgEntry
		}
		equity += p.Unrealized(price)
	}
	return equity
}

func (l *Ledger) Cash() float64         { return l.cash }
func (l *Ledger) RealizedCum() float64  { return l.realizedCum }
func (l *Ledger) StartBalance() float64 { return l.startBalance }

// Position returns the open position for instrument, if any.
func (l *Ledger) Position(instrument string) (*Position, bool) {
	p, ok := l.positions[instrument]
	return p, ok
}

// OpenPositions returns the number of open positions.
func (l *Ledger) OpenPositions() int { return len(l.positions) }

// LastPrice reports the most recent mark for the instrument.
func (l *Ledger) LastPrice(instrument string) (float64, bool) {
	p, ok := l.lastPrice[instrument]
	return p, ok
}

// Positions returns copies of all open positions in first-seen order.
func (l *Ledger) Positions() []Position {
	var out []Position
	for _, inst := range l.instruments {
		if p, ok := l.positions[inst]; ok {
			out = append(out, *p)
		}
	}
	return out
}

// Curve returns the full equity curve.
func (l *Ledger) Curve() []EquityPoint { return l.curve }

// Stats returns closed-trade counts.
func (l *Ledger) Stats() (trades, wins, losses int) {
	return l.trades, l.wins, l.losses
}

// ApplyFill books one fill against the ledger. Entry fills open or
// extend the instrument's position; exit fills realize P&L. The reason
// labels the blotter row when the fill closes the trade.
func (l *Ledger) ApplyFill(f exec.Fill, o *order.Order, reason string) error {
	l.cash -= f.Fee

	if o.Exit {
		if err := l.applyExit(f, o, reason); err != nil {
			return err
		}
	} else {
		if err := l.applyEntry(f, o); err != nil {
			return err
		}
	}

	l.touch(f.Instrument)
	l.lastPrice[f.Instrument] = f.Price
	l.emit(f.Time)
	return nil
}

func (l *Ledger) applyEntry(f exec.Fill, o *order.Order) error {
	p, ok := l.positions[f.Instrument]
	if !ok {
		l.positions[f.Instrument] = &Position{
			Instrument:   f.Instrument,
			Side:         f.Side,
			Units:        f.Units,
			AvgEntry:     f.Price,
			Stop:         o.Stop,
			Target:       o.Target,
			OpenTime:     f.Time,
			EntryOrderID: o.ID,
			initialRisk:  math.Abs(f.Price - o.Stop),
		}
		return nil
	}

	if p.Side != f.Side {
		return fmt.Errorf("ledger: entry fill against open %s position in %s",
			p.Side, f.Instrument)
	}

	// Size-weighted average on same-direction fills.
	total := p.Units + f.Units
	p.AvgEntry = (p.AvgEntry*p.Units + f.Price*f.Units) / total
	p.Units = total
	return nil
}

func (l *Ledger) applyExit(f exec.Fill, o *order.Order, reason string) error {
	p, ok := l.positions[f.Instrument]
	if !ok {
		return fmt.Errorf("ledger: exit fill with no open position in %s", f.Instrument)
	}
	if f.Side == p.Side {
		return fmt.Errorf("ledger: exit fill on same side as position in %s", f.Instrument)
	}

	units := f.Units
	if units > p.Units+1e-9 {
		return fmt.Errorf("ledger: exit units %v exceed position %v", units, p.Units)
	}
	if units > p.Units {
		units = p.Units
	}

	// Realize proportionally on the reduced size.
	pnl := (f.Price - p.AvgEntry) * units * p.Side.Sign()
	l.cash += pnl
	l.realizedCum += pnl
	p.Units -= units
	p.exitedUnits += units
	p.exitValue += f.Price * units
	p.realized += pnl

	if p.Units <= 1e-9 {
		delete(l.positions, f.Instrument)

		l.trades++
		if p.realized > 0 {
			l.wins++
		} else if p.realized < 0 {
			l.losses++
		}

		rec := journal.TradeRecord{
			OrderID:    p.EntryOrderID,
			Instrument: p.Instrument,
			Side:       p.Side,
			Units:      p.exitedUnits,
			EntryPrice: p.AvgEntry,
			ExitPrice:  p.exitValue / p.exitedUnits,
			OpenTime:   p.OpenTime,
			CloseTime:  f.Time,
			RealizedPL: p.realized,
			Reason:     reason,
		}
		if err := l.journal.RecordTrade(rec); err != nil {
			return err
		}

		l.log.Info("trade closed",
			zap.String("instrument", p.Instrument),
			zap.String("side", p.Side.String()),
			zap.Float64("units", p.exitedUnits),
			zap.Float64("realized_pl", p.realized),
			zap.String("reason", reason),
		)
	}
	return nil
}

// MarkCandle revalues the instrument at the bar close, emits the
// per-bar equity point, and reports any stop or target hit inside the
// bar. Exit checks run against the stop as it stood before this bar;
// the breakeven trail engages afterwards.
func (l *Ledger) MarkCandle(c market.Candle) (ExitTrigger, bool) {
	l.touch(c.Instrument)
	l.lastPrice[c.Instrument] = c.Close

	var trig ExitTrigger
	var hit bool
	if p, ok := l.positions[c.Instrument]; ok {
		trig, hit = p.checkExit(c)
		if !hit && p.updateTrailing(c.Close) {
			l.log.Info("stop trailed to breakeven",
				zap.String("instrument", p.Instrument),
				zap.Float64("stop", p.Stop),
			)
		}
	}

	l.emit(c.CloseTime())
	return trig, hit
}

func (l *Ledger) touch(instrument string) {
	for _, inst := range l.instruments {
		if inst == instrument {
			return
		}
	}
	l.instruments = append(l.instruments, instrument)
}

func (l *Ledger) emit(t time.Time) {
	pt := EquityPoint{
		Time:        t,
		Equity:      l.Equity(),
		RealizedCum: l.realizedCum,
	}
	l.curve = append(l.curve, pt)

	if err := l.journal.RecordEquity(journal.EquitySnapshot{
		Time:        pt.Time,
		Balance:     l.cash,
		Equity:      pt.Equity,
		RealizedCum: pt.RealizedCum,
	}); err != nil {
		l.log.Error("record equity", zap.Error(err))
	}
}
