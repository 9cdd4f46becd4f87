// Package engine runs the serialized decision loop: candle-closed,
// fill, acknowledgement and control events are processed strictly one
// at a time against shared state, so the live path keeps the same
// causal ordering guarantees as a backtest replay.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rustyeddy/intrabot/circuit"
	"github.com/rustyeddy/intrabot/exec"
	"github.com/rustyeddy/intrabot/ledger"
	"github.com/rustyeddy/intrabot/market"
	"github.com/rustyeddy/intrabot/order"
	"github.com/rustyeddy/intrabot/pkg/id"
	"github.com/rustyeddy/intrabot/risk"
	"github.com/rustyeddy/intrabot/strategy"
)

// Params wires an engine for one trading session.
type Params struct {
	Mode     string // "backtest", "paper", "live"
	Strategy strategy.Params
	Gate     *risk.Gate
	Book     *order.Book
	Adapter  exec.Adapter
	Ledger   *ledger.Ledger
	Breaker  *circuit.Breaker
	IDs      *id.Generator
	Log      *zap.Logger

	// MaxSubmitRetries bounds total submission attempts after transient
	// adapter errors; retries are spaced by the book's exponential
	// backoff schedule.
	MaxSubmitRetries int
	// QueueCapacity sizes the live event queue.
	QueueCapacity int
}

// Engine owns all mutable session state. Every mutation of the ledger,
// order book and circuit state happens inside Process, which is only
// ever invoked from one goroutine.
type Engine struct {
	mode string
	log  *zap.Logger

	strat   strategy.Params
	gens    map[string]*strategy.Generator
	gate    *risk.Gate
	book    *order.Book
	adapter exec.Adapter
	ledger  *ledger.Ledger
	breaker *circuit.Breaker
	ids     *id.Generator

	queue *Queue

	paused           bool
	now              time.Time
	maxSubmitRetries int

	// fatal holds instruments whose trading is halted after an
	// unrecoverable execution failure.
	fatal map[string]string
	// exitReason labels pending exit orders for the blotter.
	exitReason map[string]string
	// pendingExit guards against duplicate exit orders per instrument.
	pendingExit map[string]bool

	dataGaps int
}

func New(p Params) *Engine {
	if p.Log == nil {
		p.Log = zap.NewNop()
	}
	if p.MaxSubmitRetries <= 0 {
		p.MaxSubmitRetries = 3
	}
	if p.QueueCapacity <= 0 {
		p.QueueCapacity = 1024
	}

	e := &Engine{
		mode:             p.Mode,
		log:              p.Log,
		strat:            p.Strategy,
		gens:             make(map[string]*strategy.Generator),
		gate:             p.Gate,
		book:             p.Book,
		adapter:          p.Adapter,
		ledger:           p.Ledger,
		breaker:          p.Breaker,
		ids:              p.IDs,
		queue:            NewQueue(p.QueueCapacity),
		maxSubmitRetries: p.MaxSubmitRetries,
		fatal:            make(map[string]string),
		exitReason:       make(map[string]string),
		pendingExit:      make(map[string]bool),
	}

	if s, ok := p.Adapter.(interface {
		SetUnfillableHandler(exec.UnfillableHandler)
	}); ok {
		s.SetUnfillableHandler(e.onUnfillable)
	}

	return e
}

// Queue exposes the ingestion boundary for live feeds and adapters.
func (e *Engine) Queue() *Queue { return e.queue }

// Run drains the event queue until the context is cancelled or the
// queue is closed. Live and demo sessions call this once.
func (e *Engine) Run(ctx context.Context) error {
	return e.queue.Run(ctx, e.Process)
}

// Pause stops new entries without touching open risk.
func (e *Engine) Pause() error {
	return e.queue.TryPublish(Event{Kind: KindPause, Time: e.now})
}

// Resume re-enables new entries.
func (e *Engine) Resume() error {
	return e.queue.TryPublish(Event{Kind: KindResume, Time: e.now})
}

// Process handles exactly one event. The backtest driver calls it
// directly; live mode reaches it through Run. It is not safe for
// concurrent use.
func (e *Engine) Process(ev Event) error {
	if !ev.Time.IsZero() {
		e.now = ev.Time
	}

	switch ev.Kind {
	case KindCandleClosed:
		return e.onCandle(ev.Candle)
	case KindFill:
		return e.onFill(ev.Fill)
	case KindOrderAck:
		e.book.MarkAck(ev.OrderID, ev.Time)
		return nil
	case KindPause:
		e.paused = true
		e.log.Info("trading paused")
		return nil
	case KindResume:
		e.paused = false
		e.log.Info("trading resumed")
		return nil
	case KindCircuitResume:
		if err := e.breaker.Resume(ev.Time); err != nil {
			return err
		}
		return nil
	default:
		return fmt.Errorf("engine: unknown event kind %d", ev.Kind)
	}
}

// onCandle is the per-bar pipeline. Order matters: fills the simulator
// attributes to this bar land first, then the ledger revalues and
// reports stop/target hits, then acknowledgement timeouts and due
// resubmissions run, and only then does the signal generator see the
// bar.
func (e *Engine) onCandle(c market.Candle) error {
	if marker, ok := e.adapter.(exec.CandleMarker); ok {
		for _, f := range marker.MarkCandle(c) {
			if err := e.onFill(f); err != nil {
				return err
			}
		}
	}

	trig, hit := e.ledger.MarkCandle(c)
	e.breaker.Observe(c.CloseTime(), e.ledger.Equity())
	if hit {
		e.submitExit(c.Instrument, trig.Reason, c.CloseTime())
	}

	e.checkAckTimeouts(c.CloseTime())
	for _, o := range e.book.DueForResubmit(c.CloseTime()) {
		e.submit(o, c.CloseTime())
	}

	gen := e.generator(c.Instrument)
	signals, err := gen.OnCandle(c)
	if err != nil {
		if errors.Is(err, strategy.ErrOutOfOrder) {
			// DataGap: skip the bar, warn, never fabricate data.
			e.dataGaps++
			e.log.Warn("out-of-order candle skipped",
				zap.String("instrument", c.Instrument),
				zap.Time("open_time", c.OpenTime),
			)
			return nil
		}
		return err
	}

	for _, sig := range signals {
		switch sig.Direction {
		case strategy.Exit:
			e.submitExit(sig.Instrument, sig.Reason, sig.Time)
		case strategy.Long, strategy.Short:
			e.handleEntry(sig)
		}
	}
	return nil
}

func (e *Engine) handleEntry(sig strategy.Signal) {
	if reason, dead := e.fatal[sig.Instrument]; dead {
		e.log.Warn("entry suppressed, instrument halted",
			zap.String("instrument", sig.Instrument),
			zap.String("reason", reason),
		)
		return
	}
	if e.paused {
		e.log.Info("entry suppressed, paused",
			zap.String("instrument", sig.Instrument))
		return
	}

	side := market.Buy
	if sig.Direction == strategy.Short {
		side = market.Sell
	}

	intent := risk.Intent{
		Instrument: sig.Instrument,
		Side:       side,
		Entry:      sig.Entry,
		Stop:       sig.Stop,
		Target:     sig.Target,
		SignalTime: sig.Time,
	}
	_, hasPos := e.ledger.Position(sig.Instrument)
	snap := risk.AccountSnapshot{
		Equity:        e.ledger.Equity(),
		OpenPositions: e.ledger.OpenPositions(),
		HasPosition:   hasPos,
	}

	decision := e.gate.Evaluate(intent, snap, e.breaker.Mode())
	if !decision.Allowed {
		return
	}

	o := order.New(e.ids.Next(sig.Time), sig.Instrument, side,
		decision.Units, sig.Stop, sig.Target, sig.Time)
	e.book.Add(o)
	if err := o.Transition(order.RiskApproved, sig.Time); err != nil {
		e.log.Error("risk approval transition", zap.Error(err))
		return
	}
	e.submit(o, sig.Time)
}

// submitExit flattens the instrument's open position through the same
// order/execution chain as entries. Exits bypass the risk gate and the
// pause flag: risk reduction is never blocked.
func (e *Engine) submitExit(instrument, reason string, at time.Time) {
	pos, ok := e.ledger.Position(instrument)
	if !ok || e.pendingExit[instrument] {
		return
	}

	o := order.New(e.ids.Next(at), instrument, pos.Side.Opposite(),
		pos.Units, 0, 0, at)
	o.Exit = true
	e.book.Add(o)
	if err := o.Transition(order.RiskApproved, at); err != nil {
		e.log.Error("exit approval transition", zap.Error(err))
		return
	}

	e.exitReason[o.ID] = reason
	e.pendingExit[instrument] = true
	e.submit(o, at)
}

func (e *Engine) submit(o *order.Order, at time.Time) {
	req := exec.Request{
		OrderID:    o.ID,
		Instrument: o.Instrument,
		Side:       o.Side,
		Units:      o.Units,
	}

	ack, err := e.adapter.Submit(context.Background(), req)
	if err != nil {
		e.breaker.RecordExecError(at)
		if exec.IsTransient(err) && o.SubmitAttempts+1 < e.maxSubmitRetries {
			e.book.ScheduleResubmit(o, at)
			return
		}
		e.rejectSubmit(o, err, at)
		return
	}

	o.NextSubmitAt = time.Time{}
	e.breaker.RecordExecSuccess()
	if terr := e.book.MarkSubmitted(o, at); terr != nil {
		e.log.Error("submit transition", zap.Error(terr))
		return
	}
	if ack.OrderID != "" {
		e.book.MarkAck(o.ID, at)
	}

	e.log.Info("order submitted",
		zap.String("order_id", o.ID),
		zap.String("instrument", o.Instrument),
		zap.String("side", o.Side.String()),
		zap.Float64("units", o.Units),
		zap.Bool("exit", o.Exit),
	)
}

func (e *Engine) rejectSubmit(o *order.Order, err error, at time.Time) {
	if terr := o.Transition(order.Rejected, at); terr != nil {
		e.log.Error("reject transition", zap.Error(terr))
	}
	e.clearExitState(o)

	if exec.IsFatal(err) {
		e.fatal[o.Instrument] = err.Error()
		e.log.Error("instrument halted, fatal execution error",
			zap.String("instrument", o.Instrument),
			zap.Error(err),
		)
		return
	}
	e.log.Error("order rejected by adapter",
		zap.String("order_id", o.ID),
		zap.Error(err),
	)
}

func (e *Engine) onFill(f exec.Fill) error {
	o, ok := e.book.Get(f.OrderID)
	if !ok {
		return fmt.Errorf("engine: fill for unknown order %s", f.OrderID)
	}

	var entryOrderID string
	if o.Exit {
		if pos, ok := e.ledger.Position(f.Instrument); ok {
			entryOrderID = pos.EntryOrderID
		}
	}

	if err := o.ApplyFill(f.Price, f.Units, f.Time); err != nil {
		return err
	}

	reason := e.exitReason[f.OrderID]
	if reason == "" {
		reason = "Exit"
	}
	if err := e.ledger.ApplyFill(f, o, reason); err != nil {
		return err
	}
	e.breaker.Observe(f.Time, e.ledger.Equity())

	gen := e.generator(f.Instrument)
	if o.Exit {
		if _, still := e.ledger.Position(f.Instrument); !still {
			gen.OnPositionClosed()
			delete(e.pendingExit, f.Instrument)
			delete(e.exitReason, f.OrderID)
			e.closeEntryOrder(entryOrderID, f.Time)
			if o.State == order.Filled {
				if err := o.Transition(order.Closed, f.Time); err != nil {
					e.log.Error("close transition", zap.Error(err))
				}
			}
		}
	} else {
		gen.OnPositionOpened()
	}
	return nil
}

// closeEntryOrder moves a filled entry order to Closed once its
// position has been flattened.
func (e *Engine) closeEntryOrder(entryOrderID string, at time.Time) {
	if entryOrderID == "" {
		return
	}
	eo, ok := e.book.Get(entryOrderID)
	if !ok || eo.State != order.Filled {
		return
	}
	if err := eo.Transition(order.Closed, at); err != nil {
		e.log.Error("close transition", zap.Error(err))
	}
}

func (e *Engine) checkAckTimeouts(now time.Time) {
	for _, o := range e.book.DueForCancel(now) {
		if e.book.RecordCancelAttempt(o, now) {
			// Retry budget exhausted: fatal for the instrument, never a
			// silent drop.
			if err := o.Transition(order.Canceled, now); err != nil {
				e.log.Error("cancel transition", zap.Error(err))
			}
			e.clearExitState(o)
			e.fatal[o.Instrument] = "order acknowledgement lost, cancel retries exhausted"
			e.breaker.RecordExecError(now)
			continue
		}

		if _, err := e.adapter.Cancel(context.Background(), o.ID); err != nil {
			e.log.Warn("cancel request failed",
				zap.String("order_id", o.ID),
				zap.Error(err),
			)
			e.breaker.RecordExecError(now)
			continue
		}
		if err := o.Transition(order.Canceled, now); err != nil {
			e.log.Error("cancel transition", zap.Error(err))
		}
		e.clearExitState(o)
	}
}

// onUnfillable handles simulator drop notifications for orders whose
// price cannot be produced honestly.
func (e *Engine) onUnfillable(orderID, reason string) {
	o, ok := e.book.Get(orderID)
	if !ok {
		return
	}
	if err := o.Transition(order.Canceled, e.now); err != nil {
		e.log.Error("unfillable transition", zap.Error(err))
		return
	}
	e.clearExitState(o)
	e.log.Warn("order canceled, unfillable",
		zap.String("order_id", orderID),
		zap.String("reason", reason),
	)
}

func (e *Engine) clearExitState(o *order.Order) {
	if o.Exit {
		delete(e.pendingExit, o.Instrument)
		delete(e.exitReason, o.ID)
	}
}

func (e *Engine) generator(instrument string) *strategy.Generator {
	gen, ok := e.gens[instrument]
	if !ok {
		gen = strategy.NewGenerator(instrument, e.strat, e.log)
		e.gens[instrument] = gen
	}
	return gen
}

// DataGaps reports how many out-of-order bars were skipped.
func (e *Engine) DataGaps() int { return e.dataGaps }

// Ledger exposes the session ledger for reporting.
func (e *Engine) Ledger() *ledger.Ledger { return e.ledger }

// Breaker exposes the session circuit breaker for reporting.
func (e *Engine) Breaker() *circuit.Breaker { return e.breaker }

// CloseAll flattens every open position at its last mark price. It is
// a settlement operation for end-of-replay and shutdown paths, so it
// bypasses the execution adapter: no spread, slippage or fees.
func (e *Engine) CloseAll(at time.Time, reason string) error {
	for _, pos := range e.ledger.Positions() {
		price, ok := e.ledger.LastPrice(pos.Instrument)
		if !ok {
			price = pos.AvgEntry
		}

		o := order.New(e.ids.Next(at), pos.Instrument, pos.Side.Opposite(),
			pos.Units, 0, 0, at)
		o.Exit = true
		e.book.Add(o)
		if err := o.Transition(order.RiskApproved, at); err != nil {
			return err
		}
		if err := e.book.MarkSubmitted(o, at); err != nil {
			return err
		}
		e.book.MarkAck(o.ID, at)
		e.exitReason[o.ID] = reason

		f := exec.Fill{
			OrderID:    o.ID,
			Instrument: pos.Instrument,
			Side:       o.Side,
			Price:      price,
			Units:      pos.Units,
			Time:       at,
		}
		if err := e.onFill(f); err != nil {
			return err
		}
	}
	return nil
}
