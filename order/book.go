package order

import (
	"time"

	"go.uber.org/zap"
)

// Book tracks every order of a session and drives the acknowledgement
// timeout / cancel-retry schedule. Iteration is in insertion order so
// replays stay deterministic.
type Book struct {
	orders map[string]*Order
	seq    []string

	ackTimeout  time.Duration
	backoffBase time.Duration
	maxRetries  int

	log *zap.Logger
}

func NewBook(ackTimeout, backoffBase time.Duration, maxRetries int, log *zap.Logger) *Book {
	if log == nil {
		log = zap.NewNop()
	}
	if backoffBase <= 0 {
		backoffBase = time.Second
	}
	return &Book{
		orders:      make(map[string]*Order),
		ackTimeout:  ackTimeout,
		backoffBase: backoffBase,
		maxRetries:  maxRetries,
		log:         log,
	}
}

func (b *Book) Add(o *Order) {
	b.orders[o.ID] = o
	b.seq = append(b.seq, o.ID)
}

func (b *Book) Get(id string) (*Order, bool) {
	o, ok := b.orders[id]
	return o, ok
}

// Open returns all non-terminal orders in insertion order.
func (b *Book) Open() []*Order {
	var out []*Order
	for _, id := range b.seq {
		if o := b.orders[id]; !o.State.Terminal() {
			out = append(out, o)
		}
	}
	return out
}

// MarkSubmitted records the hand-off to the execution collaborator.
func (b *Book) MarkSubmitted(o *Order, at time.Time) error {
	if err := o.Transition(Submitted, at); err != nil {
		return err
	}
	o.SubmittedAt = at
	return nil
}

// MarkAck records the venue acknowledgement.
func (b *Book) MarkAck(id string, at time.Time) {
	if o, ok := b.orders[id]; ok {
		o.Acked = true
		o.AckedAt = at
	}
}

// ScheduleResubmit records a failed submission attempt and schedules
// the next one with exponential backoff, mirroring the cancel schedule.
func (b *Book) ScheduleResubmit(o *Order, now time.Time) {
	o.SubmitAttempts++
	backoff := b.backoffBase << (o.SubmitAttempts - 1)
	o.NextSubmitAt = now.Add(backoff)

	b.log.Warn("submit failed, resubmit scheduled",
		zap.String("order_id", o.ID),
		zap.Int("attempt", o.SubmitAttempts),
		zap.Duration("next_attempt_in", backoff),
	)
}

// DueForResubmit returns risk-approved orders whose scheduled
// resubmission is due, measured against event time.
func (b *Book) DueForResubmit(now time.Time) []*Order {
	var due []*Order
	for _, id := range b.seq {
		o := b.orders[id]
		if o.State != RiskApproved || o.NextSubmitAt.IsZero() {
			continue
		}
		if now.Before(o.NextSubmitAt) {
			continue
		}
		due = append(due, o)
	}
	return due
}

// DueForCancel returns submitted, unacknowledged orders whose ack
// timeout has expired and whose next cancel attempt is due, measured
// against event time.
func (b *Book) DueForCancel(now time.Time) []*Order {
	if b.ackTimeout <= 0 {
		return nil
	}
	var due []*Order
	for _, id := range b.seq {
		o := b.orders[id]
		if o.State != Submitted || o.Acked {
			continue
		}
		if now.Sub(o.SubmittedAt) < b.ackTimeout {
			continue
		}
		if !o.NextCancelAt.IsZero() && now.Before(o.NextCancelAt) {
			continue
		}
		due = append(due, o)
	}
	return due
}

// RecordCancelAttempt bumps the retry counter and schedules the next
// attempt with exponential backoff. It returns true when the bounded
// retry budget is exhausted and the order must be reported fatal.
func (b *Book) RecordCancelAttempt(o *Order, now time.Time) (exhausted bool) {
	o.CancelRetries++
	if o.CancelRetries > b.maxRetries {
		b.log.Error("cancel retries exhausted",
			zap.String("order_id", o.ID),
			zap.String("instrument", o.Instrument),
			zap.Int("retries", o.CancelRetries-1),
		)
		return true
	}

	backoff := b.backoffBase << (o.CancelRetries - 1)
	o.NextCancelAt = now.Add(backoff)

	b.log.Warn("order unacknowledged, cancel requested",
		zap.String("order_id", o.ID),
		zap.Int("attempt", o.CancelRetries),
		zap.Duration("next_retry_in", backoff),
	)
	return false
}
