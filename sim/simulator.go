// Package sim is the local execution collaborator for paper and
// backtest sessions. It implements exec.Adapter with a closed-form
// spread/slippage/latency fill model; the decision loop drives it bar
// by bar through exec.CandleMarker.
package sim

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/rustyeddy/intrabot/exec"
	"github.com/rustyeddy/intrabot/market"
)

// Config sets the fill model parameters.
type Config struct {
	// HalfSpread is half the quoted spread in price units.
	HalfSpread float64
	// SlippageBps is added adverse slippage in basis points of the
	// reference price.
	SlippageBps float64
	// LatencyBars attributes fills to this many bars after submission.
	// Values below 1 are raised to 1: the submission bar has already
	// closed when the order arrives, so filling on it would look ahead.
	LatencyBars int
	// TakerFeeBps is the fee charged on fill notional.
	TakerFeeBps float64
	// MaxFillUnits caps units filled per bar, producing partial fills.
	// 0 fills in full.
	MaxFillUnits float64
}

func (c Config) withDefaults() Config {
	if c.LatencyBars < 1 {
		c.LatencyBars = 1
	}
	return c
}

type pending struct {
	req       exec.Request
	remaining float64
	submitBar int
}

// Simulator fills accepted orders against subsequent candles. It keeps
// pending orders in submission order, so identical inputs produce
// identical fill sequences.
type Simulator struct {
	cfg Config
	log *zap.Logger

	bar        int
	pending    []*pending
	unfillable exec.UnfillableHandler
}

func New(cfg Config, log *zap.Logger) *Simulator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Simulator{cfg: cfg.withDefaults(), log: log}
}

// SetUnfillableHandler registers the drop notification callback.
func (s *Simulator) SetUnfillableHandler(h exec.UnfillableHandler) { s.unfillable = h }

// Submit accepts an order for filling on a later bar. The simulator
// acknowledges synchronously.
func (s *Simulator) Submit(_ context.Context, req exec.Request) (exec.Ack, error) {
	if req.Units <= 0 {
		return exec.Ack{}, fmt.Errorf("sim: non-positive units %v", req.Units)
	}
	s.pending = append(s.pending, &pending{
		req:       req,
		remaining: req.Units,
		submitBar: s.bar,
	})
	return exec.Ack{OrderID: req.OrderID}, nil
}

// Cancel drops a pending order. Unknown ids are not an error; the
// order may already have filled.
func (s *Simulator) Cancel(_ context.Context, orderID string) (exec.Ack, error) {
	for i, p := range s.pending {
		if p.req.OrderID == orderID {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			break
		}
	}
	return exec.Ack{OrderID: orderID}, nil
}

// MarkCandle advances the simulator to a newly closed bar and returns
// the fills attributed to it, in submission order.
func (s *Simulator) MarkCandle(c market.Candle) []exec.Fill {
	s.bar++

	var fills []exec.Fill
	keep := s.pending[:0]

	for _, p := range s.pending {
		if p.req.Instrument != c.Instrument || s.bar < p.submitBar+s.cfg.LatencyBars {
			keep = append(keep, p)
			continue
		}

		f, done, err := s.fill(p, c)
		if err != nil {
			s.log.Warn("order unfillable",
				zap.String("order_id", p.req.OrderID),
				zap.Error(err),
				zap.Time("candle", c.OpenTime),
			)
			if s.unfillable != nil {
				s.unfillable(p.req.OrderID, err.Error())
			}
			continue
		}

		fills = append(fills, f)
		if !done {
			keep = append(keep, p)
		}
	}

	s.pending = keep
	return fills
}

// fill prices one pending order against candle c. The reference price
// is the bar's open; using the bar's own close would look ahead.
func (s *Simulator) fill(p *pending, c market.Candle) (exec.Fill, bool, error) {
	var price float64

	if p.req.Limit != nil {
		// A limit price the bar never traded through cannot fill; reject
		// rather than fabricate a price outside [low, high].
		if !c.Contains(*p.req.Limit) {
			return exec.Fill{}, false, fmt.Errorf("%w: limit %v outside [%v, %v]",
				exec.ErrUnfillable, *p.req.Limit, c.Low, c.High)
		}
		price = *p.req.Limit
	} else {
		ref := c.Open
		slip := s.cfg.HalfSpread + ref*s.cfg.SlippageBps/10000
		if p.req.Side == market.Buy {
			price = ref + slip // buy pays up
		} else {
			price = ref - slip // sell receives down
		}
		price = clamp(price, c.Low, c.High)
	}

	units := p.remaining
	if s.cfg.MaxFillUnits > 0 && units > s.cfg.MaxFillUnits {
		units = s.cfg.MaxFillUnits
	}
	p.remaining -= units

	f := exec.Fill{
		OrderID:    p.req.OrderID,
		Instrument: p.req.Instrument,
		Side:       p.req.Side,
		Price:      price,
		Units:      units,
		Time:       c.OpenTime,
		// The chunk that completes the order is not a partial fill,
		// however many bars it took to get there.
		Partial: p.remaining > 1e-9,
		Fee:     price * units * s.cfg.TakerFeeBps / 10000,
	}
	return f, p.remaining <= 1e-9, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
