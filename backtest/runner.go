// Package backtest replays historical candles through the decision
// loop. The same engine code runs here and in live mode; only the
// event source differs, so a backtest is a faithful rehearsal of the
// live causal ordering.
package backtest

import (
	"fmt"
	"time"

	"github.com/rustyeddy/intrabot/engine"
	"github.com/rustyeddy/intrabot/feed"
)

// Options controls the replay loop.
type Options struct {
	// CloseEnd flattens remaining open positions at the final mark
	// when the dataset is exhausted.
	CloseEnd    bool
	CloseReason string
}

// Runner drives one engine over one candle feed.
type Runner struct {
	Engine  *engine.Engine
	Feed    feed.Feed
	Options Options
}

// Run replays the feed to exhaustion: each candle becomes a
// candle-closed event processed synchronously, so fills and signals
// interleave exactly as they would in a live session. The returned
// Report is a pure function of the inputs.
func (r *Runner) Run() (Report, error) {
	if r.Engine == nil {
		return Report{}, fmt.Errorf("backtest: engine is required")
	}
	if r.Feed == nil {
		return Report{}, fmt.Errorf("backtest: feed is required")
	}
	defer r.Feed.Close()

	var start, end time.Time
	candles := 0

	for {
		c, ok, err := r.Feed.Next()
		if err != nil {
			return Report{}, fmt.Errorf("backtest: feed: %w", err)
		}
		if !ok {
			break
		}

		if start.IsZero() {
			start = c.OpenTime
		}
		end = c.CloseTime()
		candles++

		if err := r.Engine.Process(engine.CandleEvent(c)); err != nil {
			return Report{}, err
		}
	}

	if r.Options.CloseEnd {
		reason := r.Options.CloseReason
		if reason == "" {
			reason = "EndOfReplay"
		}
		if err := r.Engine.CloseAll(end, reason); err != nil {
			return Report{}, err
		}
	}

	return buildReport(r.Engine, start, end, candles), nil
}
