// Package feed supplies ordered candle sequences to the engine.
//
// A Feed yields closed candles one at a time and is deterministic:
// replaying the same source produces the same sequence. Backtest feeds
// are finite; live and demo feeds block until the next bar closes.
package feed

import "github.com/rustyeddy/intrabot/market"

// Feed yields candles in source order and returns (ok=false, err=nil)
// at end of data.
type Feed interface {
	Next() (c market.Candle, ok bool, err error)
	Close() error
}

// SliceFeed replays an in-memory candle slice. Used by tests and by the
// backtest driver once a dataset has been loaded and sorted.
type SliceFeed struct {
	candles []market.Candle
	idx     int
}

func NewSliceFeed(candles []market.Candle) *SliceFeed {
	return &SliceFeed{candles: candles}
}

func (f *SliceFeed) Next() (market.Candle, bool, error) {
	if f.idx >= len(f.candles) {
		return market.Candle{}, false, nil
	}
	c := f.candles[f.idx]
	f.idx++
	return c, true, nil
}

func (f *SliceFeed) Close() error { return nil }

// Reset rewinds the feed to the beginning for a fresh replay.
func (f *SliceFeed) Reset() { f.idx = 0 }
