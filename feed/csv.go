package feed

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rustyeddy/intrabot/market"
)

// CSVFeed reads canonical candle CSV rows:
//
//	time,instrument,open,high,low,close,volume
//
// where time is RFC3339 or RFC3339Nano and marks the bar's open.
//
// It optionally filters candles to [From, To) if provided.
// Header row ("time,...") is allowed.
// Empty/short rows are skipped.
type CSVFeed struct {
	f         *os.File
	r         *csv.Reader
	timeframe time.Duration
	from      time.Time
	to        time.Time

	sawFirst bool
}

func NewCSVFeed(path string, timeframe time.Duration, from, to time.Time) (*CSVFeed, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	return &CSVFeed{f: f, r: r, timeframe: timeframe, from: from, to: to}, nil
}

func (f *CSVFeed) Close() error {
	if f.f != nil {
		return f.f.Close()
	}
	return nil
}

func (f *CSVFeed) Next() (market.Candle, bool, error) {
	for {
		row, err := f.r.Read()
		if err == io.EOF {
			return market.Candle{}, false, nil
		}
		if err != nil {
			return market.Candle{}, false, err
		}
		if len(row) == 0 {
			continue
		}

		// Allow a single header row
		if !f.sawFirst {
			f.sawFirst = true
			if strings.EqualFold(strings.TrimSpace(row[0]), "time") {
				continue
			}
		}

		c, ok, err := f.parseRow(row)
		if err != nil {
			return market.Candle{}, false, err
		}
		if !ok {
			continue
		}
		if !inRange(c.OpenTime, f.from, f.to) {
			continue
		}
		return c, true, nil
	}
}

func (f *CSVFeed) parseRow(row []string) (market.Candle, bool, error) {
	// Need at least: time,instrument,open,high,low,close
	if len(row) < 6 {
		return market.Candle{}, false, nil
	}

	ts := strings.TrimSpace(row[0])
	if ts == "" {
		return market.Candle{}, false, nil
	}
	// Accept RFC3339 or RFC3339Nano.
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		t2, err2 := time.Parse(time.RFC3339Nano, ts)
		if err2 != nil {
			return market.Candle{}, false, fmt.Errorf("bad time %q: %w", ts, err)
		}
		t = t2
	}

	inst := strings.TrimSpace(row[1])
	if inst == "" {
		return market.Candle{}, false, nil
	}

	var prices [4]float64
	for i := 2; i < 6; i++ {
		v, err := strconv.ParseFloat(strings.TrimSpace(row[i]), 64)
		if err != nil {
			return market.Candle{}, false, fmt.Errorf("bad price %q: %w", row[i], err)
		}
		prices[i-2] = v
	}

	var volume float64
	if len(row) > 6 {
		volume, _ = strconv.ParseFloat(strings.TrimSpace(row[6]), 64)
	}

	return market.Candle{
		Instrument: inst,
		Timeframe:  f.timeframe,
		OpenTime:   t.UTC(),
		Open:       prices[0],
		High:       prices[1],
		Low:        prices[2],
		Close:      prices[3],
		Volume:     volume,
	}, true, nil
}

func inRange(t, from, to time.Time) bool {
	if !from.IsZero() && t.Before(from) {
		return false
	}
	if !to.IsZero() && !t.Before(to) {
		return false
	}
	return true
}
