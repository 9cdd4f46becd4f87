package journal

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/intrabot/market"
)

func newTestDB(t *testing.T) *SQLiteJournal {
	t.Helper()
	j, err := NewSQLite(filepath.Join(t.TempDir(), "journal.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func tradeAt(id string, closed time.Time, pl float64) TradeRecord {
	return TradeRecord{
		OrderID:    id,
		Instrument: "BTC_USD",
		Side:       market.Buy,
		Units:      1,
		EntryPrice: 100,
		ExitPrice:  100 + pl,
		OpenTime:   closed.Add(-time.Hour),
		CloseTime:  closed,
		RealizedPL: pl,
		Reason:     "TakeProfit",
	}
}

func TestSQLiteRoundTrip(t *testing.T) {
	j := newTestDB(t)
	closed := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, j.RecordTrade(tradeAt("ord-1", closed, 20)))

	recs, err := j.ListTradesClosedBetween(closed.Add(-time.Minute), closed.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, recs, 1)

	r := recs[0]
	assert.Equal(t, "ord-1", r.OrderID)
	assert.Equal(t, market.Buy, r.Side)
	assert.InDelta(t, 20, r.RealizedPL, 1e-9)
	assert.Equal(t, "TakeProfit", r.Reason)
	assert.True(t, r.CloseTime.Equal(closed))
}

func TestSQLiteWindowIsHalfOpen(t *testing.T) {
	j := newTestDB(t)
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, j.RecordTrade(tradeAt("a", base, 1)))
	require.NoError(t, j.RecordTrade(tradeAt("b", base.Add(time.Hour), 2)))
	require.NoError(t, j.RecordTrade(tradeAt("c", base.Add(2*time.Hour), 3)))

	recs, err := j.ListTradesClosedBetween(base, base.Add(2*time.Hour))
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "a", recs[0].OrderID)
	assert.Equal(t, "b", recs[1].OrderID)
}

func TestSQLiteRecordEquity(t *testing.T) {
	j := newTestDB(t)

	err := j.RecordEquity(EquitySnapshot{
		Time:        time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		Balance:     10000,
		Equity:      10010,
		RealizedCum: 10,
	})
	assert.NoError(t, err)
}
