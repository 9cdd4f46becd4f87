package journal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/intrabot/market"
)

func TestCSVJournalWritesRows(t *testing.T) {
	dir := t.TempDir()
	tradesPath := filepath.Join(dir, "trades.csv")
	equityPath := filepath.Join(dir, "equity.csv")

	j, err := NewCSV(tradesPath, equityPath)
	require.NoError(t, err)

	open := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, j.RecordTrade(TradeRecord{
		OrderID:    "ord-1",
		Instrument: "BTC_USD",
		Side:       market.Buy,
		Units:      2,
		EntryPrice: 100,
		ExitPrice:  110,
		OpenTime:   open,
		CloseTime:  open.Add(time.Hour),
		RealizedPL: 20,
		Reason:     "TakeProfit",
	}))
	require.NoError(t, j.RecordEquity(EquitySnapshot{
		Time:        open,
		Balance:     10020,
		Equity:      10020,
		RealizedCum: 20,
	}))
	require.NoError(t, j.Close())

	trades, err := os.ReadFile(tradesPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(trades)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "order_id,instrument,side,units,entry_price,exit_price,open_time,close_time,realized_pl,reason", lines[0])
	assert.Contains(t, lines[1], "ord-1,BTC_USD,buy,2.000000,100.000000,110.000000")
	assert.Contains(t, lines[1], "TakeProfit")

	equity, err := os.ReadFile(equityPath)
	require.NoError(t, err)
	elines := strings.Split(strings.TrimSpace(string(equity)), "\n")
	require.Len(t, elines, 2)
	assert.Equal(t, "time,balance,equity,realized_cum", elines[0])
	assert.Contains(t, elines[1], "2024-03-01T09:00:00Z")
}

func TestNopJournal(t *testing.T) {
	var j Journal = Nop{}
	assert.NoError(t, j.RecordTrade(TradeRecord{}))
	assert.NoError(t, j.RecordEquity(EquitySnapshot{}))
	assert.NoError(t, j.Close())
}
