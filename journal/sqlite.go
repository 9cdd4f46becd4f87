package journal

import (
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/rustyeddy/intrabot/market"
)

type SQLiteJournal struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		return nil, err
	}

	return &SQLiteJournal{db: db}, nil
}

func (j *SQLiteJournal) RecordTrade(t TradeRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO trades
		(order_id, instrument, side, units, entry_price, exit_price, open_time, close_time, realized_pl, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.OrderID, t.Instrument, t.Side.String(), t.Units, t.EntryPrice,
		t.ExitPrice, t.OpenTime, t.CloseTime, t.RealizedPL, t.Reason,
	)
	return err
}

func (j *SQLiteJournal) RecordEquity(e EquitySnapshot) error {
	_, err := j.db.Exec(`
		INSERT INTO equity
		(time, balance, equity, realized_cum)
		VALUES (?, ?, ?, ?)`,
		e.Time, e.Balance, e.Equity, e.RealizedCum,
	)
	return err
}

// ListTradesClosedBetween returns blotter rows closed in [from, to),
// ordered by close time.
func (j *SQLiteJournal) ListTradesClosedBetween(from, to time.Time) ([]TradeRecord, error) {
	rows, err := j.db.Query(`
		SELECT order_id, instrument, side, units, entry_price, exit_price,
		       open_time, close_time, realized_pl, reason
		FROM trades
		WHERE close_time >= ? AND close_time < ?
		ORDER BY close_time`,
		from, to,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []TradeRecord
	for rows.Next() {
		var r TradeRecord
		var side string
		if err := rows.Scan(&r.OrderID, &r.Instrument, &side, &r.Units, &r.EntryPrice,
			&r.ExitPrice, &r.OpenTime, &r.CloseTime, &r.RealizedPL, &r.Reason); err != nil {
			return nil, err
		}
		if side == market.Sell.String() {
			r.Side = market.Sell
		} else {
			r.Side = market.Buy
		}
		recs = append(recs, r)
	}
	return recs, rows.Err()
}

func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}
