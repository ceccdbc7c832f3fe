package sqlite

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/thibautquentinjacob/trading-bot/internal/model"
)

// Reader provides read-only access to archived quotes for replay.
type Reader struct {
	db *sql.DB
}

// NewReader opens a SQLite connection for reading.
func NewReader(dbPath string) (*Reader, error) {
	db, err := open(dbPath)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)

	log.Printf("[sqlite-reader] opened %s", dbPath)
	return &Reader{db: db}, nil
}

// ReadQuotes reads quotes for symbol with from <= time < to, ordered by
// time ascending for correct replay order. A zero to means no upper bound.
func (r *Reader) ReadQuotes(symbol string, from, to time.Time) ([]model.Quote, error) {
	upper := int64(1<<63 - 1)
	if !to.IsZero() {
		upper = to.Unix()
	}
	rows, err := r.db.Query(`
		SELECT symbol, ts, open, high, low, close, volume, average, notional, number_of_trades,
			market_open, market_high, market_low, market_close, market_volume, market_average, market_notional
		FROM quotes
		WHERE symbol = ? AND ts >= ? AND ts < ?
		ORDER BY ts ASC
	`, symbol, from.Unix(), upper)
	if err != nil {
		return nil, fmt.Errorf("sqlite query quotes: %w", err)
	}
	defer rows.Close()

	var quotes []model.Quote
	for rows.Next() {
		var (
			q                          model.Quote
			tsUnix                     int64
			vol, avg, notional         sql.NullFloat64
			trades                     sql.NullInt64
			mOpen, mHigh, mLow, mClose sql.NullFloat64
			mVol, mAvg, mNotional      sql.NullFloat64
		)
		if err := rows.Scan(&q.Symbol, &tsUnix, &q.Open, &q.High, &q.Low, &q.Close, &vol, &avg, &notional,
			&trades, &mOpen, &mHigh, &mLow, &mClose, &mVol, &mAvg, &mNotional); err != nil {
			return nil, fmt.Errorf("sqlite scan quotes: %w", err)
		}
		q.Time = time.Unix(tsUnix, 0).UTC()
		q.Volume, q.Average, q.Notional = vol.Float64, avg.Float64, notional.Float64
		q.NumberOfTrades = trades.Int64
		q.MarketOpen, q.MarketHigh, q.MarketLow, q.MarketClose = mOpen.Float64, mHigh.Float64, mLow.Float64, mClose.Float64
		q.MarketVolume, q.MarketAverage, q.MarketNotional = mVol.Float64, mAvg.Float64, mNotional.Float64
		quotes = append(quotes, q)
	}
	return quotes, rows.Err()
}

// Symbols lists the archived symbols.
func (r *Reader) Symbols() ([]string, error) {
	rows, err := r.db.Query(`SELECT DISTINCT symbol FROM quotes ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("sqlite query symbols: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Close closes the reader.
func (r *Reader) Close() error {
	return r.db.Close()
}
