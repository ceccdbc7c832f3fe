// Package sqlite archives per-minute quotes so sessions can be replayed
// by the backtester.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/thibautquentinjacob/trading-bot/internal/metrics"
	"github.com/thibautquentinjacob/trading-bot/internal/model"
)

const (
	defaultBatchSize  = 100
	defaultFlushDelay = 200 * time.Millisecond
)

// WriterConfig configures the SQLite writer.
type WriterConfig struct {
	DBPath     string // path to SQLite database file, e.g. "data/quotes.db"
	BatchSize  int
	FlushDelay time.Duration
}

// Writer is a single-goroutine SQLite writer with transaction batching.
type Writer struct {
	db         *sql.DB
	metrics    *metrics.Metrics
	batchSize  int
	flushDelay time.Duration
}

// DB returns the underlying sql.DB for health checks.
func (w *Writer) DB() *sql.DB { return w.db }

// New creates a new SQLite Writer, initializes the database with WAL mode and schema.
// m may be nil.
func New(cfg WriterConfig, m *metrics.Metrics) (*Writer, error) {
	db, err := open(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	// Set connection pool for single-writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.FlushDelay <= 0 {
		cfg.FlushDelay = defaultFlushDelay
	}

	log.Printf("[sqlite] opened database at %s", cfg.DBPath)
	return &Writer{db: db, metrics: m, batchSize: cfg.BatchSize, flushDelay: cfg.FlushDelay}, nil
}

func open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	return db, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS quotes (
			symbol           TEXT    NOT NULL,
			ts               INTEGER NOT NULL,
			open             REAL    NOT NULL,
			high             REAL    NOT NULL,
			low              REAL    NOT NULL,
			close            REAL    NOT NULL,
			volume           REAL,
			average          REAL,
			notional         REAL,
			number_of_trades INTEGER,
			market_open      REAL,
			market_high      REAL,
			market_low       REAL,
			market_close     REAL,
			market_volume    REAL,
			market_average   REAL,
			market_notional  REAL,
			PRIMARY KEY (symbol, ts)
		);
	`)
	return err
}

// Run reads quotes from quoteCh and inserts them in batched transactions.
// Flushes every batch size quotes OR every flush delay, whichever first.
// Blocks until ctx is cancelled or quoteCh is closed.
func (w *Writer) Run(ctx context.Context, quoteCh <-chan model.Quote) {
	batch := make([]model.Quote, 0, w.batchSize)
	timer := time.NewTimer(w.flushDelay)
	defer timer.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		start := time.Now()
		if err := w.insertBatch(batch); err != nil {
			log.Printf("[sqlite] batch insert error: %v", err)
		} else if w.metrics != nil {
			w.metrics.SQLiteCommitDur.Observe(time.Since(start).Seconds())
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return

		case q, ok := <-quoteCh:
			if !ok {
				flush()
				return
			}
			batch = append(batch, q)
			if len(batch) >= w.batchSize {
				flush()
				timer.Reset(w.flushDelay)
			}

		case <-timer.C:
			flush()
			timer.Reset(w.flushDelay)
		}
	}
}

// RunEvents archives the quotes carried by quote events.
// Blocks until ctx is cancelled or events is closed.
func (w *Writer) RunEvents(ctx context.Context, events <-chan model.Event) {
	quoteCh := make(chan model.Quote, w.batchSize)
	go func() {
		defer close(quoteCh)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				q, isQuote := ev.Payload.(model.Quote)
				if ev.Kind != model.EventQuote || !isQuote {
					continue
				}
				select {
				case quoteCh <- q:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	w.Run(ctx, quoteCh)
}

// insertBatch inserts a batch of quotes in a single transaction.
// A quote for an already stored minute replaces it.
func (w *Writer) insertBatch(quotes []model.Quote) error {
	tx, err := w.db.Begin()
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO quotes (symbol, ts, open, high, low, close, volume, average, notional,
			number_of_trades, market_open, market_high, market_low, market_close, market_volume,
			market_average, market_notional)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, q := range quotes {
		_, err := stmt.Exec(q.Symbol, q.Time.Unix(), q.Open, q.High, q.Low, q.Close, q.Volume, q.Average,
			q.Notional, q.NumberOfTrades, q.MarketOpen, q.MarketHigh, q.MarketLow, q.MarketClose,
			q.MarketVolume, q.MarketAverage, q.MarketNotional)
		if err != nil {
			tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}

// LastTime returns the last stored quote time for symbol, or the zero
// time if none exist.
func (w *Writer) LastTime(symbol string) (time.Time, error) {
	var ts sql.NullInt64
	err := w.db.QueryRow(`SELECT MAX(ts) FROM quotes WHERE symbol = ?`, symbol).Scan(&ts)
	if err != nil {
		return time.Time{}, err
	}
	if !ts.Valid {
		return time.Time{}, nil
	}
	return time.Unix(ts.Int64, 0).UTC(), nil
}

// Close closes the database.
func (w *Writer) Close() error {
	return w.db.Close()
}
