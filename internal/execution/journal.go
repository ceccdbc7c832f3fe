package execution

import (
	"context"
	"database/sql"
	"log"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/thibautquentinjacob/trading-bot/internal/model"
)

// Journal persists submitted trades to SQLite for analysis and audit.
type Journal struct {
	mu sync.Mutex
	db *sql.DB
}

// NewJournal opens (or creates) a SQLite journal database.
func NewJournal(dbPath string) (*Journal, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal=WAL&_sync=NORMAL")
	if err != nil {
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS trades (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		order_id    TEXT NOT NULL,
		client_id   TEXT NOT NULL,
		strategy    TEXT NOT NULL,
		side        TEXT NOT NULL,
		symbol      TEXT NOT NULL,
		qty         INTEGER NOT NULL,
		ref_price   REAL NOT NULL,
		fill_price  REAL NOT NULL,
		status      TEXT NOT NULL,
		reason      TEXT,
		submitted_at DATETIME NOT NULL,
		created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_trades_strategy ON trades(strategy);
	CREATE INDEX IF NOT EXISTS idx_trades_symbol ON trades(symbol);
	CREATE INDEX IF NOT EXISTS idx_trades_submitted_at ON trades(submitted_at);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	log.Printf("[journal] opened trade journal at %s", dbPath)
	return &Journal{db: db}, nil
}

// Record persists a trade to the journal.
func (j *Journal) Record(tr model.Trade) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	_, err := j.db.Exec(
		`INSERT INTO trades (order_id, client_id, strategy, side, symbol, qty, ref_price, fill_price, status, reason, submitted_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tr.Ack.OrderID,
		tr.Intent.ID,
		tr.Intent.Strategy,
		string(tr.Intent.Side),
		tr.Intent.Symbol,
		tr.Intent.Quantity,
		tr.Intent.Price,
		tr.Ack.AvgPrice,
		tr.Ack.Status,
		tr.Intent.Reason,
		tr.Intent.Time.UTC().Format(time.RFC3339Nano),
	)
	return err
}

// Run records trade events until ctx is cancelled or events is closed.
func (j *Journal) Run(ctx context.Context, events <-chan model.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			tr, isTrade := ev.Payload.(model.Trade)
			if ev.Kind != model.EventTrade || !isTrade {
				continue
			}
			if err := j.Record(tr); err != nil {
				log.Printf("[journal] record %s failed: %v", tr.Ack.OrderID, err)
			}
		}
	}
}

// TradeRecord represents a row from the trades table.
type TradeRecord struct {
	ID          int64   `json:"id"`
	OrderID     string  `json:"order_id"`
	ClientID    string  `json:"client_id"`
	Strategy    string  `json:"strategy"`
	Side        string  `json:"side"`
	Symbol      string  `json:"symbol"`
	Qty         int64   `json:"qty"`
	RefPrice    float64 `json:"ref_price"`
	FillPrice   float64 `json:"fill_price"`
	Status      string  `json:"status"`
	Reason      string  `json:"reason"`
	SubmittedAt string  `json:"submitted_at"`
}

// GetTrades returns the last N trades, newest first.
func (j *Journal) GetTrades(limit int) ([]TradeRecord, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	rows, err := j.db.Query(
		`SELECT id, order_id, client_id, strategy, side, symbol, qty, ref_price, fill_price, status, reason, submitted_at
		 FROM trades ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []TradeRecord
	for rows.Next() {
		var t TradeRecord
		if err := rows.Scan(&t.ID, &t.OrderID, &t.ClientID, &t.Strategy, &t.Side, &t.Symbol,
			&t.Qty, &t.RefPrice, &t.FillPrice, &t.Status, &t.Reason, &t.SubmittedAt); err != nil {
			continue
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// Close closes the journal database.
func (j *Journal) Close() error {
	return j.db.Close()
}
