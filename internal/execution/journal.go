package execution

import (
	"database/sql"
	"log"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"trading-systemv1/internal/model"
)

// Journal persists placed orders and fills to a WAL-mode SQLite database for
// audit and reconciliation.
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
	CREATE TABLE IF NOT EXISTS orders (
		id              INTEGER PRIMARY KEY AUTOINCREMENT,
		client_order_id TEXT NOT NULL UNIQUE,
		exchange_order_id TEXT,
		symbol          TEXT NOT NULL,
		side            TEXT NOT NULL,
		type            TEXT NOT NULL,
		quantity        INTEGER NOT NULL,
		price           INTEGER NOT NULL,
		status          TEXT NOT NULL,
		filled_qty      INTEGER DEFAULT 0,
		avg_fill_price  INTEGER DEFAULT 0,
		correlation_id  TEXT,
		created_at      DATETIME NOT NULL,
		updated_at      DATETIME NOT NULL
	);
	CREATE TABLE IF NOT EXISTS fills (
		id              INTEGER PRIMARY KEY AUTOINCREMENT,
		client_order_id TEXT NOT NULL,
		fill_id         TEXT NOT NULL,
		symbol          TEXT NOT NULL,
		side            TEXT NOT NULL,
		price           INTEGER NOT NULL,
		quantity        INTEGER NOT NULL,
		filled_at       DATETIME NOT NULL,
		UNIQUE(client_order_id, fill_id)
	);
	CREATE INDEX IF NOT EXISTS idx_orders_symbol ON orders(symbol);
	CREATE INDEX IF NOT EXISTS idx_fills_client_order ON fills(client_order_id);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	log.Printf("[journal] opened trade journal at %s", dbPath)
	return &Journal{db: db}, nil
}

// RecordOrder persists (or updates) a placed order row.
func (j *Journal) RecordOrder(order model.Order) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	_, err := j.db.Exec(
		`INSERT INTO orders (client_order_id, exchange_order_id, symbol, side, type, quantity, price, status, filled_qty, avg_fill_price, correlation_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(client_order_id) DO UPDATE SET
		   exchange_order_id=excluded.exchange_order_id, status=excluded.status,
		   filled_qty=excluded.filled_qty, avg_fill_price=excluded.avg_fill_price,
		   updated_at=excluded.updated_at`,
		order.ClientOrderID, order.ID, string(order.Symbol), string(order.Side), string(order.Type),
		int64(order.Quantity), int64(order.Price), string(order.Status),
		int64(order.FilledQty), int64(order.AvgFillPrice), order.CorrelationID,
		order.CreatedAt.Format(time.RFC3339), order.UpdatedAt.Format(time.RFC3339),
	)
	return err
}

// RecordFill persists a fill. Idempotency is enforced by the
// (client_order_id, fill_id) UNIQUE constraint.
func (j *Journal) RecordFill(fill model.Fill) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	_, err := j.db.Exec(
		`INSERT OR IGNORE INTO fills (client_order_id, fill_id, symbol, side, price, quantity, filled_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		fill.ClientOrderID, fill.FillID, string(fill.Symbol), string(fill.Side),
		int64(fill.Price), int64(fill.Quantity), fill.FilledAt.Format(time.RFC3339),
	)
	return err
}

// OrderRecord represents a row from the orders table.
type OrderRecord struct {
	ClientOrderID   string `json:"client_order_id"`
	ExchangeOrderID string `json:"exchange_order_id"`
	Symbol          string `json:"symbol"`
	Side            string `json:"side"`
	Status          string `json:"status"`
	Quantity        int64  `json:"quantity"`
	Price           int64  `json:"price"`
	FilledQty       int64  `json:"filled_qty"`
}

// GetOrders returns the last N orders, newest first.
func (j *Journal) GetOrders(limit int) ([]OrderRecord, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	rows, err := j.db.Query(
		`SELECT client_order_id, exchange_order_id, symbol, side, status, quantity, price, filled_qty
		 FROM orders ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OrderRecord
	for rows.Next() {
		var r OrderRecord
		if err := rows.Scan(&r.ClientOrderID, &r.ExchangeOrderID, &r.Symbol, &r.Side, &r.Status, &r.Quantity, &r.Price, &r.FilledQty); err != nil {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// Close closes the journal database.
func (j *Journal) Close() error {
	return j.db.Close()
}
