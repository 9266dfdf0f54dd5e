// Package history persists structured order attempt records for querying
// and export. The human-readable audit trail lives in orderlog; this is
// the machine-readable side.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"kitebridge/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Attempt is one recorded order attempt, success or failure.
type Attempt struct {
	ID          int64
	Time        time.Time
	Status      string
	Side        string
	Symbol      string
	Quantity    int
	Exchange    string
	Product     string
	Kind        string
	Price       float64
	Trigger     float64
	OrderID     string
	OrderStatus string
	ErrorKind   string
	Message     string
	Tag         string
}

const schema = `
CREATE TABLE IF NOT EXISTS order_attempts (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	attempted_at INTEGER NOT NULL,
	status       TEXT NOT NULL,
	side         TEXT NOT NULL,
	symbol       TEXT NOT NULL,
	quantity     INTEGER NOT NULL,
	exchange     TEXT NOT NULL,
	product      TEXT NOT NULL,
	kind         TEXT NOT NULL,
	price        REAL NOT NULL DEFAULT 0,
	trigger_px   REAL NOT NULL DEFAULT 0,
	order_id     TEXT NOT NULL DEFAULT '',
	order_status TEXT NOT NULL DEFAULT '',
	error_kind   TEXT NOT NULL DEFAULT '',
	message      TEXT NOT NULL DEFAULT '',
	tag          TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_order_attempts_time ON order_attempts (attempted_at);
`

// Store persists order attempts in a SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the history database and applies the schema.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating history dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening history db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying history schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save inserts one attempt and fills in its assigned ID.
func (s *Store) Save(ctx context.Context, a *Attempt) error {
	if a.Time.IsZero() {
		a.Time = time.Now()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO order_attempts
			(attempted_at, status, side, symbol, quantity, exchange, product, kind,
			 price, trigger_px, order_id, order_status, error_kind, message, tag)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.Time.UnixMilli(), a.Status, a.Side, a.Symbol, a.Quantity,
		a.Exchange, a.Product, a.Kind, a.Price, a.Trigger,
		a.OrderID, a.OrderStatus, a.ErrorKind, a.Message, a.Tag)
	if err != nil {
		return fmt.Errorf("saving order attempt: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		a.ID = id
	}
	return nil
}

// Record is a convenience wrapper building an Attempt from an order
// request and its result.
func (s *Store) Record(ctx context.Context, req domain.OrderRequest, res domain.OrderResult, status, tag string) error {
	return s.Save(ctx, &Attempt{
		Status:      status,
		Side:        string(req.Side),
		Symbol:      req.Symbol,
		Quantity:    req.Quantity,
		Exchange:    string(req.Exchange),
		Product:     string(req.Product),
		Kind:        string(req.OrderKind),
		Price:       req.Price,
		Trigger:     req.TriggerPrice,
		OrderID:     res.OrderID,
		OrderStatus: res.BrokerStatus,
		ErrorKind:   string(res.ErrorKind),
		Message:     res.Message,
		Tag:         tag,
	})
}

// Recent returns the most recent attempts, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Attempt, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, attempted_at, status, side, symbol, quantity, exchange, product, kind,
		       price, trigger_px, order_id, order_status, error_kind, message, tag
		FROM order_attempts
		ORDER BY attempted_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying order attempts: %w", err)
	}
	defer rows.Close()

	var out []Attempt
	for rows.Next() {
		var a Attempt
		var ts int64
		if err := rows.Scan(&a.ID, &ts, &a.Status, &a.Side, &a.Symbol, &a.Quantity,
			&a.Exchange, &a.Product, &a.Kind, &a.Price, &a.Trigger,
			&a.OrderID, &a.OrderStatus, &a.ErrorKind, &a.Message, &a.Tag); err != nil {
			return nil, fmt.Errorf("scanning order attempt: %w", err)
		}
		a.Time = time.UnixMilli(ts)
		out = append(out, a)
	}
	return out, rows.Err()
}

// All returns every attempt in chronological order, for export.
func (s *Store) All(ctx context.Context) ([]Attempt, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, attempted_at, status, side, symbol, quantity, exchange, product, kind,
		       price, trigger_px, order_id, order_status, error_kind, message, tag
		FROM order_attempts
		ORDER BY attempted_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("querying order attempts: %w", err)
	}
	defer rows.Close()

	var out []Attempt
	for rows.Next() {
		var a Attempt
		var ts int64
		if err := rows.Scan(&a.ID, &ts, &a.Status, &a.Side, &a.Symbol, &a.Quantity,
			&a.Exchange, &a.Product, &a.Kind, &a.Price, &a.Trigger,
			&a.OrderID, &a.OrderStatus, &a.ErrorKind, &a.Message, &a.Tag); err != nil {
			return nil, fmt.Errorf("scanning order attempt: %w", err)
		}
		a.Time = time.UnixMilli(ts)
		out = append(out, a)
	}
	return out, rows.Err()
}
