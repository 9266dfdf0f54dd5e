// Package orderlog writes the append-only, human-readable audit trail of
// order attempts. One line per attempt, pipe-delimited, flushed on every
// append. The audit log is best-effort: a write failure is reported to the
// process log, never to the order path.
package orderlog

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"kitebridge/internal/domain"
)

// Entry is one audit record. Optional fields render only when set.
type Entry struct {
	Time        time.Time
	Status      string // SUCCESS, FAILED, AUTH_FAILED
	Side        domain.Side
	Symbol      string
	Quantity    int
	Exchange    domain.Exchange
	Product     domain.Product
	Kind        domain.OrderKind
	Price       float64
	Trigger     float64
	OrderID     string
	OrderStatus string
	Error       string
}

// Line renders the entry in the audit format:
//
//	2025-06-19 10:15:02 | SUCCESS | BUY | RELIANCE | Qty: 10 | NSE | CNC | MARKET | OrderID: 171000001 | OrderStatus: COMPLETE
//
// The Error field is appended only on failure lines.
func (e Entry) Line() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s | %s | %s | %s | Qty: %d | %s | %s | %s",
		e.Time.Format("2006-01-02 15:04:05"),
		e.Status, e.Side, e.Symbol, e.Quantity, e.Exchange, e.Product, e.Kind)
	if e.Price != 0 {
		fmt.Fprintf(&b, " | Price: %g", e.Price)
	}
	if e.Trigger != 0 {
		fmt.Fprintf(&b, " | Trigger: %g", e.Trigger)
	}
	if e.OrderID != "" {
		fmt.Fprintf(&b, " | OrderID: %s", e.OrderID)
	}
	if e.OrderStatus != "" {
		fmt.Fprintf(&b, " | OrderStatus: %s", e.OrderStatus)
	}
	if e.Error != "" && strings.Contains(e.Status, "FAILED") {
		fmt.Fprintf(&b, " | Error: %s", e.Error)
	}
	return b.String()
}

// Log appends entries to a single file. Appends are serialized so
// concurrent order attempts produce whole lines.
type Log struct {
	mu   sync.Mutex
	f    *os.File
	path string
	now  func() time.Time
	log  *slog.Logger
}

// Open creates or opens the audit log for appending, creating parent
// directories as needed.
func Open(path string, log *slog.Logger) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating order log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening order log: %w", err)
	}
	return &Log{f: f, path: path, now: time.Now, log: log}, nil
}

// Append writes one entry and flushes it. Failures are logged and
// swallowed so auditing can never block or fail an order.
func (l *Log) Append(e Entry) {
	if e.Time.IsZero() {
		e.Time = l.now()
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.f.WriteString(e.Line() + "\n"); err != nil {
		l.log.Error("appending to order log", "path", l.path, "error", err)
		return
	}
	if err := l.f.Sync(); err != nil {
		l.log.Error("syncing order log", "path", l.path, "error", err)
	}
}

// Close closes the underlying file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.f.Close()
}
