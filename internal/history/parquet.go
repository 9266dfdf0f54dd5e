package history

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"
)

// AttemptRecord is the Parquet schema for exported order attempts.
type AttemptRecord struct {
	Timestamp   int64   `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	Status      string  `parquet:"status"`
	Side        string  `parquet:"side"`
	Symbol      string  `parquet:"symbol"`
	Quantity    int32   `parquet:"quantity"`
	Exchange    string  `parquet:"exchange"`
	Product     string  `parquet:"product"`
	Kind        string  `parquet:"kind"`
	Price       float64 `parquet:"price"`
	Trigger     float64 `parquet:"trigger"`
	OrderID     string  `parquet:"order_id"`
	OrderStatus string  `parquet:"order_status"`
	ErrorKind   string  `parquet:"error_kind"`
	Message     string  `parquet:"message"`
	Tag         string  `parquet:"tag"`
}

// ExportParquet writes every recorded attempt to a Parquet file at path.
func (s *Store) ExportParquet(ctx context.Context, path string) (int, error) {
	attempts, err := s.All(ctx)
	if err != nil {
		return 0, err
	}

	records := make([]AttemptRecord, 0, len(attempts))
	for _, a := range attempts {
		records = append(records, AttemptRecord{
			Timestamp:   a.Time.UnixMilli(),
			Status:      a.Status,
			Side:        a.Side,
			Symbol:      a.Symbol,
			Quantity:    int32(a.Quantity),
			Exchange:    a.Exchange,
			Product:     a.Product,
			Kind:        a.Kind,
			Price:       a.Price,
			Trigger:     a.Trigger,
			OrderID:     a.OrderID,
			OrderStatus: a.OrderStatus,
			ErrorKind:   a.ErrorKind,
			Message:     a.Message,
			Tag:         a.Tag,
		})
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, fmt.Errorf("creating export dir: %w", err)
	}
	if err := parquet.WriteFile(path, records); err != nil {
		return 0, fmt.Errorf("writing parquet export: %w", err)
	}
	return len(records), nil
}

// ReadParquet reads an exported attempt file back, for verification.
func ReadParquet(path string) ([]AttemptRecord, error) {
	return parquet.ReadFile[AttemptRecord](path)
}
