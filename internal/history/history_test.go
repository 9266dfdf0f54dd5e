package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"kitebridge/internal/domain"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAndRecent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2025, 6, 19, 10, 0, 0, 0, time.UTC)
	for i, sym := range []string{"RELIANCE", "TCS", "INFY"} {
		a := &Attempt{
			Time:     base.Add(time.Duration(i) * time.Minute),
			Status:   "SUCCESS",
			Side:     "BUY",
			Symbol:   sym,
			Quantity: i + 1,
			Exchange: "NSE",
			Product:  "CNC",
			Kind:     "MARKET",
			OrderID:  "17100000" + string(rune('1'+i)),
		}
		if err := s.Save(ctx, a); err != nil {
			t.Fatalf("Save %s: %v", sym, err)
		}
		if a.ID == 0 {
			t.Errorf("Save did not assign an ID for %s", sym)
		}
	}

	got, err := s.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Recent returned %d attempts, want 2", len(got))
	}
	// Newest first.
	if got[0].Symbol != "INFY" || got[1].Symbol != "TCS" {
		t.Errorf("Recent order = %s, %s; want INFY, TCS", got[0].Symbol, got[1].Symbol)
	}
	if !got[0].Time.Equal(base.Add(2 * time.Minute)) {
		t.Errorf("Time round trip = %v", got[0].Time)
	}
}

func TestRecordFromRequestAndResult(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	req := domain.OrderRequest{
		Side: domain.SideSell, Symbol: "SBIN", Quantity: 5,
		Exchange: domain.ExchangeNSE, Product: domain.ProductMIS, OrderKind: domain.OrderKindLimit, Price: 810.5,
	}
	res := domain.Failed(domain.ErrInsufficientFunds, "Insufficient funds.", "")
	res.BrokerStatus = "REJECTED"
	if err := s.Record(ctx, req, res, "FAILED", "kb-abc123"); err != nil {
		t.Fatalf("Record: %v", err)
	}

	got, err := s.Recent(ctx, 1)
	if err != nil || len(got) != 1 {
		t.Fatalf("Recent: %v (%d rows)", err, len(got))
	}
	a := got[0]
	if a.Status != "FAILED" || a.ErrorKind != "INSUFFICIENT_FUNDS" || a.Price != 810.5 || a.Tag != "kb-abc123" {
		t.Errorf("recorded attempt = %+v", a)
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	s1, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s1.Save(context.Background(), &Attempt{Status: "SUCCESS", Side: "BUY", Symbol: "X",
		Quantity: 1, Exchange: "NSE", Product: "CNC", Kind: "MARKET"}); err != nil {
		t.Fatal(err)
	}
	s1.Close()

	// Re-opening applies the schema without clobbering data.
	s2, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()
	got, err := s2.Recent(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Errorf("rows after reopen = %d, want 1", len(got))
	}
}

func TestExportParquetRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2025, 6, 19, 10, 0, 0, 0, time.UTC)
	want := []string{"RELIANCE", "TCS"}
	for i, sym := range want {
		if err := s.Save(ctx, &Attempt{
			Time: base.Add(time.Duration(i) * time.Second), Status: "SUCCESS", Side: "BUY",
			Symbol: sym, Quantity: 1, Exchange: "NSE", Product: "CNC", Kind: "MARKET",
		}); err != nil {
			t.Fatal(err)
		}
	}

	path := filepath.Join(t.TempDir(), "exports", "attempts.parquet")
	n, err := s.ExportParquet(ctx, path)
	if err != nil {
		t.Fatalf("ExportParquet: %v", err)
	}
	if n != 2 {
		t.Errorf("exported %d records, want 2", n)
	}

	records, err := ReadParquet(path)
	if err != nil {
		t.Fatalf("ReadParquet: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("read %d records, want 2", len(records))
	}
	// Chronological order is preserved.
	for i, r := range records {
		if r.Symbol != want[i] {
			t.Errorf("record %d symbol = %s, want %s", i, r.Symbol, want[i])
		}
	}
}
