package gateway

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"kitebridge/internal/broker"
	"kitebridge/internal/domain"
	"kitebridge/internal/history"
	"kitebridge/internal/orderlog"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

type fakeCreds struct {
	token string
	err   error
	calls int
}

func (f *fakeCreds) Token(context.Context) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.token, nil
}

// scriptBroker implements broker.Client with scripted outcomes.
type scriptBroker struct {
	placeErr     error
	orderID      string
	orders       []broker.OrderStatus
	ordersErr    error
	positions    []domain.Position
	positionsErr error

	placed      int
	lastVariety domain.Variety
	lastParams  broker.OrderParams
	token       string
}

func (b *scriptBroker) Name() string           { return "script" }
func (b *scriptBroker) LoginURL() string       { return "https://kite.test/login" }
func (b *scriptBroker) SetAccessToken(t string) { b.token = t }

func (b *scriptBroker) GenerateSession(context.Context, string) (domain.Session, error) {
	return domain.Session{}, errors.New("not used")
}

func (b *scriptBroker) PlaceOrder(_ context.Context, variety domain.Variety, params broker.OrderParams) (string, error) {
	b.placed++
	b.lastVariety = variety
	b.lastParams = params
	if b.placeErr != nil {
		return "", b.placeErr
	}
	return b.orderID, nil
}

func (b *scriptBroker) Orders(context.Context) ([]broker.OrderStatus, error) {
	if b.ordersErr != nil {
		return nil, b.ordersErr
	}
	return b.orders, nil
}

func (b *scriptBroker) Positions(context.Context) ([]domain.Position, error) {
	if b.positionsErr != nil {
		return nil, b.positionsErr
	}
	return b.positions, nil
}

func (b *scriptBroker) Profile(context.Context) (broker.Profile, error) {
	return broker.Profile{UserID: "AB1234"}, nil
}

func newTestGateway(t *testing.T, creds *fakeCreds, bk broker.Client) (*Gateway, string) {
	t.Helper()
	dir := t.TempDir()
	logPath := filepath.Join(dir, "order.log")
	audit, err := orderlog.Open(logPath, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { audit.Close() })

	hist, err := history.Open(filepath.Join(dir, "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { hist.Close() })

	return New(creds, bk, audit, hist, testLogger()), logPath
}

func auditContents(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading audit log: %v", err)
	}
	return string(data)
}

func TestPlaceOrderSuccess(t *testing.T) {
	creds := &fakeCreds{token: "tok"}
	bk := &scriptBroker{
		orderID: "171000001",
		orders:  []broker.OrderStatus{{OrderID: "171000001", Status: "COMPLETE"}},
	}
	g, logPath := newTestGateway(t, creds, bk)

	res := g.PlaceOrder(context.Background(), domain.OrderRequest{
		Symbol: "RELIANCE", Quantity: 10, Side: domain.SideBuy,
	})

	if !res.OK {
		t.Fatalf("PlaceOrder failed: %+v", res)
	}
	if res.OrderID != "171000001" || res.BrokerStatus != "COMPLETE" {
		t.Errorf("result = %+v", res)
	}
	if bk.placed != 1 {
		t.Errorf("broker submissions = %d, want exactly 1", bk.placed)
	}
	if bk.token != "tok" {
		t.Errorf("broker credential = %q", bk.token)
	}

	// Defaults applied on the wire.
	if bk.lastVariety != domain.VarietyRegular {
		t.Errorf("variety = %s", bk.lastVariety)
	}
	p := bk.lastParams
	if p.Exchange != domain.ExchangeNSE || p.Product != domain.ProductCNC || p.OrderKind != domain.OrderKindMarket {
		t.Errorf("params defaults = %+v", p)
	}
	if !strings.HasPrefix(p.Tag, "kb-") {
		t.Errorf("order tag = %q", p.Tag)
	}

	line := auditContents(t, logPath)
	if !strings.Contains(line, "BUY | RELIANCE | Qty: 10 | NSE | CNC | MARKET | OrderID: 171000001") {
		t.Errorf("audit line = %q", line)
	}
	if !strings.Contains(line, "| SUCCESS |") {
		t.Errorf("audit status missing SUCCESS: %q", line)
	}

	attempts, err := g.Recent(context.Background(), 1)
	if err != nil || len(attempts) != 1 {
		t.Fatalf("Recent: %v (%d rows)", err, len(attempts))
	}
	if attempts[0].Status != "SUCCESS" || attempts[0].OrderID != "171000001" {
		t.Errorf("history attempt = %+v", attempts[0])
	}
}

func TestPlaceOrderBrokerRejection(t *testing.T) {
	creds := &fakeCreds{token: "tok"}
	bk := &scriptBroker{
		placeErr: broker.NewError(broker.CategoryInput, "Insufficient funds or holdings", nil),
	}
	g, logPath := newTestGateway(t, creds, bk)

	res := g.PlaceOrder(context.Background(), domain.OrderRequest{
		Symbol: "SBIN", Quantity: 100, Side: domain.SideBuy,
	})

	if res.OK {
		t.Fatal("rejected order reported OK")
	}
	if res.ErrorKind != domain.ErrInsufficientFunds {
		t.Errorf("kind = %s, want INSUFFICIENT_FUNDS", res.ErrorKind)
	}
	if res.OrderID != "" {
		t.Errorf("failed order carries order_id %q", res.OrderID)
	}
	if !strings.Contains(res.RawDetail, "Insufficient funds or holdings") {
		t.Errorf("raw detail = %q", res.RawDetail)
	}

	line := auditContents(t, logPath)
	if !strings.Contains(line, "| FAILED |") {
		t.Errorf("audit status missing FAILED: %q", line)
	}
	if !strings.Contains(line, "Error: ") {
		t.Errorf("audit line missing raw error: %q", line)
	}
}

func TestPlaceOrderAuthFailure(t *testing.T) {
	creds := &fakeCreds{err: errors.New("authorization flow: timed out waiting for login callback")}
	bk := &scriptBroker{orderID: "171000001"}
	g, logPath := newTestGateway(t, creds, bk)

	res := g.PlaceOrder(context.Background(), domain.OrderRequest{
		Symbol: "RELIANCE", Quantity: 1, Side: domain.SideBuy,
	})

	if res.OK {
		t.Fatal("order without a session reported OK")
	}
	if res.ErrorKind != domain.ErrAuth {
		t.Errorf("kind = %s, want AUTH_ERROR", res.ErrorKind)
	}
	if bk.placed != 0 {
		t.Errorf("broker called %d times without a credential", bk.placed)
	}

	line := auditContents(t, logPath)
	if !strings.Contains(line, "| AUTH_FAILED |") {
		t.Errorf("audit status = %q, want AUTH_FAILED", line)
	}
}

func TestPlaceOrderLocalValidationFailsFast(t *testing.T) {
	creds := &fakeCreds{token: "tok"}
	bk := &scriptBroker{orderID: "171000001"}
	g, _ := newTestGateway(t, creds, bk)

	res := g.PlaceOrder(context.Background(), domain.OrderRequest{
		Symbol: "RELIANCE", Quantity: 5, Side: domain.SideBuy, OrderKind: domain.OrderKindLimit,
	})

	if res.OK {
		t.Fatal("LIMIT order without price reported OK")
	}
	if res.ErrorKind != domain.ErrInvalidPrice {
		t.Errorf("kind = %s, want INVALID_PRICE", res.ErrorKind)
	}
	if creds.calls != 0 || bk.placed != 0 {
		t.Errorf("invalid request reached session (%d) or broker (%d)", creds.calls, bk.placed)
	}
}

func TestPlaceOrderStatusLookupFailureIsNonFatal(t *testing.T) {
	creds := &fakeCreds{token: "tok"}
	bk := &scriptBroker{
		orderID:   "171000002",
		ordersErr: broker.NewError(broker.CategoryNetwork, "connection timed out", nil),
	}
	g, _ := newTestGateway(t, creds, bk)

	res := g.PlaceOrder(context.Background(), domain.OrderRequest{
		Symbol: "TCS", Quantity: 2, Side: domain.SideSell,
	})

	if !res.OK {
		t.Fatalf("order failed on status lookup: %+v", res)
	}
	if res.BrokerStatus != "STATUS_CHECK_FAILED" {
		t.Errorf("broker status = %q, want STATUS_CHECK_FAILED", res.BrokerStatus)
	}
}

func TestPlaceOrderStatusUnknownWhenNotInBook(t *testing.T) {
	creds := &fakeCreds{token: "tok"}
	bk := &scriptBroker{
		orderID: "171000002",
		orders:  []broker.OrderStatus{{OrderID: "171000001", Status: "COMPLETE"}},
	}
	g, _ := newTestGateway(t, creds, bk)

	res := g.PlaceOrder(context.Background(), domain.OrderRequest{
		Symbol: "TCS", Quantity: 2, Side: domain.SideSell,
	})

	if !res.OK {
		t.Fatalf("order failed on status lookup: %+v", res)
	}
	if res.BrokerStatus != "UNKNOWN" {
		t.Errorf("broker status = %q, want UNKNOWN", res.BrokerStatus)
	}
}

func TestPositionsFiltersZeroQuantity(t *testing.T) {
	creds := &fakeCreds{token: "tok"}
	bk := &scriptBroker{positions: []domain.Position{
		{Symbol: "RELIANCE", Quantity: 10, LastPrice: 2945.5},
		{Symbol: "SOLDOUT", Quantity: 0, LastPrice: 101.0},
		{Symbol: "TCS", Quantity: -5, LastPrice: 3250.0},
	}}
	g, _ := newTestGateway(t, creds, bk)

	got, err := g.Positions(context.Background())
	if err != nil {
		t.Fatalf("Positions: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Positions returned %d entries, want 2", len(got))
	}
	for _, p := range got {
		if p.Quantity == 0 {
			t.Errorf("zero-quantity position survived: %+v", p)
		}
	}
}

func TestPositionsFailureIsClassified(t *testing.T) {
	bk := &scriptBroker{positionsErr: broker.NewError(broker.CategoryNetwork, "connection refused", nil)}
	g, _ := newTestGateway(t, &fakeCreds{token: "tok"}, bk)

	_, err := g.Positions(context.Background())
	var gerr *Error
	if !errors.As(err, &gerr) {
		t.Fatalf("err = %v, want *Error", err)
	}
	if gerr.Kind != domain.ErrNetwork {
		t.Errorf("kind = %s, want NETWORK_ERROR", gerr.Kind)
	}
}

func TestPositionsAuthFailureIsClassified(t *testing.T) {
	creds := &fakeCreds{err: errors.New("no session on disk")}
	g, _ := newTestGateway(t, creds, &scriptBroker{})

	_, err := g.Positions(context.Background())
	var gerr *Error
	if !errors.As(err, &gerr) {
		t.Fatalf("err = %v, want *Error", err)
	}
	if gerr.Kind != domain.ErrAuth {
		t.Errorf("kind = %s, want AUTH_ERROR", gerr.Kind)
	}
}

func TestPositionsSummary(t *testing.T) {
	creds := &fakeCreds{token: "tok"}
	bk := &scriptBroker{positions: []domain.Position{
		{Symbol: "RELIANCE", Quantity: 10, LastPrice: 2945.5},
	}}
	g, _ := newTestGateway(t, creds, bk)

	got := g.PositionsSummary(context.Background())
	if !strings.Contains(got, "RELIANCE: 10 @ 2945.50") {
		t.Errorf("summary = %q", got)
	}
}

func TestPositionsSummaryEmpty(t *testing.T) {
	g, _ := newTestGateway(t, &fakeCreds{token: "tok"}, &scriptBroker{})
	if got := g.PositionsSummary(context.Background()); got != "No open positions." {
		t.Errorf("summary = %q, want explicit no-positions line", got)
	}
}

func TestPositionsSummaryNeverFails(t *testing.T) {
	bk := &scriptBroker{positionsErr: broker.NewError(broker.CategoryNetwork, "connection refused", nil)}
	g, _ := newTestGateway(t, &fakeCreds{token: "tok"}, bk)

	got := g.PositionsSummary(context.Background())
	if !strings.Contains(got, "Could not fetch portfolio") {
		t.Errorf("summary = %q, want descriptive failure", got)
	}
}
