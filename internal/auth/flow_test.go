package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"kitebridge/internal/broker"
	"kitebridge/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// exchangeBroker implements broker.Client for flow tests; only LoginURL
// and GenerateSession matter here.
type exchangeBroker struct {
	exchangeErr error
	exchanged   []string
}

func (b *exchangeBroker) Name() string     { return "fake" }
func (b *exchangeBroker) LoginURL() string { return "https://kite.test/connect/login?api_key=key" }

func (b *exchangeBroker) GenerateSession(_ context.Context, requestToken string) (domain.Session, error) {
	b.exchanged = append(b.exchanged, requestToken)
	if b.exchangeErr != nil {
		return domain.Session{}, b.exchangeErr
	}
	return domain.Session{AccessToken: "tok-" + requestToken, UserID: "AB1234", UserName: "Fake"}, nil
}

func (b *exchangeBroker) SetAccessToken(string) {}

func (b *exchangeBroker) PlaceOrder(context.Context, domain.Variety, broker.OrderParams) (string, error) {
	return "", errors.New("not used")
}

func (b *exchangeBroker) Orders(context.Context) ([]broker.OrderStatus, error) { return nil, nil }

func (b *exchangeBroker) Positions(context.Context) ([]domain.Position, error) { return nil, nil }

func (b *exchangeBroker) Profile(context.Context) (broker.Profile, error) {
	return broker.Profile{}, errors.New("not used")
}

type staticSource struct {
	token string
	err   error
}

func (s *staticSource) Obtain(ctx context.Context, _ string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.token, nil
}

// blockingSource never produces a token; it waits for cancellation.
type blockingSource struct{}

func (blockingSource) Obtain(ctx context.Context, _ string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestFlowAuthorize(t *testing.T) {
	bk := &exchangeBroker{}
	f := NewFlow(bk, &staticSource{token: "req123"}, time.Second, testLogger())

	sess, err := f.Authorize(context.Background())
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if sess.AccessToken != "tok-req123" {
		t.Errorf("AccessToken = %q, want tok-req123", sess.AccessToken)
	}
	if sess.CreatedDate == "" || sess.CreatedTime == "" {
		t.Errorf("session not stamped: %+v", sess)
	}
	if len(bk.exchanged) != 1 {
		t.Errorf("exchange attempts = %d, want exactly 1", len(bk.exchanged))
	}
}

func TestFlowTimeout(t *testing.T) {
	f := NewFlow(&exchangeBroker{}, blockingSource{}, 20*time.Millisecond, testLogger())

	_, err := f.Authorize(context.Background())
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Authorize = %v, want ErrTimeout", err)
	}
}

func TestFlowCancelledContextIsNotTimeout(t *testing.T) {
	f := NewFlow(&exchangeBroker{}, blockingSource{}, time.Minute, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.Authorize(ctx)
	if err == nil {
		t.Fatal("Authorize should fail on cancelled context")
	}
	if errors.Is(err, ErrTimeout) {
		t.Errorf("caller cancellation reported as ErrTimeout: %v", err)
	}
}

func TestFlowExchangeFailure(t *testing.T) {
	rejection := broker.NewError(broker.CategoryAuth, "Token is invalid or has expired.", nil)
	bk := &exchangeBroker{exchangeErr: rejection}
	f := NewFlow(bk, &staticSource{token: "used-token"}, time.Second, testLogger())

	_, err := f.Authorize(context.Background())
	var xerr *ExchangeError
	if !errors.As(err, &xerr) {
		t.Fatalf("Authorize = %v, want *ExchangeError", err)
	}
	if !errors.Is(err, rejection) {
		t.Errorf("ExchangeError does not wrap the broker rejection: %v", err)
	}
	if len(bk.exchanged) != 1 {
		t.Errorf("exchange attempts = %d, want exactly 1 (no retry)", len(bk.exchanged))
	}
}

// freePort reserves then releases a local port for listener tests.
func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()
	return port
}

func TestCallbackListenerCapturesToken(t *testing.T) {
	port := freePort(t)
	uri := fmt.Sprintf("http://127.0.0.1:%d/callback", port)
	l := NewCallbackListener(uri, false, testLogger())

	ready := make(chan string, 1)
	l.Ready = func(addr string) { ready <- addr }

	type result struct {
		token string
		err   error
	}
	resCh := make(chan result, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go func() {
		token, err := l.Obtain(ctx, "https://kite.test/login")
		resCh <- result{token, err}
	}()

	addr := <-ready
	resp, err := http.Get(fmt.Sprintf("http://%s/callback?request_token=req456&status=success", addr))
	if err != nil {
		t.Fatalf("simulated redirect: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("redirect status = %d, want 200", resp.StatusCode)
	}
	if !strings.Contains(string(body), "Login successful") {
		t.Errorf("success page missing from response: %q", body)
	}

	res := <-resCh
	if res.err != nil {
		t.Fatalf("Obtain: %v", res.err)
	}
	if res.token != "req456" {
		t.Errorf("token = %q, want req456", res.token)
	}
}

func TestCallbackListenerRejectsMissingToken(t *testing.T) {
	port := freePort(t)
	uri := fmt.Sprintf("http://127.0.0.1:%d/callback", port)
	l := NewCallbackListener(uri, false, testLogger())

	ready := make(chan string, 1)
	l.Ready = func(addr string) { ready <- addr }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := l.Obtain(ctx, "https://kite.test/login")
		done <- err
	}()

	addr := <-ready
	resp, err := http.Get(fmt.Sprintf("http://%s/callback", addr))
	if err != nil {
		t.Fatalf("simulated redirect: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for redirect without token", resp.StatusCode)
	}

	// A token-less redirect must not complete the wait.
	select {
	case err := <-done:
		t.Fatalf("Obtain returned early: %v", err)
	case <-time.After(50 * time.Millisecond):
	}
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Obtain after cancel = %v, want context.Canceled", err)
	}
}

func TestCallbackListenerReleasesPortOnTimeout(t *testing.T) {
	port := freePort(t)
	uri := fmt.Sprintf("http://127.0.0.1:%d/callback", port)

	first := NewCallbackListener(uri, false, testLogger())
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	_, err := first.Obtain(ctx, "https://kite.test/login")
	cancel()
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("first Obtain = %v, want deadline exceeded", err)
	}

	// The port must be bindable again after the timed-out attempt.
	second := NewCallbackListener(uri, false, testLogger())
	ready := make(chan string, 1)
	second.Ready = func(addr string) { ready <- addr }

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	resCh := make(chan error, 1)
	tokenCh := make(chan string, 1)
	go func() {
		token, err := second.Obtain(ctx2, "https://kite.test/login")
		tokenCh <- token
		resCh <- err
	}()

	addr := <-ready
	resp, err := http.Get(fmt.Sprintf("http://%s/callback?request_token=again", addr))
	if err != nil {
		t.Fatalf("redirect to rebound listener: %v", err)
	}
	resp.Body.Close()

	if token := <-tokenCh; token != "again" {
		t.Errorf("token = %q, want again", token)
	}
	if err := <-resCh; err != nil {
		t.Errorf("second Obtain: %v", err)
	}
}

func TestPromptSource(t *testing.T) {
	p := &PromptSource{In: strings.NewReader("  req789  \n"), Out: io.Discard}
	token, err := p.Obtain(context.Background(), "https://kite.test/login")
	if err != nil {
		t.Fatalf("Obtain: %v", err)
	}
	if token != "req789" {
		t.Errorf("token = %q, want req789", token)
	}
}

func TestPromptSourceEmptyInput(t *testing.T) {
	p := &PromptSource{In: strings.NewReader("\n"), Out: io.Discard}
	if _, err := p.Obtain(context.Background(), "url"); err == nil {
		t.Error("Obtain should fail on empty token")
	}
}
