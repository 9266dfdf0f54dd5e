package broker

import (
	"context"
	"fmt"
	"sync"

	"kitebridge/internal/domain"
)

// Compile-time interface check.
var _ Client = (*Simulator)(nil)

// Simulator implements Client for paper trading and tests. Orders fill
// immediately against in-memory positions without any external call.
type Simulator struct {
	mu        sync.Mutex
	token     string
	positions map[string]*domain.Position
	orders    []OrderStatus
	nextID    int
}

// NewSimulator creates an empty Simulator.
func NewSimulator() *Simulator {
	return &Simulator{
		positions: make(map[string]*domain.Position),
		nextID:    171000001,
	}
}

// Name returns "simulator".
func (s *Simulator) Name() string {
	return "simulator"
}

// LoginURL returns a placeholder login URL.
func (s *Simulator) LoginURL() string {
	return "https://localhost/simulator/login"
}

// GenerateSession accepts any non-empty request token.
func (s *Simulator) GenerateSession(_ context.Context, requestToken string) (domain.Session, error) {
	if requestToken == "" {
		return domain.Session{}, NewError(CategoryInput, "Token is invalid or has expired.", nil)
	}
	return domain.Session{
		AccessToken: "sim-" + requestToken,
		UserID:      "SIM001",
		UserName:    "Simulator",
	}, nil
}

// SetAccessToken records the credential for the probe.
func (s *Simulator) SetAccessToken(token string) {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
}

// PlaceOrder fills the order immediately. Sells beyond the held quantity
// are rejected the way the live broker rejects them.
func (s *Simulator) PlaceOrder(_ context.Context, _ domain.Variety, params OrderParams) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if params.Quantity <= 0 {
		return "", NewError(CategoryInput, "Minimum quantity for this instrument is 1.", nil)
	}

	pos := s.positions[params.Symbol]
	if params.Side == domain.SideSell {
		held := 0
		if pos != nil {
			held = pos.Quantity
		}
		if held < params.Quantity {
			return "", NewError(CategoryInput,
				fmt.Sprintf("Insufficient stock holding. Holding quantity: %d", held), nil)
		}
	}

	if pos == nil {
		pos = &domain.Position{Symbol: params.Symbol}
		s.positions[params.Symbol] = pos
	}
	if params.Side == domain.SideBuy {
		pos.Quantity += params.Quantity
	} else {
		pos.Quantity -= params.Quantity
	}
	if params.Price > 0 {
		pos.LastPrice = params.Price
	}

	id := fmt.Sprintf("%d", s.nextID)
	s.nextID++
	s.orders = append(s.orders, OrderStatus{OrderID: id, Status: "COMPLETE"})
	return id, nil
}

// Orders returns all simulated orders.
func (s *Simulator) Orders(_ context.Context) ([]OrderStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]OrderStatus, len(s.orders))
	copy(out, s.orders)
	return out, nil
}

// Positions returns all simulated positions, including zero-quantity ones;
// filtering is the reader's concern.
func (s *Simulator) Positions(_ context.Context) ([]domain.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Position, 0, len(s.positions))
	for _, p := range s.positions {
		out = append(out, *p)
	}
	return out, nil
}

// Profile succeeds whenever a token is installed.
func (s *Simulator) Profile(_ context.Context) (Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == "" {
		return Profile{}, NewError(CategoryAuth, "Incorrect `api_key` or `access_token`.", nil)
	}
	return Profile{UserID: "SIM001", UserName: "Simulator"}, nil
}
