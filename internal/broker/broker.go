// Package broker defines the Client interface and provides implementations
// for the brokerage boundary: authentication, order submission, and account
// reads against Kite Connect or an in-memory simulator.
package broker

import (
	"context"

	"kitebridge/internal/domain"
)

// Client abstracts the brokerage API consumed by the gateway. Every call
// that can fail returns a *Error so callers can branch on the category
// instead of sniffing strings.
type Client interface {
	// Name returns the broker identifier (e.g. "kite", "simulator").
	Name() string

	// LoginURL returns the URL the user must visit to start the redirect
	// login flow.
	LoginURL() string

	// GenerateSession exchanges a one-time request token for a full session.
	// The exchange is a single attempt; a used, expired, or invalid token
	// fails with an input-category error.
	GenerateSession(ctx context.Context, requestToken string) (domain.Session, error)

	// SetAccessToken installs the credential used by subsequent calls.
	SetAccessToken(token string)

	// PlaceOrder submits one order and returns the broker-assigned order id.
	PlaceOrder(ctx context.Context, variety domain.Variety, params OrderParams) (string, error)

	// Orders returns the day's order book, used for post-submission status
	// lookup.
	Orders(ctx context.Context) ([]OrderStatus, error)

	// Positions returns the net positions for the account.
	Positions(ctx context.Context) ([]domain.Position, error)

	// Profile fetches the user profile. It doubles as the lightweight
	// credential validity probe.
	Profile(ctx context.Context) (Profile, error)
}

// OrderParams is the broker-native parameter set for one order. Zero-valued
// Price and TriggerPrice are omitted from the submission.
type OrderParams struct {
	Exchange     domain.Exchange
	Symbol       string
	Side         domain.Side
	Quantity     int
	Product      domain.Product
	OrderKind    domain.OrderKind
	Validity     domain.Validity
	Price        float64
	TriggerPrice float64
	Tag          string
}

// OrderStatus is one entry of the broker's order book.
type OrderStatus struct {
	OrderID string
	Status  string
}

// Profile is the identity record returned by the validity probe.
type Profile struct {
	UserID   string
	UserName string
	Email    string
}
