// Package gateway is the order-routing core: it normalizes order
// requests, obtains a valid session, submits exactly once to the broker,
// classifies failures, and records every attempt in the audit log and the
// history store. Broker failures never escape to callers as errors; they
// come back as normalized OrderResult values.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"kitebridge/internal/broker"
	"kitebridge/internal/domain"
	"kitebridge/internal/history"
	"kitebridge/internal/orderlog"
)

// Error is a classified failure from a read-side gateway call. The kind
// lets front-ends map the failure to the right transport status.
type Error struct {
	Kind    domain.ErrorKind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// credentials is the slice of the session manager the gateway consumes.
type credentials interface {
	Token(ctx context.Context) (string, error)
}

// Gateway routes orders through the broker with a uniform outcome shape.
type Gateway struct {
	sessions credentials
	broker   broker.Client
	audit    *orderlog.Log
	history  *history.Store // optional
	log      *slog.Logger
}

// New creates a Gateway. The history store may be nil to disable
// structured attempt recording.
func New(sessions credentials, bk broker.Client, audit *orderlog.Log, hist *history.Store, log *slog.Logger) *Gateway {
	return &Gateway{
		sessions: sessions,
		broker:   bk,
		audit:    audit,
		history:  hist,
		log:      log,
	}
}

// PlaceOrder submits one order. The submission happens at most once per
// call: no failure class is retried, since a blind resubmit risks
// duplicate execution. Every attempt, including locally rejected ones,
// lands in the audit log.
func (g *Gateway) PlaceOrder(ctx context.Context, req domain.OrderRequest) domain.OrderResult {
	req.ApplyDefaults()
	tag := newOrderTag()

	if err := req.Validate(); err != nil {
		verr := err.(*domain.ValidationError)
		res := domain.Failed(verr.Kind, verr.Reason, verr.Reason)
		res.BrokerStatus = "REJECTED"
		g.record(ctx, req, res, "FAILED", tag)
		return res
	}

	token, err := g.sessions.Token(ctx)
	if err != nil {
		g.log.Warn("order blocked: no valid session", "symbol", req.Symbol, "error", err)
		res := domain.Failed(domain.ErrAuth, "Authentication failed. Please log in again.", err.Error())
		g.record(ctx, req, res, "AUTH_FAILED", tag)
		return res
	}
	g.broker.SetAccessToken(token)

	params := broker.OrderParams{
		Exchange:     req.Exchange,
		Symbol:       req.Symbol,
		Side:         req.Side,
		Quantity:     req.Quantity,
		Product:      req.Product,
		OrderKind:    req.OrderKind,
		Validity:     req.Validity,
		Price:        req.Price,
		TriggerPrice: req.TriggerPrice,
		Tag:          tag,
	}

	orderID, err := g.broker.PlaceOrder(ctx, req.Variety, params)
	if err != nil {
		kind, message := Classify(err)
		g.log.Warn("order rejected", "symbol", req.Symbol, "side", req.Side, "kind", kind, "error", err)
		res := domain.Failed(kind, message, err.Error())
		res.BrokerStatus = failureStatus(kind)
		g.record(ctx, req, res, "FAILED", tag)
		return res
	}

	// Best-effort status lookup; its failure never fails the order.
	brokerStatus := g.lookupStatus(ctx, orderID)
	g.log.Info("order placed", "symbol", req.Symbol, "side", req.Side,
		"qty", req.Quantity, "order_id", orderID, "status", brokerStatus)

	res := domain.Succeeded(orderID, brokerStatus)
	g.record(ctx, req, res, "SUCCESS", tag)
	return res
}

func (g *Gateway) lookupStatus(ctx context.Context, orderID string) string {
	orders, err := g.broker.Orders(ctx)
	if err != nil {
		g.log.Warn("order status lookup failed", "order_id", orderID, "error", err)
		return "STATUS_CHECK_FAILED"
	}
	for _, o := range orders {
		if o.OrderID == orderID {
			return o.Status
		}
	}
	// The book answered but the order has not shown up yet.
	return "UNKNOWN"
}

// record writes the attempt to the audit log and the history store.
func (g *Gateway) record(ctx context.Context, req domain.OrderRequest, res domain.OrderResult, status, tag string) {
	g.audit.Append(orderlog.Entry{
		Status:      status,
		Side:        req.Side,
		Symbol:      req.Symbol,
		Quantity:    req.Quantity,
		Exchange:    req.Exchange,
		Product:     req.Product,
		Kind:        req.OrderKind,
		Price:       req.Price,
		Trigger:     req.TriggerPrice,
		OrderID:     res.OrderID,
		OrderStatus: res.BrokerStatus,
		Error:       res.RawDetail,
	})
	if g.history != nil {
		if err := g.history.Record(ctx, req, res, status, tag); err != nil {
			g.log.Error("recording order attempt", "error", err)
		}
	}
}

// Positions returns the current non-zero net positions. Failures come
// back classified so callers can distinguish auth from connectivity.
func (g *Gateway) Positions(ctx context.Context) ([]domain.Position, error) {
	token, err := g.sessions.Token(ctx)
	if err != nil {
		return nil, &Error{Kind: domain.ErrAuth, Message: fmt.Sprintf("authentication failed: %v", err)}
	}
	g.broker.SetAccessToken(token)

	all, err := g.broker.Positions(ctx)
	if err != nil {
		kind, message := Classify(err)
		return nil, &Error{Kind: kind, Message: message}
	}

	positions := make([]domain.Position, 0, len(all))
	for _, p := range all {
		if p.Quantity == 0 {
			continue
		}
		positions = append(positions, p)
	}
	return positions, nil
}

// PositionsSummary renders the portfolio for display. It never fails:
// errors become a descriptive line instead.
func (g *Gateway) PositionsSummary(ctx context.Context) string {
	positions, err := g.Positions(ctx)
	if err != nil {
		return fmt.Sprintf("Could not fetch portfolio: %v", err)
	}
	if len(positions) == 0 {
		return "No open positions."
	}

	var b strings.Builder
	b.WriteString("Current positions:\n")
	for _, p := range positions {
		fmt.Fprintf(&b, "  %s: %d @ %.2f\n", p.Symbol, p.Quantity, p.LastPrice)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Recent returns the latest recorded order attempts, newest first.
// Returns nil when structured history is disabled.
func (g *Gateway) Recent(ctx context.Context, limit int) ([]history.Attempt, error) {
	if g.history == nil {
		return nil, nil
	}
	return g.history.Recent(ctx, limit)
}

// newOrderTag produces a short correlation tag attached to each broker
// submission. Kite truncates tags beyond 20 characters, so keep it short.
func newOrderTag() string {
	return "kb-" + uuid.NewString()[:8]
}
