// Package domain defines the core types shared across the kitebridge
// gateway: sessions, order requests and results, audit entries, and the
// error taxonomy.
package domain

import (
	"fmt"
	"time"
)

// Side is the transaction direction of an order.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Exchange identifies the trading venue.
type Exchange string

const (
	ExchangeNSE Exchange = "NSE"
	ExchangeBSE Exchange = "BSE"
	ExchangeNFO Exchange = "NFO"
	ExchangeBFO Exchange = "BFO"
	ExchangeMCX Exchange = "MCX"
	ExchangeCDS Exchange = "CDS"
)

// Product is the margin product an order is booked under.
type Product string

const (
	ProductCNC  Product = "CNC"
	ProductMIS  Product = "MIS"
	ProductNRML Product = "NRML"
)

// OrderKind is the pricing mode of an order.
type OrderKind string

const (
	OrderKindMarket OrderKind = "MARKET"
	OrderKindLimit  OrderKind = "LIMIT"
	OrderKindSL     OrderKind = "SL"
	OrderKindSLM    OrderKind = "SL-M"
)

// Variety is the Kite order variety.
type Variety string

const (
	VarietyRegular Variety = "regular"
	VarietyAMO     Variety = "amo"
	VarietyCO      Variety = "co"
	VarietyIceberg Variety = "iceberg"
)

// Validity controls how long an order stays live.
type Validity string

const (
	ValidityDay Validity = "DAY"
	ValidityIOC Validity = "IOC"
)

// ErrorKind is the normalized failure taxonomy for order outcomes.
type ErrorKind string

const (
	ErrAuth                 ErrorKind = "AUTH_ERROR"
	ErrNetwork              ErrorKind = "NETWORK_ERROR"
	ErrInsufficientHoldings ErrorKind = "INSUFFICIENT_HOLDINGS"
	ErrInsufficientFunds    ErrorKind = "INSUFFICIENT_FUNDS"
	ErrInvalidSymbol        ErrorKind = "INVALID_SYMBOL"
	ErrMarketClosed         ErrorKind = "MARKET_CLOSED"
	ErrPriceBand            ErrorKind = "PRICE_BAND"
	ErrInvalidQuantity      ErrorKind = "INVALID_QUANTITY"
	ErrPendingOrders        ErrorKind = "PENDING_ORDERS"
	ErrInvalidPrice         ErrorKind = "INVALID_PRICE"
	ErrExchangeRejected     ErrorKind = "EXCHANGE_REJECTED"
	ErrUnknown              ErrorKind = "UNKNOWN_ERROR"
)

// Session is one authenticated broker identity. A Session is either fully
// present or absent; partial records are treated as absent.
type Session struct {
	AccessToken string `json:"access_token"`
	UserID      string `json:"user_id"`
	UserName    string `json:"user_name"`
	CreatedDate string `json:"created_date"`
	CreatedTime string `json:"created_time"`
}

// Complete reports whether all identity fields are populated.
func (s Session) Complete() bool {
	return s.AccessToken != "" && s.UserID != "" && s.UserName != ""
}

// Stamp sets the creation timestamps from now.
func (s *Session) Stamp(now time.Time) {
	s.CreatedDate = now.Format(time.RFC3339)
	s.CreatedTime = now.Format("15:04:05")
}

// OrderRequest is the normalized input to order placement. Price and
// TriggerPrice use zero to mean "unset"; both are strictly positive when
// present.
type OrderRequest struct {
	Symbol       string
	Quantity     int
	Side         Side
	Exchange     Exchange
	Product      Product
	OrderKind    OrderKind
	Price        float64
	TriggerPrice float64
	Variety      Variety
	Validity     Validity
}

// ApplyDefaults fills the optional enum fields the way the wire surfaces
// default them: NSE / CNC / MARKET / regular / DAY.
func (r *OrderRequest) ApplyDefaults() {
	if r.Exchange == "" {
		r.Exchange = ExchangeNSE
	}
	if r.Product == "" {
		r.Product = ProductCNC
	}
	if r.OrderKind == "" {
		r.OrderKind = OrderKindMarket
	}
	if r.Variety == "" {
		r.Variety = VarietyRegular
	}
	if r.Validity == "" {
		r.Validity = ValidityDay
	}
}

// Validate checks the request for local consistency before any network
// submission: positive quantity, a price for LIMIT and SL orders, and a
// trigger for stop-loss variants. Violations are returned as a
// ValidationError carrying the matching taxonomy kind.
func (r OrderRequest) Validate() error {
	if r.Symbol == "" {
		return &ValidationError{Kind: ErrInvalidSymbol, Reason: "trading symbol is required"}
	}
	if r.Quantity <= 0 {
		return &ValidationError{Kind: ErrInvalidQuantity, Reason: fmt.Sprintf("quantity must be positive, got %d", r.Quantity)}
	}
	if r.Side != SideBuy && r.Side != SideSell {
		return &ValidationError{Kind: ErrUnknown, Reason: fmt.Sprintf("unknown side %q", r.Side)}
	}
	switch r.OrderKind {
	case OrderKindLimit:
		if r.Price <= 0 {
			return &ValidationError{Kind: ErrInvalidPrice, Reason: "LIMIT orders require a positive price"}
		}
	case OrderKindSL:
		if r.Price <= 0 {
			return &ValidationError{Kind: ErrInvalidPrice, Reason: "SL orders require a positive price"}
		}
		if r.TriggerPrice <= 0 {
			return &ValidationError{Kind: ErrInvalidPrice, Reason: "SL orders require a positive trigger price"}
		}
	case OrderKindSLM:
		if r.TriggerPrice <= 0 {
			return &ValidationError{Kind: ErrInvalidPrice, Reason: "SL-M orders require a positive trigger price"}
		}
	}
	return nil
}

// ValidationError reports a locally rejected order request.
type ValidationError struct {
	Kind   ErrorKind
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// OrderResult is the normalized outcome of one order attempt.
type OrderResult struct {
	OK           bool
	OrderID      string
	BrokerStatus string

	// Failure fields, set only when OK is false.
	ErrorKind ErrorKind
	Message   string
	RawDetail string
}

// Succeeded builds a success result.
func Succeeded(orderID, brokerStatus string) OrderResult {
	return OrderResult{OK: true, OrderID: orderID, BrokerStatus: brokerStatus}
}

// Failed builds a failure result.
func Failed(kind ErrorKind, message, raw string) OrderResult {
	return OrderResult{ErrorKind: kind, Message: message, RawDetail: raw}
}

// Position is a read-only projection of broker state, fetched on demand
// and never cached.
type Position struct {
	Symbol    string  `json:"symbol"`
	Quantity  int     `json:"quantity"`
	LastPrice float64 `json:"last_price"`
}
