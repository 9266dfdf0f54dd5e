// Package httpapi exposes the order gateway and session manager over an
// HTTP REST API.
package httpapi

import (
	"kitebridge/internal/domain"
)

// OrderRequestJSON is the wire shape of a buy or sell request. Optional
// fields default server-side: NSE / CNC / MARKET / regular / DAY.
type OrderRequestJSON struct {
	Symbol       string  `json:"symbol"`
	Quantity     int     `json:"quantity"`
	Exchange     string  `json:"exchange,omitempty"`
	Product      string  `json:"product,omitempty"`
	OrderType    string  `json:"order_type,omitempty"`
	Price        float64 `json:"price,omitempty"`
	TriggerPrice float64 `json:"trigger_price,omitempty"`
	Variety      string  `json:"variety,omitempty"`
	Validity     string  `json:"validity,omitempty"`
}

// ToDomain converts the wire request into a normalized order request.
func (r OrderRequestJSON) ToDomain(side domain.Side) domain.OrderRequest {
	return domain.OrderRequest{
		Symbol:       r.Symbol,
		Quantity:     r.Quantity,
		Side:         side,
		Exchange:     domain.Exchange(r.Exchange),
		Product:      domain.Product(r.Product),
		OrderKind:    domain.OrderKind(r.OrderType),
		Price:        r.Price,
		TriggerPrice: r.TriggerPrice,
		Variety:      domain.Variety(r.Variety),
		Validity:     domain.Validity(r.Validity),
	}
}

// OrderResponseJSON is the uniform outcome shape for order endpoints.
type OrderResponseJSON struct {
	Status      string `json:"status"` // "success" or "error"
	OrderID     string `json:"order_id,omitempty"`
	OrderStatus string `json:"order_status,omitempty"`
	ErrorKind   string `json:"error_kind,omitempty"`
	Message     string `json:"message,omitempty"`
	Detail      string `json:"detail,omitempty"`
}

// AuthStatusJSON reports whether a valid session is present.
type AuthStatusJSON struct {
	Authenticated bool   `json:"authenticated"`
	Broker        string `json:"broker"`
	UserID        string `json:"user_id,omitempty"`
	UserName      string `json:"user_name,omitempty"`
	CreatedDate   string `json:"created_date,omitempty"`
}

// LogoutJSON reports the outcome of a logout.
type LogoutJSON struct {
	LoggedOut bool `json:"logged_out"`
	Removed   bool `json:"removed"`
}

// PositionsJSON wraps the filtered net positions.
type PositionsJSON struct {
	Count     int               `json:"count"`
	Positions []domain.Position `json:"positions"`
}

// AttemptJSON is one recorded order attempt.
type AttemptJSON struct {
	Time        string  `json:"time"`
	Status      string  `json:"status"`
	Side        string  `json:"side"`
	Symbol      string  `json:"symbol"`
	Quantity    int     `json:"quantity"`
	Exchange    string  `json:"exchange"`
	Product     string  `json:"product"`
	OrderType   string  `json:"order_type"`
	Price       float64 `json:"price,omitempty"`
	Trigger     float64 `json:"trigger,omitempty"`
	OrderID     string  `json:"order_id,omitempty"`
	OrderStatus string  `json:"order_status,omitempty"`
	ErrorKind   string  `json:"error_kind,omitempty"`
	Message     string  `json:"message,omitempty"`
}
