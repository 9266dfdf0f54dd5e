package gateway

import (
	"errors"
	"strings"

	"kitebridge/internal/broker"
	"kitebridge/internal/domain"
)

// rule maps broker error text to the normalized taxonomy. Rules are
// evaluated in order; first match wins.
type rule struct {
	patterns []string
	kind     domain.ErrorKind
	message  string
}

var rules = []rule{
	{[]string{"insufficient stock holding", "holding quantity: 0"},
		domain.ErrInsufficientHoldings, "You do not hold enough shares to sell."},
	{[]string{"insufficient funds", "insufficient balance"},
		domain.ErrInsufficientFunds, "Insufficient funds to place this order."},
	{[]string{"invalid tradingsymbol", "instrument not found"},
		domain.ErrInvalidSymbol, "Unknown trading symbol for this exchange."},
	{[]string{"market is closed", "outside market hours"},
		domain.ErrMarketClosed, "The market is closed. Try again during trading hours."},
	{[]string{"price band", "circuit limit"},
		domain.ErrPriceBand, "Price is outside the allowed circuit limits."},
	{[]string{"minimum quantity", "lot size"},
		domain.ErrInvalidQuantity, "Quantity violates the instrument's lot size."},
	{[]string{"pending orders"},
		domain.ErrPendingOrders, "An existing pending order blocks this one."},
	{[]string{"invalid price"},
		domain.ErrInvalidPrice, "The limit or trigger price is invalid."},
	{[]string{"order rejected"},
		domain.ErrExchangeRejected, "The exchange rejected this order."},
}

// Classify reduces a broker failure to a taxonomy kind and a user-facing
// message. Typed auth and network categories from the broker adapter
// pre-empt text matching; everything else is matched case-insensitively
// against the rule table. Unmatched text passes through as UNKNOWN_ERROR.
func Classify(err error) (domain.ErrorKind, string) {
	var berr *broker.Error
	if errors.As(err, &berr) {
		switch berr.Category {
		case broker.CategoryAuth:
			return domain.ErrAuth, "Session expired or invalid. Please re-authenticate."
		case broker.CategoryNetwork:
			return domain.ErrNetwork, "Could not reach the broker. Check connectivity and retry."
		}
	}

	text := strings.ToLower(err.Error())
	for _, r := range rules {
		for _, p := range r.patterns {
			if strings.Contains(text, p) {
				return r.kind, r.message
			}
		}
	}
	return domain.ErrUnknown, err.Error()
}

// failureStatus maps a classified kind to the order-status word recorded
// in the audit trail for a failed submission.
func failureStatus(kind domain.ErrorKind) string {
	switch kind {
	case domain.ErrNetwork:
		return "NETWORK_ERROR"
	case domain.ErrUnknown:
		return "UNKNOWN_ERROR"
	default:
		return "REJECTED"
	}
}
