package broker

import "fmt"

// Category buckets broker failures at the adapter boundary. The fine-grained
// user-facing taxonomy is derived later from the category plus the vendor's
// message text.
type Category int

const (
	// CategoryUnknown covers failures the adapter cannot attribute.
	CategoryUnknown Category = iota
	// CategoryInput marks order/validation rejections from the broker.
	CategoryInput
	// CategoryAuth marks expired or invalid credentials.
	CategoryAuth
	// CategoryNetwork marks connectivity failures.
	CategoryNetwork
)

// String returns a short label for logs.
func (c Category) String() string {
	switch c {
	case CategoryInput:
		return "input"
	case CategoryAuth:
		return "auth"
	case CategoryNetwork:
		return "network"
	default:
		return "unknown"
	}
}

// Error is the typed failure returned from every Client call site.
type Error struct {
	Category Category
	Message  string
	Err      error // underlying vendor error, may be nil
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("broker error (%s)", e.Category)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError builds a categorized broker error.
func NewError(cat Category, message string, err error) *Error {
	return &Error{Category: cat, Message: message, Err: err}
}
