// Package auth implements the redirect authorization flow: it produces the
// broker login URL, waits for the one-time request token to arrive through
// a pluggable code source, and performs the single token exchange.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"kitebridge/internal/broker"
	"kitebridge/internal/domain"
)

// DefaultTimeout bounds the wait for the login callback. Five minutes is
// enough for a manual login with a mobile-app OTP.
const DefaultTimeout = 300 * time.Second

// ErrTimeout is returned when no request token arrives within the
// configured timeout.
var ErrTimeout = errors.New("timed out waiting for login callback")

// ExchangeError wraps a broker rejection of the code exchange (token
// already used, expired, or invalid).
type ExchangeError struct {
	Err error
}

func (e *ExchangeError) Error() string {
	return fmt.Sprintf("exchanging request token: %v", e.Err)
}

func (e *ExchangeError) Unwrap() error {
	return e.Err
}

// CodeSource obtains the one-time request token after the user completes
// the broker login. Implementations: CallbackListener (local redirect
// capture) and PromptSource (manual paste for headless environments).
type CodeSource interface {
	Obtain(ctx context.Context, loginURL string) (string, error)
}

// Flow runs the authorization round-trip. It performs exactly one exchange
// attempt per invocation; retrying a code exchange is never safe because
// request tokens are single-use.
type Flow struct {
	broker  broker.Client
	source  CodeSource
	timeout time.Duration
	now     func() time.Time
	log     *slog.Logger
}

// NewFlow creates a Flow. A non-positive timeout falls back to
// DefaultTimeout.
func NewFlow(bk broker.Client, source CodeSource, timeout time.Duration, log *slog.Logger) *Flow {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Flow{
		broker:  bk,
		source:  source,
		timeout: timeout,
		now:     time.Now,
		log:     log,
	}
}

// Authorize obtains a fresh session: login URL, bounded wait for the
// request token, one exchange. Fails with ErrTimeout when the wait
// expires and *ExchangeError when the broker rejects the exchange.
func (f *Flow) Authorize(ctx context.Context) (domain.Session, error) {
	loginURL := f.broker.LoginURL()
	f.log.Info("starting broker login", "url", loginURL, "timeout", f.timeout)

	waitCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	requestToken, err := f.source.Obtain(waitCtx, loginURL)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return domain.Session{}, ErrTimeout
		}
		return domain.Session{}, fmt.Errorf("obtaining request token: %w", err)
	}

	sess, err := f.broker.GenerateSession(ctx, requestToken)
	if err != nil {
		return domain.Session{}, &ExchangeError{Err: err}
	}

	sess.Stamp(f.now())
	f.log.Info("session exchanged", "user", sess.UserID)
	return sess, nil
}
