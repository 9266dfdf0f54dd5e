package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"kitebridge/internal/broker"
	"kitebridge/internal/domain"
)

// Authorizer obtains a fresh session through the redirect login flow. The
// manager invokes it only while holding its lock, so at most one
// authorization round-trip is ever in flight.
type Authorizer interface {
	Authorize(ctx context.Context) (domain.Session, error)
}

// Manager owns the single in-memory session. All state transitions happen
// behind one mutex: concurrent callers racing on validity checking either
// see the stored credential or wait for the one in-flight re-auth.
type Manager struct {
	store  *FileStore
	broker broker.Client
	auth   Authorizer
	log    *slog.Logger

	// clearOnInvalid controls whether a failed validity probe also deletes
	// the persisted record, or only drops the in-memory copy.
	clearOnInvalid bool

	mu  sync.Mutex
	cur *domain.Session
}

// NewManager creates a Manager over the given store, broker, and
// authorization flow.
func NewManager(store *FileStore, bk broker.Client, auth Authorizer, clearOnInvalid bool, log *slog.Logger) *Manager {
	return &Manager{
		store:          store,
		broker:         bk,
		auth:           auth,
		clearOnInvalid: clearOnInvalid,
		log:            log,
	}
}

// Token returns a usable access token. It loads the persisted session,
// probes its validity against the broker, and re-authenticates when the
// probe reports an auth failure. A non-auth probe failure is surfaced as a
// transient error rather than triggering re-authentication. This is the
// one path in the core that may fail upward: when no stored session is
// usable and a fresh flow cannot complete.
func (m *Manager) Token(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess := m.cur
	if sess == nil {
		loaded, err := m.store.Load()
		if err != nil {
			return "", err
		}
		sess = loaded
	}

	if sess == nil {
		return m.reauthorize(ctx)
	}

	m.broker.SetAccessToken(sess.AccessToken)
	_, err := m.broker.Profile(ctx)
	if err == nil {
		m.cur = sess
		return sess.AccessToken, nil
	}

	var berr *broker.Error
	if errors.As(err, &berr) && berr.Category == broker.CategoryAuth {
		m.log.Info("stored session rejected by broker, re-authenticating", "user", sess.UserID)
		m.cur = nil
		if m.clearOnInvalid {
			if _, cerr := m.store.Clear(); cerr != nil {
				m.log.Warn("clearing invalid session", "error", cerr)
			}
		}
		return m.reauthorize(ctx)
	}

	return "", fmt.Errorf("session probe: %w", err)
}

// reauthorize runs the authorization flow and persists the result before
// returning the credential. Must be called with mu held.
func (m *Manager) reauthorize(ctx context.Context) (string, error) {
	sess, err := m.auth.Authorize(ctx)
	if err != nil {
		return "", fmt.Errorf("authorization flow: %w", err)
	}

	// Save-then-return: a crash after the exchange must not lose the
	// credential. A persistence failure keeps the session usable in memory.
	if err := m.store.Save(sess); err != nil {
		m.log.Error("persisting session", "error", err)
	}

	m.cur = &sess
	m.broker.SetAccessToken(sess.AccessToken)
	m.log.Info("session established", "user", sess.UserID, "name", sess.UserName)
	return sess.AccessToken, nil
}

// Authenticated reports whether a persisted session loads and passes the
// validity probe. It never fails upward, never triggers the authorization
// flow, and performs no persistence writes.
func (m *Manager) Authenticated(ctx context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess := m.cur
	if sess == nil {
		loaded, err := m.store.Load()
		if err != nil || loaded == nil {
			return false
		}
		sess = loaded
	}

	m.broker.SetAccessToken(sess.AccessToken)
	if _, err := m.broker.Profile(ctx); err != nil {
		return false
	}
	m.cur = sess
	return true
}

// Info returns a copy of the current session record for display, loading
// from the store if nothing is in memory. Returns nil when absent.
func (m *Manager) Info() *domain.Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cur != nil {
		cp := *m.cur
		return &cp
	}
	loaded, err := m.store.Load()
	if err != nil || loaded == nil {
		return nil
	}
	cp := *loaded
	return &cp
}

// Logout drops the in-memory session and deletes the persisted record.
// Idempotent; reports whether anything was deleted.
func (m *Manager) Logout() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cur = nil
	return m.store.Clear()
}
