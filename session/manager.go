package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	tferrors "github.com/sweetpotato0/tripflow/errors"
	"github.com/sweetpotato0/tripflow/pkg/logging"
)

// Manager manages sessions on top of a storage backend. Besides caching the
// live sessions it owns one mutex per session identifier; holding that mutex
// for the full duration of a turn is what keeps two concurrent messages in
// the same session from interleaving history mutations. Different sessions
// never contend.
type Manager struct {
	mu       sync.RWMutex
	store    Store
	sessions map[string]*Session
	locks    map[string]*sync.Mutex
	logger   *slog.Logger
}

// Option is a function that configures a Manager.
type Option func(*Manager)

// WithStore sets the store for the manager.
func WithStore(s Store) Option {
	return func(m *Manager) {
		m.store = s
	}
}

// WithLogger overrides the logger used by the manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewManager creates a new session manager with the given options.
//
// Example:
//
//	mgr := session.NewManager(session.WithStore(store.NewInMemoryStore()))
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		sessions: make(map[string]*Session),
		locks:    make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = logging.WithComponent("session_manager")
	}
	return m
}

// Lock acquires the per-session mutex and returns its release function. The
// caller holds it across the whole turn-processing critical section.
func (m *Manager) Lock(id string) func() {
	m.mu.Lock()
	lock, ok := m.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[id] = lock
	}
	m.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// GetOrCreate retrieves a session by ID, rehydrating it from the store if
// needed, or lazily materializes a new empty session.
func (m *Manager) GetOrCreate(ctx context.Context, id string) (*Session, error) {
	if sess, ok := m.getCached(id); ok {
		return sess, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if sess, ok := m.sessions[id]; ok {
		return sess, nil
	}

	if err := m.ensureStore(); err != nil {
		return nil, err
	}

	record, err := m.store.Load(ctx, id)
	if err == nil && record != nil {
		sess := FromRecord(record)
		m.sessions[id] = sess
		m.logger.Debug("session rehydrated", "id", id)
		return sess, nil
	}
	if err != nil && !errors.Is(err, tferrors.ErrNotFound) {
		// A backend failure must not shadow existing history with a fresh
		// empty session.
		m.logger.Error("load session failed", "id", id, "error", err)
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	sess := New(id)
	if err := m.store.Save(ctx, sess.Snapshot()); err != nil {
		m.logger.Error("persist new session failed", "id", id, "error", err)
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	m.sessions[id] = sess
	m.logger.Info("session created", "id", id)
	return sess, nil
}

// Save persists a session snapshot to the store.
func (m *Manager) Save(ctx context.Context, sess *Session) error {
	if sess == nil {
		return fmt.Errorf("session cannot be nil: %w", tferrors.ErrInvalidInput)
	}
	if err := m.ensureStore(); err != nil {
		return err
	}
	if err := m.store.Save(ctx, sess.Snapshot()); err != nil {
		m.logger.Error("save session failed", "id", sess.ID(), "error", err)
		return err
	}
	return nil
}

// Delete removes a session. The returned bool reports whether the session
// existed; clearing an unknown session is not an error. The session's lock
// entry is kept: turns already queued on it must still serialize with any
// turn that recreates the session under the same id.
func (m *Manager) Delete(ctx context.Context, id string) (bool, error) {
	if err := m.ensureStore(); err != nil {
		return false, err
	}

	m.mu.Lock()
	_, cached := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	exists, err := m.store.Exists(ctx, id)
	if err != nil {
		return false, err
	}
	if !exists {
		return cached, nil
	}
	if err := m.store.Delete(ctx, id); err != nil {
		m.logger.Error("delete session failed", "id", id, "error", err)
		return true, err
	}
	m.logger.Info("session deleted", "id", id)
	return true, nil
}

// List returns all session IDs.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	if err := m.ensureStore(); err != nil {
		return nil, err
	}
	return m.store.List(ctx)
}

// Count returns the number of stored sessions.
func (m *Manager) Count(ctx context.Context) (int, error) {
	if err := m.ensureStore(); err != nil {
		return 0, err
	}
	return m.store.Count(ctx)
}

// CleanupIdle removes sessions whose last update is older than maxAge and
// returns how many were dropped. This is the eviction policy for the
// otherwise unbounded session map.
func (m *Manager) CleanupIdle(ctx context.Context, maxAge time.Duration) (int, error) {
	if err := m.ensureStore(); err != nil {
		return 0, err
	}

	ids, err := m.store.List(ctx)
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, id := range ids {
		record, err := m.store.Load(ctx, id)
		if err != nil {
			m.logger.Warn("cleanup load failed", "id", id, "error", err)
			continue
		}
		if record.UpdatedAt.After(cutoff) {
			continue
		}
		unlock := m.Lock(id)
		if err := m.store.Delete(ctx, id); err == nil {
			removed++
			m.mu.Lock()
			delete(m.sessions, id)
			m.mu.Unlock()
			m.logger.Info("idle session removed", "id", id)
		}
		unlock()
	}
	return removed, nil
}

func (m *Manager) ensureStore() error {
	if m.store == nil {
		return fmt.Errorf("session manager store is not configured")
	}
	return nil
}

func (m *Manager) getCached(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[id]
	return sess, ok
}
