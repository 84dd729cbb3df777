// ABOUTME: Account session lifecycle with memory-first reads over durable storage
// ABOUTME: Tracks independent email/DID verification flags and sweeps expired sessions

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/spacegate/spacegate/internal/cache"
	"github.com/spacegate/spacegate/internal/logging"
	"github.com/spacegate/spacegate/internal/store"
)

// SessionTTL is the lifetime of a newly created session.
const SessionTTL = 24 * time.Hour

// Metadata carries request-scoped attributes recorded on the session.
type Metadata struct {
	UserAgent string
	IPAddress string
}

// Manager owns session records. The durable store is the source of truth;
// the in-memory index is write-through and repopulated on read misses, so
// hot reads never hit storage and restarts only cost a cold cache.
type Manager struct {
	store  store.SessionStore
	index  *cache.Repo[*store.Session]
	logger *slog.Logger
	now    func() time.Time
}

// NewManager creates a session manager backed by the given store.
func NewManager(s store.SessionStore) *Manager {
	return &Manager{
		store:  s,
		index:  cache.NewRepo[*store.Session](),
		logger: slog.Default().With("component", "session"),
		now:    time.Now,
	}
}

// Create starts a new unverified session. The record is written durably
// before the memory index is populated.
func (m *Manager) Create(ctx context.Context, email, did string, meta Metadata) (*store.Session, error) {
	now := m.now().UTC()
	sess := &store.Session{
		ID:           uuid.New().String(),
		Email:        email,
		DID:          did,
		CreatedAt:    now,
		LastActiveAt: now,
		ExpiresAt:    now.Add(SessionTTL),
		UserAgent:    meta.UserAgent,
		IPAddress:    meta.IPAddress,
		IsActive:     true,
	}

	if err := m.store.CreateSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}
	m.index.Put(sess.ID, cloneSession(sess))

	m.logger.Info("created session", "email", email, "session", logging.Redact(sess.ID))
	return sess, nil
}

// Get returns the session if it is active and unexpired, nil otherwise.
// Absence is an expected outcome, not an error. Expired-but-active records
// found on either path are lazily deactivated.
func (m *Manager) Get(ctx context.Context, id string) (*store.Session, error) {
	if sess, ok := m.index.Get(id); ok {
		if !sess.Usable(m.now()) {
			m.lazyDeactivate(ctx, sess)
			return nil, nil
		}
		return cloneSession(sess), nil
	}

	sess, err := m.store.GetSession(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}

	if !sess.Usable(m.now()) {
		m.lazyDeactivate(ctx, sess)
		return nil, nil
	}

	m.index.Put(sess.ID, cloneSession(sess))
	return sess, nil
}

// UpdateVerification flips one of the session's two verification flags.
// The combined verified state is the AND of both flags.
func (m *Manager) UpdateVerification(ctx context.Context, id string, kind store.SessionVerification, value bool) error {
	if err := m.store.SetSessionVerification(ctx, id, kind, value); err != nil {
		return err
	}

	// Index values are shared with readers outside the repo lock; replace,
	// never mutate in place.
	m.index.Update(id, func(sess *store.Session) *store.Session {
		copied := *sess
		switch kind {
		case store.VerificationEmail:
			copied.EmailVerified = value
		case store.VerificationDID:
			copied.DIDVerified = value
		}
		return &copied
	})

	m.logger.Debug("updated verification", "session", logging.Redact(id), "kind", kind, "value", value)
	return nil
}

// Touch refreshes the session's last-activity timestamp.
func (m *Manager) Touch(ctx context.Context, id string) error {
	at := m.now().UTC()
	if err := m.store.TouchSession(ctx, id, at); err != nil {
		return err
	}
	m.index.Update(id, func(sess *store.Session) *store.Session {
		copied := *sess
		copied.LastActiveAt = at
		return &copied
	})
	return nil
}

// Deactivate ends a session. Terminal: a deactivated session never becomes
// usable again.
func (m *Manager) Deactivate(ctx context.Context, id string) error {
	if err := m.store.DeactivateSession(ctx, id); err != nil {
		return err
	}
	m.index.Delete(id)
	m.logger.Info("deactivated session", "session", logging.Redact(id))
	return nil
}

// DeactivateAll ends every active session for an account and returns the
// count affected.
func (m *Manager) DeactivateAll(ctx context.Context, email string) (int, error) {
	count, err := m.store.DeactivateSessionsByEmail(ctx, email)
	if err != nil {
		return 0, err
	}

	for _, id := range m.index.Keys() {
		if sess, ok := m.index.Get(id); ok && sess.Email == email {
			m.index.Delete(id)
		}
	}
	return count, nil
}

// SweepExpired deactivates sessions past their expiry and evicts them from
// the memory index. Run periodically off the request path.
func (m *Manager) SweepExpired(ctx context.Context) (int, error) {
	now := m.now()
	count, err := m.store.DeactivateExpiredSessions(ctx, now.UTC())
	if err != nil {
		return 0, err
	}

	for _, id := range m.index.Keys() {
		if sess, ok := m.index.Get(id); ok && !sess.Usable(now) {
			m.index.Delete(id)
		}
	}

	if count > 0 {
		m.logger.Info("swept expired sessions", "count", count)
	}
	return count, nil
}

// lazyDeactivate persists the inactive state of an expired session found on
// a read path. Failures are logged only; the read already returned nil.
func (m *Manager) lazyDeactivate(ctx context.Context, sess *store.Session) {
	m.index.Delete(sess.ID)
	if !sess.IsActive {
		return
	}
	if err := m.store.DeactivateSession(ctx, sess.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
		m.logger.Warn("lazy deactivation failed", "error", err)
	}
}

// cloneSession copies a record so index entries are never shared with
// callers.
func cloneSession(sess *store.Session) *store.Session {
	copied := *sess
	return &copied
}
