// ABOUTME: Account session store methods with independent email/DID verification flags
// ABOUTME: Supports activity refresh, deactivation, bulk revoke, and expiry sweeps

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SessionVerification names one of the two independent verification flags.
type SessionVerification string

const (
	VerificationEmail SessionVerification = "email"
	VerificationDID   SessionVerification = "did"
)

// ErrUnknownVerification is returned for a verification kind that is neither
// email nor did.
var ErrUnknownVerification = errors.New("unknown verification kind")

// SessionStore defines the interface for session persistence.
type SessionStore interface {
	CreateSession(ctx context.Context, sess *Session) error
	GetSession(ctx context.Context, id string) (*Session, error)
	SetSessionVerification(ctx context.Context, id string, kind SessionVerification, value bool) error
	TouchSession(ctx context.Context, id string, at time.Time) error
	DeactivateSession(ctx context.Context, id string) error
	DeactivateSessionsByEmail(ctx context.Context, email string) (int, error)
	DeactivateExpiredSessions(ctx context.Context, before time.Time) (int, error)
}

// Ensure SQLiteStore implements SessionStore.
var _ SessionStore = (*SQLiteStore)(nil)

// CreateSession persists a new session record.
func (s *SQLiteStore) CreateSession(ctx context.Context, sess *Session) error {
	query := `
		INSERT INTO account_sessions
			(id, email, did, created_at, last_active_at, expires_at,
			 user_agent, ip_address, is_active, email_verified, did_verified)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		sess.ID,
		sess.Email,
		nullString(sess.DID),
		sess.CreatedAt.UTC().Format(time.RFC3339),
		sess.LastActiveAt.UTC().Format(time.RFC3339),
		sess.ExpiresAt.UTC().Format(time.RFC3339),
		nullString(sess.UserAgent),
		nullString(sess.IPAddress),
		boolToInt(sess.IsActive),
		boolToInt(sess.EmailVerified),
		boolToInt(sess.DIDVerified),
	)
	if err != nil {
		return fmt.Errorf("inserting session: %w", err)
	}

	s.logger.Debug("created session", "email", sess.Email, "expires_at", sess.ExpiresAt)
	return nil
}

// GetSession retrieves a session by id regardless of its active or expiry
// state; callers decide usability. Returns ErrNotFound if absent.
func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*Session, error) {
	query := `
		SELECT id, email, did, created_at, last_active_at, expires_at,
		       user_agent, ip_address, is_active, email_verified, did_verified
		FROM account_sessions
		WHERE id = ?
	`

	var sess Session
	var did, userAgent, ipAddress sql.NullString
	var createdAtStr, lastActiveAtStr, expiresAtStr string
	var isActive, emailVerified, didVerified int

	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&sess.ID,
		&sess.Email,
		&did,
		&createdAtStr,
		&lastActiveAtStr,
		&expiresAtStr,
		&userAgent,
		&ipAddress,
		&isActive,
		&emailVerified,
		&didVerified,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying session: %w", err)
	}

	sess.DID = did.String
	sess.UserAgent = userAgent.String
	sess.IPAddress = ipAddress.String
	sess.IsActive = isActive != 0
	sess.EmailVerified = emailVerified != 0
	sess.DIDVerified = didVerified != 0

	if sess.CreatedAt, err = parseTime("created_at", createdAtStr); err != nil {
		return nil, err
	}
	if sess.LastActiveAt, err = parseTime("last_active_at", lastActiveAtStr); err != nil {
		return nil, err
	}
	if sess.ExpiresAt, err = parseTime("expires_at", expiresAtStr); err != nil {
		return nil, err
	}

	return &sess, nil
}

// SetSessionVerification flips one of the two verification flags.
// Returns ErrNotFound if the session doesn't exist.
func (s *SQLiteStore) SetSessionVerification(ctx context.Context, id string, kind SessionVerification, value bool) error {
	var column string
	switch kind {
	case VerificationEmail:
		column = "email_verified"
	case VerificationDID:
		column = "did_verified"
	default:
		return fmt.Errorf("%w: %q", ErrUnknownVerification, kind)
	}

	query := fmt.Sprintf(`UPDATE account_sessions SET %s = ? WHERE id = ?`, column)

	result, err := s.db.ExecContext(ctx, query, boolToInt(value), id)
	if err != nil {
		return fmt.Errorf("updating session verification: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Debug("updated session verification", "kind", kind, "value", value)
	return nil
}

// TouchSession refreshes a session's last-activity timestamp.
func (s *SQLiteStore) TouchSession(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE account_sessions SET last_active_at = ? WHERE id = ?`

	result, err := s.db.ExecContext(ctx, query, at.UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("touching session: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeactivateSession marks a single session inactive.
func (s *SQLiteStore) DeactivateSession(ctx context.Context, id string) error {
	query := `UPDATE account_sessions SET is_active = 0 WHERE id = ?`

	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("deactivating session: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Debug("deactivated session")
	return nil
}

// DeactivateSessionsByEmail marks every active session for the email
// inactive and returns the number affected.
func (s *SQLiteStore) DeactivateSessionsByEmail(ctx context.Context, email string) (int, error) {
	query := `UPDATE account_sessions SET is_active = 0 WHERE email = ? AND is_active = 1`

	result, err := s.db.ExecContext(ctx, query, email)
	if err != nil {
		return 0, fmt.Errorf("deactivating sessions by email: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("getting rows affected: %w", err)
	}

	s.logger.Info("deactivated sessions for account", "email", email, "count", rowsAffected)
	return int(rowsAffected), nil
}

// DeactivateExpiredSessions marks active sessions whose expiry has passed as
// inactive. Returns the number affected.
func (s *SQLiteStore) DeactivateExpiredSessions(ctx context.Context, before time.Time) (int, error) {
	query := `UPDATE account_sessions SET is_active = 0 WHERE expires_at <= ? AND is_active = 1`

	result, err := s.db.ExecContext(ctx, query, before.UTC().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("deactivating expired sessions: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("getting rows affected: %w", err)
	}

	if rowsAffected > 0 {
		s.logger.Debug("deactivated expired sessions", "count", rowsAffected)
	}
	return int(rowsAffected), nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
