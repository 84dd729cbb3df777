// ABOUTME: Auth challenge store methods for one-time DID login challenges
// ABOUTME: Consume uses a conditional update so a challenge can succeed at most once

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ChallengeStore defines the interface for challenge persistence.
type ChallengeStore interface {
	CreateChallenge(ctx context.Context, c *Challenge) error
	GetChallenge(ctx context.Context, id, did string) (*Challenge, error)
	ConsumeChallenge(ctx context.Context, id, did string) (bool, error)
	DeleteExpiredChallenges(ctx context.Context, before time.Time) (int, error)
}

// Ensure SQLiteStore implements ChallengeStore.
var _ ChallengeStore = (*SQLiteStore)(nil)

// CreateChallenge persists a new unused challenge.
func (s *SQLiteStore) CreateChallenge(ctx context.Context, c *Challenge) error {
	query := `
		INSERT INTO auth_challenges (id, did, challenge, created_at, expires_at, used)
		VALUES (?, ?, ?, ?, ?, 0)
	`

	_, err := s.db.ExecContext(ctx, query,
		c.ID,
		c.DID,
		c.Text,
		c.CreatedAt.UTC().Format(time.RFC3339),
		c.ExpiresAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting challenge: %w", err)
	}

	s.logger.Debug("created challenge", "did", c.DID, "expires_at", c.ExpiresAt)
	return nil
}

// GetChallenge retrieves a challenge by id, scoped to the DID it was issued
// for. Returns ErrNotFound if no such challenge exists.
func (s *SQLiteStore) GetChallenge(ctx context.Context, id, did string) (*Challenge, error) {
	query := `
		SELECT id, did, challenge, created_at, expires_at, used
		FROM auth_challenges
		WHERE id = ? AND did = ?
	`

	var c Challenge
	var createdAtStr, expiresAtStr string
	var used int

	err := s.db.QueryRowContext(ctx, query, id, did).Scan(
		&c.ID,
		&c.DID,
		&c.Text,
		&createdAtStr,
		&expiresAtStr,
		&used,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying challenge: %w", err)
	}

	if c.CreatedAt, err = parseTime("created_at", createdAtStr); err != nil {
		return nil, err
	}
	if c.ExpiresAt, err = parseTime("expires_at", expiresAtStr); err != nil {
		return nil, err
	}
	c.Used = used != 0

	return &c, nil
}

// ConsumeChallenge atomically marks a challenge used. Returns true only for
// the single caller that performed the unused->used transition; concurrent
// consumers of the same challenge observe false.
func (s *SQLiteStore) ConsumeChallenge(ctx context.Context, id, did string) (bool, error) {
	query := `
		UPDATE auth_challenges
		SET used = 1
		WHERE id = ? AND did = ? AND used = 0
	`

	result, err := s.db.ExecContext(ctx, query, id, did)
	if err != nil {
		return false, fmt.Errorf("consuming challenge: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("getting rows affected: %w", err)
	}

	return rowsAffected == 1, nil
}

// DeleteExpiredChallenges removes challenges whose validity window ended
// before the given instant, used or not. Returns the number deleted.
func (s *SQLiteStore) DeleteExpiredChallenges(ctx context.Context, before time.Time) (int, error) {
	query := `DELETE FROM auth_challenges WHERE expires_at <= ?`

	result, err := s.db.ExecContext(ctx, query, before.UTC().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("deleting expired challenges: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("getting rows affected: %w", err)
	}

	if rowsAffected > 0 {
		s.logger.Debug("deleted expired challenges", "count", rowsAffected)
	}
	return int(rowsAffected), nil
}
