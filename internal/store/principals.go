// ABOUTME: User principal store methods for persisted signing identities
// ABOUTME: Principals are write-once; a stored row is never overwritten

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// PrincipalStore defines the interface for user principal persistence.
type PrincipalStore interface {
	CreateUserPrincipal(ctx context.Context, p *UserPrincipal) error
	GetUserPrincipal(ctx context.Context, userDID string) (*UserPrincipal, error)
}

// Ensure SQLiteStore implements PrincipalStore.
var _ PrincipalStore = (*SQLiteStore)(nil)

// CreateUserPrincipal persists a new principal. Returns ErrPrincipalExists
// if the DID already has one; stored key material is immutable.
func (s *SQLiteStore) CreateUserPrincipal(ctx context.Context, p *UserPrincipal) error {
	query := `
		INSERT INTO user_principals (user_did, principal_key_material, created_at, updated_at)
		VALUES (?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		p.UserDID,
		p.KeyMaterial,
		p.CreatedAt.UTC().Format(time.RFC3339),
		p.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrPrincipalExists
		}
		return fmt.Errorf("inserting user principal: %w", err)
	}

	s.logger.Info("created user principal", "user_did", p.UserDID)
	return nil
}

// GetUserPrincipal retrieves the principal for a user DID.
// Returns ErrNotFound if none is stored.
func (s *SQLiteStore) GetUserPrincipal(ctx context.Context, userDID string) (*UserPrincipal, error) {
	query := `
		SELECT user_did, principal_key_material, created_at, updated_at
		FROM user_principals
		WHERE user_did = ?
	`

	var p UserPrincipal
	var createdAtStr, updatedAtStr string

	err := s.db.QueryRowContext(ctx, query, userDID).Scan(
		&p.UserDID,
		&p.KeyMaterial,
		&createdAtStr,
		&updatedAtStr,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user principal: %w", err)
	}

	if p.CreatedAt, err = parseTime("created_at", createdAtStr); err != nil {
		return nil, err
	}
	if p.UpdatedAt, err = parseTime("updated_at", updatedAtStr); err != nil {
		return nil, err
	}

	return &p, nil
}
