// ABOUTME: Delegation store methods keyed by (user DID, space DID, delegation CID)
// ABOUTME: Supports upsert, per-user and per-space queries, revocation, and expiry sweeps

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// DelegationStore defines the interface for delegation persistence.
type DelegationStore interface {
	UpsertDelegation(ctx context.Context, d *Delegation) error
	ListDelegationsForUser(ctx context.Context, userDID string) ([]*Delegation, error)
	ListDelegationsForSpace(ctx context.Context, spaceDID string) ([]*Delegation, error)
	DeleteDelegation(ctx context.Context, userDID, spaceDID, cid string) (bool, error)
	DeleteExpiredDelegations(ctx context.Context, before time.Time) ([]*Delegation, error)
}

// Ensure SQLiteStore implements DelegationStore.
var _ DelegationStore = (*SQLiteStore)(nil)

// UpsertDelegation inserts a delegation or refreshes an existing row for the
// same (user, space, cid) triple. On conflict the payload, expiry, and
// updated_at are replaced; created_at and created_by are preserved.
func (s *SQLiteStore) UpsertDelegation(ctx context.Context, d *Delegation) error {
	query := `
		INSERT INTO delegations
			(user_did, space_did, delegation_cid, delegation_payload,
			 created_at, updated_at, expires_at, created_by)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_did, space_did, delegation_cid) DO UPDATE SET
			delegation_payload = excluded.delegation_payload,
			updated_at = excluded.updated_at,
			expires_at = excluded.expires_at
	`

	_, err := s.db.ExecContext(ctx, query,
		d.UserDID,
		d.SpaceDID,
		d.CID,
		d.Payload,
		d.CreatedAt.UTC().Format(time.RFC3339),
		d.UpdatedAt.UTC().Format(time.RFC3339),
		nullTime(d.ExpiresAt),
		nullString(ptrToString(d.CreatedBy)),
	)
	if err != nil {
		return fmt.Errorf("upserting delegation: %w", err)
	}

	s.logger.Debug("stored delegation",
		"user_did", d.UserDID, "space_did", d.SpaceDID, "cid", d.CID)
	return nil
}

// ListDelegationsForUser returns all stored delegations for a user, most
// recent first. Expiry filtering is the caller's responsibility.
func (s *SQLiteStore) ListDelegationsForUser(ctx context.Context, userDID string) ([]*Delegation, error) {
	query := `
		SELECT user_did, space_did, delegation_cid, delegation_payload,
		       created_at, updated_at, expires_at, created_by
		FROM delegations
		WHERE user_did = ?
		ORDER BY created_at DESC
	`

	rows, err := s.db.QueryContext(ctx, query, userDID)
	if err != nil {
		return nil, fmt.Errorf("querying delegations for user: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanDelegations(rows)
}

// ListDelegationsForSpace returns all stored delegations granting access to
// a space, most recent first.
func (s *SQLiteStore) ListDelegationsForSpace(ctx context.Context, spaceDID string) ([]*Delegation, error) {
	query := `
		SELECT user_did, space_did, delegation_cid, delegation_payload,
		       created_at, updated_at, expires_at, created_by
		FROM delegations
		WHERE space_did = ?
		ORDER BY created_at DESC
	`

	rows, err := s.db.QueryContext(ctx, query, spaceDID)
	if err != nil {
		return nil, fmt.Errorf("querying delegations for space: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanDelegations(rows)
}

// DeleteDelegation removes a delegation row. Returns whether a row was
// actually deleted, so revocation of an absent grant is a false, not an
// error.
func (s *SQLiteStore) DeleteDelegation(ctx context.Context, userDID, spaceDID, cid string) (bool, error) {
	query := `
		DELETE FROM delegations
		WHERE user_did = ? AND space_did = ? AND delegation_cid = ?
	`

	result, err := s.db.ExecContext(ctx, query, userDID, spaceDID, cid)
	if err != nil {
		return false, fmt.Errorf("deleting delegation: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("getting rows affected: %w", err)
	}

	if rowsAffected > 0 {
		s.logger.Info("revoked delegation",
			"user_did", userDID, "space_did", spaceDID, "cid", cid)
	}
	return rowsAffected > 0, nil
}

// DeleteExpiredDelegations removes delegations whose expiry passed before
// the given instant and returns the deleted rows so callers can evict any
// in-memory index entries the read path never saw.
func (s *SQLiteStore) DeleteExpiredDelegations(ctx context.Context, before time.Time) ([]*Delegation, error) {
	selectQuery := `
		SELECT user_did, space_did, delegation_cid, delegation_payload,
		       created_at, updated_at, expires_at, created_by
		FROM delegations
		WHERE expires_at IS NOT NULL AND expires_at <= ?
	`

	cutoff := before.UTC().Format(time.RFC3339)

	rows, err := s.db.QueryContext(ctx, selectQuery, cutoff)
	if err != nil {
		return nil, fmt.Errorf("querying expired delegations: %w", err)
	}
	expired, err := scanDelegations(rows)
	_ = rows.Close()
	if err != nil {
		return nil, err
	}
	if len(expired) == 0 {
		return nil, nil
	}

	deleteQuery := `DELETE FROM delegations WHERE expires_at IS NOT NULL AND expires_at <= ?`
	if _, err := s.db.ExecContext(ctx, deleteQuery, cutoff); err != nil {
		return nil, fmt.Errorf("deleting expired delegations: %w", err)
	}

	s.logger.Debug("deleted expired delegations", "count", len(expired))
	return expired, nil
}

// scanDelegations scans delegation rows using the canonical column order.
func scanDelegations(rows *sql.Rows) ([]*Delegation, error) {
	var delegations []*Delegation
	for rows.Next() {
		var d Delegation
		var createdAtStr, updatedAtStr string
		var expiresAtStr, createdBy sql.NullString

		if err := rows.Scan(
			&d.UserDID,
			&d.SpaceDID,
			&d.CID,
			&d.Payload,
			&createdAtStr,
			&updatedAtStr,
			&expiresAtStr,
			&createdBy,
		); err != nil {
			return nil, fmt.Errorf("scanning delegation: %w", err)
		}

		var err error
		if d.CreatedAt, err = parseTime("created_at", createdAtStr); err != nil {
			return nil, err
		}
		if d.UpdatedAt, err = parseTime("updated_at", updatedAtStr); err != nil {
			return nil, err
		}
		if expiresAtStr.Valid {
			t, err := parseTime("expires_at", expiresAtStr.String)
			if err != nil {
				return nil, err
			}
			d.ExpiresAt = &t
		}
		if createdBy.Valid {
			d.CreatedBy = &createdBy.String
		}

		delegations = append(delegations, &d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating delegations: %w", err)
	}
	return delegations, nil
}
