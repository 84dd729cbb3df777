// ABOUTME: Admin space ownership store methods used to scope delegation authority
// ABOUTME: Rows are maintained by external space sync and read for authorization

package store

import (
	"context"
	"fmt"
	"time"
)

// SpaceStore defines the interface for admin space ownership persistence.
type SpaceStore interface {
	UpsertAdminSpace(ctx context.Context, space *AdminSpace) error
	ListAdminSpaces(ctx context.Context, adminEmail string) ([]*AdminSpace, error)
	AdminOwnsSpace(ctx context.Context, adminEmail, spaceDID string) (bool, error)
	ReplaceAdminSpaces(ctx context.Context, adminEmail string, spaces []*AdminSpace) error
}

// Ensure SQLiteStore implements SpaceStore.
var _ SpaceStore = (*SQLiteStore)(nil)

// UpsertAdminSpace inserts or refreshes a single ownership row.
func (s *SQLiteStore) UpsertAdminSpace(ctx context.Context, space *AdminSpace) error {
	query := `
		INSERT INTO admin_spaces (admin_email, space_did, space_name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (admin_email, space_did) DO UPDATE SET
			space_name = excluded.space_name,
			updated_at = excluded.updated_at
	`

	_, err := s.db.ExecContext(ctx, query,
		space.AdminEmail,
		space.SpaceDID,
		space.SpaceName,
		space.CreatedAt.UTC().Format(time.RFC3339),
		space.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("upserting admin space: %w", err)
	}
	return nil
}

// ListAdminSpaces returns the spaces owned by an admin, by name.
func (s *SQLiteStore) ListAdminSpaces(ctx context.Context, adminEmail string) ([]*AdminSpace, error) {
	query := `
		SELECT admin_email, space_did, space_name, created_at, updated_at
		FROM admin_spaces
		WHERE admin_email = ?
		ORDER BY space_name ASC
	`

	rows, err := s.db.QueryContext(ctx, query, adminEmail)
	if err != nil {
		return nil, fmt.Errorf("querying admin spaces: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var spaces []*AdminSpace
	for rows.Next() {
		var sp AdminSpace
		var createdAtStr, updatedAtStr string

		if err := rows.Scan(&sp.AdminEmail, &sp.SpaceDID, &sp.SpaceName, &createdAtStr, &updatedAtStr); err != nil {
			return nil, fmt.Errorf("scanning admin space: %w", err)
		}
		if sp.CreatedAt, err = parseTime("created_at", createdAtStr); err != nil {
			return nil, err
		}
		if sp.UpdatedAt, err = parseTime("updated_at", updatedAtStr); err != nil {
			return nil, err
		}
		spaces = append(spaces, &sp)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating admin spaces: %w", err)
	}
	return spaces, nil
}

// AdminOwnsSpace reports whether an ownership row exists for the pair.
func (s *SQLiteStore) AdminOwnsSpace(ctx context.Context, adminEmail, spaceDID string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM admin_spaces WHERE admin_email = ? AND space_did = ?`,
		adminEmail, spaceDID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking admin space ownership: %w", err)
	}
	return count > 0, nil
}

// ReplaceAdminSpaces replaces an admin's ownership rows wholesale, the way
// space sync delivers them. Runs in a transaction so readers never observe
// a half-applied sync.
func (s *SQLiteStore) ReplaceAdminSpaces(ctx context.Context, adminEmail string, spaces []*AdminSpace) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning space sync transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM admin_spaces WHERE admin_email = ?`, adminEmail); err != nil {
		return fmt.Errorf("clearing admin spaces: %w", err)
	}

	insert := `
		INSERT INTO admin_spaces (admin_email, space_did, space_name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`
	for _, sp := range spaces {
		if _, err := tx.ExecContext(ctx, insert,
			adminEmail,
			sp.SpaceDID,
			sp.SpaceName,
			sp.CreatedAt.UTC().Format(time.RFC3339),
			sp.UpdatedAt.UTC().Format(time.RFC3339),
		); err != nil {
			return fmt.Errorf("inserting admin space: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing space sync: %w", err)
	}

	s.logger.Info("synced admin spaces", "admin_email", adminEmail, "count", len(spaces))
	return nil
}
