// ABOUTME: SQLite implementation of the spacegate store using modernc.org/sqlite
// ABOUTME: Provides challenge/session/delegation/principal persistence with automatic schema creation

package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore is the durable store backing all spacegate ledgers.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS auth_challenges (
			id TEXT PRIMARY KEY,
			did TEXT NOT NULL,
			challenge TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			expires_at DATETIME NOT NULL,
			used INTEGER NOT NULL DEFAULT 0
		);

		CREATE INDEX IF NOT EXISTS idx_auth_challenges_expires
			ON auth_challenges(expires_at);

		CREATE TABLE IF NOT EXISTS account_sessions (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL,
			did TEXT,
			created_at DATETIME NOT NULL,
			last_active_at DATETIME NOT NULL,
			expires_at DATETIME NOT NULL,
			user_agent TEXT,
			ip_address TEXT,
			is_active INTEGER NOT NULL DEFAULT 1,
			email_verified INTEGER NOT NULL DEFAULT 0,
			did_verified INTEGER NOT NULL DEFAULT 0
		);

		CREATE INDEX IF NOT EXISTS idx_account_sessions_email
			ON account_sessions(email);

		CREATE INDEX IF NOT EXISTS idx_account_sessions_expires
			ON account_sessions(expires_at, is_active);

		CREATE TABLE IF NOT EXISTS delegations (
			user_did TEXT NOT NULL,
			space_did TEXT NOT NULL,
			delegation_cid TEXT NOT NULL,
			delegation_payload BLOB NOT NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			expires_at DATETIME,
			created_by TEXT,
			PRIMARY KEY (user_did, space_did, delegation_cid)
		);

		CREATE INDEX IF NOT EXISTS idx_delegations_user
			ON delegations(user_did, created_at);

		CREATE INDEX IF NOT EXISTS idx_delegations_space
			ON delegations(space_did);

		CREATE TABLE IF NOT EXISTS user_principals (
			user_did TEXT PRIMARY KEY,
			principal_key_material TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS admin_spaces (
			admin_email TEXT NOT NULL,
			space_did TEXT NOT NULL,
			space_name TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			PRIMARY KEY (admin_email, space_did)
		);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("executing schema: %w", err)
	}

	return nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// isConstraintViolation reports whether err is a SQLite constraint failure.
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "UNIQUE constraint failed") ||
		strings.Contains(errStr, "constraint failed")
}

// nullString converts empty strings to nil for nullable columns.
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func ptrToString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// nullTime converts a nil time pointer to nil, otherwise RFC3339.
func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

// parseTime parses an RFC3339 timestamp column.
func parseTime(field, value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing %s: %w", field, err)
	}
	return t, nil
}
