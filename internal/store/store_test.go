// ABOUTME: Shared test setup for store tests
// ABOUTME: Creates a temporary SQLite store per test with automatic cleanup

package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// setupTestStore creates a temporary SQLite store for testing.
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)

	t.Cleanup(func() {
		store.Close()
	})

	return store
}

func TestNewSQLiteStore_CreatesParentDirs(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "nested", "dir", "test.db")

	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer store.Close()

	// Schema should be usable immediately
	err = store.CreateChallenge(context.Background(), &Challenge{
		ID:        "chal-1",
		DID:       "did:key:zTest",
		Text:      "challenge-text",
		CreatedAt: time.Now().UTC(),
		ExpiresAt: time.Now().UTC().Add(5 * time.Minute),
	})
	require.NoError(t, err)
}

func TestNewSQLiteStore_ReopenKeepsData(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")
	ctx := context.Background()

	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)

	p := &UserPrincipal{
		UserDID:     "did:key:zUser",
		KeyMaterial: "v1:c2VlZA==",
		CreatedAt:   time.Now().UTC().Truncate(time.Second),
		UpdatedAt:   time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, store.CreateUserPrincipal(ctx, p))
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.GetUserPrincipal(ctx, "did:key:zUser")
	require.NoError(t, err)
	require.Equal(t, "v1:c2VlZA==", got.KeyMaterial)
}
