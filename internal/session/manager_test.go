// ABOUTME: Tests for the session manager
// ABOUTME: Covers verification state, cache read-repair, deactivation, and sweeps

package session

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spacegate/spacegate/internal/store"
)

func setupManager(t *testing.T) (*Manager, *store.SQLiteStore) {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return NewManager(s), s
}

func TestManager_CreateAndGet(t *testing.T) {
	m, _ := setupManager(t)
	ctx := context.Background()

	sess, err := m.Create(ctx, "admin@example.com", "did:key:zUser", Metadata{
		UserAgent: "test/1.0",
		IPAddress: "203.0.113.7",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, sess.ID)
	assert.WithinDuration(t, time.Now().Add(SessionTTL), sess.ExpiresAt, 5*time.Second)
	assert.False(t, sess.Verified())

	got, err := m.Get(ctx, sess.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "admin@example.com", got.Email)
	assert.Equal(t, "test/1.0", got.UserAgent)
}

func TestManager_Get_Missing(t *testing.T) {
	m, _ := setupManager(t)

	got, err := m.Get(context.Background(), "no-such")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestManager_Get_RepairsIndexFromStore(t *testing.T) {
	m, s := setupManager(t)
	ctx := context.Background()

	sess, err := m.Create(ctx, "admin@example.com", "", Metadata{})
	require.NoError(t, err)

	// Simulate a restart: fresh manager over the same durable store
	cold := NewManager(s)
	got, err := cold.Get(ctx, sess.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, sess.ID, got.ID)

	// The miss repopulated the index
	_, ok := cold.index.Get(sess.ID)
	assert.True(t, ok)
}

func TestManager_UpdateVerification_Combined(t *testing.T) {
	m, _ := setupManager(t)
	ctx := context.Background()

	sess, err := m.Create(ctx, "admin@example.com", "did:key:zUser", Metadata{})
	require.NoError(t, err)

	require.NoError(t, m.UpdateVerification(ctx, sess.ID, store.VerificationEmail, true))
	got, err := m.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.False(t, got.Verified(), "email alone is not enough")

	require.NoError(t, m.UpdateVerification(ctx, sess.ID, store.VerificationDID, true))
	got, err = m.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.True(t, got.Verified())
}

func TestManager_UpdateVerification_WritesThrough(t *testing.T) {
	m, s := setupManager(t)
	ctx := context.Background()

	sess, err := m.Create(ctx, "admin@example.com", "", Metadata{})
	require.NoError(t, err)
	require.NoError(t, m.UpdateVerification(ctx, sess.ID, store.VerificationDID, true))

	// Durable state reflects the flag, not just the memory index
	raw, err := s.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.True(t, raw.DIDVerified)
}

func TestManager_UpdateVerification_Missing(t *testing.T) {
	m, _ := setupManager(t)

	err := m.UpdateVerification(context.Background(), "no-such", store.VerificationEmail, true)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestManager_Deactivate(t *testing.T) {
	m, _ := setupManager(t)
	ctx := context.Background()

	sess, err := m.Create(ctx, "admin@example.com", "", Metadata{})
	require.NoError(t, err)

	require.NoError(t, m.Deactivate(ctx, sess.ID))

	got, err := m.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Nil(t, got, "deactivated session reads as absent before expiry")
}

func TestManager_DeactivateAll(t *testing.T) {
	m, _ := setupManager(t)
	ctx := context.Background()

	s1, err := m.Create(ctx, "admin@example.com", "", Metadata{})
	require.NoError(t, err)
	s2, err := m.Create(ctx, "admin@example.com", "", Metadata{})
	require.NoError(t, err)
	other, err := m.Create(ctx, "other@example.com", "", Metadata{})
	require.NoError(t, err)

	count, err := m.DeactivateAll(ctx, "admin@example.com")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	for _, id := range []string{s1.ID, s2.ID} {
		got, err := m.Get(ctx, id)
		require.NoError(t, err)
		assert.Nil(t, got)
	}

	got, err := m.Get(ctx, other.ID)
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestManager_Get_LazyDeactivatesExpired(t *testing.T) {
	m, s := setupManager(t)
	ctx := context.Background()

	sess, err := m.Create(ctx, "admin@example.com", "", Metadata{})
	require.NoError(t, err)

	m.now = func() time.Time { return time.Now().Add(SessionTTL + time.Hour) }

	got, err := m.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	// The lazy path persisted the deactivation
	raw, err := s.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.False(t, raw.IsActive)
}

func TestManager_SweepExpired(t *testing.T) {
	m, _ := setupManager(t)
	ctx := context.Background()

	first, err := m.Create(ctx, "admin@example.com", "", Metadata{})
	require.NoError(t, err)
	second, err := m.Create(ctx, "other@example.com", "", Metadata{})
	require.NoError(t, err)

	m.now = func() time.Time { return time.Now().Add(SessionTTL + time.Minute) }

	count, err := m.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	for _, id := range []string{first.ID, second.ID} {
		got, err := m.Get(ctx, id)
		require.NoError(t, err)
		assert.Nil(t, got)
	}
}

func TestManager_Touch(t *testing.T) {
	m, _ := setupManager(t)
	ctx := context.Background()

	sess, err := m.Create(ctx, "admin@example.com", "", Metadata{})
	require.NoError(t, err)

	later := time.Now().Add(30 * time.Minute)
	m.now = func() time.Time { return later }
	require.NoError(t, m.Touch(ctx, sess.ID))

	got, err := m.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, later.UTC().Truncate(time.Second), got.LastActiveAt.Truncate(time.Second))
}

// Readers hold index values outside the repo lock, so verification updates
// must replace the cached record rather than mutate it. Run with -race.
func TestManager_ConcurrentGetAndUpdateVerification(t *testing.T) {
	m, _ := setupManager(t)
	ctx := context.Background()

	sess, err := m.Create(ctx, "admin@example.com", "did:key:zUser", Metadata{})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		value := i%2 == 0
		wg.Add(2)
		go func() {
			defer wg.Done()
			got, err := m.Get(ctx, sess.ID)
			assert.NoError(t, err)
			assert.NotNil(t, got)
		}()
		go func() {
			defer wg.Done()
			assert.NoError(t, m.UpdateVerification(ctx, sess.ID, store.VerificationEmail, value))
		}()
	}
	wg.Wait()

	got, err := m.Get(ctx, sess.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "admin@example.com", got.Email)
}
