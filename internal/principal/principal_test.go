// ABOUTME: Tests for principal derivation and precedence
// ABOUTME: Covers determinism, stored-wins semantics, and key material import

package principal

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spacegate/spacegate/internal/store"
)

func setupDeriver(t *testing.T) (*Deriver, *store.SQLiteStore) {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return NewDeriver(s), s
}

func TestDeriver_GetOrDerive_Deterministic(t *testing.T) {
	ctx := context.Background()

	// Two independent stores derive byte-identical keys for the same DID
	d1, _ := setupDeriver(t)
	d2, _ := setupDeriver(t)

	p1, err := d1.GetOrDerive(ctx, "did:key:zUser")
	require.NoError(t, err)
	p2, err := d2.GetOrDerive(ctx, "did:key:zUser")
	require.NoError(t, err)

	assert.Equal(t, p1.Key, p2.Key)

	// Different DIDs derive different keys
	p3, err := d1.GetOrDerive(ctx, "did:key:zOther")
	require.NoError(t, err)
	assert.NotEqual(t, p1.Key, p3.Key)
}

func TestDeriver_GetOrDerive_Persists(t *testing.T) {
	d, s := setupDeriver(t)
	ctx := context.Background()

	p, err := d.GetOrDerive(ctx, "did:key:zUser")
	require.NoError(t, err)

	record, err := s.GetUserPrincipal(ctx, "did:key:zUser")
	require.NoError(t, err)
	assert.Contains(t, record.KeyMaterial, "v1:")

	// Repeated calls return the stored value
	again, err := d.GetOrDerive(ctx, "did:key:zUser")
	require.NoError(t, err)
	assert.Equal(t, p.Key, again.Key)
}

func TestDeriver_StoredWinsOverDerivation(t *testing.T) {
	d, s := setupDeriver(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	// Persist a principal whose seed is NOT the derived one
	seed := make([]byte, ed25519.SeedSize)
	_, err := rand.Read(seed)
	require.NoError(t, err)
	require.NoError(t, s.CreateUserPrincipal(ctx, &store.UserPrincipal{
		UserDID:     "did:key:zUser",
		KeyMaterial: string(encodeKeyMaterial(seed)),
		CreatedAt:   now,
		UpdatedAt:   now,
	}))

	p, err := d.GetOrDerive(ctx, "did:key:zUser")
	require.NoError(t, err)
	assert.Equal(t, ed25519.NewKeyFromSeed(seed), p.Key, "stored material is authoritative")
}

func TestDeriver_Ensure_SuppliedSeed(t *testing.T) {
	d, _ := setupDeriver(t)
	ctx := context.Background()

	seed := make([]byte, ed25519.SeedSize)
	_, err := rand.Read(seed)
	require.NoError(t, err)

	p, err := d.Ensure(ctx, "did:key:zUser", seed)
	require.NoError(t, err)
	assert.Equal(t, ed25519.NewKeyFromSeed(seed), p.Key)

	// Later supplied material does not replace what is stored
	otherSeed := make([]byte, ed25519.SeedSize)
	_, err = rand.Read(otherSeed)
	require.NoError(t, err)

	again, err := d.Ensure(ctx, "did:key:zUser", otherSeed)
	require.NoError(t, err)
	assert.Equal(t, p.Key, again.Key)
}

func TestDeriver_Ensure_BadSeedLength(t *testing.T) {
	d, _ := setupDeriver(t)

	_, err := d.Ensure(context.Background(), "did:key:zUser", []byte("too-short"))
	assert.ErrorIs(t, err, ErrBadKeyMaterial)
}

func TestImportPrincipal_BadMaterial(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name     string
		material string
	}{
		{"no version tag", "c2VlZA=="},
		{"unknown version", "v9:c2VlZA=="},
		{"bad base64", "v1:!!!"},
		{"wrong seed length", "v1:c2hvcnQ="},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := importPrincipal(&store.UserPrincipal{
				UserDID:     "did:key:zUser",
				KeyMaterial: tt.material,
				CreatedAt:   now,
			})
			assert.ErrorIs(t, err, ErrBadKeyMaterial)
		})
	}
}

func TestPrincipal_Sign(t *testing.T) {
	d, _ := setupDeriver(t)

	p, err := d.GetOrDerive(context.Background(), "did:key:zUser")
	require.NoError(t, err)

	message := []byte("delegation-request")
	sig := p.Sign(message)
	assert.True(t, ed25519.Verify(p.Public(), message, sig))
}
