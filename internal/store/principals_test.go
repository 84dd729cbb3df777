// ABOUTME: Tests for the user principal store
// ABOUTME: Covers write-once semantics for persisted signing identities

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrincipalStore_CreateAndGet(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	p := &UserPrincipal{
		UserDID:     "did:key:zUser",
		KeyMaterial: "v1:ZGV0ZXJtaW5pc3RpYy1zZWVk",
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	require.NoError(t, store.CreateUserPrincipal(ctx, p))

	got, err := store.GetUserPrincipal(ctx, "did:key:zUser")
	require.NoError(t, err)
	assert.Equal(t, "v1:ZGV0ZXJtaW5pc3RpYy1zZWVk", got.KeyMaterial)
	assert.Equal(t, now, got.CreatedAt)
}

func TestPrincipalStore_Get_Missing(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.GetUserPrincipal(context.Background(), "did:key:zNobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPrincipalStore_Create_Duplicate(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	p := &UserPrincipal{
		UserDID:     "did:key:zUser",
		KeyMaterial: "v1:Zmlyc3Q=",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	require.NoError(t, store.CreateUserPrincipal(ctx, p))

	// Stored principals are immutable; a second create must not overwrite
	dup := &UserPrincipal{
		UserDID:     "did:key:zUser",
		KeyMaterial: "v1:c2Vjb25k",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err := store.CreateUserPrincipal(ctx, dup)
	assert.ErrorIs(t, err, ErrPrincipalExists)

	got, err := store.GetUserPrincipal(ctx, "did:key:zUser")
	require.NoError(t, err)
	assert.Equal(t, "v1:Zmlyc3Q=", got.KeyMaterial)
}
