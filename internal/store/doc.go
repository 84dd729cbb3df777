// Package store provides persistent storage for spacegate using SQLite.
//
// # Architecture
//
// The store package uses an interface-driven architecture with one
// specialized interface per entity:
//
//   - ChallengeStore: One-time DID authentication challenges
//   - SessionStore: Account sessions with email/DID verification flags
//   - DelegationStore: Upload delegations keyed by (user, space, cid)
//   - PrincipalStore: Persisted user signing principals
//   - SpaceStore: Admin-to-space ownership used for authorization
//
// SQLiteStore implements all interfaces in a single struct, allowing easy
// composition while maintaining clear interface boundaries. The store is the
// source of truth; the service layers above it maintain in-memory indexes
// that are write-through and repopulated from here on miss.
//
// # Conventions
//
// Timestamps are stored as RFC3339 strings in UTC. Absence is reported as
// ErrNotFound, never as a nil record with a nil error. Mutations that touch
// a single record report ErrNotFound when zero rows were affected. The one
// correctness-critical operation is ConsumeChallenge, which performs the
// unused-to-used transition with a conditional UPDATE so exactly one caller
// can win a given challenge.
package store
