// ABOUTME: Single-use DID authentication challenges with Ed25519 verification
// ABOUTME: Issues time-bound challenge text and verifies client signatures over it

package didauth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/spacegate/spacegate/internal/cache"
	"github.com/spacegate/spacegate/internal/didkey"
	"github.com/spacegate/spacegate/internal/store"
)

const (
	// ChallengeTTL is the validity window of an issued challenge.
	ChallengeTTL = 5 * time.Minute

	// consumedCacheSize bounds the in-memory consumed-challenge set.
	consumedCacheSize = 10000

	// challengeEntropyBytes is the random entropy mixed into each
	// challenge text. 16 bytes = 128 bits.
	challengeEntropyBytes = 16
)

// IssuedChallenge is returned to the caller for the client to sign.
// The text must be signed byte-for-byte as issued.
type IssuedChallenge struct {
	ID        string
	Text      string
	ExpiresAt time.Time
}

// Authenticator issues and verifies one-time login challenges for DIDs.
type Authenticator struct {
	store    store.ChallengeStore
	consumed *cache.TTL // fast-rejects already-consumed challenge ids
	ttl      time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// New creates a challenge authenticator backed by the given store.
func New(s store.ChallengeStore) *Authenticator {
	return &Authenticator{
		store:    s,
		consumed: cache.NewTTL(ChallengeTTL, consumedCacheSize),
		ttl:      ChallengeTTL,
		logger:   slog.Default().With("component", "didauth"),
		now:      time.Now,
	}
}

// Close releases the authenticator's background resources.
func (a *Authenticator) Close() {
	a.consumed.Close()
}

// Issue creates and persists a fresh challenge for the claimed DID.
// The DID is validated before any state change.
func (a *Authenticator) Issue(ctx context.Context, did string) (*IssuedChallenge, error) {
	if _, err := didkey.Decode(did); err != nil {
		return nil, err
	}

	entropy := make([]byte, challengeEntropyBytes)
	if _, err := rand.Read(entropy); err != nil {
		return nil, fmt.Errorf("generating challenge entropy: %w", err)
	}

	now := a.now().UTC()
	c := &store.Challenge{
		ID:        uuid.New().String(),
		DID:       did,
		Text:      fmt.Sprintf("spacegate-auth:v1:%s:%d:%s", did, now.Unix(), hex.EncodeToString(entropy)),
		CreatedAt: now,
		ExpiresAt: now.Add(a.ttl),
	}

	if err := a.store.CreateChallenge(ctx, c); err != nil {
		return nil, fmt.Errorf("persisting challenge: %w", err)
	}

	a.logger.Debug("issued challenge", "did", did, "expires_at", c.ExpiresAt)
	return &IssuedChallenge{ID: c.ID, Text: c.Text, ExpiresAt: c.ExpiresAt}, nil
}

// Verify checks a client signature over a previously issued challenge.
// It fails closed: unknown, expired, consumed, or cryptographically invalid
// submissions all return false with no externally visible distinction. On
// success the challenge is atomically consumed, so at most one Verify call
// per challenge can ever return true.
func (a *Authenticator) Verify(ctx context.Context, did, challengeID string, signature []byte) bool {
	if a.consumed.Check(challengeID) {
		a.logger.Debug("challenge rejected: already consumed", "did", did)
		return false
	}

	c, err := a.store.GetChallenge(ctx, challengeID, did)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			a.logger.Warn("challenge lookup failed", "error", err)
		}
		return false
	}

	if c.Used {
		a.consumed.Mark(challengeID)
		return false
	}
	if a.now().After(c.ExpiresAt) {
		a.logger.Debug("challenge rejected: expired", "did", did)
		return false
	}

	if !didkey.Verify(did, []byte(c.Text), signature) {
		a.logger.Debug("challenge rejected: signature mismatch", "did", did)
		return false
	}

	// The conditional update is the single point that decides the winner
	// between concurrent verifications of the same challenge.
	ok, err := a.store.ConsumeChallenge(ctx, challengeID, did)
	if err != nil {
		a.logger.Warn("challenge consume failed", "error", err)
		return false
	}
	if !ok {
		return false
	}

	a.consumed.Mark(challengeID)
	a.logger.Info("challenge verified", "did", did)
	return true
}

// SweepStale deletes challenges whose validity window has ended.
func (a *Authenticator) SweepStale(ctx context.Context) (int, error) {
	return a.store.DeleteExpiredChallenges(ctx, a.now().UTC())
}
