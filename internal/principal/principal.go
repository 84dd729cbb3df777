// ABOUTME: User signing principals derived from DIDs or supplied at creation
// ABOUTME: Stored key material is authoritative and never silently re-derived

package principal

import (
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spacegate/spacegate/internal/store"
)

// derivationVersion tags stored key material with the algorithm that
// produced it. A future algorithm change introduces a new version instead
// of invalidating stored rows.
const derivationVersion = "v1"

// ErrBadKeyMaterial is returned when stored or supplied key material cannot
// be decoded into a usable signer.
var ErrBadKeyMaterial = errors.New("bad principal key material")

// KeyMaterial is the versioned string encoding of a principal's seed.
// It implements slog.LogValuer so it can never leak into logs.
type KeyMaterial string

// LogValue redacts key material in structured logs.
func (KeyMaterial) LogValue() slog.Value {
	return slog.StringValue("[redacted]")
}

// Principal is a usable signing identity for a user DID.
type Principal struct {
	UserDID   string
	Key       ed25519.PrivateKey
	CreatedAt time.Time
}

// Public returns the principal's public key.
func (p *Principal) Public() ed25519.PublicKey {
	return p.Key.Public().(ed25519.PublicKey)
}

// Sign signs a message with the principal's key.
func (p *Principal) Sign(message []byte) []byte {
	return ed25519.Sign(p.Key, message)
}

// Deriver resolves signing principals for user DIDs, deriving and persisting
// one deterministically when none is stored.
type Deriver struct {
	store  store.PrincipalStore
	logger *slog.Logger
	now    func() time.Time
}

// NewDeriver creates a principal deriver backed by the given store.
func NewDeriver(s store.PrincipalStore) *Deriver {
	return &Deriver{
		store:  s,
		logger: slog.Default().With("component", "principal"),
		now:    time.Now,
	}
}

// GetOrDerive returns the stored principal for a user DID, deriving and
// persisting a deterministic one if absent. Derivation hashes the UTF-8
// bytes of the DID with SHA-256 and uses the digest as the Ed25519 seed, so
// a lost record rebuilds to the same identity. Persistence failure is
// logged and the derived principal is still returned.
func (d *Deriver) GetOrDerive(ctx context.Context, userDID string) (*Principal, error) {
	return d.Ensure(ctx, userDID, nil)
}

// Ensure resolves the principal for a user DID with an optional supplied
// seed. Precedence: a stored principal always wins; a supplied seed is used
// only when nothing is stored yet; derivation is the fallback when neither
// exists. Once persisted, key material is never overwritten.
func (d *Deriver) Ensure(ctx context.Context, userDID string, suppliedSeed []byte) (*Principal, error) {
	stored, err := d.store.GetUserPrincipal(ctx, userDID)
	if err == nil {
		return importPrincipal(stored)
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("loading principal: %w", err)
	}

	var seed []byte
	switch {
	case suppliedSeed != nil:
		if len(suppliedSeed) != ed25519.SeedSize {
			return nil, fmt.Errorf("%w: supplied seed must be %d bytes, got %d",
				ErrBadKeyMaterial, ed25519.SeedSize, len(suppliedSeed))
		}
		seed = suppliedSeed
	default:
		digest := sha256.Sum256([]byte(userDID))
		seed = digest[:]
	}

	now := d.now().UTC()
	material := encodeKeyMaterial(seed)
	record := &store.UserPrincipal{
		UserDID:     userDID,
		KeyMaterial: string(material),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := d.store.CreateUserPrincipal(ctx, record); err != nil {
		if errors.Is(err, store.ErrPrincipalExists) {
			// Lost a creation race; the stored row is authoritative
			stored, err := d.store.GetUserPrincipal(ctx, userDID)
			if err != nil {
				return nil, fmt.Errorf("reloading principal after race: %w", err)
			}
			return importPrincipal(stored)
		}
		// Non-fatal: the caller still gets a working signer, the next
		// request re-derives the identical value and retries the write
		d.logger.Error("persisting principal failed, serving unpersisted",
			"user_did", userDID, "error", err)
	} else {
		d.logger.Info("created principal", "user_did", userDID, "derived", suppliedSeed == nil)
	}

	return &Principal{
		UserDID:   userDID,
		Key:       ed25519.NewKeyFromSeed(seed),
		CreatedAt: now,
	}, nil
}

// encodeKeyMaterial produces the versioned stored encoding of a seed.
func encodeKeyMaterial(seed []byte) KeyMaterial {
	return KeyMaterial(derivationVersion + ":" + base64.StdEncoding.EncodeToString(seed))
}

// importPrincipal turns a stored record into a usable signer.
func importPrincipal(record *store.UserPrincipal) (*Principal, error) {
	version, encoded, found := strings.Cut(record.KeyMaterial, ":")
	if !found {
		return nil, fmt.Errorf("%w: missing version tag", ErrBadKeyMaterial)
	}
	if version != derivationVersion {
		return nil, fmt.Errorf("%w: unsupported version %q", ErrBadKeyMaterial, version)
	}

	seed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadKeyMaterial, err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("%w: wrong seed length", ErrBadKeyMaterial)
	}

	return &Principal{
		UserDID:   record.UserDID,
		Key:       ed25519.NewKeyFromSeed(seed),
		CreatedAt: record.CreatedAt,
	}, nil
}
