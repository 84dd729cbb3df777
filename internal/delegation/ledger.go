// ABOUTME: Delegation ledger tracking upload grants between user DIDs and spaces
// ABOUTME: Maintains a per-user memory index over the durable store with lazy expiry

package delegation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spacegate/spacegate/internal/cache"
	"github.com/spacegate/spacegate/internal/store"
)

// ErrMissingPrincipal is returned when a delegation is stored for a user
// that has no signing principal yet. Callers must derive or supply one
// first.
var ErrMissingPrincipal = errors.New("no principal exists for user")

// Store is the durable surface the ledger needs: delegations themselves,
// principals for the existence check, and space ownership for
// authorization.
type Store interface {
	store.DelegationStore
	store.PrincipalStore
	store.SpaceStore
}

// Params describes a delegation grant to be stored.
type Params struct {
	UserDID   string
	SpaceDID  string
	CID       string
	Payload   []byte
	ExpiresAt *time.Time // nil = never expires
	CreatedBy string     // admin email, empty for system-issued grants
}

// Ledger owns delegation records. The durable store is the source of truth;
// a per-user in-memory index serves hot reads and is repopulated on miss.
// Writes land durably before the index is touched.
type Ledger struct {
	store  Store
	index  *cache.Repo[[]*store.Delegation] // keyed by user DID, most recent first
	logger *slog.Logger
	now    func() time.Time
}

// NewLedger creates a delegation ledger backed by the given store.
func NewLedger(s Store) *Ledger {
	return &Ledger{
		store:  s,
		index:  cache.NewRepo[[]*store.Delegation](),
		logger: slog.Default().With("component", "delegation"),
		now:    time.Now,
	}
}

// Store persists a delegation grant. The user must already have a signing
// principal; that invariant keeps every stored grant attributable to a
// principal that can actually exercise it.
func (l *Ledger) Store(ctx context.Context, p Params) error {
	if _, err := l.store.GetUserPrincipal(ctx, p.UserDID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrMissingPrincipal, p.UserDID)
		}
		return fmt.Errorf("checking principal: %w", err)
	}

	now := l.now().UTC()
	d := &store.Delegation{
		UserDID:   p.UserDID,
		SpaceDID:  p.SpaceDID,
		CID:       p.CID,
		Payload:   p.Payload,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: p.ExpiresAt,
	}
	if p.CreatedBy != "" {
		d.CreatedBy = &p.CreatedBy
	}

	if err := l.store.UpsertDelegation(ctx, d); err != nil {
		return err
	}

	// Write-through for already-loaded users: replace any row for the same
	// triple, newest first. An unloaded user stays absent and the next read
	// repairs the whole list from the store.
	l.index.Update(p.UserDID, func(list []*store.Delegation) []*store.Delegation {
		out := make([]*store.Delegation, 0, len(list)+1)
		out = append(out, d)
		for _, existing := range list {
			if existing.SpaceDID == d.SpaceDID && existing.CID == d.CID {
				continue
			}
			out = append(out, existing)
		}
		return out
	})

	l.logger.Info("stored delegation",
		"user_did", p.UserDID, "space_did", p.SpaceDID, "cid", p.CID)
	return nil
}

// ActiveForUser returns the user's unexpired delegations, most recent
// first. Reads are memory-first; expired entries found in the index are
// evicted on the way out. A miss falls back to the durable store and
// repopulates the index.
func (l *Ledger) ActiveForUser(ctx context.Context, userDID string) ([]*store.Delegation, error) {
	now := l.now()

	if list, ok := l.index.Get(userDID); ok {
		active, evicted := splitActive(list, now)
		if evicted {
			l.index.Put(userDID, active)
		}
		return append([]*store.Delegation(nil), active...), nil
	}

	list, err := l.store.ListDelegationsForUser(ctx, userDID)
	if err != nil {
		return nil, fmt.Errorf("loading delegations: %w", err)
	}

	active, _ := splitActive(list, now)
	l.index.Put(userDID, active)
	return append([]*store.Delegation(nil), active...), nil
}

// ForSpace returns the active delegations granting access to a space,
// grouped by requesting user. This is an admin-facing query and goes
// straight to the durable store; it is not memory-indexed.
func (l *Ledger) ForSpace(ctx context.Context, spaceDID string) (map[string][]*store.Delegation, error) {
	list, err := l.store.ListDelegationsForSpace(ctx, spaceDID)
	if err != nil {
		return nil, fmt.Errorf("loading delegations for space: %w", err)
	}

	now := l.now()
	grouped := make(map[string][]*store.Delegation)
	for _, d := range list {
		if !d.Active(now) {
			continue
		}
		grouped[d.UserDID] = append(grouped[d.UserDID], d)
	}
	return grouped, nil
}

// Revoke deletes a delegation. Returns whether a durable row was actually
// removed; revoking an absent grant is false, not an error.
func (l *Ledger) Revoke(ctx context.Context, userDID, spaceDID, cid string) (bool, error) {
	deleted, err := l.store.DeleteDelegation(ctx, userDID, spaceDID, cid)
	if err != nil {
		return false, err
	}

	// Cached lists are shared with readers outside the repo lock; filter
	// into a fresh slice rather than reusing the backing array.
	l.index.Update(userDID, func(list []*store.Delegation) []*store.Delegation {
		out := make([]*store.Delegation, 0, len(list))
		for _, d := range list {
			if d.SpaceDID == spaceDID && d.CID == cid {
				continue
			}
			out = append(out, d)
		}
		return out
	})

	return deleted, nil
}

// AuthorizeAdminForSpace reports whether the admin owns the space and may
// issue delegations from it.
func (l *Ledger) AuthorizeAdminForSpace(ctx context.Context, adminEmail, spaceDID string) (bool, error) {
	return l.store.AdminOwnsSpace(ctx, adminEmail, spaceDID)
}

// SweepExpired hard-deletes durably expired rows and evicts the matching
// index entries, catching rows the read-time lazy filter never saw.
func (l *Ledger) SweepExpired(ctx context.Context) (int, error) {
	expired, err := l.store.DeleteExpiredDelegations(ctx, l.now().UTC())
	if err != nil {
		return 0, err
	}

	for _, d := range expired {
		spaceDID, cid := d.SpaceDID, d.CID
		l.index.Update(d.UserDID, func(list []*store.Delegation) []*store.Delegation {
			out := make([]*store.Delegation, 0, len(list))
			for _, cached := range list {
				if cached.SpaceDID == spaceDID && cached.CID == cid {
					continue
				}
				out = append(out, cached)
			}
			return out
		})
	}

	if len(expired) > 0 {
		l.logger.Info("swept expired delegations", "count", len(expired))
	}
	return len(expired), nil
}

// splitActive filters a newest-first list down to active entries, reporting
// whether anything was dropped.
func splitActive(list []*store.Delegation, now time.Time) ([]*store.Delegation, bool) {
	active := make([]*store.Delegation, 0, len(list))
	for _, d := range list {
		if d.Active(now) {
			active = append(active, d)
		}
	}
	return active, len(active) != len(list)
}
