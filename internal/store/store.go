// ABOUTME: Store data types and sentinel errors for spacegate persistence
// ABOUTME: Defines Challenge, Session, Delegation, UserPrincipal, AdminSpace records

package store

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicateDelegation is returned when inserting a delegation that already
// exists for the same (user, space, cid) triple.
var ErrDuplicateDelegation = errors.New("delegation already exists")

// ErrPrincipalExists is returned when trying to create a principal for a DID
// that already has one. Stored principals are immutable.
var ErrPrincipalExists = errors.New("user principal already exists")

// Challenge is a one-time authentication challenge bound to a DID.
// A challenge is valid only while unused and before ExpiresAt.
type Challenge struct {
	ID        string
	DID       string
	Text      string
	CreatedAt time.Time
	ExpiresAt time.Time
	Used      bool
}

// Session is an authenticated account session. A session is usable for
// authenticated actions only while IsActive, and fully verified only when
// both EmailVerified and DIDVerified are set.
type Session struct {
	ID            string
	Email         string
	DID           string
	CreatedAt     time.Time
	LastActiveAt  time.Time
	ExpiresAt     time.Time
	UserAgent     string
	IPAddress     string
	IsActive      bool
	EmailVerified bool
	DIDVerified   bool
}

// Verified reports whether both verification flags are set.
func (s *Session) Verified() bool {
	return s.EmailVerified && s.DIDVerified
}

// Usable reports whether the session may back authenticated actions at the
// given instant.
func (s *Session) Usable(now time.Time) bool {
	return s.IsActive && now.Before(s.ExpiresAt)
}

// Delegation is a stored capability grant letting a user upload into a space.
// The payload is an opaque serialized delegation object produced by the
// delegation service; this store never inspects it.
type Delegation struct {
	UserDID   string
	SpaceDID  string
	CID       string
	Payload   []byte
	CreatedAt time.Time
	UpdatedAt time.Time
	ExpiresAt *time.Time // nil = never expires
	CreatedBy *string    // admin email, nil for system-issued grants
}

// Active reports whether the delegation is usable at the given instant.
func (d *Delegation) Active(now time.Time) bool {
	return d.ExpiresAt == nil || d.ExpiresAt.After(now)
}

// UserPrincipal is the persisted signing identity for a user DID.
// Exactly one principal exists per DID and it is never rotated in place.
type UserPrincipal struct {
	UserDID     string
	KeyMaterial string // versioned encoding, e.g. "v1:<base64 seed>"
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// AdminSpace associates an admin account with a storage space it owns.
// Maintained by space sync; consulted when authorizing delegation requests.
type AdminSpace struct {
	AdminEmail string
	SpaceDID   string
	SpaceName  string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
