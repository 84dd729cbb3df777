// ABOUTME: did:key codec for the Ed25519 variant
// ABOUTME: Decodes identifiers to raw 32-byte public keys and wraps them for verification

package didkey

import (
	"crypto/ed25519"
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
)

// ErrInvalidDID is returned for any identifier that is not a well-formed
// Ed25519 did:key. Unsupported DID methods fail with this error too; the
// codec deliberately does not distinguish why.
var ErrInvalidDID = errors.New("invalid DID")

// Prefix is the did:key method prefix including the base58btc multibase
// marker. Everything after it is a base58btc-encoded multicodec key.
const Prefix = "did:key:z"

// ed25519Multicodec is the two-byte multicodec varint for an Ed25519 public
// key, preceding the raw key bytes inside the multibase payload.
var ed25519Multicodec = []byte{0xED, 0x01}

// spkiHeader is the fixed DER prefix for an Ed25519 SubjectPublicKeyInfo.
// Appending the raw 32-byte key yields a complete SPKI encoding, which is
// what most platform crypto APIs expect instead of raw keys.
var spkiHeader = []byte{0x30, 0x2A, 0x30, 0x05, 0x06, 0x03, 0x2B, 0x65, 0x70, 0x03, 0x21, 0x00}

// Decode extracts the raw 32-byte Ed25519 public key from a did:key string.
func Decode(did string) (ed25519.PublicKey, error) {
	if len(did) <= len(Prefix) || did[:len(Prefix)] != Prefix {
		return nil, fmt.Errorf("%w: missing %q prefix", ErrInvalidDID, Prefix)
	}

	decoded, err := base58.Decode(did[len(Prefix):])
	if err != nil {
		return nil, fmt.Errorf("%w: bad base58 payload", ErrInvalidDID)
	}

	if len(decoded) != len(ed25519Multicodec)+ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: wrong key length", ErrInvalidDID)
	}
	if decoded[0] != ed25519Multicodec[0] || decoded[1] != ed25519Multicodec[1] {
		return nil, fmt.Errorf("%w: wrong multicodec prefix", ErrInvalidDID)
	}

	return ed25519.PublicKey(decoded[len(ed25519Multicodec):]), nil
}

// Encode builds the did:key string for an Ed25519 public key.
func Encode(pub ed25519.PublicKey) (string, error) {
	if len(pub) != ed25519.PublicKeySize {
		return "", fmt.Errorf("%w: expected %d-byte public key, got %d",
			ErrInvalidDID, ed25519.PublicKeySize, len(pub))
	}

	payload := make([]byte, 0, len(ed25519Multicodec)+ed25519.PublicKeySize)
	payload = append(payload, ed25519Multicodec...)
	payload = append(payload, pub...)

	return Prefix + base58.Encode(payload), nil
}

// MarshalSPKI wraps a raw Ed25519 public key in a SubjectPublicKeyInfo DER
// encoding for consumers that cannot take raw key bytes.
func MarshalSPKI(pub ed25519.PublicKey) ([]byte, error) {
	if len(pub) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: expected %d-byte public key, got %d",
			ErrInvalidDID, ed25519.PublicKeySize, len(pub))
	}

	out := make([]byte, 0, len(spkiHeader)+ed25519.PublicKeySize)
	out = append(out, spkiHeader...)
	out = append(out, pub...)
	return out, nil
}

// Verify checks an Ed25519 signature over message against the key encoded
// in the DID. Any decode failure is reported as a verification failure.
func Verify(did string, message, signature []byte) bool {
	pub, err := Decode(did)
	if err != nil {
		return false
	}
	if len(signature) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(pub, message, signature)
}
