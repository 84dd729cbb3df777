// ABOUTME: Signed session tokens for fully verified sessions
// ABOUTME: Uses HS256 signing with a configurable secret

package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/spacegate/spacegate/internal/store"
)

// Token errors
var (
	ErrInvalidToken       = errors.New("invalid token")
	ErrExpiredToken       = errors.New("token expired")
	ErrMissingClaim       = errors.New("missing required claim")
	ErrSessionNotVerified = errors.New("session not fully verified")
)

// TokenIssuer mints and verifies HS256 session tokens. Tokens are only
// issued for sessions that are active and have passed both verification
// flows; the HTTP layer hands them to clients as bearer credentials.
type TokenIssuer struct {
	secret []byte
}

// NewTokenIssuer creates a token issuer with the given secret.
func NewTokenIssuer(secret []byte) *TokenIssuer {
	return &TokenIssuer{secret: secret}
}

// Issue creates a token for a fully verified session. The token expires
// with the session.
func (t *TokenIssuer) Issue(sess *store.Session) (string, error) {
	if !sess.Verified() {
		return "", ErrSessionNotVerified
	}
	if !sess.Usable(time.Now()) {
		return "", ErrSessionNotVerified
	}

	claims := jwt.MapClaims{
		"sub":   sess.ID,
		"email": sess.Email,
		"did":   sess.DID,
		"iat":   time.Now().Unix(),
		"exp":   sess.ExpiresAt.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// Verify validates a token and extracts the session id from the "sub"
// claim. The caller still needs to load the session; a valid token for a
// deactivated session must not authenticate.
func (t *TokenIssuer) Verify(tokenString string) (sessionID string, err error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return t.secret, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrExpiredToken
		}
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if !token.Valid {
		return "", ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalidToken
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", fmt.Errorf("%w: sub", ErrMissingClaim)
	}

	return sub, nil
}
