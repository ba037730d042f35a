// internal/session/token.go

package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

var ErrNoSubject = errors.New("token has no subject")

// TokenInfo is the client-relevant part of the access token. The server is
// the only party that verifies signatures; the client just reads the claims
// it was handed.
type TokenInfo struct {
	Raw       string
	UserID    string
	ExpiresAt time.Time
}

// Expired reports whether the token is past its expiry. Tokens without an
// exp claim never expire client-side.
func (t TokenInfo) Expired() bool {
	return !t.ExpiresAt.IsZero() && time.Now().After(t.ExpiresAt)
}

// ParseToken reads the subject and expiry out of a JWT without verifying it.
func ParseToken(raw string) (TokenInfo, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return TokenInfo{}, fmt.Errorf("parse token: %w", err)
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return TokenInfo{}, ErrNoSubject
	}

	info := TokenInfo{Raw: raw, UserID: sub}
	switch exp := claims["exp"].(type) {
	case float64:
		info.ExpiresAt = time.Unix(int64(exp), 0)
	case json.Number:
		if v, err := exp.Int64(); err == nil {
			info.ExpiresAt = time.Unix(v, 0)
		}
	}
	return info, nil
}
