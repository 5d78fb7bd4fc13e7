// Package token inspects the self-contained claims of an access token
// without a network round trip and without verifying its signature; the
// backend is the only party that verifies tokens. A structurally invalid
// token is reported as absent, never as an error.
package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the subset of access-token claims the console cares about.
type Claims struct {
	Subject     string
	Username    string
	Roles       []string
	Permissions []string
	IssuedAt    time.Time
	ExpiresAt   time.Time
}

type wireClaims struct {
	Username    string   `json:"username,omitempty"`
	Roles       []string `json:"roles,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
	jwt.RegisteredClaims
}

// Decode parses the three-part token payload. The boolean is false for
// anything that is not a well-formed token.
func Decode(tok string) (*Claims, bool) {
	if tok == "" {
		return nil, false
	}
	var wc wireClaims
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(tok, &wc); err != nil {
		return nil, false
	}

	out := &Claims{
		Subject:     wc.Subject,
		Username:    wc.Username,
		Roles:       wc.Roles,
		Permissions: wc.Permissions,
	}
	if wc.IssuedAt != nil {
		out.IssuedAt = wc.IssuedAt.Time
	}
	if wc.ExpiresAt != nil {
		out.ExpiresAt = wc.ExpiresAt.Time
	}
	return out, true
}

// IsExpired reports whether the token's exp claim has passed. An undecodable
// token counts as expired; a token without an exp claim never expires.
func IsExpired(tok string) bool {
	claims, ok := Decode(tok)
	if !ok {
		return true
	}
	if claims.ExpiresAt.IsZero() {
		return false
	}
	return !time.Now().Before(claims.ExpiresAt)
}

// ExpiresWithin reports whether the token expires within buffer from now.
// Undecodable tokens are treated as already expired.
func ExpiresWithin(tok string, buffer time.Duration) bool {
	claims, ok := Decode(tok)
	if !ok {
		return true
	}
	if claims.ExpiresAt.IsZero() {
		return false
	}
	return !time.Now().Add(buffer).Before(claims.ExpiresAt)
}

// ExpiryDate returns the token's expiry instant. The boolean is false when
// the token cannot be decoded or carries no exp claim.
func ExpiryDate(tok string) (time.Time, bool) {
	claims, ok := Decode(tok)
	if !ok || claims.ExpiresAt.IsZero() {
		return time.Time{}, false
	}
	return claims.ExpiresAt, true
}
