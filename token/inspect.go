// Package token reads the parts of an access token the client cares about.
package token

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

// Claims is the subset of access token claims the client reads.
type Claims struct {
	Subject   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Inspect decodes a JWT access token without verifying its signature. The
// values only drive proactive refresh and display; the server stays the
// authority on validity. Opaque tokens report ok=false.
func Inspect(raw string) (Claims, bool) {
	if strings.Count(raw, ".") != 2 {
		return Claims{}, false
	}

	unverifiedToken, _, err := jwt.NewParser().ParseUnverified(raw, jwt.MapClaims{})
	if err != nil {
		return Claims{}, false
	}
	claims, ok := unverifiedToken.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, false
	}

	var out Claims
	out.Subject, _ = claims.GetSubject()
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAt = exp.Time
	}
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		out.IssuedAt = iat.Time
	}
	return out, true
}

// New builds an oauth2.Token for an access/refresh pair. Expiry is filled from
// the access token's exp claim when it has one and left zero otherwise, which
// oauth2 treats as never expiring.
func New(access, refresh string) *oauth2.Token {
	t := &oauth2.Token{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
	}
	if claims, ok := Inspect(access); ok {
		t.Expiry = claims.ExpiresAt
	}
	return t
}

// ExpiresWithin reports whether t is known to expire within leeway of now.
func ExpiresWithin(t *oauth2.Token, leeway time.Duration, now time.Time) bool {
	if t == nil || t.Expiry.IsZero() {
		return false
	}
	return !now.Add(leeway).Before(t.Expiry)
}
