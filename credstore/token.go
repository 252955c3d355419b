package credstore

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Expiry peeks at the exp claim of a JWT-shaped token without verifying
// the signature. The second return is false if the token is not a JWT
// or carries no expiry; such tokens are treated as opaque and
// non-expiring by callers.
//
// This is a hint only; the origin remains the authority on token
// validity. It lets the store skip a context fetch that is certain to
// come back 401.
func Expiry(token string) (time.Time, bool) {
	if token == "" {
		return time.Time{}, false
	}

	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// Expired reports whether the token is a JWT whose expiry has passed.
// Opaque tokens are never considered expired locally.
func Expired(token string, now time.Time) bool {
	exp, ok := Expiry(token)
	return ok && now.After(exp)
}
