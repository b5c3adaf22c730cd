package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/stockpoint-app/backend/internal/errors"
)

// TokenExpiry extracts the expiry claim from a bearer token without
// verifying the signature. Verification is the server's job; the client
// only needs to know whether a stored token is worth presenting at all.
func TokenExpiry(token string) (time.Time, error) {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return time.Time{}, apperrors.Wrap(apperrors.ErrAuthFailed, "malformed token", err)
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, apperrors.New(apperrors.ErrAuthFailed, "token has no expiry claim")
	}
	return exp.Time, nil
}

// TokenUsable reports whether the token exists and has not expired at now.
func TokenUsable(token string, now time.Time) bool {
	if token == "" {
		return false
	}
	exp, err := TokenExpiry(token)
	if err != nil {
		return false
	}
	return now.Before(exp)
}
