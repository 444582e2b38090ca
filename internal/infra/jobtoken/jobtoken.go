// Package jobtoken signs and verifies the short-lived HS256 tokens that
// guard the report job and scheduler endpoints.
package jobtoken

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Subject is the subject claim of tokens minted by the scheduler.
const Subject = "report-scheduler"

// DefaultTTL is the lifetime of a minted token.
const DefaultTTL = 5 * time.Minute

// Sign mints a token for subject valid for ttl.
func Sign(secret, subject string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("job token secret is empty")
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// Verify parses token and returns its subject. Only HMAC-signed tokens
// with a valid expiry are accepted.
func Verify(secret, token string) (string, error) {
	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return "", err
	}
	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || !parsed.Valid {
		return "", errors.New("invalid token")
	}
	return claims.Subject, nil
}
