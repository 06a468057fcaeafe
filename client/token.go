package client

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// accessExpiry reads the exp claim without verifying the signature; the backend
// verifies tokens, the client only needs to know when to renew.
func accessExpiry(token string) (int64, error) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return 0, fmt.Errorf("decode access token: %w", err)
	}
	if claims.ExpiresAt == nil {
		return 0, ErrMissingExpiry
	}
	return claims.ExpiresAt.Unix(), nil
}
