package testhelpers

import (
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/poofware/backoffice-service/internal/middleware"
)

// NewSigningKey returns a throwaway RSA key for minting test tokens.
func NewSigningKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

// SignToken mints an RS256 access token for sub that expires after ttl.
// Extra claims override the defaults.
func SignToken(t *testing.T, key *rsa.PrivateKey, sub string, ttl time.Duration, extra ...jwt.MapClaims) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub": sub,
		"iss": middleware.TokenIssuer,
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(ttl).Unix(),
	}
	for _, e := range extra {
		for k, v := range e {
			claims[k] = v
		}
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	require.NoError(t, err)
	return signed
}
