package service

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v4"
	authdomain "github.com/rraasi/coin-service/internal/auth/domain"
	"github.com/rraasi/coin-service/internal/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testIssuer   = "https://securetoken.google.com/rraasi-test"
	testAudience = "rraasi-test"
)

func newTestVerifier(t *testing.T, clk clock.Clock, admins ...string) (*OIDCVerifier, *rsa.PrivateKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	keySet := &oidc.StaticKeySet{PublicKeys: []crypto.PublicKey{key.Public()}}
	return NewOIDCVerifier(testIssuer, testAudience, keySet, admins, clk, zap.NewNop()), key
}

func sign(t *testing.T, key *rsa.PrivateKey, claims jwt.MapClaims) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	require.NoError(t, err)
	return raw
}

func baseClaims(now time.Time) jwt.MapClaims {
	return jwt.MapClaims{
		"iss":            testIssuer,
		"aud":            testAudience,
		"sub":            "uid_123",
		"iat":            now.Unix(),
		"exp":            now.Add(time.Hour).Unix(),
		"email":          "Seeker@Example.com",
		"email_verified": true,
	}
}

func TestVerifyValidToken(t *testing.T) {
	clk := clock.NewFakeClock(time.Now().UTC())
	v, key := newTestVerifier(t, clk)

	identity, err := v.Verify(context.Background(), sign(t, key, baseClaims(clk.Now())))
	require.NoError(t, err)
	assert.Equal(t, "uid_123", identity.UID)
	assert.Equal(t, "seeker@example.com", identity.Email)
	assert.True(t, identity.EmailVerified)
	assert.False(t, identity.Admin)
}

func TestVerifyAdmin(t *testing.T) {
	clk := clock.NewFakeClock(time.Now().UTC())
	v, key := newTestVerifier(t, clk, "uid_123")

	identity, err := v.Verify(context.Background(), sign(t, key, baseClaims(clk.Now())))
	require.NoError(t, err)
	assert.True(t, identity.Admin)

	other, otherKey := newTestVerifier(t, clk)
	claims := baseClaims(clk.Now())
	claims["admin"] = true
	identity, err = other.Verify(context.Background(), sign(t, otherKey, claims))
	require.NoError(t, err)
	assert.True(t, identity.Admin)
}

func TestVerifyRejects(t *testing.T) {
	clk := clock.NewFakeClock(time.Now().UTC())
	v, key := newTestVerifier(t, clk)
	ctx := context.Background()

	_, err := v.Verify(ctx, "")
	assert.ErrorIs(t, err, authdomain.ErrMissingToken)

	_, err = v.Verify(ctx, "not-a-jwt")
	assert.ErrorIs(t, err, authdomain.ErrInvalidToken)

	wrongAud := baseClaims(clk.Now())
	wrongAud["aud"] = "another-project"
	_, err = v.Verify(ctx, sign(t, key, wrongAud))
	assert.ErrorIs(t, err, authdomain.ErrInvalidToken)

	stranger, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	_, err = v.Verify(ctx, sign(t, stranger, baseClaims(clk.Now())))
	assert.ErrorIs(t, err, authdomain.ErrInvalidToken)

	token := sign(t, key, baseClaims(clk.Now()))
	clk.Advance(2 * time.Hour)
	_, err = v.Verify(ctx, token)
	assert.ErrorIs(t, err, authdomain.ErrTokenExpired)
}

func TestHeaderVerifier(t *testing.T) {
	v := NewHeaderVerifier([]string{"root"})

	identity, err := v.Verify(context.Background(), "root")
	require.NoError(t, err)
	assert.True(t, identity.Admin)

	_, err = v.Verify(context.Background(), " ")
	assert.ErrorIs(t, err, authdomain.ErrMissingToken)
}
