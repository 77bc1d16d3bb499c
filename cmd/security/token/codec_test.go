package token

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		Secret:    []byte("0123456789abcdef0123456789abcdef"),
		Issuer:    "authd-test",
		AccessTTL: 30 * time.Minute,
		ClockSkew: 0,
	}
}

func TestCodec_RoundTrip(t *testing.T) {
	c, err := NewCodec(testConfig())
	require.NoError(t, err)

	now := time.Now().UTC().Truncate(time.Second)
	tok, exp, err := c.IssueAccess("01JF000000000000000000U1", "user", now)
	require.NoError(t, err)
	assert.Equal(t, now.Add(30*time.Minute), exp)

	claims, err := c.VerifyAccess(tok, now.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, "01JF000000000000000000U1", claims.UserID)
	assert.Equal(t, "user", claims.Role)
	assert.Equal(t, "authd-test", claims.Issuer)
	assert.NotEmpty(t, claims.TokenID)
	assert.Equal(t, exp.Unix(), claims.ExpiresAt.Unix())
}

func TestCodec_Expired(t *testing.T) {
	c, err := NewCodec(testConfig())
	require.NoError(t, err)

	now := time.Now().UTC()
	tok, _, err := c.IssueAccess("u1", "user", now)
	require.NoError(t, err)

	_, err = c.VerifyAccess(tok, now.Add(31*time.Minute))
	assert.ErrorIs(t, err, ErrExpired)
}

func TestCodec_BadSignature(t *testing.T) {
	c, err := NewCodec(testConfig())
	require.NoError(t, err)

	other := testConfig()
	other.Secret = []byte("ffffffffffffffffffffffffffffffff")
	c2, err := NewCodec(other)
	require.NoError(t, err)

	now := time.Now().UTC()
	tok, _, err := c2.IssueAccess("u1", "user", now)
	require.NoError(t, err)

	_, err = c.VerifyAccess(tok, now)
	assert.ErrorIs(t, err, ErrBadSignature)
}

func TestCodec_WrongTokenType(t *testing.T) {
	cfg := testConfig()
	c, err := NewCodec(cfg)
	require.NoError(t, err)

	now := time.Now().UTC()
	claims := accessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			Subject:   "u1",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
		Type: "refresh",
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(cfg.Secret)
	require.NoError(t, err)

	_, err = c.VerifyAccess(signed, now)
	assert.ErrorIs(t, err, ErrWrongTokenType)
}

func TestCodec_Malformed(t *testing.T) {
	c, err := NewCodec(testConfig())
	require.NoError(t, err)

	_, err = c.VerifyAccess("not.a.jwt", time.Now().UTC())
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestCodec_WrongIssuer(t *testing.T) {
	other := testConfig()
	other.Issuer = "someone-else"
	c2, err := NewCodec(other)
	require.NoError(t, err)

	c, err := NewCodec(testConfig())
	require.NoError(t, err)

	now := time.Now().UTC()
	tok, _, err := c2.IssueAccess("u1", "user", now)
	require.NoError(t, err)

	_, err = c.VerifyAccess(tok, now)
	assert.Error(t, err)
}

func TestNewCodec_RejectsShortSecret(t *testing.T) {
	cfg := testConfig()
	cfg.Secret = []byte("short")
	_, err := NewCodec(cfg)
	assert.ErrorIs(t, err, ErrConfig)
}

func TestNewRefreshToken(t *testing.T) {
	a, err := NewRefreshToken(32)
	require.NoError(t, err)
	b, err := NewRefreshToken(32)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.False(t, strings.ContainsAny(a, "+/="), "expected URL-safe encoding")
}

func TestRefreshHasher(t *testing.T) {
	plain := "some-refresh-secret"

	dev := NewRefreshHasher(nil)
	assert.Equal(t, HashSHA256Hex(plain), dev.Hash(plain))
	assert.Len(t, dev.Hash(plain), 64)

	keyed := NewRefreshHasher([]byte("0123456789abcdef0123456789abcdef"))
	assert.Len(t, keyed.Hash(plain), 64)
	assert.NotEqual(t, dev.Hash(plain), keyed.Hash(plain))
	assert.Equal(t, keyed.Hash(plain), keyed.Hash(plain))
}
