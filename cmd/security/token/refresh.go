package token

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
)

// NewRefreshToken returns a cryptographically random opaque token suitable
// for refresh secrets. It is URL-safe (base64url, no padding) and must be
// shown to the client exactly once; the server stores only a hash.
func NewRefreshToken(nBytes int) (string, error) {
	if nBytes <= 0 {
		nBytes = 32
	}

	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// HashSHA256Hex returns a SHA-256 hex digest of s.
func HashSHA256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// HashHMACSHA256Hex returns an HMAC-SHA256 hex digest of s using key.
func HashHMACSHA256Hex(s string, key []byte) string {
	m := hmac.New(sha256.New, key)
	_, _ = m.Write([]byte(s))
	return hex.EncodeToString(m.Sum(nil))
}

// RefreshHasher produces the server-stored digest for refresh tokens.
// Output is always a 64-char hex string.
type RefreshHasher struct {
	key []byte
}

// NewRefreshHasher constructs a RefreshHasher. With a non-empty key the
// digest is HMAC-SHA256(token, key); a stolen database snapshot then cannot
// be matched against captured tokens without the key. An empty key falls
// back to plain SHA-256 (dev mode).
func NewRefreshHasher(key []byte) RefreshHasher {
	return RefreshHasher{key: key}
}

// Hash returns the storage digest for a plain refresh token.
func (h RefreshHasher) Hash(plain string) string {
	if len(h.key) == 0 {
		return HashSHA256Hex(plain)
	}
	return HashHMACSHA256Hex(plain, h.key)
}
