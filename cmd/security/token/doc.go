// Package token implements authd's token primitives.
//
// Access tokens are HS256-signed JWTs carrying a type discriminator, so a
// refresh secret can never be replayed as an access token. Verification
// distinguishes bad signatures, wrong token types, and expiry as separate
// error conditions.
//
// Refresh tokens are opaque random strings. The server never stores the
// plain secret: only an HMAC-SHA256 digest (hex) is persisted, falling back
// to plain SHA-256 when no HMAC key is configured (dev mode).
//
// This package performs no network or storage I/O.
package token
