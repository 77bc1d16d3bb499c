// Package password implements one-way password hashing for authd.
//
// Hashes use Argon2id with a self-describing encoding
// ($argon2id$v=19$m=...,t=...,p=...$salt$hash), so cost parameters can be
// tuned without invalidating previously stored credentials.
//
// Verification is constant-time and fails closed: a malformed or
// out-of-bounds stored hash is reported as ErrInvalidHash, never as a match.
package password
