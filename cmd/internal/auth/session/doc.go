// Package session persists authd's refresh-token sessions.
//
// Each row represents one logged-in device/client. Refresh tokens are opaque
// random strings and are stored hashed; the plain secret never reaches this
// package. A session that is expired, revoked, or replaced is never usable
// to mint a new access token.
//
// Rotation is chain-based: a successful refresh creates a replacement row,
// revokes the old one, and links old -> new via replaced_by_session_id. The
// Postgres implementation serializes rotation with SELECT ... FOR UPDATE so
// concurrent refresh/logout races resolve to exactly one winner.
package session
