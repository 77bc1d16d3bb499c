package session

import (
	"context"
	"net"
	"time"
)

// Revocation reasons recorded on session rows.
const (
	ReasonLogout         = "logout"
	ReasonRotation       = "rotation"
	ReasonPasswordChange = "password_change"
	ReasonAccountDeleted = "account_deleted"
	ReasonReuse          = "reuse_detected"
)

// Meta describes the client device that owns a session.
type Meta struct {
	UserAgent string
	IP        net.IP
}

// Session mirrors one refresh-token session row.
type Session struct {
	ID               string
	UserID           string
	RefreshTokenHash string
	Remember         bool

	CreatedAt  time.Time
	LastUsedAt *time.Time
	ExpiresAt  time.Time

	RevokedAt        *time.Time
	RevocationReason *string

	// Rotation chain: when a refresh token is rotated, the old session is
	// revoked and points at its replacement.
	ReplacedBySessionID *string

	UserAgent *string
	IP        net.IP
}

// Active reports whether the session can still mint access tokens at now.
func (s Session) Active(now time.Time) bool {
	if s.RevokedAt != nil || s.ReplacedBySessionID != nil {
		return false
	}
	return s.ExpiresAt.After(now)
}

// RotateInput carries everything a store needs to rotate atomically.
// The new expiry is computed from the old row's Remember flag so the
// remember-me policy follows the session across rotations.
type RotateInput struct {
	Now            time.Time
	OldRefreshHash string
	NewRefreshHash string
	TTLDefault     time.Duration
	TTLRemember    time.Duration
	Meta           Meta
}

// Store abstracts persistence for session state.
//
// Revoke operations are idempotent: revoking an already-revoked session is a
// no-op success. Implementations must make Rotate atomic — there is no window
// in which both the old and the new refresh token are valid.
type Store interface {
	// Create inserts a new session row and returns it.
	Create(ctx context.Context, now time.Time, userID string, remember bool, meta Meta, refreshHash string, expiresAt time.Time) (Session, error)

	// GetActiveByRefreshHash resolves a refresh hash to an ACTIVE session.
	// Expired, revoked, and replaced sessions all return ErrNotFound.
	GetActiveByRefreshHash(ctx context.Context, refreshHash string, now time.Time) (Session, error)

	// Rotate revokes the session matching in.OldRefreshHash and creates its
	// replacement in one atomic step, returning the new session. Returns
	// ErrNotFound if the old session is not active.
	Rotate(ctx context.Context, in RotateInput) (Session, error)

	// Revoke revokes a single session by id (idempotent).
	Revoke(ctx context.Context, now time.Time, sessionID, reason string) error

	// RevokeAllForUser revokes every session owned by userID (idempotent).
	RevokeAllForUser(ctx context.Context, now time.Time, userID, reason string) error

	// PurgeExpired deletes rows whose expiry has passed and returns the
	// number removed. Maintenance only; correctness never depends on it.
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

func rotateTTL(remember bool, in RotateInput) time.Duration {
	if remember {
		return in.TTLRemember
	}
	return in.TTLDefault
}
