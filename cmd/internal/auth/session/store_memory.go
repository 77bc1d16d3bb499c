package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// MemoryStore is an in-memory Store used when no database is configured
// (dev mode) and by tests. A single mutex stands in for the transactional
// guarantees the Postgres store gets from row locking: every mutation of a
// user's sessions is atomic with respect to concurrent calls.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*Session // id -> session
	byHash   map[string]string   // refresh hash -> id
}

// NewMemoryStore constructs an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*Session),
		byHash:   make(map[string]string),
	}
}

// Create inserts a new session.
func (s *MemoryStore) Create(ctx context.Context, now time.Time, userID string, remember bool, meta Meta, refreshHash string, expiresAt time.Time) (Session, error) {
	if err := ctx.Err(); err != nil {
		return Session{}, err
	}
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(refreshHash) == "" {
		return Session{}, ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.createLocked(now, userID, remember, meta, refreshHash, expiresAt), nil
}

func (s *MemoryStore) createLocked(now time.Time, userID string, remember bool, meta Meta, refreshHash string, expiresAt time.Time) Session {
	created := now
	sess := &Session{
		ID:               ulid.Make().String(),
		UserID:           userID,
		RefreshTokenHash: refreshHash,
		Remember:         remember,
		CreatedAt:        created,
		LastUsedAt:       &created,
		ExpiresAt:        expiresAt,
		IP:               meta.IP,
	}
	if meta.UserAgent != "" {
		ua := meta.UserAgent
		sess.UserAgent = &ua
	}

	s.sessions[sess.ID] = sess
	s.byHash[refreshHash] = sess.ID
	return *sess
}

// GetActiveByRefreshHash resolves a refresh hash to an active session.
func (s *MemoryStore) GetActiveByRefreshHash(ctx context.Context, refreshHash string, now time.Time) (Session, error) {
	if err := ctx.Err(); err != nil {
		return Session{}, err
	}
	if strings.TrimSpace(refreshHash) == "" {
		return Session{}, ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.lookupByHashLocked(refreshHash)
	if !ok || !sess.Active(now) {
		return Session{}, ErrNotFound
	}
	return *sess, nil
}

// Rotate revokes the old session and creates its replacement atomically.
func (s *MemoryStore) Rotate(ctx context.Context, in RotateInput) (Session, error) {
	if err := ctx.Err(); err != nil {
		return Session{}, err
	}
	if strings.TrimSpace(in.OldRefreshHash) == "" || strings.TrimSpace(in.NewRefreshHash) == "" {
		return Session{}, ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.lookupByHashLocked(in.OldRefreshHash)
	if !ok || !old.Active(in.Now) {
		return Session{}, ErrNotFound
	}

	newExpiry := in.Now.Add(rotateTTL(old.Remember, in))
	replacement := s.createLocked(in.Now, old.UserID, old.Remember, in.Meta, in.NewRefreshHash, newExpiry)

	t := in.Now
	reason := ReasonRotation
	replacedBy := replacement.ID
	old.RevokedAt = &t
	old.LastUsedAt = &t
	old.RevocationReason = &reason
	old.ReplacedBySessionID = &replacedBy

	return replacement, nil
}

// Revoke revokes a single session (idempotent; unknown ids are a no-op).
func (s *MemoryStore) Revoke(ctx context.Context, now time.Time, sessionID, reason string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(sessionID) == "" {
		return ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok || sess.RevokedAt != nil {
		return nil
	}
	t := now
	r := reason
	sess.RevokedAt = &t
	sess.RevocationReason = &r
	return nil
}

// RevokeAllForUser revokes every session for a user (idempotent).
func (s *MemoryStore) RevokeAllForUser(ctx context.Context, now time.Time, userID, reason string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(userID) == "" {
		return ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sess := range s.sessions {
		if sess.UserID != userID || sess.RevokedAt != nil {
			continue
		}
		t := now
		r := reason
		sess.RevokedAt = &t
		sess.RevocationReason = &r
	}
	return nil
}

// PurgeExpired removes expired sessions and returns the count.
func (s *MemoryStore) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, sess := range s.sessions {
		if sess.ExpiresAt.After(now) {
			continue
		}
		delete(s.sessions, id)
		delete(s.byHash, sess.RefreshTokenHash)
		n++
	}
	return n, nil
}

func (s *MemoryStore) lookupByHashLocked(refreshHash string) (*Session, bool) {
	id, ok := s.byHash[refreshHash]
	if !ok {
		return nil, false
	}
	sess, ok := s.sessions[id]
	return sess, ok
}
