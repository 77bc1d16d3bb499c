package session

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
)

// PostgresStore implements Store using PostgreSQL (sessions table).
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a Postgres-backed session store. The pool is
// owned by the caller.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("session: nil pool")
	}
	return &PostgresStore{pool: pool}, nil
}

const sessionColumns = `id, user_id, refresh_token_hash, remember,
	created_at, last_used_at, expires_at, revoked_at, revocation_reason,
	replaced_by_session_id, user_agent, ip::text`

// Create inserts a new session row.
func (s *PostgresStore) Create(ctx context.Context, now time.Time, userID string, remember bool, meta Meta, refreshHash string, expiresAt time.Time) (Session, error) {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(refreshHash) == "" {
		return Session{}, ErrInvalidInput
	}

	id := ulid.Make().String()

	_, err := s.pool.Exec(ctx, `
		INSERT INTO sessions (
			id, user_id, refresh_token_hash, remember,
			created_at, last_used_at, expires_at,
			user_agent, ip
		) VALUES ($1, $2, $3, $4, $5, $5, $6, $7, $8)
	`, id, userID, refreshHash, remember, now, expiresAt, nullIfEmpty(meta.UserAgent), meta.IP)
	if err != nil {
		return Session{}, err
	}

	created := now
	return Session{
		ID:               id,
		UserID:           userID,
		RefreshTokenHash: refreshHash,
		Remember:         remember,
		CreatedAt:        created,
		LastUsedAt:       &created,
		ExpiresAt:        expiresAt,
		IP:               meta.IP,
	}, nil
}

// GetActiveByRefreshHash resolves a refresh hash to an active session.
func (s *PostgresStore) GetActiveByRefreshHash(ctx context.Context, refreshHash string, now time.Time) (Session, error) {
	if strings.TrimSpace(refreshHash) == "" {
		return Session{}, ErrInvalidInput
	}

	row, err := scanSession(s.pool.QueryRow(ctx, `
		SELECT `+sessionColumns+`
		FROM sessions
		WHERE refresh_token_hash = $1
	`, refreshHash))
	if err != nil {
		return Session{}, err
	}
	if !row.Active(now) {
		return Session{}, ErrNotFound
	}
	return row, nil
}

// Rotate performs chain-based rotation inside a single transaction.
//
// The old row is locked with SELECT ... FOR UPDATE so a concurrent refresh
// or logout on the same session resolves deterministically: whichever
// mutation commits first wins, and the loser observes a non-active row.
func (s *PostgresStore) Rotate(ctx context.Context, in RotateInput) (Session, error) {
	if strings.TrimSpace(in.OldRefreshHash) == "" || strings.TrimSpace(in.NewRefreshHash) == "" {
		return Session{}, ErrInvalidInput
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Session{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	old, err := scanSession(tx.QueryRow(ctx, `
		SELECT `+sessionColumns+`
		FROM sessions
		WHERE refresh_token_hash = $1
		FOR UPDATE
	`, in.OldRefreshHash))
	if err != nil {
		return Session{}, err
	}
	if !old.Active(in.Now) {
		return Session{}, ErrNotFound
	}

	newID := ulid.Make().String()
	newExpiry := in.Now.Add(rotateTTL(old.Remember, in))

	_, err = tx.Exec(ctx, `
		INSERT INTO sessions (
			id, user_id, refresh_token_hash, remember,
			created_at, last_used_at, expires_at,
			user_agent, ip
		) VALUES ($1, $2, $3, $4, $5, $5, $6, $7, $8)
	`, newID, old.UserID, in.NewRefreshHash, old.Remember, in.Now, newExpiry,
		nullIfEmpty(in.Meta.UserAgent), in.Meta.IP)
	if err != nil {
		return Session{}, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE sessions
		SET last_used_at = $2,
		    revoked_at = $2,
		    revocation_reason = $3,
		    replaced_by_session_id = $4
		WHERE id = $1
	`, old.ID, in.Now, ReasonRotation, newID)
	if err != nil {
		return Session{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Session{}, err
	}

	created := in.Now
	return Session{
		ID:               newID,
		UserID:           old.UserID,
		RefreshTokenHash: in.NewRefreshHash,
		Remember:         old.Remember,
		CreatedAt:        created,
		LastUsedAt:       &created,
		ExpiresAt:        newExpiry,
		IP:               in.Meta.IP,
	}, nil
}

// Revoke revokes a single session (idempotent).
func (s *PostgresStore) Revoke(ctx context.Context, now time.Time, sessionID, reason string) error {
	if strings.TrimSpace(sessionID) == "" {
		return ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, `
		UPDATE sessions
		SET revoked_at = COALESCE(revoked_at, $2),
		    revocation_reason = COALESCE(revocation_reason, $3)
		WHERE id = $1
	`, sessionID, now, reason)
	return err
}

// RevokeAllForUser revokes all sessions for a user (idempotent).
func (s *PostgresStore) RevokeAllForUser(ctx context.Context, now time.Time, userID, reason string) error {
	if strings.TrimSpace(userID) == "" {
		return ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, `
		UPDATE sessions
		SET revoked_at = COALESCE(revoked_at, $2),
		    revocation_reason = COALESCE(revocation_reason, $3)
		WHERE user_id = $1
	`, userID, now, reason)
	return err
}

// PurgeExpired deletes expired rows and returns the count.
func (s *PostgresStore) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	ct, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}

func scanSession(row pgx.Row) (Session, error) {
	var (
		out    Session
		ipText *string
	)

	err := row.Scan(
		&out.ID,
		&out.UserID,
		&out.RefreshTokenHash,
		&out.Remember,
		&out.CreatedAt,
		&out.LastUsedAt,
		&out.ExpiresAt,
		&out.RevokedAt,
		&out.RevocationReason,
		&out.ReplacedBySessionID,
		&out.UserAgent,
		&ipText,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, err
	}

	if ipText != nil && strings.TrimSpace(*ipText) != "" {
		out.IP = net.ParseIP(*ipText)
	}

	return out, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
