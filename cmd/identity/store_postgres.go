package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
)

// PostgresStore implements Store over PostgreSQL.
//
// The pgx pool is owned by the caller; this store must not close it.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore constructs a Postgres-backed credential store.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("identity: nil pool")
	}
	return &PostgresStore{pool: pool}, nil
}

const userColumns = `id, email, email_norm, username, username_norm,
	password_hash, is_active, is_verified, role, created_at, updated_at`

// CreateUser persists a new user row.
func (s *PostgresStore) CreateUser(ctx context.Context, in CreateUserInput) (User, error) {
	const op = "identity.CreateUser"

	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	email := strings.TrimSpace(in.Email)
	username := strings.TrimSpace(in.Username)
	if email == "" || username == "" {
		return User{}, invalid(op, "email and username are required")
	}
	if strings.TrimSpace(in.PasswordHash) == "" {
		return User{}, invalid(op, "password hash is required")
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	role := in.Role
	if role == "" {
		role = RoleUser
	}

	u := User{
		ID:           ulid.Make().String(),
		Email:        email,
		EmailNorm:    NormalizeEmail(email),
		Username:     username,
		UsernameNorm: NormalizeUsername(username),
		PasswordHash: in.PasswordHash,
		IsActive:     true,
		Role:         role,
		CreatedAt:    now,
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (
			id, email, email_norm, username, username_norm,
			password_hash, is_active, is_verified, role, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, TRUE, FALSE, $7, $8)
	`, u.ID, u.Email, u.EmailNorm, u.Username, u.UsernameNorm, u.PasswordHash, u.Role, now)
	if err != nil {
		if field, ok := classifyUniqueViolation(err); ok {
			return User{}, ConflictError{Op: op, Field: field}
		}
		return User{}, err
	}

	return u, nil
}

// GetByID loads a user by id.
func (s *PostgresStore) GetByID(ctx context.Context, userID string) (User, error) {
	if strings.TrimSpace(userID) == "" {
		return User{}, invalid("identity.GetByID", "missing user_id")
	}

	return s.scanOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID)
}

// FindByIdentifier looks a user up by normalized username or email.
func (s *PostgresStore) FindByIdentifier(ctx context.Context, identifier string) (User, error) {
	norm := NormalizeUsername(identifier)
	if norm == "" {
		return User{}, invalid("identity.FindByIdentifier", "missing identifier")
	}

	return s.scanOne(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE username_norm = $1 OR email_norm = $1
	`, norm)
}

// UpdatePasswordHash replaces the stored hash for userID.
func (s *PostgresStore) UpdatePasswordHash(ctx context.Context, userID, newHash string, now time.Time) error {
	const op = "identity.UpdatePasswordHash"

	if strings.TrimSpace(userID) == "" {
		return invalid(op, "missing user_id")
	}
	if strings.TrimSpace(newHash) == "" {
		return invalid(op, "missing password hash")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	ct, err := s.pool.Exec(ctx, `
		UPDATE users
		SET password_hash = $2, updated_at = $3
		WHERE id = $1
	`, userID, newHash, now)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteUser removes the user row; session rows cascade via FK.
func (s *PostgresStore) DeleteUser(ctx context.Context, userID string) error {
	const op = "identity.DeleteUser"

	if strings.TrimSpace(userID) == "" {
		return invalid(op, "missing user_id")
	}

	ct, err := s.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, userID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) scanOne(ctx context.Context, query string, args ...any) (User, error) {
	var u User
	err := s.pool.QueryRow(ctx, query, args...).Scan(
		&u.ID,
		&u.Email,
		&u.EmailNorm,
		&u.Username,
		&u.UsernameNorm,
		&u.PasswordHash,
		&u.IsActive,
		&u.IsVerified,
		&u.Role,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, err
	}
	return u, nil
}

func classifyUniqueViolation(err error) (field string, ok bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return "", false
	}
	if pgErr.Code != "23505" { // unique_violation
		return "", false
	}

	// Prefer stable schema constraint names; fall back to substring matching.
	c := strings.ToLower(strings.TrimSpace(pgErr.ConstraintName))
	switch c {
	case "uq_users_username_norm":
		return "username", true
	case "uq_users_email_norm":
		return "email", true
	default:
		switch {
		case strings.Contains(c, "username"):
			return "username", true
		case strings.Contains(c, "email"):
			return "email", true
		}
		return "", true
	}
}
