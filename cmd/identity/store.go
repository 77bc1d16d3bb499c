package identity

import (
	"context"
	"time"
)

// Roles assignable to users. New users default to RoleUser.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is authd's canonical security principal.
type User struct {
	ID string

	Email        string
	EmailNorm    string
	Username     string
	UsernameNorm string

	// PasswordHash is the encoded Argon2id hash. Never the plaintext.
	PasswordHash string

	IsActive   bool
	IsVerified bool
	Role       string

	CreatedAt time.Time
	UpdatedAt *time.Time
}

// CreateUserInput describes a registration request as seen by the store.
// The caller (auth engine) has already hashed the password.
type CreateUserInput struct {
	Email        string
	Username     string
	PasswordHash string
	Role         string
	Now          time.Time
}

// Store is the credential persistence boundary.
//
// Uniqueness of email and username (case-normalized) is enforced here;
// implementations report collisions as ConflictError with the field name.
type Store interface {
	// CreateUser persists a new user. Returns ConflictError on a
	// uniqueness violation.
	CreateUser(ctx context.Context, in CreateUserInput) (User, error)

	// GetByID loads a user by id. Returns ErrNotFound if missing.
	GetByID(ctx context.Context, userID string) (User, error)

	// FindByIdentifier looks a user up by normalized username OR email.
	// Returns ErrNotFound if no user matches.
	FindByIdentifier(ctx context.Context, identifier string) (User, error)

	// UpdatePasswordHash replaces the stored hash for userID.
	UpdatePasswordHash(ctx context.Context, userID, newHash string, now time.Time) error

	// DeleteUser removes the user row. Session rows cascade at the
	// storage layer. Returns ErrNotFound if missing.
	DeleteUser(ctx context.Context, userID string) error
}
