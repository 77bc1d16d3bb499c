package identity

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// MemoryStore is an in-memory Store used when no database is configured
// (dev mode) and by tests. All operations are serialized by a single mutex,
// which matches the atomicity the Postgres store gets from transactions.
type MemoryStore struct {
	mu    sync.Mutex
	users map[string]User // id -> user
}

// NewMemoryStore constructs an empty in-memory credential store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[string]User)}
}

// CreateUser persists a new user, enforcing normalized uniqueness.
func (s *MemoryStore) CreateUser(ctx context.Context, in CreateUserInput) (User, error) {
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

	emailNorm := NormalizeEmail(email)
	usernameNorm := NormalizeUsername(username)

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.EmailNorm == emailNorm {
			return User{}, ConflictError{Op: op, Field: "email"}
		}
		if u.UsernameNorm == usernameNorm {
			return User{}, ConflictError{Op: op, Field: "username"}
		}
	}

	u := User{
		ID:           ulid.Make().String(),
		Email:        email,
		EmailNorm:    emailNorm,
		Username:     username,
		UsernameNorm: usernameNorm,
		PasswordHash: in.PasswordHash,
		IsActive:     true,
		Role:         role,
		CreatedAt:    now,
	}
	s.users[u.ID] = u

	return u, nil
}

// GetByID loads a user by id.
func (s *MemoryStore) GetByID(ctx context.Context, userID string) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

// FindByIdentifier looks a user up by normalized username or email.
func (s *MemoryStore) FindByIdentifier(ctx context.Context, identifier string) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	norm := NormalizeUsername(identifier)
	if norm == "" {
		return User{}, invalid("identity.FindByIdentifier", "missing identifier")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.UsernameNorm == norm || u.EmailNorm == norm {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

// UpdatePasswordHash replaces the stored hash for userID.
func (s *MemoryStore) UpdatePasswordHash(ctx context.Context, userID, newHash string, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(newHash) == "" {
		return invalid("identity.UpdatePasswordHash", "missing password hash")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.PasswordHash = newHash
	t := now
	u.UpdatedAt = &t
	s.users[userID] = u
	return nil
}

// DeleteUser removes the user.
func (s *MemoryStore) DeleteUser(ctx context.Context, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[userID]; !ok {
		return ErrNotFound
	}
	delete(s.users, userID)
	return nil
}
