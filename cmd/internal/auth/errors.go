package auth

import (
	"errors"
	"fmt"
)

// Sentinel error kinds (stable for errors.Is and for mapping to API status
// codes). The engine maps every internal failure onto one of these before
// returning; storage-layer detail never crosses this boundary.
var (
	// ErrInvalidInput reports structurally malformed input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidCredentials is returned for unknown identifiers AND wrong
	// passwords alike. The symmetry is a deliberate security property
	// (enumeration resistance), not an implementation shortcut.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrDuplicateCredential reports an email or username collision.
	ErrDuplicateCredential = errors.New("duplicate credential")

	// ErrInvalidRefreshToken is returned when a refresh token is unknown,
	// expired, revoked, or already rotated. The cases are indistinguishable.
	ErrInvalidRefreshToken = errors.New("invalid refresh token")

	// ErrInvalidToken is returned when an access token fails signature,
	// type, or expiry checks.
	ErrInvalidToken = errors.New("invalid token")

	// ErrUserNotFound is returned when a valid token references a user that
	// no longer exists (deleted after issuance).
	ErrUserNotFound = errors.New("user not found")

	// ErrInactiveAccount is returned for deactivated accounts.
	ErrInactiveAccount = errors.New("inactive account")
)

// DuplicateCredentialError carries which field collided when the store can
// distinguish them. Field is "email", "username", or "" when unknown.
type DuplicateCredentialError struct {
	Field string
}

func (e DuplicateCredentialError) Error() string {
	if e.Field == "" {
		return ErrDuplicateCredential.Error()
	}
	return fmt.Sprintf("%s: %s", ErrDuplicateCredential.Error(), e.Field)
}

func (e DuplicateCredentialError) Unwrap() error { return ErrDuplicateCredential }
