package token

import "errors"

// Public, stable errors for callers.
var (
	// ErrConfig is returned for invalid codec configuration.
	ErrConfig = errors.New("invalid token config")

	// ErrBadSignature is returned when a token's signature does not verify.
	ErrBadSignature = errors.New("bad token signature")

	// ErrExpired is returned when a token's expiry is in the past.
	ErrExpired = errors.New("token expired")

	// ErrWrongTokenType is returned when a structurally valid token carries
	// the wrong type discriminator (e.g. a refresh token presented as access).
	ErrWrongTokenType = errors.New("wrong token type")

	// ErrMalformed is returned for tokens that cannot be parsed at all or
	// are missing required claims.
	ErrMalformed = errors.New("malformed token")
)
