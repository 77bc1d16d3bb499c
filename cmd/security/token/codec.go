package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const typeAccess = "access"

// Config defines the codec's signing and validation parameters.
//
// This struct is injected at construction; there is no process-wide
// mutable state in this package.
type Config struct {
	// Secret is the shared HMAC signing key. Minimum 32 bytes.
	Secret []byte

	// Issuer is the value set in the "iss" claim of access tokens.
	Issuer string

	// AccessTTL defines the lifetime of access tokens.
	AccessTTL time.Duration

	// ClockSkew is the allowed time skew during validation.
	ClockSkew time.Duration
}

// AccessClaims is the identity envelope carried by a verified access token.
type AccessClaims struct {
	UserID    string
	Role      string
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Issuer    string
}

type accessClaims struct {
	jwt.RegisteredClaims
	Role string `json:"role,omitempty"`
	Type string `json:"type"`
}

// Codec signs and verifies access tokens with a symmetric key (HS256).
type Codec struct {
	cfg Config
}

// NewCodec validates cfg and constructs a Codec.
func NewCodec(cfg Config) (*Codec, error) {
	if len(cfg.Secret) < 32 {
		return nil, ErrConfig
	}
	if cfg.Issuer == "" || cfg.AccessTTL <= 0 {
		return nil, ErrConfig
	}
	if cfg.ClockSkew < 0 {
		return nil, ErrConfig
	}
	return &Codec{cfg: cfg}, nil
}

// AccessTTL reports the configured access-token lifetime.
func (c *Codec) AccessTTL() time.Duration { return c.cfg.AccessTTL }

// IssueAccess signs a short-lived access token for userID.
func (c *Codec) IssueAccess(userID, role string, now time.Time) (string, time.Time, error) {
	if userID == "" {
		return "", time.Time{}, ErrMalformed
	}
	exp := now.Add(c.cfg.AccessTTL)

	claims := accessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.cfg.Issuer,
			Subject:   userID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Role: role,
		Type: typeAccess,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.cfg.Secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// VerifyAccess parses and validates an access token at the given instant.
//
// Error conditions are distinct: ErrBadSignature for tampered tokens,
// ErrExpired for elapsed TTLs, ErrWrongTokenType for non-access tokens,
// and ErrMalformed for anything unparseable.
func (c *Codec) VerifyAccess(tokenString string, now time.Time) (AccessClaims, error) {
	claims := &accessClaims{}

	parsed, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (any, error) { return c.cfg.Secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.cfg.Issuer),
		jwt.WithLeeway(c.cfg.ClockSkew),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return AccessClaims{}, ErrExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrSignatureInvalid):
			return AccessClaims{}, ErrBadSignature
		default:
			return AccessClaims{}, ErrMalformed
		}
	}
	if !parsed.Valid {
		return AccessClaims{}, ErrBadSignature
	}

	if claims.Type != typeAccess {
		return AccessClaims{}, ErrWrongTokenType
	}
	if claims.Subject == "" || claims.ExpiresAt == nil || claims.IssuedAt == nil {
		return AccessClaims{}, ErrMalformed
	}

	return AccessClaims{
		UserID:    claims.Subject,
		Role:      claims.Role,
		TokenID:   claims.ID,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
		Issuer:    claims.Issuer,
	}, nil
}
