// Package auth implements authd's orchestration core.
//
// The Engine composes the credential store, password hasher, token codec,
// and session store into the account and session lifecycle: registration,
// login, refresh rotation, logout (single/all), password change, and
// account deletion. It is the only component with cross-cutting invariants;
// per-session state moves ACTIVE -> REVOKED (terminal) or ACTIVE -> EXPIRED
// (time-driven predicate), never back.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"authd/cmd/identity"
	"authd/cmd/internal/auth/session"
	"authd/cmd/security/password"
	"authd/cmd/security/token"
)

// TokenType is the bearer scheme reported alongside issued token pairs.
const TokenType = "bearer"

// Config defines session-issuance policy.
type Config struct {
	// RefreshTTLDefault is the session lifetime without "remember me".
	RefreshTTLDefault time.Duration

	// RefreshTTLRemember is the long-lived session lifetime.
	RefreshTTLRemember time.Duration

	// RefreshTokenBytes is the entropy of opaque refresh secrets.
	RefreshTokenBytes int
}

// DefaultConfig returns the issuance defaults: 7-day sessions, 30 days with
// remember-me, 32 bytes of refresh entropy.
func DefaultConfig() Config {
	return Config{
		RefreshTTLDefault:  7 * 24 * time.Hour,
		RefreshTTLRemember: 30 * 24 * time.Hour,
		RefreshTokenBytes:  32,
	}
}

// TokenPair is returned from login and refresh.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresIn    int64 // access-token lifetime in seconds
	SessionID    string
}

// RegisterInput describes a registration request. Field-shape validation
// (email format, length bounds) belongs to the API layer; the engine only
// rejects structurally empty input.
type RegisterInput struct {
	Email    string
	Username string
	Password string
}

// LoginInput describes an authentication attempt.
type LoginInput struct {
	// Identifier is a username or email; matching is case-normalized.
	Identifier string
	Password   string
	RememberMe bool
	Meta       session.Meta
}

// Engine orchestrates the token lifecycle over its collaborator services.
type Engine struct {
	cfg Config
	log *slog.Logger

	users    identity.Store
	sessions session.Store
	hasher   *password.Hasher
	codec    *token.Codec
	refresh  token.RefreshHasher

	// dummyHash keeps the unknown-user and wrong-password paths
	// computationally identical (timing resistance).
	dummyHash string

	now func() time.Time
}

// New constructs an Engine. All collaborators are required.
func New(cfg Config, log *slog.Logger, users identity.Store, sessions session.Store, hasher *password.Hasher, codec *token.Codec, refresh token.RefreshHasher) (*Engine, error) {
	if users == nil || sessions == nil || hasher == nil || codec == nil {
		return nil, fmt.Errorf("auth: nil collaborator")
	}
	if log == nil {
		log = slog.Default()
	}
	if cfg.RefreshTTLDefault <= 0 || cfg.RefreshTTLRemember < cfg.RefreshTTLDefault {
		return nil, fmt.Errorf("auth: invalid refresh TTLs")
	}
	if cfg.RefreshTokenBytes <= 0 {
		cfg.RefreshTokenBytes = 32
	}

	e := &Engine{
		cfg:      cfg,
		log:      log,
		users:    users,
		sessions: sessions,
		hasher:   hasher,
		codec:    codec,
		refresh:  refresh,
		now:      func() time.Time { return time.Now().UTC() },
	}

	if h, err := hasher.Hash("dummy-password-for-timing-only"); err == nil {
		e.dummyHash = h
	}

	return e, nil
}

// Register creates a new account. It does NOT log the user in.
func (e *Engine) Register(ctx context.Context, in RegisterInput) (identity.User, error) {
	if strings.TrimSpace(in.Email) == "" || strings.TrimSpace(in.Username) == "" || in.Password == "" {
		return identity.User{}, ErrInvalidInput
	}

	hash, err := e.hasher.Hash(in.Password)
	if err != nil {
		return identity.User{}, e.internal("auth.register.hash", err)
	}

	u, err := e.users.CreateUser(ctx, identity.CreateUserInput{
		Email:        in.Email,
		Username:     in.Username,
		PasswordHash: hash,
		Now:          e.now(),
	})
	if err != nil {
		if identity.IsConflict(err) {
			return identity.User{}, DuplicateCredentialError{Field: identity.ConflictField(err)}
		}
		if identity.IsInvalidInput(err) {
			return identity.User{}, ErrInvalidInput
		}
		return identity.User{}, e.internal("auth.register.create", err)
	}

	return u, nil
}

// Login authenticates by username or email and mints a token pair.
//
// Unknown identifier and wrong password return the identical
// ErrInvalidCredentials; the dummy verification keeps both paths doing the
// same amount of hashing work.
func (e *Engine) Login(ctx context.Context, in LoginInput) (TokenPair, error) {
	if strings.TrimSpace(in.Identifier) == "" || in.Password == "" {
		return TokenPair{}, ErrInvalidInput
	}

	now := e.now()

	u, err := e.users.FindByIdentifier(ctx, in.Identifier)
	if err != nil {
		if identity.IsNotFound(err) || identity.IsInvalidInput(err) {
			if e.dummyHash != "" {
				_, _ = e.hasher.Verify(in.Password, e.dummyHash)
			}
			return TokenPair{}, ErrInvalidCredentials
		}
		return TokenPair{}, e.internal("auth.login.lookup", err)
	}

	ok, err := e.hasher.Verify(in.Password, u.PasswordHash)
	if err != nil {
		// Corrupt stored hash: fail closed as a mismatch, log server-side.
		e.log.Error("auth.login.corrupt_hash", "user_id", u.ID, "err", err)
		return TokenPair{}, ErrInvalidCredentials
	}
	if !ok {
		return TokenPair{}, ErrInvalidCredentials
	}
	if !u.IsActive {
		return TokenPair{}, ErrInactiveAccount
	}

	return e.issuePair(ctx, now, u, in.RememberMe, in.Meta)
}

// Refresh rotates a refresh token and mints a new token pair.
//
// Rotation is mandatory: the presented token's session is revoked and
// replaced in one atomic step, so a leaked refresh token is good for at
// most one use. Unknown, expired, revoked, and rotated tokens all collapse
// to ErrInvalidRefreshToken.
func (e *Engine) Refresh(ctx context.Context, refreshToken string, meta session.Meta) (TokenPair, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	// Sanity bounds to avoid hashing pathological inputs.
	if refreshToken == "" || len(refreshToken) > 4096 {
		return TokenPair{}, ErrInvalidRefreshToken
	}

	now := e.now()

	newPlain, err := token.NewRefreshToken(e.cfg.RefreshTokenBytes)
	if err != nil {
		return TokenPair{}, e.internal("auth.refresh.entropy", err)
	}

	rotated, err := e.sessions.Rotate(ctx, session.RotateInput{
		Now:            now,
		OldRefreshHash: e.refresh.Hash(refreshToken),
		NewRefreshHash: e.refresh.Hash(newPlain),
		TTLDefault:     e.cfg.RefreshTTLDefault,
		TTLRemember:    e.cfg.RefreshTTLRemember,
		Meta:           meta,
	})
	if err != nil {
		if errors.Is(err, session.ErrNotFound) || errors.Is(err, session.ErrInvalidInput) {
			return TokenPair{}, ErrInvalidRefreshToken
		}
		return TokenPair{}, e.internal("auth.refresh.rotate", err)
	}

	u, err := e.users.GetByID(ctx, rotated.UserID)
	if err != nil {
		if identity.IsNotFound(err) {
			// Owner vanished between issuance and refresh; the rotated
			// session is orphaned, revoke it and reject.
			_ = e.sessions.Revoke(ctx, now, rotated.ID, session.ReasonAccountDeleted)
			return TokenPair{}, ErrInvalidRefreshToken
		}
		return TokenPair{}, e.internal("auth.refresh.lookup", err)
	}
	if !u.IsActive {
		return TokenPair{}, ErrInactiveAccount
	}

	access, _, err := e.codec.IssueAccess(u.ID, u.Role, now)
	if err != nil {
		return TokenPair{}, e.internal("auth.refresh.issue", err)
	}

	return TokenPair{
		AccessToken:  access,
		RefreshToken: newPlain,
		TokenType:    TokenType,
		ExpiresIn:    int64(e.codec.AccessTTL().Seconds()),
		SessionID:    rotated.ID,
	}, nil
}

// Logout revokes the session behind a refresh token. It is idempotent:
// a token that no longer resolves still reports success. Only structurally
// invalid input is an error.
func (e *Engine) Logout(ctx context.Context, refreshToken string) error {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" || len(refreshToken) > 4096 {
		return ErrInvalidInput
	}

	now := e.now()

	sess, err := e.sessions.GetActiveByRefreshHash(ctx, e.refresh.Hash(refreshToken), now)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil
		}
		return e.internal("auth.logout.lookup", err)
	}

	if err := e.sessions.Revoke(ctx, now, sess.ID, session.ReasonLogout); err != nil {
		return e.internal("auth.logout.revoke", err)
	}
	return nil
}

// LogoutAll revokes every session for a user (logout everywhere).
func (e *Engine) LogoutAll(ctx context.Context, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return ErrInvalidInput
	}

	if err := e.sessions.RevokeAllForUser(ctx, e.now(), userID, session.ReasonLogout); err != nil {
		return e.internal("auth.logout_all.revoke", err)
	}
	return nil
}

// ChangePassword verifies the old password, stores the new hash, and
// revokes every session: a password change forces re-authentication on all
// devices. Outstanding access tokens die with their short TTL.
func (e *Engine) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	if strings.TrimSpace(userID) == "" || oldPassword == "" || newPassword == "" {
		return ErrInvalidInput
	}

	now := e.now()

	u, err := e.users.GetByID(ctx, userID)
	if err != nil {
		if identity.IsNotFound(err) {
			return ErrUserNotFound
		}
		return e.internal("auth.change_password.lookup", err)
	}

	ok, err := e.hasher.Verify(oldPassword, u.PasswordHash)
	if err != nil {
		e.log.Error("auth.change_password.corrupt_hash", "user_id", u.ID, "err", err)
		return ErrInvalidCredentials
	}
	if !ok {
		return ErrInvalidCredentials
	}

	newHash, err := e.hasher.Hash(newPassword)
	if err != nil {
		return e.internal("auth.change_password.hash", err)
	}
	if err := e.users.UpdatePasswordHash(ctx, u.ID, newHash, now); err != nil {
		return e.internal("auth.change_password.update", err)
	}

	if err := e.sessions.RevokeAllForUser(ctx, now, u.ID, session.ReasonPasswordChange); err != nil {
		return e.internal("auth.change_password.revoke_all", err)
	}
	return nil
}

// DeleteAccount verifies the password, revokes all sessions, and deletes
// the user row. Deletion is terminal; outstanding access tokens remain
// formally valid until their TTL elapses but resolve to ErrUserNotFound.
func (e *Engine) DeleteAccount(ctx context.Context, userID, passwd string) error {
	if strings.TrimSpace(userID) == "" || passwd == "" {
		return ErrInvalidInput
	}

	now := e.now()

	u, err := e.users.GetByID(ctx, userID)
	if err != nil {
		if identity.IsNotFound(err) {
			return ErrUserNotFound
		}
		return e.internal("auth.delete_account.lookup", err)
	}

	ok, err := e.hasher.Verify(passwd, u.PasswordHash)
	if err != nil {
		e.log.Error("auth.delete_account.corrupt_hash", "user_id", u.ID, "err", err)
		return ErrInvalidCredentials
	}
	if !ok {
		return ErrInvalidCredentials
	}

	if err := e.sessions.RevokeAllForUser(ctx, now, u.ID, session.ReasonAccountDeleted); err != nil {
		return e.internal("auth.delete_account.revoke_all", err)
	}
	if err := e.users.DeleteUser(ctx, u.ID); err != nil && !identity.IsNotFound(err) {
		return e.internal("auth.delete_account.delete", err)
	}
	return nil
}

// CurrentUser resolves a bearer access token to its user.
//
// Validity is proven solely by signature and expiry; sessions are not
// consulted, so a deleted user's token keeps verifying until its short TTL
// elapses and then fails here with ErrUserNotFound. That bounded window is
// an explicit design limitation, not a bug.
func (e *Engine) CurrentUser(ctx context.Context, accessToken string) (identity.User, error) {
	if strings.TrimSpace(accessToken) == "" {
		return identity.User{}, ErrInvalidToken
	}

	claims, err := e.codec.VerifyAccess(accessToken, e.now())
	if err != nil {
		return identity.User{}, ErrInvalidToken
	}

	u, err := e.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if identity.IsNotFound(err) {
			return identity.User{}, ErrUserNotFound
		}
		return identity.User{}, e.internal("auth.current_user.lookup", err)
	}
	if !u.IsActive {
		return identity.User{}, ErrInactiveAccount
	}

	return u, nil
}

// PurgeExpiredSessions lazily removes expired session rows.
func (e *Engine) PurgeExpiredSessions(ctx context.Context) (int64, error) {
	return e.sessions.PurgeExpired(ctx, e.now())
}

func (e *Engine) issuePair(ctx context.Context, now time.Time, u identity.User, remember bool, meta session.Meta) (TokenPair, error) {
	plain, err := token.NewRefreshToken(e.cfg.RefreshTokenBytes)
	if err != nil {
		return TokenPair{}, e.internal("auth.issue.entropy", err)
	}

	ttl := e.cfg.RefreshTTLDefault
	if remember {
		ttl = e.cfg.RefreshTTLRemember
	}

	sess, err := e.sessions.Create(ctx, now, u.ID, remember, meta, e.refresh.Hash(plain), now.Add(ttl))
	if err != nil {
		return TokenPair{}, e.internal("auth.issue.session", err)
	}

	access, _, err := e.codec.IssueAccess(u.ID, u.Role, now)
	if err != nil {
		return TokenPair{}, e.internal("auth.issue.access", err)
	}

	return TokenPair{
		AccessToken:  access,
		RefreshToken: plain,
		TokenType:    TokenType,
		ExpiresIn:    int64(e.codec.AccessTTL().Seconds()),
		SessionID:    sess.ID,
	}, nil
}

// internal logs the underlying failure and returns an opaque error so
// storage detail never reaches callers.
func (e *Engine) internal(event string, err error) error {
	e.log.Error(event, "err", err)
	return fmt.Errorf("%s: internal error", event)
}
