// Package authapi exposes the account and session lifecycle over HTTP.
//
// The handler owns request decoding, field-shape validation, and the
// engine-error to status-code mapping; all authentication decisions live
// in the auth engine.
package authapi

import (
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/mail"
	"strings"
	"unicode/utf8"

	"authd/cmd/identity"
	"authd/cmd/internal/auth"
	"authd/cmd/internal/auth/session"
)

// Handler wires HTTP auth endpoints to the auth engine.
type Handler struct {
	log    *slog.Logger
	cfg    Config
	engine *auth.Engine
}

// NewHandler constructs an auth Handler.
func NewHandler(log *slog.Logger, engine *auth.Engine, cfg Config) (*Handler, error) {
	if engine == nil {
		return nil, errors.New("authapi: nil engine")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Handler{log: log, cfg: cfg.normalized(), engine: engine}, nil
}

// Register wires auth routes onto the provided mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("/auth/register", h.handleRegister)
	mux.HandleFunc("/auth/login", h.handleLoginForm)
	mux.HandleFunc("/auth/login/json", h.handleLoginJSON)
	mux.HandleFunc("/auth/refresh", h.handleRefresh)
	mux.HandleFunc("/auth/logout", h.handleLogout)
	mux.HandleFunc("/auth/logout-all", h.handleLogoutAll)
	mux.HandleFunc("/auth/change-password", h.handleChangePassword)
	mux.HandleFunc("/auth/delete-account", h.handleDeleteAccount)
	mux.HandleFunc("/auth/me", h.handleMe)
}

// ---- handlers ----

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req registerRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	if msg, ok := h.validateRegister(req); !ok {
		writeError(w, http.StatusBadRequest, "invalid_request", msg)
		return
	}

	u, err := h.engine.Register(r.Context(), auth.RegisterInput{
		Email:    req.Email,
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		var dup auth.DuplicateCredentialError
		if errors.As(err, &dup) {
			msg := "email or username already registered"
			if dup.Field != "" {
				msg = dup.Field + " already registered"
			}
			writeError(w, http.StatusConflict, "conflict", msg)
			return
		}
		h.writeEngineError(w, "auth.register.fail", err)
		return
	}

	writeJSON(w, http.StatusCreated, toUserResponse(u))
}

// handleLoginForm accepts the form-encoded grant shape: username + password
// fields, where username carries a username or an email.
func (h *Handler) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxBodyBytes)
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid form body")
		return
	}

	in := auth.LoginInput{
		Identifier: r.PostFormValue("username"),
		Password:   r.PostFormValue("password"),
		RememberMe: parseBoolField(r.PostFormValue("remember_me")),
		Meta:       requestMeta(r, h.cfg.TrustProxy),
	}
	h.login(w, r, in)
}

func (h *Handler) handleLoginJSON(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req loginJSONRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	in := auth.LoginInput{
		Identifier: req.Username,
		Password:   req.Password,
		RememberMe: req.RememberMe,
		Meta:       requestMeta(r, h.cfg.TrustProxy),
	}
	h.login(w, r, in)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request, in auth.LoginInput) {
	if strings.TrimSpace(in.Identifier) == "" || in.Password == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "username and password are required")
		return
	}

	pair, err := h.engine.Login(r.Context(), in)
	if err != nil {
		h.writeEngineError(w, "auth.login.fail", err)
		return
	}

	writeJSON(w, http.StatusOK, toTokenResponse(pair))
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req refreshRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	if strings.TrimSpace(req.RefreshToken) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "refresh_token is required")
		return
	}

	pair, err := h.engine.Refresh(r.Context(), req.RefreshToken, requestMeta(r, h.cfg.TrustProxy))
	if err != nil {
		h.writeEngineError(w, "auth.refresh.fail", err)
		return
	}

	writeJSON(w, http.StatusOK, toTokenResponse(pair))
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req logoutRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	if strings.TrimSpace(req.RefreshToken) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "refresh_token is required")
		return
	}

	if err := h.engine.Logout(r.Context(), req.RefreshToken); err != nil {
		h.writeEngineError(w, "auth.logout.fail", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleLogoutAll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	u, ok := h.requireAuth(w, r)
	if !ok {
		return
	}

	if err := h.engine.LogoutAll(r.Context(), u.ID); err != nil {
		h.writeEngineError(w, "auth.logout_all.fail", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	u, ok := h.requireAuth(w, r)
	if !ok {
		return
	}

	var req changePasswordRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	if req.OldPassword == "" || req.NewPassword == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "old_password and new_password are required")
		return
	}
	if !h.validPasswordLen(req.NewPassword) {
		writeError(w, http.StatusBadRequest, "invalid_request", "new password length is out of bounds")
		return
	}

	if err := h.engine.ChangePassword(r.Context(), u.ID, req.OldPassword, req.NewPassword); err != nil {
		h.writeEngineError(w, "auth.change_password.fail", err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "password changed"})
}

func (h *Handler) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	u, ok := h.requireAuth(w, r)
	if !ok {
		return
	}

	var req deleteAccountRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	if req.Password == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "password is required")
		return
	}

	if err := h.engine.DeleteAccount(r.Context(), u.ID, req.Password); err != nil {
		h.writeEngineError(w, "auth.delete_account.fail", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	u, ok := h.requireAuth(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, meResponse{User: toUserResponse(u)})
}

// ---- helpers ----

func (h *Handler) requireAuth(w http.ResponseWriter, r *http.Request) (identity.User, bool) {
	token := bearerToken(r)
	if token == "" {
		writeUnauthorized(w, "unauthorized", "missing bearer token")
		return identity.User{}, false
	}

	u, err := h.engine.CurrentUser(r.Context(), token)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInactiveAccount):
			writeError(w, http.StatusForbidden, "inactive_account", "account is inactive")
		case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrUserNotFound):
			writeUnauthorized(w, "unauthorized", "invalid token")
		default:
			h.log.Error("auth.require_auth.fail", "err", err)
			writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		}
		return identity.User{}, false
	}
	return u, true
}

// writeEngineError maps the engine's error taxonomy onto HTTP statuses.
// Credential, token, and lookup failures collapse into a uniform 401 so
// the response shape leaks nothing about which check failed.
func (h *Handler) writeEngineError(w http.ResponseWriter, event string, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid input")
	case errors.Is(err, auth.ErrDuplicateCredential):
		writeError(w, http.StatusConflict, "conflict", "credential already registered")
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeUnauthorized(w, "invalid_credentials", "invalid credentials")
	case errors.Is(err, auth.ErrInvalidRefreshToken):
		writeUnauthorized(w, "invalid_refresh_token", "invalid or expired refresh token")
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrUserNotFound):
		writeUnauthorized(w, "unauthorized", "invalid token")
	case errors.Is(err, auth.ErrInactiveAccount):
		writeError(w, http.StatusForbidden, "inactive_account", "account is inactive")
	default:
		h.log.Error(event, "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
	}
}

func (h *Handler) validateRegister(req registerRequest) (string, bool) {
	email := strings.TrimSpace(req.Email)
	username := strings.TrimSpace(req.Username)

	if email == "" || username == "" || req.Password == "" {
		return "email, username, and password are required", false
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return "email is not a valid address", false
	}
	if n := utf8.RuneCountInString(username); n < h.cfg.UsernameMinLen || n > h.cfg.UsernameMaxLen {
		return "username length is out of bounds", false
	}
	if !h.validPasswordLen(req.Password) {
		return "password length is out of bounds", false
	}
	return "", true
}

func (h *Handler) validPasswordLen(pw string) bool {
	n := utf8.RuneCountInString(pw)
	return n >= h.cfg.PasswordMinLen && n <= h.cfg.PasswordMaxLen
}

func bearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if raw == "" {
		return ""
	}
	parts := strings.SplitN(raw, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func parseBoolField(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func requestMeta(r *http.Request, trustProxy bool) session.Meta {
	return session.Meta{
		UserAgent: strings.TrimSpace(r.UserAgent()),
		IP:        clientIP(r, trustProxy),
	}
}

func clientIP(r *http.Request, trustProxy bool) net.IP {
	if trustProxy {
		if ip := parseForwardedIP(r.Header.Get("X-Forwarded-For")); ip != nil {
			return ip
		}
		if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil {
		if ip := net.ParseIP(host); ip != nil {
			return ip
		}
	}
	return nil
}

func parseForwardedIP(raw string) net.IP {
	if raw == "" {
		return nil
	}
	for _, p := range strings.Split(raw, ",") {
		if ip := net.ParseIP(strings.TrimSpace(p)); ip != nil {
			return ip
		}
	}
	return nil
}
