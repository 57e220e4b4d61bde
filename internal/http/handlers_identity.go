package httpx

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/target/sitegate/internal/adapters/devidentity"
)

// IdentityBackend is the dev identity backend served in idp mode.
type IdentityBackend interface {
	Login(ctx context.Context, identifier, password string) (devidentity.LoginResult, error)
	Logout(ctx context.Context, token string)
	ResetPassword(ctx context.Context, email string) error
	Session(ctx context.Context, token string) (devidentity.SessionInfo, error)
	Validate(ctx context.Context, token string) (devidentity.User, bool)
}

// IdentityHandlers serves the identity backend contract.
type IdentityHandlers struct {
	Backend IdentityBackend
}

type idpLoginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
	RememberMe bool   `json:"rememberMe"`
}

type idpLoginResponse struct {
	Success   bool              `json:"success"`
	Token     string            `json:"token,omitempty"`
	User      *devidentity.User `json:"user,omitempty"`
	ExpiresAt *time.Time        `json:"expiresAt,omitempty"`
	Message   string            `json:"message,omitempty"`
	Code      string            `json:"code,omitempty"`
}

func idpFailure(w http.ResponseWriter, status int, code string, err error) {
	WriteJSON(w, status, idpLoginResponse{Message: err.Error(), Code: code})
}

// Login POST /auth/login.
func (h *IdentityHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var in idpLoginRequest
	if !DecodeJSON(w, r, &in) {
		return
	}
	res, err := h.Backend.Login(r.Context(), in.Identifier, in.Password)
	switch {
	case err == nil:
		WriteJSON(w, http.StatusOK, idpLoginResponse{
			Success:   true,
			Token:     res.Token,
			User:      &res.User,
			ExpiresAt: &res.ExpiresAt,
		})
	case errors.Is(err, devidentity.ErrInvalidInput):
		idpFailure(w, http.StatusBadRequest, "invalid_request", err)
	case errors.Is(err, devidentity.ErrInvalidCredentials):
		idpFailure(w, http.StatusUnauthorized, "invalid_credentials", err)
	case errors.Is(err, devidentity.ErrAccountDisabled):
		idpFailure(w, http.StatusForbidden, "account_disabled", err)
	case errors.Is(err, devidentity.ErrRateLimited):
		idpFailure(w, http.StatusTooManyRequests, "rate_limited", err)
	default:
		idpFailure(w, http.StatusServiceUnavailable, "unavailable", errors.New("identity backend unavailable"))
	}
}

// Logout POST /auth/logout. Always 200.
func (h *IdentityHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	h.Backend.Logout(r.Context(), bearerToken(r))
	WriteJSON(w, http.StatusOK, idpLoginResponse{Success: true})
}

// ResetPassword POST /auth/reset-password.
func (h *IdentityHandlers) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var in resetRequest
	if !DecodeJSON(w, r, &in) {
		return
	}
	if err := h.Backend.ResetPassword(r.Context(), in.Email); err != nil {
		idpFailure(w, http.StatusBadRequest, "unknown_account", err)
		return
	}
	WriteJSON(w, http.StatusOK, idpLoginResponse{Success: true})
}

// ValidateToken GET /auth/validate-token.
func (h *IdentityHandlers) ValidateToken(w http.ResponseWriter, r *http.Request) {
	user, ok := h.Backend.Validate(r.Context(), bearerToken(r))
	if !ok {
		WriteJSON(w, http.StatusUnauthorized, map[string]bool{"valid": false})
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"valid": true, "user": user})
}

// Session GET /auth/session. A missing token has no session; a dead one needs recovery.
func (h *IdentityHandlers) Session(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		WriteJSON(w, http.StatusOK, map[string]any{"session": nil})
		return
	}
	info, err := h.Backend.Session(r.Context(), token)
	if err != nil {
		WriteJSON(w, http.StatusUnauthorized, map[string]string{
			"code":    "refresh_token_not_found",
			"message": "Invalid Refresh Token: Refresh Token Not Found",
		})
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"session": info})
}

func bearerToken(r *http.Request) string {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(token)
}
