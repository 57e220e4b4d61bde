package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	domainauth "github.com/target/sitegate/internal/domain/auth"
	"github.com/target/sitegate/internal/ports"
	"github.com/target/sitegate/internal/service"
)

// SessionService defines the auth operations the host UI API needs.
type SessionService interface {
	StatusReader
	Login(ctx context.Context, in ports.LoginInput) (*service.LoginResult, error)
	Logout(ctx context.Context)
	ResetPassword(ctx context.Context, email string) error
}

// SessionHandlers serves the host's session endpoints.
type SessionHandlers struct {
	Svc    SessionService
	Logger *slog.Logger
}

func (h *SessionHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

type userView struct {
	Email    string `json:"email,omitempty"`
	Username string `json:"username,omitempty"`
}

type loginResponse struct {
	Status     domainauth.AuthStatus `json:"status"`
	RedirectTo string                `json:"redirectTo"`
	User       userView              `json:"user"`
}

// Login exchanges credentials and commits the session.
// POST /session/login.
func (h *SessionHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var in ports.LoginInput
	if !DecodeJSON(w, r, &in) {
		return
	}
	res, err := h.Svc.Login(r.Context(), in)
	if err != nil {
		h.logger().InfoContext(r.Context(), "login failed", "kind", string(domainauth.KindOf(err)))
		WriteAuthError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, loginResponse{
		Status:     res.Status,
		RedirectTo: res.RedirectTo,
		User:       userView{Email: res.Session.Email, Username: res.Session.Username},
	})
}

// Logout always succeeds.
// POST /session/logout.
func (h *SessionHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	h.Svc.Logout(r.Context())
	WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type resetRequest struct {
	Email string `json:"email"`
}

// ResetPassword requests a reset email.
// POST /session/reset-password.
func (h *SessionHandlers) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var in resetRequest
	if !DecodeJSON(w, r, &in) {
		return
	}
	if err := h.Svc.ResetPassword(r.Context(), in.Email); err != nil {
		WriteAuthError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Status reports the current auth state; ?refresh=true re-resolves first.
// GET /session/status.
func (h *SessionHandlers) Status(w http.ResponseWriter, r *http.Request) {
	refresh, _ := strconv.ParseBool(r.URL.Query().Get("refresh"))
	WriteJSON(w, http.StatusOK, h.Svc.Status(r.Context(), refresh))
}

// Admin is the administrative landing endpoint, reachable only through RequireAdmin.
// GET /admin/.
func (h *SessionHandlers) Admin(w http.ResponseWriter, r *http.Request) {
	view, _ := StatusFromContext(r.Context())
	WriteJSON(w, http.StatusOK, map[string]any{"email": view.Email, "role": view.Role})
}
