package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	domainauth "github.com/target/sitegate/internal/domain/auth"
	"github.com/target/sitegate/internal/observability/metrics"
	"github.com/target/sitegate/internal/observability/statsd"
	"github.com/target/sitegate/internal/ports"
)

const backendLogoutTimeout = 5 * time.Second

// Default post-login destinations.
const (
	DefaultAdminDestination   = "/admin"
	DefaultDefaultDestination = "/portal"
)

// AuthServiceConfig holds post-login routing.
type AuthServiceConfig struct {
	AdminDestination   string
	DefaultDestination string
}

// AuthServiceOptions groups dependencies for AuthService.
type AuthServiceOptions struct {
	Credentials ports.CredentialClient // Required
	Sessions    *SessionStore          // Required
	Resolver    *StatusResolver        // Required
	Config      AuthServiceConfig
	Logger      *slog.Logger
	Metrics     statsd.Sink
}

// AuthService orchestrates the UI-facing flows: exchange credentials, commit
// the session, and let the resolver decide the status.
type AuthService struct {
	credentials ports.CredentialClient
	sessions    *SessionStore
	resolver    *StatusResolver
	cfg         AuthServiceConfig
	logger      *slog.Logger
	metrics     statsd.Sink
}

// NewAuthService constructs a new AuthService.
func NewAuthService(opts AuthServiceOptions) *AuthService {
	if opts.Credentials == nil || opts.Sessions == nil || opts.Resolver == nil {
		panic("AuthService requires Credentials, Sessions and Resolver")
	}
	cfg := opts.Config
	if cfg.AdminDestination == "" {
		cfg.AdminDestination = DefaultAdminDestination
	}
	if cfg.DefaultDestination == "" {
		cfg.DefaultDestination = DefaultDefaultDestination
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		credentials: opts.Credentials,
		sessions:    opts.Sessions,
		resolver:    opts.Resolver,
		cfg:         cfg,
		logger:      logger.With("component", "auth_service"),
		metrics:     opts.Metrics,
	}
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	Session    domainauth.Session
	Status     domainauth.AuthStatus
	RedirectTo string
}

// Login exchanges credentials, persists the session, and resolves the status.
// Credential-class errors are returned as *domainauth.Error for display.
func (s *AuthService) Login(ctx context.Context, in ports.LoginInput) (*LoginResult, error) {
	sess, err := s.credentials.Login(ctx, in)
	metrics.EmitResult(s.metrics, metrics.LoginAttempt, err, nil)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	if err := s.sessions.Set(ctx, sess); err != nil {
		return nil, fmt.Errorf("persist session: %w", err)
	}

	status := s.resolver.Resolve(ctx)
	dest := s.cfg.DefaultDestination
	if status == domainauth.StatusAuthenticatedAdmin {
		dest = s.cfg.AdminDestination
	}
	s.logger.InfoContext(ctx, "login succeeded", "status", status.String())
	return &LoginResult{Session: sess, Status: status, RedirectTo: dest}, nil
}

// Logout latches the resolver, notifies the backend best-effort, and clears
// the store. It cannot fail; calling it again on a cleared store is harmless.
func (s *AuthService) Logout(ctx context.Context) {
	s.resolver.ForceLoggedOut(ctx, "user_logout")

	sess, err := s.sessions.Get(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "read session during logout failed", "error", err)
	}
	if sess != nil {
		bctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), backendLogoutTimeout)
		s.credentials.Logout(bctx, sess.Token)
		cancel()
	}
	if err := s.sessions.Clear(ctx); err != nil {
		s.logger.ErrorContext(ctx, "clear session during logout failed", "error", err)
	}
}

// ResetPassword requests a password reset email.
func (s *AuthService) ResetPassword(ctx context.Context, email string) error {
	if err := s.credentials.ResetPassword(ctx, email); err != nil {
		return fmt.Errorf("reset password: %w", err)
	}
	return nil
}

// ValidateCurrent reports whether the stored token is still accepted by the backend.
func (s *AuthService) ValidateCurrent(ctx context.Context) bool {
	sess, err := s.sessions.Get(ctx)
	if err != nil || sess == nil {
		return false
	}
	return s.credentials.ValidateToken(ctx, sess.Token)
}

// StatusView is the UI projection of the current auth state.
type StatusView struct {
	Status     domainauth.AuthStatus `json:"status"`
	LoginState domainauth.LoginState `json:"loginState"`
	Email      string                `json:"email,omitempty"`
	Username   string                `json:"username,omitempty"`
	Role       domainauth.Role       `json:"role,omitempty"`
	IsAdmin    bool                  `json:"isAdmin"`
}

// Status returns the current view. When refresh is set the status is re-resolved first.
func (s *AuthService) Status(ctx context.Context, refresh bool) StatusView {
	status := s.resolver.Status()
	if refresh || status == domainauth.StatusUnknown {
		status = s.resolver.Resolve(ctx)
	}
	view := StatusView{Status: status, LoginState: domainauth.LoginStateLoggedOut}
	if state, err := s.sessions.LoginState(ctx); err == nil {
		view.LoginState = state
	}
	if status.IsAuthenticated() {
		if sess, err := s.sessions.Get(ctx); err == nil && sess != nil {
			view.Email = sess.Email
			view.Username = sess.Username
		}
	}
	if p := s.resolver.Principal(); p != nil && status == domainauth.StatusAuthenticatedAdmin {
		view.Role = p.Role
		view.IsAdmin = true
	}
	return view
}

// Start runs the startup probe.
func (s *AuthService) Start(ctx context.Context) domainauth.AuthStatus {
	status := s.resolver.Resolve(ctx)
	s.logger.InfoContext(ctx, "startup auth status resolved", "status", status.String())
	return status
}
