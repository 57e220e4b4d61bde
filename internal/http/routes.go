package httpx

import (
	"log/slog"
	"net/http"
)

// HostServices holds everything the host router needs.
type HostServices struct {
	Auth    SessionService
	Bridge  MessageHandler
	Origins OriginChecker
	Checks  []Check
	Logger  *slog.Logger

	// MessageSecret, when set, is required to sign posted sync messages.
	MessageSecret []byte
}

// PortalServices holds everything the portal router needs.
type PortalServices struct {
	Monitor PortalMonitor
	// Upstream, when set, serves /portal/api/* through the instrumented transport.
	Upstream http.Handler
	Checks   []Check
	Logger   *slog.Logger
}

// IdentityServices holds everything the dev identity router needs.
type IdentityServices struct {
	Backend IdentityBackend
	Logger  *slog.Logger
}

// NewHostRouter serves the host UI API.
func NewHostRouter(s HostServices) http.Handler {
	mux := http.NewServeMux()
	sh := &SessionHandlers{Svc: s.Auth, Logger: s.Logger}
	sync := &SyncHandlers{Bridge: s.Bridge, Origins: s.Origins, Secret: s.MessageSecret}

	mux.HandleFunc("POST /session/login", sh.Login)
	mux.HandleFunc("POST /session/logout", sh.Logout)
	mux.HandleFunc("POST /session/reset-password", sh.ResetPassword)
	mux.HandleFunc("GET /session/status", sh.Status)
	mux.Handle("GET /admin/", RequireAdmin(s.Auth)(http.HandlerFunc(sh.Admin)))
	mux.HandleFunc("OPTIONS /sync/messages", sync.Preflight)
	mux.HandleFunc("POST /sync/messages", sync.Message)
	registerHealth(mux, s.Checks)

	return wrap(mux, s.Logger)
}

// NewPortalRouter serves the portal instrumentation API.
func NewPortalRouter(s PortalServices) http.Handler {
	mux := http.NewServeMux()
	ph := &PortalHandlers{Monitor: s.Monitor, Logger: s.Logger}

	mux.HandleFunc("POST /portal/events/click", ph.Click)
	mux.HandleFunc("POST /portal/events/navigation", ph.Navigation)
	mux.HandleFunc("POST /portal/events/login", ph.LoggedIn)
	mux.HandleFunc("GET /portal/state", ph.State)
	if s.Upstream != nil {
		mux.Handle("/portal/api/", s.Upstream)
	}
	registerHealth(mux, s.Checks)

	return wrap(mux, s.Logger)
}

// NewIdentityRouter serves the identity backend contract.
func NewIdentityRouter(s IdentityServices) http.Handler {
	mux := http.NewServeMux()
	ih := &IdentityHandlers{Backend: s.Backend}

	mux.HandleFunc("POST /auth/login", ih.Login)
	mux.HandleFunc("POST /auth/logout", ih.Logout)
	mux.HandleFunc("POST /auth/reset-password", ih.ResetPassword)
	mux.HandleFunc("GET /auth/validate-token", ih.ValidateToken)
	mux.HandleFunc("GET /auth/session", ih.Session)
	registerHealth(mux, nil)

	return wrap(mux, s.Logger)
}

func registerHealth(mux *http.ServeMux, checks []Check) {
	mux.HandleFunc("GET /healthz", healthHandler)
	mux.HandleFunc("HEAD /healthz", healthHandler)
	mux.HandleFunc("GET /readyz", readyHandler(checks))
}

func wrap(h http.Handler, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return Chain(h, Recover(logger), Logging(logger))
}
