package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	domainauth "github.com/target/sitegate/internal/domain/auth"
	"github.com/target/sitegate/internal/service"
)

// PortalMonitor is the portal-side detector surface.
type PortalMonitor interface {
	ObserveClick(ctx context.Context, target service.ClickTarget) bool
	ObserveNavigation(rawURL string)
	CheckLocation(ctx context.Context) bool
	MarkLoggedIn(ctx context.Context) error
	PeerState(ctx context.Context) (domainauth.PeerState, error)
	Transport(base http.RoundTripper) http.RoundTripper
}

// PortalHandlers serves the child context's instrumentation endpoints.
type PortalHandlers struct {
	Monitor PortalMonitor
	Logger  *slog.Logger
}

func (h *PortalHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

type detectionResponse struct {
	LoggedOut bool `json:"loggedOut"`
}

// Click reports a click inside the portal.
// POST /portal/events/click.
func (h *PortalHandlers) Click(w http.ResponseWriter, r *http.Request) {
	var target service.ClickTarget
	if !DecodeJSON(w, r, &target) {
		return
	}
	WriteJSON(w, http.StatusOK, detectionResponse{LoggedOut: h.Monitor.ObserveClick(r.Context(), target)})
}

type navigationRequest struct {
	URL string `json:"url"`
}

// Navigation records the portal's location and checks it immediately.
// POST /portal/events/navigation.
func (h *PortalHandlers) Navigation(w http.ResponseWriter, r *http.Request) {
	var in navigationRequest
	if !DecodeJSON(w, r, &in) {
		return
	}
	if strings.TrimSpace(in.URL) == "" {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "validation",
			Err:     errors.New("url is required"),
			Field:   "url",
		})
		return
	}
	h.Monitor.ObserveNavigation(in.URL)
	WriteJSON(w, http.StatusOK, detectionResponse{LoggedOut: h.Monitor.CheckLocation(r.Context())})
}

// LoggedIn resets the shared flag after the portal signs in again.
// POST /portal/events/login.
func (h *PortalHandlers) LoggedIn(w http.ResponseWriter, r *http.Request) {
	if err := h.Monitor.MarkLoggedIn(r.Context()); err != nil {
		h.logger().ErrorContext(r.Context(), "reset portal flag failed", "error", err)
		WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "internal", Err: errors.New("internal error")})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// State serves the shared flag to the host poller.
// GET /portal/state.
func (h *PortalHandlers) State(w http.ResponseWriter, r *http.Request) {
	ps, err := h.Monitor.PeerState(r.Context())
	if err != nil {
		h.logger().ErrorContext(r.Context(), "read portal state failed", "error", err)
		WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "internal", Err: errors.New("internal error")})
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	WriteJSON(w, http.StatusOK, ps)
}

// NewPortalProxy forwards /portal/api/* to upstream through the monitor's
// instrumented transport so 401/403 and logout calls are detected in flight.
func NewPortalProxy(upstream *url.URL, monitor PortalMonitor, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(upstream)
			pr.Out.URL.Path = singleJoin(upstream.Path, strings.TrimPrefix(pr.In.URL.Path, "/portal/api"))
			pr.Out.URL.RawPath = ""
			pr.SetXForwarded()
		},
		Transport: monitor.Transport(nil),
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			logger.WarnContext(r.Context(), "portal upstream failed", "path", r.URL.Path, "error", err)
			WriteError(w, ErrorParams{Code: http.StatusBadGateway, ErrCode: "upstream_unavailable", Err: errors.New("upstream unavailable")})
		},
	}
}

func singleJoin(base, p string) string {
	base = strings.TrimSuffix(base, "/")
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return base + p
}
