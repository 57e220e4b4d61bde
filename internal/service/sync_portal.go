package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	domainauth "github.com/target/sitegate/internal/domain/auth"
	"github.com/target/sitegate/internal/observability/metrics"
	"github.com/target/sitegate/internal/observability/statsd"
	"github.com/target/sitegate/internal/ports"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Storage keys owned by the portal monitor on the portal origin.
const (
	KeyPortalState     = "portal.state"
	KeyPortalChangedAt = "portal.changed_at"
)

// ClickTarget describes the element a portal click landed on.
// HTML, when present, is the element's outer HTML and fills in any empty field.
type ClickTarget struct {
	Text      string   `json:"text"`
	ID        string   `json:"id"`
	Classes   []string `json:"classes"`
	AriaLabel string   `json:"ariaLabel"`
	Href      string   `json:"href"`
	HTML      string   `json:"html"`
}

// PortalMonitorConfig holds portal monitor settings.
type PortalMonitorConfig struct {
	PollInterval time.Duration
	// Source labels the flag written to portal storage.
	Source string
}

// PortalMonitorOptions groups dependencies for PortalMonitor.
type PortalMonitorOptions struct {
	Storage  ports.Storage      // Required: portal-origin storage
	Notifier ports.HostNotifier // Optional: message channel to the host
	Rules    DetectionRules
	Config   PortalMonitorConfig
	Logger   *slog.Logger
	Metrics  statsd.Sink
	Now      func() time.Time
}

// PortalMonitor instruments the child context. Each detector independently
// writes the shared logged-out flag and notifies the host; double fires are expected.
type PortalMonitor struct {
	storage  ports.Storage
	notifier ports.HostNotifier
	match    *matcher
	cfg      PortalMonitorConfig
	logger   *slog.Logger
	metrics  statsd.Sink
	now      func() time.Time

	mu          sync.Mutex
	location    string
	lastChecked string
}

// NewPortalMonitor constructs a PortalMonitor.
func NewPortalMonitor(opts PortalMonitorOptions) (*PortalMonitor, error) {
	if opts.Storage == nil {
		return nil, fmt.Errorf("portal monitor requires storage")
	}
	rules := opts.Rules
	if len(rules.LogoutURLFragments) == 0 && len(rules.LogoutWords) == 0 &&
		len(rules.AuthPaths) == 0 && len(rules.UnauthorizedStatuses) == 0 {
		rules = DefaultDetectionRules()
	}
	m, err := compileRules(rules)
	if err != nil {
		return nil, err
	}
	cfg := opts.Config
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.Source == "" {
		cfg.Source = "portal"
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &PortalMonitor{
		storage:  opts.Storage,
		notifier: opts.Notifier,
		match:    m,
		cfg:      cfg,
		logger:   logger.With("component", "portal_monitor"),
		metrics:  opts.Metrics,
		now:      now,
	}, nil
}

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

// Transport wraps base so requests to logout endpoints and unauthorized
// responses flag the portal as logged out.
func (m *PortalMonitor) Transport(base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		logoutCall := m.match.logoutURL(req.URL.Path)
		resp, err := base.RoundTrip(req)
		ctx := context.WithoutCancel(req.Context())
		switch {
		case logoutCall:
			m.MarkLoggedOut(ctx, "logout_request")
		case err == nil && m.match.unauthorized(resp.StatusCode):
			m.MarkLoggedOut(ctx, fmt.Sprintf("status_%d", resp.StatusCode))
		}
		return resp, err
	})
}

// ObserveClick flags clicks on elements that look like a logout control.
func (m *PortalMonitor) ObserveClick(ctx context.Context, target ClickTarget) bool {
	if target.HTML != "" {
		target = mergeParsedTarget(target)
	}
	fields := append([]string{target.Text, target.ID, target.AriaLabel}, target.Classes...)
	hit := false
	for _, f := range fields {
		if m.match.logoutText(f) {
			hit = true
			break
		}
	}
	if !hit && target.Href != "" {
		if u, err := url.Parse(target.Href); err == nil && m.match.logoutURL(u.Path) {
			hit = true
		}
	}
	if !hit {
		return false
	}
	m.MarkLoggedOut(ctx, "logout_click")
	return true
}

// ObserveNavigation records the portal's current location for the URL poller.
func (m *PortalMonitor) ObserveNavigation(rawURL string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.location = rawURL
}

// CheckLocation flags the current location when it changed to a login path.
func (m *PortalMonitor) CheckLocation(ctx context.Context) bool {
	m.mu.Lock()
	loc := m.location
	changed := loc != m.lastChecked
	m.lastChecked = loc
	m.mu.Unlock()
	if !changed || loc == "" {
		return false
	}
	u, err := url.Parse(loc)
	if err != nil || !m.match.authPath(u.Path) {
		return false
	}
	m.MarkLoggedOut(ctx, "auth_navigation")
	return true
}

// Run polls the recorded location until ctx is done.
func (m *PortalMonitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.CheckLocation(ctx)
		}
	}
}

// MarkLoggedOut writes the logged-out flag to portal storage and notifies the host.
// Both steps are best-effort and independent.
func (m *PortalMonitor) MarkLoggedOut(ctx context.Context, reason string) {
	at := m.now().UTC()
	err := m.storage.Apply(ctx, ports.StorageWrite{Set: map[string]string{
		KeyPortalState:     string(domainauth.LoginStateLoggedOut),
		KeyPortalChangedAt: at.Format(time.RFC3339Nano),
	}})
	if err != nil {
		m.logger.WarnContext(ctx, "write portal logout flag failed", "reason", reason, "error", err)
	}

	var postErr error
	if m.notifier != nil {
		postErr = m.notifier.PostMessage(ctx, ports.SyncMessage{Type: MessageLogout, Timestamp: at})
		if postErr != nil {
			m.logger.DebugContext(ctx, "post logout message failed", "error", postErr)
		}
	}
	m.logger.InfoContext(ctx, "portal logout detected", "reason", reason)
	metrics.EmitResult(m.metrics, metrics.SyncSignal, postErr, map[string]string{"via": "portal", "reason": reason})
}

// MarkLoggedIn resets the flag after the portal establishes a session again.
func (m *PortalMonitor) MarkLoggedIn(ctx context.Context) error {
	return m.storage.Apply(ctx, ports.StorageWrite{Set: map[string]string{
		KeyPortalState:     string(domainauth.LoginStateLoggedIn),
		KeyPortalChangedAt: m.now().UTC().Format(time.RFC3339Nano),
	}})
}

// PeerState returns the flag as served to the host poller.
func (m *PortalMonitor) PeerState(ctx context.Context) (domainauth.PeerState, error) {
	state, ok, err := m.storage.Get(ctx, KeyPortalState)
	if err != nil {
		return domainauth.PeerState{}, fmt.Errorf("read portal state: %w", err)
	}
	ps := domainauth.PeerState{State: domainauth.LoginStateLoggedIn, Source: m.cfg.Source}
	if !ok {
		return ps, nil
	}
	ps.State = domainauth.LoginState(state)
	if raw, ok, err := m.storage.Get(ctx, KeyPortalChangedAt); err == nil && ok {
		if ts, perr := time.Parse(time.RFC3339Nano, raw); perr == nil {
			ps.ChangedAt = ts
		}
	}
	return ps, nil
}

// mergeParsedTarget fills empty fields of t from its outer HTML.
func mergeParsedTarget(t ClickTarget) ClickTarget {
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(t.HTML), body)
	if err != nil {
		return t
	}
	var el *html.Node
	for _, n := range nodes {
		if n.Type == html.ElementNode {
			el = n
			break
		}
	}
	if el == nil {
		return t
	}
	for _, a := range el.Attr {
		switch strings.ToLower(a.Key) {
		case "id":
			if t.ID == "" {
				t.ID = a.Val
			}
		case "class":
			if len(t.Classes) == 0 {
				t.Classes = strings.Fields(a.Val)
			}
		case "aria-label", "title":
			if t.AriaLabel == "" {
				t.AriaLabel = a.Val
			}
		case "href", "action", "formaction":
			if t.Href == "" {
				t.Href = a.Val
			}
		}
	}
	if t.Text == "" {
		t.Text = strings.Join(strings.Fields(textContent(el)), " ")
	}
	return t
}

func textContent(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(textContent(c))
		b.WriteByte(' ')
	}
	return b.String()
}
