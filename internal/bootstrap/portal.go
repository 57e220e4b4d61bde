package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/target/sitegate/config"
	"github.com/target/sitegate/internal/adapters/crossorigin"
	httpx "github.com/target/sitegate/internal/http"
	"github.com/target/sitegate/internal/observability/statsd"
	"github.com/target/sitegate/internal/ports"
	"github.com/target/sitegate/internal/service"
)

const notifyTimeout = 5 * time.Second

// PortalDeps groups dependencies for the portal context.
type PortalDeps struct {
	Config  *config.AppConfig
	Storage ports.Storage // Required: portal-origin storage
	// Notifier defaults to posting to Config.Sync.HostURL.
	Notifier ports.HostNotifier
	Checks   []httpx.Check
	Metrics  statsd.Sink
	Logger   *slog.Logger
}

// Portal is the wired portal context.
type Portal struct {
	Handler http.Handler
	Monitor *service.PortalMonitor
}

// BuildPortal wires the logout detectors, the upstream proxy and the portal API.
func BuildPortal(deps PortalDeps) (*Portal, error) {
	if deps.Config == nil || deps.Storage == nil {
		return nil, errors.New("portal requires Config and Storage")
	}
	cfg := deps.Config
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	rules, err := service.LoadDetectionRules(cfg.Sync.RulesFile)
	if err != nil {
		return nil, err
	}

	notifier := deps.Notifier
	if notifier == nil {
		poster, err := crossorigin.NewPoster(crossorigin.PosterConfig{
			HostURL:    cfg.Sync.HostURL,
			SelfOrigin: cfg.Sync.PortalOrigin,
			Secret:     []byte(cfg.Sync.SharedSecret),
			HTTPClient: &http.Client{Timeout: notifyTimeout},
		})
		if err != nil {
			return nil, fmt.Errorf("host poster: %w", err)
		}
		notifier = poster
	}

	monitor, err := service.NewPortalMonitor(service.PortalMonitorOptions{
		Storage:  deps.Storage,
		Notifier: notifier,
		Rules:    rules,
		Config: service.PortalMonitorConfig{
			PollInterval: cfg.Sync.PollInterval,
			Source:       cfg.Sync.PortalOrigin,
		},
		Logger:  logger,
		Metrics: deps.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("portal monitor: %w", err)
	}

	var upstream http.Handler
	if cfg.Sync.PortalUpstreamURL != "" {
		u, err := url.Parse(cfg.Sync.PortalUpstreamURL)
		if err != nil || u.Host == "" {
			return nil, fmt.Errorf("portal upstream url %q is invalid", cfg.Sync.PortalUpstreamURL)
		}
		upstream = httpx.NewPortalProxy(u, monitor, logger)
	}

	handler := httpx.NewPortalRouter(httpx.PortalServices{
		Monitor:  monitor,
		Upstream: upstream,
		Checks:   deps.Checks,
		Logger:   logger,
	})
	return &Portal{Handler: handler, Monitor: monitor}, nil
}

// Run polls the portal location until ctx is done.
func (p *Portal) Run(ctx context.Context) error {
	return p.Monitor.Run(ctx)
}
