package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/target/sitegate/config"
	"github.com/target/sitegate/internal/adapters/crossorigin"
	"github.com/target/sitegate/internal/adapters/identity"
	httpx "github.com/target/sitegate/internal/http"
	"github.com/target/sitegate/internal/observability/statsd"
	"github.com/target/sitegate/internal/ports"
	"github.com/target/sitegate/internal/service"
)

// HostDeps groups dependencies for the host context.
type HostDeps struct {
	Config    *config.AppConfig
	Storage   ports.Storage        // Required: host-origin storage
	Directory ports.AdminDirectory // Required: admin elevation lookups
	Bus       ports.SignalBus      // Optional: cross-instance broadcast

	// Credentials and Probe default to an identity client built from Config.Identity.
	Credentials ports.CredentialClient
	Probe       ports.SessionProbe
	// Peer defaults to polling Config.Sync.PortalURL; nil with an empty URL disables polling.
	Peer ports.PeerStateReader

	Checks  []httpx.Check
	Metrics statsd.Sink
	Logger  *slog.Logger
}

// Host is the wired host context.
type Host struct {
	Handler  http.Handler
	Sessions *service.SessionStore
	Resolver *service.StatusResolver
	Recovery *service.RecoveryPolicy
	Auth     *service.AuthService
	Bridge   *service.HostBridge
	Origins  *service.OriginAllowList
}

// BuildHost wires the session store, resolver, recovery policy, sync bridge and UI API.
func BuildHost(deps HostDeps) (*Host, error) {
	if deps.Config == nil || deps.Storage == nil || deps.Directory == nil {
		return nil, errors.New("host requires Config, Storage and Directory")
	}
	cfg := deps.Config
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	creds, probe := deps.Credentials, deps.Probe
	if creds == nil || probe == nil {
		client, err := identity.NewClient(identity.Config{
			BaseURL:       cfg.Identity.BaseURL,
			Timeout:       cfg.Identity.Timeout,
			ErrorCodePath: cfg.Identity.ErrorCodePath,
			RecoveryCodes: cfg.Identity.RecoveryCodes,
			Logger:        logger,
		})
		if err != nil {
			return nil, fmt.Errorf("identity client: %w", err)
		}
		if creds == nil {
			creds = client
		}
		if probe == nil {
			probe = client
		}
	}

	peer := deps.Peer
	if peer == nil && cfg.Sync.PortalURL != "" {
		sc, err := crossorigin.NewStateClient(cfg.Sync.PortalURL, &http.Client{Timeout: cfg.Sync.PollInterval})
		if err != nil {
			return nil, fmt.Errorf("portal state client: %w", err)
		}
		peer = sc
	}

	origins, err := service.NewOriginAllowList(cfg.Sync.AllowedOrigins)
	if err != nil {
		return nil, fmt.Errorf("sync allowed origins: %w", err)
	}

	sessions := service.NewSessionStore(service.SessionStoreOptions{Storage: deps.Storage, Logger: logger})
	recovery := service.NewRecoveryPolicy(service.RecoveryPolicyOptions{
		Sessions: sessions,
		Logger:   logger,
		Metrics:  deps.Metrics,
	})
	resolver := service.NewStatusResolver(service.StatusResolverOptions{
		Sessions:  sessions,
		Probe:     probe,
		Directory: deps.Directory,
		Recovery:  recovery,
		Config:    service.ResolverConfig{WatchdogTimeout: cfg.Auth.WatchdogTimeout},
		Logger:    logger,
		Metrics:   deps.Metrics,
	})
	recovery.Register(resolver)

	auth := service.NewAuthService(service.AuthServiceOptions{
		Credentials: creds,
		Sessions:    sessions,
		Resolver:    resolver,
		Config: service.AuthServiceConfig{
			AdminDestination:   cfg.Auth.AdminDestination,
			DefaultDestination: cfg.Auth.DefaultDestination,
		},
		Logger:  logger,
		Metrics: deps.Metrics,
	})

	bridge := service.NewHostBridge(service.HostBridgeOptions{
		Sessions: sessions,
		Resolver: resolver,
		Origins:  origins,
		Bus:      deps.Bus,
		Peer:     peer,
		Config: service.HostBridgeConfig{
			SelfOrigin:   cfg.Sync.SelfOrigin,
			PollInterval: cfg.Sync.PollInterval,
		},
		Logger:  logger,
		Metrics: deps.Metrics,
	})

	handler := httpx.NewHostRouter(httpx.HostServices{
		Auth:    auth,
		Bridge:  bridge,
		Origins: origins,
		Checks:  deps.Checks,
		Logger:  logger,

		MessageSecret: []byte(cfg.Sync.SharedSecret),
	})

	return &Host{
		Handler:  handler,
		Sessions: sessions,
		Resolver: resolver,
		Recovery: recovery,
		Auth:     auth,
		Bridge:   bridge,
		Origins:  origins,
	}, nil
}

// Run performs the startup probe and then drives the sync bridge until ctx is done.
func (h *Host) Run(ctx context.Context) error {
	h.Auth.Start(ctx)
	return h.Bridge.Run(ctx)
}

// Close detaches the bridge and resolver from the session store.
func (h *Host) Close() {
	h.Bridge.Close()
	h.Resolver.Close()
}
