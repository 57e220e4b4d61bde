package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/target/sitegate/config"
	redisadapter "github.com/target/sitegate/internal/adapters/redis"
	"github.com/target/sitegate/internal/data"
	httpx "github.com/target/sitegate/internal/http"
	"golang.org/x/sync/errgroup"
)

// infrastructure holds the shared connections the enabled modes need.
type infrastructure struct {
	DB    *sql.DB
	Redis redis.UniversalClient
}

func (i *infrastructure) checks() []httpx.Check {
	var checks []httpx.Check
	if i.Redis != nil {
		checks = append(checks, httpx.Check{Name: "redis", Fn: func(ctx context.Context) error {
			return i.Redis.Ping(ctx).Err()
		}})
	}
	if i.DB != nil {
		checks = append(checks, httpx.Check{Name: "postgres", Fn: i.DB.PingContext})
	}
	return checks
}

func (i *infrastructure) close(logger *slog.Logger) {
	if i.Redis != nil {
		if err := i.Redis.Close(); err != nil {
			logger.Error("close redis failed", "error", err)
		}
	}
	if i.DB != nil {
		if err := i.DB.Close(); err != nil {
			logger.Error("close database failed", "error", err)
		}
	}
}

// connectInfrastructure connects only what the enabled modes use:
// Redis for host and portal storage, PostgreSQL for the host's admin directory.
func connectInfrastructure(
	ctx context.Context,
	cfg *config.AppConfig,
	modes map[config.ServiceMode]bool,
	logger *slog.Logger,
) (*infrastructure, error) {
	infra := &infrastructure{}

	if modes[config.ServiceModeHost] || modes[config.ServiceModePortal] {
		client, err := ConnectRedis(ctx, cfg.Redis, logger)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		infra.Redis = client
	}

	if modes[config.ServiceModeHost] {
		db, err := ConnectDB(ctx, cfg.Postgres, logger)
		if err != nil {
			infra.close(logger)
			return nil, fmt.Errorf("connect db: %w", err)
		}
		infra.DB = db

		if cfg.Postgres.RunMigrationsOnStart {
			if err := RunMigrations(ctx, db, logger); err != nil {
				infra.close(logger)
				return nil, err
			}
		} else {
			logger.InfoContext(ctx, "skipping database migrations on startup", "reason", "disabled via config")
		}
	}
	return infra, nil
}

// RunServices starts every enabled mode and blocks until ctx is cancelled,
// SIGINT/SIGTERM arrives, or a mode fails.
func RunServices(ctx context.Context, cfg *config.AppConfig, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	if err := ValidateServiceConfig(cfg); err != nil {
		return err
	}
	modes, err := cfg.GetEnabledServices()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	infra, err := connectInfrastructure(ctx, cfg, modes, logger)
	if err != nil {
		return err
	}
	defer infra.close(logger)

	g, gctx := errgroup.WithContext(ctx)

	if modes[config.ServiceModeIdentity] {
		handler, _, err := BuildIdentity(cfg.DevIdentity, logger.With("mode", "idp"))
		if err != nil {
			return fmt.Errorf("build idp: %w", err)
		}
		g.Go(func() error { return serveHTTP(gctx, "idp", cfg.HTTP.IdentityAddr, handler, cfg.HTTP, logger) })
	}

	if modes[config.ServiceModeHost] {
		hostLogger := logger.With("mode", "host")
		host, err := BuildHost(HostDeps{
			Config: cfg,
			Storage: redisadapter.NewOriginStorage(infra.Redis, cfg.Sync.SelfOrigin, redisadapter.OriginStorageOptions{
				KeyPrefix: cfg.Redis.KeyPrefix,
				TTL:       cfg.Redis.StorageTTL,
			}),
			Directory: data.NewAdminPrincipalRepo(infra.DB),
			Bus:       redisadapter.NewSignalBus(infra.Redis, cfg.Redis.SignalChannel, hostLogger),
			Checks:    infra.checks(),
			Metrics:   BuildMetricsSink(hostLogger, cfg.Observability.Metrics, "host"),
			Logger:    hostLogger,
		})
		if err != nil {
			return fmt.Errorf("build host: %w", err)
		}
		defer host.Close()
		g.Go(func() error { return host.Run(gctx) })
		g.Go(func() error { return serveHTTP(gctx, "host", cfg.HTTP.HostAddr, host.Handler, cfg.HTTP, logger) })
	}

	if modes[config.ServiceModePortal] {
		portalLogger := logger.With("mode", "portal")
		portal, err := BuildPortal(PortalDeps{
			Config: cfg,
			Storage: redisadapter.NewOriginStorage(infra.Redis, cfg.Sync.PortalOrigin, redisadapter.OriginStorageOptions{
				KeyPrefix: cfg.Redis.KeyPrefix,
				TTL:       cfg.Redis.StorageTTL,
			}),
			Checks:  infra.checks(),
			Metrics: BuildMetricsSink(portalLogger, cfg.Observability.Metrics, "portal"),
			Logger:  portalLogger,
		})
		if err != nil {
			return fmt.Errorf("build portal: %w", err)
		}
		g.Go(func() error { return portal.Run(gctx) })
		g.Go(func() error { return serveHTTP(gctx, "portal", cfg.HTTP.PortalAddr, portal.Handler, cfg.HTTP, logger) })
	}

	logger.InfoContext(ctx, "sitegate started", "enabled_services", GetEnabledServices(cfg))
	err = g.Wait()
	logger.InfoContext(ctx, "sitegate stopped")
	return err
}

func serveHTTP(
	ctx context.Context,
	name, addr string,
	handler http.Handler,
	cfg config.HTTPConfig,
	logger *slog.Logger,
) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("%s listen %s: %w", name, addr, err)
	}
	return serve(ctx, ln, name, handler, cfg, logger)
}

// serve runs an HTTP server on ln until ctx is done, then shuts it down gracefully.
func serve(
	ctx context.Context,
	ln net.Listener,
	name string,
	handler http.Handler,
	cfg config.HTTPConfig,
	logger *slog.Logger,
) error {
	server := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting HTTP server", "server", name, "addr", ln.Addr().String())
		errCh <- server.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("%s server: %w", name, err)
	case <-ctx.Done():
	}

	logger.Info("shutting down HTTP server", "server", name)
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("%s shutdown: %w", name, err)
	}
	logger.Info("HTTP server stopped", "server", name)
	return nil
}
