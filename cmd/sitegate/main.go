package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/target/sitegate/config"
	"github.com/target/sitegate/internal/bootstrap"
)

func main() {
	ctx := context.Background()
	logger := bootstrap.InitLogger()
	if err := run(ctx, logger); err != nil {
		logger.ErrorContext(ctx, "fatal error", "error", err)
		os.Exit(1) //nolint:forbidigo // Main entrypoint should exit with non-zero status on fatal errors.
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		return err
	}
	if err = bootstrap.SetLogLevel(cfg.LogLevel); err != nil {
		return err
	}

	logStartupInfo(ctx, logger, &cfg)

	return bootstrap.RunServices(ctx, &cfg, logger)
}

func logStartupInfo(ctx context.Context, logger *slog.Logger, cfg *config.AppConfig) {
	logger.InfoContext(ctx, "starting sitegate",
		"enabled_services", bootstrap.GetEnabledServices(cfg),
		"dev", cfg.IsDev,
		"identity_base_url", cfg.Identity.BaseURL,
		"self_origin", cfg.Sync.SelfOrigin,
		"allowed_origins", cfg.Sync.AllowedOrigins)
}
