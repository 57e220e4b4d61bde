package bootstrap

import (
	"log/slog"

	"github.com/target/sitegate/config"
	"github.com/target/sitegate/internal/observability/statsd"
)

// BuildMetricsSink returns the StatsD sink, or nil when metrics are disabled or the dial fails.
func BuildMetricsSink(logger *slog.Logger, cfg config.ObservabilityMetricsConfig, mode string) statsd.Sink {
	if logger == nil {
		logger = slog.Default()
	}
	if !cfg.IsEnabled() {
		return nil
	}
	client, err := statsd.NewClient(statsd.Config{
		Enabled:    true,
		Address:    cfg.StatsdAddress,
		Prefix:     cfg.Prefix,
		Logger:     logger,
		GlobalTags: map[string]string{"mode": mode},
	})
	if err != nil {
		logger.Error("failed to initialise statsd client", "error", err)
		return nil
	}
	return client
}
