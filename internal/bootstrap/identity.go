package bootstrap

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/target/sitegate/config"
	"github.com/target/sitegate/internal/adapters/devidentity"
	httpx "github.com/target/sitegate/internal/http"
)

// BuildIdentity wires the development identity backend and its HTTP contract.
func BuildIdentity(cfg config.DevIdentityConfig, logger *slog.Logger) (http.Handler, *devidentity.Backend, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Secret == "" {
		return nil, nil, errors.New("dev identity secret is required")
	}
	users, err := devidentity.ParseUsers(cfg.Users)
	if err != nil {
		return nil, nil, fmt.Errorf("dev identity users: %w", err)
	}
	backend, err := devidentity.NewBackend(devidentity.Config{
		Users:       users,
		Secret:      []byte(cfg.Secret),
		SessionTTL:  cfg.SessionTTL,
		MaxFailures: cfg.MaxFailures,
		Lockout:     cfg.Lockout,
		Logger:      logger,
	})
	if err != nil {
		return nil, nil, err
	}
	logger.Warn("development identity backend enabled; do not expose it in production", "users", len(users))
	return httpx.NewIdentityRouter(httpx.IdentityServices{Backend: backend, Logger: logger}), backend, nil
}
