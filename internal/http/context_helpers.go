package httpx

import (
	"context"

	"github.com/target/sitegate/internal/service"
)

// statusKey is an unexported context key type to avoid collisions across packages.
type statusKey struct{}

// SetStatusInContext returns a child context that carries the resolved status view.
func SetStatusInContext(ctx context.Context, view service.StatusView) context.Context {
	return context.WithValue(ctx, statusKey{}, view)
}

// StatusFromContext returns the status view stored by an auth gate.
func StatusFromContext(ctx context.Context) (service.StatusView, bool) {
	view, ok := ctx.Value(statusKey{}).(service.StatusView)
	return view, ok
}
