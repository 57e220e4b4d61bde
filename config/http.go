package config

import "time"

// HTTPConfig contains HTTP server configuration.
type HTTPConfig struct {
	// HostAddr is the address the host UI API binds to.
	HostAddr string `env:"HTTP_HOST_ADDR" envDefault:":8080"`

	// PortalAddr is the address the portal instrumentation API binds to.
	PortalAddr string `env:"HTTP_PORTAL_ADDR" envDefault:":8081"`

	// IdentityAddr is the address the development identity backend binds to.
	IdentityAddr string `env:"HTTP_IDP_ADDR" envDefault:":8082"`

	// ReadHeaderTimeout bounds how long a client may take to send request headers.
	ReadHeaderTimeout time.Duration `env:"HTTP_READ_HEADER_TIMEOUT" envDefault:"10s"`

	// ShutdownTimeout bounds graceful shutdown of every listener.
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Sanitize applies guardrails to HTTP configuration values.
func (h *HTTPConfig) Sanitize() {
	if h.ReadHeaderTimeout <= 0 {
		h.ReadHeaderTimeout = 10 * time.Second
	}
	if h.ShutdownTimeout < time.Second {
		h.ShutdownTimeout = time.Second
	}
}
