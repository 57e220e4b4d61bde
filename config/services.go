package config

import (
	"errors"
	"fmt"
	"strings"
)

// ServiceMode represents the available service modes.
type ServiceMode string

const (
	// ServiceModeHost runs the host context: session store, resolver and host sync bridge.
	ServiceModeHost ServiceMode = "host"
	// ServiceModePortal runs the portal context instrumentation and API proxy.
	ServiceModePortal ServiceMode = "portal"
	// ServiceModeIdentity runs the development identity backend.
	ServiceModeIdentity ServiceMode = "idp"
)

// ValidServiceModes returns all valid service mode names.
func ValidServiceModes() []ServiceMode {
	return []ServiceMode{
		ServiceModeHost,
		ServiceModePortal,
		ServiceModeIdentity,
	}
}

// ParseServices parses a comma-delimited string of service names and returns the enabled services.
// It validates that all service names are valid and returns an error if any are invalid.
func ParseServices(servicesStr string) (map[ServiceMode]bool, error) {
	services := make(map[ServiceMode]bool)

	if strings.TrimSpace(servicesStr) == "" {
		return services, errors.New("at least one service must be specified")
	}

	for _, part := range strings.Split(servicesStr, ",") {
		serviceName := strings.ToLower(strings.TrimSpace(part))
		if serviceName == "" {
			continue
		}

		mode := ServiceMode(serviceName)
		switch mode {
		case ServiceModeHost, ServiceModePortal, ServiceModeIdentity:
			services[mode] = true
		default:
			return nil, fmt.Errorf("invalid service name: %q (valid options: host, portal, idp)", serviceName)
		}
	}

	if len(services) == 0 {
		return nil, errors.New("at least one valid service must be specified")
	}

	return services, nil
}
