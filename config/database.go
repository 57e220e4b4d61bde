package config

import (
	"strings"
	"time"
)

// DBConfig contains PostgreSQL database configuration.
type DBConfig struct {
	Host     string `env:"HOST"                    envDefault:"localhost"`
	Port     int    `env:"PORT"                    envDefault:"5432"`
	User     string `env:"USER"                    envDefault:"sitegate"`
	Password string `env:"PASSWORD"                envDefault:"sitegate"`
	Name     string `env:"NAME"                    envDefault:"sitegate"`
	SSLMode  string `env:"SSL_MODE"                envDefault:"disable"` // Use 'disable' for local dev, 'require' for production
	// RunMigrationsOnStart controls whether the application automatically applies migrations during startup.
	RunMigrationsOnStart bool `env:"RUN_MIGRATIONS_ON_START" envDefault:"true"`
}

// RedisConfig contains Redis configuration.
type RedisConfig struct {
	URI                string   `env:"URI"                  envDefault:"localhost:6379"`
	Password           string   `env:"PASSWORD"             envDefault:""`
	SentinelNodes      []string `env:"SENTINEL_NODES"       envDefault:"localhost:26379"`
	SentinelMasterName string   `env:"SENTINEL_MASTER_NAME" envDefault:"mymaster"`
	SentinelPassword   string   `env:"SENTINEL_PASSWORD"    envDefault:""`
	UseSentinel        bool     `env:"USE_SENTINEL"         envDefault:"false"`
	ClusterNodes       []string `env:"CLUSTER_NODES"        envDefault:""`
	UseCluster         bool     `env:"USE_CLUSTER"          envDefault:"false"`

	// KeyPrefix namespaces origin storage keys.
	KeyPrefix string `env:"KEY_PREFIX" envDefault:"sitegate"`
	// StorageTTL expires idle origin storage keys; zero keeps them until cleared.
	StorageTTL time.Duration `env:"STORAGE_TTL" envDefault:"0"`
	// SignalChannel is the pub/sub channel carrying sync signals between host instances.
	SignalChannel string `env:"SIGNAL_CHANNEL" envDefault:"sitegate:sync"`
}

// Sanitize applies guardrails to Redis configuration values.
func (r *RedisConfig) Sanitize() {
	r.URI = strings.TrimSpace(r.URI)
	r.KeyPrefix = strings.TrimSuffix(strings.TrimSpace(r.KeyPrefix), ":")
	if r.KeyPrefix == "" {
		r.KeyPrefix = "sitegate"
	}
	if r.StorageTTL < 0 {
		r.StorageTTL = 0
	}
	if strings.TrimSpace(r.SignalChannel) == "" {
		r.SignalChannel = "sitegate:sync"
	}
}
