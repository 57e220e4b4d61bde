package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	// Register the pgx driver with database/sql.
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
	"github.com/target/sitegate/config"
	"github.com/target/sitegate/internal/data"
)

const connectTimeout = 5 * time.Second

// The admin directory sees at most one lookup and one last-login update per resolve.
const (
	dbMaxOpenConns    = 10
	dbMaxIdleConns    = 2
	dbConnMaxLifetime = 30 * time.Minute
	dbConnMaxIdleTime = 5 * time.Minute
)

// ConnectDB opens the admin directory database and verifies it answers.
func ConnectDB(ctx context.Context, cfg config.DBConfig, logger *slog.Logger) (*sql.DB, error) {
	db, err := sql.Open("pgx", postgresDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("open admin directory database: %w", err)
	}
	db.SetMaxOpenConns(dbMaxOpenConns)
	db.SetMaxIdleConns(dbMaxIdleConns)
	db.SetConnMaxLifetime(dbConnMaxLifetime)
	db.SetConnMaxIdleTime(dbConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if pingErr := db.PingContext(pingCtx); pingErr != nil {
		if closeErr := db.Close(); closeErr != nil {
			pingErr = errors.Join(pingErr, fmt.Errorf("close database: %w", closeErr))
		}
		return nil, fmt.Errorf("ping admin directory database: %w", pingErr)
	}

	if logger != nil {
		logger.InfoContext(ctx, "admin directory database connected",
			"host", cfg.Host, "port", cfg.Port, "database", cfg.Name, "sslmode", cfg.SSLMode)
	}
	return db, nil
}

// postgresDSN renders cfg as a pgx URL, escaping credentials.
func postgresDSN(cfg config.DBConfig) string {
	u := &url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(cfg.User, cfg.Password),
		Host:   net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:   "/" + cfg.Name,
	}
	q := u.Query()
	q.Set("sslmode", cfg.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

type redisTopology string

const (
	topologyDirect   redisTopology = "direct"
	topologySentinel redisTopology = "sentinel"
	topologyCluster  redisTopology = "cluster"
)

// ConnectRedis connects the client shared by origin storage and the signal bus.
//
//nolint:ireturn // the topology decides between single, failover and cluster clients.
func ConnectRedis(ctx context.Context, cfg config.RedisConfig, logger *slog.Logger) (redis.UniversalClient, error) {
	opts, topology, err := redisOptions(cfg)
	if err != nil {
		return nil, err
	}
	client := redis.NewUniversalClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if pingErr := client.Ping(pingCtx).Err(); pingErr != nil {
		if closeErr := client.Close(); closeErr != nil {
			pingErr = errors.Join(pingErr, fmt.Errorf("close redis client: %w", closeErr))
		}
		return nil, fmt.Errorf("ping redis (%s): %w", topology, pingErr)
	}

	if logger != nil {
		logger.InfoContext(ctx, "redis connected",
			"topology", string(topology),
			"addrs", strings.Join(opts.Addrs, ","),
			"key_prefix", cfg.KeyPrefix,
			"signal_channel", cfg.SignalChannel,
		)
	}
	return client, nil
}

// redisOptions maps RedisConfig onto universal client options.
// Cluster mode falls back to the URI as a configuration endpoint when no nodes are listed.
func redisOptions(cfg config.RedisConfig) (*redis.UniversalOptions, redisTopology, error) {
	switch {
	case cfg.UseCluster:
		opts := &redis.UniversalOptions{
			Addrs:         trimAddrs(cfg.ClusterNodes),
			Password:      cfg.Password,
			IsClusterMode: true,
		}
		if len(opts.Addrs) == 0 && strings.TrimSpace(cfg.URI) != "" {
			endpoint, err := parseRedisURI(cfg.URI, cfg.Password)
			if err != nil {
				return nil, "", fmt.Errorf("redis cluster endpoint: %w", err)
			}
			opts.Addrs = []string{endpoint.Addr}
			opts.Username = endpoint.Username
			opts.Password = endpoint.Password
			opts.TLSConfig = endpoint.TLSConfig
		}
		if len(opts.Addrs) == 0 {
			return nil, "", errors.New("redis cluster mode requires REDIS_CLUSTER_NODES or REDIS_URI")
		}
		return opts, topologyCluster, nil

	case cfg.UseSentinel:
		nodes := trimAddrs(cfg.SentinelNodes)
		if len(nodes) == 0 {
			return nil, "", errors.New("redis sentinel mode requires REDIS_SENTINEL_NODES")
		}
		master := strings.TrimSpace(cfg.SentinelMasterName)
		if master == "" {
			return nil, "", errors.New("redis sentinel mode requires REDIS_SENTINEL_MASTER_NAME")
		}
		return &redis.UniversalOptions{
			Addrs:            nodes,
			MasterName:       master,
			Password:         cfg.Password,
			SentinelPassword: cfg.SentinelPassword,
		}, topologySentinel, nil

	default:
		if strings.TrimSpace(cfg.URI) == "" {
			return nil, "", errors.New("redis requires REDIS_URI")
		}
		endpoint, err := parseRedisURI(cfg.URI, cfg.Password)
		if err != nil {
			return nil, "", err
		}
		return &redis.UniversalOptions{
			Addrs:     []string{endpoint.Addr},
			Username:  endpoint.Username,
			Password:  endpoint.Password,
			DB:        endpoint.DB,
			TLSConfig: endpoint.TLSConfig,
		}, topologyDirect, nil
	}
}

// parseRedisURI accepts a redis:// or rediss:// URL or a bare host:port.
// password applies when the URI carries none.
func parseRedisURI(uri, password string) (*redis.Options, error) {
	uri = strings.TrimSpace(uri)
	if !strings.HasPrefix(uri, "redis://") && !strings.HasPrefix(uri, "rediss://") {
		return &redis.Options{Addr: uri, Password: password}, nil
	}
	opt, err := redis.ParseURL(uri)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if opt.Password == "" {
		opt.Password = password
	}
	return opt, nil
}

func trimAddrs(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, a := range raw {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}

// RunMigrations applies the admin directory schema.
func RunMigrations(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	if err := data.RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	if logger != nil {
		logger.InfoContext(ctx, "database migrations completed")
	}
	return nil
}
