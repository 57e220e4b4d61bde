package redis

// Package redis provides Redis-based adapters for origin-scoped storage and cross-context signaling.

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/target/sitegate/internal/ports"
)

var _ ports.Storage = (*OriginStorage)(nil)

// OriginStorage is a key/value store scoped to one origin.
// Keys share a hash tag so multi-key writes stay in one cluster slot.
type OriginStorage struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// OriginStorageOptions configures OriginStorage.
type OriginStorageOptions struct {
	// KeyPrefix defaults to "sitegate".
	KeyPrefix string
	// TTL expires idle keys; zero keeps them until cleared.
	TTL time.Duration
}

// NewOriginStorage creates storage scoped to origin (e.g. "https://app.example.com").
func NewOriginStorage(client redis.UniversalClient, origin string, opts OriginStorageOptions) *OriginStorage {
	base := strings.TrimSuffix(strings.TrimSpace(opts.KeyPrefix), ":")
	if base == "" {
		base = "sitegate"
	}
	return &OriginStorage{
		client: client,
		prefix: fmt.Sprintf("%s:{%s}:", base, originTag(origin)),
		ttl:    opts.TTL,
	}
}

// originTag reduces an origin to scheme+host so paths or trailing slashes never split storage.
func originTag(origin string) string {
	origin = strings.ToLower(strings.TrimSpace(origin))
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return strings.TrimSuffix(origin, "/")
	}
	return u.Scheme + "://" + u.Host
}

// Key returns the fully-qualified Redis key for key.
func (s *OriginStorage) Key(key string) string { return s.prefix + key }

func (s *OriginStorage) Get(ctx context.Context, key string) (string, bool, error) {
	if key == "" {
		return "", false, errors.New("storage key cannot be empty")
	}
	v, err := s.client.Get(ctx, s.Key(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("redis get: %w", err)
	}
	return v, true, nil
}

// Apply writes every delete and set in a single MULTI/EXEC transaction.
func (s *OriginStorage) Apply(ctx context.Context, w ports.StorageWrite) error {
	if len(w.Set) == 0 && len(w.Delete) == 0 {
		return nil
	}
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(w.Delete) > 0 {
			keys := make([]string, 0, len(w.Delete))
			for _, k := range w.Delete {
				keys = append(keys, s.Key(k))
			}
			pipe.Del(ctx, keys...)
		}
		for k, v := range w.Set {
			pipe.Set(ctx, s.Key(k), v, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis apply: %w", err)
	}
	return nil
}
