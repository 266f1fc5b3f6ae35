// Package cache provides the key/value stores selected by the cache backend
// configuration.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/upb/ecs-app/config"
	"go.uber.org/zap"
)

// ErrUnsupportedKind is returned by New for a backend kind it cannot build
var ErrUnsupportedKind = errors.New("unsupported cache backend")

// Store is a namespaced key/value cache. A ttl of zero means the store's
// default TTL; a default of zero means entries never expire.
type Store interface {
	Name() string
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// Clear removes every key in the store's namespace and nothing else
	Clear(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// New builds the store selected by cfg. It does not open any connection;
// the redis client dials on first use.
func New(cfg config.CacheBackend, logger *zap.Logger) (Store, error) {
	switch cfg.Kind() {
	case config.CacheKindMemory:
		logger.Info("using memory cache store",
			zap.String("namespace", cfg.Namespace()),
			zap.Int("max_entries", cfg.MaxEntries()))
		return NewMemoryStore(cfg.Namespace(), cfg.MaxEntries(), cfg.DefaultTTL()), nil
	case config.CacheKindRedis:
		store, err := NewRedisStore(cfg.ConnectionURL(), cfg.Namespace(), cfg.DefaultTTL())
		if err != nil {
			return nil, err
		}
		logger.Info("using redis cache store",
			zap.String("namespace", cfg.Namespace()),
			zap.String("url", cfg.LogString()))
		return store, nil
	case config.CacheKindNone:
		logger.Info("cache disabled")
		return NullStore{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedKind, cfg.Kind())
	}
}

// Fetch returns the cached value for key, or computes it with fn and stores
// it. Errors from fn are returned and nothing is cached.
func Fetch(ctx context.Context, store Store, key string, ttl time.Duration, fn func(context.Context) ([]byte, error)) ([]byte, error) {
	value, found, err := store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("cache read %s: %w", key, err)
	}
	if found {
		return value, nil
	}

	value, err = fn(ctx)
	if err != nil {
		return nil, err
	}

	if err := store.Set(ctx, key, value, ttl); err != nil {
		return nil, fmt.Errorf("cache write %s: %w", key, err)
	}
	return value, nil
}

func namespaced(namespace, key string) string {
	if namespace == "" {
		return key
	}
	return namespace + ":" + key
}

func effectiveTTL(ttl, defaultTTL time.Duration) time.Duration {
	if ttl > 0 {
		return ttl
	}
	return defaultTTL
}
