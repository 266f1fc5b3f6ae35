package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const clearBatchSize = 500

var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

// RedisStore keeps entries in Redis under "namespace:key"
type RedisStore struct {
	client     *redis.Client
	namespace  string
	defaultTTL time.Duration
}

// NewRedisStore parses connectionURL and creates a client. No connection is
// made until the first command.
func NewRedisStore(connectionURL, namespace string, defaultTTL time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(connectionURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis cache url: %w", err)
	}
	return NewRedisStoreFromClient(redis.NewClient(opts), namespace, defaultTTL), nil
}

// NewRedisStoreFromClient wraps an existing client
func NewRedisStoreFromClient(client *redis.Client, namespace string, defaultTTL time.Duration) *RedisStore {
	return &RedisStore{
		client:     client,
		namespace:  namespace,
		defaultTTL: defaultTTL,
	}
}

// Name returns the backend kind
func (s *RedisStore) Name() string {
	return "redis"
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := s.client.Get(ctx, namespaced(s.namespace, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.client.Set(ctx, namespaced(s.namespace, key), value, effectiveTTL(ttl, s.defaultTTL)).Err()
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, namespaced(s.namespace, key)).Err()
}

// Clear deletes the namespace's keys in batches. The rest of the database
// is left alone.
func (s *RedisStore) Clear(ctx context.Context) error {
	pattern := globEscaper.Replace(namespaced(s.namespace, "")) + "*"
	iter := s.client.Scan(ctx, 0, pattern, clearBatchSize).Iterator()

	batch := make([]string, 0, clearBatchSize)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == clearBatchSize {
			if err := s.client.Del(ctx, batch...).Err(); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(batch) > 0 {
		return s.client.Del(ctx, batch...).Err()
	}
	return nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
