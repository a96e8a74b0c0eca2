package clientdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
)

// defaultKeyPrefix namespaces every cache key
const defaultKeyPrefix = "stockledger"

// RedisConfig configures the Redis cache backend.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string // defaults to "stockledger"
}

// RedisStore implements Cache on Redis. Expiry uses native key TTLs, so expired
// entries disappear on their own and no cleanup job is needed.
type RedisStore struct {
	client *goredis.Client
	prefix string
	log    zerolog.Logger
}

// NewRedisStore creates a Redis cache and pings the server.
func NewRedisStore(ctx context.Context, cfg RedisConfig, log zerolog.Logger) (*RedisStore, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	store := NewRedisStoreWithClient(client, cfg.KeyPrefix, log)
	store.log.Info().Str("addr", cfg.Addr).Int("db", cfg.DB).Msg("Connected to Redis price cache")
	return store, nil
}

// NewRedisStoreWithClient wraps an existing client
func NewRedisStoreWithClient(client *goredis.Client, prefix string, log zerolog.Logger) *RedisStore {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &RedisStore{
		client: client,
		prefix: prefix,
		log:    log.With().Str("component", "redis_cache").Logger(),
	}
}

// key builds "<prefix>:<table>:<key>"
func (s *RedisStore) key(table, key string) string {
	return s.prefix + ":" + table + ":" + key
}

// Store saves data with the given TTL
func (s *RedisStore) Store(ctx context.Context, table, key string, data interface{}, ttl time.Duration) error {
	if err := validateTable(table); err != nil {
		return err
	}
	if ttl <= 0 {
		return fmt.Errorf("redis cache requires a positive ttl, got %s", ttl)
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	if err := s.client.Set(ctx, s.key(table, key), payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", s.key(table, key), err)
	}
	return nil
}

// GetIfFresh returns the payload, or nil, nil when the key is missing or expired
func (s *RedisStore) GetIfFresh(ctx context.Context, table, key string) (json.RawMessage, error) {
	if err := validateTable(table); err != nil {
		return nil, err
	}

	data, err := s.client.Get(ctx, s.key(table, key)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", s.key(table, key), err)
	}
	return json.RawMessage(data), nil
}

// Delete removes a specific entry
func (s *RedisStore) Delete(ctx context.Context, table, key string) error {
	if err := validateTable(table); err != nil {
		return err
	}
	if err := s.client.Del(ctx, s.key(table, key)).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", s.key(table, key), err)
	}
	return nil
}

// Ping checks the connection
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the underlying client
func (s *RedisStore) Close() error {
	return s.client.Close()
}

var _ Cache = (*RedisStore)(nil)
