// Package redis backs the kv store with a Redis server so the cache and reset
// tokens survive restarts and can be shared between instances.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"ragchat/internal/config"
	"ragchat/internal/logger"
)

type Store struct {
	log    *logger.Logger
	rdb    *goredis.Client
	prefix string
}

// NewStore connects to redis and pings it once.
func NewStore(log *logger.Logger, cfg config.RedisConfig) (*Store, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, fmt.Errorf("missing redis addr")
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return NewStoreFromClient(log, rdb, cfg.Prefix), nil
}

// NewStoreFromClient wraps an existing client.
func NewStoreFromClient(log *logger.Logger, rdb *goredis.Client, prefix string) *Store {
	return &Store{
		log:    log.With("service", "RedisKV"),
		rdb:    rdb,
		prefix: prefix,
	}
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := s.rdb.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	return val, true, nil
}

// Set stores value with a redis-side expiry; a non-positive ttl keeps it.
func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := s.rdb.Set(ctx, s.prefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.rdb.Close()
}
