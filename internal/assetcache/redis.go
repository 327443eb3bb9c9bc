package assetcache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	fieldContentType = "content_type"
	fieldData        = "data"
)

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// RedisStore keeps assets in Redis hashes under a key prefix.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to Redis and checks the connection.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "snap2pdf:assets:"
	}
	return &RedisStore{client: client, prefix: prefix}, nil
}

// Get retrieves an asset.
func (s *RedisStore) Get(ctx context.Context, key string) (Asset, error) {
	vals, err := s.client.HMGet(ctx, s.prefix+key, fieldContentType, fieldData).Result()
	if err != nil {
		return Asset{}, fmt.Errorf("redis get: %w", err)
	}
	data, ok := vals[1].(string)
	if !ok {
		return Asset{}, ErrMiss
	}
	ct, _ := vals[0].(string)
	return Asset{ContentType: ct, Data: []byte(data)}, nil
}

// Put stores an asset.
func (s *RedisStore) Put(ctx context.Context, key string, asset Asset) error {
	err := s.client.HSet(ctx, s.prefix+key,
		fieldContentType, asset.ContentType,
		fieldData, asset.Data,
	).Err()
	if err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Keys lists every key under the prefix, prefix removed.
func (s *RedisStore) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), s.prefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan: %w", err)
	}
	return keys, nil
}

// Delete removes keys.
func (s *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = s.prefix + k
	}
	if err := s.client.Del(ctx, full...).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("redis delete: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
