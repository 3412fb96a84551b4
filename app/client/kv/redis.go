package kv

import (
	"context"
	"deskbot/app/config"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/do"
	"github.com/samber/oops"
)

var _ Store = (*RedisStore)(nil)

type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(di *do.Injector) (*RedisStore, error) {
	cfg := do.MustInvoke[*config.Config](di)

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Pass,
		DB:       cfg.Redis.Database,
	})

	ctx, cancel := context.WithTimeout(do.MustInvoke[context.Context](di), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, oops.Errorf("failed to ping redis: %w", err)
	}

	return &RedisStore{client: client}, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, oops.Errorf("redis get: %w", err)
	}

	return data, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, key, value, 0).Err(); err != nil {
		return oops.Errorf("redis set: %w", err)
	}

	return nil
}

func (s *RedisStore) Del(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return oops.Errorf("redis del: %w", err)
	}

	return nil
}

func (s *RedisStore) ListPush(ctx context.Context, key string, value []byte) error {
	if err := s.client.RPush(ctx, key, value).Err(); err != nil {
		return oops.Errorf("redis rpush: %w", err)
	}

	return nil
}

func (s *RedisStore) ListRange(ctx context.Context, key string) ([][]byte, error) {
	items, err := s.client.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, oops.Errorf("redis lrange: %w", err)
	}

	result := make([][]byte, 0, len(items))
	for _, item := range items {
		result = append(result, []byte(item))
	}

	return result, nil
}

func (s *RedisStore) ListRem(ctx context.Context, key string, value []byte) error {
	if err := s.client.LRem(ctx, key, 0, value).Err(); err != nil {
		return oops.Errorf("redis lrem: %w", err)
	}

	return nil
}

func (s *RedisStore) Shutdown() error {
	return s.client.Close()
}
