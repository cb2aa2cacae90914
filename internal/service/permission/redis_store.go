package permission

import (
	"context"
	"time"

	pkgredis "akwa/internal/pkg/redis"

	"github.com/redis/go-redis/v9"
)

// RedisStore 是 Store 的 Redis 实现，授权结果在副本之间共享。
// 值只存 "1"/"0"，TTL 交给 Redis 管理。
type RedisStore struct {
	client *pkgredis.Client
}

func NewRedisStore(client *pkgredis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Get(ctx context.Context, key string) (bool, bool, error) {
	val, err := s.client.GetClient().Get(ctx, key).Result()
	if err == redis.Nil {
		return false, false, nil
	}
	if err != nil {
		return false, false, err
	}
	return val == "1", true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, granted bool, ttl time.Duration) error {
	val := "0"
	if granted {
		val = "1"
	}
	return s.client.GetClient().Set(ctx, key, val, ttl).Err()
}

func (s *RedisStore) Del(ctx context.Context, key string) error {
	return s.client.GetClient().Del(ctx, key).Err()
}
