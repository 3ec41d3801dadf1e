package credstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis key 前缀。刷新令牌按用户存储（每用户仅一条，覆盖写实现轮换），
// 黑名单按原始访问令牌字符串存储，TTL 到期自动清除。
const (
	refreshTokenPrefix = "refresh_token:"
	blacklistPrefix    = "token_blacklist:"
)

// ErrNotFound 表示 key 不存在或已过期。
var ErrNotFound = errors.New("credstore: key not found")

// Store 定义凭证存储契约：带过期时间的 KV 读写删。
type Store interface {
	// SetWithExpiry 写入一个在 ttlSeconds 秒后自动过期的键值。
	SetWithExpiry(ctx context.Context, key, value string, ttlSeconds int64) error
	// Get 读取键值，不存在时返回 ErrNotFound。
	Get(ctx context.Context, key string) (string, error)
	// Delete 删除键，键不存在不视为错误。
	Delete(ctx context.Context, key string) error
}

// RefreshTokenKey 返回某用户刷新令牌的存储 key。
func RefreshTokenKey(userID string) string {
	return refreshTokenPrefix + userID
}

// BlacklistKey 返回某访问令牌黑名单记录的存储 key。
func BlacklistKey(rawToken string) string {
	return blacklistPrefix + rawToken
}

// RedisStore 是基于 go-redis 的 Store 实现。
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore 创建 RedisStore。
func NewRedisStore(rdb *redis.Client) (*RedisStore, error) {
	if rdb == nil {
		return nil, errors.New("redis client is nil")
	}
	return &RedisStore{rdb: rdb}, nil
}

// SetWithExpiry 实现 Store。
func (s *RedisStore) SetWithExpiry(ctx context.Context, key, value string, ttlSeconds int64) error {
	if ttlSeconds <= 0 {
		return fmt.Errorf("invalid ttl: %d", ttlSeconds)
	}
	if err := s.rdb.Set(ctx, key, value, time.Duration(ttlSeconds)*time.Second).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Get 实现 Store。
func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	value, err := s.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get %s: %w", key, err)
	}
	return value, nil
}

// Delete 实现 Store。
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("del %s: %w", key, err)
	}
	return nil
}
