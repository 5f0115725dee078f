package redis

import (
	"context"
	"encoding/json"
	"time"

	"approval-workflow/internal/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var Ctx = context.Background()
var RedisClient *redis.Client

func InitRedis(logger *zap.Logger) {
	RedisClient = redis.NewClient(&redis.Options{
		Addr: config.AppConfig.RedisAddress,
	})
	_, err := RedisClient.Ping(Ctx).Result()
	if err != nil {
		logger.Warn("Redis not available. Running without Redis.", zap.Error(err))
		RedisClient = nil
		return
	}

	logger.Info("Redis connected successfully.", zap.String("address", config.AppConfig.RedisAddress))
}

// Cache is a JSON cache with version counters. A Cache without a client
// misses every read and drops every write.
type Cache struct {
	client *redis.Client
	logger *zap.Logger
}

func NewCache(client *redis.Client, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{client: client, logger: logger}
}

func (c *Cache) Enabled() bool {
	return c != nil && c.client != nil
}

// GetVersion returns the counter stored at key, 0 when absent or unreachable.
func (c *Cache) GetVersion(ctx context.Context, key string) int64 {
	if !c.Enabled() {
		return 0
	}
	v, err := c.client.Get(ctx, key).Int64()
	if err != nil && err != redis.Nil {
		c.logger.Warn("cache version read failed", zap.String("key", key), zap.Error(err))
	}
	return v
}

// IncrementVersion bumps the counter so keys built from the old value are never read again.
func (c *Cache) IncrementVersion(ctx context.Context, key string) {
	if !c.Enabled() {
		return
	}
	if err := c.client.Incr(ctx, key).Err(); err != nil {
		c.logger.Warn("cache version bump failed", zap.String("key", key), zap.Error(err))
	}
}

func (c *Cache) Get(ctx context.Context, key string, dest any) (bool, error) {
	if !c.Enabled() {
		return false, nil
	}
	raw, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, err
	}
	return true, nil
}

func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) {
	if !c.Enabled() {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("cache encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, key, raw, ttl).Err(); err != nil {
		c.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// Publish sends payload to a pub/sub channel.
func (c *Cache) Publish(ctx context.Context, channel string, payload []byte) error {
	if !c.Enabled() {
		return nil
	}
	return c.client.Publish(ctx, channel, payload).Err()
}
