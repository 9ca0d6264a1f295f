package cache

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"pushgate/internal/config"
)

// NewRedisClientFromConfig constructs a redis client from app config.
func NewRedisClientFromConfig(c *config.RedisConfig) *redis.Client {
	if c == nil {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     c.Addr,
		Password: c.Password,
		DB:       c.DB,
	})
}

// DeliveryCache deduplicates webhook redeliveries. Alertmanager retries the
// same payload on slow responses; within the TTL the cached report is
// returned instead of dispatching twice. Everything here is best-effort: a
// missing or unreachable Redis means the payload is simply processed again.
type DeliveryCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewDeliveryCache(rdb *redis.Client, ttl time.Duration) *DeliveryCache {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &DeliveryCache{rdb: rdb, ttl: ttl}
}

// Key fingerprints one delivery by target template and payload content.
func Key(templateID int64, payload string) string {
	sum := md5.Sum([]byte(payload))
	return fmt.Sprintf("pushgate:delivery:%d:%x", templateID, sum)
}

// TryMark marks a delivery as in-flight. It returns false when the key was
// already marked, meaning a duplicate delivery.
func (c *DeliveryCache) TryMark(ctx context.Context, key string) bool {
	if c == nil || c.rdb == nil {
		return true
	}
	ok, err := c.rdb.SetNX(ctx, key, "1", c.ttl).Result()
	if err != nil {
		return true
	}
	return ok
}

// StoreReport caches the finished report under the delivery key.
func (c *DeliveryCache) StoreReport(ctx context.Context, key string, report any) {
	if c == nil || c.rdb == nil {
		return
	}
	data, err := json.Marshal(report)
	if err != nil {
		return
	}
	c.rdb.Set(ctx, key+":report", data, c.ttl)
}

// GetReport loads a cached report for a duplicate delivery. ok is false when
// none is cached.
func (c *DeliveryCache) GetReport(ctx context.Context, key string, dest any) bool {
	if c == nil || c.rdb == nil {
		return false
	}
	data, err := c.rdb.Get(ctx, key+":report").Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(data, dest) == nil
}
