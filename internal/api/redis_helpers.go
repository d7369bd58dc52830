package api

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type redisRateCounter interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// incrWithTTL bumps a fixed-window counter, starting the window on first use.
// A key whose TTL could not be set is removed, otherwise it would never expire.
func incrWithTTL(ctx context.Context, client redisRateCounter, key string, ttl time.Duration) (int64, error) {
	count, err := client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		if err := client.Expire(ctx, key, ttl).Err(); err != nil {
			if delErr := client.Del(ctx, key).Err(); delErr != nil {
				return 0, fmt.Errorf("expire %s: %w (delete also failed: %v)", key, err, delErr)
			}
			return 0, fmt.Errorf("expire %s: %w", key, err)
		}
	}
	return count, nil
}

func jobQuotaKey(clientIP string) string {
	return "webpdf:job_quota:" + clientIP
}
