// Package cache keeps finished PDFs in Redis so repeated conversions of the
// same input skip the browser.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "webpdf:pdf:"

type redisKV interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// PDFCache stores PDFs under keyPrefix with a fixed TTL.
type PDFCache struct {
	client redisKV
	ttl    time.Duration
}

// New returns a cache over client. A non-positive ttl keeps entries for an hour.
func New(client redisKV, ttl time.Duration) *PDFCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &PDFCache{client: client, ttl: ttl}
}

func (c *PDFCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get cached pdf: %w", err)
	}
	return data, true, nil
}

func (c *PDFCache) Set(ctx context.Context, key string, data []byte) error {
	if err := c.client.Set(ctx, keyPrefix+key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("set cached pdf: %w", err)
	}
	return nil
}
