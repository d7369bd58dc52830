package convert

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"

	"webpdf/internal/metrics"
)

func cacheKey(kind Kind, input string) string {
	sum := sha256.Sum256([]byte(string(kind) + "\x00" + input))
	return hex.EncodeToString(sum[:])
}

func (s *Service) cached(ctx context.Context, key string) ([]byte, bool) {
	if s.cache == nil {
		return nil, false
	}
	data, ok, err := s.cache.Get(ctx, key)
	switch {
	case err != nil:
		metrics.CacheResult("error")
		s.logger.Warn("read pdf cache failed", slog.Any("error", err))
		return nil, false
	case !ok || len(data) == 0:
		metrics.CacheResult("miss")
		return nil, false
	default:
		metrics.CacheResult("hit")
		return data, true
	}
}

func (s *Service) store(ctx context.Context, key string, data []byte) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, data); err != nil {
		s.logger.Warn("write pdf cache failed", slog.Any("error", err))
	}
}
