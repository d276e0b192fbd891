package cache

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/credence-dev/credence/internal/model"
)

// New selects the cache backend once at startup. Preference order: Redis
// when an address is configured and answers a ping, then the layered
// memory+disk cache when a directory is configured, then plain memory.
// A Redis that is configured but unreachable logs a warning and silently
// falls through; callers never see the difference. Returns nil when caching
// is disabled.
func New(cfg model.CacheConfig, logger zerolog.Logger) Cache {
	if !cfg.Enabled {
		return nil
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}

	if cfg.RedisAddr != "" {
		rc, err := NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err == nil {
			logger.Info().Str("addr", cfg.RedisAddr).Msg("cache: using redis backend")
			return rc
		}
		logger.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("cache: redis unreachable, falling back to in-process cache")
	}

	if cfg.Dir != "" {
		return NewLayeredCache(ttl, cfg.Dir, ttl)
	}

	return NewMemoryCache(ttl, 10*time.Minute)
}
