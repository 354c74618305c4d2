package market

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/autofinance/autofinance/internal/metrics"
)

// QuoteCache provides redis-based caching for live quotes. Keys carry the
// current TTL bucket so every entry expires at the bucket edge and all
// callers inside one bucket share the same quote.
type QuoteCache struct {
	rdb        *metrics.RedisMetrics
	ttlSeconds int64
}

// NewQuoteCache creates a quote cache.
// If client is nil, returns nil (the cache is optional).
func NewQuoteCache(client *redis.Client, ttlSeconds int) *QuoteCache {
	if client == nil {
		return nil
	}
	if ttlSeconds <= 0 {
		ttlSeconds = 60
	}
	return &QuoteCache{
		rdb:        metrics.NewRedisMetrics(client),
		ttlSeconds: int64(ttlSeconds),
	}
}

func (c *QuoteCache) key(symbol string) string {
	bucket := time.Now().Unix() / c.ttlSeconds
	return fmt.Sprintf("autofinance:quote:%s:%d", symbol, bucket)
}

// Get retrieves a cached quote for the current bucket.
// Returns nil and false on miss or any cache error.
func (c *QuoteCache) Get(ctx context.Context, symbol string) (*Quote, bool) {
	if c == nil {
		return nil, false
	}

	cacheCtx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()

	cached, err := c.rdb.Get(cacheCtx, c.key(symbol))
	if err != nil {
		if err != redis.Nil {
			log.Debug().Err(err).Str("symbol", symbol).Msg("Quote cache get error - treating as miss")
		}
		return nil, false
	}

	var q Quote
	if err := json.Unmarshal([]byte(cached), &q); err != nil {
		log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to unmarshal cached quote")
		return nil, false
	}
	return &q, true
}

// Set stores a quote under the current bucket key
func (c *QuoteCache) Set(ctx context.Context, q *Quote) error {
	if c == nil {
		return fmt.Errorf("cache not initialized")
	}

	data, err := json.Marshal(q)
	if err != nil {
		return fmt.Errorf("failed to marshal quote: %w", err)
	}

	cacheCtx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()

	ttl := time.Duration(c.ttlSeconds) * time.Second
	if err := c.rdb.Set(cacheCtx, c.key(q.Symbol), data, ttl); err != nil {
		log.Warn().Err(err).Str("symbol", q.Symbol).Msg("Failed to cache quote")
		return err
	}
	return nil
}
