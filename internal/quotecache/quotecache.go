// Package quotecache optionally mirrors the broker's latest quote per
// symbol into Redis, narrowed from a full quote+candle market data cache
// down to a single Set/Get pair. The broker's quote hook calls Set for each
// pushed quote; nothing in this repository calls Get.
package quotecache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"paperbroker/internal/types"
)

// ErrNoQuote is returned when a symbol has no cached quote.
var ErrNoQuote = errors.New("quotecache: no cached quote for symbol")

// Cache provides Redis-backed caching of the broker's latest quotes.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// New dials redisURL and verifies connectivity before returning.
func New(redisURL string, ttl time.Duration) (*Cache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("quotecache: parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("quotecache: connect to redis: %w", err)
	}

	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{client: client, ttl: ttl}, nil
}

func key(symbol string) string {
	return fmt.Sprintf("quote:%s", symbol)
}

// Set caches the latest quote for a symbol.
func (c *Cache) Set(ctx context.Context, quote types.MarketData) error {
	data, err := json.Marshal(quote)
	if err != nil {
		return fmt.Errorf("quotecache: marshal quote: %w", err)
	}
	if err := c.client.Set(ctx, key(quote.Symbol), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("quotecache: set %s: %w", quote.Symbol, err)
	}
	return nil
}

// Get retrieves the cached quote for symbol, returning ErrNoQuote if none
// is cached.
func (c *Cache) Get(ctx context.Context, symbol string) (types.MarketData, error) {
	data, err := c.client.Get(ctx, key(symbol)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return types.MarketData{}, ErrNoQuote
		}
		return types.MarketData{}, fmt.Errorf("quotecache: get %s: %w", symbol, err)
	}

	var quote types.MarketData
	if err := json.Unmarshal(data, &quote); err != nil {
		return types.MarketData{}, fmt.Errorf("quotecache: unmarshal %s: %w", symbol, err)
	}
	return quote, nil
}

// Close releases the underlying Redis client.
func (c *Cache) Close() error {
	return c.client.Close()
}
