package price

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"solana-lp-sync/internal/valuation"
)

// DefaultTTL is how long a cached quote stays valid.
const DefaultTTL = 60 * time.Second

// RedisConfig holds connection parameters for the cache.
type RedisConfig struct {
	Addr       string
	Password   string
	DB         int
	TLSEnabled bool
}

// NewRedisClient connects and pings.
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	opts := &redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	if cfg.TLSEnabled {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return rdb, nil
}

// RedisCache serves quotes from Redis and asks the wrapped oracle only for
// mints missing there.
//
// Key schema:
//
//	price:{mint} - hash with fields "price" (decimal string) and "ts" (unix nanos)
type RedisCache struct {
	rdb    *redis.Client
	next   Oracle
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisCache wraps next with a Redis cache.
func NewRedisCache(rdb *redis.Client, next Oracle, ttl time.Duration, logger *zap.Logger) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisCache{rdb: rdb, next: next, ttl: ttl, logger: logger.Named("price-cache")}
}

func priceKey(mint string) string {
	return "price:" + mint
}

// Prices returns cached quotes and fills the rest from the wrapped oracle.
// A failing cache read degrades to the oracle; a failing write is logged.
func (c *RedisCache) Prices(ctx context.Context, mints []string) (valuation.Prices, error) {
	mints = dedupe(mints)
	out, err := c.get(ctx, mints)
	if err != nil {
		c.logger.Warn("price cache read failed", zap.Error(err))
		out = make(valuation.Prices, len(mints))
	}

	var missing []string
	for _, m := range mints {
		if _, ok := out[m]; !ok {
			missing = append(missing, m)
		}
	}
	if len(missing) == 0 {
		return out, nil
	}

	fresh, err := c.next.Prices(ctx, missing)
	if err != nil {
		return nil, err
	}
	for m, p := range fresh {
		out[m] = p
	}
	if err := c.set(ctx, fresh, time.Now()); err != nil {
		c.logger.Warn("price cache write failed", zap.Error(err))
	}
	return out, nil
}

func (c *RedisCache) get(ctx context.Context, mints []string) (valuation.Prices, error) {
	out := make(valuation.Prices, len(mints))
	if len(mints) == 0 {
		return out, nil
	}

	pipe := c.rdb.Pipeline()
	cmds := make(map[string]*redis.MapStringStringCmd, len(mints))
	for _, m := range mints {
		cmds[m] = pipe.HGetAll(ctx, priceKey(m))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis: get prices pipeline: %w", err)
	}

	for m, cmd := range cmds {
		vals, err := cmd.Result()
		if err != nil || len(vals) == 0 {
			continue
		}
		p, err := decimal.NewFromString(vals["price"])
		if err != nil {
			continue
		}
		out[m] = p
	}
	return out, nil
}

func (c *RedisCache) set(ctx context.Context, prices valuation.Prices, ts time.Time) error {
	if len(prices) == 0 {
		return nil
	}
	pipe := c.rdb.TxPipeline()
	for m, p := range prices {
		key := priceKey(m)
		pipe.HSet(ctx, key, map[string]interface{}{
			"price": p.String(),
			"ts":    strconv.FormatInt(ts.UnixNano(), 10),
		})
		pipe.Expire(ctx, key, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set prices: %w", err)
	}
	return nil
}

var _ Oracle = (*RedisCache)(nil)
