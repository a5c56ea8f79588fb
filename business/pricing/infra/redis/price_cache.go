// Package redis stores price snapshots in Redis so other processes (or a
// second bot instance using pricing.source=redis) can read them.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/fd1az/triarb-bot/business/pricing/domain"
	"github.com/fd1az/triarb-bot/internal/apperror"
	"github.com/fd1az/triarb-bot/internal/config"
)

// Connect opens a client for cfg and pings it.
func Connect(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, apperror.New(apperror.CodePriceCacheError,
			apperror.WithCause(err),
			apperror.WithContext("redis ping "+cfg.Addr))
	}
	return rdb, nil
}

// PriceCache keeps the latest snapshot in a hash:
//
//	<prefix>:prices         symbol -> price
//	<prefix>:prices:meta    ts_ms, source
type PriceCache struct {
	rdb        *redis.Client
	pricesKey  string
	metaKey    string
	ttl        time.Duration
	staleAfter time.Duration
	now        func() time.Time

	lastTS  atomic.Int64
	symbols atomic.Int64
}

// NewPriceCache creates a cache over rdb. Snapshots expire after ttl and
// are not served once older than staleAfter.
func NewPriceCache(rdb *redis.Client, prefix string, ttl, staleAfter time.Duration) *PriceCache {
	if prefix == "" {
		prefix = "triarb"
	}
	return &PriceCache{
		rdb:        rdb,
		pricesKey:  prefix + ":prices",
		metaKey:    prefix + ":prices:meta",
		ttl:        ttl,
		staleAfter: staleAfter,
		now:        time.Now,
	}
}

// Publish replaces the cached snapshot atomically.
func (c *PriceCache) Publish(ctx context.Context, snap domain.Snapshot) error {
	fields := make(map[string]interface{}, len(snap.Prices))
	for sym, p := range snap.Prices {
		fields[sym] = p.String()
	}
	if len(fields) == 0 {
		return nil
	}

	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, c.pricesKey)
		pipe.HSet(ctx, c.pricesKey, fields)
		pipe.HSet(ctx, c.metaKey, map[string]interface{}{
			"ts_ms":  snap.Timestamp.UnixMilli(),
			"source": snap.Source,
		})
		if c.ttl > 0 {
			pipe.Expire(ctx, c.pricesKey, c.ttl)
			pipe.Expire(ctx, c.metaKey, c.ttl)
		}
		return nil
	})
	if err != nil {
		return apperror.New(apperror.CodePriceCacheError,
			apperror.WithCause(err),
			apperror.WithContext("publish snapshot"))
	}
	return nil
}

// Prices reads the cached snapshot. A missing or stale snapshot yields an
// empty map.
func (c *PriceCache) Prices(ctx context.Context) (map[string]decimal.Decimal, error) {
	meta, err := c.rdb.HGetAll(ctx, c.metaKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, apperror.New(apperror.CodePriceCacheError,
			apperror.WithCause(err),
			apperror.WithContext("read snapshot meta"))
	}

	tsMs, err := strconv.ParseInt(meta["ts_ms"], 10, 64)
	if err != nil {
		return map[string]decimal.Decimal{}, nil
	}
	ts := time.UnixMilli(tsMs)
	if c.staleAfter > 0 && c.now().Sub(ts) > c.staleAfter {
		return map[string]decimal.Decimal{}, nil
	}

	raw, err := c.rdb.HGetAll(ctx, c.pricesKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, apperror.New(apperror.CodePriceCacheError,
			apperror.WithCause(err),
			apperror.WithContext("read snapshot prices"))
	}

	prices := make(map[string]decimal.Decimal, len(raw))
	for sym, s := range raw {
		p, err := decimal.NewFromString(s)
		if err != nil {
			return nil, apperror.New(apperror.CodePriceCacheError,
				apperror.WithCause(err),
				apperror.WithContext(fmt.Sprintf("price of %s", sym)))
		}
		prices[sym] = p
	}

	c.lastTS.Store(tsMs)
	c.symbols.Store(int64(len(prices)))
	return prices, nil
}

// Health reports the age of the last snapshot read.
func (c *PriceCache) Health() domain.FeedHealth {
	h := domain.FeedHealth{
		Source:        domain.SourceRedis,
		Running:       true,
		CachedSymbols: int(c.symbols.Load()),
	}
	if ms := c.lastTS.Load(); ms > 0 {
		h.LastMessageAt = time.UnixMilli(ms)
		h.LastMessageAge = c.now().Sub(h.LastMessageAt)
		h.Connected = true
	}
	return h
}

// Close closes the underlying client.
func (c *PriceCache) Close() error {
	return c.rdb.Close()
}
