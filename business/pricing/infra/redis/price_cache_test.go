package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/triarb-bot/business/pricing/domain"
	"github.com/fd1az/triarb-bot/internal/config"
)

func newTestCache(t *testing.T, staleAfter time.Duration) (*PriceCache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := NewPriceCache(rdb, "test", 30*time.Second, staleAfter)
	t.Cleanup(func() { c.Close() })
	return c, mr
}

func TestPriceCache_PublishAndRead(t *testing.T) {
	c, mr := newTestCache(t, 10*time.Second)
	ctx := context.Background()
	now := time.Now()
	c.now = func() time.Time { return now }

	err := c.Publish(ctx, domain.Snapshot{
		Prices: map[string]decimal.Decimal{
			"BTCUSDT": decimal.NewFromInt(50000),
			"ETHBTC":  decimal.RequireFromString("0.06"),
		},
		Timestamp: now,
		Source:    domain.SourceWebSocket,
	})
	require.NoError(t, err)

	assert.Equal(t, "50000", mr.HGet("test:prices", "BTCUSDT"))
	assert.Equal(t, domain.SourceWebSocket, mr.HGet("test:prices:meta", "source"))
	assert.True(t, mr.TTL("test:prices") > 0)

	prices, err := c.Prices(ctx)
	require.NoError(t, err)
	assert.Len(t, prices, 2)
	assert.True(t, prices["ETHBTC"].Equal(decimal.RequireFromString("0.06")))

	h := c.Health()
	assert.True(t, h.Connected)
	assert.Equal(t, 2, h.CachedSymbols)
}

func TestPriceCache_PublishReplaces(t *testing.T) {
	c, _ := newTestCache(t, 0)
	ctx := context.Background()

	require.NoError(t, c.Publish(ctx, domain.Snapshot{
		Prices:    map[string]decimal.Decimal{"BTCUSDT": decimal.NewFromInt(1), "XRPUSDT": decimal.NewFromInt(2)},
		Timestamp: time.Now(),
	}))
	require.NoError(t, c.Publish(ctx, domain.Snapshot{
		Prices:    map[string]decimal.Decimal{"BTCUSDT": decimal.NewFromInt(3)},
		Timestamp: time.Now(),
	}))

	prices, err := c.Prices(ctx)
	require.NoError(t, err)
	assert.Len(t, prices, 1)
	assert.True(t, prices["BTCUSDT"].Equal(decimal.NewFromInt(3)))
}

func TestPriceCache_StaleOrMissing(t *testing.T) {
	c, _ := newTestCache(t, 5*time.Second)
	ctx := context.Background()

	prices, err := c.Prices(ctx)
	require.NoError(t, err)
	assert.Empty(t, prices)

	published := time.Now()
	require.NoError(t, c.Publish(ctx, domain.Snapshot{
		Prices:    map[string]decimal.Decimal{"BTCUSDT": decimal.NewFromInt(1)},
		Timestamp: published,
	}))

	c.now = func() time.Time { return published.Add(6 * time.Second) }
	prices, err = c.Prices(ctx)
	require.NoError(t, err)
	assert.Empty(t, prices)
}

func TestConnect(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	addr := mr.Addr()
	rdb, err := Connect(context.Background(), config.RedisConfig{Addr: addr})
	require.NoError(t, err)
	rdb.Close()

	mr.Close()
	_, err = Connect(context.Background(), config.RedisConfig{Addr: addr})
	assert.Error(t, err)
}
