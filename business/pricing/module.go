// Package pricing implements the pricing bounded context: live prices for
// the triangle pairs from a WebSocket, REST or Redis source.
package pricing

import (
	"context"
	"time"

	goredis "github.com/redis/go-redis/v9"

	exchangeDI "github.com/fd1az/triarb-bot/business/exchange/di"
	"github.com/fd1az/triarb-bot/business/pricing/app"
	pricingDI "github.com/fd1az/triarb-bot/business/pricing/di"
	"github.com/fd1az/triarb-bot/business/pricing/domain"
	"github.com/fd1az/triarb-bot/business/pricing/infra/binance"
	"github.com/fd1az/triarb-bot/business/pricing/infra/redis"
	"github.com/fd1az/triarb-bot/internal/config"
	"github.com/fd1az/triarb-bot/internal/di"
	"github.com/fd1az/triarb-bot/internal/logger"
	"github.com/fd1az/triarb-bot/internal/monolith"
)

const redisConnectTimeout = 5 * time.Second

// Module implements the pricing bounded context.
type Module struct{}

// RegisterServices registers all pricing services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	// Redis client - optional, shared by the redis source and the mirror
	c.RegisterFactory("pricing:redis", func(sr di.ServiceRegistry) any {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		if cfg.Redis.Addr == "" {
			return nil
		}
		ctx, cancel := context.WithTimeout(context.Background(), redisConnectTimeout)
		defer cancel()

		rdb, err := redis.Connect(ctx, cfg.Redis)
		if err != nil {
			if cfg.Pricing.Source == domain.SourceRedis {
				panic("failed to connect redis price source: " + err.Error())
			}
			log.Warn(ctx, "redis unavailable, price mirror disabled", "error", err)
			return nil
		}
		return rdb
	})

	di.RegisterToken(c, pricingDI.PrimaryFeed, func(sr di.ServiceRegistry) app.Feed {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		switch cfg.Pricing.Source {
		case domain.SourceREST:
			return binance.NewRESTFeed(exchangeDI.GetGateway(sr))
		case domain.SourceRedis:
			rdb := sr.Get("pricing:redis").(*goredis.Client)
			return redis.NewPriceCache(rdb, cfg.Redis.KeyPrefix, cfg.Redis.PriceTTL, cfg.Pricing.StaleAfter)
		}

		feed, err := binance.NewWebSocketFeed(binance.FeedConfig{
			BaseURL:        cfg.Binance.StreamURL(),
			Symbols:        cfg.Trading.Symbols(),
			StaleAfter:     cfg.Pricing.StaleAfter,
			InitialBackoff: cfg.Pricing.InitialBackoff,
			MaxBackoff:     cfg.Pricing.MaxBackoff,
		}, log)
		if err != nil {
			panic("failed to create binance price feed: " + err.Error())
		}
		return feed
	})

	// REST fallback for the WebSocket source only
	di.RegisterToken(c, pricingDI.FallbackFeed, func(sr di.ServiceRegistry) app.Feed {
		cfg := sr.Get("config").(*config.Config)
		if cfg.Pricing.Source != domain.SourceWebSocket {
			return nil
		}
		return binance.NewRESTFeed(exchangeDI.GetGateway(sr))
	})

	di.RegisterToken(c, pricingDI.Mirror, func(sr di.ServiceRegistry) app.Mirror {
		cfg := sr.Get("config").(*config.Config)
		if !cfg.Pricing.MirrorToRedis || cfg.Pricing.Source == domain.SourceRedis {
			return nil
		}
		rdb, ok := sr.Get("pricing:redis").(*goredis.Client)
		if !ok {
			return nil
		}
		return redis.NewPriceCache(rdb, cfg.Redis.KeyPrefix, cfg.Redis.PriceTTL, cfg.Pricing.StaleAfter)
	})

	// PricingService (public - exposed to other modules)
	di.RegisterToken(c, pricingDI.PricingService, func(sr di.ServiceRegistry) *app.Service {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		return app.NewService(app.ServiceConfig{
			Symbols: cfg.Trading.Symbols(),
			Source:  cfg.Pricing.Source,
		},
			pricingDI.GetPrimaryFeed(sr),
			pricingDI.GetFallbackFeed(sr),
			pricingDI.GetMirror(sr),
			log,
		)
	})

	return nil
}

// Startup connects the primary feed.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()

	if rdb, ok := mono.Services().Get("pricing:redis").(*goredis.Client); ok {
		mono.OnClose(rdb.Close)
	}

	primary := pricingDI.GetPrimaryFeed(mono.Services())
	if closer, ok := primary.(interface{ Close() error }); ok {
		if _, isCache := primary.(*redis.PriceCache); !isCache {
			mono.OnClose(closer.Close)
		}
	}

	// Don't fail startup if the stream is unreachable - retry in background
	if connector, ok := primary.(interface{ Connect(context.Context) error }); ok {
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		if err := connector.Connect(connectCtx); err != nil {
			log.Warn(ctx, "price feed connection failed, will retry in background", "error", err)
			go func() {
				for {
					select {
					case <-ctx.Done():
						return
					case <-time.After(5 * time.Second):
						if err := connector.Connect(ctx); err != nil {
							log.Warn(ctx, "price feed retry failed", "error", err)
						} else {
							log.Info(ctx, "price feed connected")
							return
						}
					}
				}
			}()
		}
	}

	log.Info(ctx, "pricing module started", "source", mono.Config().Pricing.Source)
	return nil
}
