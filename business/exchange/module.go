// Package exchange implements the exchange bounded context: the resilient
// Binance REST gateway used for depth, metadata and orders.
package exchange

import (
	"context"

	"github.com/fd1az/triarb-bot/business/exchange/app"
	exchangeDI "github.com/fd1az/triarb-bot/business/exchange/di"
	"github.com/fd1az/triarb-bot/business/exchange/infra/binance"
	"github.com/fd1az/triarb-bot/internal/config"
	"github.com/fd1az/triarb-bot/internal/di"
	"github.com/fd1az/triarb-bot/internal/logger"
	"github.com/fd1az/triarb-bot/internal/monolith"
)

// Module implements the exchange bounded context.
type Module struct{}

// RegisterServices registers the exchange gateway with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, exchangeDI.Gateway, func(sr di.ServiceRegistry) app.Gateway {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		client, err := binance.NewClient(cfg.Binance, log)
		if err != nil {
			panic("failed to create binance client: " + err.Error())
		}
		return client
	})

	return nil
}

// Startup checks connectivity. A failed ping is logged, not fatal: the
// client keeps retrying per request and the error rate gates trading.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()
	gw := exchangeDI.GetGateway(mono.Services())

	if closer, ok := gw.(interface{ Close() error }); ok {
		mono.OnClose(closer.Close)
	}

	if err := gw.Ping(ctx); err != nil {
		log.Warn(ctx, "binance ping failed", "error", err)
	} else {
		log.Info(ctx, "binance reachable", "testnet", mono.Config().Binance.Testnet)
	}

	log.Info(ctx, "exchange module started")
	return nil
}
