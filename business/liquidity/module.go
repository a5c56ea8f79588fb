// Package liquidity implements the liquidity bounded context: pre-trade
// validation of order-book depth for every leg of a triangle.
package liquidity

import (
	"context"

	exchangeDI "github.com/fd1az/triarb-bot/business/exchange/di"
	"github.com/fd1az/triarb-bot/business/liquidity/app"
	liquidityDI "github.com/fd1az/triarb-bot/business/liquidity/di"
	"github.com/fd1az/triarb-bot/internal/config"
	"github.com/fd1az/triarb-bot/internal/di"
	"github.com/fd1az/triarb-bot/internal/logger"
	"github.com/fd1az/triarb-bot/internal/monolith"
	"github.com/fd1az/triarb-bot/internal/notify"
)

// Module implements the liquidity bounded context.
type Module struct{}

// RegisterServices registers the checker.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, liquidityDI.Checker, func(sr di.ServiceRegistry) *app.Checker {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		notifier := sr.Get("notifier").(notify.Notifier)

		return app.NewChecker(
			app.CheckerConfigFrom(cfg.Liquidity, cfg.Trading),
			exchangeDI.GetGateway(sr),
			notifier,
			log,
		)
	})
	return nil
}

// Startup registers the checker for shutdown.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	checker := liquidityDI.GetChecker(mono.Services())
	mono.OnClose(checker.Close)

	mono.Logger().Info(ctx, "liquidity module started")
	return nil
}
