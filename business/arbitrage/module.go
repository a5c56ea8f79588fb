// Package arbitrage implements the arbitrage bounded context: triangle
// evaluation and the detector loop that drives execution.
package arbitrage

import (
	"context"

	"github.com/fd1az/triarb-bot/business/arbitrage/app"
	arbitrageDI "github.com/fd1az/triarb-bot/business/arbitrage/di"
	"github.com/fd1az/triarb-bot/business/arbitrage/domain"
	"github.com/fd1az/triarb-bot/business/arbitrage/infra"
	exchangeDI "github.com/fd1az/triarb-bot/business/exchange/di"
	executionDI "github.com/fd1az/triarb-bot/business/execution/di"
	historyDI "github.com/fd1az/triarb-bot/business/history/di"
	pricingDI "github.com/fd1az/triarb-bot/business/pricing/di"
	riskDI "github.com/fd1az/triarb-bot/business/risk/di"
	"github.com/fd1az/triarb-bot/internal/config"
	"github.com/fd1az/triarb-bot/internal/di"
	"github.com/fd1az/triarb-bot/internal/logger"
	"github.com/fd1az/triarb-bot/internal/monolith"
)

// Module implements the arbitrage bounded context.
type Module struct{}

// RegisterServices registers the triangles, calculator, reporter and detector.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, arbitrageDI.Triangles, func(sr di.ServiceRegistry) []*domain.Triangle {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		triangles, err := app.LoadTriangles(context.Background(), cfg.Trading.Triangles, log)
		if err != nil {
			panic("failed to load triangles: " + err.Error())
		}
		return triangles
	})

	di.RegisterToken(c, arbitrageDI.Calculator, func(sr di.ServiceRegistry) *app.Calculator {
		cfg := sr.Get("config").(*config.Config)
		return app.NewCalculator(app.CalculatorConfigFrom(cfg.Trading))
	})

	di.RegisterToken(c, arbitrageDI.Reporter, func(sr di.ServiceRegistry) app.Reporter {
		cfg := sr.Get("config").(*config.Config)
		if cfg.TUIMode {
			return infra.NewTUIReporter()
		}
		return infra.NewConsoleReporter()
	})

	di.RegisterToken(c, arbitrageDI.Detector, func(sr di.ServiceRegistry) *app.Detector {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		detector, err := app.NewDetector(
			app.DetectorConfigFrom(cfg),
			arbitrageDI.GetTriangles(sr),
			arbitrageDI.GetCalculator(sr),
			pricingDI.GetPricingService(sr),
			riskDI.GetManager(sr),
			executionDI.GetExecutor(sr),
			exchangeDI.GetGateway(sr),
			historyDI.GetStore(sr),
			arbitrageDI.GetReporter(sr),
			log,
		)
		if err != nil {
			panic("failed to create detector: " + err.Error())
		}
		return detector
	})

	return nil
}

// Startup builds the detector; main decides whether to run the loop or a
// single scan.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	cfg := mono.Config()
	triangles := arbitrageDI.GetTriangles(mono.Services())
	arbitrageDI.GetDetector(mono.Services())

	keys := make([]string, 0, len(triangles))
	for _, t := range triangles {
		keys = append(keys, t.Key())
	}
	mono.Logger().Info(ctx, "arbitrage module started",
		"triangles", keys,
		"initial_capital", cfg.Trading.InitialCapital,
		"min_profit_pct", cfg.Trading.MinProfitThresholdPct,
		"scan_interval", cfg.Trading.ScanInterval.String())
	return nil
}
