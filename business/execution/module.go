// Package execution implements the execution bounded context: the
// three-leg order sequence with fill checks, timeouts and reversal.
package execution

import (
	"context"

	exchangeDI "github.com/fd1az/triarb-bot/business/exchange/di"
	"github.com/fd1az/triarb-bot/business/execution/app"
	executionDI "github.com/fd1az/triarb-bot/business/execution/di"
	liquidityDI "github.com/fd1az/triarb-bot/business/liquidity/di"
	"github.com/fd1az/triarb-bot/internal/config"
	"github.com/fd1az/triarb-bot/internal/di"
	"github.com/fd1az/triarb-bot/internal/logger"
	"github.com/fd1az/triarb-bot/internal/monolith"
	"github.com/fd1az/triarb-bot/internal/notify"
)

// Module implements the execution bounded context.
type Module struct{}

// RegisterServices registers the executor.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, executionDI.Executor, func(sr di.ServiceRegistry) *app.Executor {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		notifier := sr.Get("notifier").(notify.Notifier)

		exec, err := app.NewExecutor(
			app.ExecutorConfigFrom(cfg.Execution, cfg.Trading),
			exchangeDI.GetGateway(sr),
			liquidityDI.GetChecker(sr),
			notifier,
			log,
		)
		if err != nil {
			panic("failed to create executor: " + err.Error())
		}
		return exec
	})
	return nil
}

// Startup logs the execution mode.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	cfg := mono.Config()
	executionDI.GetExecutor(mono.Services())

	mode := "LIVE"
	if cfg.Trading.DryRun {
		mode = "DRY RUN"
	}
	mono.Logger().Info(ctx, "execution module started",
		"mode", mode,
		"min_fill_ratio", cfg.Execution.MinFillRatio,
		"single_leg_timeout", cfg.Execution.SingleLegTimeout.String(),
		"full_triangle_timeout", cfg.Execution.FullTriangleTimeout.String())
	return nil
}
