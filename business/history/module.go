// Package history implements the history bounded context: trades,
// opportunities and metrics snapshots, in Postgres or in memory.
package history

import (
	"context"
	"time"

	"github.com/fd1az/triarb-bot/business/history/app"
	historyDI "github.com/fd1az/triarb-bot/business/history/di"
	"github.com/fd1az/triarb-bot/business/history/infra/memory"
	"github.com/fd1az/triarb-bot/business/history/infra/postgres"
	"github.com/fd1az/triarb-bot/internal/config"
	"github.com/fd1az/triarb-bot/internal/di"
	"github.com/fd1az/triarb-bot/internal/logger"
	"github.com/fd1az/triarb-bot/internal/monolith"
)

const connectTimeout = 15 * time.Second

// Module implements the history bounded context.
type Module struct{}

// RegisterServices registers the history store. A configured but
// unreachable database stops startup: the risk limits are computed from it.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, historyDI.Store, func(sr di.ServiceRegistry) app.Store {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		if cfg.Postgres.DSN == "" {
			log.Info(context.Background(), "history kept in memory, no postgres dsn configured")
			return memory.New(0)
		}

		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		defer cancel()

		pool, err := postgres.Connect(ctx, cfg.Postgres)
		if err != nil {
			panic("failed to connect to postgres: " + err.Error())
		}
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			panic("failed to migrate history schema: " + err.Error())
		}
		return postgres.NewStore(pool)
	})

	di.RegisterToken(c, historyDI.Pruner, func(sr di.ServiceRegistry) *app.Pruner {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		return app.NewPruner(historyDI.GetStore(sr), cfg.Postgres.Retention, time.Hour, log)
	})

	return nil
}

// Startup registers the store for shutdown.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	store := historyDI.GetStore(mono.Services())
	if closer, ok := store.(interface{ Close() error }); ok {
		mono.OnClose(closer.Close)
	}

	stats, err := store.Statistics(ctx)
	if err != nil {
		return err
	}
	mono.Logger().Info(ctx, "history module started",
		"postgres", mono.Config().Postgres.DSN != "",
		"total_trades", stats.TotalTrades,
		"total_profit", stats.TotalProfit.String())
	return nil
}
