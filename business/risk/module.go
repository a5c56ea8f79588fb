// Package risk implements the risk bounded context: pauses, daily limits
// and loss streak tracking with persisted state.
package risk

import (
	"context"

	historyDI "github.com/fd1az/triarb-bot/business/history/di"
	"github.com/fd1az/triarb-bot/business/risk/app"
	riskDI "github.com/fd1az/triarb-bot/business/risk/di"
	"github.com/fd1az/triarb-bot/business/risk/infra/filestore"
	"github.com/fd1az/triarb-bot/internal/config"
	"github.com/fd1az/triarb-bot/internal/di"
	"github.com/fd1az/triarb-bot/internal/logger"
	"github.com/fd1az/triarb-bot/internal/monolith"
	"github.com/fd1az/triarb-bot/internal/notify"
)

// Module implements the risk bounded context.
type Module struct{}

// RegisterServices registers the state store and the risk manager.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, riskDI.StateStore, func(sr di.ServiceRegistry) app.StateStore {
		cfg := sr.Get("config").(*config.Config)
		return filestore.New(cfg.Risk.StatePath)
	})

	di.RegisterToken(c, riskDI.Manager, func(sr di.ServiceRegistry) *app.Manager {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		notifier := sr.Get("notifier").(notify.Notifier)

		mgr, err := app.NewManager(context.Background(),
			app.ManagerConfigFrom(cfg.Risk, cfg.Trading),
			riskDI.GetStateStore(sr),
			historyDI.GetStore(sr),
			notifier,
			log,
		)
		if err != nil {
			panic("failed to load risk state: " + err.Error())
		}
		return mgr
	})

	return nil
}

// Startup resolves the manager so an unreadable state file stops the
// process before any scan runs.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()
	mgr := riskDI.GetManager(mono.Services())

	st := mgr.State()
	log.Info(ctx, "risk module started",
		"state_path", mono.Config().Risk.StatePath,
		"consecutive_losses", st.ConsecutiveLosses,
		"paused_until", st.PausedUntil)
	return nil
}
