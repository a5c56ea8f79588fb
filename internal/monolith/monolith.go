// Package monolith provides the application container and module interface.
package monolith

import (
	"context"
	"errors"
	"sync"

	"github.com/fd1az/triarb-bot/internal/config"
	"github.com/fd1az/triarb-bot/internal/di"
	"github.com/fd1az/triarb-bot/internal/logger"
	"github.com/fd1az/triarb-bot/internal/notify"
)

// Monolith is the main application container providing access to shared infrastructure.
type Monolith interface {
	Config() *config.Config
	Logger() logger.LoggerInterface
	Notifier() notify.Notifier
	Services() di.ServiceRegistry
	// OnClose registers a release function run by Close in reverse order.
	OnClose(fn func() error)
}

// Module represents a bounded context module that can register services and start up.
type Module interface {
	RegisterServices(di.Container) error
	Startup(context.Context, Monolith) error
}

// app implements the Monolith interface.
type app struct {
	config    *config.Config
	logger    logger.LoggerInterface
	notifier  notify.Notifier
	container di.Container

	closeMu  sync.Mutex
	closers  []func() error
	isClosed bool
}

// New creates a new Monolith instance.
func New(cfg *config.Config, log logger.LoggerInterface) (*app, error) {
	notifier, err := notify.New(cfg.Notifications, log)
	if err != nil {
		return nil, err
	}

	container := di.NewContainer()

	// Register global services
	container.Register("config", cfg)
	container.Register("logger", log)
	container.Register("notifier", notifier)

	return &app{
		config:    cfg,
		logger:    log,
		notifier:  notifier,
		container: container,
	}, nil
}

func (a *app) Config() *config.Config {
	return a.config
}

func (a *app) Logger() logger.LoggerInterface {
	return a.logger
}

func (a *app) Notifier() notify.Notifier {
	return a.notifier
}

func (a *app) Services() di.ServiceRegistry {
	return a.container
}

func (a *app) OnClose(fn func() error) {
	a.closeMu.Lock()
	defer a.closeMu.Unlock()
	a.closers = append(a.closers, fn)
}

// RegisterModules registers all provided modules.
func (a *app) RegisterModules(modules ...Module) error {
	for _, m := range modules {
		if err := m.RegisterServices(a.container); err != nil {
			return err
		}
	}
	return nil
}

// StartModules starts all provided modules.
func (a *app) StartModules(ctx context.Context, modules ...Module) error {
	for _, m := range modules {
		if err := m.Startup(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

// Close releases every registered resource, last registered first.
func (a *app) Close() error {
	a.closeMu.Lock()
	defer a.closeMu.Unlock()

	if a.isClosed {
		return nil
	}
	a.isClosed = true

	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
