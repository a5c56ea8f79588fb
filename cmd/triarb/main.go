// Package main is the entry point for the triangular arbitrage bot.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/fd1az/triarb-bot/business/arbitrage"
	arbitrageDI "github.com/fd1az/triarb-bot/business/arbitrage/di"
	"github.com/fd1az/triarb-bot/business/exchange"
	"github.com/fd1az/triarb-bot/business/execution"
	"github.com/fd1az/triarb-bot/business/history"
	historyDI "github.com/fd1az/triarb-bot/business/history/di"
	"github.com/fd1az/triarb-bot/business/liquidity"
	"github.com/fd1az/triarb-bot/business/pricing"
	"github.com/fd1az/triarb-bot/business/risk"
	"github.com/fd1az/triarb-bot/internal/apm"
	"github.com/fd1az/triarb-bot/internal/config"
	"github.com/fd1az/triarb-bot/internal/health"
	"github.com/fd1az/triarb-bot/internal/logger"
	"github.com/fd1az/triarb-bot/internal/metrics"
	"github.com/fd1az/triarb-bot/internal/monolith"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

const shutdownTimeout = 10 * time.Second

type options struct {
	configPath     string
	cli            bool
	scan           bool
	testConnection bool
	resetRisk      bool
	live           bool
}

// tui reports whether the dashboard owns the terminal.
func (o options) tui() bool {
	return !o.cli && !o.scan && !o.testConnection && !o.resetRisk
}

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	var opts options
	flag.StringVar(&opts.configPath, "config", "", "Path to configuration file")
	flag.BoolVar(&opts.cli, "cli", false, "Run in CLI mode with console output (no TUI)")
	flag.BoolVar(&opts.scan, "scan", false, "Run a single scan, print the top opportunities and exit")
	flag.BoolVar(&opts.testConnection, "test-connection", false, "Check exchange connectivity, prices and balances")
	flag.BoolVar(&opts.resetRisk, "reset-risk", false, "Clear the persisted pause and loss streak")
	flag.BoolVar(&opts.live, "live", false, "Place real orders (overrides trading.dry_run)")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("triarb-bot %s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if opts.live {
		cfg.Trading.DryRun = false
	}
	cfg.TUIMode = opts.tui()

	var out io.Writer = os.Stderr
	if cfg.TUIMode {
		out = io.Discard
	}
	log := logger.New(out, logger.ParseLevel(cfg.App.LogLevel), cfg.App.Name, nil)

	switch {
	case opts.resetRisk:
		return resetRisk(ctx, cfg)
	case opts.testConnection:
		return testConnection(ctx, cfg, log)
	}

	log.Info(ctx, "starting triangular arbitrage bot",
		"version", version,
		"environment", cfg.App.Environment,
		"dry_run", cfg.Trading.DryRun)

	if cfg.Telemetry.Enabled {
		tp, err := apm.NewTraceProvider(cfg.Telemetry, log)
		if err != nil {
			return err
		}
		defer tp.Stop()

		mp, err := metrics.NewMetricProvider(cfg.Telemetry)
		if err != nil {
			return err
		}
		defer mp.Shutdown(context.Background())
	}

	mono, err := monolith.New(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create monolith: %w", err)
	}
	defer mono.Close()

	if err := mono.RegisterModules(modules()...); err != nil {
		return fmt.Errorf("failed to register modules: %w", err)
	}

	if opts.scan {
		if err := startModules(ctx, mono, nil); err != nil {
			return err
		}
		return scanOnce(ctx, mono, os.Stdout)
	}

	if cfg.TUIMode {
		return runTUI(ctx, mono)
	}

	if err := startModules(ctx, mono, nil); err != nil {
		return err
	}
	return serve(ctx, mono)
}

// modules lists the bounded contexts in dependency order.
func modules() []monolith.Module {
	return []monolith.Module{
		&exchange.Module{},
		&pricing.Module{},
		&liquidity.Module{},
		&history.Module{},
		&risk.Module{},
		&execution.Module{},
		&arbitrage.Module{},
	}
}

type app interface {
	monolith.Monolith
	StartModules(ctx context.Context, modules ...monolith.Module) error
}

// startModules starts every module, calling progress before and after each
// one. Factories panic on fatal setup errors; the panic is returned as an
// error so the dashboard can show it.
func startModules(ctx context.Context, mono app, progress func(m monolith.Module, err error, done bool)) (err error) {
	for _, m := range modules() {
		if progress != nil {
			progress(m, nil, false)
		}
		err = startModule(ctx, mono, m)
		if progress != nil {
			progress(m, err, true)
		}
		if err != nil {
			return fmt.Errorf("failed to start modules: %w", err)
		}
	}
	return nil
}

func startModule(ctx context.Context, mono app, m monolith.Module) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%T: %v", m, r)
		}
	}()
	return mono.StartModules(ctx, m)
}

// serve runs the detector and the background servers until ctx is done or
// one of them fails.
func serve(ctx context.Context, mono monolith.Monolith) error {
	cfg := mono.Config()
	log := mono.Logger()
	detector := arbitrageDI.GetDetector(mono.Services())

	g, gctx := errgroup.WithContext(ctx)

	healthServer := health.NewServer(cfg.Health.Port, version)
	registerStatus(healthServer, mono)
	g.Go(func() error {
		log.Info(gctx, "health server started", "port", cfg.Health.Port)
		if err := healthServer.Run(gctx); err != nil {
			log.Warn(gctx, "health server stopped", "error", err)
		}
		return nil
	})

	if cfg.Telemetry.Enabled {
		metricsServer := metrics.NewServer(cfg.Telemetry.PrometheusPort, log)
		g.Go(func() error {
			if err := metricsServer.Run(gctx); err != nil {
				log.Warn(gctx, "metrics server stopped", "error", err)
			}
			return nil
		})
	}

	pruner := historyDI.GetPruner(mono.Services())
	g.Go(func() error {
		return pruner.Run(gctx)
	})

	g.Go(func() error {
		log.Info(gctx, "all modules started, beginning arbitrage detection")
		return detector.Run(gctx)
	})

	err := g.Wait()

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if stopErr := detector.Stop(stopCtx); stopErr != nil {
		log.Error(stopCtx, "error stopping detector", "error", stopErr)
	}

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
