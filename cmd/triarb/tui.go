package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/fd1az/triarb-bot/business/exchange"
	"github.com/fd1az/triarb-bot/business/history"
	"github.com/fd1az/triarb-bot/business/pricing"
	"github.com/fd1az/triarb-bot/internal/monolith"
	"github.com/fd1az/triarb-bot/pkg/ui"
)

// startupStep maps a module to the dashboard startup step it completes.
func startupStep(m monolith.Module) string {
	switch m.(type) {
	case *exchange.Module:
		return "exchange"
	case *pricing.Module:
		return "prices"
	case *history.Module:
		return "storage"
	default:
		return ""
	}
}

// tuiProgress forwards module startup to the dashboard.
func tuiProgress(m monolith.Module, err error, done bool) {
	step := startupStep(m)
	if step == "" {
		if err != nil {
			ui.Send(ui.ErrorMsg{Error: err})
		}
		return
	}

	switch {
	case !done:
		ui.Send(ui.StartupMsg{Step: step, Status: "connecting"})
	case err != nil:
		ui.Send(ui.StartupMsg{Step: step, Status: "failed", Message: err.Error()})
	default:
		ui.Send(ui.StartupMsg{Step: step, Status: "connected"})
	}
}

// runTUI shows the dashboard immediately and starts the modules once the
// welcome screen completes. The bot stops when the dashboard quits.
func runTUI(ctx context.Context, mono app) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	startSignal := make(chan struct{}, 1)
	ui.OnStartModules = func() {
		select {
		case startSignal <- struct{}{}:
		default:
		}
	}

	p := tea.NewProgram(ui.New(mono.Config().Trading.DryRun), tea.WithAltScreen())
	ui.Program = p

	errCh := make(chan error, 1)
	go func() {
		select {
		case <-startSignal:
		case <-ctx.Done():
			errCh <- nil
			p.Quit()
			return
		}

		ui.Send(ui.StartupMsg{Step: "config", Status: "done"})
		if err := startModules(ctx, mono, tuiProgress); err != nil {
			ui.Send(ui.ErrorMsg{Error: err})
			errCh <- err
			return
		}

		err := serve(ctx, mono)
		if err != nil {
			ui.Send(ui.ErrorMsg{Error: err})
		}
		errCh <- err
		p.Quit()
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}

	// The dashboard quit: stop the bot and wait for the final metrics.
	cancel()
	return <-errCh
}
