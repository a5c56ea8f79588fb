// Package ui provides the Bubble Tea TUI for the arbitrage bot.
package ui

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/triarb-bot/business/arbitrage/domain"
	execDomain "github.com/fd1az/triarb-bot/business/execution/domain"
	riskDomain "github.com/fd1az/triarb-bot/business/risk/domain"
	"github.com/fd1az/triarb-bot/pkg/ui/components"
)

// Message types for TUI updates

// ScanMsg is sent after every detector scan that had prices.
type ScanMsg struct {
	Number        int64
	Prices        map[string]decimal.Decimal
	Source        string
	At            time.Time
	Opportunities []*domain.Opportunity
	Threshold     decimal.Decimal
	Decision      riskDomain.Decision
	Elapsed       time.Duration
}

// ExecutionMsg is sent after every execution attempt.
type ExecutionMsg struct {
	Result *execDomain.Result
}

// StatusMsg carries the periodic bot summary.
type StatusMsg struct {
	Stats components.Stats
}

// ConnectionStatusMsg is sent when connection status changes.
type ConnectionStatusMsg struct {
	Name      string
	Connected bool
	Latency   time.Duration
	Detail    string
}

// ErrorMsg is sent when an error occurs.
type ErrorMsg struct {
	Error error
}

// TickMsg is sent periodically for UI updates.
type TickMsg struct{}

// LogMsg is sent to display a log message in the UI.
type LogMsg struct {
	Level   string // "info", "warn", "error"
	Message string
}

// StartupMsg is sent during application startup to show progress.
type StartupMsg struct {
	Step    string // config, exchange, prices, storage
	Status  string // "connecting", "connected", "done", "failed"
	Message string
}
