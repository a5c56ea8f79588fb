// Package app contains application services and port definitions for the arbitrage context.
package app

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/triarb-bot/business/arbitrage/domain"
	execApp "github.com/fd1az/triarb-bot/business/execution/app"
	execDomain "github.com/fd1az/triarb-bot/business/execution/domain"
	pricingDomain "github.com/fd1az/triarb-bot/business/pricing/domain"
	riskApp "github.com/fd1az/triarb-bot/business/risk/app"
	riskDomain "github.com/fd1az/triarb-bot/business/risk/domain"
)

// PriceSource returns the current prices of the triangle symbols.
type PriceSource interface {
	Snapshot(ctx context.Context) (pricingDomain.Snapshot, error)
	Health() pricingDomain.FeedHealth
}

// RiskGate decides whether a trade may run and learns from its outcome.
type RiskGate interface {
	ShouldTradeNow(ctx context.Context) riskDomain.Decision
	OnTradeResult(ctx context.Context, pnl decimal.Decimal) error
	CheckAPIErrorRate(ctx context.Context, rate float64) (bool, error)
	AdjustProfitThreshold(base decimal.Decimal) decimal.Decimal
	Snapshot(ctx context.Context) (riskApp.Snapshot, error)
}

// TradeExecutor runs one opportunity through the exchange.
type TradeExecutor interface {
	Execute(ctx context.Context, opp *domain.Opportunity) *execDomain.Result
	Stats() execApp.Stats
}

// ErrorRater reports the exchange request failure rate.
type ErrorRater interface {
	ErrorRate(window time.Duration) float64
}

// ScanReport is the outcome of one detector cycle.
type ScanReport struct {
	Number        int64
	Snapshot      pricingDomain.Snapshot
	Opportunities []*domain.Opportunity
	Threshold     decimal.Decimal
	Decision      riskDomain.Decision
	Elapsed       time.Duration
}

// Best returns the top-ranked opportunity, or nil.
func (r ScanReport) Best() *domain.Opportunity {
	if len(r.Opportunities) == 0 {
		return nil
	}
	return r.Opportunities[0]
}

// Status is the periodic summary of the running bot.
type Status struct {
	Scans         int64
	Opportunities int64
	Executions    int64
	Uptime        time.Duration
	ErrorRate     float64
	Feed          pricingDomain.FeedHealth
	Risk          riskApp.Snapshot
	Stats         execApp.Stats
}

// Reporter displays what the detector sees and does.
type Reporter interface {
	// Start initializes the reporter.
	Start(ctx context.Context) error

	// ReportScan is called after every scan that had prices.
	ReportScan(report ScanReport)

	// ReportExecution is called after every execution attempt.
	ReportExecution(result *execDomain.Result)

	// ReportStatus is called every status_every scans.
	ReportStatus(status Status)

	// Stop gracefully shuts down the reporter.
	Stop() error
}
