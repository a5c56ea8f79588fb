// Package app contains the history store port.
package app

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/triarb-bot/business/history/domain"
)

// Store persists trades, opportunities and metrics snapshots. Time ranges
// are half-open: [from, to).
type Store interface {
	SaveTrade(ctx context.Context, t domain.TradeRecord) error
	SaveOpportunity(ctx context.Context, o domain.OpportunityRecord) error
	SaveMetrics(ctx context.Context, m domain.MetricsRecord) error

	// PnLBetween sums the profit of executed trades.
	PnLBetween(ctx context.Context, from, to time.Time) (decimal.Decimal, error)
	// TradeCountBetween counts executed trades.
	TradeCountBetween(ctx context.Context, from, to time.Time) (int, error)

	Statistics(ctx context.Context) (domain.Statistics, error)
	RecentTrades(ctx context.Context, limit int) ([]domain.TradeRecord, error)
	RecentOpportunities(ctx context.Context, limit int) ([]domain.OpportunityRecord, error)

	// PruneBefore deletes trades and opportunities older than cutoff.
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
