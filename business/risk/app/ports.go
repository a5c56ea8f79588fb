// Package app contains the risk manager.
package app

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/triarb-bot/business/risk/domain"
)

// StateStore persists the risk state.
type StateStore interface {
	// Load returns the saved state, or the zero State when nothing was saved.
	Load(ctx context.Context) (domain.State, error)
	Save(ctx context.Context, s domain.State) error
}

// History answers the daily P&L and trade count queries, over [from, to).
type History interface {
	PnLBetween(ctx context.Context, from, to time.Time) (decimal.Decimal, error)
	TradeCountBetween(ctx context.Context, from, to time.Time) (int, error)
}
