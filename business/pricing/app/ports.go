// Package app contains application services and port definitions for the pricing context.
package app

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/fd1az/triarb-bot/business/pricing/domain"
)

// Feed supplies current prices keyed by pair symbol.
type Feed interface {
	// Prices returns the latest prices. Stale entries are left out; an
	// empty map means nothing fresh is available.
	Prices(ctx context.Context) (map[string]decimal.Decimal, error)

	// Health reports the feed's connection state.
	Health() domain.FeedHealth
}

// Mirror publishes snapshots for other processes to read.
type Mirror interface {
	Publish(ctx context.Context, snap domain.Snapshot) error
}
