package app

import (
	"context"
	"time"

	"github.com/fd1az/triarb-bot/business/pricing/domain"
	"github.com/fd1az/triarb-bot/internal/logger"
)

// ServiceConfig configures the pricing service.
type ServiceConfig struct {
	// Symbols restricts snapshots to the pairs the bot trades.
	Symbols []string
	Source  string
}

// Service produces price snapshots from a primary feed, falling back to a
// secondary feed when the primary errors or has nothing fresh, and mirrors
// every non-empty snapshot.
type Service struct {
	cfg      ServiceConfig
	primary  Feed
	fallback Feed
	mirror   Mirror
	logger   logger.LoggerInterface
	now      func() time.Time
}

// NewService creates a Service. fallback and mirror may be nil.
func NewService(cfg ServiceConfig, primary, fallback Feed, mirror Mirror, log logger.LoggerInterface) *Service {
	return &Service{
		cfg:      cfg,
		primary:  primary,
		fallback: fallback,
		mirror:   mirror,
		logger:   log,
		now:      time.Now,
	}
}

// Snapshot returns the current prices for the configured symbols.
func (s *Service) Snapshot(ctx context.Context) (domain.Snapshot, error) {
	source := s.cfg.Source
	prices, err := s.primary.Prices(ctx)
	filtered := domain.Filter(prices, s.cfg.Symbols)

	if (err != nil || len(filtered) == 0) && s.fallback != nil {
		s.logger.Debug(ctx, "primary price feed unavailable, using fallback",
			"source", source,
			"error", err)

		prices, err = s.fallback.Prices(ctx)
		filtered = domain.Filter(prices, s.cfg.Symbols)
		source = s.fallback.Health().Source
	}
	if err != nil {
		return domain.Snapshot{}, err
	}

	snap := domain.Snapshot{
		Prices:    filtered,
		Timestamp: s.now(),
		Source:    source,
	}

	if s.mirror != nil && !snap.Empty() {
		if err := s.mirror.Publish(ctx, snap); err != nil {
			s.logger.Warn(ctx, "failed to mirror prices", "error", err)
		}
	}

	return snap, nil
}

// Health reports the primary feed.
func (s *Service) Health() domain.FeedHealth {
	return s.primary.Health()
}
