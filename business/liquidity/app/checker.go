// Package app contains the liquidity checker.
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	arbdomain "github.com/fd1az/triarb-bot/business/arbitrage/domain"
	exdomain "github.com/fd1az/triarb-bot/business/exchange/domain"
	"github.com/fd1az/triarb-bot/business/liquidity/domain"
	"github.com/fd1az/triarb-bot/internal/cache"
	"github.com/fd1az/triarb-bot/internal/config"
	"github.com/fd1az/triarb-bot/internal/logger"
	"github.com/fd1az/triarb-bot/internal/notify"
)

// DepthProvider fetches order-book depth.
type DepthProvider interface {
	GetOrderBook(ctx context.Context, symbol string, limit int) (*exdomain.OrderBook, error)
}

// CheckerConfig tunes the checker.
type CheckerConfig struct {
	DepthLimit             int
	MaxSlippagePct         decimal.Decimal
	MinLiquidityMultiplier decimal.Decimal
	CacheTTL               time.Duration
}

// CheckerConfigFrom reads the liquidity and trading sections.
func CheckerConfigFrom(liq config.LiquidityConfig, trading config.TradingConfig) CheckerConfig {
	return CheckerConfig{
		DepthLimit:             liq.DepthLimit,
		MaxSlippagePct:         trading.MaxSlippagePctDecimal(),
		MinLiquidityMultiplier: decimal.NewFromFloat(liq.MinLiquidityMultiplier),
		CacheTTL:               liq.CacheTTL,
	}
}

const fetchFailed = "order book fetch failed: "

type triangleCheck struct {
	ok      bool
	results []domain.Result
}

// Checker validates that the book can absorb each leg of an opportunity.
type Checker struct {
	cfg      CheckerConfig
	depth    DepthProvider
	cache    *cache.Cache[string, triangleCheck]
	notifier notify.Notifier
	logger   logger.LoggerInterface
}

// NewChecker creates a Checker. Close it to stop the cache janitor.
// notifier may be nil.
func NewChecker(cfg CheckerConfig, depth DepthProvider, notifier notify.Notifier, log logger.LoggerInterface) *Checker {
	if cfg.DepthLimit <= 0 {
		cfg.DepthLimit = 50
	}
	return &Checker{
		cfg:      cfg,
		depth:    depth,
		cache:    cache.New[string, triangleCheck](time.Minute),
		notifier: notifier,
		logger:   log,
	}
}

// Close stops the result cache.
func (c *Checker) Close() error {
	c.cache.Close()
	return nil
}

// CheckLeg walks the book side a taker order of qty would consume.
func (c *Checker) CheckLeg(ctx context.Context, pair string, side exdomain.Side, qty, refPrice decimal.Decimal) domain.Result {
	if !qty.IsPositive() || !refPrice.IsPositive() {
		return domain.Failed(pair, side, qty, refPrice,
			fmt.Sprintf("invalid leg: quantity %s price %s", qty, refPrice))
	}

	book, err := c.depth.GetOrderBook(ctx, pair, c.cfg.DepthLimit)
	if err != nil {
		c.logger.Warn(ctx, "order book fetch failed", "pair", pair, "error", err)
		return domain.Failed(pair, side, qty, refPrice, fetchFailed+err.Error())
	}

	walk := domain.WalkBook(book.LevelsFor(side), side, qty, refPrice)
	return domain.Evaluate(pair, side, qty, refPrice, walk, c.cfg.MaxSlippagePct, c.cfg.MinLiquidityMultiplier)
}

// CheckTriangle checks the legs of opp in order and stops at the first
// insufficient one. Results are cached per triangle for CacheTTL.
func (c *Checker) CheckTriangle(ctx context.Context, opp *arbdomain.Opportunity) (bool, []domain.Result) {
	key := opp.Key()
	if hit, ok := c.cache.Get(ctx, key); ok {
		return hit.ok, hit.results
	}

	ok := true
	results := make([]domain.Result, 0, len(opp.Steps))
	for _, step := range opp.Steps {
		side := exdomain.Side(step.Direction.String())

		qty := step.AmountIn
		if step.Direction == arbdomain.DirectionBuy {
			qty = step.AmountIn.Div(step.Price)
		}

		res := c.CheckLeg(ctx, step.Pair, side, qty, step.Price)
		results = append(results, res)
		if !res.Sufficient {
			ok = false
			c.logger.Info(ctx, "insufficient liquidity",
				"triangle", key,
				"pair", step.Pair,
				"side", string(side),
				"reason", res.Reason)
			c.warnThinBook(ctx, key, res)
			break
		}
	}

	if c.cfg.CacheTTL > 0 {
		c.cache.Set(ctx, key, triangleCheck{ok: ok, results: results}, c.cfg.CacheTTL)
	}
	return ok, results
}

// warnThinBook alerts when a fetched book cannot absorb a leg within the
// depth or slippage limits. Fetch failures are only logged.
func (c *Checker) warnThinBook(ctx context.Context, triangle string, res domain.Result) {
	if c.notifier == nil || strings.HasPrefix(res.Reason, fetchFailed) {
		return
	}
	msg := fmt.Sprintf("Insufficient liquidity on %s %s (triangle %s): %s",
		res.Side, res.Pair, triangle, res.Reason)
	if err := c.notifier.Notify(ctx, notify.LevelWarning, msg); err != nil {
		c.logger.Warn(ctx, "liquidity alert failed", "error", err)
	}
}
