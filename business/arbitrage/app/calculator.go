// Package app contains application services and port definitions for the arbitrage context.
package app

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fd1az/triarb-bot/business/arbitrage/domain"
	"github.com/fd1az/triarb-bot/internal/apperror"
	"github.com/fd1az/triarb-bot/internal/config"
	"github.com/fd1az/triarb-bot/internal/logger"
)

var hundred = decimal.NewFromInt(100)

// CalculatorConfig holds the economic parameters of an evaluation.
type CalculatorConfig struct {
	TakerFee     decimal.Decimal // fraction, 0.001 = 0.1%
	Slippage     decimal.Decimal // fraction applied once to the final amount
	MinProfitPct decimal.Decimal // percent
	MaxTradeSize decimal.Decimal
}

// CalculatorConfigFrom maps trading configuration onto CalculatorConfig.
func CalculatorConfigFrom(cfg config.TradingConfig) CalculatorConfig {
	return CalculatorConfig{
		TakerFee:     cfg.TakerFeeDecimal(),
		Slippage:     cfg.SlippageFraction(),
		MinProfitPct: cfg.MinProfitThresholdDecimal(),
		MaxTradeSize: cfg.MaxTradeSizeDecimal(),
	}
}

// Calculator evaluates triangles against price snapshots.
type Calculator struct {
	cfg CalculatorConfig
	now func() time.Time
}

// NewCalculator creates a Calculator.
func NewCalculator(cfg CalculatorConfig) *Calculator {
	return &Calculator{cfg: cfg, now: time.Now}
}

// Evaluate runs initial through the three legs of t at prices. A missing or
// non-positive price returns an error naming the pair.
func (c *Calculator) Evaluate(t *domain.Triangle, prices map[string]decimal.Decimal, initial decimal.Decimal) (*domain.Opportunity, error) {
	if !initial.IsPositive() {
		return nil, apperror.New(apperror.CodeInvalidTradeSize,
			apperror.WithContext(fmt.Sprintf("initial amount %s", initial)))
	}

	feeMul := decimal.NewFromInt(1).Sub(c.cfg.TakerFee)
	amount := initial
	steps := make([]domain.Step, 0, 3)

	for _, leg := range t.Legs() {
		price, ok := prices[leg.Pair]
		if !ok {
			return nil, apperror.New(apperror.CodeMissingPrice, apperror.WithContext(leg.Pair))
		}
		if !price.IsPositive() {
			return nil, apperror.New(apperror.CodeInvalidPrice,
				apperror.WithContext(fmt.Sprintf("%s=%s", leg.Pair, price)))
		}

		var out decimal.Decimal
		if leg.Direction == domain.DirectionBuy {
			out = amount.Div(price)
		} else {
			out = amount.Mul(price)
		}
		afterFee := out.Mul(feeMul)

		steps = append(steps, domain.Step{
			Pair:           leg.Pair,
			From:           leg.From,
			To:             leg.To,
			Direction:      leg.Direction,
			Price:          price,
			AmountIn:       amount,
			AmountOut:      out,
			Fee:            out.Sub(afterFee),
			AmountAfterFee: afterFee,
		})
		amount = afterFee
	}

	final := amount.Mul(decimal.NewFromInt(1).Sub(c.cfg.Slippage))
	profit := final.Sub(initial)
	profitPct := profit.Div(initial).Mul(hundred)

	return &domain.Opportunity{
		ID:            uuid.NewString(),
		Triangle:      t,
		Timestamp:     c.now(),
		InitialAmount: initial,
		FinalAmount:   final,
		Profit:        profit,
		ProfitPct:     profitPct,
		Steps:         steps,
		Profitable:    profitPct.GreaterThanOrEqual(c.cfg.MinProfitPct),
	}, nil
}

// Scan evaluates every triangle and returns the profitable ones ordered by
// profit percent, highest first. Ties keep input order. Triangles that
// cannot be priced are skipped.
func (c *Calculator) Scan(triangles []*domain.Triangle, prices map[string]decimal.Decimal, initial decimal.Decimal) []*domain.Opportunity {
	out := make([]*domain.Opportunity, 0, len(triangles))
	for _, t := range triangles {
		opp, err := c.Evaluate(t, prices, initial)
		if err != nil || !opp.Profitable {
			continue
		}
		out = append(out, opp)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ProfitPct.GreaterThan(out[j].ProfitPct)
	})
	return out
}

// OptimalTradeSize bounds the trade by available capital, the liquidity-derived
// maximum and the configured trade size cap.
func (c *Calculator) OptimalTradeSize(capital, maxAmount decimal.Decimal) decimal.Decimal {
	return decimal.Min(capital, maxAmount, c.cfg.MaxTradeSize)
}

// LoadTriangles builds the scan set. Invalid entries are logged and dropped.
func LoadTriangles(ctx context.Context, cfgs []config.TriangleConfig, log logger.LoggerInterface) ([]*domain.Triangle, error) {
	out := make([]*domain.Triangle, 0, len(cfgs))
	for _, tc := range cfgs {
		t, err := domain.NewTriangle(tc.Path, tc.Pairs)
		if err != nil {
			log.Error(ctx, "triangle rejected", "path", tc.Path, "pairs", tc.Pairs, "error", err)
			continue
		}
		out = append(out, t)
	}

	if len(out) == 0 {
		return nil, apperror.New(apperror.CodeConfigurationError,
			apperror.WithContext("no valid triangles configured"))
	}
	return out, nil
}
