package app

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	arbdomain "github.com/fd1az/triarb-bot/business/arbitrage/domain"
	exdomain "github.com/fd1az/triarb-bot/business/exchange/domain"
	"github.com/fd1az/triarb-bot/business/execution/domain"
	"github.com/fd1az/triarb-bot/internal/apperror"
	"github.com/fd1az/triarb-bot/internal/config"
	"github.com/fd1az/triarb-bot/internal/logger"
	"github.com/fd1az/triarb-bot/internal/notify"
)

const instrumentationName = "github.com/fd1az/triarb-bot/business/execution/app"

// ExecutorConfig holds the execution limits.
type ExecutorConfig struct {
	TakerFee            decimal.Decimal
	MinFillRatio        decimal.Decimal
	SingleLegTimeout    time.Duration
	FullTriangleTimeout time.Duration
	DryRun              bool
}

// ExecutorConfigFrom reads the execution and trading sections.
func ExecutorConfigFrom(exec config.ExecutionConfig, trading config.TradingConfig) ExecutorConfig {
	return ExecutorConfig{
		TakerFee:            trading.TakerFeeDecimal(),
		MinFillRatio:        decimal.NewFromFloat(exec.MinFillRatio),
		SingleLegTimeout:    exec.SingleLegTimeout,
		FullTriangleTimeout: exec.FullTriangleTimeout,
		DryRun:              trading.DryRun,
	}
}

// Stats are the executor's running totals since start.
type Stats struct {
	TotalTrades  int             `json:"total_trades"`
	FailedTrades int             `json:"failed_trades"`
	SuccessRate  decimal.Decimal `json:"success_rate"`
	TotalProfit  decimal.Decimal `json:"total_profit"`
	AvgProfit    decimal.Decimal `json:"avg_profit_per_trade"`
}

type executorMetrics struct {
	executions metric.Int64Counter
	profit     metric.Float64Histogram
}

// Executor runs an opportunity as three sequential market orders.
type Executor struct {
	cfg       ExecutorConfig
	exchange  Exchange
	liquidity LiquidityGate
	notifier  notify.Notifier
	logger    logger.LoggerInterface
	tracer    trace.Tracer
	metrics   executorMetrics
	now       func() time.Time

	mu          sync.Mutex
	total       int
	failed      int
	totalProfit decimal.Decimal
}

// NewExecutor creates an Executor.
func NewExecutor(cfg ExecutorConfig, exchange Exchange, liquidity LiquidityGate, notifier notify.Notifier, log logger.LoggerInterface) (*Executor, error) {
	if cfg.SingleLegTimeout <= 0 {
		cfg.SingleLegTimeout = 5 * time.Second
	}
	if cfg.FullTriangleTimeout <= 0 {
		cfg.FullTriangleTimeout = 15 * time.Second
	}

	meter := otel.Meter(instrumentationName)
	executions, err1 := meter.Int64Counter("execution.count",
		metric.WithDescription("Executions by final state"))
	profit, err2 := meter.Float64Histogram("execution.realized_profit",
		metric.WithDescription("Realized profit per execution in the start asset"))
	if err := errors.Join(err1, err2); err != nil {
		return nil, fmt.Errorf("failed to create executor metrics: %w", err)
	}

	return &Executor{
		cfg:       cfg,
		exchange:  exchange,
		liquidity: liquidity,
		notifier:  notifier,
		logger:    log,
		tracer:    otel.Tracer(instrumentationName),
		metrics:   executorMetrics{executions: executions, profit: profit},
		now:       time.Now,
	}, nil
}

// Execute runs opp end to end and never returns an error: every outcome,
// including rejection and failure, is described by the result.
func (e *Executor) Execute(ctx context.Context, opp *arbdomain.Opportunity) *domain.Result {
	start := e.now()
	res := domain.NewResult(uuid.NewString(), start)
	res.OpportunityID = opp.ID
	res.TriangleKey = opp.Key()
	res.InitialAmount = opp.InitialAmount
	res.ExpectedProfit = opp.Profit
	if opp.Triangle != nil {
		res.Pairs = opp.Triangle.Pairs()
		res.StartAsset = opp.Triangle.StartAsset()
	}

	ctx, span := e.tracer.Start(ctx, "execution.execute",
		trace.WithAttributes(
			attribute.String("triangle", res.TriangleKey),
			attribute.String("execution_id", res.ID),
			attribute.Bool("dry_run", e.cfg.DryRun),
		))
	defer span.End()

	defer func() {
		res.Elapsed = e.now().Sub(start)
		e.record(ctx, res)
		span.SetAttributes(attribute.String("state", string(res.State)))
		if !res.Success {
			span.SetStatus(codes.Error, res.Error)
		}
	}()

	e.transition(ctx, res, domain.StateLiquidityCheck, "")
	ok, checks := e.liquidity.CheckTriangle(ctx, opp)
	res.Liquidity = checks
	if !ok {
		reason := "insufficient liquidity"
		if n := len(checks); n > 0 && checks[n-1].Reason != "" {
			reason = checks[n-1].Reason
		}
		res.Fail(domain.FailureLiquidity, apperror.New(apperror.CodeInsufficientLiquidity,
			apperror.WithContext(reason)))
		e.transition(ctx, res, domain.StateRejected, reason)
		return res
	}

	e.transition(ctx, res, domain.StateExecuting, "")

	if e.cfg.DryRun {
		res.Simulated = true
		res.Success = true
		res.FinalAmount = opp.FinalAmount
		res.RealizedProfit = opp.Profit
		e.transition(ctx, res, domain.StateSucceeded, "simulated")
		e.logger.Info(ctx, "execution simulated",
			"triangle", res.TriangleKey,
			"expected_profit", opp.Profit.String(),
			"profit_pct", opp.ProfitPct.StringFixed(4))
		return res
	}

	ledger := NewLedger(res.StartAsset, opp.InitialAmount, e.cfg.TakerFee)
	e.runLegs(ctx, res, opp, ledger, start)

	if res.FailureKind != domain.FailureNone {
		e.transition(ctx, res, domain.StateFailed, res.Error)
		if res.OrdersPlaced() {
			e.transition(ctx, res, domain.StateReversing, "")
			e.reverse(ctx, res, opp, ledger)
			e.transition(ctx, res, domain.StateReversed, fmt.Sprintf("%d failed reversals", len(res.FailedReversals())))
		}
	} else {
		res.Success = true
		e.transition(ctx, res, domain.StateSucceeded, "")
	}

	res.FinalAmount = ledger.Balance(res.StartAsset)
	res.RealizedProfit = res.FinalAmount.Sub(opp.InitialAmount)
	if len(res.FailedReversals()) > 0 {
		res.Stranded = stranded(ledger, res.StartAsset)
	}
	e.report(ctx, res)
	return res
}

// runLegs places the forward orders until one fails. Each leg is sized
// from what the ledger actually holds of the leg's input asset.
func (e *Executor) runLegs(ctx context.Context, res *domain.Result, opp *arbdomain.Opportunity, ledger *Ledger, start time.Time) {
	legs := opp.Triangle.Legs()

	for i, leg := range legs {
		remaining := e.cfg.FullTriangleTimeout - e.now().Sub(start)
		if remaining <= 0 {
			res.Fail(domain.FailureBudget, apperror.New(apperror.CodeTriangleTimeout,
				apperror.WithContext(fmt.Sprintf("budget %s exhausted before leg %d", e.cfg.FullTriangleTimeout, i+1))))
			return
		}

		price := opp.Steps[i].Price
		side := exdomain.Side(leg.Direction.String())

		metaCtx, cancel := context.WithTimeout(ctx, min(e.cfg.SingleLegTimeout, remaining))
		filters, err := e.exchange.SymbolFilters(metaCtx, leg.Pair)
		cancel()
		if err != nil {
			res.Fail(domain.FailureMetadata, fmt.Errorf("leg %d %s: %w", i+1, leg.Pair, err))
			return
		}

		held := ledger.Balance(leg.From)
		raw := held
		if side == exdomain.SideBuy {
			raw = held.Div(price)
		}
		qty, err := filters.FormatQuantity(raw, price)
		if err != nil {
			res.Fail(domain.FailureQuantity, fmt.Errorf("leg %d: %w", i+1, err))
			return
		}

		// metadata lookups spend the same budget as orders
		remaining = e.cfg.FullTriangleTimeout - e.now().Sub(start)
		if remaining <= 0 {
			res.Fail(domain.FailureBudget, apperror.New(apperror.CodeTriangleTimeout,
				apperror.WithContext(fmt.Sprintf("budget %s exhausted before placing leg %d", e.cfg.FullTriangleTimeout, i+1))))
			return
		}
		wait := min(e.cfg.SingleLegTimeout, remaining)
		rec := domain.Leg{Index: i, Pair: leg.Pair, Side: string(side), RequestedQty: qty}

		sent := e.now()
		order, err := e.placeOrder(ctx, leg.Pair, side, qty, wait)
		rec.Latency = e.now().Sub(sent)
		if err != nil {
			rec.Error = err.Error()
			res.Legs = append(res.Legs, rec)
			kind := domain.FailureOrder
			if apperror.HasCode(err, apperror.CodeLegTimeout) {
				kind = domain.FailureTimeout
			}
			res.Fail(kind, fmt.Errorf("leg %d %s %s: %w", i+1, side, leg.Pair, err))
			return
		}

		rec.OrderID = order.OrderID
		rec.ExecutedQty = order.ExecutedQty
		rec.AvgPrice = order.AvgPrice
		rec.FillRatio = order.FillRatio()
		res.Legs = append(res.Legs, rec)

		if order.Filled() {
			ledger.Apply(side, leg.Base, leg.Quote, order.ExecutedQty, order.AvgPrice)
		}

		e.logger.Info(ctx, "leg filled",
			"execution_id", res.ID,
			"leg", i+1,
			"pair", leg.Pair,
			"side", string(side),
			"requested", qty.String(),
			"executed", order.ExecutedQty.String(),
			"avg_price", order.AvgPrice.String(),
			"latency_ms", rec.Latency.Milliseconds())

		if rec.FillRatio.LessThan(e.cfg.MinFillRatio) {
			res.Fail(domain.FailureFillRatio, apperror.New(apperror.CodeFillRatioTooLow,
				apperror.WithContext(fmt.Sprintf("leg %d %s fill ratio %s < %s",
					i+1, leg.Pair, rec.FillRatio.StringFixed(3), e.cfg.MinFillRatio.StringFixed(3)))))
			return
		}
	}
}

// reverse unwinds every filled forward leg, last first, with the opposite
// side and the executed quantity. Failures are recorded and not retried.
func (e *Executor) reverse(ctx context.Context, res *domain.Result, opp *arbdomain.Opportunity, ledger *Ledger) {
	legs := opp.Triangle.Legs()

	for i := len(res.Legs) - 1; i >= 0; i-- {
		fwd := res.Legs[i]
		if !fwd.Filled() {
			continue
		}
		leg := legs[fwd.Index]
		side := exdomain.Side(fwd.Side).Opposite()

		rec := domain.Leg{Index: fwd.Index, Pair: fwd.Pair, Side: string(side), Reversal: true, RequestedQty: fwd.ExecutedQty}

		sent := e.now()
		order, err := e.placeOrder(ctx, fwd.Pair, side, fwd.ExecutedQty, e.cfg.SingleLegTimeout)
		rec.Latency = e.now().Sub(sent)
		if err != nil {
			rec.Error = err.Error()
			res.Reversals = append(res.Reversals, rec)
			e.logger.Error(ctx, "reversal failed",
				"execution_id", res.ID,
				"pair", fwd.Pair,
				"side", string(side),
				"qty", fwd.ExecutedQty.String(),
				"error", err)
			continue
		}

		rec.OrderID = order.OrderID
		rec.ExecutedQty = order.ExecutedQty
		rec.AvgPrice = order.AvgPrice
		rec.FillRatio = order.FillRatio()
		res.Reversals = append(res.Reversals, rec)

		if order.Filled() {
			ledger.Apply(side, leg.Base, leg.Quote, order.ExecutedQty, order.AvgPrice)
		}
		e.logger.Warn(ctx, "leg reversed",
			"execution_id", res.ID,
			"pair", fwd.Pair,
			"side", string(side),
			"executed", order.ExecutedQty.String(),
			"avg_price", order.AvgPrice.String())
	}
}

type orderOutcome struct {
	order *exdomain.OrderResult
	err   error
}

// placeOrder waits at most wait for the order. The call runs on a context
// without cancellation so an in-flight market order is never abandoned
// half-sent; a result arriving after the wait is logged as an orphan.
func (e *Executor) placeOrder(ctx context.Context, symbol string, side exdomain.Side, qty decimal.Decimal, wait time.Duration) (*exdomain.OrderResult, error) {
	done := make(chan orderOutcome, 1)
	orderCtx := context.WithoutCancel(ctx)

	go func() {
		order, err := e.exchange.PlaceMarketOrder(orderCtx, symbol, side, qty)
		done <- orderOutcome{order: order, err: err}
	}()

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case out := <-done:
		if out.err == nil && out.order == nil {
			return nil, apperror.New(apperror.CodeMalformedOrderResponse,
				apperror.WithContext(symbol+": empty order result"))
		}
		return out.order, out.err
	case <-timer.C:
		go e.watchOrphan(orderCtx, symbol, side, qty, done)
		return nil, apperror.New(apperror.CodeLegTimeout,
			apperror.WithContext(fmt.Sprintf("%s %s %s: no result after %s", side, qty, symbol, wait)))
	}
}

func (e *Executor) watchOrphan(ctx context.Context, symbol string, side exdomain.Side, qty decimal.Decimal, done <-chan orderOutcome) {
	out := <-done
	if out.err != nil || out.order == nil || !out.order.Filled() {
		e.logger.Warn(ctx, "timed out order finished without fill", "symbol", symbol, "side", string(side), "error", out.err)
		return
	}

	e.logger.Error(ctx, "orphan fill after leg timeout",
		"symbol", symbol,
		"side", string(side),
		"requested", qty.String(),
		"executed", out.order.ExecutedQty.String(),
		"order_id", out.order.OrderID)
	e.alert(ctx, notify.LevelEmergency, fmt.Sprintf("Orphan fill on %s %s: %s executed after timeout (order %d)",
		side, symbol, out.order.ExecutedQty, out.order.OrderID))
}

func (e *Executor) transition(ctx context.Context, res *domain.Result, to domain.State, note string) {
	if err := res.Transition(to, e.now(), note); err != nil {
		e.logger.Error(ctx, "execution state machine violation", "execution_id", res.ID, "error", err)
	}
}

func (e *Executor) record(ctx context.Context, res *domain.Result) {
	e.metrics.executions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("state", string(res.State)),
		attribute.Bool("simulated", res.Simulated)))

	if res.State == domain.StateRejected {
		return
	}

	profit, _ := res.RealizedProfit.Float64()
	e.metrics.profit.Record(ctx, profit)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.total++
	if !res.Success {
		e.failed++
	}
	e.totalProfit = e.totalProfit.Add(res.RealizedProfit)
}

// report logs the outcome and alerts on failures.
func (e *Executor) report(ctx context.Context, res *domain.Result) {
	if res.Success {
		e.logger.Info(ctx, "triangle executed",
			"execution_id", res.ID,
			"triangle", res.TriangleKey,
			"realized_profit", res.RealizedProfit.String(),
			"expected_profit", res.ExpectedProfit.String())
		e.alert(ctx, notify.LevelInfo, fmt.Sprintf("Triangle %s executed, profit %s %s",
			res.TriangleKey, res.RealizedProfit.StringFixed(4), res.StartAsset))
		return
	}

	e.logger.Error(ctx, "triangle execution failed",
		"execution_id", res.ID,
		"triangle", res.TriangleKey,
		"failure", string(res.FailureKind),
		"error", res.Error,
		"realized_profit", res.RealizedProfit.String())

	if !res.OrdersPlaced() {
		return
	}

	if failed := res.FailedReversals(); len(failed) > 0 {
		stuck := make([]string, 0, len(res.Stranded))
		for _, asset := range slices.Sorted(maps.Keys(res.Stranded)) {
			stuck = append(stuck, asset+"="+res.Stranded[asset].String())
		}
		e.alert(ctx, notify.LevelEmergency, fmt.Sprintf("Triangle %s: %d reversal(s) failed, holding %s. %s",
			res.TriangleKey, len(failed), strings.Join(stuck, ", "), res.Error))
		return
	}
	e.alert(ctx, notify.LevelCritical, fmt.Sprintf("Triangle %s failed and was reversed (%s), P&L %s %s",
		res.TriangleKey, res.FailureKind, res.RealizedProfit.StringFixed(4), res.StartAsset))
}

// stranded returns the positive balances held outside the start asset.
func stranded(ledger *Ledger, startAsset string) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal)
	for _, asset := range ledger.Assets() {
		if bal := ledger.Balance(asset); asset != startAsset && bal.IsPositive() {
			out[asset] = bal
		}
	}
	return out
}

func (e *Executor) alert(ctx context.Context, level notify.Level, msg string) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.Notify(ctx, level, msg); err != nil {
		e.logger.Warn(ctx, "execution alert failed", "error", err)
	}
}

// Stats returns the running totals. Rejected opportunities are not counted.
func (e *Executor) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := Stats{
		TotalTrades:  e.total,
		FailedTrades: e.failed,
		SuccessRate:  decimal.Zero,
		TotalProfit:  e.totalProfit,
		AvgProfit:    decimal.Zero,
	}
	if e.total > 0 {
		n := decimal.NewFromInt(int64(e.total))
		s.SuccessRate = decimal.NewFromInt(int64(e.total - e.failed)).Div(n).Mul(decimal.NewFromInt(100))
		s.AvgProfit = e.totalProfit.Div(n)
	}
	return s
}
