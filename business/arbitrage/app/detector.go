package app

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/fd1az/triarb-bot/business/arbitrage/domain"
	execDomain "github.com/fd1az/triarb-bot/business/execution/domain"
	historyApp "github.com/fd1az/triarb-bot/business/history/app"
	historyDomain "github.com/fd1az/triarb-bot/business/history/domain"
	"github.com/fd1az/triarb-bot/internal/config"
	"github.com/fd1az/triarb-bot/internal/logger"
)

const instrumentationName = "github.com/fd1az/triarb-bot/business/arbitrage/app"

// Reasons recorded on opportunities that were not executed. Risk blocks are
// recorded with the risk BlockReason.
const (
	ReasonLowerRanked       = "lower_ranked"
	ReasonBelowThreshold    = "below_risk_threshold"
	ReasonInsufficientDepth = "insufficient_liquidity"
	ReasonExecutionFailed   = "execution_failed"
)

// DetectorConfig holds configuration for the arbitrage detector.
type DetectorConfig struct {
	InitialCapital decimal.Decimal
	MinProfitPct   decimal.Decimal
	ScanInterval   time.Duration
	StatusEvery    int
	StaleAfter     time.Duration
	ErrorWindow    time.Duration
}

// DetectorConfigFrom maps the trading, pricing and binance sections.
func DetectorConfigFrom(cfg *config.Config) DetectorConfig {
	return DetectorConfig{
		InitialCapital: cfg.Trading.InitialCapitalDecimal(),
		MinProfitPct:   cfg.Trading.MinProfitThresholdDecimal(),
		ScanInterval:   cfg.Trading.ScanInterval,
		StatusEvery:    cfg.Trading.StatusEvery,
		StaleAfter:     cfg.Pricing.StaleAfter,
		ErrorWindow:    cfg.Binance.ErrorWindow,
	}
}

type detectorMetrics struct {
	scans         metric.Int64Counter
	opportunities metric.Int64Counter
}

// Detector runs the decision loop: scan, record, gate, execute, learn,
// report. One cycle at a time; executions never overlap.
type Detector struct {
	cfg        DetectorConfig
	triangles  []*domain.Triangle
	calculator *Calculator
	prices     PriceSource
	risk       RiskGate
	executor   TradeExecutor
	errRate    ErrorRater
	history    historyApp.Store
	reporter   Reporter
	logger     logger.LoggerInterface
	metrics    detectorMetrics
	now        func() time.Time

	startedAt     time.Time
	scans         atomic.Int64
	opportunities atomic.Int64
	executions    atomic.Int64
}

// NewDetector creates a new arbitrage Detector.
func NewDetector(
	cfg DetectorConfig,
	triangles []*domain.Triangle,
	calculator *Calculator,
	prices PriceSource,
	risk RiskGate,
	executor TradeExecutor,
	errorRater ErrorRater,
	history historyApp.Store,
	reporter Reporter,
	log logger.LoggerInterface,
) (*Detector, error) {
	if cfg.ScanInterval <= 0 {
		cfg.ScanInterval = time.Second
	}

	meter := otel.Meter(instrumentationName)
	scans, err1 := meter.Int64Counter("detector.scans",
		metric.WithDescription("Detector scan cycles"))
	opps, err2 := meter.Int64Counter("detector.opportunities",
		metric.WithDescription("Profitable opportunities found"))
	if err := errors.Join(err1, err2); err != nil {
		return nil, fmt.Errorf("failed to create detector metrics: %w", err)
	}

	return &Detector{
		cfg:        cfg,
		triangles:  triangles,
		calculator: calculator,
		prices:     prices,
		risk:       risk,
		executor:   executor,
		errRate:    errorRater,
		history:    history,
		reporter:   reporter,
		logger:     log,
		metrics:    detectorMetrics{scans: scans, opportunities: opps},
		now:        time.Now,
	}, nil
}

// Run starts the reporter and loops until ctx is cancelled.
func (d *Detector) Run(ctx context.Context) error {
	d.startedAt = d.now()
	d.logger.Info(ctx, "starting arbitrage detector",
		"triangles", len(d.triangles),
		"initial_capital", d.cfg.InitialCapital.String(),
		"min_profit_pct", d.cfg.MinProfitPct.String(),
		"scan_interval", d.cfg.ScanInterval.String())

	if err := d.reporter.Start(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(d.cfg.ScanInterval)
	defer ticker.Stop()

	for {
		d.Cycle(ctx)

		select {
		case <-ctx.Done():
			d.logger.Info(ctx, "detector stopping", "reason", ctx.Err())
			return nil
		case <-ticker.C:
		}
	}
}

// Scan evaluates every triangle against the current prices without
// recording or executing anything. An empty or stale snapshot yields a
// report with no opportunities.
func (d *Detector) Scan(ctx context.Context) (ScanReport, error) {
	start := d.now()
	snap, err := d.prices.Snapshot(ctx)
	if err != nil {
		return ScanReport{}, err
	}

	report := ScanReport{Snapshot: snap}
	if snap.Empty() {
		d.logger.Debug(ctx, "no fresh prices, skipping scan")
		return report, nil
	}
	if d.cfg.StaleAfter > 0 && snap.Age(start) > d.cfg.StaleAfter {
		d.logger.Warn(ctx, "price snapshot stale, skipping scan",
			"age", snap.Age(start).String(),
			"source", snap.Source)
		return report, nil
	}

	size := d.calculator.OptimalTradeSize(d.cfg.InitialCapital, d.cfg.InitialCapital)
	report.Opportunities = d.calculator.Scan(d.triangles, snap.Prices, size)
	report.Elapsed = d.now().Sub(start)
	return report, nil
}

// Cycle runs one full detector iteration.
func (d *Detector) Cycle(ctx context.Context) {
	n := d.scans.Add(1)
	d.metrics.scans.Add(ctx, 1)
	start := d.now()

	report, err := d.Scan(ctx)
	if err != nil {
		d.logger.Warn(ctx, "failed to fetch prices", "error", err)
		d.maybeStatus(ctx, n)
		return
	}
	report.Number = n

	if len(report.Opportunities) > 0 {
		d.opportunities.Add(int64(len(report.Opportunities)))
		for _, opp := range report.Opportunities {
			d.metrics.opportunities.Add(ctx, 1, metric.WithAttributes(attribute.String("triangle", opp.Key())))
		}
		d.handle(ctx, &report)
	}

	report.Elapsed = d.now().Sub(start)
	if !report.Snapshot.Empty() {
		d.reporter.ReportScan(report)
	}
	d.maybeStatus(ctx, n)
}

func (d *Detector) handle(ctx context.Context, report *ScanReport) {
	if d.errRate != nil {
		rate := d.errRate.ErrorRate(d.cfg.ErrorWindow)
		if _, err := d.risk.CheckAPIErrorRate(ctx, rate); err != nil {
			d.logger.Error(ctx, "failed to apply api error pause", "error", err)
		}
	}

	report.Decision = d.risk.ShouldTradeNow(ctx)
	report.Threshold = d.risk.AdjustProfitThreshold(d.cfg.MinProfitPct)

	best := report.Best()
	reasons := make(map[string]string, len(report.Opportunities))
	for _, opp := range report.Opportunities[1:] {
		reasons[opp.ID] = ReasonLowerRanked
	}

	for _, opp := range report.Opportunities {
		d.logger.Info(ctx, "opportunity found",
			"triangle", opp.Key(),
			"profit", opp.Profit.StringFixed(4),
			"profit_pct", opp.ProfitPct.StringFixed(4))
	}

	switch {
	case !report.Decision.Allowed:
		reasons[best.ID] = string(report.Decision.Reason)
		d.logger.Info(ctx, "trade blocked by risk manager",
			"reason", report.Decision.Reason,
			"detail", report.Decision.Detail)
	case best.ProfitPct.LessThan(report.Threshold):
		reasons[best.ID] = ReasonBelowThreshold
		d.logger.Debug(ctx, "profit below risk threshold",
			"profit_pct", best.ProfitPct.StringFixed(4),
			"threshold", report.Threshold.String())
	default:
		res := d.execute(ctx, best)
		switch res.State {
		case execDomain.StateRejected:
			reasons[best.ID] = ReasonInsufficientDepth
		case execDomain.StateSucceeded:
		default:
			reasons[best.ID] = ReasonExecutionFailed
		}
	}

	for _, opp := range report.Opportunities {
		if err := d.history.SaveOpportunity(ctx, toOpportunityRecord(opp, reasons[opp.ID])); err != nil {
			d.logger.Error(ctx, "failed to record opportunity", "error", err)
		}
	}
}

func (d *Detector) execute(ctx context.Context, opp *domain.Opportunity) *execDomain.Result {
	res := d.executor.Execute(ctx, opp)
	d.executions.Add(1)

	if err := d.history.SaveTrade(ctx, toTradeRecord(res)); err != nil {
		d.logger.Error(ctx, "failed to record trade", "execution_id", res.ID, "error", err)
	}

	if executed(res) {
		if err := d.risk.OnTradeResult(ctx, res.RealizedProfit); err != nil {
			d.logger.Error(ctx, "failed to update risk state", "execution_id", res.ID, "error", err)
		}
	}

	d.reporter.ReportExecution(res)
	return res
}

func (d *Detector) maybeStatus(ctx context.Context, n int64) {
	if d.cfg.StatusEvery <= 0 || n%int64(d.cfg.StatusEvery) != 0 {
		return
	}
	status := d.Status(ctx)

	d.logger.Info(ctx, "bot status",
		"scan", status.Scans,
		"uptime", status.Uptime.Round(time.Second).String(),
		"opportunities", status.Opportunities,
		"executions", status.Executions,
		"total_profit", status.Stats.TotalProfit.StringFixed(4),
		"success_rate", status.Stats.SuccessRate.StringFixed(1),
		"paused", status.Risk.Paused,
		"api_error_rate", status.ErrorRate)

	if err := d.history.SaveMetrics(ctx, toMetricsRecord(status, d.now())); err != nil {
		d.logger.Error(ctx, "failed to record metrics", "error", err)
	}
	d.reporter.ReportStatus(status)
}

// Status summarises the detector, executor and risk state.
func (d *Detector) Status(ctx context.Context) Status {
	status := Status{
		Scans:         d.scans.Load(),
		Opportunities: d.opportunities.Load(),
		Executions:    d.executions.Load(),
		Feed:          d.prices.Health(),
		Stats:         d.executor.Stats(),
	}
	if !d.startedAt.IsZero() {
		status.Uptime = d.now().Sub(d.startedAt)
	}
	if d.errRate != nil {
		status.ErrorRate = d.errRate.ErrorRate(d.cfg.ErrorWindow)
	}

	risk, err := d.risk.Snapshot(ctx)
	if err != nil {
		d.logger.Warn(ctx, "risk snapshot unavailable", "error", err)
	}
	status.Risk = risk
	return status
}

// Stop records the final metrics and shuts the reporter down.
func (d *Detector) Stop(ctx context.Context) error {
	status := d.Status(ctx)
	d.logger.Info(ctx, "stopping arbitrage detector",
		"scans", status.Scans,
		"opportunities", status.Opportunities,
		"executions", status.Executions,
		"total_profit", status.Stats.TotalProfit.StringFixed(4))

	if stats, err := d.history.Statistics(ctx); err == nil {
		d.logger.Info(ctx, "final statistics",
			"total_trades", stats.TotalTrades,
			"profitable_trades", stats.ProfitableTrades,
			"success_rate", stats.SuccessRate.StringFixed(2),
			"total_profit", stats.TotalProfit.StringFixed(4),
			"best_trade", stats.BestTrade.StringFixed(4),
			"worst_trade", stats.WorstTrade.StringFixed(4))
	}

	err := d.history.SaveMetrics(ctx, toMetricsRecord(status, d.now()))
	return errors.Join(err, d.reporter.Stop())
}

// executed reports whether the risk manager must learn from res: any order
// filled, or a simulated trade completed.
func executed(res *execDomain.Result) bool {
	return res.OrdersPlaced() || (res.Simulated && res.Success)
}

func toTradeRecord(res *execDomain.Result) historyDomain.TradeRecord {
	legs := make([]historyDomain.LegRecord, 0, len(res.Legs)+len(res.Reversals))
	for _, l := range append(append([]execDomain.Leg{}, res.Legs...), res.Reversals...) {
		legs = append(legs, historyDomain.LegRecord{
			Pair:         l.Pair,
			Side:         l.Side,
			Reversal:     l.Reversal,
			OrderID:      l.OrderID,
			RequestedQty: l.RequestedQty,
			ExecutedQty:  l.ExecutedQty,
			AvgPrice:     l.AvgPrice,
			Error:        l.Error,
		})
	}

	return historyDomain.TradeRecord{
		ID:             res.ID,
		OpportunityID:  res.OpportunityID,
		TrianglePath:   res.TriangleKey,
		Pairs:          res.Pairs,
		State:          string(res.State),
		Success:        res.Success,
		Executed:       executed(res),
		Simulated:      res.Simulated,
		InitialAmount:  res.InitialAmount,
		FinalAmount:    res.FinalAmount,
		ExpectedProfit: res.ExpectedProfit,
		Profit:         res.RealizedProfit,
		ProfitPct:      res.ProfitPct(),
		FailureKind:    string(res.FailureKind),
		Error:          res.Error,
		Legs:           legs,
		Stranded:       res.Stranded,
		Elapsed:        res.Elapsed,
		Timestamp:      res.StartedAt,
	}
}

func toOpportunityRecord(opp *domain.Opportunity, reason string) historyDomain.OpportunityRecord {
	return historyDomain.OpportunityRecord{
		ID:             opp.ID,
		TrianglePath:   opp.Key(),
		ExpectedProfit: opp.Profit,
		ProfitPct:      opp.ProfitPct,
		InitialAmount:  opp.InitialAmount,
		Reason:         reason,
		Timestamp:      opp.Timestamp,
	}
}

func toMetricsRecord(s Status, at time.Time) historyDomain.MetricsRecord {
	return historyDomain.MetricsRecord{
		TotalTrades:      s.Stats.TotalTrades,
		SuccessfulTrades: s.Stats.TotalTrades - s.Stats.FailedTrades,
		FailedTrades:     s.Stats.FailedTrades,
		TotalProfit:      s.Stats.TotalProfit,
		AvgProfit:        s.Stats.AvgProfit,
		Uptime:           s.Uptime,
		Timestamp:        at,
	}
}
