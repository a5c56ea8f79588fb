// Package infra contains infrastructure adapters for the arbitrage context.
package infra

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fd1az/triarb-bot/business/arbitrage/app"
	execDomain "github.com/fd1az/triarb-bot/business/execution/domain"
)

var _ app.Reporter = (*ConsoleReporter)(nil)

// ConsoleReporter implements Reporter for CLI output. Scans without
// opportunities are not printed.
type ConsoleReporter struct {
	mu  sync.Mutex
	out io.Writer
}

// NewConsoleReporter creates a new ConsoleReporter writing to stdout.
func NewConsoleReporter() *ConsoleReporter {
	return NewConsoleReporterTo(os.Stdout)
}

// NewConsoleReporterTo creates a ConsoleReporter writing to w.
func NewConsoleReporterTo(w io.Writer) *ConsoleReporter {
	return &ConsoleReporter{out: w}
}

// Start initializes the console reporter.
func (r *ConsoleReporter) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.out, "Triangular Arbitrage Bot Started")
	fmt.Fprintln(r.out, "================================")
	return nil
}

// ReportScan prints the opportunities of a scan.
func (r *ConsoleReporter) ReportScan(report app.ScanReport) {
	if len(report.Opportunities) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	fmt.Fprintf(r.out, "[%s] scan #%d (%s, %s): %d opportunities\n",
		report.Snapshot.Timestamp.Format("15:04:05"),
		report.Number,
		report.Snapshot.Source,
		report.Elapsed.Round(time.Microsecond),
		len(report.Opportunities))

	for i, opp := range report.Opportunities {
		fmt.Fprintf(r.out, "  %d. %-24s %s -> %s  profit %s (%s%%)\n",
			i+1,
			opp.Key(),
			opp.InitialAmount.StringFixed(2),
			opp.FinalAmount.StringFixed(4),
			opp.Profit.StringFixed(4),
			opp.ProfitPct.StringFixed(3))
	}

	if !report.Decision.Allowed {
		fmt.Fprintf(r.out, "  not executed: %s %s\n", report.Decision.Reason, report.Decision.Detail)
	} else if best := report.Best(); best != nil && best.ProfitPct.LessThan(report.Threshold) {
		fmt.Fprintf(r.out, "  not executed: below risk threshold %s%%\n", report.Threshold)
	}
}

// ReportExecution prints an execution attempt with its legs.
func (r *ConsoleReporter) ReportExecution(res *execDomain.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fmt.Fprintln(r.out, "--------------------------------------------------------------------------------")
	mode := ""
	if res.Simulated {
		mode = " [simulated]"
	}
	fmt.Fprintf(r.out, "EXECUTION %s %s%s\n", res.TriangleKey, res.State, mode)
	fmt.Fprintf(r.out, "  id:        %s\n", res.ID)
	fmt.Fprintf(r.out, "  initial:   %s %s\n", res.InitialAmount.String(), res.StartAsset)
	fmt.Fprintf(r.out, "  final:     %s %s\n", res.FinalAmount.String(), res.StartAsset)
	fmt.Fprintf(r.out, "  expected:  %s\n", res.ExpectedProfit.StringFixed(4))
	fmt.Fprintf(r.out, "  realized:  %s (%s%%)\n", res.RealizedProfit.StringFixed(4), res.ProfitPct().StringFixed(3))
	fmt.Fprintf(r.out, "  elapsed:   %s\n", res.Elapsed.Round(time.Millisecond))

	for _, l := range res.Legs {
		r.printLeg("leg", l)
	}
	for _, l := range res.Reversals {
		r.printLeg("reversal", l)
	}
	if res.Error != "" {
		fmt.Fprintf(r.out, "  error:     [%s] %s\n", res.FailureKind, res.Error)
	}
	fmt.Fprintln(r.out, "--------------------------------------------------------------------------------")
}

func (r *ConsoleReporter) printLeg(kind string, l execDomain.Leg) {
	fmt.Fprintf(r.out, "  %-8s %d %-4s %-8s qty %s/%s @ %s",
		kind, l.Index+1, l.Side, l.Pair, l.ExecutedQty, l.RequestedQty, l.AvgPrice)
	if l.Error != "" {
		fmt.Fprintf(r.out, "  error: %s", l.Error)
	}
	fmt.Fprintln(r.out)
}

// ReportStatus prints the periodic status block.
func (r *ConsoleReporter) ReportStatus(s app.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fmt.Fprintln(r.out, "================================================================================")
	fmt.Fprintf(r.out, "BOT STATUS - scan #%d, uptime %s\n", s.Scans, s.Uptime.Round(time.Second))
	fmt.Fprintf(r.out, "  opportunities: %d   executions: %d   failed: %d\n",
		s.Opportunities, s.Executions, s.Stats.FailedTrades)
	fmt.Fprintf(r.out, "  total profit:  %s   success rate: %s%%\n",
		s.Stats.TotalProfit.StringFixed(4), s.Stats.SuccessRate.StringFixed(1))
	fmt.Fprintf(r.out, "  today:         pnl %s, %d/%d trades, loss streak %d\n",
		s.Risk.DailyPnL.StringFixed(4), s.Risk.TradesToday, s.Risk.MaxTradesPerDay, s.Risk.ConsecutiveLosses)
	if s.Risk.Paused {
		fmt.Fprintf(r.out, "  PAUSED until %s: %s\n", s.Risk.PausedUntil.Format(time.RFC3339), s.Risk.PauseReason)
	}
	fmt.Fprintf(r.out, "  feed:          %s connected=%t   api error rate %.1f%%\n",
		s.Feed.Source, s.Feed.Connected, s.ErrorRate*100)
	fmt.Fprintln(r.out, "================================================================================")
}

// Stop gracefully shuts down the console reporter.
func (r *ConsoleReporter) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.out, "")
	fmt.Fprintln(r.out, "Triangular Arbitrage Bot Stopped")
	return nil
}
