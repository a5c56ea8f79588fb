package infra

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/fd1az/triarb-bot/business/arbitrage/app"
	execDomain "github.com/fd1az/triarb-bot/business/execution/domain"
	"github.com/fd1az/triarb-bot/pkg/ui"
	"github.com/fd1az/triarb-bot/pkg/ui/components"
)

var _ app.Reporter = (*TUIReporter)(nil)

// TUIReporter implements Reporter for the Bubble Tea TUI. The program
// itself is owned by main; the reporter only sends messages to it.
type TUIReporter struct {
	send func(tea.Msg)
}

// NewTUIReporter creates a TUIReporter sending to the running program.
func NewTUIReporter() *TUIReporter {
	return &TUIReporter{send: ui.Send}
}

// Start announces the detector loop in the activity feed.
func (r *TUIReporter) Start(ctx context.Context) error {
	r.send(ui.LogMsg{Level: "info", Message: "detector started"})
	return nil
}

// ReportScan sends the scan to the dashboard.
func (r *TUIReporter) ReportScan(report app.ScanReport) {
	r.send(ui.ScanMsg{
		Number:        report.Number,
		Prices:        report.Snapshot.Prices,
		Source:        report.Snapshot.Source,
		At:            report.Snapshot.Timestamp,
		Opportunities: report.Opportunities,
		Threshold:     report.Threshold,
		Decision:      report.Decision,
		Elapsed:       report.Elapsed,
	})
}

// ReportExecution sends an execution result to the dashboard.
func (r *TUIReporter) ReportExecution(res *execDomain.Result) {
	r.send(ui.ExecutionMsg{Result: res})
	if res.Error != "" && !res.Success && res.OrdersPlaced() {
		r.send(ui.LogMsg{Level: "error", Message: res.TriangleKey + ": " + res.Error})
	}
}

// ReportStatus sends the stats panel and the feed connection state.
func (r *TUIReporter) ReportStatus(s app.Status) {
	r.send(ui.StatusMsg{Stats: StatsView(s)})
	r.send(ui.ConnectionStatusMsg{
		Name:      "Prices",
		Connected: s.Feed.Connected || s.Feed.Source != "websocket",
		Detail:    s.Feed.Source,
	})
}

// Stop is a no-op; main quits the program.
func (r *TUIReporter) Stop() error {
	return nil
}

// StatsView maps a Status onto the stats panel.
func StatsView(s app.Status) components.Stats {
	return components.Stats{
		Scans:             s.Scans,
		Opportunities:     s.Opportunities,
		Executions:        s.Executions,
		FailedTrades:      s.Stats.FailedTrades,
		TotalProfit:       s.Stats.TotalProfit,
		SuccessRate:       s.Stats.SuccessRate,
		DailyPnL:          s.Risk.DailyPnL,
		TradesToday:       s.Risk.TradesToday,
		MaxTradesPerDay:   s.Risk.MaxTradesPerDay,
		ConsecutiveLosses: s.Risk.ConsecutiveLosses,
		Paused:            s.Risk.Paused,
		PauseReason:       s.Risk.PauseReason,
		PauseRemaining:    pauseRemaining(s),
		ErrorRate:         s.ErrorRate,
		Uptime:            s.Uptime,
	}
}

func pauseRemaining(s app.Status) time.Duration {
	if !s.Risk.Paused || s.Risk.PausedUntil.IsZero() {
		return 0
	}
	return max(time.Until(s.Risk.PausedUntil), 0)
}
