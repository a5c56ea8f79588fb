// Package components provides reusable TUI components.
package components

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
)

// Stats holds statistics for display.
type Stats struct {
	Scans             int64
	Opportunities     int64
	Executions        int64
	FailedTrades      int
	TotalProfit       decimal.Decimal
	SuccessRate       decimal.Decimal
	DailyPnL          decimal.Decimal
	TradesToday       int
	MaxTradesPerDay   int
	ConsecutiveLosses int
	Paused            bool
	PauseReason       string
	PauseRemaining    time.Duration
	ErrorRate         float64
	Uptime            time.Duration
}

// StatsComponent renders statistics and the risk state.
type StatsComponent struct {
	stats Stats
}

// NewStatsComponent creates a new stats component.
func NewStatsComponent() *StatsComponent {
	return &StatsComponent{}
}

// Update updates the statistics.
func (s *StatsComponent) Update(stats Stats) {
	s.stats = stats
}

// Stats returns the last statistics shown.
func (s *StatsComponent) Stats() Stats {
	return s.stats
}

// View renders the stats component.
func (s *StatsComponent) View() string {
	style := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	valueStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).Bold(true)
	goodStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981")).Bold(true)
	badStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).Bold(true)

	pnl := func(v decimal.Decimal) string {
		if v.IsNegative() {
			return badStyle.Render(v.StringFixed(4))
		}
		return goodStyle.Render(v.StringFixed(4))
	}

	risk := goodStyle.Render("TRADING")
	if s.stats.Paused {
		risk = badStyle.Render(fmt.Sprintf("PAUSED %s (%s)",
			s.stats.PauseRemaining.Round(time.Second), s.stats.PauseReason))
	}

	errRate := valueStyle.Render(fmt.Sprintf("%.1f%%", s.stats.ErrorRate*100))
	if s.stats.ErrorRate > 0 {
		errRate = badStyle.Render(fmt.Sprintf("%.1f%%", s.stats.ErrorRate*100))
	}

	return style.Render("STATS") + "\n" +
		fmt.Sprintf("Scans: %s  │  Opportunities: %s  │  Executions: %s (failed %s)  │  Success: %s\n",
			valueStyle.Render(fmt.Sprintf("%d", s.stats.Scans)),
			valueStyle.Render(fmt.Sprintf("%d", s.stats.Opportunities)),
			valueStyle.Render(fmt.Sprintf("%d", s.stats.Executions)),
			valueStyle.Render(fmt.Sprintf("%d", s.stats.FailedTrades)),
			valueStyle.Render(s.stats.SuccessRate.StringFixed(1)+"%"),
		) +
		fmt.Sprintf("Total P&L: %s  │  Today: %s (%d/%d trades)  │  Loss streak: %s  │  API errors: %s\n",
			pnl(s.stats.TotalProfit),
			pnl(s.stats.DailyPnL),
			s.stats.TradesToday,
			s.stats.MaxTradesPerDay,
			valueStyle.Render(fmt.Sprintf("%d", s.stats.ConsecutiveLosses)),
			errRate,
		) +
		fmt.Sprintf("Risk: %s  │  Uptime: %s",
			risk,
			valueStyle.Render(s.stats.Uptime.Round(time.Second).String()),
		)
}
