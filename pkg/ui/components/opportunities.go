// Package components provides reusable TUI components.
package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
)

// OpportunityRow represents an opportunity in the list.
type OpportunityRow struct {
	Timestamp string
	Triangle  string
	Initial   decimal.Decimal
	Profit    decimal.Decimal
	ProfitPct decimal.Decimal
	Status    string
	Executed  bool
}

// OpportunitiesComponent renders the opportunities list, newest first.
type OpportunitiesComponent struct {
	rows    []OpportunityRow
	maxRows int
	visible int
	offset  int
}

// NewOpportunitiesComponent creates a new opportunities component keeping
// maxRows and showing visible at a time.
func NewOpportunitiesComponent(maxRows, visible int) *OpportunitiesComponent {
	return &OpportunitiesComponent{
		rows:    make([]OpportunityRow, 0, maxRows),
		maxRows: maxRows,
		visible: visible,
	}
}

// Add adds a new opportunity to the list.
func (o *OpportunitiesComponent) Add(row OpportunityRow) {
	o.rows = append([]OpportunityRow{row}, o.rows...)
	if len(o.rows) > o.maxRows {
		o.rows = o.rows[:o.maxRows]
	}
}

// Len returns the number of stored rows.
func (o *OpportunitiesComponent) Len() int {
	return len(o.rows)
}

// Clear clears all opportunities.
func (o *OpportunitiesComponent) Clear() {
	o.rows = o.rows[:0]
	o.offset = 0
}

// ScrollUp moves the window towards newer rows.
func (o *OpportunitiesComponent) ScrollUp() {
	if o.offset > 0 {
		o.offset--
	}
}

// ScrollDown moves the window towards older rows.
func (o *OpportunitiesComponent) ScrollDown() {
	if o.offset+o.visible < len(o.rows) {
		o.offset++
	}
}

// View renders the opportunities component.
func (o *OpportunitiesComponent) View() string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	if len(o.rows) == 0 {
		return headerStyle.Render("OPPORTUNITIES") + "\n\nNo opportunities detected yet..."
	}

	executedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	skippedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B"))

	end := min(o.offset+o.visible, len(o.rows))

	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("OPPORTUNITIES (%d-%d of %d)", o.offset+1, end, len(o.rows))))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("  %-8s  %-22s  %10s  %8s  %s\n", "Time", "Triangle", "Profit", "Pct", "Status"))

	for _, row := range o.rows[o.offset:end] {
		style := skippedStyle
		icon := "·"
		if row.Executed {
			style = executedStyle
			icon = "✓"
		}
		b.WriteString(fmt.Sprintf("  %-8s  %-22s  %10s  %7s%%  %s\n",
			row.Timestamp,
			row.Triangle,
			row.Profit.StringFixed(4),
			row.ProfitPct.StringFixed(3),
			style.Render(icon+" "+row.Status),
		))
	}
	return b.String()
}
