package components

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
)

// ExecutionRow is one execution attempt.
type ExecutionRow struct {
	Timestamp string
	Triangle  string
	State     string
	Simulated bool
	Success   bool
	Profit    decimal.Decimal
	Elapsed   time.Duration
	Legs      []string
	Error     string
}

// ExecutionsComponent renders recent executions with their legs.
type ExecutionsComponent struct {
	rows    []ExecutionRow
	maxRows int
}

// NewExecutionsComponent creates a new executions component.
func NewExecutionsComponent(maxRows int) *ExecutionsComponent {
	return &ExecutionsComponent{maxRows: maxRows}
}

// Add records an execution.
func (e *ExecutionsComponent) Add(row ExecutionRow) {
	e.rows = append([]ExecutionRow{row}, e.rows...)
	if len(e.rows) > e.maxRows {
		e.rows = e.rows[:e.maxRows]
	}
}

// View renders the executions component.
func (e *ExecutionsComponent) View() string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	okStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	failStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))

	var b strings.Builder
	b.WriteString(headerStyle.Render("EXECUTIONS"))
	b.WriteString("\n")
	if len(e.rows) == 0 {
		b.WriteString(dimStyle.Render("  No trades executed yet"))
		return b.String()
	}

	for _, row := range e.rows {
		style := okStyle
		if !row.Success {
			style = failStyle
		}
		mode := ""
		if row.Simulated {
			mode = dimStyle.Render(" [sim]")
		}
		b.WriteString(fmt.Sprintf("  %s %-22s %s %s%s %s\n",
			row.Timestamp,
			row.Triangle,
			style.Render(fmt.Sprintf("%-9s", row.State)),
			style.Render(row.Profit.StringFixed(4)),
			mode,
			dimStyle.Render(row.Elapsed.Round(time.Millisecond).String()),
		))
		for _, leg := range row.Legs {
			b.WriteString(dimStyle.Render("      "+leg) + "\n")
		}
		if row.Error != "" {
			b.WriteString(failStyle.Render("      "+row.Error) + "\n")
		}
	}
	return b.String()
}
