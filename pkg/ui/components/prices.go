// Package components provides reusable TUI components.
package components

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
)

// PriceRow is one symbol in the price table.
type PriceRow struct {
	Symbol string
	Price  decimal.Decimal
	Prev   decimal.Decimal
}

// Change returns the move since the previous snapshot, in percent.
func (r PriceRow) Change() decimal.Decimal {
	if !r.Prev.IsPositive() {
		return decimal.Zero
	}
	return r.Price.Sub(r.Prev).Div(r.Prev).Mul(decimal.NewFromInt(100))
}

// PricesComponent renders the latest mid prices of the triangle symbols.
type PricesComponent struct {
	rows      map[string]PriceRow
	source    string
	updatedAt time.Time
}

// NewPricesComponent creates a new prices component.
func NewPricesComponent() *PricesComponent {
	return &PricesComponent{rows: make(map[string]PriceRow)}
}

// Update replaces the prices, keeping the previous value of each symbol.
func (p *PricesComponent) Update(prices map[string]decimal.Decimal, source string, at time.Time) {
	for sym, price := range prices {
		row := p.rows[sym]
		if !row.Price.Equal(price) {
			row.Prev = row.Price
		}
		row.Symbol = sym
		row.Price = price
		p.rows[sym] = row
	}
	p.source = source
	p.updatedAt = at
}

// Rows returns the rows sorted by symbol.
func (p *PricesComponent) Rows() []PriceRow {
	out := make([]PriceRow, 0, len(p.rows))
	for _, r := range p.rows {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// View renders the prices component.
func (p *PricesComponent) View() string {
	if len(p.rows) == 0 {
		return "Waiting for price data..."
	}

	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	upStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	downStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))

	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("PRICES (%s)", p.source)))
	b.WriteString("\n\n")
	b.WriteString(fmt.Sprintf("  %-10s  %16s  %9s\n", "Symbol", "Mid", "Change"))
	b.WriteString(dimStyle.Render("  "+strings.Repeat("─", 40)) + "\n")

	for _, row := range p.Rows() {
		change := row.Change()
		arrow, style := " ", dimStyle
		switch {
		case change.IsPositive():
			arrow, style = "▲", upStyle
		case change.IsNegative():
			arrow, style = "▼", downStyle
		}
		b.WriteString(fmt.Sprintf("  %-10s  %16s  %s\n",
			row.Symbol,
			row.Price.String(),
			style.Render(fmt.Sprintf("%s%+7.3f%%", arrow, change.InexactFloat64())),
		))
	}

	if !p.updatedAt.IsZero() {
		b.WriteString("\n")
		b.WriteString(dimStyle.Render(fmt.Sprintf("  snapshot %s", p.updatedAt.Format("15:04:05.000"))))
	}
	return b.String()
}
