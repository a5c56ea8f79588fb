package ui

import (
	"fmt"

	execDomain "github.com/fd1az/triarb-bot/business/execution/domain"
	riskDomain "github.com/fd1az/triarb-bot/business/risk/domain"
	"github.com/fd1az/triarb-bot/pkg/ui/components"
)

// opportunityRows maps a scan onto table rows. Only the best opportunity
// is ever executed; the rest are marked lower ranked.
func opportunityRows(msg ScanMsg) []components.OpportunityRow {
	rows := make([]components.OpportunityRow, 0, len(msg.Opportunities))
	for i, opp := range msg.Opportunities {
		row := components.OpportunityRow{
			Timestamp: opp.Timestamp.Format("15:04:05"),
			Triangle:  opp.Key(),
			Initial:   opp.InitialAmount,
			Profit:    opp.Profit,
			ProfitPct: opp.ProfitPct,
		}
		switch {
		case i > 0:
			row.Status = "lower ranked"
		case !msg.Decision.Allowed:
			row.Status = "blocked: " + blockLabel(msg.Decision.Reason)
		case opp.ProfitPct.LessThan(msg.Threshold):
			row.Status = "below risk threshold " + msg.Threshold.String() + "%"
		default:
			row.Status = "executing"
			row.Executed = true
		}
		rows = append(rows, row)
	}
	return rows
}

func blockLabel(r riskDomain.BlockReason) string {
	if r == riskDomain.ReasonNone {
		return "risk"
	}
	return string(r)
}

// executionRow maps an execution result onto a table row.
func executionRow(res *execDomain.Result) components.ExecutionRow {
	row := components.ExecutionRow{
		Timestamp: res.StartedAt.Format("15:04:05"),
		Triangle:  res.TriangleKey,
		State:     string(res.State),
		Simulated: res.Simulated,
		Success:   res.Success,
		Profit:    res.RealizedProfit,
		Elapsed:   res.Elapsed,
		Error:     res.Error,
	}
	for _, l := range res.Legs {
		row.Legs = append(row.Legs, legLine(l))
	}
	for _, l := range res.Reversals {
		row.Legs = append(row.Legs, legLine(l))
	}
	return row
}

func legLine(l execDomain.Leg) string {
	prefix := fmt.Sprintf("%d.", l.Index+1)
	if l.Reversal {
		prefix = "rev"
	}
	line := fmt.Sprintf("%-3s %-4s %-8s %s/%s @ %s",
		prefix, l.Side, l.Pair, l.ExecutedQty.String(), l.RequestedQty.String(), l.AvgPrice.String())
	if l.Error != "" {
		line += "  ✗ " + l.Error
	}
	return line
}

// activityLine summarises a scan for the activity feed.
func activityLine(msg ScanMsg) string {
	if len(msg.Opportunities) == 0 {
		return fmt.Sprintf("scan #%d: %d prices, no opportunity (%s)", msg.Number, len(msg.Prices), msg.Elapsed)
	}
	best := msg.Opportunities[0]
	return fmt.Sprintf("scan #%d: %d opportunities, best %s %s%%",
		msg.Number, len(msg.Opportunities), best.Key(), best.ProfitPct.StringFixed(3))
}
