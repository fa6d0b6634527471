package cli

import (
	"fmt"
	"io"
	"strings"

	"parts-engine/internal/app"
	"parts-engine/internal/core"
)

func rule(out io.Writer, ch string, n int) {
	fmt.Fprintln(out, strings.Repeat(ch, n))
}

func banner(out io.Writer, width int, title string) {
	fmt.Fprintln(out)
	rule(out, "=", width)
	fmt.Fprintf(out, "  %s\n", title)
	rule(out, "=", width)
}

func printCostBreakdown(out io.Writer, cb *core.CostBreakdown) {
	fmt.Fprintf(out, "Used %d x %s, FIFO cost %s\n", cb.Quantity, cb.PartNumber, cb.TotalCost.StringFixed(2))
	for _, d := range cb.Layers {
		fmt.Fprintf(out, "  layer %-6d %4d @ %s\n", d.LayerID, d.Quantity, d.UnitCost.StringFixed(2))
	}
}

func printStock(out io.Writer, res *app.StockResult) {
	p := res.Part
	banner(out, 66, fmt.Sprintf("%s  %s", p.PartNumber, p.Description))
	fmt.Fprintf(out, "  Stock     : %d (min %d, effective %d)\n", p.CurrentStock, p.MinStock, p.EffectiveMin())
	fmt.Fprintf(out, "  Avg cost  : %s\n", p.AverageCost.StringFixed(2))
	fmt.Fprintf(out, "  Score     : %.1f\n", p.StockingScore)
	if res.LocationPath != "" {
		fmt.Fprintf(out, "  Location  : %s\n", res.LocationPath)
	}
	if res.GroupCombinedStock != nil && p.XrefGroupID != nil {
		fmt.Fprintf(out, "  Group     : %d (combined stock %d)\n", *p.XrefGroupID, *res.GroupCombinedStock)
	}
	rule(out, "-", 66)
	fmt.Fprintf(out, "  %-8s %-16s %10s %10s %12s\n", "LAYER", "SOURCE", "RECEIVED", "REMAINING", "UNIT COST")
	for _, l := range res.Layers {
		fmt.Fprintf(out, "  %-8d %-16s %10d %10d %12s\n",
			l.ID, l.Source, l.QuantityReceived, l.QuantityRemaining, l.UnitCost.StringFixed(2))
	}
	rule(out, "=", 66)
}

func printScore(out io.Writer, s *core.Score) {
	fmt.Fprintf(out, "%s scores %.1f: %s\n", s.PartNumber, s.Value, s.Recommendation)
	fmt.Fprintf(out, "  frequency %.1f  recency %.1f  callbacks %.1f  cost %.1f\n",
		s.Breakdown.Frequency, s.Breakdown.Recency, s.Breakdown.FCCImpact, s.Breakdown.CostEfficiency)
	fmt.Fprintf(out, "  %.2f uses/month\n", s.UsagePerMonth)
}

func printPlan(out io.Writer, p *core.MinStockPlan) {
	fmt.Fprintf(out, "%s min stock %d (%s confidence)\n", p.PartNumber, p.Value, p.Confidence)
	fmt.Fprintf(out, "  %s\n", p.Reasoning)
}

func printAlerts(out io.Writer, res *app.ScanResult) {
	banner(out, 78, "REPLENISHMENT ALERTS")
	if len(res.Alerts) == 0 {
		fmt.Fprintln(out, "  Nothing to reorder.")
		rule(out, "=", 78)
		return
	}
	fmt.Fprintf(out, "  %-9s %-16s %6s %6s %6s %12s  %s\n", "URGENCY", "PART", "STOCK", "MIN", "QTY", "EST COST", "GROUP")
	rule(out, "-", 78)
	for _, a := range res.Alerts {
		group := ""
		if a.GroupID != nil {
			group = strings.Join(a.GroupMembers, ",")
		}
		fmt.Fprintf(out, "  %-9s %-16s %6d %6d %6d %12s  %s\n",
			a.Urgency, a.PartNumber, a.EffectiveStock, a.EffectiveMin, a.RecommendedQty,
			a.EstimatedCost.StringFixed(2), group)
	}
	rule(out, "-", 78)
	fmt.Fprintf(out, "  %d alerts, estimated %s\n", len(res.Alerts), res.EstimatedCost.StringFixed(2))
	rule(out, "=", 78)
}

func printDraft(out io.Writer, res *core.DraftResult) {
	if len(res.Orders) == 0 {
		fmt.Fprintln(out, "No draft orders created.")
	}
	for _, po := range res.Orders {
		fmt.Fprintf(out, "Draft PO %d for %s: %d lines, total %s\n",
			po.ID, po.SupplierCode, len(po.Lines), po.Total().StringFixed(2))
	}
	for _, s := range res.Skipped {
		fmt.Fprintf(out, "  skipped %-16s %s\n", s.PartNumber, s.Reason)
	}
}

func printRecalc(out io.Writer, res *app.RecalculateResult) {
	fmt.Fprintf(out, "Scores:    %d processed, %d updated, %d failed\n",
		res.Scores.Processed, res.Scores.Updated, len(res.Scores.Failures))
	fmt.Fprintf(out, "Min stock: %d processed, %d updated, %d failed\n",
		res.MinStock.Processed, res.MinStock.Updated, len(res.MinStock.Failures))
	for _, f := range append(res.Scores.Failures, res.MinStock.Failures...) {
		fmt.Fprintf(out, "  %-16s %s\n", f.PartNumber, f.Err)
	}
}

func printOverdueCores(out io.Writer, res *app.OverdueCoresResult) {
	banner(out, 72, fmt.Sprintf("CORES OUTSTANDING OVER %d DAYS", res.OlderThanDays))
	if len(res.Cores) == 0 {
		fmt.Fprintln(out, "  No overdue cores.")
	} else {
		fmt.Fprintf(out, "  %-14s %-10s %-16s %10s %6s\n", "PO", "SUPPLIER", "PART", "CHARGE", "DAYS")
		rule(out, "-", 72)
		for _, c := range res.Cores {
			po := fmt.Sprintf("#%d", c.OrderID)
			if c.PONumber != nil {
				po = *c.PONumber
			}
			fmt.Fprintf(out, "  %-14s %-10s %-16s %10s %6d\n",
				po, c.SupplierCode, c.PartNumber, c.CoreCharge.StringFixed(2), c.DaysOutstanding)
		}
	}
	rule(out, "-", 72)
	fmt.Fprintf(out, "  Outstanding core deposits: %s\n", res.OutstandingTotal.StringFixed(2))
	rule(out, "=", 72)
}

func printValuation(out io.Writer, v *core.ValuationReport) {
	banner(out, 66, "INVENTORY VALUATION (FIFO)")
	fmt.Fprintf(out, "  %-16s %-26s %8s %12s\n", "PART", "DESCRIPTION", "UNITS", "VALUE")
	rule(out, "-", 66)
	for _, l := range v.Lines {
		fmt.Fprintf(out, "  %-16s %-26.26s %8d %12s\n", l.PartNumber, l.Description, l.CurrentStock, l.Value.StringFixed(2))
	}
	rule(out, "-", 66)
	fmt.Fprintf(out, "  %-43s %8d %12s\n", "TOTAL", v.TotalUnits, v.TotalValue.StringFixed(2))
	rule(out, "=", 66)
}

// PrintHelp lists the available commands.
func PrintHelp(out io.Writer) {
	fmt.Fprintln(out, `Commands:
  receive <part> <qty> <unit-cost> [reason]   add a manual FIFO layer
  consume <part> <qty> [job-id]               use stock on a job
  adjust <part> <delta> <reason...>           count correction
  transfer <part> <qty> <location-id>         move a part between locations
  stock <part>                                stock, layers and location
  score <part> [--save]                       stocking score
  plan <part> [--apply]                       recommended min stock
  scan                                        replenishment alerts
  draft                                       draft purchase orders from alerts
  recalc                                      recompute all scores and min stock
  overdue-cores [days]                        unreturned core deposits
  valuation                                   FIFO inventory value
  export-alerts [dir]                         alerts workbook
  export-cores [days] [dir]                   overdue cores workbook
  export-valuation [dir]                      valuation workbook
  import-prices <supplier> <file.xlsx>        load a supplier price sheet`)
}
