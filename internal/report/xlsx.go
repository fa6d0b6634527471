// Package report renders engine read models as xlsx workbooks for the office.
package report

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"parts-engine/internal/core"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var alertHeaders = []string{
	"Urgency", "Part Number", "Description", "Group", "Group Members",
	"Stock", "Minimum", "Order Qty", "Avg Cost", "Est. Cost", "Score",
}

var overdueCoreHeaders = []string{
	"PO", "Supplier", "Line", "Part Number", "Core Charge", "Since", "Days Out",
}

var valuationHeaders = []string{
	"Part Number", "Description", "Stock", "Open Layers", "FIFO Value",
}

// PriceSheetHeaders is the column layout ParsePriceSheet expects.
var PriceSheetHeaders = []string{"Part Number", "Unit Price", "Lead Time Days", "Preferred"}

type sheetWriter struct {
	f     *excelize.File
	sheet string
}

func newSheet(name string, headers []string, widths []float64) (*sheetWriter, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", name); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("header style: %w", err)
	}

	for i, h := range headers {
		col, _ := excelize.ColumnNumberToName(i + 1)
		cell := col + "1"
		f.SetCellValue(name, cell, h)
		f.SetCellStyle(name, cell, cell, headerStyle)
	}
	for i, w := range widths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(name, col, col, w)
	}
	f.SetPanes(name, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
	return &sheetWriter{f: f, sheet: name}, nil
}

func (s *sheetWriter) row(n int, values ...any) {
	for i, v := range values {
		col, _ := excelize.ColumnNumberToName(i + 1)
		if d, ok := v.(decimal.Decimal); ok {
			v = d.InexactFloat64()
		}
		s.f.SetCellValue(s.sheet, fmt.Sprintf("%s%d", col, n), v)
	}
}

func (s *sheetWriter) summary(n int, lastCol int, values ...any) {
	s.row(n, values...)
	style, _ := s.f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	last, _ := excelize.ColumnNumberToName(lastCol)
	s.f.SetCellStyle(s.sheet, fmt.Sprintf("A%d", n), fmt.Sprintf("%s%d", last, n), style)
}

// Alerts writes a replenishment scan to a single "Alerts" sheet with a cost total.
func Alerts(alerts []core.Alert, asOf time.Time) (*excelize.File, string, error) {
	w, err := newSheet("Alerts", alertHeaders, []float64{10, 16, 30, 7, 30, 7, 8, 9, 10, 10, 7})
	if err != nil {
		return nil, "", err
	}

	total := decimal.Zero
	for i, a := range alerts {
		var group any
		if a.GroupID != nil {
			group = *a.GroupID
		}
		w.row(i+2,
			string(a.Urgency), a.PartNumber, a.Description, group, strings.Join(a.GroupMembers, ", "),
			a.EffectiveStock, a.EffectiveMin, a.RecommendedQty, a.AverageCost, a.EstimatedCost, a.StockingScore,
		)
		total = total.Add(a.EstimatedCost)
	}
	w.summary(len(alerts)+2, len(alertHeaders),
		"Total", fmt.Sprintf("%d alerts", len(alerts)), nil, nil, nil, nil, nil, nil, nil, total)

	return w.f, fmt.Sprintf("replenishment_%s.xlsx", asOf.Format("2006-01-02")), nil
}

// OverdueCores writes the overdue core list with the total deposit at risk.
func OverdueCores(cores []core.OverdueCore, asOf time.Time) (*excelize.File, string, error) {
	w, err := newSheet("Overdue Cores", overdueCoreHeaders, []float64{16, 12, 7, 16, 12, 12, 9})
	if err != nil {
		return nil, "", err
	}

	total := decimal.Zero
	for i, c := range cores {
		po := ""
		if c.PONumber != nil {
			po = *c.PONumber
		}
		w.row(i+2, po, c.SupplierCode, c.LineID, c.PartNumber, c.CoreCharge,
			c.Since.Format("2006-01-02"), c.DaysOutstanding)
		total = total.Add(c.CoreCharge)
	}
	w.summary(len(cores)+2, len(overdueCoreHeaders), "Total", nil, nil, nil, total)

	return w.f, fmt.Sprintf("overdue_cores_%s.xlsx", asOf.Format("2006-01-02")), nil
}

// Valuation writes the FIFO inventory valuation.
func Valuation(r *core.ValuationReport) (*excelize.File, string, error) {
	w, err := newSheet("Valuation", valuationHeaders, []float64{16, 30, 8, 11, 12})
	if err != nil {
		return nil, "", err
	}
	for i, l := range r.Lines {
		w.row(i+2, l.PartNumber, l.Description, l.CurrentStock, l.OpenLayers, l.Value)
	}
	w.summary(len(r.Lines)+2, len(valuationHeaders), "Total", nil, r.TotalUnits, nil, r.TotalValue)

	return w.f, fmt.Sprintf("valuation_%s.xlsx", r.AsOf.Format("2006-01-02")), nil
}

// PriceRow is one line of a supplier price sheet.
type PriceRow struct {
	PartNumber   string
	UnitPrice    decimal.Decimal
	LeadTimeDays int
	Preferred    bool
}

// ParsePriceSheet reads a supplier price list from the first sheet. The first
// row is a header; blank rows are skipped. Errors name the spreadsheet row.
func ParsePriceSheet(f *excelize.File) ([]PriceRow, error) {
	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("price sheet %q has no data rows", sheet)
	}

	var out []PriceRow
	for i, row := range rows[1:] {
		n := i + 2
		cell := func(c int) string {
			if c < len(row) {
				return strings.TrimSpace(row[c])
			}
			return ""
		}
		if cell(0) == "" {
			continue
		}

		price, err := decimal.NewFromString(cell(1))
		if err != nil || price.IsNegative() {
			return nil, fmt.Errorf("row %d: invalid unit price %q", n, cell(1))
		}
		lead := 0
		if s := cell(2); s != "" {
			if lead, err = strconv.Atoi(s); err != nil || lead < 0 {
				return nil, fmt.Errorf("row %d: invalid lead time %q", n, s)
			}
		}
		preferred := false
		switch strings.ToLower(cell(3)) {
		case "y", "yes", "true", "1", "x":
			preferred = true
		}

		out = append(out, PriceRow{PartNumber: cell(0), UnitPrice: price, LeadTimeDays: lead, Preferred: preferred})
	}
	return out, nil
}
