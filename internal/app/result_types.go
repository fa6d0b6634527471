package app

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"parts-engine/internal/core"
)

// StockResult is a part with its open cost layers and recent history.
type StockResult struct {
	Part         *core.Part         `json:"part"`
	LocationPath string             `json:"location_path,omitempty"`
	Layers       []core.Layer       `json:"layers"`
	Transactions []core.Transaction `json:"transactions"`
	// GroupCombinedStock is set when the part belongs to a cross-reference group.
	GroupCombinedStock *int `json:"group_combined_stock,omitempty"`
}

// ScanResult is returned by ScanAlerts.
type ScanResult struct {
	ScannedAt     time.Time       `json:"scanned_at"`
	Alerts        []core.Alert    `json:"alerts"`
	EstimatedCost decimal.Decimal `json:"estimated_cost"`
}

// RecalculateResult reports both nightly batch jobs.
type RecalculateResult struct {
	Scores   core.BatchResult `json:"scores"`
	MinStock core.BatchResult `json:"min_stock"`
}

// OverdueCoresResult is returned by OverdueCores.
type OverdueCoresResult struct {
	OlderThanDays    int                `json:"older_than_days"`
	Cores            []core.OverdueCore `json:"cores"`
	OutstandingTotal decimal.Decimal    `json:"outstanding_total"`
}

// ImportPricesResult is returned by ImportPriceSheet.
type ImportPricesResult struct {
	SupplierCode string             `json:"supplier_code"`
	Imported     int                `json:"imported"`
	Failures     []core.PartFailure `json:"failures,omitempty"`
}

// Export is a rendered workbook. The caller writes and closes File.
type Export struct {
	Filename string
	File     *excelize.File
}
