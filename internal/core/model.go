package core

import (
	"time"

	"github.com/shopspring/decimal"
)

type LayerSource string

const (
	SourcePurchaseOrder LayerSource = "PURCHASE_ORDER"
	SourceManual        LayerSource = "MANUAL"
	SourceAdjustment    LayerSource = "ADJUSTMENT"
)

type TransactionType string

const (
	TxReceived    TransactionType = "RECEIVED"
	TxUsed        TransactionType = "USED"
	TxTransferred TransactionType = "TRANSFERRED"
	TxAdjusted    TransactionType = "ADJUSTED"
)

// Part is the stocking record for one part number. CurrentStock always equals
// the sum of QuantityRemaining over the part's layers.
type Part struct {
	PartNumber        string          `json:"part_number"`
	Description       string          `json:"description"`
	AverageCost       decimal.Decimal `json:"average_cost"`
	SellPrice         decimal.Decimal `json:"sell_price"`
	CurrentStock      int             `json:"current_stock"`
	MinStock          int             `json:"min_stock"`
	MinStockOverride  *int            `json:"min_stock_override,omitempty"`
	AutoReplenish     bool            `json:"auto_replenish"`
	StockingScore     float64         `json:"stocking_score"`
	XrefGroupID       *int            `json:"xref_group_id,omitempty"`
	StorageLocationID *int            `json:"storage_location_id,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// EffectiveMin is the reorder threshold for an ungrouped part.
func (p Part) EffectiveMin() int {
	if p.MinStockOverride != nil && *p.MinStockOverride > p.MinStock {
		return *p.MinStockOverride
	}
	return p.MinStock
}

// Layer is one receipt of stock at a single unit cost.
type Layer struct {
	ID                int64           `json:"id"`
	PartNumber        string          `json:"part_number"`
	QuantityReceived  int             `json:"quantity_received"`
	QuantityRemaining int             `json:"quantity_remaining"`
	UnitCost          decimal.Decimal `json:"unit_cost"`
	Source            LayerSource     `json:"source"`
	OrderID           *int            `json:"order_id,omitempty"`
	OrderLineID       *int            `json:"order_line_id,omitempty"`
	ReceivedAt        time.Time       `json:"received_at"`
}

// Transaction is the immutable audit record of a stock movement.
// Quantity is positive for receipts and negative for consumption.
type Transaction struct {
	ID             int64           `json:"id"`
	PartNumber     string          `json:"part_number"`
	Type           TransactionType `json:"type"`
	Quantity       int             `json:"quantity"`
	UnitCost       decimal.Decimal `json:"unit_cost"`
	TotalCost      decimal.Decimal `json:"total_cost"`
	JobID          *string         `json:"job_id,omitempty"`
	OrderID        *int            `json:"order_id,omitempty"`
	ShipmentID     *int            `json:"shipment_id,omitempty"`
	FromLocationID *int            `json:"from_location_id,omitempty"`
	ToLocationID   *int            `json:"to_location_id,omitempty"`
	Reason         *string         `json:"reason,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// ── Ledger inputs and results ─────────────────────────────────────────────────

type ReceiveInput struct {
	PartNumber  string
	Quantity    int
	UnitCost    decimal.Decimal
	Source      LayerSource
	OrderID     *int
	OrderLineID *int
	ShipmentID  *int
	Reason      string
}

type ConsumeInput struct {
	PartNumber string
	Quantity   int
	JobID      string
	Reason     string
}

type AdjustInput struct {
	PartNumber string
	Delta      int
	Reason     string
}

type TransferInput struct {
	PartNumber     string
	Quantity       int
	FromLocationID *int
	ToLocationID   int
}

// LayerDraw is the quantity taken from one layer by a consumption.
type LayerDraw struct {
	LayerID  int64           `json:"layer_id"`
	Quantity int             `json:"quantity"`
	UnitCost decimal.Decimal `json:"unit_cost"`
}

// Cost is Quantity × UnitCost.
func (d LayerDraw) Cost() decimal.Decimal {
	return d.UnitCost.Mul(decimal.NewFromInt(int64(d.Quantity)))
}

// CostBreakdown is the FIFO valuation of one consumption.
type CostBreakdown struct {
	PartNumber    string          `json:"part_number"`
	Quantity      int             `json:"quantity"`
	TotalCost     decimal.Decimal `json:"total_cost"`
	Layers        []LayerDraw     `json:"layers"`
	TransactionID int64           `json:"transaction_id"`
}

// AdjustResult reports what an adjustment actually applied. A negative request
// larger than the stock on hand is clamped, so Applied may differ from Requested.
type AdjustResult struct {
	PartNumber    string          `json:"part_number"`
	Requested     int             `json:"requested"`
	Applied       int             `json:"applied"`
	TotalCost     decimal.Decimal `json:"total_cost"`
	Layers        []LayerDraw     `json:"layers,omitempty"`
	TransactionID int64           `json:"transaction_id,omitempty"`
}

// ── Groups and locations ──────────────────────────────────────────────────────

// XrefGroup is a set of interchangeable parts stocked against a shared minimum.
// CombinedStock is derived from the members on every read.
type XrefGroup struct {
	ID            int       `json:"id"`
	Description   string    `json:"description"`
	MinStockGroup int       `json:"min_stock_group"`
	AutoReplenish bool      `json:"auto_replenish"`
	Members       []string  `json:"members"`
	CombinedStock int       `json:"combined_stock"`
	CreatedAt     time.Time `json:"created_at"`
}

type LocationType string

const (
	LocationVehicle   LocationType = "vehicle"
	LocationBuilding  LocationType = "building"
	LocationContainer LocationType = "container"
	LocationShelf     LocationType = "shelf"
	LocationBin       LocationType = "bin"
	LocationDrawer    LocationType = "drawer"
)

func (t LocationType) Valid() bool {
	switch t {
	case LocationVehicle, LocationBuilding, LocationContainer, LocationShelf, LocationBin, LocationDrawer:
		return true
	}
	return false
}

type StorageLocation struct {
	ID        int          `json:"id"`
	ParentID  *int         `json:"parent_id,omitempty"`
	Name      string       `json:"name"`
	Type      LocationType `json:"type"`
	CreatedAt time.Time    `json:"created_at"`
}

// ── Batch jobs ────────────────────────────────────────────────────────────────

type PartFailure struct {
	PartNumber string `json:"part_number"`
	Err        string `json:"error"`
}

// BatchResult summarises a recalculation over every part. One part failing
// never aborts the others.
type BatchResult struct {
	Processed int           `json:"processed"`
	Updated   int           `json:"updated"`
	Failures  []PartFailure `json:"failures,omitempty"`
}

// Observer receives operational signals from the services. The metrics package
// implements it; a nil Observer is replaced with a no-op.
type Observer interface {
	LedgerOperation(op string, err error)
	BatchCompleted(job string, result BatchResult)
	AlertsEmitted(alerts []Alert)
}

type nopObserver struct{}

func (nopObserver) LedgerOperation(string, error)      {}
func (nopObserver) BatchCompleted(string, BatchResult) {}
func (nopObserver) AlertsEmitted([]Alert)              {}

func observerOrNop(o Observer) Observer {
	if o == nil {
		return nopObserver{}
	}
	return o
}

func toPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
