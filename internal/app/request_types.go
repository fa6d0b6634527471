package app

import (
	"github.com/shopspring/decimal"

	"parts-engine/internal/core"
)

// RegisterPartRequest creates or updates a part's catalogue entry.
type RegisterPartRequest struct {
	PartNumber       string
	Description      string
	SellPrice        decimal.Decimal
	MinStockOverride *int
	AutoReplenish    bool
}

// ReceiveStockRequest is a manual receipt outside any purchase order.
type ReceiveStockRequest struct {
	PartNumber string
	Quantity   int
	UnitCost   decimal.Decimal
	Reason     string
}

// ConsumeStockRequest records parts used on a job.
type ConsumeStockRequest struct {
	PartNumber string
	Quantity   int
	JobID      string
	Reason     string
}

type AdjustStockRequest struct {
	PartNumber string
	Delta      int
	Reason     string
}

type TransferStockRequest struct {
	PartNumber     string
	Quantity       int
	FromLocationID *int
	ToLocationID   int
}

type CreateGroupRequest struct {
	PartNumbers   []string
	Description   string
	MinStockGroup int
	AutoReplenish bool
}

type CreateSupplierRequest struct {
	Code          string
	Name          string
	ContactPerson string
	Email         string
	Phone         string
}

// SetPriceRequest upserts one supplier price. Suppliers are addressed by code.
type SetPriceRequest struct {
	SupplierCode string
	PartNumber   string
	UnitPrice    decimal.Decimal
	LeadTimeDays int
	Preferred    bool
}

// CreatePurchaseOrderRequest is the input for creating a DRAFT purchase order.
type CreatePurchaseOrderRequest struct {
	SupplierCode string
	ShippingCost decimal.Decimal
	Tax          decimal.Decimal
	Notes        string
	Lines        []core.POLineInput
}

// ReceivePORequest books deliveries against an order's lines.
type ReceivePORequest struct {
	POID       int
	Deliveries []core.Delivery
	ShipmentID *int
}

type CreateShipmentRequest struct {
	Carrier        string
	TrackingNumber string
	OrderIDs       []int
}

type CreateLocationRequest struct {
	ParentID *int
	Name     string
	Type     core.LocationType
}
