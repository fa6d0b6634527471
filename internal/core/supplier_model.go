package core

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Supplier is a parts distributor orders are placed with.
type Supplier struct {
	ID            int       `json:"id"`
	Code          string    `json:"code"`
	Name          string    `json:"name"`
	ContactPerson *string   `json:"contact_person,omitempty"`
	Email         *string   `json:"email,omitempty"`
	Phone         *string   `json:"phone,omitempty"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
}

// SupplierInput holds the fields required to create a new supplier.
type SupplierInput struct {
	Code          string
	Name          string
	ContactPerson string
	Email         string
	Phone         string
}

// SupplierPrice is one (supplier, part) pricing record.
type SupplierPrice struct {
	SupplierID   int             `json:"supplier_id"`
	SupplierCode string          `json:"supplier_code"`
	PartNumber   string          `json:"part_number"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	LeadTimeDays int             `json:"lead_time_days"`
	Preferred    bool            `json:"preferred"`
	IsActive     bool            `json:"is_active"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

type SupplierPriceInput struct {
	SupplierID   int
	PartNumber   string
	UnitPrice    decimal.Decimal
	LeadTimeDays int
	Preferred    bool
}

// SupplierService manages suppliers and their part pricing. It also serves as
// the PricingSource for the planner and for order-line defaulting.
type SupplierService interface {
	PricingSource

	CreateSupplier(ctx context.Context, input SupplierInput) (*Supplier, error)
	// GetSuppliers returns all active suppliers ordered by code.
	GetSuppliers(ctx context.Context) ([]Supplier, error)
	GetSupplierByCode(ctx context.Context, code string) (*Supplier, error)

	// SetPrice creates or replaces the pricing record for (supplier, part).
	// Unknown parts are registered.
	SetPrice(ctx context.Context, input SupplierPriceInput) (*SupplierPrice, error)
	// DeactivatePrice keeps the record but excludes it from planning and defaulting.
	DeactivatePrice(ctx context.Context, supplierID int, partNumber string) error
}
