package core

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

type POStatus string

const (
	PODraft             POStatus = "DRAFT"
	POSubmitted         POStatus = "SUBMITTED"
	POOrdered           POStatus = "ORDERED"
	POShipped           POStatus = "SHIPPED"
	POPartiallyReceived POStatus = "PARTIALLY_RECEIVED"
	POReceived          POStatus = "RECEIVED"
	POCancelled         POStatus = "CANCELLED"
)

// poTransitions lists the forward moves. Cancellation is handled separately:
// it is allowed from every non-terminal state.
var poTransitions = map[POStatus][]POStatus{
	PODraft:             {POSubmitted},
	POSubmitted:         {POOrdered},
	POOrdered:           {POShipped},
	POShipped:           {POPartiallyReceived, POReceived},
	POPartiallyReceived: {POPartiallyReceived, POShipped, POReceived},
}

func (s POStatus) Valid() bool {
	switch s {
	case PODraft, POSubmitted, POOrdered, POShipped, POPartiallyReceived, POReceived, POCancelled:
		return true
	}
	return false
}

func (s POStatus) Terminal() bool {
	return s == POReceived || s == POCancelled
}

// CanTransition reports whether an order in from may move to to.
func CanTransition(from, to POStatus) bool {
	if to == POCancelled {
		return from.Valid() && !from.Terminal()
	}
	for _, next := range poTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Receivable reports whether deliveries may be booked against an order in s.
func (s POStatus) Receivable() bool {
	return s == POShipped || s == POPartiallyReceived
}

// PurchaseOrder represents a purchase order header. Totals are computed from
// the lines on demand and never stored.
type PurchaseOrder struct {
	ID             int                 `json:"id"`
	PONumber       *string             `json:"po_number,omitempty"`
	SupplierID     int                 `json:"supplier_id"`
	SupplierCode   string              `json:"supplier_code"`
	SupplierName   string              `json:"supplier_name"`
	Status         POStatus            `json:"status"`
	ShippingCost   decimal.Decimal     `json:"shipping_cost"`
	Tax            decimal.Decimal     `json:"tax"`
	Notes          *string             `json:"notes,omitempty"`
	Carrier        *string             `json:"carrier,omitempty"`
	TrackingNumber *string             `json:"tracking_number,omitempty"`
	SubmittedAt    *time.Time          `json:"submitted_at,omitempty"`
	OrderedAt      *time.Time          `json:"ordered_at,omitempty"`
	ShippedAt      *time.Time          `json:"shipped_at,omitempty"`
	ReceivedAt     *time.Time          `json:"received_at,omitempty"`
	CancelledAt    *time.Time          `json:"cancelled_at,omitempty"`
	CreatedAt      time.Time           `json:"created_at"`
	Lines          []PurchaseOrderLine `json:"lines"`
}

// Subtotal is Σ quantity × unit cost over the lines, unrounded.
func (po *PurchaseOrder) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, l := range po.Lines {
		sum = sum.Add(l.LineTotal())
	}
	return sum
}

// Total is the subtotal plus shipping and tax, rounded to cents.
func (po *PurchaseOrder) Total() decimal.Decimal {
	return po.Subtotal().Add(po.ShippingCost).Add(po.Tax).Round(2)
}

// FullyReceived reports whether every line has received its ordered quantity.
func (po *PurchaseOrder) FullyReceived() bool {
	for _, l := range po.Lines {
		if l.QuantityReceived < l.Quantity {
			return false
		}
	}
	return len(po.Lines) > 0
}

// PurchaseOrderLine represents a single line on a purchase order.
type PurchaseOrderLine struct {
	ID               int             `json:"id"`
	OrderID          int             `json:"order_id"`
	LineNumber       int             `json:"line_number"`
	PartNumber       string          `json:"part_number"`
	Quantity         int             `json:"quantity"`
	QuantityReceived int             `json:"quantity_received"`
	UnitCost         decimal.Decimal `json:"unit_cost"`
	Core             *CoreCharge     `json:"core,omitempty"`
}

func (l PurchaseOrderLine) LineTotal() decimal.Decimal {
	return l.UnitCost.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

func (l PurchaseOrderLine) Outstanding() int {
	return l.Quantity - l.QuantityReceived
}

// CoreCharge is the refundable deposit on a remanufactured part.
type CoreCharge struct {
	Charge       decimal.Decimal  `json:"charge"`
	Returned     bool             `json:"returned"`
	ReturnDate   *time.Time       `json:"return_date,omitempty"`
	Tracking     *string          `json:"tracking,omitempty"`
	CreditAmount *decimal.Decimal `json:"credit_amount,omitempty"`
}

// POLineInput holds the fields required to create a purchase order line.
// A nil UnitCost is filled from the supplier's active pricing for the part.
type POLineInput struct {
	PartNumber string
	Quantity   int
	UnitCost   *decimal.Decimal
	HasCore    bool
	CoreCharge decimal.Decimal
}

type CreatePOInput struct {
	SupplierID   int
	Lines        []POLineInput
	ShippingCost decimal.Decimal
	Tax          decimal.Decimal
	Notes        string
}

type TrackingInput struct {
	Carrier        string
	TrackingNumber string
}

// Delivery is the quantity arriving against one order line.
type Delivery struct {
	LineID   int `json:"line_id"`
	Quantity int `json:"quantity"`
}

// receiptLine is one validated, aggregated delivery ready to book.
type receiptLine struct {
	line     PurchaseOrderLine
	quantity int
}

// planReceipt validates every delivery before anything is booked. Deliveries
// for the same line are summed. The result is ordered by part number, then
// line id, which is the order part locks are taken in.
func planReceipt(orderID int, lines []PurchaseOrderLine, deliveries []Delivery) ([]receiptLine, error) {
	if len(deliveries) == 0 {
		return nil, invalidInput("at least one delivery is required")
	}

	byID := make(map[int]PurchaseOrderLine, len(lines))
	for _, l := range lines {
		byID[l.ID] = l
	}

	totals := make(map[int]int)
	for _, d := range deliveries {
		if d.Quantity <= 0 {
			return nil, &NegativeQuantityError{Field: fmt.Sprintf("delivery quantity for PO line %d", d.LineID), Quantity: d.Quantity}
		}
		if _, ok := byID[d.LineID]; !ok {
			return nil, fmt.Errorf("PO line %d on purchase order %d: %w", d.LineID, orderID, ErrNotFound)
		}
		totals[d.LineID] += d.Quantity
	}

	plan := make([]receiptLine, 0, len(totals))
	for id, qty := range totals {
		l := byID[id]
		if qty > l.Outstanding() {
			return nil, &OverReceiptError{LineID: l.ID, Ordered: l.Quantity, Received: l.QuantityReceived, Delivered: qty}
		}
		plan = append(plan, receiptLine{line: l, quantity: qty})
	}
	sort.Slice(plan, func(i, j int) bool {
		if plan[i].line.PartNumber != plan[j].line.PartNumber {
			return plan[i].line.PartNumber < plan[j].line.PartNumber
		}
		return plan[i].line.ID < plan[j].line.ID
	})
	return plan, nil
}

// statusAfterReceipt applies a validated plan to the lines and returns the
// order's next status.
func statusAfterReceipt(lines []PurchaseOrderLine, plan []receiptLine) POStatus {
	received := make(map[int]int, len(plan))
	for _, r := range plan {
		received[r.line.ID] = r.quantity
	}
	for _, l := range lines {
		if l.QuantityReceived+received[l.ID] < l.Quantity {
			return POPartiallyReceived
		}
	}
	return POReceived
}

// PurchaseOrderService provides the purchase order lifecycle:
// DRAFT → SUBMITTED → ORDERED → SHIPPED → (PARTIALLY_RECEIVED ⇄ SHIPPED) → RECEIVED,
// with CANCELLED reachable from any state before RECEIVED.
type PurchaseOrderService interface {
	// CreatePO creates a new DRAFT purchase order.
	CreatePO(ctx context.Context, in CreatePOInput) (*PurchaseOrder, error)
	// AddLine appends a line to a DRAFT order.
	AddLine(ctx context.Context, poID int, line POLineInput) (*PurchaseOrder, error)

	// Submit moves a DRAFT order with at least one line to SUBMITTED and
	// assigns its gapless PO number.
	Submit(ctx context.Context, poID int) (*PurchaseOrder, error)
	MarkOrdered(ctx context.Context, poID int) (*PurchaseOrder, error)
	// MarkShipped moves an ORDERED or PARTIALLY_RECEIVED order to SHIPPED.
	// Tracking is optional.
	MarkShipped(ctx context.Context, poID int, tracking *TrackingInput) (*PurchaseOrder, error)
	// SetTracking records carrier details on any non-terminal order.
	SetTracking(ctx context.Context, poID int, tracking TrackingInput) (*PurchaseOrder, error)

	// Receive books deliveries against a SHIPPED or PARTIALLY_RECEIVED order.
	// All deliveries are validated first; then every accepted quantity becomes a
	// ledger layer at the line's unit cost in the same transaction.
	Receive(ctx context.Context, poID int, deliveries []Delivery, shipmentID *int) (*PurchaseOrder, error)
	// Cancel stops further receiving. Layers already received stay.
	Cancel(ctx context.Context, poID int) (*PurchaseOrder, error)

	GetPO(ctx context.Context, poID int) (*PurchaseOrder, error)
	// ListPOs returns orders newest first. An empty status returns all orders.
	ListPOs(ctx context.Context, status POStatus) ([]PurchaseOrder, error)

	// DraftFromAlerts creates one DRAFT order per supplier covering the alerts.
	DraftFromAlerts(ctx context.Context, alerts []Alert) (*DraftResult, error)
}

type SkippedAlert struct {
	PartNumber string `json:"part_number"`
	Reason     string `json:"reason"`
}

type DraftResult struct {
	Orders  []PurchaseOrder `json:"orders"`
	Skipped []SkippedAlert  `json:"skipped,omitempty"`
}
