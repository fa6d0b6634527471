package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const poDocumentType = "PO"

type purchaseOrderService struct {
	pool    *pgxpool.Pool
	ledger  LedgerService
	pricing PricingSource
	now     func() time.Time
}

// NewPurchaseOrderService constructs a PurchaseOrderService backed by PostgreSQL.
// Receipts go through ledger; omitted line costs are defaulted from pricing.
func NewPurchaseOrderService(pool *pgxpool.Pool, ledger LedgerService, pricing PricingSource) PurchaseOrderService {
	return &purchaseOrderService{pool: pool, ledger: ledger, pricing: pricing, now: time.Now}
}

// CreatePO creates a new DRAFT purchase order.
func (s *purchaseOrderService) CreatePO(ctx context.Context, in CreatePOInput) (*PurchaseOrder, error) {
	if in.ShippingCost.IsNegative() || in.Tax.IsNegative() {
		return nil, invalidInput("shipping cost and tax cannot be negative")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var supplierExists bool
	if err := tx.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM suppliers WHERE id = $1 AND is_active = true)",
		in.SupplierID,
	).Scan(&supplierExists); err != nil {
		return nil, fmt.Errorf("validate supplier: %w", err)
	}
	if !supplierExists {
		return nil, fmt.Errorf("supplier %d: %w", in.SupplierID, ErrNotFound)
	}

	var poID int
	if err := tx.QueryRow(ctx, `
		INSERT INTO purchase_orders (supplier_id, status, shipping_cost, tax, notes)
		VALUES ($1, 'DRAFT', $2, $3, $4)
		RETURNING id`,
		in.SupplierID, in.ShippingCost, in.Tax, toPtr(in.Notes),
	).Scan(&poID); err != nil {
		return nil, fmt.Errorf("insert purchase order: %w", err)
	}

	for i, line := range in.Lines {
		if err := s.insertLine(ctx, tx, poID, in.SupplierID, i+1, line); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit purchase order: %w", err)
	}
	return s.GetPO(ctx, poID)
}

func (s *purchaseOrderService) AddLine(ctx context.Context, poID int, line POLineInput) (*PurchaseOrder, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	status, supplierID, err := lockPO(ctx, tx, poID)
	if err != nil {
		return nil, err
	}
	if status != PODraft {
		return nil, fmt.Errorf("purchase order %d is %s: %w", poID, status, ErrOrderNotEditable)
	}

	var next int
	if err := tx.QueryRow(ctx,
		"SELECT COALESCE(MAX(line_number), 0) + 1 FROM purchase_order_lines WHERE order_id = $1", poID,
	).Scan(&next); err != nil {
		return nil, fmt.Errorf("next line number: %w", err)
	}
	if err := s.insertLine(ctx, tx, poID, supplierID, next, line); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit PO line: %w", err)
	}
	return s.GetPO(ctx, poID)
}

func (s *purchaseOrderService) insertLine(ctx context.Context, tx pgx.Tx, poID, supplierID, lineNumber int, in POLineInput) error {
	if in.PartNumber == "" {
		return invalidInput("line %d: part number is required", lineNumber)
	}
	if err := requirePositive(fmt.Sprintf("line %d quantity", lineNumber), in.Quantity); err != nil {
		return err
	}
	if in.HasCore && in.CoreCharge.IsNegative() {
		return invalidInput("line %d: core charge cannot be negative", lineNumber)
	}

	unitCost, err := s.lineCost(ctx, supplierID, in)
	if err != nil {
		return fmt.Errorf("line %d: %w", lineNumber, err)
	}
	if unitCost.IsNegative() {
		return invalidInput("line %d: unit cost cannot be negative", lineNumber)
	}

	if err := registerPartTx(ctx, tx, in.PartNumber); err != nil {
		return err
	}

	var coreCharge *decimal.Decimal
	if in.HasCore {
		c := in.CoreCharge
		coreCharge = &c
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO purchase_order_lines (order_id, line_number, part_number, quantity, unit_cost,
		                                  has_core, core_charge)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		poID, lineNumber, in.PartNumber, in.Quantity, unitCost, in.HasCore, coreCharge,
	); err != nil {
		return fmt.Errorf("insert PO line %d: %w", lineNumber, err)
	}
	return nil
}

// lineCost returns the explicit unit cost or the supplier's active price for the part.
func (s *purchaseOrderService) lineCost(ctx context.Context, supplierID int, in POLineInput) (decimal.Decimal, error) {
	if in.UnitCost != nil {
		return *in.UnitCost, nil
	}
	prices, err := s.pricing.PricingForPart(ctx, in.PartNumber)
	if err != nil {
		return decimal.Zero, err
	}
	for _, p := range prices {
		if p.SupplierID == supplierID && p.IsActive {
			return p.UnitPrice, nil
		}
	}
	return decimal.Zero, fmt.Errorf("no unit cost given for %s and supplier %d has no price: %w",
		in.PartNumber, supplierID, ErrMissingPricing)
}

// ── Lifecycle transitions ─────────────────────────────────────────────────────

// Submit moves a DRAFT order to SUBMITTED and assigns a gapless PO-<year>-NNNNN number.
func (s *purchaseOrderService) Submit(ctx context.Context, poID int) (*PurchaseOrder, error) {
	return s.transition(ctx, poID, POSubmitted, func(ctx context.Context, tx pgx.Tx) error {
		var lines int
		if err := tx.QueryRow(ctx,
			"SELECT COUNT(*) FROM purchase_order_lines WHERE order_id = $1", poID,
		).Scan(&lines); err != nil {
			return fmt.Errorf("count PO lines: %w", err)
		}
		if lines == 0 {
			return fmt.Errorf("purchase order %d: %w", poID, ErrEmptyOrder)
		}

		number, err := nextDocumentNumber(ctx, tx, poDocumentType, s.now().Year())
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			UPDATE purchase_orders SET status = 'SUBMITTED', po_number = $1, submitted_at = NOW()
			WHERE id = $2`, number, poID); err != nil {
			return fmt.Errorf("submit purchase order %d: %w", poID, err)
		}
		return nil
	})
}

func (s *purchaseOrderService) MarkOrdered(ctx context.Context, poID int) (*PurchaseOrder, error) {
	return s.transition(ctx, poID, POOrdered, func(ctx context.Context, tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			"UPDATE purchase_orders SET status = 'ORDERED', ordered_at = NOW() WHERE id = $1", poID); err != nil {
			return fmt.Errorf("mark purchase order %d ordered: %w", poID, err)
		}
		return nil
	})
}

func (s *purchaseOrderService) MarkShipped(ctx context.Context, poID int, tracking *TrackingInput) (*PurchaseOrder, error) {
	return s.transition(ctx, poID, POShipped, func(ctx context.Context, tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			UPDATE purchase_orders SET status = 'SHIPPED', shipped_at = COALESCE(shipped_at, NOW())
			WHERE id = $1`, poID); err != nil {
			return fmt.Errorf("mark purchase order %d shipped: %w", poID, err)
		}
		if tracking != nil {
			return setTracking(ctx, tx, poID, *tracking)
		}
		return nil
	})
}

func (s *purchaseOrderService) SetTracking(ctx context.Context, poID int, tracking TrackingInput) (*PurchaseOrder, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	status, _, err := lockPO(ctx, tx, poID)
	if err != nil {
		return nil, err
	}
	if status.Terminal() {
		return nil, fmt.Errorf("purchase order %d is %s: %w", poID, status, ErrOrderNotEditable)
	}
	if err := setTracking(ctx, tx, poID, tracking); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tracking: %w", err)
	}
	return s.GetPO(ctx, poID)
}

func setTracking(ctx context.Context, tx pgx.Tx, poID int, t TrackingInput) error {
	if _, err := tx.Exec(ctx,
		"UPDATE purchase_orders SET carrier = $1, tracking_number = $2 WHERE id = $3",
		toPtr(t.Carrier), toPtr(t.TrackingNumber), poID,
	); err != nil {
		return fmt.Errorf("set tracking on purchase order %d: %w", poID, err)
	}
	return nil
}

// Cancel is allowed from any state before RECEIVED and never reverses receipts.
func (s *purchaseOrderService) Cancel(ctx context.Context, poID int) (*PurchaseOrder, error) {
	return s.transition(ctx, poID, POCancelled, func(ctx context.Context, tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			"UPDATE purchase_orders SET status = 'CANCELLED', cancelled_at = NOW() WHERE id = $1", poID); err != nil {
			return fmt.Errorf("cancel purchase order %d: %w", poID, err)
		}
		return nil
	})
}

// transition locks the order, checks the move is legal and runs apply in the
// same transaction. Illegal moves return *InvalidTransitionError with nothing changed.
func (s *purchaseOrderService) transition(ctx context.Context, poID int, to POStatus,
	apply func(ctx context.Context, tx pgx.Tx) error) (*PurchaseOrder, error) {

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	from, _, err := lockPO(ctx, tx, poID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(from, to) {
		return nil, &InvalidTransitionError{OrderID: poID, From: from, To: to}
	}
	if err := apply(ctx, tx); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit purchase order %d: %w", poID, err)
	}
	return s.GetPO(ctx, poID)
}

// ── Receiving ─────────────────────────────────────────────────────────────────

func (s *purchaseOrderService) Receive(ctx context.Context, poID int, deliveries []Delivery, shipmentID *int) (*PurchaseOrder, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	status, _, err := lockPO(ctx, tx, poID)
	if err != nil {
		return nil, err
	}
	// A fully received order still goes through planReceipt so that another
	// delivery reports the over-receipt rather than a status error.
	if !status.Receivable() && status != POReceived {
		return nil, &InvalidTransitionError{OrderID: poID, From: status, To: POReceived}
	}

	lines, err := fetchLines(ctx, tx, poID, true)
	if err != nil {
		return nil, err
	}
	plan, err := planReceipt(poID, lines, deliveries)
	if err != nil {
		return nil, err
	}
	if !status.Receivable() {
		return nil, &InvalidTransitionError{OrderID: poID, From: status, To: POReceived}
	}

	if shipmentID != nil {
		if _, err := tx.Exec(ctx, `
			INSERT INTO shipment_orders (shipment_id, order_id) VALUES ($1, $2)
			ON CONFLICT DO NOTHING`, *shipmentID, poID,
		); err != nil {
			return nil, fmt.Errorf("link shipment %d to purchase order %d: %w", *shipmentID, poID, err)
		}
	}

	// plan is sorted by part number, so part locks are always taken in the same order.
	for _, r := range plan {
		orderID, lineID := poID, r.line.ID
		if _, err := s.ledger.ReceiveTx(ctx, tx, ReceiveInput{
			PartNumber:  r.line.PartNumber,
			Quantity:    r.quantity,
			UnitCost:    r.line.UnitCost,
			Source:      SourcePurchaseOrder,
			OrderID:     &orderID,
			OrderLineID: &lineID,
			ShipmentID:  shipmentID,
		}); err != nil {
			return nil, fmt.Errorf("receive PO line %d (%s): %w", r.line.ID, r.line.PartNumber, err)
		}
		if _, err := tx.Exec(ctx,
			"UPDATE purchase_order_lines SET quantity_received = quantity_received + $1 WHERE id = $2",
			r.quantity, r.line.ID,
		); err != nil {
			return nil, fmt.Errorf("update PO line %d: %w", r.line.ID, err)
		}
	}

	next := statusAfterReceipt(lines, plan)
	if !CanTransition(status, next) {
		return nil, &InvalidTransitionError{OrderID: poID, From: status, To: next}
	}
	if _, err := tx.Exec(ctx, `
		UPDATE purchase_orders
		SET status = $1,
		    received_at = CASE WHEN $1 = 'RECEIVED' THEN NOW() ELSE received_at END
		WHERE id = $2`,
		string(next), poID,
	); err != nil {
		return nil, fmt.Errorf("update purchase order %d status: %w", poID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit receipt: %w", err)
	}
	return s.GetPO(ctx, poID)
}

// ── Drafting from alerts ──────────────────────────────────────────────────────

// DraftFromAlerts orders each alert from the part's preferred supplier, or the
// cheapest active one. Alerts without any active pricing are skipped.
func (s *purchaseOrderService) DraftFromAlerts(ctx context.Context, alerts []Alert) (*DraftResult, error) {
	res := &DraftResult{}
	bySupplier := make(map[int][]POLineInput)

	for _, a := range alerts {
		prices, err := s.pricing.PricingForPart(ctx, a.PartNumber)
		if err != nil {
			return nil, err
		}
		best, err := bestPrice(prices)
		if err != nil {
			res.Skipped = append(res.Skipped, SkippedAlert{PartNumber: a.PartNumber, Reason: err.Error()})
			continue
		}
		cost := best.UnitPrice
		bySupplier[best.SupplierID] = append(bySupplier[best.SupplierID], POLineInput{
			PartNumber: a.PartNumber,
			Quantity:   a.RecommendedQty,
			UnitCost:   &cost,
		})
	}

	suppliers := make([]int, 0, len(bySupplier))
	for id := range bySupplier {
		suppliers = append(suppliers, id)
	}
	sort.Ints(suppliers)

	for _, id := range suppliers {
		po, err := s.CreatePO(ctx, CreatePOInput{
			SupplierID: id,
			Lines:      bySupplier[id],
			Notes:      "Drafted from replenishment alerts",
		})
		if err != nil {
			return nil, fmt.Errorf("draft order for supplier %d: %w", id, err)
		}
		res.Orders = append(res.Orders, *po)
	}
	return res, nil
}

// ── Reads ─────────────────────────────────────────────────────────────────────

const poColumns = `po.id, po.po_number, po.supplier_id, s.code, s.name, po.status,
	po.shipping_cost, po.tax, po.notes, po.carrier, po.tracking_number,
	po.submitted_at, po.ordered_at, po.shipped_at, po.received_at, po.cancelled_at, po.created_at`

func scanPO(row pgx.Row, po *PurchaseOrder) error {
	return row.Scan(&po.ID, &po.PONumber, &po.SupplierID, &po.SupplierCode, &po.SupplierName, &po.Status,
		&po.ShippingCost, &po.Tax, &po.Notes, &po.Carrier, &po.TrackingNumber,
		&po.SubmittedAt, &po.OrderedAt, &po.ShippedAt, &po.ReceivedAt, &po.CancelledAt, &po.CreatedAt)
}

// GetPO returns a purchase order by its internal ID, including all lines.
func (s *purchaseOrderService) GetPO(ctx context.Context, poID int) (*PurchaseOrder, error) {
	po := &PurchaseOrder{}
	err := scanPO(s.pool.QueryRow(ctx, `
		SELECT `+poColumns+`
		FROM purchase_orders po
		JOIN suppliers s ON s.id = po.supplier_id
		WHERE po.id = $1`, poID), po)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("purchase order %d: %w", poID, ErrNotFound)
		}
		return nil, fmt.Errorf("get purchase order %d: %w", poID, err)
	}

	lines, err := fetchLines(ctx, s.pool, poID, false)
	if err != nil {
		return nil, err
	}
	po.Lines = lines
	return po, nil
}

func (s *purchaseOrderService) ListPOs(ctx context.Context, status POStatus) ([]PurchaseOrder, error) {
	query := `
		SELECT ` + poColumns + `
		FROM purchase_orders po
		JOIN suppliers s ON s.id = po.supplier_id`
	var args []any
	if status != "" {
		if !status.Valid() {
			return nil, invalidInput("unknown purchase order status %q", status)
		}
		query += " WHERE po.status = $1"
		args = append(args, string(status))
	}
	query += " ORDER BY po.created_at DESC, po.id DESC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list purchase orders: %w", err)
	}
	defer rows.Close()

	var orders []PurchaseOrder
	for rows.Next() {
		var po PurchaseOrder
		if err := scanPO(rows, &po); err != nil {
			return nil, fmt.Errorf("scan purchase order: %w", err)
		}
		orders = append(orders, po)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range orders {
		lines, err := fetchLines(ctx, s.pool, orders[i].ID, false)
		if err != nil {
			return nil, err
		}
		orders[i].Lines = lines
	}
	return orders, nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

const lineColumns = `pol.id, pol.order_id, pol.line_number, pol.part_number, pol.quantity,
	pol.quantity_received, pol.unit_cost, pol.has_core, pol.core_charge, pol.core_returned,
	pol.core_return_date, pol.core_tracking, pol.core_credit_amount`

func scanLine(row pgx.Row, l *PurchaseOrderLine) error {
	var (
		hasCore, returned bool
		charge, credit    *decimal.Decimal
		returnDate        *time.Time
		tracking          *string
	)
	if err := row.Scan(&l.ID, &l.OrderID, &l.LineNumber, &l.PartNumber, &l.Quantity,
		&l.QuantityReceived, &l.UnitCost, &hasCore, &charge, &returned,
		&returnDate, &tracking, &credit); err != nil {
		return err
	}
	if hasCore {
		l.Core = &CoreCharge{Returned: returned, ReturnDate: returnDate, Tracking: tracking, CreditAmount: credit}
		if charge != nil {
			l.Core.Charge = *charge
		}
	}
	return nil
}

// fetchLines returns all lines for a purchase order; forUpdate locks them.
func fetchLines(ctx context.Context, q querier, poID int, forUpdate bool) ([]PurchaseOrderLine, error) {
	query := `
		SELECT ` + lineColumns + `
		FROM purchase_order_lines pol
		WHERE pol.order_id = $1
		ORDER BY pol.line_number`
	if forUpdate {
		query += " FOR UPDATE"
	}
	rows, err := q.Query(ctx, query, poID)
	if err != nil {
		return nil, fmt.Errorf("fetch PO lines for order %d: %w", poID, err)
	}
	defer rows.Close()

	var lines []PurchaseOrderLine
	for rows.Next() {
		var l PurchaseOrderLine
		if err := scanLine(rows, &l); err != nil {
			return nil, fmt.Errorf("scan PO line: %w", err)
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func lockPO(ctx context.Context, tx pgx.Tx, poID int) (POStatus, int, error) {
	var status POStatus
	var supplierID int
	err := tx.QueryRow(ctx,
		"SELECT status, supplier_id FROM purchase_orders WHERE id = $1 FOR UPDATE", poID,
	).Scan(&status, &supplierID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", 0, fmt.Errorf("purchase order %d: %w", poID, ErrNotFound)
		}
		return "", 0, fmt.Errorf("fetch purchase order %d: %w", poID, err)
	}
	return status, supplierID, nil
}
