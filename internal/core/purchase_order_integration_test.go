package core_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"parts-engine/internal/core"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

func newPOServices(pool *pgxpool.Pool) (core.PurchaseOrderService, core.SupplierService, core.LedgerService) {
	ledger := core.NewLedgerService(pool, nil)
	suppliers := core.NewSupplierService(pool)
	return core.NewPurchaseOrderService(pool, ledger, suppliers), suppliers, ledger
}

func supplierID(t *testing.T, suppliers core.SupplierService, code string) int {
	t.Helper()
	s, err := suppliers.GetSupplierByCode(context.Background(), code)
	if err != nil {
		t.Fatalf("GetSupplierByCode %s: %v", code, err)
	}
	return s.ID
}

// shippedOrder creates an order for 4 x W10295370A @ 18.40 plus a core line and
// moves it to SHIPPED.
func shippedOrder(t *testing.T, pos core.PurchaseOrderService, supplier int) *core.PurchaseOrder {
	t.Helper()
	ctx := context.Background()
	cost := decimal.RequireFromString("18.40")
	po, err := pos.CreatePO(ctx, core.CreatePOInput{
		SupplierID:   supplier,
		ShippingCost: decimal.RequireFromString("9.95"),
		Lines: []core.POLineInput{
			{PartNumber: "W10295370A", Quantity: 4, UnitCost: &cost},
			{PartNumber: "WH23X10030", Quantity: 1, UnitCost: &cost, HasCore: true, CoreCharge: decimal.RequireFromString("35.00")},
		},
	})
	if err != nil {
		t.Fatalf("CreatePO: %v", err)
	}
	if po.Status != core.PODraft || po.PONumber != nil {
		t.Fatalf("expected unnumbered DRAFT, got %s %v", po.Status, po.PONumber)
	}

	if po, err = pos.Submit(ctx, po.ID); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if po, err = pos.MarkOrdered(ctx, po.ID); err != nil {
		t.Fatalf("MarkOrdered: %v", err)
	}
	if po, err = pos.MarkShipped(ctx, po.ID, &core.TrackingInput{Carrier: "UPS", TrackingNumber: "1Z999"}); err != nil {
		t.Fatalf("MarkShipped: %v", err)
	}
	return po
}

func TestPurchaseOrder_Lifecycle(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	pos, suppliers, ledger := newPOServices(pool)

	po := shippedOrder(t, pos, supplierID(t, suppliers, "MARCONE"))

	want := fmt.Sprintf("PO-%d-00001", time.Now().Year())
	if po.PONumber == nil || *po.PONumber != want {
		t.Errorf("expected number %s, got %v", want, po.PONumber)
	}
	if po.TrackingNumber == nil || *po.TrackingNumber != "1Z999" {
		t.Errorf("expected tracking 1Z999, got %v", po.TrackingNumber)
	}
	if !po.Total().Equal(decimal.RequireFromString("101.95")) {
		t.Errorf("expected total 101.95, got %s", po.Total())
	}

	main := po.Lines[0]
	po, err := pos.Receive(ctx, po.ID, []core.Delivery{{LineID: main.ID, Quantity: 3}}, nil)
	if err != nil {
		t.Fatalf("partial Receive: %v", err)
	}
	if po.Status != core.POPartiallyReceived {
		t.Errorf("expected PARTIALLY_RECEIVED, got %s", po.Status)
	}

	po, err = pos.Receive(ctx, po.ID, []core.Delivery{
		{LineID: po.Lines[0].ID, Quantity: 1},
		{LineID: po.Lines[1].ID, Quantity: 1},
	}, nil)
	if err != nil {
		t.Fatalf("final Receive: %v", err)
	}
	if po.Status != core.POReceived || po.ReceivedAt == nil {
		t.Errorf("expected RECEIVED with timestamp, got %s", po.Status)
	}

	layers, err := ledger.Layers(ctx, "W10295370A", true)
	if err != nil {
		t.Fatalf("Layers: %v", err)
	}
	if len(layers) != 2 {
		t.Fatalf("expected one layer per delivery, got %d", len(layers))
	}
	for _, l := range layers {
		if l.Source != core.SourcePurchaseOrder || !l.UnitCost.Equal(decimal.RequireFromString("18.40")) {
			t.Errorf("unexpected layer %+v", l)
		}
	}
	if stock := assertConservation(t, pool, "W10295370A"); stock != 4 {
		t.Errorf("expected stock 4, got %d", stock)
	}

	if _, err := pos.Cancel(ctx, po.ID); !errors.Is(err, core.ErrInvalidTransition) {
		t.Errorf("cancel after receipt: expected ErrInvalidTransition, got %v", err)
	}
}

func TestPurchaseOrder_OverReceiptChangesNothing(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	pos, suppliers, _ := newPOServices(pool)

	po := shippedOrder(t, pos, supplierID(t, suppliers, "MARCONE"))

	_, err := pos.Receive(ctx, po.ID, []core.Delivery{
		{LineID: po.Lines[1].ID, Quantity: 1},
		{LineID: po.Lines[0].ID, Quantity: 3},
		{LineID: po.Lines[0].ID, Quantity: 2},
	}, nil)
	var over *core.OverReceiptError
	if !errors.As(err, &over) {
		t.Fatalf("expected OverReceiptError, got %v", err)
	}
	if over.Delivered != 5 || over.Ordered != 4 {
		t.Errorf("expected 5 delivered against 4 ordered, got %+v", over)
	}

	after, err := pos.GetPO(ctx, po.ID)
	if err != nil {
		t.Fatalf("GetPO: %v", err)
	}
	if after.Status != core.POShipped {
		t.Errorf("status must stay SHIPPED, got %s", after.Status)
	}
	for _, l := range after.Lines {
		if l.QuantityReceived != 0 {
			t.Errorf("line %d received %d, want 0", l.ID, l.QuantityReceived)
		}
	}

	var layers int
	if err := pool.QueryRow(ctx, "SELECT COUNT(*) FROM inventory_layers").Scan(&layers); err != nil {
		t.Fatalf("count layers: %v", err)
	}
	if layers != 0 {
		t.Errorf("expected no layers after rejected receipt, got %d", layers)
	}
}

func TestPurchaseOrder_InvalidTransitions(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	pos, suppliers, _ := newPOServices(pool)
	supplier := supplierID(t, suppliers, "RELIABLE")

	empty, err := pos.CreatePO(ctx, core.CreatePOInput{SupplierID: supplier})
	if err != nil {
		t.Fatalf("CreatePO: %v", err)
	}
	if _, err := pos.Submit(ctx, empty.ID); !errors.Is(err, core.ErrEmptyOrder) {
		t.Errorf("submitting an empty order: expected ErrEmptyOrder, got %v", err)
	}
	if _, err := pos.MarkShipped(ctx, empty.ID, nil); !errors.Is(err, core.ErrInvalidTransition) {
		t.Errorf("DRAFT -> SHIPPED: expected ErrInvalidTransition, got %v", err)
	}
	if _, err := pos.Receive(ctx, empty.ID, nil, nil); !errors.Is(err, core.ErrInvalidTransition) {
		t.Errorf("receiving a DRAFT: expected ErrInvalidTransition, got %v", err)
	}

	// Unpriced parts cannot default their unit cost.
	_, err = pos.AddLine(ctx, empty.ID, core.POLineInput{PartNumber: "NO-PRICE", Quantity: 1})
	if !errors.Is(err, core.ErrMissingPricing) {
		t.Errorf("expected ErrMissingPricing, got %v", err)
	}

	if _, err := pos.Cancel(ctx, empty.ID); err != nil {
		t.Fatalf("Cancel DRAFT: %v", err)
	}
	if _, err := pos.AddLine(ctx, empty.ID, core.POLineInput{PartNumber: "X", Quantity: 1}); !errors.Is(err, core.ErrOrderNotEditable) {
		t.Errorf("editing a cancelled order: expected ErrOrderNotEditable, got %v", err)
	}
}

func TestPurchaseOrder_DraftFromAlerts(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	pos, suppliers, _ := newPOServices(pool)
	marcone := supplierID(t, suppliers, "MARCONE")
	reliable := supplierID(t, suppliers, "RELIABLE")

	prices := []core.SupplierPriceInput{
		{SupplierID: marcone, PartNumber: "WR55X10025", UnitPrice: decimal.RequireFromString("42.00"), LeadTimeDays: 2},
		{SupplierID: reliable, PartNumber: "WR55X10025", UnitPrice: decimal.RequireFromString("39.50"), LeadTimeDays: 5},
		{SupplierID: reliable, PartNumber: "DC62-00311A", UnitPrice: decimal.RequireFromString("12.00"), LeadTimeDays: 3, Preferred: true},
		{SupplierID: marcone, PartNumber: "DC62-00311A", UnitPrice: decimal.RequireFromString("10.00"), LeadTimeDays: 1},
	}
	for _, p := range prices {
		if _, err := suppliers.SetPrice(ctx, p); err != nil {
			t.Fatalf("SetPrice: %v", err)
		}
	}

	res, err := pos.DraftFromAlerts(ctx, []core.Alert{
		{PartNumber: "WR55X10025", RecommendedQty: 2},
		{PartNumber: "DC62-00311A", RecommendedQty: 3},
		{PartNumber: "UNPRICED", RecommendedQty: 1},
	})
	if err != nil {
		t.Fatalf("DraftFromAlerts: %v", err)
	}
	if len(res.Skipped) != 1 || res.Skipped[0].PartNumber != "UNPRICED" {
		t.Errorf("expected UNPRICED skipped, got %+v", res.Skipped)
	}
	if len(res.Orders) != 1 {
		t.Fatalf("cheapest and preferred both point at RELIABLE, got %d orders", len(res.Orders))
	}
	o := res.Orders[0]
	if o.SupplierID != reliable || o.Status != core.PODraft || len(o.Lines) != 2 {
		t.Errorf("unexpected draft %+v", o)
	}
	if !strings.Contains(*o.Notes, "alerts") {
		t.Errorf("expected drafted note, got %v", o.Notes)
	}
}

func TestPurchaseOrder_ReceivingAFullOrderIsOverReceipt(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	pos, suppliers, _ := newPOServices(pool)

	cost := money("6.25")
	po, err := pos.CreatePO(ctx, core.CreatePOInput{
		SupplierID: supplierID(t, suppliers, "RELIABLE"),
		Lines:      []core.POLineInput{{PartNumber: "WE1M504", Quantity: 10, UnitCost: &cost}},
	})
	if err != nil {
		t.Fatalf("CreatePO: %v", err)
	}
	for _, step := range []func(context.Context, int) (*core.PurchaseOrder, error){pos.Submit, pos.MarkOrdered} {
		if _, err := step(ctx, po.ID); err != nil {
			t.Fatalf("advance order: %v", err)
		}
	}
	if _, err := pos.MarkShipped(ctx, po.ID, nil); err != nil {
		t.Fatalf("MarkShipped: %v", err)
	}

	lineID := po.Lines[0].ID
	po, err = pos.Receive(ctx, po.ID, []core.Delivery{{LineID: lineID, Quantity: 10}}, nil)
	if err != nil {
		t.Fatalf("Receive 10: %v", err)
	}
	if po.Status != core.POReceived {
		t.Fatalf("expected RECEIVED, got %s", po.Status)
	}

	_, err = pos.Receive(ctx, po.ID, []core.Delivery{{LineID: lineID, Quantity: 1}}, nil)
	var over *core.OverReceiptError
	if !errors.As(err, &over) {
		t.Fatalf("expected OverReceiptError for the 11th unit, got %v", err)
	}
	if over.Ordered != 10 || over.Received != 10 || over.Delivered != 1 {
		t.Errorf("unexpected over-receipt detail %+v", over)
	}

	after, err := pos.GetPO(ctx, po.ID)
	if err != nil {
		t.Fatalf("GetPO: %v", err)
	}
	if after.Status != core.POReceived || after.Lines[0].QuantityReceived != 10 {
		t.Errorf("order must be unchanged, got %s with %d received", after.Status, after.Lines[0].QuantityReceived)
	}
	if stock := assertConservation(t, pool, "WE1M504"); stock != 10 {
		t.Errorf("expected stock 10, got %d", stock)
	}

	// A cancelled order is still a status error, whatever the deliveries say.
	cancelled, err := pos.CreatePO(ctx, core.CreatePOInput{
		SupplierID: supplierID(t, suppliers, "RELIABLE"),
		Lines:      []core.POLineInput{{PartNumber: "WE1M504", Quantity: 1, UnitCost: &cost}},
	})
	if err != nil {
		t.Fatalf("CreatePO: %v", err)
	}
	if _, err := pos.Cancel(ctx, cancelled.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	_, err = pos.Receive(ctx, cancelled.ID, []core.Delivery{{LineID: cancelled.Lines[0].ID, Quantity: 1}}, nil)
	if !errors.Is(err, core.ErrInvalidTransition) {
		t.Errorf("receiving a cancelled order: expected ErrInvalidTransition, got %v", err)
	}
}
