package core_test

import (
	"context"
	"errors"
	"testing"

	"parts-engine/internal/core"
)

func TestShipment_LinksOrdersAndStampsDelivery(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	pos, suppliers, _ := newPOServices(pool)
	shipments := core.NewShipmentService(pool)

	first := shippedOrder(t, pos, supplierID(t, suppliers, "MARCONE"))
	second := shippedOrder(t, pos, supplierID(t, suppliers, "MARCONE"))

	sh, err := shipments.CreateShipment(ctx, core.ShipmentInput{
		Carrier:        "FedEx",
		TrackingNumber: "7712 3456 0001",
		OrderIDs:       []int{second.ID, first.ID, first.ID},
	})
	if err != nil {
		t.Fatalf("CreateShipment: %v", err)
	}
	if sh.Status != core.ShipmentPending || sh.DeliveredAt != nil {
		t.Errorf("expected PENDING without delivery date, got %s %v", sh.Status, sh.DeliveredAt)
	}
	if len(sh.OrderIDs) != 2 || sh.OrderIDs[0] != first.ID || sh.OrderIDs[1] != second.ID {
		t.Errorf("expected orders [%d %d], got %v", first.ID, second.ID, sh.OrderIDs)
	}

	if sh, err = shipments.UpdateStatus(ctx, sh.ID, core.ShipmentInTransit); err != nil {
		t.Fatalf("UpdateStatus IN_TRANSIT: %v", err)
	}
	if sh.DeliveredAt != nil {
		t.Errorf("in-transit shipment must not have a delivery date")
	}

	if sh, err = shipments.UpdateStatus(ctx, sh.ID, core.ShipmentDelivered); err != nil {
		t.Fatalf("UpdateStatus DELIVERED: %v", err)
	}
	if sh.DeliveredAt == nil {
		t.Fatalf("DELIVERED must stamp delivered_at")
	}
	stamped := *sh.DeliveredAt

	if sh, err = shipments.UpdateStatus(ctx, sh.ID, core.ShipmentDelivered); err != nil {
		t.Fatalf("UpdateStatus DELIVERED again: %v", err)
	}
	if sh.DeliveredAt == nil || !sh.DeliveredAt.Equal(stamped) {
		t.Errorf("delivered_at must be stamped once, got %v want %v", sh.DeliveredAt, stamped)
	}

	// Shipment status never moves the orders.
	po, err := pos.GetPO(ctx, first.ID)
	if err != nil {
		t.Fatalf("GetPO: %v", err)
	}
	if po.Status != core.POShipped {
		t.Errorf("order status must stay SHIPPED, got %s", po.Status)
	}
}

func TestShipment_Errors(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	shipments := core.NewShipmentService(pool)

	if _, err := shipments.CreateShipment(ctx, core.ShipmentInput{Carrier: "UPS", OrderIDs: []int{999}}); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("unknown order: expected ErrNotFound, got %v", err)
	}
	var count int
	if err := pool.QueryRow(ctx, "SELECT COUNT(*) FROM shipments").Scan(&count); err != nil {
		t.Fatalf("count shipments: %v", err)
	}
	if count != 0 {
		t.Errorf("failed create must not leave a shipment, found %d", count)
	}

	if _, err := shipments.UpdateStatus(ctx, 42, core.ShipmentDelivered); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("unknown shipment: expected ErrNotFound, got %v", err)
	}
	if _, err := shipments.UpdateStatus(ctx, 42, "LOST"); !errors.Is(err, core.ErrInvalidInput) {
		t.Errorf("unknown status: expected ErrInvalidInput, got %v", err)
	}
	if _, err := shipments.GetShipment(ctx, 42); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("GetShipment: expected ErrNotFound, got %v", err)
	}
}

func TestShipment_ReceiptRecordsShipment(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	pos, suppliers, _ := newPOServices(pool)
	shipments := core.NewShipmentService(pool)

	po := shippedOrder(t, pos, supplierID(t, suppliers, "RELIABLE"))
	sh, err := shipments.CreateShipment(ctx, core.ShipmentInput{Carrier: "UPS", TrackingNumber: "1Z999"})
	if err != nil {
		t.Fatalf("CreateShipment: %v", err)
	}
	if len(sh.OrderIDs) != 0 {
		t.Fatalf("expected no linked orders yet, got %v", sh.OrderIDs)
	}

	if _, err := pos.Receive(ctx, po.ID, []core.Delivery{{LineID: po.Lines[0].ID, Quantity: 2}}, &sh.ID); err != nil {
		t.Fatalf("Receive: %v", err)
	}

	sh, err = shipments.GetShipment(ctx, sh.ID)
	if err != nil {
		t.Fatalf("GetShipment: %v", err)
	}
	if len(sh.OrderIDs) != 1 || sh.OrderIDs[0] != po.ID {
		t.Errorf("receipt must link order %d to the shipment, got %v", po.ID, sh.OrderIDs)
	}

	var tagged int
	if err := pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM inventory_transactions
		WHERE type = 'RECEIVED' AND order_id = $1 AND shipment_id = $2`, po.ID, sh.ID,
	).Scan(&tagged); err != nil {
		t.Fatalf("count transactions: %v", err)
	}
	if tagged != 1 {
		t.Errorf("expected 1 RECEIVED transaction tagged with the shipment, got %d", tagged)
	}
}
