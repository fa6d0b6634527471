package core_test

import (
	"context"
	"errors"
	"testing"

	"parts-engine/internal/core"

	"github.com/shopspring/decimal"
)

func TestCoreCharge_ReturnAndOverdue(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	pos, suppliers, _ := newPOServices(pool)
	cores := core.NewCoreChargeService(pool)

	po := shippedOrder(t, pos, supplierID(t, suppliers, "MARCONE"))
	plain, withCore := po.Lines[0], po.Lines[1]
	if withCore.Core == nil || !withCore.Core.Charge.Equal(decimal.RequireFromString("35.00")) {
		t.Fatalf("expected a 35.00 core on line 2, got %+v", withCore.Core)
	}

	// Unreceived cores are not outstanding yet.
	total, err := cores.OutstandingCoreTotal(ctx)
	if err != nil || !total.IsZero() {
		t.Fatalf("expected no outstanding cores before receipt, got %s (%v)", total, err)
	}

	if _, err := pos.Receive(ctx, po.ID, []core.Delivery{{LineID: withCore.ID, Quantity: 1}}, nil); err != nil {
		t.Fatalf("Receive: %v", err)
	}

	total, _ = cores.OutstandingCoreTotal(ctx)
	if !total.Equal(decimal.RequireFromString("35.00")) {
		t.Errorf("expected 35.00 outstanding, got %s", total)
	}

	overdue, err := cores.OverdueCores(ctx, 0)
	if err != nil {
		t.Fatalf("OverdueCores: %v", err)
	}
	if len(overdue) != 1 || overdue[0].LineID != withCore.ID || overdue[0].SupplierCode != "MARCONE" {
		t.Errorf("expected the received core to be listed, got %+v", overdue)
	}
	if overdue, _ = cores.OverdueCores(ctx, 30); len(overdue) != 0 {
		t.Errorf("a core received today is not 30 days overdue, got %+v", overdue)
	}

	if _, err := cores.MarkCoreReturned(ctx, plain.ID, core.CoreReturnInput{}); !errors.Is(err, core.ErrNoCore) {
		t.Errorf("line without core: expected ErrNoCore, got %v", err)
	}

	credit := decimal.RequireFromString("30.00")
	line, err := cores.MarkCoreReturned(ctx, withCore.ID, core.CoreReturnInput{Tracking: "1ZRET", CreditAmount: &credit})
	if err != nil {
		t.Fatalf("MarkCoreReturned: %v", err)
	}
	if !line.Core.Returned || line.Core.ReturnDate == nil || !line.Core.CreditAmount.Equal(credit) {
		t.Errorf("unexpected core after return: %+v", line.Core)
	}

	if _, err := cores.MarkCoreReturned(ctx, withCore.ID, core.CoreReturnInput{}); !errors.Is(err, core.ErrCoreAlreadyReturned) {
		t.Errorf("second return: expected ErrCoreAlreadyReturned, got %v", err)
	}
	total, _ = cores.OutstandingCoreTotal(ctx)
	if !total.IsZero() {
		t.Errorf("expected nothing outstanding after return, got %s", total)
	}
}
