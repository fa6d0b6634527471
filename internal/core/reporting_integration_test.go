package core_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"parts-engine/internal/core"
)

func TestReporting_ValuationAndUsage(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	ledger := core.NewLedgerService(pool, nil)
	reports := core.NewReportingService(pool)

	receive := func(pn string, qty int, cost string) {
		t.Helper()
		if _, err := ledger.Receive(ctx, core.ReceiveInput{PartNumber: pn, Quantity: qty, UnitCost: money(cost)}); err != nil {
			t.Fatalf("Receive %s: %v", pn, err)
		}
	}
	consume := func(pn string, qty int, job string) {
		t.Helper()
		if _, err := ledger.Consume(ctx, core.ConsumeInput{PartNumber: pn, Quantity: qty, JobID: job}); err != nil {
			t.Fatalf("Consume %s: %v", pn, err)
		}
	}

	start := time.Now().Add(-time.Minute)
	receive("WR57X10032", 5, "10.00")
	receive("WR57X10032", 3, "12.00")
	consume("WR57X10032", 6, "JOB-1")
	receive("WH23X10030", 1, "42.15")
	receive("SOLD-OUT", 1, "5.00")
	consume("SOLD-OUT", 1, "JOB-2")

	v, err := reports.InventoryValuation(ctx)
	if err != nil {
		t.Fatalf("InventoryValuation: %v", err)
	}
	if len(v.Lines) != 2 {
		t.Fatalf("expected 2 parts with stock, got %+v", v.Lines)
	}
	fifo := v.Lines[1]
	if fifo.PartNumber != "WR57X10032" || fifo.CurrentStock != 2 || fifo.OpenLayers != 1 {
		t.Errorf("unexpected valuation line %+v", fifo)
	}
	if !fifo.Value.Equal(money("24.00")) {
		t.Errorf("2 remaining at 12.00: expected 24.00, got %s", fifo.Value)
	}
	if v.TotalUnits != 3 || !v.TotalValue.Equal(money("66.15")) {
		t.Errorf("expected 3 units worth 66.15, got %d worth %s", v.TotalUnits, v.TotalValue)
	}

	usage, err := reports.UsageCost(ctx, start, time.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("UsageCost: %v", err)
	}
	if len(usage) != 2 {
		t.Fatalf("expected usage for 2 parts, got %+v", usage)
	}
	if usage[0].PartNumber != "WR57X10032" || usage[0].Units != 6 || usage[0].Jobs != 1 || !usage[0].Cost.Equal(money("62.00")) {
		t.Errorf("unexpected top usage line %+v", usage[0])
	}
	if usage[1].PartNumber != "SOLD-OUT" || !usage[1].Cost.Equal(money("5.00")) {
		t.Errorf("unexpected second usage line %+v", usage[1])
	}

	before, err := reports.UsageCost(ctx, start.Add(-time.Hour), start)
	if err != nil {
		t.Fatalf("UsageCost before: %v", err)
	}
	if len(before) != 0 {
		t.Errorf("expected no usage before the first consume, got %+v", before)
	}

	if _, err := reports.UsageCost(ctx, start, start); !errors.Is(err, core.ErrInvalidInput) {
		t.Errorf("empty period: expected ErrInvalidInput, got %v", err)
	}
}
