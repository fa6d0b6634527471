package core_test

import (
	"context"
	"testing"

	"parts-engine/internal/core"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// useOnJob records a job and consumes one unit of the part against it.
func useOnJob(t *testing.T, pool *pgxpool.Pool, ledger core.LedgerService, pn string, callback bool) {
	t.Helper()
	ctx := context.Background()
	jobID := uuid.NewString()
	if _, err := pool.Exec(ctx, "INSERT INTO jobs (job_id, is_callback) VALUES ($1, $2)", jobID, callback); err != nil {
		t.Fatalf("insert job: %v", err)
	}
	if _, err := ledger.Consume(ctx, core.ConsumeInput{PartNumber: pn, Quantity: 1, JobID: jobID}); err != nil {
		t.Fatalf("Consume %s: %v", pn, err)
	}
}

func TestScoringAndPlanning_FromLedgerHistory(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	log := zap.NewNop()
	ledger := core.NewLedgerService(pool, nil)
	suppliers := core.NewSupplierService(pool)
	callbacks := core.NewCallbackSource(pool)
	scoring := core.NewScoringService(pool, callbacks, 4, log, nil)
	planner := core.NewPlannerService(pool, suppliers, callbacks, core.DefaultPlannerPolicy(), 4, log, nil)

	if _, err := ledger.Receive(ctx, core.ReceiveInput{PartNumber: "W10131362", Quantity: 10, UnitCost: decimal.RequireFromString("22.00")}); err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if _, err := ledger.Receive(ctx, core.ReceiveInput{PartNumber: "IDLE-PART", Quantity: 1, UnitCost: decimal.RequireFromString("80.00")}); err != nil {
		t.Fatalf("Receive: %v", err)
	}
	useOnJob(t, pool, ledger, "W10131362", true)
	useOnJob(t, pool, ledger, "W10131362", true)
	useOnJob(t, pool, ledger, "W10131362", false)

	n, err := callbacks.CallbackCount(ctx, "W10131362", nil)
	if err != nil || n != 2 {
		t.Fatalf("expected 2 callbacks, got %d (%v)", n, err)
	}

	res, err := scoring.RecalculateAll(ctx)
	if err != nil {
		t.Fatalf("RecalculateAll: %v", err)
	}
	if res.Processed != 2 || len(res.Failures) != 0 {
		t.Errorf("expected 2 parts scored without failures, got %+v", res)
	}

	p, err := core.NewPartService(pool).GetPart(ctx, "W10131362")
	if err != nil {
		t.Fatalf("GetPart: %v", err)
	}
	// Three uses today: frequency 4, recency 2, two callbacks 1, cheap part 1.
	if p.StockingScore != 8 {
		t.Errorf("expected stocking score 8, got %v", p.StockingScore)
	}
	idle, _ := core.NewPartService(pool).GetPart(ctx, "IDLE-PART")
	if idle.StockingScore != 0.5 {
		t.Errorf("unused expensive part should score 0.5, got %v", idle.StockingScore)
	}

	if _, err := suppliers.SetPrice(ctx, core.SupplierPriceInput{
		SupplierID: 1, PartNumber: "W10131362", UnitPrice: decimal.RequireFromString("21.00"),
		LeadTimeDays: 2, Preferred: true,
	}); err != nil {
		t.Fatalf("SetPrice: %v", err)
	}

	plan, err := planner.ApplyMinStock(ctx, "W10131362")
	if err != nil {
		t.Fatalf("ApplyMinStock: %v", err)
	}
	// Two callbacks do not exceed the threshold: ceil(3 * (2+7) * 1.2 / 90) = 1.
	if plan.Value != 1 || plan.Confidence != core.ConfidenceMedium {
		t.Errorf("expected min 1 at MEDIUM confidence, got %d %s", plan.Value, plan.Confidence)
	}
	p, _ = core.NewPartService(pool).GetPart(ctx, "W10131362")
	if p.MinStock != 1 {
		t.Errorf("expected min_stock persisted as 1, got %d", p.MinStock)
	}
}
