package core_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"

	"parts-engine/internal/core"
	"parts-engine/internal/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	_ = godotenv.Load("../../.env")

	// Use a dedicated TEST database; every run truncates all engine tables.
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration test to protect live database")
	}

	if _, err := db.Migrate(dbURL); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	_, err = pool.Exec(ctx, `
		TRUNCATE TABLE layer_consumptions, inventory_transactions, inventory_layers,
		               shipment_orders, shipments, purchase_order_lines, purchase_orders,
		               document_sequences, supplier_pricing, suppliers, jobs, parts,
		               xref_groups, storage_locations
		RESTART IDENTITY CASCADE;

		INSERT INTO suppliers (code, name) VALUES ('MARCONE', 'Marcone Supply'), ('RELIABLE', 'Reliable Parts');
	`)
	if err != nil {
		t.Fatalf("Failed to seed test database: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

func money(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// assertConservation checks current_stock against the remaining layer quantities.
func assertConservation(t *testing.T, pool *pgxpool.Pool, partNumber string) int {
	t.Helper()
	var stock, layers int
	err := pool.QueryRow(context.Background(), `
		SELECT p.current_stock, COALESCE(SUM(l.quantity_remaining), 0)::int
		FROM parts p LEFT JOIN inventory_layers l ON l.part_number = p.part_number
		WHERE p.part_number = $1
		GROUP BY p.current_stock`, partNumber,
	).Scan(&stock, &layers)
	if err != nil {
		t.Fatalf("conservation query for %s: %v", partNumber, err)
	}
	if stock != layers {
		t.Errorf("%s: current_stock %d != layer sum %d", partNumber, stock, layers)
	}
	return stock
}

func TestLedger_FIFOScenario(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	ledger := core.NewLedgerService(pool, nil)

	if _, err := ledger.Receive(ctx, core.ReceiveInput{PartNumber: "WR57X10032", Quantity: 5, UnitCost: money("10.00")}); err != nil {
		t.Fatalf("Receive 1: %v", err)
	}
	if _, err := ledger.Receive(ctx, core.ReceiveInput{PartNumber: "WR57X10032", Quantity: 3, UnitCost: money("12.00")}); err != nil {
		t.Fatalf("Receive 2: %v", err)
	}

	jobID := uuid.NewString()
	cb, err := ledger.Consume(ctx, core.ConsumeInput{PartNumber: "WR57X10032", Quantity: 6, JobID: jobID})
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if !cb.TotalCost.Equal(money("62.00")) {
		t.Errorf("expected cost 62.00, got %s", cb.TotalCost)
	}
	if len(cb.Layers) != 2 {
		t.Fatalf("expected 2 layers touched, got %d", len(cb.Layers))
	}

	open, err := ledger.Layers(ctx, "WR57X10032", false)
	if err != nil {
		t.Fatalf("Layers: %v", err)
	}
	if len(open) != 1 || open[0].QuantityRemaining != 2 || !open[0].UnitCost.Equal(money("12.00")) {
		t.Errorf("expected one open layer of 2 @ 12.00, got %+v", open)
	}

	all, _ := ledger.Layers(ctx, "WR57X10032", true)
	if len(all) != 2 {
		t.Errorf("exhausted layer must be kept, got %d layers", len(all))
	}

	if stock := assertConservation(t, pool, "WR57X10032"); stock != 2 {
		t.Errorf("expected stock 2, got %d", stock)
	}

	txs, err := ledger.Transactions(ctx, "WR57X10032", 10)
	if err != nil {
		t.Fatalf("Transactions: %v", err)
	}
	if len(txs) != 3 || txs[0].Type != core.TxUsed || txs[0].Quantity != -6 {
		t.Errorf("expected newest transaction USED -6, got %+v", txs)
	}
	if txs[0].JobID == nil || *txs[0].JobID != jobID {
		t.Errorf("expected job id %s on USED transaction", jobID)
	}
}

func TestLedger_InsufficientStockIsAllOrNothing(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	ledger := core.NewLedgerService(pool, nil)

	if _, err := ledger.Receive(ctx, core.ReceiveInput{PartNumber: "5304506471", Quantity: 2, UnitCost: money("31.00")}); err != nil {
		t.Fatalf("Receive: %v", err)
	}

	_, err := ledger.Consume(ctx, core.ConsumeInput{PartNumber: "5304506471", Quantity: 3})
	var insufficient *core.InsufficientStockError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if insufficient.Available != 2 {
		t.Errorf("expected available 2, got %d", insufficient.Available)
	}

	if stock := assertConservation(t, pool, "5304506471"); stock != 2 {
		t.Errorf("failed consume must not change stock, got %d", stock)
	}
}

func TestLedger_InvalidQuantities(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	ledger := core.NewLedgerService(pool, nil)

	_, err := ledger.Receive(ctx, core.ReceiveInput{PartNumber: "X", Quantity: 0, UnitCost: money("1")})
	if !errors.Is(err, core.ErrNegativeQuantity) {
		t.Errorf("receive 0: expected ErrNegativeQuantity, got %v", err)
	}
	_, err = ledger.Consume(ctx, core.ConsumeInput{PartNumber: "X", Quantity: -1})
	if !errors.Is(err, core.ErrNegativeQuantity) {
		t.Errorf("consume -1: expected ErrNegativeQuantity, got %v", err)
	}
	_, err = ledger.Consume(ctx, core.ConsumeInput{PartNumber: "NEVER-SEEN", Quantity: 1})
	if !errors.Is(err, core.ErrNotFound) {
		t.Errorf("consume unknown part: expected ErrNotFound, got %v", err)
	}
}

func TestLedger_AdjustClampsAtZero(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	ledger := core.NewLedgerService(pool, nil)

	if _, err := ledger.Receive(ctx, core.ReceiveInput{PartNumber: "DA97-07190A", Quantity: 4, UnitCost: money("7.25")}); err != nil {
		t.Fatalf("Receive: %v", err)
	}

	up, err := ledger.Adjust(ctx, core.AdjustInput{PartNumber: "DA97-07190A", Delta: 2, Reason: "cycle count"})
	if err != nil {
		t.Fatalf("Adjust +2: %v", err)
	}
	if up.Applied != 2 || !up.TotalCost.IsZero() {
		t.Errorf("expected +2 at zero cost, got %+v", up)
	}

	down, err := ledger.Adjust(ctx, core.AdjustInput{PartNumber: "DA97-07190A", Delta: -10, Reason: "van stolen"})
	if err != nil {
		t.Fatalf("Adjust -10: %v", err)
	}
	if down.Applied != -6 {
		t.Errorf("expected clamped delta -6, got %d", down.Applied)
	}
	// The 4 costed units go first, then the 2 zero-cost adjustment units.
	if !down.TotalCost.Equal(money("29.00")) {
		t.Errorf("expected 29.00 written off, got %s", down.TotalCost)
	}
	if stock := assertConservation(t, pool, "DA97-07190A"); stock != 0 {
		t.Errorf("expected stock 0, got %d", stock)
	}

	if _, err := ledger.Adjust(ctx, core.AdjustInput{PartNumber: "DA97-07190A", Delta: 0}); !errors.Is(err, core.ErrNegativeQuantity) {
		t.Errorf("zero delta: expected ErrNegativeQuantity, got %v", err)
	}
}

func TestLedger_TransferMovesLocationOnly(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	ledger := core.NewLedgerService(pool, nil)
	locations := core.NewLocationService(pool)

	van, err := locations.CreateLocation(ctx, core.LocationInput{Name: "Van 2", Type: core.LocationVehicle})
	if err != nil {
		t.Fatalf("CreateLocation: %v", err)
	}
	shelf, err := locations.CreateLocation(ctx, core.LocationInput{Name: "Shelf A", Type: core.LocationShelf, ParentID: &van.ID})
	if err != nil {
		t.Fatalf("CreateLocation: %v", err)
	}
	path, err := locations.Path(ctx, shelf.ID)
	if err != nil || path != "Van 2 / Shelf A" {
		t.Errorf("expected path 'Van 2 / Shelf A', got %q (%v)", path, err)
	}

	if _, err := ledger.Receive(ctx, core.ReceiveInput{PartNumber: "W10190965", Quantity: 3, UnitCost: money("20")}); err != nil {
		t.Fatalf("Receive: %v", err)
	}
	before, _ := ledger.Layers(ctx, "W10190965", true)

	if _, err := ledger.Transfer(ctx, core.TransferInput{PartNumber: "W10190965", Quantity: 3, ToLocationID: shelf.ID}); err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	after, _ := ledger.Layers(ctx, "W10190965", true)
	if len(before) != len(after) || before[0].QuantityRemaining != after[0].QuantityRemaining {
		t.Errorf("transfer must not touch layers")
	}

	p, err := core.NewPartService(pool).GetPart(ctx, "W10190965")
	if err != nil {
		t.Fatalf("GetPart: %v", err)
	}
	if p.StorageLocationID == nil || *p.StorageLocationID != shelf.ID {
		t.Errorf("expected part at location %d, got %v", shelf.ID, p.StorageLocationID)
	}

	_, err = ledger.Transfer(ctx, core.TransferInput{PartNumber: "W10190965", Quantity: 4, ToLocationID: van.ID})
	if !errors.Is(err, core.ErrInsufficientStock) {
		t.Errorf("transfer above stock: expected ErrInsufficientStock, got %v", err)
	}
}

func TestLedger_ConcurrentConsumeNeverDoubleSpends(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	ledger := core.NewLedgerService(pool, nil)

	if _, err := ledger.Receive(ctx, core.ReceiveInput{PartNumber: "WP8544771", Quantity: 10, UnitCost: money("4.00")}); err != nil {
		t.Fatalf("Receive: %v", err)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 15; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := ledger.Consume(ctx, core.ConsumeInput{PartNumber: "WP8544771", Quantity: 1}); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if succeeded != 10 {
		t.Errorf("expected exactly 10 successful consumptions, got %d", succeeded)
	}
	if stock := assertConservation(t, pool, "WP8544771"); stock != 0 {
		t.Errorf("expected stock 0, got %d", stock)
	}
}
