package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// LedgerService owns the FIFO cost layers of every part. Each mutation runs in
// one database transaction holding the part row lock, and leaves
// parts.current_stock equal to the sum of the part's remaining layer quantities.
type LedgerService interface {
	// Receive appends a layer timestamped now. Unknown parts are registered implicitly.
	Receive(ctx context.Context, in ReceiveInput) (*Layer, error)
	// ReceiveTx is Receive inside a caller-owned transaction.
	// Used by PurchaseOrderService so a delivery and its layers commit together.
	ReceiveTx(ctx context.Context, tx pgx.Tx, in ReceiveInput) (*Layer, error)

	// Consume draws quantity from the oldest layers first. It is all-or-nothing:
	// an *InsufficientStockError leaves every layer untouched. Unlike Receive it
	// never registers a part: an unknown part number is ErrNotFound, not an
	// InsufficientStockError with nothing available.
	Consume(ctx context.Context, in ConsumeInput) (*CostBreakdown, error)
	ConsumeTx(ctx context.Context, tx pgx.Tx, in ConsumeInput) (*CostBreakdown, error)

	// Adjust applies a manual correction. Positive deltas add a zero-cost
	// ADJUSTMENT layer; negative deltas consume FIFO but stop at zero stock.
	Adjust(ctx context.Context, in AdjustInput) (*AdjustResult, error)

	// Transfer moves the part to another storage location. Cost layers are not touched.
	Transfer(ctx context.Context, in TransferInput) (*Transaction, error)

	Layers(ctx context.Context, partNumber string, includeExhausted bool) ([]Layer, error)
	Transactions(ctx context.Context, partNumber string, limit int) ([]Transaction, error)
}

type ledgerService struct {
	pool *pgxpool.Pool
	obs  Observer
}

func NewLedgerService(pool *pgxpool.Pool, obs Observer) LedgerService {
	return &ledgerService{pool: pool, obs: observerOrNop(obs)}
}

// ── Receive ───────────────────────────────────────────────────────────────────

func (s *ledgerService) Receive(ctx context.Context, in ReceiveInput) (layer *Layer, err error) {
	defer func() { s.obs.LedgerOperation("receive", err) }()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	layer, err = s.receive(ctx, tx, in)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit receipt: %w", err)
	}
	return layer, nil
}

func (s *ledgerService) ReceiveTx(ctx context.Context, tx pgx.Tx, in ReceiveInput) (layer *Layer, err error) {
	defer func() { s.obs.LedgerOperation("receive", err) }()
	return s.receive(ctx, tx, in)
}

func (s *ledgerService) receive(ctx context.Context, tx pgx.Tx, in ReceiveInput) (*Layer, error) {
	if in.PartNumber == "" {
		return nil, invalidInput("part number is required")
	}
	if err := requirePositive("receive quantity", in.Quantity); err != nil {
		return nil, err
	}
	if in.UnitCost.IsNegative() {
		return nil, invalidInput("unit cost cannot be negative, got %s", in.UnitCost)
	}
	if in.Source == "" {
		in.Source = SourceManual
	}

	if err := registerPartTx(ctx, tx, in.PartNumber); err != nil {
		return nil, err
	}
	if _, err := lockPart(ctx, tx, in.PartNumber); err != nil {
		return nil, err
	}

	l := &Layer{}
	err := tx.QueryRow(ctx, `
		INSERT INTO inventory_layers (part_number, quantity_received, quantity_remaining, unit_cost,
		                              source, order_id, order_line_id)
		VALUES ($1, $2, $2, $3, $4, $5, $6)
		RETURNING id, part_number, quantity_received, quantity_remaining, unit_cost,
		          source, order_id, order_line_id, received_at`,
		in.PartNumber, in.Quantity, in.UnitCost, string(in.Source), in.OrderID, in.OrderLineID,
	).Scan(&l.ID, &l.PartNumber, &l.QuantityReceived, &l.QuantityRemaining, &l.UnitCost,
		&l.Source, &l.OrderID, &l.OrderLineID, &l.ReceivedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert layer for %s: %w", in.PartNumber, err)
	}

	txType := TxReceived
	if in.Source == SourceAdjustment {
		txType = TxAdjusted
	}
	if _, err := insertTransaction(ctx, tx, Transaction{
		PartNumber: in.PartNumber,
		Type:       txType,
		Quantity:   in.Quantity,
		UnitCost:   in.UnitCost,
		TotalCost:  in.UnitCost.Mul(decimal.NewFromInt(int64(in.Quantity))),
		OrderID:    in.OrderID,
		ShipmentID: in.ShipmentID,
		Reason:     toPtr(in.Reason),
	}); err != nil {
		return nil, err
	}

	if _, err := refreshStock(ctx, tx, in.PartNumber); err != nil {
		return nil, err
	}
	return l, nil
}

// ── Consume ───────────────────────────────────────────────────────────────────

func (s *ledgerService) Consume(ctx context.Context, in ConsumeInput) (cb *CostBreakdown, err error) {
	defer func() { s.obs.LedgerOperation("consume", err) }()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	cb, err = s.consume(ctx, tx, in)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit consumption: %w", err)
	}
	return cb, nil
}

func (s *ledgerService) ConsumeTx(ctx context.Context, tx pgx.Tx, in ConsumeInput) (cb *CostBreakdown, err error) {
	defer func() { s.obs.LedgerOperation("consume", err) }()
	return s.consume(ctx, tx, in)
}

func (s *ledgerService) consume(ctx context.Context, tx pgx.Tx, in ConsumeInput) (*CostBreakdown, error) {
	if err := requirePositive("consume quantity", in.Quantity); err != nil {
		return nil, err
	}
	if _, err := lockPart(ctx, tx, in.PartNumber); err != nil {
		return nil, err
	}

	layers, err := openLayers(ctx, tx, in.PartNumber)
	if err != nil {
		return nil, err
	}
	draws, taken := PlanFIFO(layers, in.Quantity)
	if taken < in.Quantity {
		return nil, &InsufficientStockError{PartNumber: in.PartNumber, Requested: in.Quantity, Available: taken}
	}

	total := TotalCost(draws)
	txID, err := s.recordDraws(ctx, tx, Transaction{
		PartNumber: in.PartNumber,
		Type:       TxUsed,
		Quantity:   -in.Quantity,
		UnitCost:   total.Div(decimal.NewFromInt(int64(in.Quantity))).Round(4),
		TotalCost:  total,
		JobID:      toPtr(in.JobID),
		Reason:     toPtr(in.Reason),
	}, draws)
	if err != nil {
		return nil, err
	}

	return &CostBreakdown{
		PartNumber:    in.PartNumber,
		Quantity:      in.Quantity,
		TotalCost:     total,
		Layers:        draws,
		TransactionID: txID,
	}, nil
}

// recordDraws decrements the drawn layers, writes the transaction with its
// per-layer detail, and refreshes the part's stock.
func (s *ledgerService) recordDraws(ctx context.Context, tx pgx.Tx, t Transaction, draws []LayerDraw) (int64, error) {
	for _, d := range draws {
		tag, err := tx.Exec(ctx, `
			UPDATE inventory_layers
			SET quantity_remaining = quantity_remaining - $1
			WHERE id = $2 AND quantity_remaining >= $1`,
			d.Quantity, d.LayerID,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to draw from layer %d: %w", d.LayerID, err)
		}
		if tag.RowsAffected() != 1 {
			return 0, fmt.Errorf("layer %d changed underneath the part lock", d.LayerID)
		}
	}

	txID, err := insertTransaction(ctx, tx, t)
	if err != nil {
		return 0, err
	}

	for _, d := range draws {
		if _, err := tx.Exec(ctx, `
			INSERT INTO layer_consumptions (transaction_id, layer_id, quantity, unit_cost)
			VALUES ($1, $2, $3, $4)`,
			txID, d.LayerID, d.Quantity, d.UnitCost,
		); err != nil {
			return 0, fmt.Errorf("failed to record consumption of layer %d: %w", d.LayerID, err)
		}
	}

	if _, err := refreshStock(ctx, tx, t.PartNumber); err != nil {
		return 0, err
	}
	return txID, nil
}

// ── Adjust ────────────────────────────────────────────────────────────────────

func (s *ledgerService) Adjust(ctx context.Context, in AdjustInput) (res *AdjustResult, err error) {
	defer func() { s.obs.LedgerOperation("adjust", err) }()

	if in.Delta == 0 {
		return nil, &NegativeQuantityError{Field: "adjustment delta", Quantity: 0}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if in.Delta > 0 {
		if _, err := s.receive(ctx, tx, ReceiveInput{
			PartNumber: in.PartNumber,
			Quantity:   in.Delta,
			UnitCost:   decimal.Zero,
			Source:     SourceAdjustment,
			Reason:     in.Reason,
		}); err != nil {
			return nil, err
		}
		res = &AdjustResult{PartNumber: in.PartNumber, Requested: in.Delta, Applied: in.Delta, TotalCost: decimal.Zero}
	} else {
		res, err = s.adjustDown(ctx, tx, in)
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit adjustment: %w", err)
	}
	return res, nil
}

func (s *ledgerService) adjustDown(ctx context.Context, tx pgx.Tx, in AdjustInput) (*AdjustResult, error) {
	stock, err := lockPart(ctx, tx, in.PartNumber)
	if err != nil {
		return nil, err
	}
	layers, err := openLayers(ctx, tx, in.PartNumber)
	if err != nil {
		return nil, err
	}

	// Clamped at zero: a shrinkage count larger than the stock empties the part.
	draws, taken := PlanFIFO(layers, min(-in.Delta, stock))
	total := TotalCost(draws)

	unit := decimal.Zero
	if taken > 0 {
		unit = total.Div(decimal.NewFromInt(int64(taken))).Round(4)
	}
	txID, err := s.recordDraws(ctx, tx, Transaction{
		PartNumber: in.PartNumber,
		Type:       TxAdjusted,
		Quantity:   -taken,
		UnitCost:   unit,
		TotalCost:  total,
		Reason:     toPtr(in.Reason),
	}, draws)
	if err != nil {
		return nil, err
	}

	return &AdjustResult{
		PartNumber:    in.PartNumber,
		Requested:     in.Delta,
		Applied:       -taken,
		TotalCost:     total,
		Layers:        draws,
		TransactionID: txID,
	}, nil
}

// ── Transfer ──────────────────────────────────────────────────────────────────

func (s *ledgerService) Transfer(ctx context.Context, in TransferInput) (t *Transaction, err error) {
	defer func() { s.obs.LedgerOperation("transfer", err) }()

	if err := requirePositive("transfer quantity", in.Quantity); err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var stock int
	var current *int
	err = tx.QueryRow(ctx,
		"SELECT current_stock, storage_location_id FROM parts WHERE part_number = $1 FOR UPDATE",
		in.PartNumber,
	).Scan(&stock, &current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("part %s: %w", in.PartNumber, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to lock part %s: %w", in.PartNumber, err)
	}
	if in.Quantity > stock {
		return nil, &InsufficientStockError{PartNumber: in.PartNumber, Requested: in.Quantity, Available: stock}
	}

	from := current
	if in.FromLocationID != nil {
		if current != nil && *current != *in.FromLocationID {
			return nil, invalidInput("part %s is stored at location %d, not %d", in.PartNumber, *current, *in.FromLocationID)
		}
		from = in.FromLocationID
	}

	var exists bool
	if err := tx.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM storage_locations WHERE id = $1)", in.ToLocationID,
	).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to validate location: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("storage location %d: %w", in.ToLocationID, ErrNotFound)
	}

	if _, err := tx.Exec(ctx,
		"UPDATE parts SET storage_location_id = $1, updated_at = NOW() WHERE part_number = $2",
		in.ToLocationID, in.PartNumber,
	); err != nil {
		return nil, fmt.Errorf("failed to move part %s: %w", in.PartNumber, err)
	}

	to := in.ToLocationID
	rec := Transaction{
		PartNumber:     in.PartNumber,
		Type:           TxTransferred,
		Quantity:       in.Quantity,
		UnitCost:       decimal.Zero,
		TotalCost:      decimal.Zero,
		FromLocationID: from,
		ToLocationID:   &to,
	}
	if rec.ID, err = insertTransaction(ctx, tx, rec); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transfer: %w", err)
	}
	return &rec, nil
}

// ── Reads ─────────────────────────────────────────────────────────────────────

func (s *ledgerService) Layers(ctx context.Context, partNumber string, includeExhausted bool) ([]Layer, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, part_number, quantity_received, quantity_remaining, unit_cost,
		       source, order_id, order_line_id, received_at
		FROM inventory_layers
		WHERE part_number = $1 AND ($2 OR quantity_remaining > 0)
		ORDER BY received_at, id`,
		partNumber, includeExhausted,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query layers: %w", err)
	}
	defer rows.Close()
	return scanLayers(rows)
}

func (s *ledgerService) Transactions(ctx context.Context, partNumber string, limit int) ([]Transaction, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, part_number, type, quantity, unit_cost, total_cost, job_id, order_id,
		       shipment_id, from_location_id, to_location_id, reason, created_at
		FROM inventory_transactions
		WHERE part_number = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`,
		partNumber, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(&t.ID, &t.PartNumber, &t.Type, &t.Quantity, &t.UnitCost, &t.TotalCost,
			&t.JobID, &t.OrderID, &t.ShipmentID, &t.FromLocationID, &t.ToLocationID,
			&t.Reason, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ── Shared helpers ────────────────────────────────────────────────────────────

// lockPart takes the per-part exclusive lock and returns the stock on hand.
func lockPart(ctx context.Context, tx pgx.Tx, partNumber string) (int, error) {
	var stock int
	err := tx.QueryRow(ctx,
		"SELECT current_stock FROM parts WHERE part_number = $1 FOR UPDATE", partNumber,
	).Scan(&stock)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("part %s: %w", partNumber, ErrNotFound)
		}
		return 0, fmt.Errorf("failed to lock part %s: %w", partNumber, err)
	}
	return stock, nil
}

func registerPartTx(ctx context.Context, tx pgx.Tx, partNumber string) error {
	if _, err := tx.Exec(ctx,
		"INSERT INTO parts (part_number) VALUES ($1) ON CONFLICT (part_number) DO NOTHING", partNumber,
	); err != nil {
		return fmt.Errorf("failed to register part %s: %w", partNumber, err)
	}
	return nil
}

func openLayers(ctx context.Context, tx pgx.Tx, partNumber string) ([]Layer, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, part_number, quantity_received, quantity_remaining, unit_cost,
		       source, order_id, order_line_id, received_at
		FROM inventory_layers
		WHERE part_number = $1 AND quantity_remaining > 0
		ORDER BY received_at, id`,
		partNumber,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load layers for %s: %w", partNumber, err)
	}
	defer rows.Close()
	return scanLayers(rows)
}

func scanLayers(rows pgx.Rows) ([]Layer, error) {
	var layers []Layer
	for rows.Next() {
		var l Layer
		if err := rows.Scan(&l.ID, &l.PartNumber, &l.QuantityReceived, &l.QuantityRemaining, &l.UnitCost,
			&l.Source, &l.OrderID, &l.OrderLineID, &l.ReceivedAt); err != nil {
			return nil, fmt.Errorf("failed to scan layer: %w", err)
		}
		layers = append(layers, l)
	}
	return layers, rows.Err()
}

func insertTransaction(ctx context.Context, tx pgx.Tx, t Transaction) (int64, error) {
	var id int64
	err := tx.QueryRow(ctx, `
		INSERT INTO inventory_transactions (part_number, type, quantity, unit_cost, total_cost, job_id,
		                                    order_id, shipment_id, from_location_id, to_location_id, reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`,
		t.PartNumber, string(t.Type), t.Quantity, t.UnitCost, t.TotalCost, t.JobID,
		t.OrderID, t.ShipmentID, t.FromLocationID, t.ToLocationID, t.Reason,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to record %s transaction for %s: %w", t.Type, t.PartNumber, err)
	}
	return id, nil
}

// refreshStock recomputes current_stock and average_cost from the layers.
// average_cost keeps its last value once the part runs out.
func refreshStock(ctx context.Context, tx pgx.Tx, partNumber string) (int, error) {
	var stock int
	err := tx.QueryRow(ctx, `
		UPDATE parts p
		SET current_stock = s.qty,
		    average_cost  = CASE WHEN s.qty > 0 THEN ROUND(s.value / s.qty, 4) ELSE p.average_cost END,
		    updated_at    = NOW()
		FROM (
			SELECT COALESCE(SUM(quantity_remaining), 0)::int          AS qty,
			       COALESCE(SUM(quantity_remaining * unit_cost), 0)   AS value
			FROM inventory_layers
			WHERE part_number = $1
		) s
		WHERE p.part_number = $1
		RETURNING p.current_stock`,
		partNumber,
	).Scan(&stock)
	if err != nil {
		return 0, fmt.Errorf("failed to refresh stock for %s: %w", partNumber, err)
	}
	return stock, nil
}
