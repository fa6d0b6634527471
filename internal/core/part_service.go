package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PartInput registers or updates a part's catalogue attributes. Stock and
// cost fields are owned by the ledger and cannot be set here.
type PartInput struct {
	PartNumber       string
	Description      string
	SellPrice        decimal.Decimal
	MinStockOverride *int
	AutoReplenish    bool
}

type PartService interface {
	// RegisterPart creates the part or updates its catalogue attributes.
	RegisterPart(ctx context.Context, in PartInput) (*Part, error)
	GetPart(ctx context.Context, partNumber string) (*Part, error)
	// ListParts returns every part ordered by part number.
	ListParts(ctx context.Context) ([]Part, error)
	// SetMinStockOverride pins the reorder threshold. Nil clears the override.
	SetMinStockOverride(ctx context.Context, partNumber string, override *int) error
	SetAutoReplenish(ctx context.Context, partNumber string, on bool) error
}

type partService struct {
	pool *pgxpool.Pool
}

func NewPartService(pool *pgxpool.Pool) PartService {
	return &partService{pool: pool}
}

const partColumns = `part_number, description, average_cost, sell_price, current_stock, min_stock,
	min_stock_override, auto_replenish, stocking_score::float8, xref_group_id, storage_location_id,
	created_at, updated_at`

func scanPart(row pgx.Row, p *Part) error {
	return row.Scan(&p.PartNumber, &p.Description, &p.AverageCost, &p.SellPrice, &p.CurrentStock,
		&p.MinStock, &p.MinStockOverride, &p.AutoReplenish, &p.StockingScore, &p.XrefGroupID,
		&p.StorageLocationID, &p.CreatedAt, &p.UpdatedAt)
}

func (s *partService) RegisterPart(ctx context.Context, in PartInput) (*Part, error) {
	if in.PartNumber == "" {
		return nil, invalidInput("part number is required")
	}
	if in.SellPrice.IsNegative() {
		return nil, invalidInput("sell price cannot be negative, got %s", in.SellPrice)
	}
	if in.MinStockOverride != nil && *in.MinStockOverride < 0 {
		return nil, invalidInput("min stock override cannot be negative, got %d", *in.MinStockOverride)
	}

	p := &Part{}
	err := scanPart(s.pool.QueryRow(ctx, `
		INSERT INTO parts (part_number, description, sell_price, min_stock_override, auto_replenish)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (part_number) DO UPDATE
		SET description        = EXCLUDED.description,
		    sell_price         = EXCLUDED.sell_price,
		    min_stock_override = EXCLUDED.min_stock_override,
		    auto_replenish     = EXCLUDED.auto_replenish,
		    updated_at         = NOW()
		RETURNING `+partColumns,
		in.PartNumber, in.Description, in.SellPrice, in.MinStockOverride, in.AutoReplenish,
	), p)
	if err != nil {
		return nil, fmt.Errorf("register part %q: %w", in.PartNumber, err)
	}
	return p, nil
}

func (s *partService) GetPart(ctx context.Context, partNumber string) (*Part, error) {
	return getPart(ctx, s.pool, partNumber)
}

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func getPart(ctx context.Context, q queryRower, partNumber string) (*Part, error) {
	p := &Part{}
	err := scanPart(q.QueryRow(ctx, "SELECT "+partColumns+" FROM parts WHERE part_number = $1", partNumber), p)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("part %s: %w", partNumber, ErrNotFound)
		}
		return nil, fmt.Errorf("get part %s: %w", partNumber, err)
	}
	return p, nil
}

func (s *partService) ListParts(ctx context.Context) ([]Part, error) {
	rows, err := s.pool.Query(ctx, "SELECT "+partColumns+" FROM parts ORDER BY part_number")
	if err != nil {
		return nil, fmt.Errorf("list parts: %w", err)
	}
	defer rows.Close()

	var parts []Part
	for rows.Next() {
		var p Part
		if err := scanPart(rows, &p); err != nil {
			return nil, fmt.Errorf("scan part: %w", err)
		}
		parts = append(parts, p)
	}
	return parts, rows.Err()
}

func (s *partService) SetMinStockOverride(ctx context.Context, partNumber string, override *int) error {
	if override != nil && *override < 0 {
		return invalidInput("min stock override cannot be negative, got %d", *override)
	}
	return s.update(ctx, partNumber, "min_stock_override = $2", override)
}

func (s *partService) SetAutoReplenish(ctx context.Context, partNumber string, on bool) error {
	return s.update(ctx, partNumber, "auto_replenish = $2", on)
}

func (s *partService) update(ctx context.Context, partNumber, set string, arg any) error {
	tag, err := s.pool.Exec(ctx,
		"UPDATE parts SET "+set+", updated_at = NOW() WHERE part_number = $1", partNumber, arg)
	if err != nil {
		return fmt.Errorf("update part %s: %w", partNumber, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("part %s: %w", partNumber, ErrNotFound)
	}
	return nil
}

// partNumbers lists every registered part number in order. Batch jobs iterate it.
func partNumbers(ctx context.Context, pool *pgxpool.Pool) ([]string, error) {
	rows, err := pool.Query(ctx, "SELECT part_number FROM parts ORDER BY part_number")
	if err != nil {
		return nil, fmt.Errorf("list part numbers: %w", err)
	}
	defer rows.Close()
	return pgx.CollectRows(rows, pgx.RowTo[string])
}
