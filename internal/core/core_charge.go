package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// OverdueCore is a received core-charge line whose old unit has not gone back.
type OverdueCore struct {
	OrderID         int             `json:"order_id"`
	PONumber        *string         `json:"po_number,omitempty"`
	SupplierCode    string          `json:"supplier_code"`
	LineID          int             `json:"line_id"`
	PartNumber      string          `json:"part_number"`
	CoreCharge      decimal.Decimal `json:"core_charge"`
	Since           time.Time       `json:"since"`
	DaysOutstanding int             `json:"days_outstanding"`
}

type CoreReturnInput struct {
	Tracking string
	// CreditAmount defaults to the line's core charge.
	CreditAmount *decimal.Decimal
}

// CoreChargeService tracks refundable core deposits on order lines. It is a
// financial side-ledger and never changes stock.
type CoreChargeService interface {
	MarkCoreReturned(ctx context.Context, lineID int, in CoreReturnInput) (*PurchaseOrderLine, error)
	// OverdueCores lists unreturned cores older than olderThanDays, oldest first.
	// Age runs from order receipt, falling back to the order or creation date.
	OverdueCores(ctx context.Context, olderThanDays int) ([]OverdueCore, error)
	// OutstandingCoreTotal sums the charges on received, unreturned cores.
	OutstandingCoreTotal(ctx context.Context) (decimal.Decimal, error)
}

type coreChargeService struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

func NewCoreChargeService(pool *pgxpool.Pool) CoreChargeService {
	return &coreChargeService{pool: pool, now: time.Now}
}

func (s *coreChargeService) MarkCoreReturned(ctx context.Context, lineID int, in CoreReturnInput) (*PurchaseOrderLine, error) {
	if in.CreditAmount != nil && in.CreditAmount.IsNegative() {
		return nil, invalidInput("core credit cannot be negative, got %s", in.CreditAmount)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var hasCore, returned bool
	var charge *decimal.Decimal
	err = tx.QueryRow(ctx,
		"SELECT has_core, core_charge, core_returned FROM purchase_order_lines WHERE id = $1 FOR UPDATE",
		lineID,
	).Scan(&hasCore, &charge, &returned)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("PO line %d: %w", lineID, ErrNotFound)
		}
		return nil, fmt.Errorf("lock PO line %d: %w", lineID, err)
	}
	if !hasCore {
		return nil, fmt.Errorf("PO line %d: %w", lineID, ErrNoCore)
	}
	if returned {
		return nil, fmt.Errorf("PO line %d: %w", lineID, ErrCoreAlreadyReturned)
	}

	credit := in.CreditAmount
	if credit == nil {
		c := decimal.Zero
		if charge != nil {
			c = *charge
		}
		credit = &c
	}

	if _, err := tx.Exec(ctx, `
		UPDATE purchase_order_lines
		SET core_returned = true, core_return_date = NOW(), core_tracking = $1, core_credit_amount = $2
		WHERE id = $3`,
		toPtr(in.Tracking), *credit, lineID,
	); err != nil {
		return nil, fmt.Errorf("mark core returned on PO line %d: %w", lineID, err)
	}

	l := &PurchaseOrderLine{}
	if err := scanLine(tx.QueryRow(ctx,
		"SELECT "+lineColumns+" FROM purchase_order_lines pol WHERE pol.id = $1", lineID,
	), l); err != nil {
		return nil, fmt.Errorf("reload PO line %d: %w", lineID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit core return: %w", err)
	}
	return l, nil
}

const outstandingCoreFilter = `pol.has_core AND NOT pol.core_returned
	AND pol.core_charge IS NOT NULL AND pol.quantity_received > 0`

func (s *coreChargeService) OverdueCores(ctx context.Context, olderThanDays int) ([]OverdueCore, error) {
	if olderThanDays < 0 {
		return nil, invalidInput("overdue threshold cannot be negative, got %d", olderThanDays)
	}
	now := s.now()
	cutoff := now.AddDate(0, 0, -olderThanDays)

	rows, err := s.pool.Query(ctx, `
		SELECT po.id, po.po_number, s.code, pol.id, pol.part_number, pol.core_charge,
		       COALESCE(po.received_at, po.ordered_at, po.created_at) AS since
		FROM purchase_order_lines pol
		JOIN purchase_orders po ON po.id = pol.order_id
		JOIN suppliers s ON s.id = po.supplier_id
		WHERE `+outstandingCoreFilter+`
		  AND COALESCE(po.received_at, po.ordered_at, po.created_at) <= $1
		ORDER BY since, pol.id`,
		cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("query overdue cores: %w", err)
	}
	defer rows.Close()

	var out []OverdueCore
	for rows.Next() {
		var c OverdueCore
		if err := rows.Scan(&c.OrderID, &c.PONumber, &c.SupplierCode, &c.LineID, &c.PartNumber,
			&c.CoreCharge, &c.Since); err != nil {
			return nil, fmt.Errorf("scan overdue core: %w", err)
		}
		c.DaysOutstanding = wholeDays(now.Sub(c.Since))
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *coreChargeService) OutstandingCoreTotal(ctx context.Context) (decimal.Decimal, error) {
	var total decimal.Decimal
	if err := s.pool.QueryRow(ctx,
		"SELECT COALESCE(SUM(pol.core_charge), 0) FROM purchase_order_lines pol WHERE "+outstandingCoreFilter,
	).Scan(&total); err != nil {
		return decimal.Zero, fmt.Errorf("sum outstanding cores: %w", err)
	}
	return total, nil
}
