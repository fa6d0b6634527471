package core

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ── Report types ──────────────────────────────────────────────────────────────

// ValuationLine is the FIFO value of one part's remaining layers.
type ValuationLine struct {
	PartNumber   string          `json:"part_number"`
	Description  string          `json:"description"`
	CurrentStock int             `json:"current_stock"`
	OpenLayers   int             `json:"open_layers"`
	Value        decimal.Decimal `json:"value"`
}

type ValuationReport struct {
	AsOf       time.Time       `json:"as_of"`
	Lines      []ValuationLine `json:"lines"`
	TotalUnits int             `json:"total_units"`
	TotalValue decimal.Decimal `json:"total_value"`
}

// UsageLine is the FIFO cost charged for a part's consumption in a period.
type UsageLine struct {
	PartNumber string          `json:"part_number"`
	Units      int             `json:"units"`
	Cost       decimal.Decimal `json:"cost"`
	Jobs       int             `json:"jobs"`
}

// ── Interface ─────────────────────────────────────────────────────────────────

// ReportingService provides read-only reporting queries over the ledger.
type ReportingService interface {
	// InventoryValuation values every part with stock at its remaining layer costs.
	InventoryValuation(ctx context.Context) (*ValuationReport, error)
	// UsageCost totals USED transactions in [from, to), highest cost first.
	UsageCost(ctx context.Context, from, to time.Time) ([]UsageLine, error)
}

type reportingService struct {
	pool *pgxpool.Pool
}

func NewReportingService(pool *pgxpool.Pool) ReportingService {
	return &reportingService{pool: pool}
}

func (s *reportingService) InventoryValuation(ctx context.Context) (*ValuationReport, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT p.part_number, p.description, p.current_stock,
		       COUNT(l.id),
		       COALESCE(SUM(l.quantity_remaining * l.unit_cost), 0)
		FROM parts p
		JOIN inventory_layers l ON l.part_number = p.part_number AND l.quantity_remaining > 0
		GROUP BY p.part_number
		ORDER BY p.part_number`)
	if err != nil {
		return nil, fmt.Errorf("query inventory valuation: %w", err)
	}
	defer rows.Close()

	report := &ValuationReport{AsOf: time.Now(), TotalValue: decimal.Zero}
	for rows.Next() {
		var l ValuationLine
		if err := rows.Scan(&l.PartNumber, &l.Description, &l.CurrentStock, &l.OpenLayers, &l.Value); err != nil {
			return nil, fmt.Errorf("scan valuation line: %w", err)
		}
		report.Lines = append(report.Lines, l)
		report.TotalUnits += l.CurrentStock
		report.TotalValue = report.TotalValue.Add(l.Value)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	report.TotalValue = report.TotalValue.Round(2)
	return report, nil
}

func (s *reportingService) UsageCost(ctx context.Context, from, to time.Time) ([]UsageLine, error) {
	if !to.After(from) {
		return nil, invalidInput("usage period end must be after its start")
	}
	rows, err := s.pool.Query(ctx, `
		SELECT part_number, COALESCE(SUM(-quantity), 0)::int, COALESCE(SUM(total_cost), 0),
		       COUNT(DISTINCT job_id)
		FROM inventory_transactions
		WHERE type = 'USED' AND created_at >= $1 AND created_at < $2
		GROUP BY part_number
		ORDER BY 3 DESC, part_number`,
		from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("query usage cost: %w", err)
	}
	defer rows.Close()

	var out []UsageLine
	for rows.Next() {
		var l UsageLine
		if err := rows.Scan(&l.PartNumber, &l.Units, &l.Cost, &l.Jobs); err != nil {
			return nil, fmt.Errorf("scan usage line: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
