package core

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// CallbackSource is the job subsystem's view of callbacks: jobs that needed a
// return visit and used the part.
type CallbackSource interface {
	// CallbackCount counts distinct callback jobs that consumed the part.
	// A nil since counts the whole history.
	CallbackCount(ctx context.Context, partNumber string, since *time.Time) (int, error)
}

// PricingSource supplies supplier price and lead-time records for a part.
type PricingSource interface {
	PricingForPart(ctx context.Context, partNumber string) ([]SupplierPrice, error)
}

type pgCallbackSource struct {
	pool *pgxpool.Pool
}

// NewCallbackSource reads callbacks from the jobs table joined to USED transactions.
func NewCallbackSource(pool *pgxpool.Pool) CallbackSource {
	return &pgCallbackSource{pool: pool}
}

func (s *pgCallbackSource) CallbackCount(ctx context.Context, partNumber string, since *time.Time) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(DISTINCT j.job_id)
		FROM inventory_transactions t
		JOIN jobs j ON j.job_id = t.job_id
		WHERE t.part_number = $1
		  AND t.type = 'USED'
		  AND j.is_callback
		  AND ($2::timestamptz IS NULL OR t.created_at >= $2)`,
		partNumber, since,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count callbacks for %s: %w", partNumber, err)
	}
	return n, nil
}

// preferredLeadTime is the shortest lead time among active preferred records.
func preferredLeadTime(prices []SupplierPrice) (int, error) {
	best := -1
	for _, p := range prices {
		if !p.IsActive || !p.Preferred {
			continue
		}
		if best < 0 || p.LeadTimeDays < best {
			best = p.LeadTimeDays
		}
	}
	if best < 0 {
		return 0, ErrMissingPricing
	}
	return best, nil
}

// bestPrice picks the supplier to order a part from: preferred first, then
// cheapest, then lowest supplier id. Inactive records are ignored.
func bestPrice(prices []SupplierPrice) (*SupplierPrice, error) {
	var best *SupplierPrice
	for i := range prices {
		p := &prices[i]
		if !p.IsActive {
			continue
		}
		if best == nil || betterPrice(p, best) {
			best = p
		}
	}
	if best == nil {
		return nil, ErrMissingPricing
	}
	return best, nil
}

func betterPrice(a, b *SupplierPrice) bool {
	if a.Preferred != b.Preferred {
		return a.Preferred
	}
	if c := a.UnitPrice.Cmp(b.UnitPrice); c != 0 {
		return c < 0
	}
	return a.SupplierID < b.SupplierID
}
