package core

import (
	"context"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Urgency string

const (
	UrgencyCritical Urgency = "CRITICAL"
	UrgencyHigh     Urgency = "HIGH"
	UrgencyMedium   Urgency = "MEDIUM"
	UrgencyLow      Urgency = "LOW"
)

func (u Urgency) severity() int {
	switch u {
	case UrgencyCritical:
		return 0
	case UrgencyHigh:
		return 1
	case UrgencyMedium:
		return 2
	}
	return 3
}

func classifyUrgency(effectiveStock int, score float64) Urgency {
	switch {
	case effectiveStock == 0:
		return UrgencyCritical
	case score >= 8:
		return UrgencyHigh
	case score >= 5:
		return UrgencyMedium
	}
	return UrgencyLow
}

// Alert recommends reordering a part, or a whole cross-reference group
// through its representative part.
type Alert struct {
	PartNumber     string          `json:"part_number"`
	Description    string          `json:"description"`
	GroupID        *int            `json:"group_id,omitempty"`
	GroupMembers   []string        `json:"group_members,omitempty"`
	EffectiveStock int             `json:"effective_stock"`
	EffectiveMin   int             `json:"effective_min"`
	RecommendedQty int             `json:"recommended_qty"`
	AverageCost    decimal.Decimal `json:"average_cost"`
	EstimatedCost  decimal.Decimal `json:"estimated_cost"`
	StockingScore  float64         `json:"stocking_score"`
	Urgency        Urgency         `json:"urgency"`
}

// BuildAlerts evaluates a consistent snapshot of parts and groups.
// Ungrouped parts need auto-replenish and compare their own stock with
// max(min_stock, override). Groups are judged once on combined stock against
// the group minimum. A group is eligible when any member has auto-replenish,
// and the group's own auto_replenish flag opts it in even when no member has
// it. The alert names the member with the highest stocking score.
func BuildAlerts(parts []Part, groups []XrefGroup) []Alert {
	members := make(map[int][]Part)
	var alerts []Alert

	for _, p := range parts {
		if p.XrefGroupID != nil {
			members[*p.XrefGroupID] = append(members[*p.XrefGroupID], p)
			continue
		}
		if !p.AutoReplenish {
			continue
		}
		if a, ok := newAlert(p, p.CurrentStock, p.EffectiveMin()); ok {
			alerts = append(alerts, a)
		}
	}

	for _, g := range groups {
		ms := members[g.ID]
		if len(ms) == 0 {
			continue
		}
		eligible := g.AutoReplenish
		combined := 0
		rep := ms[0]
		names := make([]string, 0, len(ms))
		for _, m := range ms {
			combined += m.CurrentStock
			eligible = eligible || m.AutoReplenish
			names = append(names, m.PartNumber)
			if m.StockingScore > rep.StockingScore ||
				(m.StockingScore == rep.StockingScore && m.PartNumber < rep.PartNumber) {
				rep = m
			}
		}
		if !eligible {
			continue
		}
		if a, ok := newAlert(rep, combined, g.MinStockGroup); ok {
			id := g.ID
			sort.Strings(names)
			a.GroupID = &id
			a.GroupMembers = names
			alerts = append(alerts, a)
		}
	}

	sort.SliceStable(alerts, func(i, j int) bool {
		a, b := alerts[i], alerts[j]
		if a.Urgency.severity() != b.Urgency.severity() {
			return a.Urgency.severity() < b.Urgency.severity()
		}
		if a.StockingScore != b.StockingScore {
			return a.StockingScore > b.StockingScore
		}
		return a.PartNumber < b.PartNumber
	})
	return alerts
}

func newAlert(p Part, stock, minStock int) (Alert, bool) {
	if stock > minStock {
		return Alert{}, false
	}
	qty := max(minStock-stock+1, 1)
	return Alert{
		PartNumber:     p.PartNumber,
		Description:    p.Description,
		EffectiveStock: stock,
		EffectiveMin:   minStock,
		RecommendedQty: qty,
		AverageCost:    p.AverageCost,
		EstimatedCost:  p.AverageCost.Mul(decimal.NewFromInt(int64(qty))).Round(2),
		StockingScore:  p.StockingScore,
		Urgency:        classifyUrgency(stock, p.StockingScore),
	}, true
}

// ── AdvisorService ────────────────────────────────────────────────────────────

// AdvisorService produces replenishment alerts. Scan never writes.
type AdvisorService interface {
	Scan(ctx context.Context) ([]Alert, error)
}

type advisorService struct {
	pool *pgxpool.Pool
	log  *zap.Logger
	obs  Observer
}

func NewAdvisorService(pool *pgxpool.Pool, log *zap.Logger, obs Observer) AdvisorService {
	return &advisorService{pool: pool, log: log, obs: observerOrNop(obs)}
}

// Scan reads parts and groups in one read-only snapshot so group sums and
// member rows agree, without taking any part locks.
func (s *advisorService) Scan(ctx context.Context) ([]Alert, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("begin snapshot: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, "SELECT "+partColumns+" FROM parts ORDER BY part_number")
	if err != nil {
		return nil, fmt.Errorf("load parts: %w", err)
	}
	var parts []Part
	for rows.Next() {
		var p Part
		if err := scanPart(rows, &p); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan part: %w", err)
		}
		parts = append(parts, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load parts: %w", err)
	}

	grows, err := tx.Query(ctx,
		"SELECT id, description, min_stock_group, auto_replenish, created_at FROM xref_groups ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("load groups: %w", err)
	}
	var groups []XrefGroup
	for grows.Next() {
		var g XrefGroup
		if err := grows.Scan(&g.ID, &g.Description, &g.MinStockGroup, &g.AutoReplenish, &g.CreatedAt); err != nil {
			grows.Close()
			return nil, fmt.Errorf("scan group: %w", err)
		}
		groups = append(groups, g)
	}
	grows.Close()
	if err := grows.Err(); err != nil {
		return nil, fmt.Errorf("load groups: %w", err)
	}

	alerts := BuildAlerts(parts, groups)
	s.log.Info("replenishment scan",
		zap.Int("parts", len(parts)),
		zap.Int("groups", len(groups)),
		zap.Int("alerts", len(alerts)),
	)
	s.obs.AlertsEmitted(alerts)
	return alerts, nil
}
