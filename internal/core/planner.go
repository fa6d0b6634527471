package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type Confidence string

const (
	ConfidenceHigh   Confidence = "High"
	ConfidenceMedium Confidence = "Medium"
	ConfidenceLow    Confidence = "Low"
)

func (c Confidence) lower() Confidence {
	if c == ConfidenceHigh {
		return ConfidenceMedium
	}
	return ConfidenceLow
}

// PlannerPolicy holds the forecasting constants.
type PlannerPolicy struct {
	LookbackDays        int
	OrderCycleDays      int
	DefaultLeadTimeDays int
	// CallbackThreshold is the callback count above which the higher multiplier applies.
	CallbackThreshold int
}

func DefaultPlannerPolicy() PlannerPolicy {
	return PlannerPolicy{
		LookbackDays:        90,
		OrderCycleDays:      7,
		DefaultLeadTimeDays: 3,
		CallbackThreshold:   2,
	}
}

// Multipliers in tenths so the forecast stays in integer arithmetic.
const (
	callbackMultiplierTenths = 15
	baseMultiplierTenths     = 12

	highConfidencePoints   = 10
	mediumConfidencePoints = 3
)

type PlanInput struct {
	UsageCount    int
	CallbackCount int
	// LeadTimeDays is nil when no active preferred pricing exists.
	LeadTimeDays *int
	Policy       PlannerPolicy
}

type MinStockPlan struct {
	PartNumber        string     `json:"part_number"`
	Value             int        `json:"recommended_min_stock"`
	Confidence        Confidence `json:"confidence"`
	Reasoning         string     `json:"reasoning"`
	UsageCount        int        `json:"usage_count"`
	UsageRatePerMonth float64    `json:"usage_rate_per_month"`
	LeadTimeDays      int        `json:"lead_time_days"`
	TotalCycleDays    int        `json:"total_cycle_days"`
	FCCMultiplier     float64    `json:"fcc_multiplier"`
	PricingMissing    bool       `json:"pricing_missing"`
}

// PlanMinStock forecasts the reorder threshold:
//
//	ceil(usage / lookback × (lead time + order cycle) × multiplier), at least 1
//
// computed exactly in integers. Missing pricing falls back to the default lead
// time and lowers the confidence one step.
func PlanMinStock(in PlanInput) MinStockPlan {
	p := in.Policy
	if p.LookbackDays <= 0 {
		p.LookbackDays = DefaultPlannerPolicy().LookbackDays
	}
	usage := max(in.UsageCount, 0)

	plan := MinStockPlan{UsageCount: usage}
	if in.LeadTimeDays != nil {
		plan.LeadTimeDays = max(*in.LeadTimeDays, 0)
	} else {
		plan.LeadTimeDays = p.DefaultLeadTimeDays
		plan.PricingMissing = true
	}
	plan.TotalCycleDays = plan.LeadTimeDays + p.OrderCycleDays

	mult := baseMultiplierTenths
	if in.CallbackCount > p.CallbackThreshold {
		mult = callbackMultiplierTenths
	}
	plan.FCCMultiplier = float64(mult) / 10

	num := usage * plan.TotalCycleDays * mult
	den := p.LookbackDays * 10
	plan.Value = max(ceilDiv(num, den), 1)
	plan.UsageRatePerMonth = float64(usage*30) / float64(p.LookbackDays)

	switch {
	case usage >= highConfidencePoints:
		plan.Confidence = ConfidenceHigh
	case usage >= mediumConfidencePoints:
		plan.Confidence = ConfidenceMedium
	default:
		plan.Confidence = ConfidenceLow
	}
	if plan.PricingMissing {
		plan.Confidence = plan.Confidence.lower()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d uses in %d days (%.1f/month); lead time %d + order cycle %d = %d days; multiplier %.1f",
		usage, p.LookbackDays, plan.UsageRatePerMonth, plan.LeadTimeDays, p.OrderCycleDays,
		plan.TotalCycleDays, plan.FCCMultiplier)
	if in.CallbackCount > p.CallbackThreshold {
		fmt.Fprintf(&b, " (%d callbacks)", in.CallbackCount)
	}
	if plan.PricingMissing {
		fmt.Fprintf(&b, "; no preferred supplier pricing, assumed %d-day lead time", plan.LeadTimeDays)
	}
	plan.Reasoning = b.String()
	return plan
}

func ceilDiv(a, b int) int {
	if a <= 0 {
		return 0
	}
	return (a + b - 1) / b
}

// ── PlannerService ────────────────────────────────────────────────────────────

type PlannerService interface {
	RecommendMinStock(ctx context.Context, partNumber string) (*MinStockPlan, error)
	// ApplyMinStock stores the recommendation in parts.min_stock.
	ApplyMinStock(ctx context.Context, partNumber string) (*MinStockPlan, error)
	// RecalculateAll applies the recommendation to every part; Updated counts
	// parts whose minimum changed.
	RecalculateAll(ctx context.Context) (BatchResult, error)
}

type plannerService struct {
	pool        *pgxpool.Pool
	pricing     PricingSource
	callbacks   CallbackSource
	policy      PlannerPolicy
	concurrency int
	log         *zap.Logger
	obs         Observer
	now         func() time.Time
}

func NewPlannerService(pool *pgxpool.Pool, pricing PricingSource, callbacks CallbackSource,
	policy PlannerPolicy, concurrency int, log *zap.Logger, obs Observer) PlannerService {
	return &plannerService{
		pool:        pool,
		pricing:     pricing,
		callbacks:   callbacks,
		policy:      policy,
		concurrency: concurrency,
		log:         log,
		obs:         observerOrNop(obs),
		now:         time.Now,
	}
}

func (s *plannerService) RecommendMinStock(ctx context.Context, partNumber string) (*MinStockPlan, error) {
	if _, err := getPart(ctx, s.pool, partNumber); err != nil {
		return nil, err
	}

	since := s.now().AddDate(0, 0, -s.policy.LookbackDays)

	var usage int
	if err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM inventory_transactions
		WHERE part_number = $1 AND type = 'USED' AND created_at >= $2`,
		partNumber, since,
	).Scan(&usage); err != nil {
		return nil, fmt.Errorf("count usage for %s: %w", partNumber, err)
	}

	callbacks, err := s.callbacks.CallbackCount(ctx, partNumber, &since)
	if err != nil {
		return nil, err
	}

	in := PlanInput{UsageCount: usage, CallbackCount: callbacks, Policy: s.policy}

	prices, err := s.pricing.PricingForPart(ctx, partNumber)
	if err != nil {
		return nil, err
	}
	lead, err := preferredLeadTime(prices)
	switch {
	case errors.Is(err, ErrMissingPricing):
		s.log.Debug("no preferred pricing, using default lead time",
			zap.String("part_number", partNumber), zap.Int("lead_time_days", s.policy.DefaultLeadTimeDays))
	case err != nil:
		return nil, err
	default:
		in.LeadTimeDays = &lead
	}

	plan := PlanMinStock(in)
	plan.PartNumber = partNumber
	return &plan, nil
}

func (s *plannerService) ApplyMinStock(ctx context.Context, partNumber string) (*MinStockPlan, error) {
	plan, _, err := s.apply(ctx, partNumber)
	return plan, err
}

func (s *plannerService) apply(ctx context.Context, partNumber string) (*MinStockPlan, bool, error) {
	plan, err := s.RecommendMinStock(ctx, partNumber)
	if err != nil {
		return nil, false, err
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE parts SET min_stock = $1, updated_at = NOW()
		WHERE part_number = $2 AND min_stock <> $1`,
		plan.Value, partNumber,
	)
	if err != nil {
		return nil, false, fmt.Errorf("persist min stock for %s: %w", partNumber, err)
	}
	return plan, tag.RowsAffected() > 0, nil
}

func (s *plannerService) RecalculateAll(ctx context.Context) (BatchResult, error) {
	parts, err := partNumbers(ctx, s.pool)
	if err != nil {
		return BatchResult{}, err
	}
	return runBatch(ctx, "min_stock", parts, s.concurrency, s.log, s.obs,
		func(ctx context.Context, pn string) (bool, error) {
			_, changed, err := s.apply(ctx, pn)
			return changed, err
		}), nil
}
