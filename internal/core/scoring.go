package core

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// UsageStats is the usage history a stocking score is computed from.
type UsageStats struct {
	TimesUsed     int
	FirstUsedAt   *time.Time
	LastUsedAt    *time.Time
	CallbackCount int
	AverageCost   decimal.Decimal
}

type ScoreBreakdown struct {
	Frequency      float64 `json:"frequency"`
	Recency        float64 `json:"recency"`
	FCCImpact      float64 `json:"fcc_impact"`
	CostEfficiency float64 `json:"cost_efficiency"`
}

type Score struct {
	PartNumber       string         `json:"part_number"`
	Value            float64        `json:"value"`
	Breakdown        ScoreBreakdown `json:"breakdown"`
	Recommendation   string         `json:"recommendation"`
	UsagePerMonth    float64        `json:"usage_per_month"`
	DaysSinceLastUse *int           `json:"days_since_last_use,omitempty"`
}

const (
	maxFrequencyPoints = 4.0
	maxRecencyPoints   = 2.0
	maxFCCPoints       = 3.0
	pointsPerCallback  = 0.5
)

var costEfficiencyThreshold = decimal.NewFromInt(50)

// ScoreUsage computes the 0-10 stocking score. A part that has never been used
// scores its cost-efficiency component only.
func ScoreUsage(u UsageStats, now time.Time) Score {
	var b ScoreBreakdown
	var perMonth float64
	var sinceLast *int

	if u.TimesUsed > 0 && u.FirstUsedAt != nil {
		days := max(wholeDays(now.Sub(*u.FirstUsedAt)), 1)
		perMonth = float64(u.TimesUsed*30) / float64(days)
		b.Frequency = frequencyPoints(perMonth)

		if u.LastUsedAt != nil {
			d := max(wholeDays(now.Sub(*u.LastUsedAt)), 0)
			sinceLast = &d
			b.Recency = recencyPoints(d)
		}
		b.FCCImpact = math.Min(float64(u.CallbackCount)*pointsPerCallback, maxFCCPoints)
	}

	b.CostEfficiency = 0.5
	if u.AverageCost.LessThan(costEfficiencyThreshold) {
		b.CostEfficiency = 1
	}

	value := clampScore(b.Frequency + b.Recency + b.FCCImpact + b.CostEfficiency)
	return Score{
		Value:            value,
		Breakdown:        b,
		Recommendation:   Recommendation(value),
		UsagePerMonth:    perMonth,
		DaysSinceLastUse: sinceLast,
	}
}

func frequencyPoints(perMonth float64) float64 {
	switch {
	case perMonth >= 4:
		return maxFrequencyPoints
	case perMonth >= 2:
		return 3
	case perMonth >= 1:
		return 2
	case perMonth >= 0.5:
		return 1
	}
	return 0
}

func recencyPoints(days int) float64 {
	switch {
	case days < 7:
		return maxRecencyPoints
	case days < 30:
		return 1.5
	case days < 90:
		return 1
	}
	return 0
}

// Recommendation maps a score to its stocking advice.
func Recommendation(score float64) string {
	switch {
	case score >= 9:
		return "Critical — stock immediately"
	case score >= 7:
		return "High value — stock soon"
	case score >= 5:
		return "Moderate — consider stocking"
	case score >= 3:
		return "Low priority — order as needed"
	}
	return "Rarely used — don't stock"
}

func clampScore(v float64) float64 {
	return math.Max(0, math.Min(10, v))
}

func wholeDays(d time.Duration) int {
	return int(d / (24 * time.Hour))
}

// ── ScoringService ────────────────────────────────────────────────────────────

// ScoringService reads usage history and persists stocking scores. It reads
// transactions without taking part locks, so a batch never blocks the ledger.
type ScoringService interface {
	ScorePart(ctx context.Context, partNumber string) (*Score, error)
	RecalculatePart(ctx context.Context, partNumber string) (*Score, error)
	RecalculateAll(ctx context.Context) (BatchResult, error)
}

type scoringService struct {
	pool        *pgxpool.Pool
	callbacks   CallbackSource
	concurrency int
	log         *zap.Logger
	obs         Observer
	now         func() time.Time
}

func NewScoringService(pool *pgxpool.Pool, callbacks CallbackSource, concurrency int, log *zap.Logger, obs Observer) ScoringService {
	return &scoringService{
		pool:        pool,
		callbacks:   callbacks,
		concurrency: concurrency,
		log:         log,
		obs:         observerOrNop(obs),
		now:         time.Now,
	}
}

func (s *scoringService) ScorePart(ctx context.Context, partNumber string) (*Score, error) {
	u, err := s.usage(ctx, partNumber)
	if err != nil {
		return nil, err
	}
	sc := ScoreUsage(*u, s.now())
	sc.PartNumber = partNumber
	return &sc, nil
}

func (s *scoringService) RecalculatePart(ctx context.Context, partNumber string) (*Score, error) {
	sc, err := s.ScorePart(ctx, partNumber)
	if err != nil {
		return nil, err
	}
	if _, err := s.pool.Exec(ctx,
		"UPDATE parts SET stocking_score = $1, updated_at = NOW() WHERE part_number = $2",
		sc.Value, partNumber,
	); err != nil {
		return nil, fmt.Errorf("persist score for %s: %w", partNumber, err)
	}
	return sc, nil
}

func (s *scoringService) RecalculateAll(ctx context.Context) (BatchResult, error) {
	parts, err := partNumbers(ctx, s.pool)
	if err != nil {
		return BatchResult{}, err
	}
	return runBatch(ctx, "stocking_score", parts, s.concurrency, s.log, s.obs,
		func(ctx context.Context, pn string) (bool, error) {
			_, err := s.RecalculatePart(ctx, pn)
			return err == nil, err
		}), nil
}

func (s *scoringService) usage(ctx context.Context, partNumber string) (*UsageStats, error) {
	part, err := getPart(ctx, s.pool, partNumber)
	if err != nil {
		return nil, err
	}

	u := &UsageStats{AverageCost: part.AverageCost}
	if err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*), MIN(created_at), MAX(created_at)
		FROM inventory_transactions
		WHERE part_number = $1 AND type = 'USED'`,
		partNumber,
	).Scan(&u.TimesUsed, &u.FirstUsedAt, &u.LastUsedAt); err != nil {
		return nil, fmt.Errorf("read usage for %s: %w", partNumber, err)
	}

	if u.TimesUsed > 0 {
		n, err := s.callbacks.CallbackCount(ctx, partNumber, nil)
		if err != nil {
			return nil, err
		}
		u.CallbackCount = n
	}
	return u, nil
}
