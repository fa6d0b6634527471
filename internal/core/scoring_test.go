package core

import (
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var scoreNow = time.Date(2025, 6, 30, 12, 0, 0, 0, time.UTC)

func daysAgo(n int) *time.Time {
	t := scoreNow.Add(-time.Duration(n) * 24 * time.Hour)
	return &t
}

func TestScoreUsage_ZeroUsageIsCostComponentOnly(t *testing.T) {
	cheap := ScoreUsage(UsageStats{AverageCost: decimal.RequireFromString("12.50"), CallbackCount: 9}, scoreNow)
	assert.Equal(t, 1.0, cheap.Value)
	assert.Equal(t, ScoreBreakdown{CostEfficiency: 1}, cheap.Breakdown)

	dear := ScoreUsage(UsageStats{AverageCost: decimal.RequireFromString("189.00")}, scoreNow)
	assert.Equal(t, 0.5, dear.Value)
	assert.Equal(t, dear.Breakdown.CostEfficiency, dear.Value)
	assert.Equal(t, "Rarely used — don't stock", dear.Recommendation)
}

func TestScoreUsage_MaximumScore(t *testing.T) {
	sc := ScoreUsage(UsageStats{
		TimesUsed:     40,
		FirstUsedAt:   daysAgo(60),
		LastUsedAt:    daysAgo(1),
		CallbackCount: 12,
		AverageCost:   decimal.RequireFromString("8.99"),
	}, scoreNow)

	assert.Equal(t, 10.0, sc.Value)
	assert.Equal(t, ScoreBreakdown{Frequency: 4, Recency: 2, FCCImpact: 3, CostEfficiency: 1}, sc.Breakdown)
	assert.Equal(t, "Critical — stock immediately", sc.Recommendation)
}

func TestScoreUsage_Components(t *testing.T) {
	tests := []struct {
		name      string
		stats     UsageStats
		frequency float64
		recency   float64
		fcc       float64
	}{
		// 3 uses over 30 days is 3/month.
		{"three per month", UsageStats{TimesUsed: 3, FirstUsedAt: daysAgo(30), LastUsedAt: daysAgo(10)}, 3, 1.5, 0},
		{"one per month", UsageStats{TimesUsed: 3, FirstUsedAt: daysAgo(90), LastUsedAt: daysAgo(45)}, 2, 1, 0},
		{"half per month", UsageStats{TimesUsed: 1, FirstUsedAt: daysAgo(60), LastUsedAt: daysAgo(60)}, 1, 1, 0},
		{"stale", UsageStats{TimesUsed: 1, FirstUsedAt: daysAgo(365), LastUsedAt: daysAgo(365)}, 0, 0, 0},
		{"used today counts as one day", UsageStats{TimesUsed: 1, FirstUsedAt: daysAgo(0), LastUsedAt: daysAgo(0)}, 4, 2, 0},
		{"two callbacks", UsageStats{TimesUsed: 2, FirstUsedAt: daysAgo(30), LastUsedAt: daysAgo(3), CallbackCount: 2}, 3, 2, 1},
		{"callbacks saturate at six", UsageStats{TimesUsed: 2, FirstUsedAt: daysAgo(30), LastUsedAt: daysAgo(3), CallbackCount: 7}, 3, 2, 3},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.stats.AverageCost = decimal.NewFromInt(75)
			sc := ScoreUsage(tc.stats, scoreNow)
			assert.Equal(t, tc.frequency, sc.Breakdown.Frequency, "frequency")
			assert.Equal(t, tc.recency, sc.Breakdown.Recency, "recency")
			assert.Equal(t, tc.fcc, sc.Breakdown.FCCImpact, "fcc")
			assert.Equal(t, 0.5, sc.Breakdown.CostEfficiency)
			assert.Equal(t, tc.frequency+tc.recency+tc.fcc+0.5, sc.Value)
		})
	}
}

func TestScoreUsage_CostBoundaryIsExclusive(t *testing.T) {
	sc := ScoreUsage(UsageStats{AverageCost: decimal.NewFromInt(50)}, scoreNow)
	assert.Equal(t, 0.5, sc.Breakdown.CostEfficiency)
}

func TestScoreUsage_BoundsOnRandomHistories(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 1000; i++ {
		u := UsageStats{
			TimesUsed:     rng.Intn(200),
			CallbackCount: rng.Intn(20),
			AverageCost:   decimal.NewFromFloat(rng.Float64() * 300).Round(2),
		}
		if u.TimesUsed > 0 {
			first := rng.Intn(400)
			u.FirstUsedAt = daysAgo(first)
			u.LastUsedAt = daysAgo(rng.Intn(first + 1))
		}
		sc := ScoreUsage(u, scoreNow)
		require.GreaterOrEqual(t, sc.Value, 0.0)
		require.LessOrEqual(t, sc.Value, 10.0)
		if u.TimesUsed == 0 {
			require.Equal(t, sc.Breakdown.CostEfficiency, sc.Value)
		}
	}
}

func TestRecommendationThresholds(t *testing.T) {
	assert.Equal(t, "Critical — stock immediately", Recommendation(9))
	assert.Equal(t, "High value — stock soon", Recommendation(8.5))
	assert.Equal(t, "Moderate — consider stocking", Recommendation(5))
	assert.Equal(t, "Low priority — order as needed", Recommendation(3))
	assert.Equal(t, "Rarely used — don't stock", Recommendation(2.5))
}
