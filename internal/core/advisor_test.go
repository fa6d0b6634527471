package core

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(n int) *int { return &n }

func part(pn string, stock, minStock int, score float64, auto bool) Part {
	return Part{
		PartNumber:    pn,
		CurrentStock:  stock,
		MinStock:      minStock,
		StockingScore: score,
		AutoReplenish: auto,
		AverageCost:   decimal.RequireFromString("24.50"),
	}
}

func TestBuildAlerts_UngroupedParts(t *testing.T) {
	override := part("OVR", 3, 1, 6, true)
	override.MinStockOverride = intPtr(4)

	alerts := BuildAlerts([]Part{
		part("EMPTY", 0, 2, 1, true),
		part("AT-MIN", 2, 2, 9, true),
		part("ABOVE", 5, 2, 9, true),
		part("MANUAL", 0, 2, 9, false),
		override,
	}, nil)

	require.Len(t, alerts, 3)

	assert.Equal(t, "EMPTY", alerts[0].PartNumber)
	assert.Equal(t, UrgencyCritical, alerts[0].Urgency)
	assert.Equal(t, 3, alerts[0].RecommendedQty)
	assert.Equal(t, "73.50", alerts[0].EstimatedCost.StringFixed(2))

	assert.Equal(t, "AT-MIN", alerts[1].PartNumber)
	assert.Equal(t, UrgencyHigh, alerts[1].Urgency)
	assert.Equal(t, 1, alerts[1].RecommendedQty)

	assert.Equal(t, "OVR", alerts[2].PartNumber)
	assert.Equal(t, 4, alerts[2].EffectiveMin, "override above min_stock wins")
	assert.Equal(t, UrgencyMedium, alerts[2].Urgency)
	assert.Equal(t, 2, alerts[2].RecommendedQty)
}

func TestBuildAlerts_GroupScenario(t *testing.T) {
	gid := 7
	members := []Part{
		part("WPW10130913", 2, 1, 4, true),
		part("W10130913", 1, 1, 8.5, false),
		part("AP4512345", 3, 1, 2, false),
	}
	for i := range members {
		members[i].XrefGroupID = &gid
	}
	group := XrefGroup{ID: gid, MinStockGroup: 5}

	// Combined stock 6 is above the group minimum of 5.
	assert.Empty(t, BuildAlerts(members, []XrefGroup{group}))

	// Consuming 2 from any member drops combined stock to 4.
	members[2].CurrentStock = 1
	alerts := BuildAlerts(members, []XrefGroup{group})
	require.Len(t, alerts, 1)

	a := alerts[0]
	assert.Equal(t, "W10130913", a.PartNumber, "representative is the highest-scoring member")
	assert.Equal(t, 4, a.EffectiveStock)
	assert.Equal(t, 5, a.EffectiveMin)
	assert.Equal(t, 2, a.RecommendedQty)
	assert.Equal(t, UrgencyHigh, a.Urgency)
	require.NotNil(t, a.GroupID)
	assert.Equal(t, gid, *a.GroupID)
	assert.Equal(t, []string{"AP4512345", "W10130913", "WPW10130913"}, a.GroupMembers)
}

func TestBuildAlerts_GroupEligibility(t *testing.T) {
	gid := 3
	a := part("A", 0, 0, 0, false)
	b := part("B", 0, 0, 0, false)
	a.XrefGroupID, b.XrefGroupID = &gid, &gid

	assert.Empty(t, BuildAlerts([]Part{a, b}, []XrefGroup{{ID: gid, MinStockGroup: 2}}),
		"no auto-replenish anywhere in the group")

	alerts := BuildAlerts([]Part{a, b}, []XrefGroup{{ID: gid, MinStockGroup: 2, AutoReplenish: true}})
	require.Len(t, alerts, 1)
	assert.Equal(t, "A", alerts[0].PartNumber, "ties on score fall back to part number")
	assert.Equal(t, UrgencyCritical, alerts[0].Urgency)

	b.AutoReplenish = true
	alerts = BuildAlerts([]Part{a, b}, []XrefGroup{{ID: gid, MinStockGroup: 2}})
	require.Len(t, alerts, 1, "one auto-replenish member is enough")
	assert.Equal(t, []string{"A", "B"}, alerts[0].GroupMembers)
}

func TestBuildAlerts_GroupedMemberIgnoresOwnMinimum(t *testing.T) {
	gid := 1
	p := part("SOLO", 0, 10, 0, true)
	p.XrefGroupID = &gid

	assert.Empty(t, BuildAlerts([]Part{p}, []XrefGroup{{ID: gid, MinStockGroup: -1}}))
}

func TestBuildAlerts_Ordering(t *testing.T) {
	alerts := BuildAlerts([]Part{
		part("LOW-B", 1, 1, 2, true),
		part("LOW-A", 1, 1, 2, true),
		part("MED", 1, 1, 6, true),
		part("HIGH", 1, 1, 9, true),
		part("CRIT-LOWSCORE", 0, 1, 1, true),
		part("CRIT-HIGHSCORE", 0, 1, 7, true),
	}, nil)

	var order []string
	for _, a := range alerts {
		order = append(order, a.PartNumber)
	}
	assert.Equal(t, []string{"CRIT-HIGHSCORE", "CRIT-LOWSCORE", "HIGH", "MED", "LOW-A", "LOW-B"}, order)
}

func TestClassifyUrgency(t *testing.T) {
	assert.Equal(t, UrgencyCritical, classifyUrgency(0, 10))
	assert.Equal(t, UrgencyHigh, classifyUrgency(1, 8))
	assert.Equal(t, UrgencyMedium, classifyUrgency(1, 5))
	assert.Equal(t, UrgencyLow, classifyUrgency(1, 4.9))
}
