package core

import (
	"sort"

	"github.com/shopspring/decimal"
)

// PlanFIFO allocates up to qty units across layers, oldest first by
// (ReceivedAt, ID). It returns the per-layer draws and how many units were
// allocated; taken < qty means the layers could not cover the request.
// The input slice is not modified.
func PlanFIFO(layers []Layer, qty int) (draws []LayerDraw, taken int) {
	if qty <= 0 {
		return nil, 0
	}

	ordered := make([]Layer, len(layers))
	copy(ordered, layers)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].ReceivedAt.Equal(ordered[j].ReceivedAt) {
			return ordered[i].ReceivedAt.Before(ordered[j].ReceivedAt)
		}
		return ordered[i].ID < ordered[j].ID
	})

	for _, l := range ordered {
		if taken == qty {
			break
		}
		if l.QuantityRemaining <= 0 {
			continue
		}
		n := min(l.QuantityRemaining, qty-taken)
		draws = append(draws, LayerDraw{LayerID: l.ID, Quantity: n, UnitCost: l.UnitCost})
		taken += n
	}
	return draws, taken
}

// TotalCost sums Quantity × UnitCost over the draws.
func TotalCost(draws []LayerDraw) decimal.Decimal {
	total := decimal.Zero
	for _, d := range draws {
		total = total.Add(d.Cost())
	}
	return total
}
