package core_test

import (
	"context"
	"errors"
	"testing"

	"parts-engine/internal/core"

	"go.uber.org/zap"
)

func TestXrefGroup_CombinedStockTriggersOneAlert(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	ledger := core.NewLedgerService(pool, nil)
	groups := core.NewXrefGroupService(pool)
	advisor := core.NewAdvisorService(pool, zap.NewNop(), nil)

	stocks := map[string]int{"WPW10130913": 2, "W10130913": 1, "AP4512345": 3}
	for pn, qty := range stocks {
		if _, err := ledger.Receive(ctx, core.ReceiveInput{PartNumber: pn, Quantity: qty, UnitCost: money("15.00")}); err != nil {
			t.Fatalf("Receive %s: %v", pn, err)
		}
	}

	g, err := groups.CreateGroup(ctx, core.CreateGroupInput{
		PartNumbers:   []string{"WPW10130913", "W10130913", "AP4512345"},
		Description:   "Dryer thermal fuse",
		MinStockGroup: 5,
		AutoReplenish: true,
	})
	if err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}

	combined, err := groups.CombinedStock(ctx, g.ID)
	if err != nil || combined != 6 {
		t.Fatalf("expected combined stock 6, got %d (%v)", combined, err)
	}
	if below, _ := groups.IsBelowMinimum(ctx, g.ID); below {
		t.Errorf("6 > 5 must not be below minimum")
	}
	alerts, err := advisor.Scan(ctx)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(alerts) != 0 {
		t.Errorf("expected no alerts, got %+v", alerts)
	}

	if _, err := ledger.Consume(ctx, core.ConsumeInput{PartNumber: "AP4512345", Quantity: 2}); err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if below, _ := groups.IsBelowMinimum(ctx, g.ID); !below {
		t.Errorf("combined stock 4 must be below minimum 5")
	}

	alerts, err = advisor.Scan(ctx)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(alerts) != 1 {
		t.Fatalf("expected a single group alert, got %d", len(alerts))
	}
	if alerts[0].GroupID == nil || *alerts[0].GroupID != g.ID {
		t.Errorf("expected alert for group %d, got %+v", g.ID, alerts[0])
	}
	if alerts[0].EffectiveStock != 4 || alerts[0].RecommendedQty != 2 {
		t.Errorf("expected stock 4 and qty 2, got %d and %d", alerts[0].EffectiveStock, alerts[0].RecommendedQty)
	}
}

func TestXrefGroup_MembershipIsExclusive(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	groups := core.NewXrefGroupService(pool)

	first, err := groups.CreateGroup(ctx, core.CreateGroupInput{PartNumbers: []string{"A1", "A2"}, MinStockGroup: 1})
	if err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}

	_, err = groups.CreateGroup(ctx, core.CreateGroupInput{PartNumbers: []string{"A2", "B1"}, MinStockGroup: 1})
	var conflict *core.GroupMembershipConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected GroupMembershipConflictError, got %v", err)
	}
	if len(conflict.Parts) != 1 || conflict.Parts[0] != "A2" {
		t.Errorf("expected conflict on A2, got %v", conflict.Parts)
	}

	if err := groups.AddMember(ctx, first.ID, "A1"); err != nil {
		t.Errorf("re-adding an existing member should be a no-op, got %v", err)
	}

	second, err := groups.CreateGroup(ctx, core.CreateGroupInput{PartNumbers: []string{"B1"}, MinStockGroup: 1})
	if err != nil {
		t.Fatalf("CreateGroup second: %v", err)
	}
	if err := groups.AddMember(ctx, second.ID, "A1"); !errors.Is(err, core.ErrMembershipConflict) {
		t.Errorf("moving a member between groups: expected ErrMembershipConflict, got %v", err)
	}

	if err := groups.RemoveMember(ctx, first.ID, "A1"); err != nil {
		t.Fatalf("RemoveMember: %v", err)
	}
	if err := groups.AddMember(ctx, second.ID, "A1"); err != nil {
		t.Errorf("AddMember after removal: %v", err)
	}

	g, err := groups.GetGroup(ctx, second.ID)
	if err != nil {
		t.Fatalf("GetGroup: %v", err)
	}
	if len(g.Members) != 2 {
		t.Errorf("expected two members, got %v", g.Members)
	}
}
