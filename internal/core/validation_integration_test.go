package core_test

import (
	"context"
	"errors"
	"testing"

	"parts-engine/internal/core"
)

func TestValidation_ClientInputMatchesErrInvalidInput(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	pos, suppliers, ledger := newPOServices(pool)
	supplier := supplierID(t, suppliers, "MARCONE")
	negative := money("-1")

	checks := map[string]func() error{
		"negative unit cost on receive": func() error {
			_, err := ledger.Receive(ctx, core.ReceiveInput{PartNumber: "W1", Quantity: 1, UnitCost: negative})
			return err
		},
		"negative tax": func() error {
			_, err := pos.CreatePO(ctx, core.CreatePOInput{SupplierID: supplier, Tax: negative})
			return err
		},
		"negative line cost": func() error {
			_, err := pos.CreatePO(ctx, core.CreatePOInput{SupplierID: supplier,
				Lines: []core.POLineInput{{PartNumber: "W1", Quantity: 1, UnitCost: &negative}}})
			return err
		},
		"negative group minimum": func() error {
			_, err := core.NewXrefGroupService(pool).CreateGroup(ctx, core.CreateGroupInput{PartNumbers: []string{"W1"}, MinStockGroup: -1})
			return err
		},
		"negative supplier price": func() error {
			_, err := suppliers.SetPrice(ctx, core.SupplierPriceInput{SupplierID: supplier, PartNumber: "W1", UnitPrice: negative})
			return err
		},
		"negative core credit": func() error {
			_, err := core.NewCoreChargeService(pool).MarkCoreReturned(ctx, 1, core.CoreReturnInput{CreditAmount: &negative})
			return err
		},
		"unknown location type": func() error {
			_, err := core.NewLocationService(pool).CreateLocation(ctx, core.LocationInput{Name: "Van 9", Type: "garage"})
			return err
		},
	}
	for name, check := range checks {
		if err := check(); !errors.Is(err, core.ErrInvalidInput) {
			t.Errorf("%s: expected ErrInvalidInput, got %v", name, err)
		}
	}

	var orders int
	if err := pool.QueryRow(ctx, "SELECT COUNT(*) FROM purchase_orders").Scan(&orders); err != nil {
		t.Fatalf("count orders: %v", err)
	}
	if orders != 0 {
		t.Errorf("rejected input must not create orders, found %d", orders)
	}
}
