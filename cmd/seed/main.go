// seed loads a small demo catalogue into an empty database: parts with stock,
// two suppliers with pricing, one cross-reference group and a van location.
//
// Usage: go run ./cmd/seed
package main

import (
	"context"
	"fmt"
	"log"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"parts-engine/internal/app"
	"parts-engine/internal/config"
	"parts-engine/internal/core"
	"parts-engine/internal/db"
	"parts-engine/internal/logging"
)

type demoPart struct {
	number, description string
	stock               int
	cost, sell          string
	auto                bool
}

var demoParts = []demoPart{
	{"W10295370A", "Refrigerator water filter", 4, "18.40", "49.99", true},
	{"WH23X10030", "Washer drain pump", 1, "42.15", "89.00", true},
	{"WPW10130913", "Dishwasher drain pump", 2, "31.60", "74.00", false},
	{"W10130913", "Dishwasher drain pump (superseded)", 1, "29.90", "74.00", false},
	{"AP4512345", "Dishwasher drain pump (aftermarket)", 3, "21.75", "59.00", false},
	{"DE92-02439B", "Range igniter", 0, "24.50", "64.00", true},
}

type demoPrice struct {
	supplier, part, price string
	lead                  int
	preferred             bool
}

var demoPrices = []demoPrice{
	{"MARCONE", "W10295370A", "18.40", 2, false},
	{"RELIABLE", "W10295370A", "17.95", 4, false},
	{"MARCONE", "WH23X10030", "42.15", 2, true},
	{"RELIABLE", "WH23X10030", "39.80", 5, false},
	{"MARCONE", "W10130913", "29.90", 3, false},
	{"RELIABLE", "DE92-02439B", "24.50", 3, true},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.Database.URL)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	svc := app.NewAppService(pool, app.OptionsFromConfig(cfg), logger, nil)
	if err := seed(ctx, svc, logger); err != nil {
		logger.Fatal("seed failed", zap.Error(err))
	}
	logger.Info("seed complete", zap.Int("parts", len(demoParts)), zap.Int("prices", len(demoPrices)))
}

func seed(ctx context.Context, svc app.ApplicationService, logger *zap.Logger) error {
	for _, p := range demoParts {
		if _, err := svc.RegisterPart(ctx, app.RegisterPartRequest{
			PartNumber:    p.number,
			Description:   p.description,
			SellPrice:     decimal.RequireFromString(p.sell),
			AutoReplenish: p.auto,
		}); err != nil {
			return fmt.Errorf("register %s: %w", p.number, err)
		}
		if p.stock == 0 {
			continue
		}
		if _, err := svc.ReceiveStock(ctx, app.ReceiveStockRequest{
			PartNumber: p.number,
			Quantity:   p.stock,
			UnitCost:   decimal.RequireFromString(p.cost),
			Reason:     "opening stock",
		}); err != nil {
			return fmt.Errorf("opening stock for %s: %w", p.number, err)
		}
	}
	logger.Info("parts loaded")

	for _, s := range []app.CreateSupplierRequest{
		{Code: "MARCONE", Name: "Marcone Supply", Email: "orders@marcone.example"},
		{Code: "RELIABLE", Name: "Reliable Parts", Email: "sales@reliableparts.example"},
	} {
		if _, err := svc.CreateSupplier(ctx, s); err != nil {
			return fmt.Errorf("supplier %s: %w", s.Code, err)
		}
	}
	for _, p := range demoPrices {
		if _, err := svc.SetPrice(ctx, app.SetPriceRequest{
			SupplierCode: p.supplier,
			PartNumber:   p.part,
			UnitPrice:    decimal.RequireFromString(p.price),
			LeadTimeDays: p.lead,
			Preferred:    p.preferred,
		}); err != nil {
			return fmt.Errorf("price %s/%s: %w", p.supplier, p.part, err)
		}
	}
	logger.Info("suppliers loaded")

	if _, err := svc.CreateGroup(ctx, app.CreateGroupRequest{
		PartNumbers:   []string{"WPW10130913", "W10130913", "AP4512345"},
		Description:   "Dishwasher drain pump",
		MinStockGroup: 5,
		AutoReplenish: true,
	}); err != nil {
		return fmt.Errorf("drain pump group: %w", err)
	}

	van, err := svc.CreateLocation(ctx, app.CreateLocationRequest{Name: "Van 1", Type: core.LocationVehicle})
	if err != nil {
		return fmt.Errorf("van location: %w", err)
	}
	if _, err := svc.CreateLocation(ctx, app.CreateLocationRequest{ParentID: &van.ID, Name: "Rear Shelf", Type: core.LocationShelf}); err != nil {
		return fmt.Errorf("shelf location: %w", err)
	}
	return nil
}
