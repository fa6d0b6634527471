package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"parts-engine/internal/config"
	"parts-engine/internal/core"
	"parts-engine/internal/report"
)

// Options carries the tunables the services are built with.
type Options struct {
	Planner            core.PlannerPolicy
	ScoringConcurrency int
	CoresOverdueDays   int
}

// OptionsFromConfig maps loaded configuration onto service options.
func OptionsFromConfig(cfg *config.Config) Options {
	policy := core.DefaultPlannerPolicy()
	policy.LookbackDays = cfg.Planner.LookbackDays
	policy.OrderCycleDays = cfg.Planner.OrderCycleDays
	policy.DefaultLeadTimeDays = cfg.Planner.DefaultLeadTimeDays
	return Options{
		Planner:            policy,
		ScoringConcurrency: cfg.Scoring.Concurrency,
		CoresOverdueDays:   cfg.Cores.OverdueDays,
	}
}

type appService struct {
	parts     core.PartService
	ledger    core.LedgerService
	groups    core.XrefGroupService
	scoring   core.ScoringService
	planner   core.PlannerService
	suppliers core.SupplierService
	orders    core.PurchaseOrderService
	shipments core.ShipmentService
	cores     core.CoreChargeService
	advisor   core.AdvisorService
	locations core.LocationService
	reporting core.ReportingService

	overdueDays int
	log         *zap.Logger
	now         func() time.Time
}

// NewAppService wires every engine service over one pool. obs may be nil.
func NewAppService(pool *pgxpool.Pool, opts Options, log *zap.Logger, obs core.Observer) ApplicationService {
	if log == nil {
		log = zap.NewNop()
	}
	ledger := core.NewLedgerService(pool, obs)
	suppliers := core.NewSupplierService(pool)
	callbacks := core.NewCallbackSource(pool)

	return &appService{
		parts:       core.NewPartService(pool),
		ledger:      ledger,
		groups:      core.NewXrefGroupService(pool),
		scoring:     core.NewScoringService(pool, callbacks, opts.ScoringConcurrency, log, obs),
		planner:     core.NewPlannerService(pool, suppliers, callbacks, opts.Planner, opts.ScoringConcurrency, log, obs),
		suppliers:   suppliers,
		orders:      core.NewPurchaseOrderService(pool, ledger, suppliers),
		shipments:   core.NewShipmentService(pool),
		cores:       core.NewCoreChargeService(pool),
		advisor:     core.NewAdvisorService(pool, log, obs),
		locations:   core.NewLocationService(pool),
		reporting:   core.NewReportingService(pool),
		overdueDays: opts.CoresOverdueDays,
		log:         log,
		now:         time.Now,
	}
}

// ── Parts & ledger ────────────────────────────────────────────────────────────

func (s *appService) RegisterPart(ctx context.Context, req RegisterPartRequest) (*core.Part, error) {
	return s.parts.RegisterPart(ctx, core.PartInput{
		PartNumber:       req.PartNumber,
		Description:      req.Description,
		SellPrice:        req.SellPrice,
		MinStockOverride: req.MinStockOverride,
		AutoReplenish:    req.AutoReplenish,
	})
}

func (s *appService) ListParts(ctx context.Context) ([]core.Part, error) {
	return s.parts.ListParts(ctx)
}

func (s *appService) GetStock(ctx context.Context, partNumber string) (*StockResult, error) {
	p, err := s.parts.GetPart(ctx, partNumber)
	if err != nil {
		return nil, err
	}
	layers, err := s.ledger.Layers(ctx, partNumber, false)
	if err != nil {
		return nil, err
	}
	txs, err := s.ledger.Transactions(ctx, partNumber, 20)
	if err != nil {
		return nil, err
	}

	res := &StockResult{Part: p, Layers: layers, Transactions: txs}
	if p.StorageLocationID != nil {
		if res.LocationPath, err = s.locations.Path(ctx, *p.StorageLocationID); err != nil {
			return nil, err
		}
	}
	if p.XrefGroupID != nil {
		combined, err := s.groups.CombinedStock(ctx, *p.XrefGroupID)
		if err != nil {
			return nil, err
		}
		res.GroupCombinedStock = &combined
	}
	return res, nil
}

func (s *appService) SetMinStockOverride(ctx context.Context, partNumber string, override *int) error {
	return s.parts.SetMinStockOverride(ctx, partNumber, override)
}

func (s *appService) SetAutoReplenish(ctx context.Context, partNumber string, on bool) error {
	return s.parts.SetAutoReplenish(ctx, partNumber, on)
}

func (s *appService) ReceiveStock(ctx context.Context, req ReceiveStockRequest) (*core.Layer, error) {
	return s.ledger.Receive(ctx, core.ReceiveInput{
		PartNumber: req.PartNumber,
		Quantity:   req.Quantity,
		UnitCost:   req.UnitCost,
		Source:     core.SourceManual,
		Reason:     req.Reason,
	})
}

func (s *appService) ConsumeStock(ctx context.Context, req ConsumeStockRequest) (*core.CostBreakdown, error) {
	return s.ledger.Consume(ctx, core.ConsumeInput(req))
}

func (s *appService) AdjustStock(ctx context.Context, req AdjustStockRequest) (*core.AdjustResult, error) {
	return s.ledger.Adjust(ctx, core.AdjustInput(req))
}

func (s *appService) TransferStock(ctx context.Context, req TransferStockRequest) (*core.Transaction, error) {
	return s.ledger.Transfer(ctx, core.TransferInput(req))
}

// ── Cross-reference groups ────────────────────────────────────────────────────

func (s *appService) CreateGroup(ctx context.Context, req CreateGroupRequest) (*core.XrefGroup, error) {
	return s.groups.CreateGroup(ctx, core.CreateGroupInput(req))
}

func (s *appService) AddGroupMember(ctx context.Context, groupID int, partNumber string) (*core.XrefGroup, error) {
	if err := s.groups.AddMember(ctx, groupID, partNumber); err != nil {
		return nil, err
	}
	return s.groups.GetGroup(ctx, groupID)
}

func (s *appService) RemoveGroupMember(ctx context.Context, groupID int, partNumber string) (*core.XrefGroup, error) {
	if err := s.groups.RemoveMember(ctx, groupID, partNumber); err != nil {
		return nil, err
	}
	return s.groups.GetGroup(ctx, groupID)
}

func (s *appService) UpdateGroup(ctx context.Context, groupID int, settings core.GroupSettings) (*core.XrefGroup, error) {
	return s.groups.UpdateGroup(ctx, groupID, settings)
}

func (s *appService) GetGroup(ctx context.Context, groupID int) (*core.XrefGroup, error) {
	return s.groups.GetGroup(ctx, groupID)
}

func (s *appService) ListGroups(ctx context.Context) ([]core.XrefGroup, error) {
	return s.groups.ListGroups(ctx)
}

// ── Scoring & planning ────────────────────────────────────────────────────────

func (s *appService) ScorePart(ctx context.Context, partNumber string) (*core.Score, error) {
	return s.scoring.ScorePart(ctx, partNumber)
}

func (s *appService) RecalculateScore(ctx context.Context, partNumber string) (*core.Score, error) {
	return s.scoring.RecalculatePart(ctx, partNumber)
}

func (s *appService) RecommendMinStock(ctx context.Context, partNumber string) (*core.MinStockPlan, error) {
	return s.planner.RecommendMinStock(ctx, partNumber)
}

func (s *appService) ApplyMinStock(ctx context.Context, partNumber string) (*core.MinStockPlan, error) {
	return s.planner.ApplyMinStock(ctx, partNumber)
}

// Recalculate scores first so the advisor's next scan sees fresh scores
// alongside the new minimums.
func (s *appService) Recalculate(ctx context.Context) (*RecalculateResult, error) {
	scores, err := s.scoring.RecalculateAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("recalculate scores: %w", err)
	}
	mins, err := s.planner.RecalculateAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("recalculate min stock: %w", err)
	}
	return &RecalculateResult{Scores: scores, MinStock: mins}, nil
}

// ── Suppliers ─────────────────────────────────────────────────────────────────

func (s *appService) CreateSupplier(ctx context.Context, req CreateSupplierRequest) (*core.Supplier, error) {
	return s.suppliers.CreateSupplier(ctx, core.SupplierInput(req))
}

func (s *appService) ListSuppliers(ctx context.Context) ([]core.Supplier, error) {
	return s.suppliers.GetSuppliers(ctx)
}

func (s *appService) supplierID(ctx context.Context, code string) (int, error) {
	sup, err := s.suppliers.GetSupplierByCode(ctx, code)
	if err != nil {
		return 0, err
	}
	return sup.ID, nil
}

func (s *appService) SetPrice(ctx context.Context, req SetPriceRequest) (*core.SupplierPrice, error) {
	id, err := s.supplierID(ctx, req.SupplierCode)
	if err != nil {
		return nil, err
	}
	return s.suppliers.SetPrice(ctx, core.SupplierPriceInput{
		SupplierID:   id,
		PartNumber:   req.PartNumber,
		UnitPrice:    req.UnitPrice,
		LeadTimeDays: req.LeadTimeDays,
		Preferred:    req.Preferred,
	})
}

func (s *appService) DeactivatePrice(ctx context.Context, supplierCode, partNumber string) error {
	id, err := s.supplierID(ctx, supplierCode)
	if err != nil {
		return err
	}
	return s.suppliers.DeactivatePrice(ctx, id, partNumber)
}

func (s *appService) PricingForPart(ctx context.Context, partNumber string) ([]core.SupplierPrice, error) {
	return s.suppliers.PricingForPart(ctx, partNumber)
}

func (s *appService) ImportPriceSheet(ctx context.Context, supplierCode string, f *excelize.File) (*ImportPricesResult, error) {
	id, err := s.supplierID(ctx, supplierCode)
	if err != nil {
		return nil, err
	}
	rows, err := report.ParsePriceSheet(f)
	if err != nil {
		return nil, err
	}

	res := &ImportPricesResult{SupplierCode: supplierCode}
	for _, r := range rows {
		_, err := s.suppliers.SetPrice(ctx, core.SupplierPriceInput{
			SupplierID:   id,
			PartNumber:   r.PartNumber,
			UnitPrice:    r.UnitPrice,
			LeadTimeDays: r.LeadTimeDays,
			Preferred:    r.Preferred,
		})
		if err != nil {
			res.Failures = append(res.Failures, core.PartFailure{PartNumber: r.PartNumber, Err: err.Error()})
			continue
		}
		res.Imported++
	}
	s.log.Info("price sheet imported",
		zap.String("supplier", supplierCode),
		zap.Int("imported", res.Imported),
		zap.Int("failed", len(res.Failures)),
	)
	return res, nil
}

// ── Purchase orders & shipments ───────────────────────────────────────────────

func (s *appService) CreatePurchaseOrder(ctx context.Context, req CreatePurchaseOrderRequest) (*core.PurchaseOrder, error) {
	id, err := s.supplierID(ctx, req.SupplierCode)
	if err != nil {
		return nil, err
	}
	return s.orders.CreatePO(ctx, core.CreatePOInput{
		SupplierID:   id,
		Lines:        req.Lines,
		ShippingCost: req.ShippingCost,
		Tax:          req.Tax,
		Notes:        req.Notes,
	})
}

func (s *appService) AddPOLine(ctx context.Context, poID int, line core.POLineInput) (*core.PurchaseOrder, error) {
	return s.orders.AddLine(ctx, poID, line)
}

func (s *appService) SubmitPO(ctx context.Context, poID int) (*core.PurchaseOrder, error) {
	return s.orders.Submit(ctx, poID)
}

func (s *appService) MarkPOOrdered(ctx context.Context, poID int) (*core.PurchaseOrder, error) {
	return s.orders.MarkOrdered(ctx, poID)
}

func (s *appService) MarkPOShipped(ctx context.Context, poID int, tracking *core.TrackingInput) (*core.PurchaseOrder, error) {
	return s.orders.MarkShipped(ctx, poID, tracking)
}

func (s *appService) SetPOTracking(ctx context.Context, poID int, tracking core.TrackingInput) (*core.PurchaseOrder, error) {
	return s.orders.SetTracking(ctx, poID, tracking)
}

func (s *appService) ReceivePO(ctx context.Context, req ReceivePORequest) (*core.PurchaseOrder, error) {
	return s.orders.Receive(ctx, req.POID, req.Deliveries, req.ShipmentID)
}

func (s *appService) CancelPO(ctx context.Context, poID int) (*core.PurchaseOrder, error) {
	return s.orders.Cancel(ctx, poID)
}

func (s *appService) GetPO(ctx context.Context, poID int) (*core.PurchaseOrder, error) {
	return s.orders.GetPO(ctx, poID)
}

func (s *appService) ListPOs(ctx context.Context, status core.POStatus) ([]core.PurchaseOrder, error) {
	return s.orders.ListPOs(ctx, status)
}

func (s *appService) DraftPOsFromAlerts(ctx context.Context) (*core.DraftResult, error) {
	alerts, err := s.advisor.Scan(ctx)
	if err != nil {
		return nil, err
	}
	return s.orders.DraftFromAlerts(ctx, alerts)
}

func (s *appService) CreateShipment(ctx context.Context, req CreateShipmentRequest) (*core.Shipment, error) {
	return s.shipments.CreateShipment(ctx, core.ShipmentInput(req))
}

func (s *appService) UpdateShipmentStatus(ctx context.Context, id int, status core.ShipmentStatus) (*core.Shipment, error) {
	return s.shipments.UpdateStatus(ctx, id, status)
}

func (s *appService) GetShipment(ctx context.Context, id int) (*core.Shipment, error) {
	return s.shipments.GetShipment(ctx, id)
}

// ── Cores ─────────────────────────────────────────────────────────────────────

func (s *appService) MarkCoreReturned(ctx context.Context, lineID int, in core.CoreReturnInput) (*core.PurchaseOrderLine, error) {
	return s.cores.MarkCoreReturned(ctx, lineID, in)
}

func (s *appService) OverdueCores(ctx context.Context, olderThanDays *int) (*OverdueCoresResult, error) {
	days := s.overdueDays
	if olderThanDays != nil {
		days = *olderThanDays
	}
	cores, err := s.cores.OverdueCores(ctx, days)
	if err != nil {
		return nil, err
	}
	total, err := s.cores.OutstandingCoreTotal(ctx)
	if err != nil {
		return nil, err
	}
	return &OverdueCoresResult{OlderThanDays: days, Cores: cores, OutstandingTotal: total}, nil
}

// ── Alerts, locations, reports ────────────────────────────────────────────────

func (s *appService) ScanAlerts(ctx context.Context) (*ScanResult, error) {
	alerts, err := s.advisor.Scan(ctx)
	if err != nil {
		return nil, err
	}
	res := &ScanResult{ScannedAt: s.now(), Alerts: alerts}
	for _, a := range alerts {
		res.EstimatedCost = res.EstimatedCost.Add(a.EstimatedCost)
	}
	return res, nil
}

func (s *appService) CreateLocation(ctx context.Context, req CreateLocationRequest) (*core.StorageLocation, error) {
	return s.locations.CreateLocation(ctx, core.LocationInput(req))
}

func (s *appService) ListLocations(ctx context.Context) ([]core.StorageLocation, error) {
	return s.locations.ListLocations(ctx)
}

func (s *appService) LocationPath(ctx context.Context, id int) (string, error) {
	return s.locations.Path(ctx, id)
}

func (s *appService) InventoryValuation(ctx context.Context) (*core.ValuationReport, error) {
	return s.reporting.InventoryValuation(ctx)
}

func (s *appService) UsageCost(ctx context.Context, from, to time.Time) ([]core.UsageLine, error) {
	return s.reporting.UsageCost(ctx, from, to)
}

func (s *appService) ExportAlerts(ctx context.Context) (*Export, error) {
	scan, err := s.ScanAlerts(ctx)
	if err != nil {
		return nil, err
	}
	f, name, err := report.Alerts(scan.Alerts, scan.ScannedAt)
	if err != nil {
		return nil, fmt.Errorf("render alerts workbook: %w", err)
	}
	return &Export{Filename: name, File: f}, nil
}

func (s *appService) ExportOverdueCores(ctx context.Context, olderThanDays *int) (*Export, error) {
	res, err := s.OverdueCores(ctx, olderThanDays)
	if err != nil {
		return nil, err
	}
	f, name, err := report.OverdueCores(res.Cores, s.now())
	if err != nil {
		return nil, fmt.Errorf("render overdue cores workbook: %w", err)
	}
	return &Export{Filename: name, File: f}, nil
}

func (s *appService) ExportValuation(ctx context.Context) (*Export, error) {
	v, err := s.reporting.InventoryValuation(ctx)
	if err != nil {
		return nil, err
	}
	f, name, err := report.Valuation(v)
	if err != nil {
		return nil, fmt.Errorf("render valuation workbook: %w", err)
	}
	return &Export{Filename: name, File: f}, nil
}
