package app

import (
	"context"
	"time"

	"github.com/xuri/excelize/v2"

	"parts-engine/internal/core"
)

// ApplicationService is the single interface all adapters (CLI, Web) call.
// It decouples presentation from the engine's services. Implementations must
// contain no display logic of any kind.
type ApplicationService interface {
	// ── Parts & ledger ───────────────────────────────────────────────────────

	RegisterPart(ctx context.Context, req RegisterPartRequest) (*core.Part, error)
	ListParts(ctx context.Context) ([]core.Part, error)
	// GetStock returns the part with open layers, recent transactions and,
	// for grouped parts, the group's combined stock.
	GetStock(ctx context.Context, partNumber string) (*StockResult, error)
	SetMinStockOverride(ctx context.Context, partNumber string, override *int) error
	SetAutoReplenish(ctx context.Context, partNumber string, on bool) error

	ReceiveStock(ctx context.Context, req ReceiveStockRequest) (*core.Layer, error)
	ConsumeStock(ctx context.Context, req ConsumeStockRequest) (*core.CostBreakdown, error)
	AdjustStock(ctx context.Context, req AdjustStockRequest) (*core.AdjustResult, error)
	TransferStock(ctx context.Context, req TransferStockRequest) (*core.Transaction, error)

	// ── Cross-reference groups ───────────────────────────────────────────────

	CreateGroup(ctx context.Context, req CreateGroupRequest) (*core.XrefGroup, error)
	AddGroupMember(ctx context.Context, groupID int, partNumber string) (*core.XrefGroup, error)
	RemoveGroupMember(ctx context.Context, groupID int, partNumber string) (*core.XrefGroup, error)
	UpdateGroup(ctx context.Context, groupID int, settings core.GroupSettings) (*core.XrefGroup, error)
	GetGroup(ctx context.Context, groupID int) (*core.XrefGroup, error)
	ListGroups(ctx context.Context) ([]core.XrefGroup, error)

	// ── Scoring & planning ───────────────────────────────────────────────────

	ScorePart(ctx context.Context, partNumber string) (*core.Score, error)
	RecalculateScore(ctx context.Context, partNumber string) (*core.Score, error)
	RecommendMinStock(ctx context.Context, partNumber string) (*core.MinStockPlan, error)
	ApplyMinStock(ctx context.Context, partNumber string) (*core.MinStockPlan, error)
	// Recalculate runs the score batch, then the min-stock batch.
	Recalculate(ctx context.Context) (*RecalculateResult, error)

	// ── Suppliers ────────────────────────────────────────────────────────────

	CreateSupplier(ctx context.Context, req CreateSupplierRequest) (*core.Supplier, error)
	ListSuppliers(ctx context.Context) ([]core.Supplier, error)
	SetPrice(ctx context.Context, req SetPriceRequest) (*core.SupplierPrice, error)
	DeactivatePrice(ctx context.Context, supplierCode, partNumber string) error
	PricingForPart(ctx context.Context, partNumber string) ([]core.SupplierPrice, error)
	// ImportPriceSheet upserts every row of a supplier price list. Row failures
	// are collected; the remaining rows still import.
	ImportPriceSheet(ctx context.Context, supplierCode string, f *excelize.File) (*ImportPricesResult, error)

	// ── Purchase orders & shipments ──────────────────────────────────────────

	CreatePurchaseOrder(ctx context.Context, req CreatePurchaseOrderRequest) (*core.PurchaseOrder, error)
	AddPOLine(ctx context.Context, poID int, line core.POLineInput) (*core.PurchaseOrder, error)
	SubmitPO(ctx context.Context, poID int) (*core.PurchaseOrder, error)
	MarkPOOrdered(ctx context.Context, poID int) (*core.PurchaseOrder, error)
	MarkPOShipped(ctx context.Context, poID int, tracking *core.TrackingInput) (*core.PurchaseOrder, error)
	SetPOTracking(ctx context.Context, poID int, tracking core.TrackingInput) (*core.PurchaseOrder, error)
	ReceivePO(ctx context.Context, req ReceivePORequest) (*core.PurchaseOrder, error)
	CancelPO(ctx context.Context, poID int) (*core.PurchaseOrder, error)
	GetPO(ctx context.Context, poID int) (*core.PurchaseOrder, error)
	ListPOs(ctx context.Context, status core.POStatus) ([]core.PurchaseOrder, error)
	// DraftPOsFromAlerts scans for alerts and drafts one order per supplier.
	DraftPOsFromAlerts(ctx context.Context) (*core.DraftResult, error)

	CreateShipment(ctx context.Context, req CreateShipmentRequest) (*core.Shipment, error)
	UpdateShipmentStatus(ctx context.Context, id int, status core.ShipmentStatus) (*core.Shipment, error)
	GetShipment(ctx context.Context, id int) (*core.Shipment, error)

	// ── Cores ────────────────────────────────────────────────────────────────

	MarkCoreReturned(ctx context.Context, lineID int, in core.CoreReturnInput) (*core.PurchaseOrderLine, error)
	// OverdueCores uses the configured threshold when olderThanDays is nil.
	OverdueCores(ctx context.Context, olderThanDays *int) (*OverdueCoresResult, error)

	// ── Alerts, locations, reports ───────────────────────────────────────────

	ScanAlerts(ctx context.Context) (*ScanResult, error)

	CreateLocation(ctx context.Context, req CreateLocationRequest) (*core.StorageLocation, error)
	ListLocations(ctx context.Context) ([]core.StorageLocation, error)
	LocationPath(ctx context.Context, id int) (string, error)

	InventoryValuation(ctx context.Context) (*core.ValuationReport, error)
	UsageCost(ctx context.Context, from, to time.Time) ([]core.UsageLine, error)
	ExportAlerts(ctx context.Context) (*Export, error)
	ExportOverdueCores(ctx context.Context, olderThanDays *int) (*Export, error)
	ExportValuation(ctx context.Context) (*Export, error)
}
