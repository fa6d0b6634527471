package web

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"parts-engine/internal/app"
	"parts-engine/internal/core"
)

// ── Suppliers ─────────────────────────────────────────────────────────────────

func (h *Handler) apiListSuppliers(w http.ResponseWriter, r *http.Request) {
	suppliers, err := h.svc.ListSuppliers(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, suppliers)
}

// apiCreateSupplier handles POST /api/suppliers.
func (h *Handler) apiCreateSupplier(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Code          string `json:"code"`
		Name          string `json:"name"`
		ContactPerson string `json:"contact_person"`
		Email         string `json:"email"`
		Phone         string `json:"phone"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.Code == "" || body.Name == "" {
		writeError(w, r, "code and name are required", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	s, err := h.svc.CreateSupplier(r.Context(), app.CreateSupplierRequest(body))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeCreated(w, s)
}

// apiSetPrice handles PUT /api/suppliers/{code}/prices/{partNumber}.
func (h *Handler) apiSetPrice(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UnitPrice    decimal.Decimal `json:"unit_price"`
		LeadTimeDays int             `json:"lead_time_days"`
		Preferred    bool            `json:"preferred"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.UnitPrice.IsNegative() || body.LeadTimeDays < 0 {
		writeError(w, r, "unit_price and lead_time_days cannot be negative", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	p, err := h.svc.SetPrice(r.Context(), app.SetPriceRequest{
		SupplierCode: chi.URLParam(r, "code"),
		PartNumber:   partNumber(r),
		UnitPrice:    body.UnitPrice,
		LeadTimeDays: body.LeadTimeDays,
		Preferred:    body.Preferred,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, p)
}

func (h *Handler) apiDeactivatePrice(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeactivatePrice(r.Context(), chi.URLParam(r, "code"), partNumber(r)); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ── Purchase orders ───────────────────────────────────────────────────────────

type poLineBody struct {
	PartNumber string           `json:"part_number"`
	Quantity   int              `json:"quantity"`
	UnitCost   *decimal.Decimal `json:"unit_cost"`
	HasCore    bool             `json:"has_core"`
	CoreCharge decimal.Decimal  `json:"core_charge"`
}

func (b poLineBody) input() core.POLineInput {
	return core.POLineInput(b)
}

// apiListPOs handles GET /api/purchase-orders?status=SHIPPED.
func (h *Handler) apiListPOs(w http.ResponseWriter, r *http.Request) {
	status := core.POStatus(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		writeError(w, r, fmt.Sprintf("unknown status %q", status), "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	orders, err := h.svc.ListPOs(r.Context(), status)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, orders)
}

// apiCreatePO handles POST /api/purchase-orders. Lines without unit_cost are
// priced from the supplier's active price list.
func (h *Handler) apiCreatePO(w http.ResponseWriter, r *http.Request) {
	var body struct {
		SupplierCode string          `json:"supplier_code"`
		ShippingCost decimal.Decimal `json:"shipping_cost"`
		Tax          decimal.Decimal `json:"tax"`
		Notes        string          `json:"notes"`
		Lines        []poLineBody    `json:"lines"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.SupplierCode == "" {
		writeError(w, r, "supplier_code is required", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	req := app.CreatePurchaseOrderRequest{
		SupplierCode: body.SupplierCode,
		ShippingCost: body.ShippingCost,
		Tax:          body.Tax,
		Notes:        body.Notes,
	}
	for i, l := range body.Lines {
		if l.PartNumber == "" {
			writeError(w, r, fmt.Sprintf("line %d: part_number is required", i+1), "BAD_REQUEST", http.StatusBadRequest)
			return
		}
		req.Lines = append(req.Lines, l.input())
	}

	po, err := h.svc.CreatePurchaseOrder(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeCreated(w, po)
}

func (h *Handler) apiGetPO(w http.ResponseWriter, r *http.Request) {
	id, ok := intParam(w, r, "id")
	if !ok {
		return
	}
	po, err := h.svc.GetPO(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, po)
}

func (h *Handler) apiAddPOLine(w http.ResponseWriter, r *http.Request) {
	id, ok := intParam(w, r, "id")
	if !ok {
		return
	}
	var body poLineBody
	if !decodeJSON(w, r, &body) {
		return
	}
	po, err := h.svc.AddPOLine(r.Context(), id, body.input())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, po)
}

// poAction adapts a lifecycle call that needs only the order ID.
func (h *Handler) poAction(fn func(ctx context.Context, id int) (*core.PurchaseOrder, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := intParam(w, r, "id")
		if !ok {
			return
		}
		po, err := fn(r.Context(), id)
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, po)
	}
}

type trackingBody struct {
	Carrier        string `json:"carrier"`
	TrackingNumber string `json:"tracking_number"`
}

// apiMarkPOShipped handles POST /api/purchase-orders/{id}/ship. The body is
// optional; when present it sets carrier and tracking in the same step.
func (h *Handler) apiMarkPOShipped(w http.ResponseWriter, r *http.Request) {
	id, ok := intParam(w, r, "id")
	if !ok {
		return
	}
	var tracking *core.TrackingInput
	if r.ContentLength != 0 {
		var body trackingBody
		if !decodeJSON(w, r, &body) {
			return
		}
		t := core.TrackingInput(body)
		tracking = &t
	}
	po, err := h.svc.MarkPOShipped(r.Context(), id, tracking)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, po)
}

func (h *Handler) apiSetPOTracking(w http.ResponseWriter, r *http.Request) {
	id, ok := intParam(w, r, "id")
	if !ok {
		return
	}
	var body trackingBody
	if !decodeJSON(w, r, &body) {
		return
	}
	po, err := h.svc.SetPOTracking(r.Context(), id, core.TrackingInput(body))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, po)
}

// apiReceivePO handles POST /api/purchase-orders/{id}/receive. The whole
// receipt is rejected with 409 if any line would exceed its ordered quantity.
func (h *Handler) apiReceivePO(w http.ResponseWriter, r *http.Request) {
	id, ok := intParam(w, r, "id")
	if !ok {
		return
	}
	var body struct {
		ShipmentID *int            `json:"shipment_id"`
		Lines      []core.Delivery `json:"lines"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if len(body.Lines) == 0 {
		writeError(w, r, "at least one line is required", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	po, err := h.svc.ReceivePO(r.Context(), app.ReceivePORequest{
		POID:       id,
		Deliveries: body.Lines,
		ShipmentID: body.ShipmentID,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, po)
}

// apiDraftFromAlerts handles POST /api/purchase-orders/draft-from-alerts.
func (h *Handler) apiDraftFromAlerts(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.DraftPOsFromAlerts(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeCreated(w, res)
}

// ── Shipments ─────────────────────────────────────────────────────────────────

func (h *Handler) apiCreateShipment(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Carrier        string `json:"carrier"`
		TrackingNumber string `json:"tracking_number"`
		OrderIDs       []int  `json:"order_ids"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	s, err := h.svc.CreateShipment(r.Context(), app.CreateShipmentRequest(body))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeCreated(w, s)
}

func (h *Handler) apiGetShipment(w http.ResponseWriter, r *http.Request) {
	id, ok := intParam(w, r, "id")
	if !ok {
		return
	}
	s, err := h.svc.GetShipment(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, s)
}

func (h *Handler) apiUpdateShipmentStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := intParam(w, r, "id")
	if !ok {
		return
	}
	var body struct {
		Status core.ShipmentStatus `json:"status"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if !body.Status.Valid() {
		writeError(w, r, fmt.Sprintf("unknown shipment status %q", body.Status), "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	s, err := h.svc.UpdateShipmentStatus(r.Context(), id, body.Status)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, s)
}

// ── Cores ─────────────────────────────────────────────────────────────────────

// apiMarkCoreReturned handles POST /api/po-lines/{id}/core-return.
func (h *Handler) apiMarkCoreReturned(w http.ResponseWriter, r *http.Request) {
	id, ok := intParam(w, r, "id")
	if !ok {
		return
	}
	var body struct {
		Tracking     string           `json:"tracking"`
		CreditAmount *decimal.Decimal `json:"credit_amount"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	line, err := h.svc.MarkCoreReturned(r.Context(), id, core.CoreReturnInput(body))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, line)
}

// overdueDays reads ?days=N; absent means the configured default.
func overdueDays(w http.ResponseWriter, r *http.Request) (*int, bool) {
	s := r.URL.Query().Get("days")
	if s == "" {
		return nil, true
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		writeError(w, r, "days must be a non-negative integer", "BAD_REQUEST", http.StatusBadRequest)
		return nil, false
	}
	return &n, true
}

// apiOverdueCores handles GET /api/cores/overdue?days=30.
func (h *Handler) apiOverdueCores(w http.ResponseWriter, r *http.Request) {
	days, ok := overdueDays(w, r)
	if !ok {
		return
	}
	res, err := h.svc.OverdueCores(r.Context(), days)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}
