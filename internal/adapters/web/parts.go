package web

import (
	"net/http"

	"github.com/shopspring/decimal"

	"parts-engine/internal/app"
	"parts-engine/internal/core"
)

// ── Parts ─────────────────────────────────────────────────────────────────────

// apiListParts handles GET /api/parts.
func (h *Handler) apiListParts(w http.ResponseWriter, r *http.Request) {
	parts, err := h.svc.ListParts(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, parts)
}

// apiRegisterPart handles POST /api/parts.
func (h *Handler) apiRegisterPart(w http.ResponseWriter, r *http.Request) {
	var body struct {
		PartNumber       string          `json:"part_number"`
		Description      string          `json:"description"`
		SellPrice        decimal.Decimal `json:"sell_price"`
		MinStockOverride *int            `json:"min_stock_override"`
		AutoReplenish    bool            `json:"auto_replenish"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.PartNumber == "" {
		writeError(w, r, "part_number is required", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	p, err := h.svc.RegisterPart(r.Context(), app.RegisterPartRequest(body))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, p)
}

// apiGetStock handles GET /api/parts/{partNumber}.
func (h *Handler) apiGetStock(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.GetStock(r.Context(), partNumber(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

// apiSetMinStockOverride handles PUT /api/parts/{partNumber}/min-stock-override.
// A null override clears it.
func (h *Handler) apiSetMinStockOverride(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Override *int `json:"min_stock_override"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.Override != nil && *body.Override < 0 {
		writeError(w, r, "min_stock_override cannot be negative", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	if err := h.svc.SetMinStockOverride(r.Context(), partNumber(r), body.Override); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// apiSetAutoReplenish handles PUT /api/parts/{partNumber}/auto-replenish.
func (h *Handler) apiSetAutoReplenish(w http.ResponseWriter, r *http.Request) {
	var body struct {
		AutoReplenish bool `json:"auto_replenish"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if err := h.svc.SetAutoReplenish(r.Context(), partNumber(r), body.AutoReplenish); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ── Ledger ────────────────────────────────────────────────────────────────────

// apiReceive handles POST /api/parts/{partNumber}/receive.
func (h *Handler) apiReceive(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Quantity int             `json:"quantity"`
		UnitCost decimal.Decimal `json:"unit_cost"`
		Reason   string          `json:"reason"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}

	layer, err := h.svc.ReceiveStock(r.Context(), app.ReceiveStockRequest{
		PartNumber: partNumber(r),
		Quantity:   body.Quantity,
		UnitCost:   body.UnitCost,
		Reason:     body.Reason,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeCreated(w, layer)
}

// apiConsume handles POST /api/parts/{partNumber}/consume.
func (h *Handler) apiConsume(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Quantity int    `json:"quantity"`
		JobID    string `json:"job_id"`
		Reason   string `json:"reason"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}

	cb, err := h.svc.ConsumeStock(r.Context(), app.ConsumeStockRequest{
		PartNumber: partNumber(r),
		Quantity:   body.Quantity,
		JobID:      body.JobID,
		Reason:     body.Reason,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, cb)
}

// apiAdjust handles POST /api/parts/{partNumber}/adjust.
func (h *Handler) apiAdjust(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Delta  int    `json:"delta"`
		Reason string `json:"reason"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.Reason == "" {
		writeError(w, r, "reason is required for adjustments", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	res, err := h.svc.AdjustStock(r.Context(), app.AdjustStockRequest{
		PartNumber: partNumber(r),
		Delta:      body.Delta,
		Reason:     body.Reason,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

// apiTransfer handles POST /api/parts/{partNumber}/transfer.
func (h *Handler) apiTransfer(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Quantity       int  `json:"quantity"`
		FromLocationID *int `json:"from_location_id"`
		ToLocationID   int  `json:"to_location_id"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.ToLocationID <= 0 {
		writeError(w, r, "to_location_id is required", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	tx, err := h.svc.TransferStock(r.Context(), app.TransferStockRequest{
		PartNumber:     partNumber(r),
		Quantity:       body.Quantity,
		FromLocationID: body.FromLocationID,
		ToLocationID:   body.ToLocationID,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, tx)
}

// ── Scoring & planning ────────────────────────────────────────────────────────

func (h *Handler) apiScorePart(w http.ResponseWriter, r *http.Request) {
	sc, err := h.svc.ScorePart(r.Context(), partNumber(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, sc)
}

func (h *Handler) apiRecalculateScore(w http.ResponseWriter, r *http.Request) {
	sc, err := h.svc.RecalculateScore(r.Context(), partNumber(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, sc)
}

func (h *Handler) apiRecommendMinStock(w http.ResponseWriter, r *http.Request) {
	plan, err := h.svc.RecommendMinStock(r.Context(), partNumber(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, plan)
}

func (h *Handler) apiApplyMinStock(w http.ResponseWriter, r *http.Request) {
	plan, err := h.svc.ApplyMinStock(r.Context(), partNumber(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, plan)
}

func (h *Handler) apiPricingForPart(w http.ResponseWriter, r *http.Request) {
	prices, err := h.svc.PricingForPart(r.Context(), partNumber(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, prices)
}

// apiRecalculate handles POST /api/jobs/recalculate. Per-part failures are
// reported in the body; the request itself still succeeds.
func (h *Handler) apiRecalculate(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Recalculate(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

// ── Cross-reference groups ────────────────────────────────────────────────────

func (h *Handler) apiListGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := h.svc.ListGroups(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, groups)
}

// apiCreateGroup handles POST /api/groups. Parts already in another group are
// rejected with 409 and listed in the error.
func (h *Handler) apiCreateGroup(w http.ResponseWriter, r *http.Request) {
	var body struct {
		PartNumbers   []string `json:"part_numbers"`
		Description   string   `json:"description"`
		MinStockGroup int      `json:"min_stock_group"`
		AutoReplenish bool     `json:"auto_replenish"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if len(body.PartNumbers) == 0 {
		writeError(w, r, "part_numbers must not be empty", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	g, err := h.svc.CreateGroup(r.Context(), app.CreateGroupRequest(body))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeCreated(w, g)
}

func (h *Handler) apiGetGroup(w http.ResponseWriter, r *http.Request) {
	id, ok := intParam(w, r, "id")
	if !ok {
		return
	}
	g, err := h.svc.GetGroup(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, g)
}

func (h *Handler) apiUpdateGroup(w http.ResponseWriter, r *http.Request) {
	id, ok := intParam(w, r, "id")
	if !ok {
		return
	}
	var body struct {
		Description   string `json:"description"`
		MinStockGroup int    `json:"min_stock_group"`
		AutoReplenish bool   `json:"auto_replenish"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}

	g, err := h.svc.UpdateGroup(r.Context(), id, core.GroupSettings(body))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, g)
}

func (h *Handler) apiAddGroupMember(w http.ResponseWriter, r *http.Request) {
	id, ok := intParam(w, r, "id")
	if !ok {
		return
	}
	var body struct {
		PartNumber string `json:"part_number"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.PartNumber == "" {
		writeError(w, r, "part_number is required", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	g, err := h.svc.AddGroupMember(r.Context(), id, body.PartNumber)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, g)
}

func (h *Handler) apiRemoveGroupMember(w http.ResponseWriter, r *http.Request) {
	id, ok := intParam(w, r, "id")
	if !ok {
		return
	}
	g, err := h.svc.RemoveGroupMember(r.Context(), id, partNumber(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, g)
}
