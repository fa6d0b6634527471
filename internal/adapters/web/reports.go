package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"parts-engine/internal/app"
	"parts-engine/internal/core"
	"parts-engine/internal/report"
)

// ── Alerts ────────────────────────────────────────────────────────────────────

// apiScanAlerts handles GET /api/alerts. Scanning never writes.
func (h *Handler) apiScanAlerts(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.ScanAlerts(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

// writeWorkbook streams an export as an xlsx attachment and closes it.
func (h *Handler) writeWorkbook(w http.ResponseWriter, r *http.Request, exp *app.Export) {
	defer exp.File.Close()

	w.Header().Set("Content-Type", report.ContentType)
	w.Header().Set("Content-Disposition", "attachment; filename=\""+exp.Filename+"\"")
	w.Header().Set("Content-Transfer-Encoding", "binary")

	if err := exp.File.Write(w); err != nil {
		// Headers are already out; all we can do is log.
		h.log.Error("write workbook", zap.String("file", exp.Filename), zap.Error(err), zapRequestID(r))
	}
}

func (h *Handler) apiExportAlerts(w http.ResponseWriter, r *http.Request) {
	exp, err := h.svc.ExportAlerts(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeWorkbook(w, r, exp)
}

func (h *Handler) apiExportOverdueCores(w http.ResponseWriter, r *http.Request) {
	days, ok := overdueDays(w, r)
	if !ok {
		return
	}
	exp, err := h.svc.ExportOverdueCores(r.Context(), days)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeWorkbook(w, r, exp)
}

// ── Price sheet import ────────────────────────────────────────────────────────

const maxPriceSheetBytes = 10 << 20

// apiImportPriceSheet handles POST /api/suppliers/{code}/prices/import with a
// multipart "file" field holding an xlsx price list.
func (h *Handler) apiImportPriceSheet(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxPriceSheetBytes)
	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, "upload an xlsx file in the \"file\" field", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	defer file.Close()

	f, err := excelize.OpenReader(file)
	if err != nil {
		writeError(w, r, "not a readable xlsx file: "+err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	defer f.Close()

	res, err := h.svc.ImportPriceSheet(r.Context(), chi.URLParam(r, "code"), f)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

// ── Locations ─────────────────────────────────────────────────────────────────

func (h *Handler) apiListLocations(w http.ResponseWriter, r *http.Request) {
	locs, err := h.svc.ListLocations(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, locs)
}

func (h *Handler) apiCreateLocation(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ParentID *int              `json:"parent_id"`
		Name     string            `json:"name"`
		Type     core.LocationType `json:"type"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if !body.Type.Valid() {
		writeError(w, r, "unknown location type "+string(body.Type), "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	loc, err := h.svc.CreateLocation(r.Context(), app.CreateLocationRequest(body))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeCreated(w, loc)
}

func (h *Handler) apiLocationPath(w http.ResponseWriter, r *http.Request) {
	id, ok := intParam(w, r, "id")
	if !ok {
		return
	}
	path, err := h.svc.LocationPath(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, map[string]any{"id": id, "path": path})
}

// ── Reports ───────────────────────────────────────────────────────────────────

func (h *Handler) apiValuation(w http.ResponseWriter, r *http.Request) {
	v, err := h.svc.InventoryValuation(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, v)
}

func (h *Handler) apiExportValuation(w http.ResponseWriter, r *http.Request) {
	exp, err := h.svc.ExportValuation(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeWorkbook(w, r, exp)
}

// apiUsageCost handles GET /api/reports/usage?from=2026-01-01&to=2026-02-01.
// Both dates are required; to is exclusive.
func (h *Handler) apiUsageCost(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, err1 := time.Parse(time.DateOnly, q.Get("from"))
	to, err2 := time.Parse(time.DateOnly, q.Get("to"))
	if err1 != nil || err2 != nil {
		writeError(w, r, "from and to must be YYYY-MM-DD dates", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	if !to.After(from) {
		writeError(w, r, "to must be after from", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	lines, err := h.svc.UsageCost(r.Context(), from, to)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, lines)
}
