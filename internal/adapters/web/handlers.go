package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"parts-engine/internal/app"
)

// Options configures the router beyond the application service.
type Options struct {
	AllowedOrigins string
	// Observer receives per-request metrics; nil disables them.
	Observer HTTPObserver
	// MetricsHandler is mounted at /metrics when set.
	MetricsHandler http.Handler
}

// Handler holds the ApplicationService and the chi router.
type Handler struct {
	svc    app.ApplicationService
	log    *zap.Logger
	router chi.Router
}

// NewHandler creates and wires the chi router with all routes.
func NewHandler(svc app.ApplicationService, log *zap.Logger, opts Options) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	h := &Handler{svc: svc, log: log}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger(log, opts.Observer))
	r.Use(Recoverer(log))
	r.Use(CORS(opts.AllowedOrigins))

	r.Get("/api/health", h.health)
	if opts.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", opts.MetricsHandler)
	}

	r.Route("/api", func(r chi.Router) {
		// Price sheet uploads manage their own multipart limit.
		r.Post("/suppliers/{code}/prices/import", h.apiImportPriceSheet)

		r.Group(func(r chi.Router) {
			r.Use(RequestBodyLimit(1 << 20)) // 1 MB

			// ── Parts & ledger ────────────────────────────────────────────────
			r.Get("/parts", h.apiListParts)
			r.Post("/parts", h.apiRegisterPart)
			r.Get("/parts/{partNumber}", h.apiGetStock)
			r.Put("/parts/{partNumber}/min-stock-override", h.apiSetMinStockOverride)
			r.Put("/parts/{partNumber}/auto-replenish", h.apiSetAutoReplenish)
			r.Post("/parts/{partNumber}/receive", h.apiReceive)
			r.Post("/parts/{partNumber}/consume", h.apiConsume)
			r.Post("/parts/{partNumber}/adjust", h.apiAdjust)
			r.Post("/parts/{partNumber}/transfer", h.apiTransfer)

			// ── Scoring & planning ────────────────────────────────────────────
			r.Get("/parts/{partNumber}/score", h.apiScorePart)
			r.Post("/parts/{partNumber}/score/recalculate", h.apiRecalculateScore)
			r.Get("/parts/{partNumber}/min-stock", h.apiRecommendMinStock)
			r.Post("/parts/{partNumber}/min-stock/apply", h.apiApplyMinStock)
			r.Get("/parts/{partNumber}/pricing", h.apiPricingForPart)
			r.Post("/jobs/recalculate", h.apiRecalculate)

			// ── Cross-reference groups ────────────────────────────────────────
			r.Get("/groups", h.apiListGroups)
			r.Post("/groups", h.apiCreateGroup)
			r.Get("/groups/{id}", h.apiGetGroup)
			r.Put("/groups/{id}", h.apiUpdateGroup)
			r.Post("/groups/{id}/members", h.apiAddGroupMember)
			r.Delete("/groups/{id}/members/{partNumber}", h.apiRemoveGroupMember)

			// ── Suppliers ─────────────────────────────────────────────────────
			r.Get("/suppliers", h.apiListSuppliers)
			r.Post("/suppliers", h.apiCreateSupplier)
			r.Put("/suppliers/{code}/prices/{partNumber}", h.apiSetPrice)
			r.Delete("/suppliers/{code}/prices/{partNumber}", h.apiDeactivatePrice)

			// ── Purchase orders & shipments ───────────────────────────────────
			r.Get("/purchase-orders", h.apiListPOs)
			r.Post("/purchase-orders", h.apiCreatePO)
			r.Post("/purchase-orders/draft-from-alerts", h.apiDraftFromAlerts)
			r.Get("/purchase-orders/{id}", h.apiGetPO)
			r.Post("/purchase-orders/{id}/lines", h.apiAddPOLine)
			r.Post("/purchase-orders/{id}/submit", h.poAction(svc.SubmitPO))
			r.Post("/purchase-orders/{id}/order", h.poAction(svc.MarkPOOrdered))
			r.Post("/purchase-orders/{id}/ship", h.apiMarkPOShipped)
			r.Put("/purchase-orders/{id}/tracking", h.apiSetPOTracking)
			r.Post("/purchase-orders/{id}/receive", h.apiReceivePO)
			r.Post("/purchase-orders/{id}/cancel", h.poAction(svc.CancelPO))

			r.Post("/shipments", h.apiCreateShipment)
			r.Get("/shipments/{id}", h.apiGetShipment)
			r.Put("/shipments/{id}/status", h.apiUpdateShipmentStatus)

			// ── Cores ─────────────────────────────────────────────────────────
			r.Post("/po-lines/{id}/core-return", h.apiMarkCoreReturned)
			r.Get("/cores/overdue", h.apiOverdueCores)
			r.Get("/cores/overdue/export", h.apiExportOverdueCores)

			// ── Alerts, locations, reports ────────────────────────────────────
			r.Get("/alerts", h.apiScanAlerts)
			r.Get("/alerts/export", h.apiExportAlerts)

			r.Get("/locations", h.apiListLocations)
			r.Post("/locations", h.apiCreateLocation)
			r.Get("/locations/{id}/path", h.apiLocationPath)

			r.Get("/reports/valuation", h.apiValuation)
			r.Get("/reports/valuation/export", h.apiExportValuation)
			r.Get("/reports/usage", h.apiUsageCost)
		})
	})

	h.router = r
	return r
}

// health reports liveness only; it does not touch the database.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

// decodeJSON decodes the request body into v and returns false + writes an appropriate
// error response on failure. Returns HTTP 413 when the body exceeds the size limit set
// by RequestBodyLimit middleware; HTTP 400 for all other decode errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, r, "request body too large", "REQUEST_TOO_LARGE", http.StatusRequestEntityTooLarge)
			return false
		}
		writeError(w, r, "invalid JSON body: "+err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return false
	}
	return true
}

// intParam parses a numeric URL parameter, writing a 400 on failure.
func intParam(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	n, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil || n <= 0 {
		writeError(w, r, "invalid "+name, "BAD_REQUEST", http.StatusBadRequest)
		return 0, false
	}
	return n, true
}

func partNumber(r *http.Request) string {
	return chi.URLParam(r, "partNumber")
}
