package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"parts-engine/internal/core"
)

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

// writeError writes a structured JSON error response.
func writeError(w http.ResponseWriter, r *http.Request, message, code string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := errorResponse{
		Error:     message,
		Code:      code,
		RequestID: requestIDFromContext(r.Context()),
	}
	_ = json.NewEncoder(w).Encode(resp)
}

// writeJSON writes a JSON response with status 200.
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeCreated(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(v)
}

// domainErrors maps engine sentinels to HTTP status and error code. Order
// matters only for readability; the sentinels are disjoint.
var domainErrors = []struct {
	target error
	status int
	code   string
}{
	{core.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
	{core.ErrInsufficientStock, http.StatusConflict, "INSUFFICIENT_STOCK"},
	{core.ErrOverReceipt, http.StatusConflict, "OVER_RECEIPT"},
	{core.ErrInvalidTransition, http.StatusConflict, "INVALID_TRANSITION"},
	{core.ErrMembershipConflict, http.StatusConflict, "GROUP_MEMBERSHIP_CONFLICT"},
	{core.ErrOrderNotEditable, http.StatusConflict, "ORDER_NOT_EDITABLE"},
	{core.ErrCoreAlreadyReturned, http.StatusConflict, "CORE_ALREADY_RETURNED"},
	{core.ErrNegativeQuantity, http.StatusUnprocessableEntity, "INVALID_QUANTITY"},
	{core.ErrEmptyOrder, http.StatusUnprocessableEntity, "EMPTY_ORDER"},
	{core.ErrNoCore, http.StatusUnprocessableEntity, "NO_CORE"},
	{core.ErrMissingPricing, http.StatusUnprocessableEntity, "MISSING_PRICING"},
	{core.ErrInvalidInput, http.StatusUnprocessableEntity, "INVALID_INPUT"},
}

// writeServiceError translates a service error. Anything unrecognised is a 500
// and its message is logged rather than returned.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	for _, d := range domainErrors {
		if errors.Is(err, d.target) {
			writeError(w, r, err.Error(), d.code, d.status)
			return
		}
	}
	h.log.Error("request failed", zapRequestID(r), zap.Error(err))
	writeError(w, r, "internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
}
