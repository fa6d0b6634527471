package metrics

import (
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"parts-engine/internal/core"
)

func TestLedgerOperationOutcomes(t *testing.T) {
	m := New()

	m.LedgerOperation("consume", nil)
	m.LedgerOperation("consume", &core.InsufficientStockError{PartNumber: "WPW10321304", Requested: 3, Available: 1})
	m.LedgerOperation("consume", fmt.Errorf("wrapped: %w", core.ErrNotFound))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.LedgerOperations.WithLabelValues("consume", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LedgerOperations.WithLabelValues("consume", "insufficient_stock")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LedgerOperations.WithLabelValues("consume", "not_found")))
}

func TestAlertsEmittedResetsEveryUrgency(t *testing.T) {
	m := New()

	m.AlertsEmitted([]core.Alert{
		{PartNumber: "A", Urgency: core.UrgencyCritical},
		{PartNumber: "B", Urgency: core.UrgencyCritical},
		{PartNumber: "C", Urgency: core.UrgencyLow},
	})
	assert.Equal(t, 2.0, testutil.ToFloat64(m.AlertsByUrgency.WithLabelValues("CRITICAL")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AlertsByUrgency.WithLabelValues("LOW")))

	m.AlertsEmitted(nil)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.AlertsByUrgency.WithLabelValues("CRITICAL")))
}

func TestBatchCompletedCountsFailures(t *testing.T) {
	m := New()
	m.BatchCompleted("stocking_score", core.BatchResult{
		Processed: 3,
		Updated:   2,
		Failures:  []core.PartFailure{{PartNumber: "X", Err: "boom"}},
	})
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BatchRuns.WithLabelValues("stocking_score")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BatchFailures.WithLabelValues("stocking_score")))
}
