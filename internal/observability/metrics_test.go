package observability

import (
	"testing"
	"time"

	"github.com/danmuck/spacectl/internal/testutil/testlog"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	testlog.Start(t)

	RegisterMetrics()
	RegisterMetrics()

	RecordHTTPRequest("GET", "/health", 200, 12*time.Millisecond)
	RecordTravelTransition("DOCKED", "IN_ORBIT")
	ObserveGameCall("ship", "200", 30*time.Millisecond)
}

func TestReconcilesCountsByResult(t *testing.T) {
	testlog.Start(t)

	var m Reconciles
	before := testutil.ToFloat64(reconcileTotal.WithLabelValues("ship-test", "error"))
	m.ObserveReconcile("ship-test", "error", time.Millisecond)
	m.ObserveReconcileError("ship-test", "config_not_available")

	if got := testutil.ToFloat64(reconcileTotal.WithLabelValues("ship-test", "error")); got != before+1 {
		t.Fatalf("reconcile_total = %v, want %v", got, before+1)
	}
	if got := testutil.ToFloat64(reconcileErrors.WithLabelValues("ship-test", "config_not_available")); got < 1 {
		t.Fatalf("reconcile_errors_total not incremented: %v", got)
	}
}
