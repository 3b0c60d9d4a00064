package graph

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPrometheusMetrics_NilIsNoop(t *testing.T) {
	var pm *PrometheusMetrics
	pm.RecordStepLatency("w", "s", time.Millisecond, StatusSuccess)
	pm.IncrementSuspends("w", "s")
	pm.IncrementFaults("w", CodeStoreError)
	pm.IncrementTurns("w", OutcomeEnded)
	pm.IncrementRetries("w", "s", "fixed")
	pm.turnStarted()
	pm.turnFinished()
}

func TestPrometheusMetrics_DisableEnable(t *testing.T) {
	pm := NewPrometheusMetrics(prometheus.NewRegistry())

	pm.Disable()
	pm.IncrementRetries("listing", "retry", "fixed")
	if v := testutil.ToFloat64(pm.retries.WithLabelValues("listing", "retry", "fixed")); v != 0 {
		t.Errorf("recorded while disabled: %v", v)
	}

	pm.Enable()
	pm.IncrementRetries("listing", "retry", "fixed")
	pm.IncrementRetries("listing", "retry", "fixed")
	if v := testutil.ToFloat64(pm.retries.WithLabelValues("listing", "retry", "fixed")); v != 2 {
		t.Errorf("retries_total = %v, want 2", v)
	}
}

func TestPrometheusMetrics_ResetZeroesActiveTurns(t *testing.T) {
	pm := NewPrometheusMetrics(prometheus.NewRegistry())
	pm.turnStarted()
	pm.turnStarted()
	if v := testutil.ToFloat64(pm.activeTurns); v != 2 {
		t.Fatalf("active_turns = %v", v)
	}
	pm.Reset()
	if v := testutil.ToFloat64(pm.activeTurns); v != 0 {
		t.Errorf("active_turns after Reset = %v", v)
	}
}
