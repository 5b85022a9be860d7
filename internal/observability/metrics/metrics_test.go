package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPipelineMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPipelineMetrics(reg)

	m.ObserveRecord("processor-PE", OutcomeSuccess, 10*time.Millisecond)
	m.ObserveRecord("processor-PE", OutcomeSuccess, 20*time.Millisecond)
	m.ObserveRecord("processor-PE", OutcomeCritical, time.Millisecond)
	m.ObserveBatch("processor-PE", true)

	if got := testutil.ToFloat64(m.recordsTotal.WithLabelValues("processor-PE", OutcomeSuccess)); got != 2 {
		t.Fatalf("expected 2 successes, got %v", got)
	}
	if got := testutil.ToFloat64(m.recordsTotal.WithLabelValues("processor-PE", OutcomeCritical)); got != 1 {
		t.Fatalf("expected 1 critical, got %v", got)
	}
	if got := testutil.ToFloat64(m.batchesTotal.WithLabelValues("processor-PE", "failed")); got != 1 {
		t.Fatalf("expected 1 failed batch, got %v", got)
	}
	if got := testutil.CollectAndCount(m.recordDuration); got != 1 {
		t.Fatalf("expected 1 histogram series, got %d", got)
	}
}

func TestPipelineMetricsDefaultRegistry(t *testing.T) {
	m := NewPipelineMetrics(nil)
	m.ObserveBatch("completion", false)
}

func TestPipelineMetricsNilSafe(t *testing.T) {
	var m *PipelineMetrics
	m.ObserveRecord("source", OutcomeOperational, time.Second)
	m.ObserveBatch("source", false)
}
