package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Record outcomes.
const (
	OutcomeSuccess     = "success"
	OutcomeOperational = "operational"
	OutcomeCritical    = "critical"
)

// PipelineMetrics exposes counters/histograms for batch processing.
type PipelineMetrics struct {
	recordsTotal   *prometheus.CounterVec
	batchesTotal   *prometheus.CounterVec
	recordDuration *prometheus.HistogramVec
}

func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	m := &PipelineMetrics{
		recordsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "appointments",
			Subsystem: "pipeline",
			Name:      "records_total",
			Help:      "Total records processed by outcome",
		}, []string{"source", "outcome"}),
		batchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "appointments",
			Subsystem: "pipeline",
			Name:      "batches_total",
			Help:      "Total batches processed by status",
		}, []string{"source", "status"}),
		recordDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "appointments",
			Subsystem: "pipeline",
			Name:      "record_duration_seconds",
			Help:      "Time spent handling a single record",
			Buckets:   prometheus.DefBuckets,
		}, []string{"source"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.recordsTotal, m.batchesTotal, m.recordDuration)
	return m
}

func (m *PipelineMetrics) ObserveRecord(source, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.recordsTotal.WithLabelValues(source, outcome).Inc()
	m.recordDuration.WithLabelValues(source).Observe(elapsed.Seconds())
}

// ObserveBatch counts a finished batch; status is "ok" or "failed".
func (m *PipelineMetrics) ObserveBatch(source string, failed bool) {
	if m == nil {
		return
	}
	status := "ok"
	if failed {
		status = "failed"
	}
	m.batchesTotal.WithLabelValues(source, status).Inc()
}
