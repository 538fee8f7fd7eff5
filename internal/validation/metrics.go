package validation

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/dusk-indust/stratigraph/internal/strata"
)

const (
	pathSingle = "single"
	pathNew    = "proposal"
)

var (
	validationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stratigraph_validations_total",
		Help: "Validations by entry point and outcome",
	}, []string{"path", "outcome"})

	validationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "stratigraph_validation_duration_seconds",
		Help:    "Validation latency by entry point",
		Buckets: []float64{0.0001, 0.001, 0.01, 0.1, 1, 5},
	}, []string{"path"})

	auditParadoxes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stratigraph_audit_paradoxes_total",
		Help: "Paradoxes reported by audits, by type",
	}, []string{"type"})

	commits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stratigraph_relation_writes_total",
		Help: "Relations committed or removed through the service",
	}, []string{"op"})

	batchItems = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stratigraph_batch_items_total",
		Help: "Relations validated by batch runs",
	})
)

func observe(path string, res strata.ValidationResult, start time.Time) {
	outcome := "ok"
	switch {
	case res.ParadoxType.Fatal():
		outcome = string(res.ParadoxType)
	case res.Truncated:
		outcome = "truncated"
	}
	validationsTotal.WithLabelValues(path, outcome).Inc()
	validationDuration.WithLabelValues(path).Observe(time.Since(start).Seconds())
}
