// Package metrics declares the Prometheus collectors for mastery updates,
// content selection and state persistence. Collectors register with the
// default registry; cmd/competence exposes them with promhttp when a
// metrics address is configured.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EvidenceApplied counts evidence items applied, by direction and strength.
	EvidenceApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "competence",
		Name:      "evidence_applied_total",
		Help:      "Evidence items applied to a mastery vector",
	}, []string{"direction", "strength"})

	// EvidenceRejected counts evidence items rejected before update.
	EvidenceRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "competence",
		Name:      "evidence_rejected_total",
		Help:      "Evidence items rejected before update",
	}, []string{"reason"})

	// XiAdjustments counts qualitative xi adjustments by kind
	// ("raised", "capped", "unreachable").
	XiAdjustments = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "competence",
		Name:      "xi_adjustments_total",
		Help:      "Qualitative adjustments of the update factor",
	}, []string{"kind"})

	// ConsistencyPasses observes the number of restoration passes per update.
	ConsistencyPasses = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "competence",
		Name:      "consistency_passes",
		Help:      "Consistency restoration passes per update",
		Buckets:   []float64{1, 2, 3, 5, 8, 13, 21},
	})

	// Selections counts content selections by outcome ("selected", "exhausted").
	Selections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "competence",
		Name:      "selections_total",
		Help:      "Next-unit selections by outcome",
	}, []string{"outcome"})

	// StoreOperations counts state store calls by backend, operation and result.
	StoreOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "competence",
		Name:      "store_operations_total",
		Help:      "Learner state store operations",
	}, []string{"backend", "op", "result"})
)

// ObserveStore records one store call.
func ObserveStore(backend, op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	StoreOperations.WithLabelValues(backend, op, result).Inc()
}
