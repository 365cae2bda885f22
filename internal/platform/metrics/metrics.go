package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics agrupa los contadores del servicio.
// Se registran en un Registerer propio para que tests y router no choquen con el default.
type Metrics struct {
	GrantsIssued   prometheus.Counter
	IssueRetries   prometheus.Counter
	ScanOutcomes   *prometheus.CounterVec
	GrantsRevoked  prometheus.Counter
	EMRCalls       *prometheus.CounterVec
	EMRCallLatency *prometheus.HistogramVec
}

func New(reg prometheus.Registerer, namespace string) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		GrantsIssued: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "grants",
			Name:      "issued_total",
			Help:      "Total number of access grants issued",
		}),
		IssueRetries: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "grants",
			Name:      "token_collisions_total",
			Help:      "Token collisions retried during issuance",
		}),
		ScanOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "grants",
			Name:      "scans_total",
			Help:      "Scan attempts by outcome",
		}, []string{"outcome"}),
		GrantsRevoked: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "grants",
			Name:      "revoked_total",
			Help:      "Revocation calls that succeeded (idempotent calls included)",
		}),
		EMRCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "emr",
			Name:      "calls_total",
			Help:      "External EMR calls by operation and outcome",
		}, []string{"op", "outcome"}),
		EMRCallLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "emr",
			Name:      "call_duration_seconds",
			Help:      "Duration of external EMR calls",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"op"}),
	}
}

// NewNop crea métricas sobre un registry descartable.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry(), "clinical_access")
}
