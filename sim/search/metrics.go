package search

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/inference-sim/pdsearch/sim"
)

// Metrics exposes search progress as Prometheus collectors. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	probes         *prometheus.CounterVec
	configurations *prometheus.CounterVec
	nonMonotone    *prometheus.CounterVec
	bisection      *prometheus.HistogramVec
	bestRate       *prometheus.GaugeVec
}

// NewMetrics creates the search collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		probes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pdsearch_oracle_probes_total",
			Help: "Feasibility oracle calls by outcome",
		}, []string{"backend", "outcome"}),
		configurations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pdsearch_configurations_total",
			Help: "Configurations searched by final status",
		}, []string{"backend", "status"}),
		nonMonotone: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pdsearch_non_monotone_total",
			Help: "Bisections whose low bound was rejected on re-probe",
		}, []string{"backend"}),
		bisection: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pdsearch_bisection_duration_seconds",
			Help:    "Wall time of one configuration's bisection",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
		}, []string{"backend"}),
		bestRate: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pdsearch_best_per_gpu_rate",
			Help: "Best per-GPU rate found by the last run",
		}, []string{"backend"}),
	}
	for _, c := range []prometheus.Collector{m.probes, m.configurations, m.nonMonotone, m.bisection, m.bestRate} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observeProbe(backend sim.Backend, feasible bool, err error) {
	if m == nil {
		return
	}
	outcome := "infeasible"
	switch {
	case err != nil:
		outcome = "error"
	case feasible:
		outcome = "feasible"
	}
	m.probes.WithLabelValues(string(backend), outcome).Inc()
}

func (m *Metrics) observeBisection(backend sim.Backend, status Status, d time.Duration) {
	if m == nil {
		return
	}
	m.configurations.WithLabelValues(string(backend), status.String()).Inc()
	if status != StatusSkipped {
		m.bisection.WithLabelValues(string(backend)).Observe(d.Seconds())
	}
}

func (m *Metrics) observeNonMonotone(backend sim.Backend) {
	if m == nil {
		return
	}
	m.nonMonotone.WithLabelValues(string(backend)).Inc()
}

func (m *Metrics) setBest(backend sim.Backend, rate float64) {
	if m == nil {
		return
	}
	m.bestRate.WithLabelValues(string(backend)).Set(rate)
}
