package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ============================================================
// Metrics
// ============================================================

type Metrics struct {
	Commits         *prometheus.CounterVec
	Plans           prometheus.Gauge
	RiskEvaluations prometheus.Counter
	Saves           *prometheus.CounterVec
	SaveDuration    prometheus.Histogram
}

// NewMetrics регистрирует метрики сервиса в reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Commits: f.NewCounterVec(prometheus.CounterOpts{
			Name: "planner_commits_total",
			Help: "Commit attempts by kind (commit, revert, import) and result",
		}, []string{"kind", "result"}),
		Plans: f.NewGauge(prometheus.GaugeOpts{
			Name: "planner_plans",
			Help: "Plans in the workspace",
		}),
		RiskEvaluations: f.NewCounter(prometheus.CounterOpts{
			Name: "planner_risk_evaluations_total",
			Help: "Risk engine evaluations over a whole plan",
		}),
		Saves: f.NewCounterVec(prometheus.CounterOpts{
			Name: "planner_persist_total",
			Help: "Snapshot saves by result",
		}, []string{"result"}),
		SaveDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "planner_persist_duration_seconds",
			Help:    "Duration of snapshot saves",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),
	}
}

func (m *Metrics) commit(kind string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.Commits.WithLabelValues(kind, result).Inc()
}
