package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Run status label values
const (
	StatusSuccess = "success"
	StatusPartial = "partial" // forecast produced, evaluation skipped or failed
	StatusFailed  = "failed"
)

// Metrics holds the Prometheus collectors of the service.
// Each instance owns a private registry so tests can create as many as they need.
type Metrics struct {
	registry *prometheus.Registry

	PipelineRuns   *prometheus.CounterVec
	StageFailures  *prometheus.CounterVec
	StageDuration  *prometheus.HistogramVec
	ForecastPoints prometheus.Counter
	EvaluationMAPE prometheus.Gauge
	APIRequests    *prometheus.CounterVec
	APILatency     *prometheus.HistogramVec
	CacheLookups   *prometheus.CounterVec
	SchedulerRuns  *prometheus.CounterVec
}

// New creates and registers all metrics
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		PipelineRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "salescast_pipeline_runs_total",
				Help: "Forecast pipeline runs by final status",
			},
			[]string{"status"},
		),
		StageFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "salescast_stage_failures_total",
				Help: "Pipeline stage failures by stage",
			},
			[]string{"stage"},
		),
		StageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "salescast_stage_duration_seconds",
				Help:    "Pipeline stage latency",
				Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
			},
			[]string{"stage"},
		),
		ForecastPoints: factory.NewCounter(prometheus.CounterOpts{
			Name: "salescast_forecast_points_total",
			Help: "Forecast weeks produced",
		}),
		EvaluationMAPE: factory.NewGauge(prometheus.GaugeOpts{
			Name: "salescast_evaluation_mape_percent",
			Help: "MAPE of the most recent hold-out evaluation",
		}),
		APIRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "salescast_api_requests_total",
				Help: "Query API requests by route and status code",
			},
			[]string{"route", "code"},
		),
		APILatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "salescast_api_request_duration_seconds",
				Help:    "Query API latency by route",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		CacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "salescast_cache_lookups_total",
				Help: "Response cache lookups by tier and result",
			},
			[]string{"tier", "result"},
		),
		SchedulerRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "salescast_scheduler_business_runs_total",
				Help: "Scheduled per-business forecast runs by status",
			},
			[]string{"status"},
		),
	}
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
