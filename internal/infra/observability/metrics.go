package observability

import (
	"time"

	"github.com/boddenberg/txsim-bench-go/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the generator.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	stageDuration   *prometheus.HistogramVec
	transactions    prometheus.Counter
	fraudLabeled    *prometheus.CounterVec
	datasets        *prometheus.CounterVec
	graphDuration   *prometheus.HistogramVec
	graphErrors     *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	registryHits    *prometheus.CounterVec
	registryMisses  *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		stageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "txsim_stage_duration_seconds",
				Help:    "Duration of generation pipeline stages.",
				Buckets: []float64{.001, .01, .1, .5, 1, 5, 15, 60, 300},
			},
			[]string{"stage"},
		),
		transactions: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "txsim_transactions_generated_total",
				Help: "Total transactions written to assembled tables.",
			},
		),
		fraudLabeled: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "txsim_fraud_labeled_total",
				Help: "Total transactions whose final label is each fraud scenario.",
			},
			[]string{"scenario"},
		),
		datasets: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "txsim_datasets_total",
				Help: "Total dataset generations by outcome.",
			},
			[]string{"status"},
		),
		graphDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "txsim_graph_statement_duration_seconds",
				Help:    "Client-side duration of graph store statements.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"statement"},
		),
		graphErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "txsim_graph_errors_total",
				Help: "Total failed graph store statements.",
			},
			[]string{"statement"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "txsim_request_duration_seconds",
				Help:    "Duration of API operations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		registryHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "txsim_registry_hits_total",
				Help: "Dataset registry lookups that found an entry.",
			},
			[]string{"registry"},
		),
		registryMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "txsim_registry_misses_total",
				Help: "Dataset registry lookups that found nothing.",
			},
			[]string{"registry"},
		),
	}
}

// RecordStage records the duration of a pipeline stage.
func (m *Metrics) RecordStage(stage string, d time.Duration) {
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// RecordDataset records a finished generation and its fraud labels.
func (m *Metrics) RecordDataset(ds *domain.Dataset) {
	m.datasets.WithLabelValues("success").Inc()
	m.transactions.Add(float64(len(ds.Transactions)))
	for _, s := range ds.Fraud.Scenarios {
		m.fraudLabeled.WithLabelValues(s.Scenario.String()).Add(float64(s.Final))
	}
}

// IncrDatasetFailure increments the failed generation counter.
func (m *Metrics) IncrDatasetFailure() {
	m.datasets.WithLabelValues("error").Inc()
}

// RecordGraphStatement records the duration of a graph store statement.
func (m *Metrics) RecordGraphStatement(statement string, d time.Duration) {
	m.graphDuration.WithLabelValues(statement).Observe(d.Seconds())
}

// IncrGraphError increments the graph error counter.
func (m *Metrics) IncrGraphError(statement string) {
	m.graphErrors.WithLabelValues(statement).Inc()
}

// RecordRequestDuration records the duration of an API operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrRegistryHit increments the registry hit counter.
func (m *Metrics) IncrRegistryHit(registry string) {
	m.registryHits.WithLabelValues(registry).Inc()
}

// IncrRegistryMiss increments the registry miss counter.
func (m *Metrics) IncrRegistryMiss(registry string) {
	m.registryMisses.WithLabelValues(registry).Inc()
}

// GetGeneratorSnapshot returns the generator counters for the
// GET /v1/metrics/generator endpoint.
func (m *Metrics) GetGeneratorSnapshot() *domain.GeneratorMetrics {
	// Prometheus counters expose cumulative values.
	succeeded := getCounterValue(m.datasets.WithLabelValues("success"))
	failed := getCounterValue(m.datasets.WithLabelValues("error"))
	transactions := getCounterValue(m.transactions)

	byScenario := make(map[string]int64, len(domain.Scenarios))
	frauds := float64(0)
	for _, s := range domain.Scenarios {
		v := getCounterValue(m.fraudLabeled.WithLabelValues(s.String()))
		byScenario[s.String()] = int64(v)
		frauds += v
	}

	fraudRate := float64(0)
	if transactions > 0 {
		fraudRate = frauds / transactions
	}

	return &domain.GeneratorMetrics{
		DatasetsGenerated:     int64(succeeded),
		DatasetsFailed:        int64(failed),
		TransactionsGenerated: int64(transactions),
		FraudsByScenario:      byScenario,
		FraudRate:             fraudRate,
	}
}

// getCounterValue extracts the current float64 value from a counter.
func getCounterValue(c prometheus.Counter) float64 {
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
