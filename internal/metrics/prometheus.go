package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Worker metrics
	WorkerExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradegate_worker_executions_total",
			Help: "Total number of worker executions",
		},
		[]string{"worker", "status"},
	)

	WorkerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tradegate_worker_duration_seconds",
			Help:    "Worker execution duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"worker"},
	)

	WorkerLastRun = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tradegate_worker_last_run_timestamp",
			Help: "Unix timestamp of last worker run",
		},
		[]string{"worker"},
	)

	// Pricing metrics
	IVSolverIterations = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tradegate_iv_solver_iterations",
			Help:    "Newton-Raphson iterations used per implied volatility solve",
			Buckets: []float64{1, 2, 3, 5, 8, 13, 21, 50, 100},
		},
	)

	// Regime metrics
	RegimeVIXPercentile = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tradegate_regime_vix_percentile",
			Help: "VIX percentile within its trailing year at last classification",
		},
	)

	RegimeAvgCorrelation = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tradegate_regime_avg_correlation",
			Help: "Average pairwise sector correlation at last classification",
		},
	)

	RegimeState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tradegate_regime_state",
			Help: "Current regime labels (1 for the active label)",
		},
		[]string{"dimension", "label"},
	)

	SubSignalFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradegate_regime_signal_failures_total",
			Help: "Regime sub-signals that fell back to their default",
		},
		[]string{"signal"},
	)

	// Gate metrics
	GateDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradegate_gate_decisions_total",
			Help: "Gate evaluations by gate and outcome",
		},
		[]string{"gate", "outcome"},
	)

	// Ticket metrics
	TicketTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradegate_ticket_transitions_total",
			Help: "Ticket store operations by action and status",
		},
		[]string{"action", "status"},
	)

	// Market data metrics
	MarketDataRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradegate_market_data_requests_total",
			Help: "Market data lookups by method and cache outcome",
		},
		[]string{"method", "source"},
	)

	MarketDataLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tradegate_market_data_latency_seconds",
			Help:    "Upstream market data latency in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"method"},
	)

	// Database metrics
	DBQueries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradegate_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"database", "operation", "status"},
	)

	DBQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tradegate_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"database", "operation"},
	)
)

func init() {
	prometheus.MustRegister(WorkerExecutions)
	prometheus.MustRegister(WorkerDuration)
	prometheus.MustRegister(WorkerLastRun)

	prometheus.MustRegister(IVSolverIterations)

	prometheus.MustRegister(RegimeVIXPercentile)
	prometheus.MustRegister(RegimeAvgCorrelation)
	prometheus.MustRegister(RegimeState)
	prometheus.MustRegister(SubSignalFailures)

	prometheus.MustRegister(GateDecisions)
	prometheus.MustRegister(TicketTransitions)

	prometheus.MustRegister(MarketDataRequests)
	prometheus.MustRegister(MarketDataLatency)

	prometheus.MustRegister(DBQueries)
	prometheus.MustRegister(DBQueryDuration)
}

// Handler returns Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordWorkerExecution records a worker execution
func RecordWorkerExecution(worker string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	WorkerExecutions.WithLabelValues(worker, status).Inc()
	WorkerDuration.WithLabelValues(worker).Observe(duration.Seconds())
	WorkerLastRun.WithLabelValues(worker).SetToCurrentTime()
}

// RecordGate records one gate evaluation
func RecordGate(gate string, allowed bool) {
	outcome := "allowed"
	if !allowed {
		outcome = "blocked"
	}
	GateDecisions.WithLabelValues(gate, outcome).Inc()
}

// RecordTicketTransition records a propose, approve or reject call
func RecordTicketTransition(action string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	TicketTransitions.WithLabelValues(action, status).Inc()
}

// RecordMarketDataRequest records where a market data lookup was served from
func RecordMarketDataRequest(method, source string) {
	MarketDataRequests.WithLabelValues(method, source).Inc()
}

// RecordDBQuery records a database query
func RecordDBQuery(database, operation string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	DBQueries.WithLabelValues(database, operation, status).Inc()
	DBQueryDuration.WithLabelValues(database, operation).Observe(duration.Seconds())
}

// SetRegimeLabel marks label as the active value for dimension and clears the alternatives
func SetRegimeLabel(dimension, label string, all []string) {
	for _, l := range all {
		v := 0.0
		if l == label {
			v = 1
		}
		RegimeState.WithLabelValues(dimension, l).Set(v)
	}
}
