package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Session metrics
	Sessions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hypertrader_sessions_total",
			Help: "Total number of agent requests by outcome",
		},
		[]string{"status", "error_kind"}, // status: completed|failed
	)

	SessionSteps = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hypertrader_session_steps",
			Help:    "Model round trips per request",
			Buckets: []float64{1, 2, 3, 4, 5, 6, 8, 10, 15, 20},
		},
		[]string{"status"},
	)

	// Model metrics
	ModelCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hypertrader_model_calls_total",
			Help: "Total number of model backend calls",
		},
		[]string{"provider", "model", "status"}, // status: success|error|timeout
	)

	ModelLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hypertrader_model_latency_seconds",
			Help:    "Model backend call latency in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"provider", "model"},
	)

	ModelTokens = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hypertrader_model_tokens_total",
			Help: "Tokens consumed by the model backend",
		},
		[]string{"provider", "model", "type"}, // type: prompt|completion
	)

	// Tool metrics
	ToolExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hypertrader_tool_executions_total",
			Help: "Total number of tool executions",
		},
		[]string{"tool", "status", "error_kind"},
	)

	ToolLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hypertrader_tool_latency_seconds",
			Help:    "Tool execution latency in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"tool"},
	)

	// Trading metrics
	Orders = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hypertrader_orders_total",
			Help: "Orders by mode and outcome",
		},
		[]string{"mode", "status"}, // mode: real|simulated
	)

	RiskViolations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hypertrader_risk_violations_total",
			Help: "Trade intents rejected by the risk bounds check",
		},
		[]string{"field"},
	)

	LockWait = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hypertrader_account_lock_wait_seconds",
			Help:    "Time spent waiting for the per-account order lock",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 15},
		},
	)

	// Exchange metrics
	ExchangeAPICalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hypertrader_exchange_api_calls_total",
			Help: "Total number of exchange API calls",
		},
		[]string{"exchange", "endpoint", "status"},
	)

	// Infrastructure metrics
	KafkaMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hypertrader_kafka_messages_total",
			Help: "Kafka messages published",
		},
		[]string{"topic", "status"},
	)
)

var initOnce sync.Once

// Init registers all metrics with the default registry. Safe to call more than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(Sessions)
		prometheus.MustRegister(SessionSteps)

		prometheus.MustRegister(ModelCalls)
		prometheus.MustRegister(ModelLatency)
		prometheus.MustRegister(ModelTokens)

		prometheus.MustRegister(ToolExecutions)
		prometheus.MustRegister(ToolLatency)

		prometheus.MustRegister(Orders)
		prometheus.MustRegister(RiskViolations)
		prometheus.MustRegister(LockWait)

		prometheus.MustRegister(ExchangeAPICalls)
		prometheus.MustRegister(KafkaMessages)
	})
}

// Handler returns the HTTP handler for the metrics endpoint
func Handler() http.Handler {
	return promhttp.Handler()
}

// NewServer creates the metrics HTTP server
func NewServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
