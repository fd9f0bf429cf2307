package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Tool layer metrics
	toolRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "or_gateway_tool_requests_total",
		Help: "Total number of tool requests handled",
	}, []string{"tool", "status"})

	toolRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "or_gateway_tool_request_duration_seconds",
		Help:    "Duration of tool request handling",
		Buckets: prometheus.DefBuckets,
	}, []string{"tool"})

	// Provider metrics
	providerRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "or_gateway_provider_requests_total",
		Help: "Total number of upstream provider requests",
	}, []string{"endpoint", "status"})

	providerRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "or_gateway_provider_request_duration_seconds",
		Help:    "Duration of upstream provider requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})

	// Catalog cache metrics
	catalogHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "or_gateway_catalog_hits_total",
		Help: "Total number of catalog cache hits",
	})

	catalogMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "or_gateway_catalog_misses_total",
		Help: "Total number of catalog cache misses",
	})

	// Rate limit metrics
	rateLimitRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "or_gateway_rate_limit_rejections_total",
		Help: "Total number of requests rejected by the caller rate limiter",
	}, []string{"caller_id"})

	// Conversation metrics
	conversationOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "or_gateway_conversation_operations_total",
		Help: "Total number of conversation store operations",
	}, []string{"operation", "status"})

	activeConversations = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "or_gateway_active_conversations",
		Help: "Number of stored conversations",
	})
)

// Metrics provides methods to record metrics
type Metrics struct{}

// NewMetrics creates a new metrics instance
func NewMetrics() *Metrics {
	return &Metrics{}
}

// RecordToolRequest records a handled tool request
func (m *Metrics) RecordToolRequest(tool, status string, duration time.Duration) {
	toolRequests.WithLabelValues(tool, status).Inc()
	toolRequestDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

// RecordProviderRequest records an upstream provider request
func (m *Metrics) RecordProviderRequest(endpoint, status string, duration time.Duration) {
	providerRequests.WithLabelValues(endpoint, status).Inc()
	providerRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordCatalogHit records a catalog cache hit
func (m *Metrics) RecordCatalogHit() {
	catalogHits.Inc()
}

// RecordCatalogMiss records a catalog cache miss
func (m *Metrics) RecordCatalogMiss() {
	catalogMisses.Inc()
}

// RecordRateLimitRejection records a caller rejected by the limiter
func (m *Metrics) RecordRateLimitRejection(callerID string) {
	rateLimitRejections.WithLabelValues(callerID).Inc()
}

// RecordConversationOperation records a conversation store operation
func (m *Metrics) RecordConversationOperation(operation, status string) {
	conversationOperations.WithLabelValues(operation, status).Inc()
}

// SetActiveConversations sets the stored conversation count
func (m *Metrics) SetActiveConversations(count float64) {
	activeConversations.Set(count)
}

// StartMetricsServer starts the metrics HTTP server
func StartMetricsServer(port int, path string) error {
	router := mux.NewRouter()
	router.Handle(path, promhttp.Handler())

	// Health check endpoint
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	addr := fmt.Sprintf(":%d", port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return server.ListenAndServe()
}
