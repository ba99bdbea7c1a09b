package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Authorization and account lifecycle metrics
	AuthzDecisionsTotal    *prometheus.CounterVec
	LifecycleOutcomesTotal *prometheus.CounterVec
	TokenEvictionFailures  prometheus.Counter
	TokensRevokedTotal     prometheus.Counter
	ExpiredTokensCleanedUp prometheus.Counter

	// Token cache metrics
	TokenCacheLookupsTotal *prometheus.CounterVec

	// Database metrics
	DBConnectionsOpen  prometheus.GaugeFunc
	DBConnectionsInUse prometheus.GaugeFunc

	// Business metrics
	APITokensActive prometheus.Gauge
}

// DBStatsFunc reports the open and in-use connection counts of a pool
type DBStatsFunc func() (open, inUse int)

// NewMetrics creates and registers all Prometheus metrics. dbStats may be nil.
func NewMetrics(registry *prometheus.Registry, dbStats DBStatsFunc) *Metrics {
	if dbStats == nil {
		dbStats = func() (int, int) { return 0, 0 }
	}

	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scribe_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scribe_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		HTTPResponseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scribe_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 6),
			},
			[]string{"method", "route"},
		),

		AuthzDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scribe_authz_decisions_total",
				Help: "Authorization decisions by resource, action and result",
			},
			[]string{"resource", "action", "result"},
		),
		LifecycleOutcomesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scribe_account_lifecycle_total",
				Help: "Account lifecycle operations by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		TokenEvictionFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "scribe_token_cache_eviction_failures_total",
				Help: "Revoked tokens that could not be evicted from the cache",
			},
		),
		TokensRevokedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "scribe_tokens_revoked_total",
				Help: "Total number of revoked access tokens",
			},
		),
		ExpiredTokensCleanedUp: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "scribe_expired_tokens_deleted_total",
				Help: "Expired access tokens deleted by the cleanup job",
			},
		),

		TokenCacheLookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scribe_token_cache_lookups_total",
				Help: "Token cache lookups by result",
			},
			[]string{"result"},
		),

		DBConnectionsOpen: prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "scribe_db_connections_open",
				Help: "Number of open database connections",
			},
			func() float64 { open, _ := dbStats(); return float64(open) },
		),
		DBConnectionsInUse: prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "scribe_db_connections_in_use",
				Help: "Number of database connections in use",
			},
			func() float64 { _, inUse := dbStats(); return float64(inUse) },
		),

		APITokensActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "scribe_api_tokens_active",
				Help: "Number of live access tokens",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPResponseSize,
		m.AuthzDecisionsTotal,
		m.LifecycleOutcomesTotal,
		m.TokenEvictionFailures,
		m.TokensRevokedTotal,
		m.ExpiredTokensCleanedUp,
		m.TokenCacheLookupsTotal,
		m.DBConnectionsOpen,
		m.DBConnectionsInUse,
		m.APITokensActive,
	)

	return m
}

// RecordAuthzDecision counts one authorization decision
func (m *Metrics) RecordAuthzDecision(resource, action string, allowed bool) {
	if m == nil {
		return
	}
	result := "deny"
	if allowed {
		result = "allow"
	}
	m.AuthzDecisionsTotal.WithLabelValues(resource, action, result).Inc()
}

// RecordLifecycleOutcome counts one account lifecycle operation
func (m *Metrics) RecordLifecycleOutcome(operation, outcome string) {
	if m == nil {
		return
	}
	m.LifecycleOutcomesTotal.WithLabelValues(operation, outcome).Inc()
}

// RecordTokensRevoked counts revoked tokens
func (m *Metrics) RecordTokensRevoked(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.TokensRevokedTotal.Add(float64(n))
}

// RecordEvictionFailure counts a failed post-commit cache eviction
func (m *Metrics) RecordEvictionFailure() {
	if m == nil {
		return
	}
	m.TokenEvictionFailures.Inc()
}

// RecordTokenCacheLookup counts one token cache lookup by result
func (m *Metrics) RecordTokenCacheLookup(result string) {
	if m == nil {
		return
	}
	m.TokenCacheLookupsTotal.WithLabelValues(result).Inc()
}

// RecordExpiredTokensDeleted counts tokens removed by the cleanup job
func (m *Metrics) RecordExpiredTokensDeleted(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.ExpiredTokensCleanedUp.Add(float64(n))
}

// SetActiveTokens sets the live token gauge
func (m *Metrics) SetActiveTokens(n int) {
	if m == nil {
		return
	}
	m.APITokensActive.Set(float64(n))
}

// responseWriter wraps http.ResponseWriter to capture status code and size
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

// routeTemplate labels requests by their mux route template so that ids do
// not explode label cardinality
func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics.
// Install it with mux.Router.Use so the matched route is known.
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rw, r)

			route := routeTemplate(r)
			status := strconv.Itoa(rw.statusCode)

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
			metrics.HTTPResponseSize.WithLabelValues(r.Method, route).Observe(float64(rw.bytesWritten))
		})
	}
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(mux *http.ServeMux, registry *prometheus.Registry) {
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
