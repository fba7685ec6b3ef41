// Package metrics exposes Prometheus collectors for the engine's workflow
// execution, action dispatch, credential, and resource pool subsystems, plus
// an HTTP handler and request-instrumentation middleware for cmd/engine's
// health/metrics server.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "flowengine",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "flowengine",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "flowengine",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		},
		[]string{"method", "path"},
	)

	workflowExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "flowengine",
			Subsystem: "workflow",
			Name:      "executions_total",
			Help:      "Total number of workflow executions, by completion outcome.",
		},
		[]string{"workflow_id", "outcome"},
	)

	workflowDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "flowengine",
			Subsystem: "workflow",
			Name:      "execution_duration_seconds",
			Help:      "Duration of workflow executions.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		},
		[]string{"workflow_id"},
	)

	workflowNodesSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "flowengine",
			Subsystem: "workflow",
			Name:      "nodes_skipped_total",
			Help:      "Total number of nodes skipped by SkipBranch disposition pruning.",
		},
		[]string{"workflow_id"},
	)

	actionInvocations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "flowengine",
			Subsystem: "action",
			Name:      "invocations_total",
			Help:      "Total number of action dispatches, by action key and outcome.",
		},
		[]string{"action_key", "outcome"},
	)

	actionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "flowengine",
			Subsystem: "action",
			Name:      "invocation_duration_seconds",
			Help:      "Duration of action dispatches.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
		},
		[]string{"action_key"},
	)

	sandboxDenials = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "flowengine",
			Subsystem: "sandbox",
			Name:      "capability_denials_total",
			Help:      "Total number of actions denied for lacking a required capability.",
		},
		[]string{"action_key"},
	)

	credentialCacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "flowengine",
			Subsystem: "credential",
			Name:      "token_cache_total",
			Help:      "Total token cache lookups, by hit/miss outcome.",
		},
		[]string{"outcome"},
	)

	credentialRotations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "flowengine",
			Subsystem: "credential",
			Name:      "rotations_total",
			Help:      "Total number of credential rotation checks, by outcome.",
		},
		[]string{"credential_id", "outcome"},
	)

	resourcePoolSize = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "flowengine",
			Subsystem: "resource",
			Name:      "pool_size",
			Help:      "Current number of instances held by a resource pool, by state.",
		},
		[]string{"provider_id", "state"},
	)

	resourceAcquireDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "flowengine",
			Subsystem: "resource",
			Name:      "acquire_duration_seconds",
			Help:      "Duration of resource pool acquire calls.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"provider_id"},
	)

	circuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "flowengine",
			Subsystem: "resilience",
			Name:      "circuit_breaker_state",
			Help:      "Current circuit breaker state (0=closed, 1=half-open, 2=open).",
		},
		[]string{"service"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		workflowExecutions,
		workflowDuration,
		workflowNodesSkipped,
		actionInvocations,
		actionDuration,
		sandboxDenials,
		credentialCacheHits,
		credentialRotations,
		resourcePoolSize,
		resourceAcquireDuration,
		circuitBreakerState,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler with HTTP metrics collection.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		path := canonicalPath(r.URL.Path)
		method := strings.ToUpper(r.Method)

		httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	})
}

// RecordWorkflowExecution records the outcome and duration of a completed
// workflow run. outcome is one of "completed", "failed", or "budget_exceeded".
func RecordWorkflowExecution(workflowID, outcome string, duration time.Duration) {
	workflowID = orUnknown(workflowID)
	outcome = orUnknown(outcome)
	workflowExecutions.WithLabelValues(workflowID, outcome).Inc()
	workflowDuration.WithLabelValues(workflowID).Observe(duration.Seconds())
}

// RecordNodesSkipped adds count to the number of nodes pruned by SkipBranch
// disposition for the given workflow.
func RecordNodesSkipped(workflowID string, count int) {
	if count <= 0 {
		return
	}
	workflowNodesSkipped.WithLabelValues(orUnknown(workflowID)).Add(float64(count))
}

// RecordActionInvocation records the outcome and duration of a single action
// dispatch. outcome is one of "success", "error", "denied".
func RecordActionInvocation(actionKey, outcome string, duration time.Duration) {
	actionKey = orUnknown(actionKey)
	actionInvocations.WithLabelValues(actionKey, orUnknown(outcome)).Inc()
	actionDuration.WithLabelValues(actionKey).Observe(duration.Seconds())
}

// RecordSandboxDenial records that an action was denied for lacking a
// required capability, before its handler ran.
func RecordSandboxDenial(actionKey string) {
	sandboxDenials.WithLabelValues(orUnknown(actionKey)).Inc()
}

// RecordCredentialCacheLookup records a token cache hit or miss.
func RecordCredentialCacheLookup(hit bool) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	credentialCacheHits.WithLabelValues(outcome).Inc()
}

// RecordCredentialRotation records the outcome of a credential rotation
// check. outcome is one of "rotated", "skipped", "failed".
func RecordCredentialRotation(credentialID, outcome string) {
	credentialRotations.WithLabelValues(orUnknown(credentialID), orUnknown(outcome)).Inc()
}

// SetResourcePoolSize reports the current idle/in-use counts for a
// provider's pool.
func SetResourcePoolSize(providerID string, idle, inUse int) {
	providerID = orUnknown(providerID)
	resourcePoolSize.WithLabelValues(providerID, "idle").Set(float64(idle))
	resourcePoolSize.WithLabelValues(providerID, "in_use").Set(float64(inUse))
}

// RecordResourceAcquire records how long a pool acquire call took.
func RecordResourceAcquire(providerID string, duration time.Duration) {
	resourceAcquireDuration.WithLabelValues(orUnknown(providerID)).Observe(duration.Seconds())
}

// SetCircuitBreakerState reports a service's current breaker state.
func SetCircuitBreakerState(service string, state int) {
	circuitBreakerState.WithLabelValues(orUnknown(service)).Set(float64(state))
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// canonicalPath collapses path parameters so high-cardinality IDs don't
// explode the requests_total label set.
func canonicalPath(raw string) string {
	if raw == "" || raw == "/" {
		return "/"
	}
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")
	if parts[0] != "workflows" && parts[0] != "executions" {
		return "/" + parts[0]
	}
	if len(parts) == 1 {
		return "/" + parts[0]
	}
	return "/" + parts[0] + "/:id"
}
