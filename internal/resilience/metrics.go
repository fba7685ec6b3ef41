package resilience

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects resilience-layer observability, with each layer's
// counters and gauges keyed by service name so per-service dashboards and
// alerts can be built without cross-service aggregation.
type Metrics struct {
	RetryAttemptsTotal   *prometheus.CounterVec
	CircuitStateGauge    *prometheus.GaugeVec
	CircuitTripsTotal    *prometheus.CounterVec
	BulkheadActiveGauge  *prometheus.GaugeVec
	BulkheadRejectsTotal *prometheus.CounterVec
	RateLimitRejectsTotal *prometheus.CounterVec
	RateLimitClampedTotal *prometheus.CounterVec
	TimeoutsTotal        *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(prometheus.DefaultRegisterer)
}

func NewMetricsWithRegistry(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		RetryAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "resilience_retry_attempts_total", Help: "Retry attempts by service and outcome."},
			[]string{"service", "outcome"},
		),
		CircuitStateGauge: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: "resilience_circuit_state", Help: "Circuit breaker state (0=closed,1=half-open,2=open) by service."},
			[]string{"service"},
		),
		CircuitTripsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "resilience_circuit_trips_total", Help: "Circuit breaker trips to open by service."},
			[]string{"service"},
		),
		BulkheadActiveGauge: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: "resilience_bulkhead_active", Help: "Active bulkhead permits by service."},
			[]string{"service"},
		),
		BulkheadRejectsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "resilience_bulkhead_rejects_total", Help: "Bulkhead acquire timeouts by service."},
			[]string{"service"},
		),
		RateLimitRejectsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "resilience_ratelimit_rejects_total", Help: "Rate limiter rejections by service and algorithm."},
			[]string{"service", "algorithm"},
		),
		RateLimitClampedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "resilience_ratelimit_clamped_total", Help: "Rate limiter parameters clamped into their safe range."},
			[]string{"parameter"},
		),
		TimeoutsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "resilience_timeouts_total", Help: "Operations that exceeded their deadline, by service."},
			[]string{"service"},
		),
	}

	for _, c := range []prometheus.Collector{
		m.RetryAttemptsTotal, m.CircuitStateGauge, m.CircuitTripsTotal,
		m.BulkheadActiveGauge, m.BulkheadRejectsTotal, m.RateLimitRejectsTotal,
		m.RateLimitClampedTotal, m.TimeoutsTotal,
	} {
		if err := registerer.Register(c); err != nil {
			if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
				_ = are
				continue
			}
		}
	}
	return m
}

// ClampObserverFor returns a ClampObserver that both records the clamp in
// RateLimitClampedTotal and forwards to logFn (typically
// (*logging.Logger).LogClamped) for structured logging.
func (m *Metrics) ClampObserverFor(logFn func(parameter string, requested, applied float64)) ClampObserver {
	return func(parameter string, requested, applied float64) {
		m.RateLimitClampedTotal.WithLabelValues(parameter).Inc()
		if logFn != nil {
			logFn(parameter, requested, applied)
		}
	}
}
