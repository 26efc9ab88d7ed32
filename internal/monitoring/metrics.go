package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/enginebridge/backend/internal/resilience"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Bridge metrics
	BridgeCalls        *prometheus.CounterVec
	BridgeCallDuration *prometheus.HistogramVec
	BridgeFallbacks    *prometheus.CounterVec
	BridgeConnected    prometheus.Gauge
	BridgeReconnects   prometheus.Counter
	BreakerState       prometheus.Gauge

	// Tool metrics
	ToolExecutions *prometheus.CounterVec

	// System metrics
	Uptime    prometheus.Gauge
	startTime time.Time

	// Snapshot for JSON API - track current values
	snapshot MetricsSnapshot

	mu sync.RWMutex
}

// MetricsSnapshot holds current metric values for JSON API
type MetricsSnapshot struct {
	TotalRequests    int64
	TotalErrors      int64
	BridgeCalls      int64
	BridgeFallbacks  int64
	TotalDuration    float64 // sum of all request durations
	RequestCount     int64   // count for averaging
	UptimeSeconds    float64
}

// NewMetrics creates a new metrics collector
func NewMetrics() *Metrics {
	m := &Metrics{
		startTime: time.Now(),

		// HTTP metrics
		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "enginebridge_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "enginebridge_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),

		// Bridge metrics
		BridgeCalls: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "enginebridge_bridge_calls_total",
				Help: "Total number of calls routed to the editor bridge",
			},
			[]string{"action", "outcome"},
		),
		BridgeCallDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "enginebridge_bridge_call_duration_seconds",
				Help:    "Bridge call duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"action"},
		),
		BridgeFallbacks: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "enginebridge_bridge_fallbacks_total",
				Help: "Total number of actions served by the fallback path",
			},
			[]string{"action"},
		),
		BridgeConnected: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "enginebridge_bridge_connected",
				Help: "Whether the editor bridge is connected (1) or not (0)",
			},
		),
		BridgeReconnects: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "enginebridge_bridge_reconnects_total",
				Help: "Total number of bridge reconnect attempts",
			},
		),
		BreakerState: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "enginebridge_breaker_state",
				Help: "Circuit breaker state (0 closed, 1 half-open, 2 open)",
			},
		),

		// Tool metrics
		ToolExecutions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "enginebridge_tool_executions_total",
				Help: "Total number of tool executions",
			},
			[]string{"service", "tool", "status"},
		),

		// System metrics
		Uptime: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "enginebridge_uptime_seconds",
				Help: "Server uptime in seconds",
			},
		),
	}

	// Start uptime updater
	go m.updateUptime()

	return m
}

// updateUptime continuously updates the uptime metric
func (m *Metrics) updateUptime() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for range ticker.C {
		m.Uptime.Set(time.Since(m.startTime).Seconds())
	}
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())

	// Update snapshot
	m.mu.Lock()
	m.snapshot.TotalRequests++
	m.snapshot.TotalDuration += duration.Seconds()
	m.snapshot.RequestCount++
	if len(status) > 0 && (status[0] == '4' || status[0] == '5') {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// CallCompleted records the outcome of a bridge call. Satisfies the
// executor's observer interface.
func (m *Metrics) CallCompleted(action, outcome string, duration time.Duration) {
	m.BridgeCalls.WithLabelValues(action, outcome).Inc()
	m.BridgeCallDuration.WithLabelValues(action).Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.BridgeCalls++
	m.mu.Unlock()
}

// FallbackInvoked records an action served by the fallback path.
func (m *Metrics) FallbackInvoked(action string) {
	m.BridgeFallbacks.WithLabelValues(action).Inc()

	m.mu.Lock()
	m.snapshot.BridgeFallbacks++
	m.mu.Unlock()
}

// RecordToolExecution records a tool execution
func (m *Metrics) RecordToolExecution(service, tool, status string) {
	m.ToolExecutions.WithLabelValues(service, tool, status).Inc()
}

// SetBridgeConnected sets the bridge connection gauge
func (m *Metrics) SetBridgeConnected(connected bool) {
	if connected {
		m.BridgeConnected.Set(1)
	} else {
		m.BridgeConnected.Set(0)
	}
}

// IncBridgeReconnects increments the reconnect attempt counter
func (m *Metrics) IncBridgeReconnects() {
	m.BridgeReconnects.Inc()
}

// SetBreakerState sets the circuit breaker state gauge
func (m *Metrics) SetBreakerState(state resilience.State) {
	m.BreakerState.Set(float64(state))
}

// Snapshot returns the current metric values for the JSON status API
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap := m.snapshot
	snap.UptimeSeconds = time.Since(m.startTime).Seconds()
	return snap
}
