package monitoring

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "extsync"

// Metrics holds all Prometheus metrics. A nil *Metrics is valid and records
// nothing, which keeps tests and the CLI free of metric plumbing.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP API metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Registry client metrics
	RegistryCalls    *prometheus.CounterVec
	RegistryDuration *prometheus.HistogramVec

	// Catalog metrics
	Syncs          *prometheus.CounterVec
	SyncDuration   prometheus.Histogram
	CatalogEntries prometheus.Gauge
	Outdated       prometheus.Gauge
	RefreshDropped prometheus.Counter

	// Install/uninstall metrics
	Operations        *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	StagedBytes       prometheus.Counter

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec

	startTime time.Time
	snapshot  Snapshot
	mu        sync.RWMutex
}

// Snapshot holds current metric values for the JSON health endpoint.
type Snapshot struct {
	Syncs           int64   `json:"syncs"`
	RefreshDropped  int64   `json:"refresh_dropped"`
	Installs        int64   `json:"installs"`
	InstallFailures int64   `json:"install_failures"`
	Outdated        int64   `json:"outdated"`
	CatalogEntries  int64   `json:"catalog_entries"`
	UptimeSeconds   float64 `json:"uptime_seconds"`
}

// NewMetrics creates a metrics collector backed by its own registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP API requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP API request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),

		RegistryCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "registry_calls_total",
				Help:      "Total number of registry API calls",
			},
			[]string{"host", "op", "result"},
		),
		RegistryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "registry_call_duration_seconds",
				Help:      "Registry API call duration in seconds",
				Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"op"},
		),

		Syncs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "catalog_syncs_total",
				Help:      "Total number of catalog rebuilds",
			},
			[]string{"result"},
		),
		SyncDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "catalog_sync_duration_seconds",
				Help:      "Catalog rebuild duration in seconds",
				Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
		),
		CatalogEntries: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "catalog_entries",
				Help:      "Number of entries in the current catalog",
			},
		),
		Outdated: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "catalog_outdated_entries",
				Help:      "Number of catalog entries with a newer version available",
			},
		),
		RefreshDropped: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "refresh_dropped_total",
				Help:      "Refresh requests dropped because one was already running",
			},
		),

		Operations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_total",
				Help:      "Install, uninstall and preview operations",
			},
			[]string{"action", "result", "trigger"},
		),
		OperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Install, uninstall and preview duration in seconds",
				Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"action"},
		),
		StagedBytes: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "staged_bytes_total",
				Help:      "Bytes written to staged artifact files",
			},
		),

		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "ws_connections",
				Help:      "Number of active WebSocket connections",
			},
		),
		WSMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ws_messages_total",
				Help:      "Total number of WebSocket messages",
			},
			[]string{"direction", "type"},
		),
	}

	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uptime_seconds",
			Help:      "Process uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordHTTPRequest records an HTTP API request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordRegistryCall records one registry API call.
func (m *Metrics) RecordRegistryCall(host, op, result string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RegistryCalls.WithLabelValues(host, op, result).Inc()
	m.RegistryDuration.WithLabelValues(op).Observe(duration.Seconds())
}

// RecordSync records a catalog rebuild outcome.
func (m *Metrics) RecordSync(result string, duration time.Duration, entries int) {
	if m == nil {
		return
	}
	m.Syncs.WithLabelValues(result).Inc()
	m.SyncDuration.Observe(duration.Seconds())
	m.CatalogEntries.Set(float64(entries))

	m.mu.Lock()
	m.snapshot.Syncs++
	m.snapshot.CatalogEntries = int64(entries)
	m.mu.Unlock()
}

// SetOutdated sets the outdated entry gauge that mirrors the badge.
func (m *Metrics) SetOutdated(count int) {
	if m == nil {
		return
	}
	m.Outdated.Set(float64(count))

	m.mu.Lock()
	m.snapshot.Outdated = int64(count)
	m.mu.Unlock()
}

// IncRefreshDropped counts a refresh collapsed into an in-flight one.
func (m *Metrics) IncRefreshDropped() {
	if m == nil {
		return
	}
	m.RefreshDropped.Inc()

	m.mu.Lock()
	m.snapshot.RefreshDropped++
	m.mu.Unlock()
}

// RecordOperation records an install, uninstall or preview outcome.
func (m *Metrics) RecordOperation(action, result, trigger string, duration time.Duration) {
	if m == nil {
		return
	}
	m.Operations.WithLabelValues(action, result, trigger).Inc()
	m.OperationDuration.WithLabelValues(action).Observe(duration.Seconds())

	if action != "install" {
		return
	}
	m.mu.Lock()
	m.snapshot.Installs++
	if result != "success" {
		m.snapshot.InstallFailures++
	}
	m.mu.Unlock()
}

// AddStagedBytes counts bytes written to staged files.
func (m *Metrics) AddStagedBytes(n int64) {
	if m == nil {
		return
	}
	m.StagedBytes.Add(float64(n))
}

// RecordWSMessage records a WebSocket message
func (m *Metrics) RecordWSMessage(direction, msgType string) {
	if m == nil {
		return
	}
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

// IncWSConnections increments WebSocket connections
func (m *Metrics) IncWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Inc()
}

// DecWSConnections decrements WebSocket connections
func (m *Metrics) DecWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Dec()
}

// Snapshot returns current values for the JSON API.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := m.snapshot
	s.UptimeSeconds = time.Since(m.startTime).Seconds()
	return s
}
