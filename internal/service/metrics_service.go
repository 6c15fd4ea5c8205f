package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the lifecycle
// core and the HTTP surface.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	transitions     *prometheus.CounterVec
	events          *prometheus.CounterVec
	droppedEvents   prometheus.Counter
	linkageRefresh  *prometheus.CounterVec
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inspection_transitions_total",
		Help: "Lifecycle transition attempts by action and outcome",
	}, []string{"action", "outcome"})

	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inspection_events_total",
		Help: "Inspection events published to the notification hub",
	}, []string{"kind"})

	droppedEvents := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "inspection_events_dropped_total",
		Help: "Events dropped because a subscriber could not keep up",
	})

	linkageRefresh := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inspection_linkage_refresh_total",
		Help: "Background linkage staleness refreshes by outcome",
	}, []string{"outcome"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, transitions, events, droppedEvents, linkageRefresh, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:        registry,
		handler:         handler,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		transitions:     transitions,
		events:          events,
		droppedEvents:   droppedEvents,
		linkageRefresh:  linkageRefresh,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordTransition counts a lifecycle transition attempt. Outcome is
// "ok" or the error code of the failure.
func (m *MetricsService) RecordTransition(action Action, outcome string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(string(action), outcome).Inc()
}

// RecordEvent counts a published notification.
func (m *MetricsService) RecordEvent(kind string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(kind).Inc()
}

// RecordDroppedEvent counts an event dropped on a slow subscriber.
func (m *MetricsService) RecordDroppedEvent() {
	if m == nil {
		return
	}
	m.droppedEvents.Inc()
}

// RecordLinkageRefresh counts a background staleness refresh.
func (m *MetricsService) RecordLinkageRefresh(outcome string) {
	if m == nil {
		return
	}
	m.linkageRefresh.WithLabelValues(outcome).Inc()
}
