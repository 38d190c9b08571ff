package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "medfinder"

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	searchRequestsTotal *prometheus.CounterVec
	searchResults       *prometheus.HistogramVec
	chatRunsTotal       *prometheus.CounterVec
	chatToolCallsTotal  *prometheus.CounterVec
	chatBlocks          *prometheus.HistogramVec
	admissionRejected   *prometheus.CounterVec
	breakerOpen         *prometheus.GaugeVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	searchRequestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "requests_total",
			Help:      "Total successful searches by the provider that served them.",
		},
		[]string{"service", "source"},
	)
	searchResults := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "results",
			Help:      "Distribution of items per search page.",
			Buckets:   []float64{0, 1, 5, 10, 20, 50, 100},
		},
		[]string{"service", "source"},
	)
	chatRunsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "runs_total",
			Help:      "Total chat turns by outcome.",
		},
		[]string{"service", "status"},
	)
	chatToolCallsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "tool_calls_total",
			Help:      "Total tool calls executed by the assistant.",
		},
		[]string{"service", "tool"},
	)
	chatBlocks := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "blocks",
			Help:      "Distribution of response blocks per chat turn.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8},
		},
		[]string{"service"},
	)
	admissionRejected := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "admission",
			Name:      "rejected_total",
			Help:      "Total requests rejected by the admission gate.",
		},
		[]string{"service", "key"},
	)
	breakerOpen := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "resilience",
			Name:      "breaker_open",
			Help:      "1 while the circuit breaker of an operation is not closed.",
		},
		[]string{"operation"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		searchRequestsTotal,
		searchResults,
		chatRunsTotal,
		chatToolCallsTotal,
		chatBlocks,
		admissionRejected,
		breakerOpen,
	)

	return &HTTPServerMetrics{
		registry:            registry,
		requestTotal:        requestTotal,
		requestDuration:     requestDuration,
		requestInFlight:     requestInFlight,
		searchRequestsTotal: searchRequestsTotal,
		searchResults:       searchResults,
		chatRunsTotal:       chatRunsTotal,
		chatToolCallsTotal:  chatToolCallsTotal,
		chatBlocks:          chatBlocks,
		admissionRejected:   admissionRejected,
		breakerOpen:         breakerOpen,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// normalizePath keeps slugs out of label values.
func normalizePath(path string) string {
	switch {
	case path == "/medications/search":
		return path
	case strings.HasPrefix(path, "/medications/"):
		return "/medications/{slug}"
	default:
		return path
	}
}

func (m *HTTPServerMetrics) RecordSearch(service, source string, results int) {
	if source == "" {
		source = "unknown"
	}
	m.searchRequestsTotal.WithLabelValues(service, source).Inc()
	m.searchResults.WithLabelValues(service, source).Observe(float64(results))
}

func (m *HTTPServerMetrics) RecordChat(service, status string, tools []string, blocks int) {
	if status == "" {
		status = "unknown"
	}
	m.chatRunsTotal.WithLabelValues(service, status).Inc()
	for _, tool := range tools {
		m.chatToolCallsTotal.WithLabelValues(service, tool).Inc()
	}
	if status == "success" {
		m.chatBlocks.WithLabelValues(service).Observe(float64(blocks))
	}
}

func (m *HTTPServerMetrics) RecordAdmissionRejected(service, key string) {
	m.admissionRejected.WithLabelValues(service, key).Inc()
}

// ObserveBreakerState matches resilience.Config.OnBreakerStateChange.
func (m *HTTPServerMetrics) ObserveBreakerState(operation, _, to string) {
	value := 0.0
	if to != "closed" {
		value = 1
	}
	m.breakerOpen.WithLabelValues(operation).Set(value)
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}
