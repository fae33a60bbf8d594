package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/labring/devbox-console/pkg/errors"
	"github.com/labring/devbox-console/pkg/host"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metrics owns a registry per server so several servers can coexist in tests
type metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	streamBytesServed   *prometheus.CounterVec
	streamReadsOutside  *prometheus.CounterVec
	commandsTotal       *prometheus.CounterVec
}

func newMetrics(h *host.Host) *metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	m := &metrics{
		registry: reg,
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		streamBytesServed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "devbox_stream_bytes_served_total",
				Help: "Bytes of target output returned by data reads",
			},
			[]string{"target"},
		),
		streamReadsOutside: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "devbox_stream_reads_outside_window_total",
				Help: "Data reads whose offset was discarded (truncated) or unknown (reset)",
			},
			[]string{"target", "reason"},
		),
		commandsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "devbox_commands_total",
				Help: "Commands sent to targets by result",
			},
			[]string{"target", "result"},
		),
	}

	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "devbox_targets_running",
			Help: "Number of managed targets currently running",
		},
		func() float64 { return float64(h.Running()) },
	)

	return m
}

// unmatchedPath labels requests that matched no route
const unmatchedPath = "unmatched"

// middleware records HTTP request metrics
func (m *metrics) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Skip metrics for WebSocket upgrade requests
		if r.Header.Get("Upgrade") == "websocket" {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		wrapped := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		// raw paths of unmatched requests would grow the label set without bound
		path := unmatchedPath
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			path = rctx.RoutePattern()
		}

		m.httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.statusCode)).Inc()
		m.httpRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRead implements servers.Observer
func (m *metrics) ObserveRead(target string, bytes int, truncated, reset bool) {
	m.streamBytesServed.WithLabelValues(target).Add(float64(bytes))
	if truncated {
		m.streamReadsOutside.WithLabelValues(target, "truncated").Inc()
	}
	if reset {
		m.streamReadsOutside.WithLabelValues(target, "reset").Inc()
	}
}

// ObserveExec implements servers.Observer
func (m *metrics) ObserveExec(target string, err error) {
	result := "ok"
	if err != nil {
		result = string(errors.AsAPIError(err).Type)
	}
	m.commandsTotal.WithLabelValues(target, result).Inc()
}
