package gateway

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the gateway's Prometheus instruments on a private
// registry so tests can create isolated instances.
type Metrics struct {
	registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	chatTurns       prometheus.Counter
	taskSubmissions *prometheus.CounterVec
	sessionDeletes  prometheus.Counter
	wsConnections   prometheus.Gauge
}

// NewMetrics creates the instrument set.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "parley",
			Subsystem: "gateway",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by method and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "status"}),
		chatTurns: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "parley",
			Name:      "chat_turns_total",
			Help:      "Completed chat turns, including failed ones.",
		}),
		taskSubmissions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "parley",
			Name:      "task_submissions_total",
			Help:      "Image-generation task submissions by action.",
		}, []string{"action"}),
		sessionDeletes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "parley",
			Name:      "session_deletes_total",
			Help:      "Session deletions requested through the API.",
		}),
		wsConnections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "parley",
			Name:      "websocket_connections",
			Help:      "Open chat websocket connections.",
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// middleware records request latency per method and status class.
func (m *Metrics) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		m.requestDuration.WithLabelValues(r.Method, strconv.Itoa(ww.Status())).
			Observe(time.Since(start).Seconds())
	})
}
