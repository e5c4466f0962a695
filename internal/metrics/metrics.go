// Package metrics exposes workspace activity as Prometheus metrics.
//
// A Metrics value implements core.Observer, so the service reports task
// applications, file loads and the live session count without knowing about
// Prometheus. HTTP traffic is counted by the Middleware, labelled with the
// chi route pattern rather than the raw path to keep label cardinality low.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tidycsv"

// Metrics holds the collectors registered for one server.
type Metrics struct {
	registry *prometheus.Registry

	taskApplications *prometheus.CounterVec
	taskDuration     *prometheus.HistogramVec
	filesLoaded      *prometheus.CounterVec
	fileRows         prometheus.Histogram
	sessionsActive   prometheus.Gauge

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// New creates the collectors on a private registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		taskApplications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_applications_total",
			Help:      "Task applications by task and outcome.",
		}, []string{"task", "status"}),
		taskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "Time spent running a task.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}, []string{"task"}),
		filesLoaded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_loaded_total",
			Help:      "Uploaded or fetched files by source and outcome.",
		}, []string{"source", "status"}),
		fileRows: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "file_rows",
			Help:      "Data rows per loaded file.",
			Buckets:   prometheus.ExponentialBuckets(10, 10, 6),
		}),
		sessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Sessions currently held in memory.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.taskApplications,
		m.taskDuration,
		m.filesLoaded,
		m.fileRows,
		m.sessionsActive,
		m.httpRequests,
		m.httpDuration,
	)
	return m
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RegisterGaugeFunc exposes a value sampled at scrape time, such as the
// number of uploads in flight.
func (m *Metrics) RegisterGaugeFunc(name, help string, fn func() float64) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, fn))
}

// TaskApplied implements core.Observer.
func (m *Metrics) TaskApplied(task string, d time.Duration, err error) {
	m.taskApplications.WithLabelValues(task, status(err)).Inc()
	m.taskDuration.WithLabelValues(task).Observe(d.Seconds())
}

// FileLoaded implements core.Observer.
func (m *Metrics) FileLoaded(source string, rows int, err error) {
	m.filesLoaded.WithLabelValues(source, status(err)).Inc()
	if err == nil {
		m.fileRows.Observe(float64(rows))
	}
}

// SessionsActive implements core.Observer.
func (m *Metrics) SessionsActive(n int) {
	m.sessionsActive.Set(float64(n))
}

// Middleware counts requests and their duration by route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		code := ww.Status()
		if code == 0 {
			code = http.StatusOK
		}
		m.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(code)).Inc()
		m.httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
