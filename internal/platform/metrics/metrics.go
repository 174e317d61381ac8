// Package metrics exposes Prometheus instrumentation for the HTTP server,
// the database pool, the live event hub and the appointment analytics.
package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "hms"

// Metrics owns a private registry so tests can build independent instances.
type Metrics struct {
	reg *prometheus.Registry

	requests      *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	inFlight      prometheus.Gauge
	statsRuns     prometheus.Counter
	statsRecords  prometheus.Histogram
	statsDuration prometheus.Histogram
	domainEvents  *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route pattern and status code.",
		}, []string{"method", "route", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "Requests currently being served.",
		}),
		statsRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "appointment_stats",
			Name:      "computations_total",
			Help:      "Appointment statistics summaries computed.",
		}),
		statsRecords: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "appointment_stats",
			Name:      "records",
			Help:      "Appointment records aggregated per summary.",
			Buckets:   prometheus.ExponentialBuckets(10, 4, 7),
		}),
		statsDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "appointment_stats",
			Name:      "duration_seconds",
			Help:      "Time spent aggregating one summary.",
			Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5},
		}),
		domainEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "domain_events_total",
			Help:      "Hospital workflow events by entity and action.",
		}, []string{"entity", "action"}),
	}
	m.reg.MustRegister(
		m.requests, m.duration, m.inFlight,
		m.statsRuns, m.statsRecords, m.statsDuration,
		m.domainEvents,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry is exposed for callers that add their own collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}

// GaugeFunc registers a gauge sampled from fn at scrape time.
func (m *Metrics) GaugeFunc(subsystem, name, help string, fn func() float64) {
	m.reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	}, fn))
}

// Middleware records request counts and latency keyed by the route pattern,
// never the raw path, to keep label cardinality bounded.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			m.inFlight.Inc()
			start := time.Now()

			err := next(c)

			m.inFlight.Dec()
			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				} else {
					status = 500
				}
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			method := c.Request().Method
			m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
			m.duration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{}))
}

// ObserveStats records one analytics computation.
func (m *Metrics) ObserveStats(records int, took time.Duration) {
	if m == nil {
		return
	}
	m.statsRuns.Inc()
	m.statsRecords.Observe(float64(records))
	m.statsDuration.Observe(took.Seconds())
}

// CountEvent increments the workflow counter, e.g. ("appointment", "confirmed").
func (m *Metrics) CountEvent(entity, action string) {
	if m == nil {
		return
	}
	m.domainEvents.WithLabelValues(entity, action).Inc()
}
