// Package metrics exposes Prometheus metrics for HTTP traffic, page renders
// and test notification deliveries.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector of the service on its own registry.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	PageRendersTotal    *prometheus.CounterVec
	DeliveriesTotal     *prometheus.CounterVec
	DeliveryDuration    *prometheus.HistogramVec
	QueueDepth          prometheus.Gauge
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alerts_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "alerts_http_request_duration_seconds",
				Help:    "Duration of HTTP requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		PageRendersTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alerts_page_renders_total",
				Help: "Page renders by outcome",
			},
			[]string{"page", "state"},
		),
		DeliveriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alerts_notification_deliveries_total",
				Help: "Test notification delivery attempts",
			},
			[]string{"subscription_type", "status"},
		),
		DeliveryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "alerts_notification_delivery_duration_seconds",
				Help:    "Duration of test notification delivery attempts",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"subscription_type"},
		),
		QueueDepth: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "alerts_notification_queue_depth",
				Help: "Jobs waiting in the notification queue",
			},
		),
	}
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObservePageRender counts one render of page ending in state.
func (m *Metrics) ObservePageRender(page, state string) {
	m.PageRendersTotal.WithLabelValues(page, state).Inc()
}

// ObserveDelivery records the outcome of a delivery attempt.
func (m *Metrics) ObserveDelivery(subscriptionType, status string, d time.Duration) {
	m.DeliveriesTotal.WithLabelValues(subscriptionType, status).Inc()
	m.DeliveryDuration.WithLabelValues(subscriptionType).Observe(d.Seconds())
}

// Middleware records request counts and latencies labelled with the chi
// route pattern, so path parameters do not explode cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		m.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
