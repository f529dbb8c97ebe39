// Package metrics exposes prometheus collectors for HTTP traffic,
// order lifecycle sync and published events.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"textilemart/internal/lifecycle"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "textilemart"

type Metrics struct {
	registry    *prometheus.Registry
	requests    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	transitions *prometheus.CounterVec
	events      *prometheus.CounterVec
}

// プロセス/Goランタイムのcollectorも登録する
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lifecycle_transitions_total",
			Help:      "Order/delivery sync effects by trigger.",
		}, []string{"trigger", "effect"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Lifecycle events handed to the broker by type and result.",
		}, []string{"type", "result"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests, m.duration, m.transitions, m.events,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// GET /metrics
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// lifecycle.Observer
func (m *Metrics) LifecycleTransition(trigger string, effect string) {
	m.transitions.WithLabelValues(trigger, effect).Inc()
}

// ルートはパターン（/api/orders/:id）で集計する
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				} else if status < http.StatusBadRequest {
					status = http.StatusInternalServerError
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

// EventPublisher を包んで結果を数える
type Publisher interface {
	Publish(ctx context.Context, ev lifecycle.Event) error
}

type countingPublisher struct {
	next   Publisher
	events *prometheus.CounterVec
}

func (m *Metrics) WrapPublisher(next Publisher) Publisher {
	return &countingPublisher{next: next, events: m.events}
}

func (p *countingPublisher) Publish(ctx context.Context, ev lifecycle.Event) error {
	err := p.next.Publish(ctx, ev)
	result := "ok"
	if err != nil {
		result = "error"
	}
	p.events.WithLabelValues(ev.Type, result).Inc()
	return err
}
