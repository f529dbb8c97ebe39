package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"textilemart/internal/lifecycle"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPublisher struct{ err error }

func (p stubPublisher) Publish(context.Context, lifecycle.Event) error { return p.err }

func TestMiddleware_CountsByRoutePattern(t *testing.T) {
	m := New()
	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/api/orders/:id", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/api/boom", func(c echo.Context) error { return errors.New("boom") })
	e.GET("/api/forbidden", func(c echo.Context) error { return echo.NewHTTPError(http.StatusForbidden) })

	for _, path := range []string{"/api/orders/1", "/api/orders/2", "/api/boom", "/api/forbidden"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("GET", "/api/orders/:id", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("GET", "/api/boom", "500")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("GET", "/api/forbidden", "403")))
}

func TestLifecycleTransition(t *testing.T) {
	m := New()
	var obs lifecycle.Observer = m

	obs.LifecycleTransition(lifecycle.TriggerDeliveryStatusChanged, "order_marked_paid")
	obs.LifecycleTransition(lifecycle.TriggerDeliveryStatusChanged, "order_marked_paid")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.transitions.WithLabelValues(lifecycle.TriggerDeliveryStatusChanged, "order_marked_paid")))
}

func TestWrapPublisher(t *testing.T) {
	m := New()
	ctx := context.Background()

	require.NoError(t, m.WrapPublisher(stubPublisher{}).Publish(ctx, lifecycle.Event{Type: lifecycle.EventOrderCreated}))
	require.Error(t, m.WrapPublisher(stubPublisher{err: errors.New("closed")}).Publish(ctx, lifecycle.Event{Type: lifecycle.EventOrderCreated}))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.events.WithLabelValues(lifecycle.EventOrderCreated, "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.events.WithLabelValues(lifecycle.EventOrderCreated, "error")))
}

func TestHandler(t *testing.T) {
	m := New()
	m.LifecycleTransition(lifecycle.TriggerOrderCreated, "delivery_created")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, _ := io.ReadAll(rec.Body)
	assert.True(t, strings.Contains(string(body), "textilemart_lifecycle_transitions_total"))
	assert.Contains(t, string(body), "go_goroutines")
}
