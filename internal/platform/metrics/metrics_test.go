package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddleware_CountsByRoutePattern(t *testing.T) {
	m := New()
	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/patients/:id", func(c echo.Context) error {
		return c.NoContent(http.StatusNoContent)
	})
	e.GET("/boom", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusBadRequest, "bad")
	})

	for _, path := range []string{"/patients/1", "/patients/2", "/boom"} {
		e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	if got := testutil.ToFloat64(m.requests.WithLabelValues("GET", "/patients/:id", "204")); got != 2 {
		t.Errorf("expected 2 requests on /patients/:id, got %v", got)
	}
	if got := testutil.ToFloat64(m.requests.WithLabelValues("GET", "/boom", "400")); got != 1 {
		t.Errorf("expected 1 request with status 400, got %v", got)
	}
	if got := testutil.ToFloat64(m.inFlight); got != 0 {
		t.Errorf("expected in-flight gauge back at 0, got %v", got)
	}
}

func TestObserveStats(t *testing.T) {
	m := New()
	m.ObserveStats(120, 3*time.Millisecond)
	m.ObserveStats(5, time.Millisecond)

	if got := testutil.ToFloat64(m.statsRuns); got != 2 {
		t.Errorf("expected 2 computations, got %v", got)
	}
	if n := testutil.CollectAndCount(m.statsRecords); n != 1 {
		t.Errorf("expected records histogram to collect, got %d", n)
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveStats(1, time.Millisecond)
	m.CountEvent("appointment", "created")
}

func TestHandler_ExposesRegisteredMetrics(t *testing.T) {
	m := New()
	m.CountEvent("prescription", "dispensed")
	m.GaugeFunc("ws", "clients", "Connected websocket clients.", func() float64 { return 3 })

	e := echo.New()
	e.GET("/metrics", m.Handler())
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		`hms_domain_events_total{action="dispensed",entity="prescription"} 1`,
		"hms_ws_clients 3",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in exposition output", want)
		}
	}
}
