package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/medcore/hms/internal/platform/auth"
)

func TestRequestID_GeneratesNew(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := func(c echo.Context) error {
		rid := c.Get("request_id").(string)
		if rid == "" {
			t.Error("expected request_id to be generated")
		}
		return c.String(http.StatusOK, "ok")
	}

	if err := RequestID()(handler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Header().Get(RequestIDHeader) == "" {
		t.Error("expected X-Request-ID response header")
	}
}

func TestRequestID_PreservesExisting(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "my-custom-id")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := func(c echo.Context) error {
		if rid := c.Get("request_id").(string); rid != "my-custom-id" {
			t.Errorf("expected my-custom-id, got %s", rid)
		}
		return c.String(http.StatusOK, "ok")
	}

	RequestID()(handler)(c)

	if rec.Header().Get(RequestIDHeader) != "my-custom-id" {
		t.Errorf("expected my-custom-id in response header, got %s", rec.Header().Get(RequestIDHeader))
	}
}

func TestRequestID_ReplacesGarbage(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "bad id\nwith newline")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	RequestID()(func(c echo.Context) error { return nil })(c)

	got := rec.Header().Get(RequestIDHeader)
	if got == "" || strings.Contains(got, " ") {
		t.Errorf("expected a generated id, got %q", got)
	}
}

func TestLogger_LogsRequest(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/patients", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("request_id", "rid-1")

	err := Logger(logger)(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var line map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("expected JSON log line, got %q", buf.String())
	}
	if line["request_id"] != "rid-1" || line["path"] != "/api/v1/patients" {
		t.Errorf("unexpected log fields: %v", line)
	}
	if line["status"].(float64) != 200 {
		t.Errorf("expected status 200, got %v", line["status"])
	}
}

func TestLogger_UsesHTTPErrorStatus(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/missing", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	Logger(logger)(func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	})(c)

	var line map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("expected JSON log line, got %q", buf.String())
	}
	if line["status"].(float64) != 404 {
		t.Errorf("expected status 404, got %v", line["status"])
	}
	if line["level"] != "warn" {
		t.Errorf("expected warn level for 4xx, got %v", line["level"])
	}
}

func TestLogger_PlainErrorIs500(t *testing.T) {
	var buf bytes.Buffer
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodPost, "/api/v1/appointments", nil), httptest.NewRecorder())

	Logger(zerolog.New(&buf))(func(echo.Context) error {
		return errors.New("db down")
	})(c)

	var line map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("expected JSON log line, got %q", buf.String())
	}
	if line["status"].(float64) != 500 || line["level"] != "error" {
		t.Errorf("expected error level with status 500, got %v", line)
	}
}

func TestLogger_IncludesIdentity(t *testing.T) {
	var buf bytes.Buffer
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/shifts", nil)
	req = req.WithContext(auth.WithIdentity(req.Context(), "user-7", []string{auth.RoleNurse}, ""))
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/api/v1/shifts")

	_ = Logger(zerolog.New(&buf))(func(c echo.Context) error { return c.NoContent(http.StatusOK) })(c)

	var line map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("expected JSON log line, got %q", buf.String())
	}
	if line["user_id"] != "user-7" || line["route"] != "/api/v1/shifts" {
		t.Errorf("unexpected log fields: %v", line)
	}
	roles, _ := line["roles"].([]interface{})
	if len(roles) != 1 || roles[0] != auth.RoleNurse {
		t.Errorf("expected roles [nurse], got %v", line["roles"])
	}
}

func TestLogger_ProbesLogAtDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.InfoLevel)
	e := echo.New()

	for _, path := range []string{"/health", "/health/db", "/metrics"} {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, path, nil), httptest.NewRecorder())
		_ = Logger(logger)(func(c echo.Context) error { return c.NoContent(http.StatusOK) })(c)
	}
	if buf.Len() != 0 {
		t.Errorf("expected probe hits to be filtered at info level, got %q", buf.String())
	}

	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/health/db", nil), httptest.NewRecorder())
	_ = Logger(logger)(func(echo.Context) error {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "unhealthy")
	})(c)
	if !strings.Contains(buf.String(), `"level":"error"`) {
		t.Errorf("expected failing probe to log at error, got %q", buf.String())
	}
}

func TestRecovery_CatchesPanic(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/patients/abc", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/api/v1/patients/:id")
	c.Set("request_id", "rid-42")

	var hooked []string
	err := Recovery(logger, func(route string) { hooked = append(hooked, route) })(func(c echo.Context) error {
		panic("test panic")
	})(c)

	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", httpErr.Code)
	}
	body, _ := httpErr.Message.(map[string]string)
	if body["request_id"] != "rid-42" {
		t.Errorf("expected request id in body, got %v", httpErr.Message)
	}
	if len(hooked) != 1 || hooked[0] != "/api/v1/patients/:id" {
		t.Errorf("expected hook called with route, got %v", hooked)
	}

	var line map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("expected JSON log line, got %q", buf.String())
	}
	if line["panic"] != "test panic" || line["route"] != "/api/v1/patients/:id" {
		t.Errorf("unexpected log fields: %v", line)
	}
}

func TestRecovery_RepanicsAbortHandler(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/ws", nil), httptest.NewRecorder())

	defer func() {
		if r := recover(); r != http.ErrAbortHandler {
			t.Errorf("expected ErrAbortHandler to propagate, got %v", r)
		}
	}()
	_ = Recovery(zerolog.Nop())(func(echo.Context) error {
		panic(http.ErrAbortHandler)
	})(c)
}

func TestRecovery_PassesThrough(t *testing.T) {
	logger := zerolog.New(os.Stderr).With().Logger()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := Recovery(logger)(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}
