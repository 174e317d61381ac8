package asset

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

func TestHandler_Assign(t *testing.T) {
	dept := uuid.New()
	svc, _ := newTestService(dept)
	h := NewHandler(svc)
	e := echo.New()
	a := addAsset(t, svc, "VENT-7")

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"department_id":"`+dept.String()+`"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(a.ID.String())
	if err := h.Assign(c); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"status":"in_use"`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

func TestHandler_GetByTag(t *testing.T) {
	svc, _ := newTestService()
	h := NewHandler(svc)
	e := echo.New()
	addAsset(t, svc, "VENT-7")

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	c.SetParamNames("tag")
	c.SetParamValues("vent-7")
	if err := h.GetByTag(c); err != nil {
		t.Fatalf("get by tag: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestHandler_List_BadStatus(t *testing.T) {
	svc, _ := newTestService()
	h := NewHandler(svc)
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/assets?status=lost", nil), httptest.NewRecorder())
	err := h.List(c)
	if he, ok := err.(*echo.HTTPError); !ok || he.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}
