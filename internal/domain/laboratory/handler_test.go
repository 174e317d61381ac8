package laboratory

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestHandler_RecordResults(t *testing.T) {
	svc, _, _, _ := newTestService()
	h := NewHandler(svc)
	e := echo.New()
	r := newRequest(t, svc, "")

	body := `{"results":[{"parameter":"Potassium","value":"6.1","reference_range":"3.5-5.1"}]}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(r.ID.String())
	if err := h.RecordResults(c); err != nil {
		t.Fatalf("record results: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"abnormal":true`) || !strings.Contains(rec.Body.String(), `"status":"completed"`) {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}

func TestHandler_UpdateStatus_Conflict(t *testing.T) {
	svc, _, _, _ := newTestService()
	h := NewHandler(svc)
	e := echo.New()
	r := newRequest(t, svc, "")
	if _, err := svc.UpdateStatus(context.Background(), r.ID, StatusCancelled); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPatch, "/", strings.NewReader(`{"status":"in_progress"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(r.ID.String())
	err := h.UpdateStatus(c)
	if he, ok := err.(*echo.HTTPError); !ok || he.Code != http.StatusConflict {
		t.Errorf("expected 409, got %v", err)
	}
}
