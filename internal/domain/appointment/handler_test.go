package appointment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

func newTestHandler() (*Handler, *mockRepo, *echo.Echo) {
	svc, repo, _ := newTestService()
	return NewHandler(svc), repo, echo.New()
}

func expectHTTPCode(t *testing.T, err error, code int) {
	t.Helper()
	he, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected *echo.HTTPError, got %T (%v)", err, err)
	}
	if he.Code != code {
		t.Errorf("expected status %d, got %d", code, he.Code)
	}
}

func TestHandler_Create(t *testing.T) {
	h, _, e := newTestHandler()
	body := `{"patient_id":"` + uuid.New().String() + `","doctor_id":"` + uuid.New().String() +
		`","appointment_date":"2024-05-16T09:00:00Z"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()

	if err := h.Create(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	var got Appointment
	_ = json.Unmarshal(rec.Body.Bytes(), &got)
	if got.Status != StatusPending {
		t.Errorf("expected pending, got %s", got.Status)
	}
}

func TestHandler_Create_BadRequest(t *testing.T) {
	h, _, e := newTestHandler()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)

	err := h.Create(e.NewContext(req, httptest.NewRecorder()))
	expectHTTPCode(t, err, http.StatusBadRequest)
}

func TestHandler_Get_NotFound(t *testing.T) {
	h, _, e := newTestHandler()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(uuid.New().String())

	expectHTTPCode(t, h.Get(c), http.StatusNotFound)
}

func TestHandler_Get_InvalidID(t *testing.T) {
	h, _, e := newTestHandler()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("nope")

	expectHTTPCode(t, h.Get(c), http.StatusBadRequest)
}

func TestHandler_UpdateStatus_Conflict(t *testing.T) {
	h, repo, e := newTestHandler()
	a := newAppt(uuid.New(), svcNow)
	a.Status = StatusCompleted
	_ = repo.Create(context.Background(), a)

	req := httptest.NewRequest(http.MethodPatch, "/", strings.NewReader(`{"status":"cancelled"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(a.ID.String())

	expectHTTPCode(t, h.UpdateStatus(c), http.StatusConflict)
}

func TestHandler_Stats(t *testing.T) {
	h, repo, e := newTestHandler()
	repo.records = []AppointmentRecord{
		{ID: uuid.New(), Status: "completed", AppointmentDate: time.Date(2024, time.May, 15, 14, 0, 0, 0, time.UTC)},
	}
	doctor := uuid.New()
	target := "/appointments/stats?status=COMPLETED&doctor_id=" + doctor.String() +
		"&date_from=2024-05-01&date_to=2024-05-31"
	rec := httptest.NewRecorder()

	if err := h.Stats(e.NewContext(httptest.NewRequest(http.MethodGet, target, nil), rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	f := repo.lastF
	if f.Status != "COMPLETED" || f.DoctorID == nil || *f.DoctorID != doctor {
		t.Errorf("filter not parsed: %+v", f)
	}
	if !f.DateFrom.Equal(time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected date_from: %v", f.DateFrom)
	}
	wantTo := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC).Add(-time.Nanosecond)
	if !f.DateTo.Equal(wantTo) {
		t.Errorf("expected date_to extended to end of day, got %v", f.DateTo)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["completionRate"] != 100.0 {
		t.Errorf("expected completionRate 100, got %v", body["completionRate"])
	}
	if slots, ok := body["timeSlotDistribution"].([]interface{}); !ok || len(slots) != 1 {
		t.Errorf("expected one time slot, got %v", body["timeSlotDistribution"])
	}
}

func TestHandler_Stats_RFC3339DateTo(t *testing.T) {
	h, repo, e := newTestHandler()
	target := "/appointments/stats?date_to=2024-05-31T12:00:00Z"
	if err := h.Stats(e.NewContext(httptest.NewRequest(http.MethodGet, target, nil), httptest.NewRecorder())); err != nil {
		t.Fatal(err)
	}
	if !repo.lastF.DateTo.Equal(time.Date(2024, time.May, 31, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("timestamp date_to must be used as-is, got %v", repo.lastF.DateTo)
	}
}

func TestHandler_Stats_BadFilters(t *testing.T) {
	h, _, e := newTestHandler()
	for _, q := range []string{
		"doctor_id=abc",
		"patient_id=123",
		"date_from=15/05/2024",
		"date_to=tomorrow",
		"date_from=2024-05-10&date_to=2024-05-01",
	} {
		t.Run(q, func(t *testing.T) {
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/appointments/stats?"+q, nil), httptest.NewRecorder())
			expectHTTPCode(t, h.Stats(c), http.StatusBadRequest)
		})
	}
}

func TestHandler_Stats_RepositoryFailure(t *testing.T) {
	h, repo, e := newTestHandler()
	repo.failOn = "stats"
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/appointments/stats", nil), httptest.NewRecorder())
	expectHTTPCode(t, h.Stats(c), http.StatusInternalServerError)
}

func TestHandler_Queue(t *testing.T) {
	h, _, e := newTestHandler()
	doctor := uuid.New()
	a := newAppt(doctor, svcNow)
	a.Status = StatusConfirmed
	_ = h.svc.Create(context.Background(), a)
	_, _ = h.svc.CheckIn(context.Background(), a.ID)

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/?date=2024-05-15", nil), rec)
	c.SetParamNames("doctor_id")
	c.SetParamValues(doctor.String())

	if err := h.Queue(c); err != nil {
		t.Fatal(err)
	}
	var items []Appointment
	_ = json.Unmarshal(rec.Body.Bytes(), &items)
	if len(items) != 1 || items[0].QueueNumber == nil || *items[0].QueueNumber != 1 {
		t.Errorf("unexpected queue: %s", rec.Body.String())
	}
}

func TestHandler_List(t *testing.T) {
	h, _, e := newTestHandler()
	_ = h.svc.Create(context.Background(), newAppt(uuid.New(), svcNow))

	rec := httptest.NewRecorder()
	if err := h.List(e.NewContext(httptest.NewRequest(http.MethodGet, "/appointments?limit=10", nil), rec)); err != nil {
		t.Fatal(err)
	}
	var body struct {
		Total int `json:"total"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if body.Total != 1 {
		t.Errorf("expected total 1, got %d", body.Total)
	}
}

func TestRegisterRoutes(t *testing.T) {
	h, _, e := newTestHandler()
	h.RegisterRoutes(e.Group("/api/v1"))

	want := map[string]bool{
		"GET /api/v1/appointments/stats":            false,
		"GET /api/v1/appointments/:id":              false,
		"POST /api/v1/appointments/:id/check-in":    false,
		"PATCH /api/v1/appointments/:id/status":     false,
		"GET /api/v1/appointments/queue/:doctor_id": false,
		"DELETE /api/v1/appointments/:id":           false,
	}
	for _, r := range e.Routes() {
		key := r.Method + " " + r.Path
		if _, ok := want[key]; ok {
			want[key] = true
		}
	}
	for k, found := range want {
		if !found {
			t.Errorf("route %s not registered", k)
		}
	}
}
