package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/medcore/hms/internal/platform/apperr"
)

func TestFreeSlots_FullDay(t *testing.T) {
	day := time.Date(2024, time.May, 16, 0, 0, 0, 0, time.UTC)
	slots := FreeSlots(day, time.Hour, nil, day)
	if len(slots) != clinicCloseHour-clinicOpenHour {
		t.Fatalf("expected %d hourly slots, got %d", clinicCloseHour-clinicOpenHour, len(slots))
	}
	if slots[0].Start.Hour() != clinicOpenHour || slots[len(slots)-1].End.Hour() != clinicCloseHour {
		t.Errorf("unexpected bounds %v - %v", slots[0].Start, slots[len(slots)-1].End)
	}
	if slots[0].Duration != 60 {
		t.Errorf("expected 60 minute slots, got %d", slots[0].Duration)
	}
}

func TestFreeSlots_SkipsPastAndBooked(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*3600)
	day := time.Date(2024, time.May, 16, 0, 0, 0, 0, loc)
	now := time.Date(2024, time.May, 16, 9, 10, 0, 0, loc)
	booked := []time.Time{
		time.Date(2024, time.May, 16, 10, 15, 0, 0, loc),
		time.Date(2024, time.May, 16, 13, 0, 0, 0, loc),
	}
	slots := FreeSlots(day, 30*time.Minute, booked, now)

	// 09:30 to 16:30 is 15 slots; 10:00 and 13:00 are taken.
	if len(slots) != 13 {
		t.Fatalf("expected 13 slots, got %d", len(slots))
	}
	for _, s := range slots {
		hm := s.Start.Format("15:04")
		if hm == "10:00" || hm == "13:00" || hm == "09:00" {
			t.Errorf("slot %s should not be free", hm)
		}
		if s.Start.Location() != loc {
			t.Errorf("slot %v not in clinic location", s.Start)
		}
	}
}

func TestFreeSlots_UnevenDuration(t *testing.T) {
	day := time.Date(2024, time.May, 16, 0, 0, 0, 0, time.UTC)
	slots := FreeSlots(day, 40*time.Minute, nil, day)
	last := slots[len(slots)-1]
	if last.End.After(time.Date(2024, time.May, 16, clinicCloseHour, 0, 0, 0, time.UTC)) {
		t.Errorf("last slot %v runs past closing", last.End)
	}
}

func TestService_Availability(t *testing.T) {
	svc, repo, _ := newTestService()
	doctor := uuid.New()
	ctx := context.Background()

	if err := svc.Create(ctx, newAppt(doctor, time.Date(2024, time.May, 15, 10, 0, 0, 0, time.UTC))); err != nil {
		t.Fatal(err)
	}
	cancelled := newAppt(doctor, time.Date(2024, time.May, 15, 11, 0, 0, 0, time.UTC))
	if err := svc.Create(ctx, cancelled); err != nil {
		t.Fatal(err)
	}
	repo.items[cancelled.ID].Status = StatusCancelled
	if err := svc.Create(ctx, newAppt(uuid.New(), time.Date(2024, time.May, 15, 12, 0, 0, 0, time.UTC))); err != nil {
		t.Fatal(err)
	}

	slots, err := svc.Availability(ctx, doctor, svcNow, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 09:00 to 16:30 is 16 slots; only 10:00 is taken.
	if len(slots) != 15 {
		t.Fatalf("expected 15 free slots, got %d", len(slots))
	}
	for _, s := range slots {
		if s.Start.Hour() == 10 && s.Start.Minute() == 0 {
			t.Error("10:00 is booked")
		}
	}
}

func TestService_Availability_RejectsDuration(t *testing.T) {
	svc, _, _ := newTestService()
	if _, err := svc.Availability(context.Background(), uuid.New(), svcNow, 1); !errors.Is(err, apperr.ErrInvalid) {
		t.Errorf("expected invalid duration, got %v", err)
	}
}

func TestHandler_Availability(t *testing.T) {
	h, _, e := newTestHandler()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/?date=2024-05-16&duration=60", nil), rec)
	c.SetParamNames("doctor_id")
	c.SetParamValues(uuid.New().String())

	if err := h.Availability(c); err != nil {
		t.Fatal(err)
	}
	var slots []Slot
	if err := json.Unmarshal(rec.Body.Bytes(), &slots); err != nil {
		t.Fatal(err)
	}
	if len(slots) != 9 {
		t.Errorf("expected 9 hourly slots, got %d", len(slots))
	}

	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/?duration=abc", nil), httptest.NewRecorder())
	c.SetParamNames("doctor_id")
	c.SetParamValues(uuid.New().String())
	expectHTTPCode(t, h.Availability(c), http.StatusBadRequest)
}
