package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/medcore/hms/internal/platform/apperr"
)

// Clinic hours used for bookable slots, in the service location.
const (
	clinicOpenHour  = 8
	clinicCloseHour = 17

	defaultSlotMinutes = 30
	maxAvailability    = 500
)

// Slot is a bookable interval for one doctor.
type Slot struct {
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Duration int       `json:"duration_minutes"`
}

// FreeSlots splits the clinic day into slots of the given length and drops
// those that start before now or contain the start of a booked appointment.
// The result is sorted by start time.
func FreeSlots(dayStart time.Time, duration time.Duration, booked []time.Time, now time.Time) []Slot {
	y, m, d := dayStart.Date()
	loc := dayStart.Location()
	open := time.Date(y, m, d, clinicOpenHour, 0, 0, 0, loc)
	closing := time.Date(y, m, d, clinicCloseHour, 0, 0, 0, loc)

	slots := []Slot{}
	for start := open; !start.Add(duration).After(closing); start = start.Add(duration) {
		end := start.Add(duration)
		if start.Before(now) {
			continue
		}
		taken := false
		for _, b := range booked {
			if !b.Before(start) && b.Before(end) {
				taken = true
				break
			}
		}
		if !taken {
			slots = append(slots, Slot{Start: start, End: end, Duration: int(duration / time.Minute)})
		}
	}
	return slots
}

// Availability lists the free slots of a doctor on the calendar day of day.
// A zero minutes value uses the default slot length.
func (s *Service) Availability(ctx context.Context, doctorID uuid.UUID, day time.Time, minutes int) ([]Slot, error) {
	if minutes == 0 {
		minutes = defaultSlotMinutes
	}
	if minutes < 5 || minutes > 240 {
		return nil, apperr.Invalid("duration must be between 5 and 240 minutes")
	}
	start := s.dayStart(day)
	end := start.AddDate(0, 0, 1).Add(-time.Nanosecond)

	items, _, err := s.repo.List(ctx, Filter{DoctorID: &doctorID, DateFrom: &start, DateTo: &end}, maxAvailability, 0)
	if err != nil {
		return nil, err
	}
	var booked []time.Time
	for _, a := range items {
		if a.DoctorID != doctorID || a.Status == StatusCancelled {
			continue
		}
		booked = append(booked, a.AppointmentDate)
	}
	return FreeSlots(start, time.Duration(minutes)*time.Minute, booked, s.now()), nil
}
