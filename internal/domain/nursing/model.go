package nursing

import (
	"time"

	"github.com/google/uuid"

	"github.com/medcore/hms/internal/platform/apperr"
)

const (
	ShiftMorning = "morning"
	ShiftEvening = "evening"
	ShiftNight   = "night"
)

// ShiftTypes in the order they occur during a day.
var ShiftTypes = []string{ShiftMorning, ShiftEvening, ShiftNight}

var (
	ErrNurseNotFound = apperr.NotFound("nurse")
	ErrShiftNotFound = apperr.NotFound("shift")
	ErrShiftOverlap  = apperr.Conflict("nurse already has an overlapping shift")
)

// shiftStartHour and shiftLength describe the fixed shift windows:
// morning 07-15, evening 15-23, night 23-07 the next day.
var shiftStartHour = map[string]int{
	ShiftMorning: 7,
	ShiftEvening: 15,
	ShiftNight:   23,
}

const shiftLength = 8 * time.Hour

func validShiftType(t string) bool {
	_, ok := shiftStartHour[t]
	return ok
}

// ShiftBounds returns the start and end of a shift of the given type that
// begins on day (in loc).
func ShiftBounds(day time.Time, shiftType string, loc *time.Location) (time.Time, time.Time) {
	y, m, d := day.Date()
	start := time.Date(y, m, d, shiftStartHour[shiftType], 0, 0, 0, loc)
	return start, start.Add(shiftLength)
}

type Nurse struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	FirstName     string     `db:"first_name" json:"first_name"`
	LastName      string     `db:"last_name" json:"last_name"`
	DepartmentID  *uuid.UUID `db:"department_id" json:"department_id,omitempty"`
	LicenseNumber *string    `db:"license_number" json:"license_number,omitempty"`
	Phone         *string    `db:"phone" json:"phone,omitempty"`
	Active        bool       `db:"active" json:"active"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

type Shift struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	NurseID      uuid.UUID  `db:"nurse_id" json:"nurse_id"`
	DepartmentID *uuid.UUID `db:"department_id" json:"department_id,omitempty"`
	ShiftDate    time.Time  `db:"shift_date" json:"shift_date"`
	ShiftType    string     `db:"shift_type" json:"shift_type"`
	StartsAt     time.Time  `db:"starts_at" json:"starts_at"`
	EndsAt       time.Time  `db:"ends_at" json:"ends_at"`
	Notes        *string    `db:"notes" json:"notes,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
}

func (s *Shift) overlaps(start, end time.Time) bool {
	return s.StartsAt.Before(end) && start.Before(s.EndsAt)
}

type ShiftFilter struct {
	NurseID *uuid.UUID
	From    *time.Time
	To      *time.Time
}
