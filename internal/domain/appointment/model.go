package appointment

import (
	"time"

	"github.com/google/uuid"

	"github.com/medcore/hms/internal/platform/apperr"
)

const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
	StatusCompleted = "completed"
)

var (
	ErrNotFound   = apperr.NotFound("appointment")
	ErrDoubleBook = apperr.Conflict("doctor already has an appointment at that time")
	ErrNotCheckIn = apperr.Conflict("only confirmed appointments can be checked in")
	ErrCheckedIn  = apperr.Conflict("appointment already checked in")
)

// transitions lists the statuses reachable from each status. Completed and
// cancelled are terminal.
var transitions = map[string][]string{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCompleted, StatusCancelled},
}

func canTransition(from, to string) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func isTerminal(status string) bool {
	return status == StatusCompleted || status == StatusCancelled
}

type Appointment struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	PatientID       uuid.UUID  `db:"patient_id" json:"patient_id"`
	DoctorID        uuid.UUID  `db:"doctor_id" json:"doctor_id"`
	VisitTypeID     *uuid.UUID `db:"visit_type_id" json:"visit_type_id,omitempty"`
	AppointmentDate time.Time  `db:"appointment_date" json:"appointment_date"`
	Status          string     `db:"status" json:"status"`
	Reason          *string    `db:"reason" json:"reason,omitempty"`
	Notes           *string    `db:"notes" json:"notes,omitempty"`
	QueueNumber     *int       `db:"queue_number" json:"queue_number,omitempty"`
	CheckedInAt     *time.Time `db:"checked_in_at" json:"checked_in_at,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// Filter narrows list and statistics queries. Nil fields are not applied;
// the date range is inclusive on both ends.
type Filter struct {
	Status    string
	DoctorID  *uuid.UUID
	PatientID *uuid.UUID
	DateFrom  *time.Time
	DateTo    *time.Time
}

type StatusUpdate struct {
	Status string `json:"status"`
}
