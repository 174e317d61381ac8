package laboratory

import (
	"time"

	"github.com/google/uuid"

	"github.com/medcore/hms/internal/platform/apperr"
)

const (
	StatusRequested  = "requested"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
)

const (
	PriorityRoutine = "routine"
	PriorityUrgent  = "urgent"
	PriorityStat    = "stat"
)

var (
	ErrRequestNotFound = apperr.NotFound("lab request")
	ErrResultNotFound  = apperr.NotFound("lab result")
)

var validPriorities = map[string]bool{
	PriorityRoutine: true,
	PriorityUrgent:  true,
	PriorityStat:    true,
}

var transitions = map[string][]string{
	StatusRequested:  {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusCompleted, StatusCancelled},
	StatusCompleted:  {},
	StatusCancelled:  {},
}

func canTransition(from, to string) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

type LabRequest struct {
	ID          uuid.UUID    `db:"id" json:"id"`
	PatientID   uuid.UUID    `db:"patient_id" json:"patient_id"`
	DoctorID    uuid.UUID    `db:"doctor_id" json:"doctor_id"`
	TestName    string       `db:"test_name" json:"test_name"`
	Priority    string       `db:"priority" json:"priority"`
	Status      string       `db:"status" json:"status"`
	Notes       *string      `db:"notes" json:"notes,omitempty"`
	RequestedAt time.Time    `db:"requested_at" json:"requested_at"`
	CompletedAt *time.Time   `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt   time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time    `db:"updated_at" json:"updated_at"`
	Results     []*LabResult `db:"-" json:"results,omitempty"`
}

type LabResult struct {
	ID             uuid.UUID `db:"id" json:"id"`
	RequestID      uuid.UUID `db:"request_id" json:"request_id"`
	Parameter      string    `db:"parameter" json:"parameter"`
	Value          string    `db:"value" json:"value"`
	Unit           *string   `db:"unit" json:"unit,omitempty"`
	ReferenceRange *string   `db:"reference_range" json:"reference_range,omitempty"`
	Abnormal       bool      `db:"abnormal" json:"abnormal"`
	PerformedBy    *string   `db:"performed_by" json:"performed_by,omitempty"`
	RecordedAt     time.Time `db:"recorded_at" json:"recorded_at"`
}

type RequestFilter struct {
	PatientID *uuid.UUID
	Status    string
	Priority  string
}
