package medicalrecord

import (
	"time"

	"github.com/google/uuid"

	"github.com/medcore/hms/internal/platform/apperr"
)

var ErrNotFound = apperr.NotFound("medical record")

// MedicalRecord is one clinical note written by a doctor about a patient,
// optionally tied to the appointment it came out of.
type MedicalRecord struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	PatientID     uuid.UUID  `db:"patient_id" json:"patient_id"`
	DoctorID      uuid.UUID  `db:"doctor_id" json:"doctor_id"`
	AppointmentID *uuid.UUID `db:"appointment_id" json:"appointment_id,omitempty"`
	Diagnosis     string     `db:"diagnosis" json:"diagnosis"`
	Symptoms      *string    `db:"symptoms" json:"symptoms,omitempty"`
	Treatment     *string    `db:"treatment" json:"treatment,omitempty"`
	Notes         *string    `db:"notes" json:"notes,omitempty"`
	RecordedAt    time.Time  `db:"recorded_at" json:"recorded_at"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}
