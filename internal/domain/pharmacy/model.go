package pharmacy

import (
	"time"

	"github.com/google/uuid"

	"github.com/medcore/hms/internal/platform/apperr"
)

const (
	StatusPending   = "pending"
	StatusDispensed = "dispensed"
	StatusCancelled = "cancelled"
)

var (
	ErrMedicineNotFound     = apperr.NotFound("medicine")
	ErrPrescriptionNotFound = apperr.NotFound("prescription")
	ErrInsufficientStock    = apperr.Conflict("insufficient stock")
	ErrPrescriptionChanged  = apperr.Conflict("prescription was updated concurrently")
)

type Medicine struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	GenericName  *string   `db:"generic_name" json:"generic_name,omitempty"`
	Form         *string   `db:"form" json:"form,omitempty"`
	Unit         string    `db:"unit" json:"unit"`
	Stock        int       `db:"stock" json:"stock"`
	ReorderLevel int       `db:"reorder_level" json:"reorder_level"`
	Price        float64   `db:"price" json:"price"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// LowStock reports whether the medicine is at or below its reorder level.
func (m *Medicine) LowStock() bool {
	return m.Stock <= m.ReorderLevel
}

type Prescription struct {
	ID              uuid.UUID          `db:"id" json:"id"`
	PatientID       uuid.UUID          `db:"patient_id" json:"patient_id"`
	DoctorID        uuid.UUID          `db:"doctor_id" json:"doctor_id"`
	MedicalRecordID *uuid.UUID         `db:"medical_record_id" json:"medical_record_id,omitempty"`
	Status          string             `db:"status" json:"status"`
	Notes           *string            `db:"notes" json:"notes,omitempty"`
	DispensedAt     *time.Time         `db:"dispensed_at" json:"dispensed_at,omitempty"`
	DispensedBy     *string            `db:"dispensed_by" json:"dispensed_by,omitempty"`
	Items           []PrescriptionItem `db:"-" json:"items"`
	CreatedAt       time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time          `db:"updated_at" json:"updated_at"`
}

type PrescriptionItem struct {
	ID             uuid.UUID `db:"id" json:"id"`
	PrescriptionID uuid.UUID `db:"prescription_id" json:"prescription_id"`
	MedicineID     uuid.UUID `db:"medicine_id" json:"medicine_id"`
	Quantity       int       `db:"quantity" json:"quantity"`
	Dosage         string    `db:"dosage" json:"dosage"`
	Frequency      *string   `db:"frequency" json:"frequency,omitempty"`
	DurationDays   *int      `db:"duration_days" json:"duration_days,omitempty"`
}

type PrescriptionFilter struct {
	PatientID *uuid.UUID
	Status    string
}
