package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	// GetForUpdate is GetByID that also locks the row until the surrounding
	// transaction ends.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*Appointment, error)
	Update(ctx context.Context, a *Appointment) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, f Filter, limit, offset int) ([]*Appointment, int, error)

	// DoctorBusyAt reports whether the doctor has a non-cancelled appointment
	// starting at at, ignoring exclude.
	DoctorBusyAt(ctx context.Context, doctorID uuid.UUID, at time.Time, exclude uuid.UUID) (bool, error)
	// AssignQueueNumber stores a.CheckedInAt and the next free queue number
	// of a's doctor on the calendar day starting at dayStart, setting
	// a.QueueNumber. Numbering is serialized per doctor and day. It fails
	// with ErrCheckedIn when a already holds a number.
	AssignQueueNumber(ctx context.Context, a *Appointment, dayStart time.Time) error
	ListQueue(ctx context.Context, doctorID uuid.UUID, dayStart time.Time) ([]*Appointment, error)

	ListForStats(ctx context.Context, f Filter) ([]AppointmentRecord, error)
}
