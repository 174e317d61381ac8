package nursing

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type NurseRepository interface {
	Create(ctx context.Context, n *Nurse) error
	GetByID(ctx context.Context, id uuid.UUID) (*Nurse, error)
	Update(ctx context.Context, n *Nurse) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, activeOnly bool, limit, offset int) ([]*Nurse, int, error)
	ListActive(ctx context.Context) ([]*Nurse, error)
}

type ShiftRepository interface {
	Create(ctx context.Context, s *Shift) error
	CreateBatch(ctx context.Context, shifts []*Shift) error
	GetByID(ctx context.Context, id uuid.UUID) (*Shift, error)
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, f ShiftFilter, limit, offset int) ([]*Shift, int, error)
	// Overlapping reports whether the nurse has a shift intersecting [start, end).
	Overlapping(ctx context.Context, nurseID uuid.UUID, start, end time.Time) (bool, error)
	// Between returns every shift starting in [from, to).
	Between(ctx context.Context, from, to time.Time) ([]*Shift, error)
}
