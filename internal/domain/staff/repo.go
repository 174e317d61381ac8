package staff

import (
	"context"

	"github.com/google/uuid"
)

type DepartmentRepository interface {
	Create(ctx context.Context, d *Department) error
	GetByID(ctx context.Context, id uuid.UUID) (*Department, error)
	Update(ctx context.Context, d *Department) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]*Department, int, error)
}

type DoctorRepository interface {
	Create(ctx context.Context, d *Doctor) error
	GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	Update(ctx context.Context, d *Doctor) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, departmentID *uuid.UUID, limit, offset int) ([]*Doctor, int, error)
}

type VisitTypeRepository interface {
	Create(ctx context.Context, v *VisitType) error
	GetByID(ctx context.Context, id uuid.UUID) (*VisitType, error)
	Update(ctx context.Context, v *VisitType) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context) ([]*VisitType, error)
}
