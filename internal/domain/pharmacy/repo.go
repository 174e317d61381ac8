package pharmacy

import (
	"context"

	"github.com/google/uuid"
)

type MedicineRepository interface {
	Create(ctx context.Context, m *Medicine) error
	GetByID(ctx context.Context, id uuid.UUID) (*Medicine, error)
	Update(ctx context.Context, m *Medicine) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, query string, lowStock bool, limit, offset int) ([]*Medicine, int, error)
	// AdjustStock adds delta to the stock and returns the updated medicine.
	// It fails with ErrInsufficientStock when the result would be negative.
	AdjustStock(ctx context.Context, id uuid.UUID, delta int) (*Medicine, error)
}

type PrescriptionRepository interface {
	Create(ctx context.Context, p *Prescription) error
	GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error)
	// UpdateStatus writes p's status fields only while the stored status is
	// still from, failing with ErrPrescriptionChanged otherwise.
	UpdateStatus(ctx context.Context, p *Prescription, from string) error
	List(ctx context.Context, f PrescriptionFilter, limit, offset int) ([]*Prescription, int, error)
}
