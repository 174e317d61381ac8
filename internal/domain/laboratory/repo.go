package laboratory

import (
	"context"

	"github.com/google/uuid"
)

type RequestRepository interface {
	Create(ctx context.Context, r *LabRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*LabRequest, error)
	UpdateStatus(ctx context.Context, r *LabRequest) error
	List(ctx context.Context, f RequestFilter, limit, offset int) ([]*LabRequest, int, error)
}

type ResultRepository interface {
	CreateBatch(ctx context.Context, results []*LabResult) error
	ListByRequest(ctx context.Context, requestID uuid.UUID) ([]*LabResult, error)
}
