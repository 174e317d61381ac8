package asset

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/medcore/hms/internal/platform/apperr"
	"github.com/medcore/hms/internal/platform/db"
	"github.com/medcore/hms/internal/platform/metrics"
)

// DepartmentCheck returns an error wrapping apperr.ErrNotFound when the
// department does not exist.
type DepartmentCheck func(ctx context.Context, id uuid.UUID) error

type Service struct {
	repo        Repository
	tx          db.Transactor
	departments DepartmentCheck
	metrics     *metrics.Metrics
	now         func() time.Time
}

func NewService(repo Repository, tx db.Transactor, departments DepartmentCheck) *Service {
	return &Service{repo: repo, tx: tx, departments: departments, now: time.Now}
}

func (s *Service) SetMetrics(m *metrics.Metrics) { s.metrics = m }

func normalizeTag(tag string) string {
	return strings.ToUpper(strings.TrimSpace(tag))
}

func validate(a *Asset) error {
	a.Tag = normalizeTag(a.Tag)
	a.Name = strings.TrimSpace(a.Name)
	a.Category = strings.ToLower(strings.TrimSpace(a.Category))
	if a.Tag == "" || a.Name == "" {
		return apperr.Invalid("tag and name are required")
	}
	if a.Category == "" {
		return apperr.Invalid("category is required")
	}
	return nil
}

// Create registers a new asset. New assets start available or in
// maintenance; assignment goes through Assign.
func (s *Service) Create(ctx context.Context, a *Asset) error {
	if err := validate(a); err != nil {
		return err
	}
	a.Status = strings.ToLower(strings.TrimSpace(a.Status))
	if a.Status == "" {
		a.Status = StatusAvailable
	}
	if a.Status != StatusAvailable && a.Status != StatusMaintenance {
		return apperr.Invalid("new assets must be available or maintenance, got %q", a.Status)
	}
	a.DepartmentID = nil
	a.AssignedAt = nil
	if err := s.repo.Create(ctx, a); err != nil {
		return err
	}
	s.metrics.CountEvent("asset", "registered")
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Asset, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetByTag(ctx context.Context, tag string) (*Asset, error) {
	return s.repo.GetByTag(ctx, normalizeTag(tag))
}

// Update changes the descriptive fields. Status and assignment are kept.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in *Asset) (*Asset, error) {
	if err := validate(in); err != nil {
		return nil, err
	}
	var out *Asset
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		cur, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		cur.Tag = in.Tag
		cur.Name = in.Name
		cur.Category = in.Category
		cur.SerialNumber = in.SerialNumber
		cur.Location = in.Location
		cur.PurchasedAt = in.PurchasedAt
		cur.Notes = in.Notes
		if err := s.repo.Update(ctx, cur); err != nil {
			return err
		}
		out = cur
		return nil
	})
	return out, err
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.tx.WithTx(ctx, func(ctx context.Context) error {
		a, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if a.Status == StatusInUse {
			return apperr.Conflict("release asset %s before deleting it", a.Tag)
		}
		return s.repo.Delete(ctx, id)
	})
}

func (s *Service) List(ctx context.Context, f Filter, limit, offset int) ([]*Asset, int, error) {
	f.Status = strings.ToLower(strings.TrimSpace(f.Status))
	f.Category = strings.ToLower(strings.TrimSpace(f.Category))
	if f.Status != "" && !validStatuses[f.Status] {
		return nil, 0, apperr.Invalid("unknown status %q", f.Status)
	}
	return s.repo.List(ctx, f, limit, offset)
}

// Assign hands an available asset to a department.
func (s *Service) Assign(ctx context.Context, id, departmentID uuid.UUID, location *string) (*Asset, error) {
	if departmentID == uuid.Nil {
		return nil, apperr.Invalid("department_id is required")
	}
	return s.mutate(ctx, id, "assigned", func(ctx context.Context, a *Asset) error {
		if a.Status != StatusAvailable {
			return apperr.Conflict("asset %s is %s", a.Tag, a.Status)
		}
		if s.departments != nil {
			if err := s.departments(ctx, departmentID); err != nil {
				if errors.Is(err, apperr.ErrNotFound) {
					return apperr.Invalid("department %s does not exist", departmentID)
				}
				return err
			}
		}
		now := s.now()
		a.Status = StatusInUse
		a.DepartmentID = &departmentID
		a.AssignedAt = &now
		if location != nil {
			a.Location = location
		}
		return nil
	})
}

// Release returns an in-use asset to the available pool.
func (s *Service) Release(ctx context.Context, id uuid.UUID) (*Asset, error) {
	return s.mutate(ctx, id, "released", func(_ context.Context, a *Asset) error {
		if a.Status != StatusInUse {
			return apperr.Conflict("asset %s is not in use", a.Tag)
		}
		a.Status = StatusAvailable
		a.DepartmentID = nil
		a.AssignedAt = nil
		return nil
	})
}

// UpdateStatus moves an asset between available, maintenance and retired.
// Coming back from maintenance stamps last_serviced_at. An in-use asset
// sent to maintenance loses its assignment.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*Asset, error) {
	status = strings.ToLower(strings.TrimSpace(status))
	if !validStatuses[status] {
		return nil, apperr.Invalid("unknown status %q", status)
	}
	return s.mutate(ctx, id, status, func(_ context.Context, a *Asset) error {
		if !canTransition(a.Status, status) {
			return apperr.Conflict("cannot move asset %s from %s to %s", a.Tag, a.Status, status)
		}
		if a.Status == StatusMaintenance && status == StatusAvailable {
			now := s.now()
			a.LastServicedAt = &now
		}
		a.Status = status
		a.DepartmentID = nil
		a.AssignedAt = nil
		return nil
	})
}

func (s *Service) mutate(ctx context.Context, id uuid.UUID, action string, fn func(ctx context.Context, a *Asset) error) (*Asset, error) {
	var out *Asset
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		a, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := fn(ctx, a); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, a); err != nil {
			return err
		}
		out = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.CountEvent("asset", action)
	return out, nil
}
