package staff

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/google/uuid"

	"github.com/medcore/hms/internal/platform/apperr"
)

type Service struct {
	departments DepartmentRepository
	doctors     DoctorRepository
	visitTypes  VisitTypeRepository
}

func NewService(dept DepartmentRepository, doc DoctorRepository, vt VisitTypeRepository) *Service {
	return &Service{departments: dept, doctors: doc, visitTypes: vt}
}

// -- Department --

func (s *Service) CreateDepartment(ctx context.Context, d *Department) error {
	d.Name = strings.TrimSpace(d.Name)
	if d.Name == "" {
		return apperr.Invalid("name is required")
	}
	return s.departments.Create(ctx, d)
}

func (s *Service) GetDepartment(ctx context.Context, id uuid.UUID) (*Department, error) {
	return s.departments.GetByID(ctx, id)
}

func (s *Service) UpdateDepartment(ctx context.Context, d *Department) error {
	d.Name = strings.TrimSpace(d.Name)
	if d.Name == "" {
		return apperr.Invalid("name is required")
	}
	return s.departments.Update(ctx, d)
}

func (s *Service) DeleteDepartment(ctx context.Context, id uuid.UUID) error {
	return s.departments.Delete(ctx, id)
}

func (s *Service) ListDepartments(ctx context.Context, limit, offset int) ([]*Department, int, error) {
	return s.departments.List(ctx, limit, offset)
}

// -- Doctor --

func (s *Service) validateDoctor(ctx context.Context, d *Doctor) error {
	d.FirstName = strings.TrimSpace(d.FirstName)
	d.LastName = strings.TrimSpace(d.LastName)
	if d.FirstName == "" || d.LastName == "" {
		return apperr.Invalid("first_name and last_name are required")
	}
	if d.DepartmentID == uuid.Nil {
		return apperr.Invalid("department_id is required")
	}
	if d.Email != nil && *d.Email != "" {
		if _, err := mail.ParseAddress(*d.Email); err != nil {
			return apperr.Invalid("email %q is not valid", *d.Email)
		}
	}
	if _, err := s.departments.GetByID(ctx, d.DepartmentID); err != nil {
		if errors.Is(err, ErrDepartmentNotFound) {
			return apperr.Invalid("department %s does not exist", d.DepartmentID)
		}
		return err
	}
	return nil
}

func (s *Service) CreateDoctor(ctx context.Context, d *Doctor) error {
	if err := s.validateDoctor(ctx, d); err != nil {
		return err
	}
	d.Active = true
	return s.doctors.Create(ctx, d)
}

func (s *Service) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return s.doctors.GetByID(ctx, id)
}

func (s *Service) UpdateDoctor(ctx context.Context, d *Doctor) error {
	if err := s.validateDoctor(ctx, d); err != nil {
		return err
	}
	return s.doctors.Update(ctx, d)
}

func (s *Service) DeleteDoctor(ctx context.Context, id uuid.UUID) error {
	return s.doctors.Delete(ctx, id)
}

func (s *Service) ListDoctors(ctx context.Context, departmentID *uuid.UUID, limit, offset int) ([]*Doctor, int, error) {
	return s.doctors.List(ctx, departmentID, limit, offset)
}

// -- Visit Type --

func validateVisitType(v *VisitType) error {
	v.Name = strings.TrimSpace(v.Name)
	if v.Name == "" {
		return apperr.Invalid("name is required")
	}
	if v.DurationMinutes == 0 {
		v.DurationMinutes = 15
	}
	if v.DurationMinutes < 0 || v.DurationMinutes > 480 {
		return apperr.Invalid("duration_minutes must be between 1 and 480")
	}
	return nil
}

func (s *Service) CreateVisitType(ctx context.Context, v *VisitType) error {
	if err := validateVisitType(v); err != nil {
		return err
	}
	return s.visitTypes.Create(ctx, v)
}

func (s *Service) GetVisitType(ctx context.Context, id uuid.UUID) (*VisitType, error) {
	return s.visitTypes.GetByID(ctx, id)
}

func (s *Service) UpdateVisitType(ctx context.Context, v *VisitType) error {
	if err := validateVisitType(v); err != nil {
		return err
	}
	return s.visitTypes.Update(ctx, v)
}

func (s *Service) DeleteVisitType(ctx context.Context, id uuid.UUID) error {
	return s.visitTypes.Delete(ctx, id)
}

func (s *Service) ListVisitTypes(ctx context.Context) ([]*VisitType, error) {
	return s.visitTypes.List(ctx)
}
