package medicalrecord

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/medcore/hms/internal/platform/apperr"
)

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

func (s *Service) Create(ctx context.Context, m *MedicalRecord) error {
	if m.PatientID == uuid.Nil {
		return apperr.Invalid("patient_id is required")
	}
	if m.DoctorID == uuid.Nil {
		return apperr.Invalid("doctor_id is required")
	}
	m.Diagnosis = strings.TrimSpace(m.Diagnosis)
	if m.Diagnosis == "" {
		return apperr.Invalid("diagnosis is required")
	}
	if m.RecordedAt.IsZero() {
		m.RecordedAt = s.now()
	}
	if m.RecordedAt.After(s.now()) {
		return apperr.Invalid("recorded_at is in the future")
	}
	return s.repo.Create(ctx, m)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*MedicalRecord, error) {
	return s.repo.GetByID(ctx, id)
}

// Update amends the clinical text. Patient, doctor and appointment are fixed
// once the record exists.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in *MedicalRecord) (*MedicalRecord, error) {
	cur, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if d := strings.TrimSpace(in.Diagnosis); d != "" {
		cur.Diagnosis = d
	}
	if in.Symptoms != nil {
		cur.Symptoms = in.Symptoms
	}
	if in.Treatment != nil {
		cur.Treatment = in.Treatment
	}
	if in.Notes != nil {
		cur.Notes = in.Notes
	}
	if err := s.repo.Update(ctx, cur); err != nil {
		return nil, err
	}
	return cur, nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*MedicalRecord, int, error) {
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}
