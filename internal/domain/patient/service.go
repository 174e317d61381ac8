package patient

import (
	"context"
	"crypto/rand"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/medcore/hms/internal/platform/apperr"
)

const mrnAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// NewMRN builds a medical record number MRN-YYYYMMDD-XXXXXX for the
// registration day.
func NewMRN(day time.Time) string {
	var buf [6]byte
	_, _ = rand.Read(buf[:])
	for i := range buf {
		buf[i] = mrnAlphabet[int(buf[i])%len(mrnAlphabet)]
	}
	return "MRN-" + day.Format("20060102") + "-" + string(buf[:])
}

type Service struct {
	repo Repository
	now  func() time.Time
	mrn  func(time.Time) string
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now, mrn: NewMRN}
}

func (s *Service) validate(p *Patient) error {
	p.FirstName = strings.TrimSpace(p.FirstName)
	p.LastName = strings.TrimSpace(p.LastName)
	if p.FirstName == "" || p.LastName == "" {
		return apperr.Invalid("first_name and last_name are required")
	}
	p.Gender = strings.ToLower(strings.TrimSpace(p.Gender))
	if p.Gender == "" {
		p.Gender = "unknown"
	}
	if !validGenders[p.Gender] {
		return apperr.Invalid("gender must be one of male, female, other, unknown")
	}
	if p.BloodType != nil && *p.BloodType != "" && !validBloodTypes[strings.ToUpper(*p.BloodType)] {
		return apperr.Invalid("unknown blood type %q", *p.BloodType)
	}
	if p.BirthDate != nil && p.BirthDate.After(s.now()) {
		return apperr.Invalid("birth_date is in the future")
	}
	if p.Email != nil && *p.Email != "" {
		if _, err := mail.ParseAddress(*p.Email); err != nil {
			return apperr.Invalid("email %q is not valid", *p.Email)
		}
	}
	return nil
}

// Register validates the patient and assigns a fresh MRN.
func (s *Service) Register(ctx context.Context, p *Patient) error {
	if err := s.validate(p); err != nil {
		return err
	}
	p.MRN = s.mrn(s.now())
	return s.repo.Create(ctx, p)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetByMRN(ctx context.Context, mrn string) (*Patient, error) {
	return s.repo.GetByMRN(ctx, strings.ToUpper(strings.TrimSpace(mrn)))
}

// Update replaces the demographic fields. The MRN never changes.
func (s *Service) Update(ctx context.Context, p *Patient) (*Patient, error) {
	if err := s.validate(p); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, p.ID)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) Search(ctx context.Context, query string, limit, offset int) ([]*Patient, int, error) {
	return s.repo.Search(ctx, query, limit, offset)
}
