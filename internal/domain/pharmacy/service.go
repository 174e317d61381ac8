package pharmacy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medcore/hms/internal/platform/apperr"
	"github.com/medcore/hms/internal/platform/db"
	"github.com/medcore/hms/internal/platform/metrics"
)

type Service struct {
	medicines     MedicineRepository
	prescriptions PrescriptionRepository
	tx            db.Transactor
	metrics       *metrics.Metrics
	logger        zerolog.Logger
	now           func() time.Time
}

func NewService(medicines MedicineRepository, prescriptions PrescriptionRepository, tx db.Transactor, logger zerolog.Logger) *Service {
	return &Service{
		medicines:     medicines,
		prescriptions: prescriptions,
		tx:            tx,
		logger:        logger.With().Str("domain", "pharmacy").Logger(),
		now:           time.Now,
	}
}

func (s *Service) SetMetrics(m *metrics.Metrics) { s.metrics = m }

// -- Medicines --

func validateMedicine(m *Medicine) error {
	m.Name = strings.TrimSpace(m.Name)
	if m.Name == "" {
		return apperr.Invalid("name is required")
	}
	m.Unit = strings.TrimSpace(m.Unit)
	if m.Unit == "" {
		m.Unit = "unit"
	}
	if m.Price < 0 {
		return apperr.Invalid("price cannot be negative")
	}
	if m.ReorderLevel < 0 {
		return apperr.Invalid("reorder_level cannot be negative")
	}
	return nil
}

func (s *Service) CreateMedicine(ctx context.Context, m *Medicine) error {
	if err := validateMedicine(m); err != nil {
		return err
	}
	if m.Stock < 0 {
		return apperr.Invalid("stock cannot be negative")
	}
	return s.medicines.Create(ctx, m)
}

func (s *Service) GetMedicine(ctx context.Context, id uuid.UUID) (*Medicine, error) {
	return s.medicines.GetByID(ctx, id)
}

func (s *Service) UpdateMedicine(ctx context.Context, m *Medicine) error {
	if err := validateMedicine(m); err != nil {
		return err
	}
	return s.medicines.Update(ctx, m)
}

func (s *Service) DeleteMedicine(ctx context.Context, id uuid.UUID) error {
	return s.medicines.Delete(ctx, id)
}

func (s *Service) ListMedicines(ctx context.Context, query string, lowStock bool, limit, offset int) ([]*Medicine, int, error) {
	return s.medicines.List(ctx, strings.TrimSpace(query), lowStock, limit, offset)
}

// Restock adds qty units to a medicine's stock.
func (s *Service) Restock(ctx context.Context, id uuid.UUID, qty int) (*Medicine, error) {
	if qty <= 0 {
		return nil, apperr.Invalid("quantity must be positive")
	}
	m, err := s.medicines.AdjustStock(ctx, id, qty)
	if err != nil {
		return nil, err
	}
	s.metrics.CountEvent("medicine", "restocked")
	return m, nil
}

// -- Prescriptions --

func (s *Service) CreatePrescription(ctx context.Context, p *Prescription) error {
	if p.PatientID == uuid.Nil {
		return apperr.Invalid("patient_id is required")
	}
	if p.DoctorID == uuid.Nil {
		return apperr.Invalid("doctor_id is required")
	}
	if len(p.Items) == 0 {
		return apperr.Invalid("a prescription needs at least one item")
	}
	seen := make(map[uuid.UUID]bool, len(p.Items))
	for i := range p.Items {
		it := &p.Items[i]
		if it.MedicineID == uuid.Nil {
			return apperr.Invalid("items[%d]: medicine_id is required", i)
		}
		if seen[it.MedicineID] {
			return apperr.Invalid("items[%d]: medicine listed twice", i)
		}
		seen[it.MedicineID] = true
		if it.Quantity <= 0 {
			return apperr.Invalid("items[%d]: quantity must be positive", i)
		}
		it.Dosage = strings.TrimSpace(it.Dosage)
		if it.Dosage == "" {
			return apperr.Invalid("items[%d]: dosage is required", i)
		}
	}
	p.Status = StatusPending
	p.DispensedAt = nil
	p.DispensedBy = nil

	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		for i, it := range p.Items {
			if _, err := s.medicines.GetByID(ctx, it.MedicineID); err != nil {
				if errors.Is(err, ErrMedicineNotFound) {
					return apperr.Invalid("items[%d]: unknown medicine %s", i, it.MedicineID)
				}
				return err
			}
		}
		return s.prescriptions.Create(ctx, p)
	})
	if err != nil {
		return err
	}
	s.metrics.CountEvent("prescription", "created")
	return nil
}

func (s *Service) GetPrescription(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	return s.prescriptions.GetByID(ctx, id)
}

func (s *Service) ListPrescriptions(ctx context.Context, f PrescriptionFilter, limit, offset int) ([]*Prescription, int, error) {
	f.Status = strings.ToLower(strings.TrimSpace(f.Status))
	return s.prescriptions.List(ctx, f, limit, offset)
}

// Dispense hands out every item of a pending prescription. The prescription
// is claimed first so a concurrent dispense or cancel of the same one fails
// with a conflict. Stock for all items is then decremented in medicine id
// order in the same transaction; if any medicine runs short nothing is
// dispensed.
func (s *Service) Dispense(ctx context.Context, id uuid.UUID, by string) (*Prescription, error) {
	var out *Prescription
	var low []*Medicine
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		p, err := s.prescriptions.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if p.Status != StatusPending {
			return apperr.Conflict("prescription is %s", p.Status)
		}
		at := s.now()
		p.Status = StatusDispensed
		p.DispensedAt = &at
		if by != "" {
			p.DispensedBy = &by
		}
		if err := s.prescriptions.UpdateStatus(ctx, p, StatusPending); err != nil {
			return err
		}

		low = low[:0]
		for _, it := range byMedicine(p.Items) {
			m, err := s.medicines.AdjustStock(ctx, it.MedicineID, -it.Quantity)
			if err != nil {
				if errors.Is(err, ErrInsufficientStock) {
					return fmt.Errorf("medicine %s: %w", it.MedicineID, err)
				}
				return err
			}
			if m.LowStock() {
				low = append(low, m)
			}
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, m := range low {
		s.logger.Warn().Str("medicine_id", m.ID.String()).Str("name", m.Name).
			Int("stock", m.Stock).Int("reorder_level", m.ReorderLevel).Msg("medicine stock low")
	}
	s.metrics.CountEvent("prescription", "dispensed")
	return out, nil
}

// byMedicine returns items sorted by medicine id so that concurrent
// dispenses lock medicine rows in the same order.
func byMedicine(items []PrescriptionItem) []PrescriptionItem {
	sorted := slices.Clone(items)
	slices.SortFunc(sorted, func(a, b PrescriptionItem) int {
		return bytes.Compare(a.MedicineID[:], b.MedicineID[:])
	})
	return sorted
}

// Cancel moves a pending prescription to cancelled. Stock is untouched.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	var out *Prescription
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		p, err := s.prescriptions.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if p.Status != StatusPending {
			return apperr.Conflict("prescription is %s", p.Status)
		}
		p.Status = StatusCancelled
		if err := s.prescriptions.UpdateStatus(ctx, p, StatusPending); err != nil {
			return err
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.CountEvent("prescription", "cancelled")
	return out, nil
}
