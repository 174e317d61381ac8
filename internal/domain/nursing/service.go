package nursing

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medcore/hms/internal/platform/apperr"
	"github.com/medcore/hms/internal/platform/db"
	"github.com/medcore/hms/internal/platform/metrics"
)

type Service struct {
	nurses  NurseRepository
	shifts  ShiftRepository
	tx      db.Transactor
	metrics *metrics.Metrics
	logger  zerolog.Logger
	loc     *time.Location
}

func NewService(nurses NurseRepository, shifts ShiftRepository, tx db.Transactor, logger zerolog.Logger) *Service {
	return &Service{
		nurses: nurses,
		shifts: shifts,
		tx:     tx,
		logger: logger.With().Str("domain", "nursing").Logger(),
		loc:    time.Local,
	}
}

func (s *Service) SetMetrics(m *metrics.Metrics) { s.metrics = m }

// SetLocation sets the zone shift windows are laid out in.
func (s *Service) SetLocation(loc *time.Location) { s.loc = loc }

// -- Nurses --

func validateNurse(n *Nurse) error {
	n.FirstName = strings.TrimSpace(n.FirstName)
	n.LastName = strings.TrimSpace(n.LastName)
	if n.FirstName == "" || n.LastName == "" {
		return apperr.Invalid("first_name and last_name are required")
	}
	return nil
}

func (s *Service) CreateNurse(ctx context.Context, n *Nurse) error {
	if err := validateNurse(n); err != nil {
		return err
	}
	n.Active = true
	return s.nurses.Create(ctx, n)
}

func (s *Service) GetNurse(ctx context.Context, id uuid.UUID) (*Nurse, error) {
	return s.nurses.GetByID(ctx, id)
}

func (s *Service) UpdateNurse(ctx context.Context, n *Nurse) error {
	if err := validateNurse(n); err != nil {
		return err
	}
	return s.nurses.Update(ctx, n)
}

func (s *Service) DeleteNurse(ctx context.Context, id uuid.UUID) error {
	return s.nurses.Delete(ctx, id)
}

func (s *Service) ListNurses(ctx context.Context, activeOnly bool, limit, offset int) ([]*Nurse, int, error) {
	return s.nurses.List(ctx, activeOnly, limit, offset)
}

// -- Shifts --

// CreateShift books one shift. The window is derived from the shift type and
// date; any overlap with the nurse's other shifts is rejected.
func (s *Service) CreateShift(ctx context.Context, sh *Shift) error {
	if sh.NurseID == uuid.Nil {
		return apperr.Invalid("nurse_id is required")
	}
	if sh.ShiftDate.IsZero() {
		return apperr.Invalid("shift_date is required")
	}
	sh.ShiftType = strings.ToLower(strings.TrimSpace(sh.ShiftType))
	if !validShiftType(sh.ShiftType) {
		return apperr.Invalid("shift_type must be morning, evening or night")
	}
	sh.ShiftDate = time.Date(sh.ShiftDate.Year(), sh.ShiftDate.Month(), sh.ShiftDate.Day(), 0, 0, 0, 0, time.UTC)
	sh.StartsAt, sh.EndsAt = ShiftBounds(sh.ShiftDate, sh.ShiftType, s.loc)

	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		n, err := s.nurses.GetByID(ctx, sh.NurseID)
		if err != nil {
			return err
		}
		if !n.Active {
			return apperr.Conflict("nurse is inactive")
		}
		busy, err := s.shifts.Overlapping(ctx, sh.NurseID, sh.StartsAt, sh.EndsAt)
		if err != nil {
			return err
		}
		if busy {
			return ErrShiftOverlap
		}
		return s.shifts.Create(ctx, sh)
	})
	if err != nil {
		return err
	}
	s.metrics.CountEvent("shift", "created")
	return nil
}

func (s *Service) GetShift(ctx context.Context, id uuid.UUID) (*Shift, error) {
	return s.shifts.GetByID(ctx, id)
}

func (s *Service) DeleteShift(ctx context.Context, id uuid.UUID) error {
	return s.shifts.Delete(ctx, id)
}

func (s *Service) ListShifts(ctx context.Context, f ShiftFilter, limit, offset int) ([]*Shift, int, error) {
	return s.shifts.List(ctx, f, limit, offset)
}

// GenerateShifts builds a roster and, unless dryRun is set, stores it. When
// req names no nurses every active nurse is scheduled.
func (s *Service) GenerateShifts(ctx context.Context, req GenerateRequest, dryRun bool) (*Roster, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	var roster *Roster
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		ids := req.NurseIDs
		if len(ids) == 0 {
			active, err := s.nurses.ListActive(ctx)
			if err != nil {
				return err
			}
			for _, n := range active {
				ids = append(ids, n.ID)
			}
		} else {
			for _, id := range ids {
				n, err := s.nurses.GetByID(ctx, id)
				if err != nil {
					return err
				}
				if !n.Active {
					return apperr.Conflict("nurse %s is inactive", id)
				}
			}
		}

		// Look back far enough to see a running night streak and the night
		// shift that spills into the first day.
		lookback := req.MaxConsecutiveNights
		if lookback == 0 {
			lookback = defaultMaxNights
		}
		from := time.Date(req.From.Year(), req.From.Month(), req.From.Day(), 0, 0, 0, 0, s.loc).AddDate(0, 0, -lookback-1)
		to := time.Date(req.To.Year(), req.To.Month(), req.To.Day(), 0, 0, 0, 0, s.loc).AddDate(0, 0, 2)
		existing, err := s.shifts.Between(ctx, from, to)
		if err != nil {
			return err
		}

		roster, err = Generate(req, ids, existing, s.loc)
		if err != nil {
			return err
		}
		if dryRun || len(roster.Shifts) == 0 {
			return nil
		}
		return s.shifts.CreateBatch(ctx, roster.Shifts)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("from", dayKey(req.From)).
		Str("to", dayKey(req.To)).
		Int64("seed", req.Seed).
		Int("shifts", len(roster.Shifts)).
		Int("unfilled", len(roster.Unfilled)).
		Bool("dry_run", dryRun).
		Msg("shift roster generated")
	if !dryRun {
		s.metrics.CountEvent("shift", "generated")
	}
	return roster, nil
}
