package appointment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medcore/hms/internal/platform/apperr"
	"github.com/medcore/hms/internal/platform/db"
	"github.com/medcore/hms/internal/platform/metrics"
	"github.com/medcore/hms/internal/platform/websocket"
)

type Service struct {
	repo    Repository
	tx      db.Transactor
	events  websocket.Publisher
	stats   *StatsAggregator
	metrics *metrics.Metrics
	logger  zerolog.Logger
	now     func() time.Time
}

func NewService(repo Repository, tx db.Transactor, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		tx:     tx,
		events: websocket.NopPublisher{},
		stats:  NewStatsAggregator(time.Local),
		logger: logger.With().Str("domain", "appointment").Logger(),
		now:    time.Now,
	}
}

func (s *Service) SetPublisher(p websocket.Publisher) { s.events = p }

func (s *Service) SetMetrics(m *metrics.Metrics) { s.metrics = m }

// SetLocation sets the zone used for calendar days: stats windows and the
// daily queue.
func (s *Service) SetLocation(loc *time.Location) {
	s.stats = NewStatsAggregator(loc)
	s.stats.now = s.now
}

// SetClock replaces time.Now for check-in stamps and stats windows.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
	s.stats.now = now
}

func (s *Service) location() *time.Location {
	return s.stats.loc
}

func (s *Service) Create(ctx context.Context, a *Appointment) error {
	if a.PatientID == uuid.Nil {
		return apperr.Invalid("patient_id is required")
	}
	if a.DoctorID == uuid.Nil {
		return apperr.Invalid("doctor_id is required")
	}
	if a.AppointmentDate.IsZero() {
		return apperr.Invalid("appointment_date is required")
	}
	a.Status = normalizeStatus(a.Status)
	if a.Status != StatusPending && a.Status != StatusConfirmed {
		return apperr.Invalid("new appointments must be pending or confirmed, got %q", a.Status)
	}
	a.QueueNumber = nil
	a.CheckedInAt = nil

	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		busy, err := s.repo.DoctorBusyAt(ctx, a.DoctorID, a.AppointmentDate, uuid.Nil)
		if err != nil {
			return err
		}
		if busy {
			return ErrDoubleBook
		}
		return s.repo.Create(ctx, a)
	})
	if err != nil {
		return err
	}

	s.metrics.CountEvent("appointment", "created")
	s.publish(ctx, websocket.TopicAppointments, "appointment.created", a)
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.repo.GetByID(ctx, id)
}

// Reschedule changes date, visit type, reason and notes. Status changes go
// through UpdateStatus.
func (s *Service) Reschedule(ctx context.Context, id uuid.UUID, in *Appointment) (*Appointment, error) {
	var out *Appointment
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		cur, err := s.repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if isTerminal(cur.Status) {
			return apperr.Conflict("cannot modify a %s appointment", cur.Status)
		}
		if !in.AppointmentDate.IsZero() && !in.AppointmentDate.Equal(cur.AppointmentDate) {
			busy, err := s.repo.DoctorBusyAt(ctx, cur.DoctorID, in.AppointmentDate, cur.ID)
			if err != nil {
				return err
			}
			if busy {
				return ErrDoubleBook
			}
			cur.AppointmentDate = in.AppointmentDate
		}
		if in.VisitTypeID != nil {
			cur.VisitTypeID = in.VisitTypeID
		}
		if in.Reason != nil {
			cur.Reason = in.Reason
		}
		if in.Notes != nil {
			cur.Notes = in.Notes
		}
		out = cur
		return s.repo.Update(ctx, cur)
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, websocket.TopicAppointments, "appointment.updated", out)
	return out, nil
}

func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*Appointment, error) {
	status = strings.ToLower(strings.TrimSpace(status))
	if status == "" {
		return nil, apperr.Invalid("status is required")
	}

	var out *Appointment
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		cur, err := s.repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !canTransition(cur.Status, status) {
			return apperr.Conflict("cannot move appointment from %s to %s", cur.Status, status)
		}
		cur.Status = status
		out = cur
		return s.repo.Update(ctx, cur)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.CountEvent("appointment", status)
	s.publish(ctx, websocket.TopicAppointments, "appointment.status_changed", out)
	return out, nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.publish(ctx, websocket.TopicAppointments, "appointment.deleted", &Appointment{ID: id})
	return nil
}

func (s *Service) List(ctx context.Context, f Filter, limit, offset int) ([]*Appointment, int, error) {
	return s.repo.List(ctx, f, limit, offset)
}

// CheckIn puts a confirmed appointment into its doctor's queue for the day
// of the appointment, numbering from 1.
func (s *Service) CheckIn(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	var out *Appointment
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		cur, err := s.repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if cur.QueueNumber != nil {
			return ErrCheckedIn
		}
		if cur.Status != StatusConfirmed {
			return ErrNotCheckIn
		}
		at := s.now()
		cur.CheckedInAt = &at
		if err := s.repo.AssignQueueNumber(ctx, cur, s.dayStart(cur.AppointmentDate)); err != nil {
			return err
		}
		out = cur
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.CountEvent("appointment", "checked_in")
	s.publish(ctx, websocket.QueueTopic(out.DoctorID), "queue.checked_in", out)
	return out, nil
}

// Queue lists the checked-in appointments of a doctor for day, in queue order.
func (s *Service) Queue(ctx context.Context, doctorID uuid.UUID, day time.Time) ([]*Appointment, error) {
	return s.repo.ListQueue(ctx, doctorID, s.dayStart(day))
}

func (s *Service) dayStart(t time.Time) time.Time {
	y, m, d := t.In(s.location()).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, s.location())
}

// Stats loads the records matching f and aggregates them.
func (s *Service) Stats(ctx context.Context, f Filter) (StatsSummary, error) {
	records, err := s.repo.ListForStats(ctx, f)
	if err != nil {
		return StatsSummary{}, fmt.Errorf("load stats records: %w", err)
	}
	start := time.Now()
	summary := s.stats.Compute(records)
	took := time.Since(start)

	s.metrics.ObserveStats(len(records), took)
	s.logger.Debug().Int("records", len(records)).Dur("took", took).Msg("appointment stats computed")
	return summary, nil
}

func (s *Service) publish(ctx context.Context, topic, typ string, a *Appointment) {
	ev, err := websocket.NewEvent(topic, typ, "appointment", a.ID, a)
	if err == nil {
		err = s.events.Publish(ctx, ev)
	}
	if err != nil {
		s.logger.Warn().Err(err).Str("event", typ).Msg("publish appointment event")
	}
}
