package laboratory

import (
	"context"
	"strconv"
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
	requests RequestRepository
	results  ResultRepository
	tx       db.Transactor
	events   websocket.Publisher
	metrics  *metrics.Metrics
	logger   zerolog.Logger
	now      func() time.Time
}

func NewService(requests RequestRepository, results ResultRepository, tx db.Transactor, logger zerolog.Logger) *Service {
	return &Service{
		requests: requests,
		results:  results,
		tx:       tx,
		events:   websocket.NopPublisher{},
		logger:   logger.With().Str("domain", "laboratory").Logger(),
		now:      time.Now,
	}
}

func (s *Service) SetPublisher(p websocket.Publisher) { s.events = p }

func (s *Service) SetMetrics(m *metrics.Metrics) { s.metrics = m }

func (s *Service) CreateRequest(ctx context.Context, r *LabRequest) error {
	if r.PatientID == uuid.Nil {
		return apperr.Invalid("patient_id is required")
	}
	if r.DoctorID == uuid.Nil {
		return apperr.Invalid("doctor_id is required")
	}
	r.TestName = strings.TrimSpace(r.TestName)
	if r.TestName == "" {
		return apperr.Invalid("test_name is required")
	}
	r.Priority = strings.ToLower(strings.TrimSpace(r.Priority))
	if r.Priority == "" {
		r.Priority = PriorityRoutine
	}
	if !validPriorities[r.Priority] {
		return apperr.Invalid("priority must be routine, urgent or stat")
	}
	r.Status = StatusRequested
	r.RequestedAt = s.now()
	r.CompletedAt = nil
	r.Results = nil

	if err := s.requests.Create(ctx, r); err != nil {
		return err
	}
	s.metrics.CountEvent("lab_request", "requested")
	s.publish(ctx, "lab.requested", r)
	return nil
}

// GetRequest returns the request together with any recorded results.
func (s *Service) GetRequest(ctx context.Context, id uuid.UUID) (*LabRequest, error) {
	r, err := s.requests.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.Results, err = s.results.ListByRequest(ctx, id); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Service) ListRequests(ctx context.Context, f RequestFilter, limit, offset int) ([]*LabRequest, int, error) {
	f.Status = strings.ToLower(strings.TrimSpace(f.Status))
	f.Priority = strings.ToLower(strings.TrimSpace(f.Priority))
	return s.requests.List(ctx, f, limit, offset)
}

// UpdateStatus moves a request to in_progress or cancelled. Completion only
// happens by recording results.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*LabRequest, error) {
	status = strings.ToLower(strings.TrimSpace(status))
	if status == StatusCompleted {
		return nil, apperr.Invalid("requests are completed by recording results")
	}
	var out *LabRequest
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		r, err := s.requests.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if !canTransition(r.Status, status) {
			return apperr.Conflict("cannot move lab request from %s to %s", r.Status, status)
		}
		r.Status = status
		if err := s.requests.UpdateStatus(ctx, r); err != nil {
			return err
		}
		out = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.CountEvent("lab_request", status)
	s.publish(ctx, "lab."+status, out)
	return out, nil
}

// RecordResults stores results for an open request and completes it. A
// request still in requested state is started and completed in one go.
func (s *Service) RecordResults(ctx context.Context, id uuid.UUID, results []*LabResult, performedBy string) (*LabRequest, error) {
	if len(results) == 0 {
		return nil, apperr.Invalid("at least one result is required")
	}
	now := s.now()
	for i, res := range results {
		res.Parameter = strings.TrimSpace(res.Parameter)
		res.Value = strings.TrimSpace(res.Value)
		if res.Parameter == "" || res.Value == "" {
			return nil, apperr.Invalid("results[%d]: parameter and value are required", i)
		}
		res.RequestID = id
		res.RecordedAt = now
		if performedBy != "" {
			res.PerformedBy = &performedBy
		}
		if !res.Abnormal && res.ReferenceRange != nil {
			res.Abnormal = OutOfRange(res.Value, *res.ReferenceRange)
		}
	}

	var out *LabRequest
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		r, err := s.requests.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if r.Status != StatusRequested && r.Status != StatusInProgress {
			return apperr.Conflict("lab request is %s", r.Status)
		}
		if err := s.results.CreateBatch(ctx, results); err != nil {
			return err
		}
		r.Status = StatusCompleted
		r.CompletedAt = &now
		if err := s.requests.UpdateStatus(ctx, r); err != nil {
			return err
		}
		r.Results = results
		out = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	abnormal := 0
	for _, res := range results {
		if res.Abnormal {
			abnormal++
		}
	}
	if abnormal > 0 {
		s.logger.Info().Str("lab_request_id", id.String()).Int("abnormal", abnormal).Msg("abnormal lab results recorded")
	}
	s.metrics.CountEvent("lab_request", StatusCompleted)
	s.publish(ctx, "lab.completed", out)
	return out, nil
}

// OutOfRange reports whether a numeric value lies outside a "low-high"
// reference range such as "3.5-5.1". Ranges or values it cannot parse are
// never flagged.
func OutOfRange(value, refRange string) bool {
	v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return false
	}
	// Skip a leading sign so "-2-2" splits after the low bound.
	r := strings.TrimSpace(refRange)
	cut := strings.Index(r[min(1, len(r)):], "-")
	if cut < 0 {
		return false
	}
	cut += min(1, len(r))
	lo, err := strconv.ParseFloat(strings.TrimSpace(r[:cut]), 64)
	if err != nil {
		return false
	}
	hi, err := strconv.ParseFloat(strings.TrimSpace(r[cut+1:]), 64)
	if err != nil {
		return false
	}
	return v < lo || v > hi
}

func (s *Service) publish(ctx context.Context, typ string, r *LabRequest) {
	ev, err := websocket.NewEvent(websocket.TopicLab, typ, "lab_request", r.ID, r)
	if err != nil {
		s.logger.Error().Err(err).Str("event", typ).Msg("encode lab event")
		return
	}
	if err := s.events.Publish(ctx, ev); err != nil {
		s.logger.Warn().Err(err).Str("event", typ).Msg("publish lab event")
	}
}
