package laboratory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medcore/hms/internal/platform/apperr"
	"github.com/medcore/hms/internal/platform/websocket"
)

// -- Mock Repositories --

type mockRequestRepo struct {
	items map[uuid.UUID]*LabRequest
}

func newMockRequestRepo() *mockRequestRepo {
	return &mockRequestRepo{items: make(map[uuid.UUID]*LabRequest)}
}

func (m *mockRequestRepo) Create(_ context.Context, r *LabRequest) error {
	r.ID = uuid.New()
	cp := *r
	m.items[r.ID] = &cp
	return nil
}

func (m *mockRequestRepo) GetByID(_ context.Context, id uuid.UUID) (*LabRequest, error) {
	r, ok := m.items[id]
	if !ok {
		return nil, ErrRequestNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *mockRequestRepo) UpdateStatus(_ context.Context, r *LabRequest) error {
	cur, ok := m.items[r.ID]
	if !ok {
		return ErrRequestNotFound
	}
	cur.Status = r.Status
	cur.CompletedAt = r.CompletedAt
	return nil
}

func (m *mockRequestRepo) List(_ context.Context, f RequestFilter, limit, offset int) ([]*LabRequest, int, error) {
	var out []*LabRequest
	for _, r := range m.items {
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		if f.Priority != "" && r.Priority != f.Priority {
			continue
		}
		out = append(out, r)
	}
	return out, len(out), nil
}

type mockResultRepo struct {
	items []*LabResult
	fail  error
}

func (m *mockResultRepo) CreateBatch(_ context.Context, results []*LabResult) error {
	if m.fail != nil {
		return m.fail
	}
	for _, r := range results {
		r.ID = uuid.New()
		m.items = append(m.items, r)
	}
	return nil
}

func (m *mockResultRepo) ListByRequest(_ context.Context, requestID uuid.UUID) ([]*LabResult, error) {
	out := []*LabResult{}
	for _, r := range m.items {
		if r.RequestID == requestID {
			out = append(out, r)
		}
	}
	return out, nil
}

type passTx struct{}

func (passTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error { return fn(ctx) }

type recordingPublisher struct {
	mu     sync.Mutex
	events []websocket.Event
}

func (p *recordingPublisher) Publish(_ context.Context, ev websocket.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Type
	}
	return out
}

var labNow = time.Date(2024, time.May, 15, 14, 0, 0, 0, time.UTC)

func newTestService() (*Service, *mockRequestRepo, *mockResultRepo, *recordingPublisher) {
	reqs := newMockRequestRepo()
	res := &mockResultRepo{}
	pub := &recordingPublisher{}
	svc := NewService(reqs, res, passTx{}, zerolog.Nop())
	svc.SetPublisher(pub)
	svc.now = func() time.Time { return labNow }
	return svc, reqs, res, pub
}

func newRequest(t *testing.T, svc *Service, priority string) *LabRequest {
	t.Helper()
	r := &LabRequest{PatientID: uuid.New(), DoctorID: uuid.New(), TestName: "CBC", Priority: priority}
	if err := svc.CreateRequest(context.Background(), r); err != nil {
		t.Fatalf("create request: %v", err)
	}
	return r
}

func strPtr(s string) *string { return &s }

// -- Tests --

func TestService_CreateRequest_Defaults(t *testing.T) {
	svc, _, _, pub := newTestService()
	r := newRequest(t, svc, "")
	if r.Priority != PriorityRoutine || r.Status != StatusRequested || !r.RequestedAt.Equal(labNow) {
		t.Errorf("unexpected defaults: %+v", r)
	}
	if got := pub.types(); len(got) != 1 || got[0] != "lab.requested" {
		t.Errorf("expected lab.requested event, got %v", got)
	}
	if pub.events[0].Topic != websocket.TopicLab {
		t.Errorf("expected lab topic, got %s", pub.events[0].Topic)
	}
}

func TestService_CreateRequest_Validation(t *testing.T) {
	svc, _, _, _ := newTestService()
	tests := []struct {
		name string
		r    *LabRequest
	}{
		{"no patient", &LabRequest{DoctorID: uuid.New(), TestName: "CBC"}},
		{"no doctor", &LabRequest{PatientID: uuid.New(), TestName: "CBC"}},
		{"no test", &LabRequest{PatientID: uuid.New(), DoctorID: uuid.New()}},
		{"bad priority", &LabRequest{PatientID: uuid.New(), DoctorID: uuid.New(), TestName: "CBC", Priority: "asap"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := svc.CreateRequest(context.Background(), tt.r); !errors.Is(err, apperr.ErrInvalid) {
				t.Errorf("expected invalid, got %v", err)
			}
		})
	}
}

func TestService_UpdateStatus(t *testing.T) {
	svc, _, _, _ := newTestService()
	r := newRequest(t, svc, "stat")

	out, err := svc.UpdateStatus(context.Background(), r.ID, "IN_PROGRESS")
	if err != nil {
		t.Fatal(err)
	}
	if out.Status != StatusInProgress {
		t.Errorf("expected in_progress, got %s", out.Status)
	}
	if _, err := svc.UpdateStatus(context.Background(), r.ID, StatusRequested); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("expected conflict moving back to requested, got %v", err)
	}
	if _, err := svc.UpdateStatus(context.Background(), r.ID, StatusCompleted); !errors.Is(err, apperr.ErrInvalid) {
		t.Errorf("expected completion via status to be rejected, got %v", err)
	}
}

func TestService_RecordResults_CompletesRequest(t *testing.T) {
	svc, reqs, res, pub := newTestService()
	r := newRequest(t, svc, "urgent")

	out, err := svc.RecordResults(context.Background(), r.ID, []*LabResult{
		{Parameter: "Hemoglobin", Value: "10.1", Unit: strPtr("g/dL"), ReferenceRange: strPtr("12.0-16.0")},
		{Parameter: "WBC", Value: "7.2", ReferenceRange: strPtr("4.0-11.0")},
	}, "tech-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Status != StatusCompleted || out.CompletedAt == nil {
		t.Errorf("expected completed request, got %+v", out)
	}
	if reqs.items[r.ID].Status != StatusCompleted {
		t.Errorf("expected stored request completed")
	}
	if len(res.items) != 2 {
		t.Fatalf("expected 2 stored results, got %d", len(res.items))
	}
	if !res.items[0].Abnormal || res.items[1].Abnormal {
		t.Errorf("expected only hemoglobin flagged abnormal")
	}
	if res.items[0].PerformedBy == nil || *res.items[0].PerformedBy != "tech-1" {
		t.Errorf("expected performed_by to be set")
	}
	types := pub.types()
	if types[len(types)-1] != "lab.completed" {
		t.Errorf("expected lab.completed last, got %v", types)
	}

	got, err := svc.GetRequest(context.Background(), r.ID)
	if err != nil || len(got.Results) != 2 {
		t.Errorf("expected request with 2 results, got %v (%v)", got, err)
	}
}

func TestService_RecordResults_RejectsCompleted(t *testing.T) {
	svc, _, _, _ := newTestService()
	r := newRequest(t, svc, "")
	results := []*LabResult{{Parameter: "Glucose", Value: "90"}}
	if _, err := svc.RecordResults(context.Background(), r.ID, results, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.RecordResults(context.Background(), r.ID, results, ""); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("expected conflict on completed request, got %v", err)
	}
}

func TestService_RecordResults_Validation(t *testing.T) {
	svc, _, _, _ := newTestService()
	r := newRequest(t, svc, "")
	if _, err := svc.RecordResults(context.Background(), r.ID, nil, ""); !errors.Is(err, apperr.ErrInvalid) {
		t.Errorf("expected invalid for no results, got %v", err)
	}
	if _, err := svc.RecordResults(context.Background(), r.ID, []*LabResult{{Parameter: "x"}}, ""); !errors.Is(err, apperr.ErrInvalid) {
		t.Errorf("expected invalid for missing value, got %v", err)
	}
}

func TestService_RecordResults_StoreFailureKeepsRequestOpen(t *testing.T) {
	svc, reqs, res, _ := newTestService()
	r := newRequest(t, svc, "")
	res.fail = errors.New("disk full")

	if _, err := svc.RecordResults(context.Background(), r.ID, []*LabResult{{Parameter: "Na", Value: "140"}}, ""); err == nil {
		t.Fatal("expected error")
	}
	if reqs.items[r.ID].Status != StatusRequested {
		t.Errorf("expected request to stay requested, got %s", reqs.items[r.ID].Status)
	}
}

func TestOutOfRange(t *testing.T) {
	tests := []struct {
		value, rng string
		want       bool
	}{
		{"10.1", "12.0-16.0", true},
		{"17", "12.0-16.0", true},
		{"12", "12.0-16.0", false},
		{"-3", "-2-2", true},
		{"0", "-2-2", false},
		{"positive", "negative", false},
		{"5", "<10", false},
		{"5", "", false},
	}
	for _, tt := range tests {
		if got := OutOfRange(tt.value, tt.rng); got != tt.want {
			t.Errorf("OutOfRange(%q, %q) = %v, want %v", tt.value, tt.rng, got, tt.want)
		}
	}
}
