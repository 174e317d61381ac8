package patient

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/medcore/hms/internal/platform/apperr"
)

type mockRepo struct {
	items map[uuid.UUID]*Patient
}

func newMockRepo() *mockRepo {
	return &mockRepo{items: make(map[uuid.UUID]*Patient)}
}

func (m *mockRepo) Create(_ context.Context, p *Patient) error {
	p.ID = uuid.New()
	cp := *p
	m.items[p.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	p, ok := m.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockRepo) GetByMRN(_ context.Context, mrn string) (*Patient, error) {
	for _, p := range m.items {
		if p.MRN == mrn {
			return p, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockRepo) Update(_ context.Context, p *Patient) error {
	cur, ok := m.items[p.ID]
	if !ok {
		return ErrNotFound
	}
	cp := *p
	cp.MRN = cur.MRN
	m.items[p.ID] = &cp
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.items[id]; !ok {
		return ErrNotFound
	}
	delete(m.items, id)
	return nil
}

func (m *mockRepo) Search(_ context.Context, query string, limit, offset int) ([]*Patient, int, error) {
	var out []*Patient
	q := strings.ToLower(query)
	for _, p := range m.items {
		if q == "" || strings.Contains(strings.ToLower(p.FirstName+" "+p.LastName), q) || strings.EqualFold(p.MRN, query) {
			out = append(out, p)
		}
	}
	return out, len(out), nil
}

var fixedNow = time.Date(2024, time.March, 9, 8, 0, 0, 0, time.UTC)

func newTestService() (*Service, *mockRepo) {
	repo := newMockRepo()
	svc := NewService(repo)
	svc.now = func() time.Time { return fixedNow }
	return svc, repo
}

func TestNewMRN_Format(t *testing.T) {
	re := regexp.MustCompile(`^MRN-20240309-[A-Z2-9]{6}$`)
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		mrn := NewMRN(fixedNow)
		if !re.MatchString(mrn) {
			t.Fatalf("unexpected MRN format %q", mrn)
		}
		seen[mrn] = true
	}
	if len(seen) < 45 {
		t.Errorf("expected MRNs to be mostly unique, got %d distinct of 50", len(seen))
	}
}

func TestService_Register(t *testing.T) {
	svc, repo := newTestService()
	p := &Patient{FirstName: " Maria ", LastName: "Lopez", Gender: "FEMALE"}

	if err := svc.Register(context.Background(), p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(p.MRN, "MRN-20240309-") {
		t.Errorf("expected MRN for registration day, got %s", p.MRN)
	}
	if p.FirstName != "Maria" || p.Gender != "female" {
		t.Errorf("expected normalized fields, got %+v", p)
	}
	if len(repo.items) != 1 {
		t.Errorf("expected patient stored")
	}
}

func TestService_Register_DefaultsGender(t *testing.T) {
	svc, _ := newTestService()
	p := &Patient{FirstName: "A", LastName: "B"}
	if err := svc.Register(context.Background(), p); err != nil {
		t.Fatal(err)
	}
	if p.Gender != "unknown" {
		t.Errorf("expected unknown gender, got %s", p.Gender)
	}
}

func TestService_Register_Validation(t *testing.T) {
	svc, _ := newTestService()
	future := fixedNow.Add(48 * time.Hour)
	blood := "C+"
	email := "nope"

	tests := []struct {
		name string
		p    *Patient
	}{
		{"missing names", &Patient{}},
		{"bad gender", &Patient{FirstName: "A", LastName: "B", Gender: "robot"}},
		{"future birth", &Patient{FirstName: "A", LastName: "B", BirthDate: &future}},
		{"bad blood type", &Patient{FirstName: "A", LastName: "B", BloodType: &blood}},
		{"bad email", &Patient{FirstName: "A", LastName: "B", Email: &email}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := svc.Register(context.Background(), tt.p); !errors.Is(err, apperr.ErrInvalid) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestService_UpdateKeepsMRN(t *testing.T) {
	svc, _ := newTestService()
	p := &Patient{FirstName: "A", LastName: "B"}
	_ = svc.Register(context.Background(), p)
	mrn := p.MRN

	out, err := svc.Update(context.Background(), &Patient{ID: p.ID, FirstName: "Anne", LastName: "B", MRN: "MRN-HACKED"})
	if err != nil {
		t.Fatal(err)
	}
	if out.MRN != mrn || out.FirstName != "Anne" {
		t.Errorf("unexpected update result: %+v", out)
	}
}

func TestService_GetByMRN_Normalizes(t *testing.T) {
	svc, _ := newTestService()
	p := &Patient{FirstName: "A", LastName: "B"}
	_ = svc.Register(context.Background(), p)

	got, err := svc.GetByMRN(context.Background(), "  "+strings.ToLower(p.MRN))
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != p.ID {
		t.Errorf("expected lookup by lower-case MRN to work")
	}
}

func TestPatient_Age(t *testing.T) {
	birth := time.Date(2000, time.March, 10, 0, 0, 0, 0, time.UTC)
	p := &Patient{BirthDate: &birth}
	if got := p.Age(fixedNow); got != 23 {
		t.Errorf("expected 23 the day before birthday, got %d", got)
	}
	if got := p.Age(fixedNow.AddDate(0, 0, 1)); got != 24 {
		t.Errorf("expected 24 on birthday, got %d", got)
	}
	if (&Patient{}).Age(fixedNow) != -1 {
		t.Error("expected -1 without birth date")
	}
}
