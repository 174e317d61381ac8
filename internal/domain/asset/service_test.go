package asset

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/medcore/hms/internal/platform/apperr"
)

type mockRepo struct {
	items map[uuid.UUID]*Asset
}

func newMockRepo() *mockRepo {
	return &mockRepo{items: make(map[uuid.UUID]*Asset)}
}

func (m *mockRepo) Create(_ context.Context, a *Asset) error {
	for _, cur := range m.items {
		if cur.Tag == a.Tag {
			return ErrDuplicateTag
		}
	}
	a.ID = uuid.New()
	cp := *a
	m.items[a.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Asset, error) {
	a, ok := m.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *mockRepo) GetByTag(_ context.Context, tag string) (*Asset, error) {
	for _, a := range m.items {
		if a.Tag == tag {
			cp := *a
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockRepo) Update(_ context.Context, a *Asset) error {
	if _, ok := m.items[a.ID]; !ok {
		return ErrNotFound
	}
	cp := *a
	m.items[a.ID] = &cp
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.items, id)
	return nil
}

func (m *mockRepo) List(_ context.Context, f Filter, limit, offset int) ([]*Asset, int, error) {
	var out []*Asset
	for _, a := range m.items {
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		out = append(out, a)
	}
	return out, len(out), nil
}

type passTx struct{}

func (passTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error { return fn(ctx) }

var assetNow = time.Date(2024, time.May, 15, 9, 0, 0, 0, time.UTC)

func newTestService(known ...uuid.UUID) (*Service, *mockRepo) {
	repo := newMockRepo()
	check := func(_ context.Context, id uuid.UUID) error {
		for _, k := range known {
			if k == id {
				return nil
			}
		}
		return apperr.NotFound("department")
	}
	svc := NewService(repo, passTx{}, check)
	svc.now = func() time.Time { return assetNow }
	return svc, repo
}

func addAsset(t *testing.T, svc *Service, tag string) *Asset {
	t.Helper()
	a := &Asset{Tag: tag, Name: "Infusion pump", Category: "Infusion"}
	if err := svc.Create(context.Background(), a); err != nil {
		t.Fatalf("create asset: %v", err)
	}
	return a
}

func TestService_Create(t *testing.T) {
	svc, _ := newTestService()
	a := addAsset(t, svc, " ip-001 ")
	if a.Tag != "IP-001" || a.Category != "infusion" || a.Status != StatusAvailable {
		t.Errorf("unexpected asset %+v", a)
	}
	if err := svc.Create(context.Background(), &Asset{Tag: "IP-001", Name: "x", Category: "y"}); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("expected duplicate tag conflict, got %v", err)
	}
	if err := svc.Create(context.Background(), &Asset{Tag: "IP-002", Name: "x", Category: "y", Status: StatusInUse}); !errors.Is(err, apperr.ErrInvalid) {
		t.Errorf("expected invalid initial status, got %v", err)
	}
}

func TestService_AssignRelease(t *testing.T) {
	dept := uuid.New()
	svc, _ := newTestService(dept)
	a := addAsset(t, svc, "IP-001")
	ctx := context.Background()

	ward := "Ward 3B"
	out, err := svc.Assign(ctx, a.ID, dept, &ward)
	if err != nil {
		t.Fatal(err)
	}
	if out.Status != StatusInUse || *out.DepartmentID != dept || !out.AssignedAt.Equal(assetNow) || *out.Location != ward {
		t.Errorf("unexpected assigned asset %+v", out)
	}
	if _, err := svc.Assign(ctx, a.ID, dept, nil); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("expected conflict assigning twice, got %v", err)
	}
	if err := svc.Delete(ctx, a.ID); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("expected conflict deleting an in-use asset, got %v", err)
	}

	out, err = svc.Release(ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if out.Status != StatusAvailable || out.DepartmentID != nil || out.AssignedAt != nil {
		t.Errorf("unexpected released asset %+v", out)
	}
	if _, err := svc.Release(ctx, a.ID); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("expected conflict releasing twice, got %v", err)
	}
}

func TestService_Assign_UnknownDepartment(t *testing.T) {
	svc, _ := newTestService()
	a := addAsset(t, svc, "IP-001")
	if _, err := svc.Assign(context.Background(), a.ID, uuid.New(), nil); !errors.Is(err, apperr.ErrInvalid) {
		t.Errorf("expected invalid department, got %v", err)
	}
}

func TestService_UpdateStatus(t *testing.T) {
	dept := uuid.New()
	svc, _ := newTestService(dept)
	a := addAsset(t, svc, "IP-001")
	ctx := context.Background()

	if _, err := svc.Assign(ctx, a.ID, dept, nil); err != nil {
		t.Fatal(err)
	}
	out, err := svc.UpdateStatus(ctx, a.ID, "MAINTENANCE")
	if err != nil {
		t.Fatal(err)
	}
	if out.DepartmentID != nil {
		t.Errorf("expected maintenance to clear the assignment")
	}
	out, err = svc.UpdateStatus(ctx, a.ID, StatusAvailable)
	if err != nil {
		t.Fatal(err)
	}
	if out.LastServicedAt == nil || !out.LastServicedAt.Equal(assetNow) {
		t.Errorf("expected last_serviced_at stamped")
	}
	if _, err := svc.UpdateStatus(ctx, a.ID, StatusInUse); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("expected in_use only through assign, got %v", err)
	}
	if _, err := svc.UpdateStatus(ctx, a.ID, StatusRetired); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.UpdateStatus(ctx, a.ID, StatusAvailable); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("expected retired to be terminal, got %v", err)
	}
	if _, err := svc.UpdateStatus(ctx, a.ID, "lost"); !errors.Is(err, apperr.ErrInvalid) {
		t.Errorf("expected invalid status, got %v", err)
	}
}

func TestService_Update_KeepsAssignment(t *testing.T) {
	dept := uuid.New()
	svc, _ := newTestService(dept)
	a := addAsset(t, svc, "IP-001")
	ctx := context.Background()
	if _, err := svc.Assign(ctx, a.ID, dept, nil); err != nil {
		t.Fatal(err)
	}
	out, err := svc.Update(ctx, a.ID, &Asset{Tag: "ip-001", Name: "Pump v2", Category: "infusion", Status: StatusRetired})
	if err != nil {
		t.Fatal(err)
	}
	if out.Status != StatusInUse || out.DepartmentID == nil || out.Name != "Pump v2" {
		t.Errorf("unexpected update %+v", out)
	}
}
