package patient

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
)

type mockRepo struct {
	store map[uuid.UUID]*Patient
}

func newMockRepo() *mockRepo {
	return &mockRepo{store: make(map[uuid.UUID]*Patient)}
}

func (m *mockRepo) Create(_ context.Context, p *Patient) error {
	p.ID = uuid.New()
	m.store[p.ID] = p
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	p, ok := m.store[id]
	if !ok {
		return nil, ErrNotFound
	}
	return p, nil
}

func (m *mockRepo) GetByNHSNumber(_ context.Context, n string) (*Patient, error) {
	for _, p := range m.store {
		if p.NHSNumber != nil && *p.NHSNumber == n {
			return p, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockRepo) Update(_ context.Context, p *Patient) error {
	if _, ok := m.store[p.ID]; !ok {
		return ErrNotFound
	}
	m.store[p.ID] = p
	return nil
}

func (m *mockRepo) List(_ context.Context, limit, offset int) ([]*Patient, int, error) {
	var out []*Patient
	for _, p := range m.store {
		out = append(out, p)
	}
	return out, len(out), nil
}

func newTestService() *Service {
	svc := NewService(newMockRepo())
	svc.now = func() time.Time { return time.Date(2025, 10, 19, 0, 0, 0, 0, time.UTC) }
	return svc
}

func strPtr(s string) *string { return &s }

func TestService_CreatePatient(t *testing.T) {
	svc := newTestService()
	p := &Patient{FirstName: "Ada", LastName: "Lovelace", DOB: time.Date(2012, 12, 1, 0, 0, 0, 0, time.UTC), NHSNumber: strPtr("9434765919")}
	if err := svc.CreatePatient(context.Background(), p); err != nil {
		t.Fatalf("CreatePatient: %v", err)
	}
	if p.ID == uuid.Nil {
		t.Error("expected ID assigned")
	}
}

func TestService_CreatePatient_DuplicateNHSNumber(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	dob := time.Date(2012, 12, 1, 0, 0, 0, 0, time.UTC)
	svc.CreatePatient(ctx, &Patient{FirstName: "Ada", LastName: "Lovelace", DOB: dob, NHSNumber: strPtr("9434765919")})
	err := svc.CreatePatient(ctx, &Patient{FirstName: "Ada", LastName: "King", DOB: dob, NHSNumber: strPtr("9434765919")})
	if err == nil {
		t.Error("expected duplicate nhs_number error")
	}
}

func TestService_CreatePatient_Validation(t *testing.T) {
	dob := time.Date(2012, 12, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		p    Patient
	}{
		{"missing first name", Patient{LastName: "L", DOB: dob}},
		{"missing last name", Patient{FirstName: "F", DOB: dob}},
		{"missing dob", Patient{FirstName: "F", LastName: "L"}},
		{"future dob", Patient{FirstName: "F", LastName: "L", DOB: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)}},
		{"bad nhs number", Patient{FirstName: "F", LastName: "L", DOB: dob, NHSNumber: strPtr("1234")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := tt.p
			if err := newTestService().CreatePatient(context.Background(), &p); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestService_UpdatePatient_NotFound(t *testing.T) {
	svc := newTestService()
	p := &Patient{ID: uuid.New(), FirstName: "F", LastName: "L", DOB: time.Date(2012, 1, 1, 0, 0, 0, 0, time.UTC)}
	if err := svc.UpdatePatient(context.Background(), p); err == nil {
		t.Error("expected not found error")
	}
}
