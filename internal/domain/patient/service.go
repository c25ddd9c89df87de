package patient

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

func (s *Service) validate(p *Patient) error {
	if p.FirstName == "" {
		return fmt.Errorf("first_name is required")
	}
	if p.LastName == "" {
		return fmt.Errorf("last_name is required")
	}
	if p.DOB.IsZero() {
		return fmt.Errorf("dob is required")
	}
	if p.DOB.After(s.now()) {
		return fmt.Errorf("dob must not be in the future")
	}
	if p.NHSNumber != nil && !ValidNHSNumber(*p.NHSNumber) {
		return fmt.Errorf("invalid nhs_number: %s", *p.NHSNumber)
	}
	return nil
}

func (s *Service) CreatePatient(ctx context.Context, p *Patient) error {
	if err := s.validate(p); err != nil {
		return err
	}
	if p.NHSNumber != nil {
		if existing, err := s.repo.GetByNHSNumber(ctx, *p.NHSNumber); err == nil && existing != nil {
			return fmt.Errorf("nhs_number already registered to patient %s", existing.ID)
		}
	}
	return s.repo.Create(ctx, p)
}

func (s *Service) UpdatePatient(ctx context.Context, p *Patient) error {
	if err := s.validate(p); err != nil {
		return err
	}
	return s.repo.Update(ctx, p)
}

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListPatients(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	return s.repo.List(ctx, limit, offset)
}
