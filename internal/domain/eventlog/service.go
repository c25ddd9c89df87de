package eventlog

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Append validates e and adds it to the patient's log. Events are the only way
// to change derived state, so malformed entries are refused here.
func (s *Service) Append(ctx context.Context, e *Event) error {
	if e.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	if !e.Kind.Valid() {
		return fmt.Errorf("invalid kind: %q", e.Kind)
	}
	if e.Name == "" {
		return fmt.Errorf("name is required")
	}
	switch e.Kind {
	case KindScreen:
		if len(e.ProgrammeIDs) == 0 {
			return fmt.Errorf("screen events require programme_ids")
		}
		if !lo.Contains(ScreenOutcomes, e.OutcomeValue()) {
			return fmt.Errorf("invalid screen outcome: %q", e.OutcomeValue())
		}
	case KindSelect, KindRegister, KindRecord:
		if e.SessionID == nil {
			return fmt.Errorf("%s events require session_id", e.Kind)
		}
	case KindInvite, KindConsent:
		if len(e.ProgrammeIDs) == 0 {
			return fmt.Errorf("%s events require programme_ids", e.Kind)
		}
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now().UTC()
	}
	if e.ProgrammeIDs == nil {
		e.ProgrammeIDs = []string{}
	}
	if err := s.repo.Append(ctx, e); err != nil {
		return fmt.Errorf("append %s event: %w", e.Kind, err)
	}
	return nil
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Event, error) {
	return s.repo.ListByPatient(ctx, patientID)
}

func (s *Service) ListPatientsInSession(ctx context.Context, sessionID uuid.UUID) ([]uuid.UUID, error) {
	return s.repo.ListPatientsInSession(ctx, sessionID)
}
