package programme

import (
	"context"
	"fmt"
	"regexp"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/ehr/vaccinations/internal/domain/eventlog"
	"github.com/ehr/vaccinations/internal/platform/db"
)

var programmeIDPattern = regexp.MustCompile(`^[a-z][a-z0-9-]{1,31}$`)

type Service struct {
	programmes ProgrammeRepository
	sessions   SessionRepository
	events     eventlog.Appender
	tx         db.TxRunner
}

func NewService(programmes ProgrammeRepository, sessions SessionRepository, events eventlog.Appender, tx db.TxRunner) *Service {
	return &Service{programmes: programmes, sessions: sessions, events: events, tx: tx}
}

// -- Programme --

func validateProgramme(p *Programme) error {
	if !programmeIDPattern.MatchString(p.ID) {
		return fmt.Errorf("invalid programme id: %q", p.ID)
	}
	if p.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(p.Sequence) == 0 {
		return fmt.Errorf("sequence must contain at least one dose")
	}
	if lo.Contains(p.Sequence, "") || lo.Contains(p.ImmunocompromisedSequence, "") {
		return fmt.Errorf("sequence codes must not be empty")
	}
	if len(p.Methods) == 0 {
		return fmt.Errorf("at least one method is required")
	}
	for _, m := range p.Methods {
		if !m.Valid() {
			return fmt.Errorf("invalid method: %s", m)
		}
	}
	if len(lo.Uniq(p.Methods)) != len(p.Methods) {
		return fmt.Errorf("methods must be unique")
	}
	for _, yg := range p.YearGroups {
		if yg < 0 || yg > 13 {
			return fmt.Errorf("invalid year group: %d", yg)
		}
	}
	return nil
}

func (s *Service) CreateProgramme(ctx context.Context, p *Programme) error {
	if err := validateProgramme(p); err != nil {
		return err
	}
	return s.programmes.Create(ctx, p)
}

func (s *Service) UpdateProgramme(ctx context.Context, p *Programme) error {
	if err := validateProgramme(p); err != nil {
		return err
	}
	return s.programmes.Update(ctx, p)
}

func (s *Service) GetProgramme(ctx context.Context, id string) (*Programme, error) {
	return s.programmes.GetByID(ctx, id)
}

func (s *Service) ListProgrammes(ctx context.Context) ([]*Programme, error) {
	return s.programmes.List(ctx)
}

// -- Session --

func (s *Service) validateSession(ctx context.Context, sess *Session) error {
	if sess.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(sess.ProgrammeIDs) == 0 {
		return fmt.Errorf("at least one programme is required")
	}
	for _, id := range sess.ProgrammeIDs {
		if _, err := s.programmes.GetByID(ctx, id); err != nil {
			return fmt.Errorf("unknown programme: %s", id)
		}
	}
	if sess.OpenAt != nil {
		if closeAt, ok := sess.CloseAt(); ok && DateOnly(*sess.OpenAt).After(closeAt) {
			return fmt.Errorf("open_at must be before the last session date")
		}
	}
	return nil
}

func (s *Service) CreateSession(ctx context.Context, sess *Session) error {
	if err := s.validateSession(ctx, sess); err != nil {
		return err
	}
	return s.sessions.Create(ctx, sess)
}

func (s *Service) UpdateSession(ctx context.Context, sess *Session) error {
	if err := s.validateSession(ctx, sess); err != nil {
		return err
	}
	return s.sessions.Update(ctx, sess)
}

func (s *Service) GetSession(ctx context.Context, id uuid.UUID) (*Session, error) {
	return s.sessions.GetByID(ctx, id)
}

func (s *Service) ListSessions(ctx context.Context, limit, offset int) ([]*Session, int, error) {
	return s.sessions.List(ctx, limit, offset)
}

// RecordAttendance writes the register entry and the matching register event
// in one transaction.
func (s *Service) RecordAttendance(ctx context.Context, sessionID, patientID uuid.UUID, a Attendance, actor string) error {
	if patientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	if a != AttendancePresent && a != AttendanceAbsent {
		return fmt.Errorf("invalid attendance: %q", a)
	}
	sess, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if !sess.RegistrationRequired {
		return fmt.Errorf("session %s does not take a register", sess.Name)
	}
	return s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.sessions.SetAttendance(ctx, sessionID, patientID, a); err != nil {
			return fmt.Errorf("set attendance: %w", err)
		}
		outcome := string(a)
		e := &eventlog.Event{
			PatientID:    patientID,
			Kind:         eventlog.KindRegister,
			Name:         "Attendance recorded",
			Outcome:      &outcome,
			ProgrammeIDs: sess.ProgrammeIDs,
			SessionID:    &sessionID,
		}
		if actor != "" {
			e.CreatedBy = &actor
		}
		return s.events.Append(ctx, e)
	})
}
