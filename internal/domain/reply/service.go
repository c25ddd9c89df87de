package reply

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/ehr/vaccinations/internal/domain/eventlog"
	"github.com/ehr/vaccinations/internal/domain/programme"
	"github.com/ehr/vaccinations/internal/platform/db"
)

// Catalogue resolves the programme and session a reply refers to.
type Catalogue interface {
	GetProgramme(ctx context.Context, id string) (*programme.Programme, error)
	GetSession(ctx context.Context, id uuid.UUID) (*programme.Session, error)
}

type Service struct {
	replies   Repository
	catalogue Catalogue
	events    eventlog.Appender
	tx        db.TxRunner
	now       func() time.Time
}

func NewService(replies Repository, catalogue Catalogue, events eventlog.Appender, tx db.TxRunner) *Service {
	return &Service{replies: replies, catalogue: catalogue, events: events, tx: tx, now: time.Now}
}

func (s *Service) validate(ctx context.Context, r *Reply) error {
	if r.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	if r.SessionID == uuid.Nil {
		return fmt.Errorf("session_id is required")
	}
	if r.Respondent.Relationship != RelationshipSelf && r.Respondent.Name == "" {
		return fmt.Errorf("respondent name is required")
	}
	if !r.Respondent.Relationship.Valid() {
		return fmt.Errorf("invalid respondent relationship: %q", r.Respondent.Relationship)
	}
	if !r.Decision.Valid() {
		return fmt.Errorf("invalid decision: %q", r.Decision)
	}
	if r.RefusalReason != nil && !r.Decision.Withholds() {
		return fmt.Errorf("refusal_reason is only allowed when consent is declined or refused")
	}
	prog, err := s.catalogue.GetProgramme(ctx, r.ProgrammeID)
	if err != nil {
		return fmt.Errorf("unknown programme: %s", r.ProgrammeID)
	}
	sess, err := s.catalogue.GetSession(ctx, r.SessionID)
	if err != nil {
		return fmt.Errorf("unknown session: %s", r.SessionID)
	}
	if !sess.IncludesProgramme(prog.ID) {
		return fmt.Errorf("session %s does not deliver %s", sess.Name, prog.ID)
	}
	if m := r.Decision.RestrictedMethod(); m != "" && !lo.Contains(prog.Methods, m) {
		return fmt.Errorf("%s does not offer %s vaccination", prog.Name, m)
	}
	return nil
}

// CreateReply stores a reply and supersedes the respondent's previous live
// reply for the same patient, programme and session.
func (s *Service) CreateReply(ctx context.Context, r *Reply) error {
	if err := s.validate(ctx, r); err != nil {
		return err
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.now().UTC()
	}
	r.Invalidated = false
	return s.tx.InTx(ctx, func(ctx context.Context) error {
		existing, err := s.replies.ListByPatientSession(ctx, r.PatientID, r.ProgrammeID, r.SessionID)
		if err != nil {
			return fmt.Errorf("list replies: %w", err)
		}
		for _, prev := range Live(existing) {
			if prev.Respondent.Key() != r.Respondent.Key() {
				continue
			}
			if err := s.invalidate(ctx, prev, r.Respondent.Name, "Superseded by a new reply"); err != nil {
				return err
			}
		}
		if err := s.replies.Create(ctx, r); err != nil {
			return fmt.Errorf("create reply: %w", err)
		}
		decision := string(r.Decision)
		return s.events.Append(ctx, &eventlog.Event{
			PatientID:    r.PatientID,
			CreatedAt:    r.CreatedAt,
			CreatedBy:    nonEmpty(r.Respondent.Name),
			Kind:         eventlog.KindConsent,
			Name:         "Consent response received",
			Outcome:      &decision,
			ProgrammeIDs: []string{r.ProgrammeID},
			SessionID:    &r.SessionID,
		})
	})
}

func (s *Service) GetReply(ctx context.Context, id uuid.UUID) (*Reply, error) {
	return s.replies.GetByID(ctx, id)
}

func (s *Service) ListReplies(ctx context.Context, patientID uuid.UUID, programmeID string, sessionID uuid.UUID) ([]*Reply, error) {
	return s.replies.ListByPatientSession(ctx, patientID, programmeID, sessionID)
}

// InvalidateReply withdraws a reply. The reply is kept and an event records why.
func (s *Service) InvalidateReply(ctx context.Context, id uuid.UUID, actor, note string) error {
	return s.tx.InTx(ctx, func(ctx context.Context) error {
		r, err := s.replies.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if r.Invalidated {
			return fmt.Errorf("reply %s is already invalidated", id)
		}
		return s.invalidate(ctx, r, actor, note)
	})
}

func (s *Service) invalidate(ctx context.Context, r *Reply, actor, note string) error {
	if err := s.replies.MarkInvalidated(ctx, r.ID); err != nil {
		return fmt.Errorf("invalidate reply %s: %w", r.ID, err)
	}
	r.Invalidated = true
	outcome := eventlog.OutcomeReplyInvalidated
	return s.events.Append(ctx, &eventlog.Event{
		PatientID:    r.PatientID,
		CreatedBy:    nonEmpty(actor),
		Kind:         eventlog.KindConsent,
		Name:         "Reply invalidated",
		Note:         nonEmpty(note),
		Outcome:      &outcome,
		ProgrammeIDs: []string{r.ProgrammeID},
		SessionID:    &r.SessionID,
	})
}

// ConfirmRefusal records that a follow-up with the family upheld a decline.
func (s *Service) ConfirmRefusal(ctx context.Context, patientID uuid.UUID, programmeID string, sessionID uuid.UUID, actor, note string) error {
	replies, err := s.replies.ListByPatientSession(ctx, patientID, programmeID, sessionID)
	if err != nil {
		return fmt.Errorf("list replies: %w", err)
	}
	if !lo.SomeBy(Live(replies), func(r *Reply) bool { return r.Decision == DecisionDeclined }) {
		return fmt.Errorf("no declined reply to confirm")
	}
	outcome := eventlog.OutcomeRefusalConfirmed
	return s.events.Append(ctx, &eventlog.Event{
		PatientID:    patientID,
		CreatedAt:    s.now().UTC(),
		CreatedBy:    nonEmpty(actor),
		Kind:         eventlog.KindConsent,
		Name:         "Refusal confirmed",
		Note:         nonEmpty(note),
		Outcome:      &outcome,
		ProgrammeIDs: []string{programmeID},
		SessionID:    &sessionID,
	})
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
