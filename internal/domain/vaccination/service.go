package vaccination

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/ehr/vaccinations/internal/domain/eventlog"
	"github.com/ehr/vaccinations/internal/domain/patient"
	"github.com/ehr/vaccinations/internal/domain/programme"
	"github.com/ehr/vaccinations/internal/platform/db"
)

// Catalogue resolves the programme and session a record refers to.
type Catalogue interface {
	GetProgramme(ctx context.Context, id string) (*programme.Programme, error)
	GetSession(ctx context.Context, id uuid.UUID) (*programme.Session, error)
}

// PatientGetter resolves the patient a record refers to.
type PatientGetter interface {
	GetPatient(ctx context.Context, id uuid.UUID) (*patient.Patient, error)
}

type Service struct {
	vaccinations Repository
	catalogue    Catalogue
	patients     PatientGetter
	events       eventlog.Appender
	tx           db.TxRunner
}

func NewService(repo Repository, catalogue Catalogue, patients PatientGetter, events eventlog.Appender, tx db.TxRunner) *Service {
	return &Service{vaccinations: repo, catalogue: catalogue, patients: patients, events: events, tx: tx}
}

func (s *Service) validate(ctx context.Context, v *Vaccination) error {
	if v.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	if v.SessionID == uuid.Nil {
		return fmt.Errorf("session_id is required")
	}
	if !v.Outcome.Valid() {
		return fmt.Errorf("invalid outcome: %q", v.Outcome)
	}
	pat, err := s.patients.GetPatient(ctx, v.PatientID)
	if err != nil {
		return fmt.Errorf("unknown patient: %s", v.PatientID)
	}
	prog, err := s.catalogue.GetProgramme(ctx, v.ProgrammeID)
	if err != nil {
		return fmt.Errorf("unknown programme: %s", v.ProgrammeID)
	}
	sess, err := s.catalogue.GetSession(ctx, v.SessionID)
	if err != nil {
		return fmt.Errorf("unknown session: %s", v.SessionID)
	}
	if !sess.IncludesProgramme(prog.ID) {
		return fmt.Errorf("session %s does not deliver %s", sess.Name, prog.ID)
	}
	if v.Method != nil && !lo.Contains(prog.Methods, *v.Method) {
		return fmt.Errorf("%s is not offered by %s", *v.Method, prog.Name)
	}
	if v.DoseSequence != nil && !lo.Contains(prog.SequenceFor(pat.Immunocompromised), *v.DoseSequence) {
		return fmt.Errorf("dose sequence %s is not part of the %s schedule", *v.DoseSequence, prog.Name)
	}
	if v.Outcome.Administered() {
		if v.Method == nil {
			return fmt.Errorf("method is required when a dose was given")
		}
		if v.DoseSequence == nil {
			return fmt.Errorf("dose_sequence is required when a dose was given")
		}
	}
	return nil
}

// CreateVaccination records the session outcome and appends a record event.
// A patient has at most one record per programme and session; corrections go
// through UpdateVaccination.
func (s *Service) CreateVaccination(ctx context.Context, v *Vaccination) error {
	if err := s.validate(ctx, v); err != nil {
		return err
	}
	return s.tx.InTx(ctx, func(ctx context.Context) error {
		existing, err := s.vaccinations.ListByPatient(ctx, v.PatientID, v.ProgrammeID)
		if err != nil {
			return fmt.Errorf("list vaccinations: %w", err)
		}
		if lo.SomeBy(existing, func(e *Vaccination) bool { return e.SessionID == v.SessionID }) {
			return fmt.Errorf("a %s record already exists for this session", v.ProgrammeID)
		}
		if err := s.vaccinations.Create(ctx, v); err != nil {
			return fmt.Errorf("create vaccination: %w", err)
		}
		outcome := string(v.Outcome)
		return s.events.Append(ctx, &eventlog.Event{
			PatientID:    v.PatientID,
			CreatedAt:    v.CreatedAt,
			CreatedBy:    v.CreatedBy,
			Kind:         eventlog.KindRecord,
			Name:         "Vaccination outcome recorded",
			Note:         v.Note,
			Outcome:      &outcome,
			ProgrammeIDs: []string{v.ProgrammeID},
			SessionID:    &v.SessionID,
		})
	})
}

// UpdateVaccination corrects a record in place. The patient, programme and
// session it belongs to cannot change.
func (s *Service) UpdateVaccination(ctx context.Context, v *Vaccination) error {
	current, err := s.vaccinations.GetByID(ctx, v.ID)
	if err != nil {
		return err
	}
	v.PatientID = current.PatientID
	v.ProgrammeID = current.ProgrammeID
	v.SessionID = current.SessionID
	v.CreatedAt = current.CreatedAt
	v.CreatedBy = current.CreatedBy
	if err := s.validate(ctx, v); err != nil {
		return err
	}
	return s.vaccinations.Update(ctx, v)
}

func (s *Service) GetVaccination(ctx context.Context, id uuid.UUID) (*Vaccination, error) {
	return s.vaccinations.GetByID(ctx, id)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, programmeID string) ([]*Vaccination, error) {
	return s.vaccinations.ListByPatient(ctx, patientID, programmeID)
}

func (s *Service) ListBySession(ctx context.Context, sessionID uuid.UUID, limit, offset int) ([]*Vaccination, int, error) {
	return s.vaccinations.ListBySession(ctx, sessionID, limit, offset)
}

// RegistryPayload returns the FHIR Immunization for a record whose programme
// syncs to the national registry.
func (s *Service) RegistryPayload(ctx context.Context, id uuid.UUID) (map[string]interface{}, error) {
	v, err := s.vaccinations.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	prog, err := s.catalogue.GetProgramme(ctx, v.ProgrammeID)
	if err != nil {
		return nil, fmt.Errorf("load programme %s: %w", v.ProgrammeID, err)
	}
	if !prog.SyncToRegistry {
		return nil, fmt.Errorf("%s results are not sent to the registry", prog.Name)
	}
	pat, err := s.patients.GetPatient(ctx, v.PatientID)
	if err != nil {
		return nil, fmt.Errorf("load patient %s: %w", v.PatientID, err)
	}
	nhs := ""
	if pat.NHSNumber != nil {
		nhs = *pat.NHSNumber
	}
	return v.ToFHIR(prog, nhs), nil
}
