package patientsession

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/ehr/vaccinations/internal/domain/eventlog"
	"github.com/ehr/vaccinations/internal/domain/outcome"
	"github.com/ehr/vaccinations/internal/domain/patient"
	"github.com/ehr/vaccinations/internal/domain/programme"
	"github.com/ehr/vaccinations/internal/domain/reply"
	"github.com/ehr/vaccinations/internal/domain/vaccination"
	"github.com/ehr/vaccinations/internal/platform/db"
)

// ErrSessionNotFound is returned by SessionOutcomes when the session does not exist.
var ErrSessionNotFound = errors.New("session not found")

const defaultParallelism = 8

type PatientGetter interface {
	GetPatient(ctx context.Context, id uuid.UUID) (*patient.Patient, error)
}

type Catalogue interface {
	GetProgramme(ctx context.Context, id string) (*programme.Programme, error)
	GetSession(ctx context.Context, id uuid.UUID) (*programme.Session, error)
}

type EventLister interface {
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*eventlog.Event, error)
	ListPatientsInSession(ctx context.Context, sessionID uuid.UUID) ([]uuid.UUID, error)
}

type ReplyLister interface {
	ListReplies(ctx context.Context, patientID uuid.UUID, programmeID string, sessionID uuid.UUID) ([]*reply.Reply, error)
}

type VaccinationLister interface {
	ListByPatient(ctx context.Context, patientID uuid.UUID, programmeID string) ([]*vaccination.Vaccination, error)
}

// Service loads the evidence for patient sessions and hands it to the engine.
// Nothing it returns is stored.
type Service struct {
	patients     PatientGetter
	catalogue    Catalogue
	events       EventLister
	replies      ReplyLister
	vaccinations VaccinationLister
	engine       *outcome.Engine
	metrics      *Metrics
	now          func() time.Time
	parallelism  int
}

func NewService(patients PatientGetter, catalogue Catalogue, events EventLister, replies ReplyLister, vaccinations VaccinationLister, engine *outcome.Engine, metrics *Metrics) *Service {
	return &Service{
		patients:     patients,
		catalogue:    catalogue,
		events:       events,
		replies:      replies,
		vaccinations: vaccinations,
		engine:       engine,
		metrics:      metrics,
		now:          time.Now,
		parallelism:  defaultParallelism,
	}
}

// SetClock overrides the source of today's date.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Service) today() time.Time {
	return programme.DateOnly(s.now())
}

// Get derives one patient session. References that do not resolve are
// reported as anomalies on the result; only storage failures are errors.
func (s *Service) Get(ctx context.Context, patientID uuid.UUID, programmeID string, sessionID uuid.UUID) (*outcome.PatientSession, error) {
	start := time.Now()
	defer func() { s.metrics.ObserveDuration("patient", time.Since(start)) }()

	in := outcome.Input{PatientID: patientID, ProgrammeID: programmeID, SessionID: sessionID, Today: s.today()}

	g, gctx := s.group(ctx, 0)
	g.Go(func() error {
		p, err := s.programme(gctx, programmeID)
		in.Programme = p
		return err
	})
	g.Go(func() error {
		sess, err := s.session(gctx, sessionID)
		in.Session = sess
		return err
	})
	s.gatherPatient(gctx, g, &in)
	if err := g.Wait(); err != nil {
		return nil, err
	}

	ps := s.engine.PatientSession(in)
	s.metrics.Observe(ps)
	return ps, nil
}

// Rollup is every patient selected into a session, derived for one programme.
type Rollup struct {
	SessionID   uuid.UUID                     `json:"session_id"`
	ProgrammeID string                        `json:"programme_id"`
	Today       time.Time                     `json:"today"`
	Patients    []*outcome.PatientSession     `json:"patients"`
	Reports     map[outcome.ReportOutcome]int `json:"reports"`
	Activities  map[outcome.Activity]int      `json:"next_activities"`
}

// SessionOutcomes derives the patient session of everyone selected into
// sessionID, in selection order.
func (s *Service) SessionOutcomes(ctx context.Context, sessionID uuid.UUID, programmeID string) (*Rollup, error) {
	start := time.Now()
	defer func() { s.metrics.ObserveDuration("session", time.Since(start)) }()

	today := s.today()
	var (
		sess *programme.Session
		prog *programme.Programme
		ids  []uuid.UUID
	)
	g, gctx := s.group(ctx, 0)
	g.Go(func() (err error) {
		sess, err = s.session(gctx, sessionID)
		return err
	})
	g.Go(func() (err error) {
		prog, err = s.programme(gctx, programmeID)
		return err
	})
	g.Go(func() error {
		var err error
		if ids, err = s.events.ListPatientsInSession(gctx, sessionID); err != nil {
			return fmt.Errorf("listing patients in session: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrSessionNotFound
	}

	results := make([]*outcome.PatientSession, len(ids))
	g, gctx = s.group(ctx, s.parallelism)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			in := outcome.Input{
				PatientID:   id,
				ProgrammeID: programmeID,
				SessionID:   sessionID,
				Programme:   prog,
				Session:     sess,
				Today:       today,
			}
			inner, ictx := s.group(gctx, 0)
			s.gatherPatient(ictx, inner, &in)
			if err := inner.Wait(); err != nil {
				return err
			}
			results[i] = s.engine.PatientSession(in)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, ps := range results {
		s.metrics.Observe(ps)
	}
	return &Rollup{
		SessionID:   sessionID,
		ProgrammeID: programmeID,
		Today:       today,
		Patients:    results,
		Reports:     lo.CountValuesBy(results, func(ps *outcome.PatientSession) outcome.ReportOutcome { return ps.Report }),
		Activities:  lo.CountValuesBy(results, func(ps *outcome.PatientSession) outcome.Activity { return ps.NextActivity }),
	}, nil
}

// group returns an errgroup for loading evidence. A request scoped to one
// organisation connection runs its queries one at a time, since a pgx
// connection cannot serve concurrent queries.
func (s *Service) group(ctx context.Context, limit int) (*errgroup.Group, context.Context) {
	g, gctx := errgroup.WithContext(ctx)
	if db.ConnFromContext(ctx) != nil || db.TxFromContext(ctx) != nil {
		limit = 1
	}
	if limit > 0 {
		g.SetLimit(limit)
	}
	return g, gctx
}

// gatherPatient schedules the per-patient lookups on g. Each goroutine writes
// a different field of in.
func (s *Service) gatherPatient(ctx context.Context, g *errgroup.Group, in *outcome.Input) {
	g.Go(func() error {
		p, err := s.patients.GetPatient(ctx, in.PatientID)
		if errors.Is(err, patient.ErrNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("loading patient: %w", err)
		}
		in.Patient = p
		return nil
	})
	g.Go(func() error {
		events, err := s.events.ListByPatient(ctx, in.PatientID)
		if err != nil {
			return fmt.Errorf("loading events: %w", err)
		}
		in.Events = events
		return nil
	})
	g.Go(func() error {
		replies, err := s.replies.ListReplies(ctx, in.PatientID, in.ProgrammeID, in.SessionID)
		if err != nil {
			return fmt.Errorf("loading replies: %w", err)
		}
		in.Replies = replies
		return nil
	})
	g.Go(func() error {
		vaccs, err := s.vaccinations.ListByPatient(ctx, in.PatientID, in.ProgrammeID)
		if err != nil {
			return fmt.Errorf("loading vaccinations: %w", err)
		}
		in.Vaccinations = vaccs
		return nil
	})
}

func (s *Service) programme(ctx context.Context, id string) (*programme.Programme, error) {
	p, err := s.catalogue.GetProgramme(ctx, id)
	if errors.Is(err, programme.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading programme: %w", err)
	}
	return p, nil
}

func (s *Service) session(ctx context.Context, id uuid.UUID) (*programme.Session, error) {
	sess, err := s.catalogue.GetSession(ctx, id)
	if errors.Is(err, programme.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}
	return sess, nil
}
