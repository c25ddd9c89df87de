package patientsession

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/ehr/vaccinations/internal/domain/eventlog"
	"github.com/ehr/vaccinations/internal/domain/outcome"
	"github.com/ehr/vaccinations/internal/domain/patient"
	"github.com/ehr/vaccinations/internal/domain/programme"
	"github.com/ehr/vaccinations/internal/domain/reply"
	"github.com/ehr/vaccinations/internal/domain/vaccination"
	"github.com/ehr/vaccinations/internal/platform/db"
)

var errDown = errors.New("connection refused")

type mockPatients struct {
	patients map[uuid.UUID]*patient.Patient
	fail     bool
}

func (m *mockPatients) GetPatient(_ context.Context, id uuid.UUID) (*patient.Patient, error) {
	if m.fail {
		return nil, errDown
	}
	p, ok := m.patients[id]
	if !ok {
		return nil, patient.ErrNotFound
	}
	return p, nil
}

type mockCatalogue struct {
	programmes map[string]*programme.Programme
	sessions   map[uuid.UUID]*programme.Session
}

func (m *mockCatalogue) GetProgramme(_ context.Context, id string) (*programme.Programme, error) {
	p, ok := m.programmes[id]
	if !ok {
		return nil, programme.ErrNotFound
	}
	return p, nil
}

func (m *mockCatalogue) GetSession(_ context.Context, id uuid.UUID) (*programme.Session, error) {
	s, ok := m.sessions[id]
	if !ok {
		return nil, programme.ErrNotFound
	}
	return s, nil
}

type mockEvents struct {
	mu     sync.Mutex
	events map[uuid.UUID][]*eventlog.Event
	calls  int
	active int
	peak   int
}

func (m *mockEvents) ListByPatient(_ context.Context, patientID uuid.UUID) ([]*eventlog.Event, error) {
	m.mu.Lock()
	m.calls++
	m.active++
	m.peak = max(m.peak, m.active)
	m.mu.Unlock()

	time.Sleep(time.Millisecond)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.active--
	return m.events[patientID], nil
}

func (m *mockEvents) ListPatientsInSession(_ context.Context, sessionID uuid.UUID) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []uuid.UUID
	seen := map[uuid.UUID]bool{}
	for _, evs := range m.events {
		for _, e := range evs {
			if e.Kind == eventlog.KindSelect && e.InSession(sessionID) && !seen[e.PatientID] {
				seen[e.PatientID] = true
				ids = append(ids, e.PatientID)
			}
		}
	}
	return ids, nil
}

type mockReplies struct {
	replies []*reply.Reply
}

func (m *mockReplies) ListReplies(_ context.Context, patientID uuid.UUID, programmeID string, sessionID uuid.UUID) ([]*reply.Reply, error) {
	var out []*reply.Reply
	for _, r := range m.replies {
		if r.PatientID == patientID && r.ProgrammeID == programmeID && r.SessionID == sessionID {
			out = append(out, r)
		}
	}
	return out, nil
}

type mockVaccinations struct {
	vaccs []*vaccination.Vaccination
	fail  bool
}

func (m *mockVaccinations) ListByPatient(_ context.Context, patientID uuid.UUID, programmeID string) ([]*vaccination.Vaccination, error) {
	if m.fail {
		return nil, errDown
	}
	var out []*vaccination.Vaccination
	for _, v := range m.vaccs {
		if v.PatientID == patientID && (programmeID == "" || v.ProgrammeID == programmeID) {
			out = append(out, v)
		}
	}
	return out, nil
}

type testEnv struct {
	svc          *Service
	reg          *prometheus.Registry
	patients     *mockPatients
	catalogue    *mockCatalogue
	events       *mockEvents
	replies      *mockReplies
	vaccinations *mockVaccinations
	session      *programme.Session
}

var today = time.Date(2025, 10, 19, 13, 45, 0, 0, time.UTC)

func newTestEnv() *testEnv {
	hpv := &programme.Programme{
		ID:         "hpv",
		Name:       "HPV",
		Sequence:   []string{"1P"},
		Methods:    []programme.Method{programme.MethodInjection},
		YearGroups: []int{8, 9, 10, 11},
	}
	sess := &programme.Session{ID: uuid.New(), Name: "St Mary's", ProgrammeIDs: []string{"hpv"}}
	env := &testEnv{
		reg:          prometheus.NewRegistry(),
		patients:     &mockPatients{patients: map[uuid.UUID]*patient.Patient{}},
		catalogue:    &mockCatalogue{programmes: map[string]*programme.Programme{"hpv": hpv}, sessions: map[uuid.UUID]*programme.Session{sess.ID: sess}},
		events:       &mockEvents{events: map[uuid.UUID][]*eventlog.Event{}},
		replies:      &mockReplies{},
		vaccinations: &mockVaccinations{},
		session:      sess,
	}
	env.svc = NewService(env.patients, env.catalogue, env.events, env.replies, env.vaccinations,
		outcome.NewEngine(zerolog.Nop()), NewMetrics(env.reg))
	env.svc.SetClock(func() time.Time { return today })
	return env
}

// enrol adds a year 8 pupil selected into the session.
func (env *testEnv) enrol(name string) *patient.Patient {
	p := &patient.Patient{ID: uuid.New(), FirstName: name, LastName: "Smith", DOB: time.Date(2012, 12, 1, 0, 0, 0, 0, time.UTC)}
	env.patients.patients[p.ID] = p
	sid := env.session.ID
	env.events.events[p.ID] = append(env.events.events[p.ID], &eventlog.Event{
		ID: uuid.New(), PatientID: p.ID, CreatedAt: today.Add(-72 * time.Hour),
		Kind: eventlog.KindSelect, Name: "Added to session", ProgrammeIDs: []string{"hpv"}, SessionID: &sid,
		Seq: int64(len(env.events.events) + 1),
	})
	return p
}

func (env *testEnv) consent(p *patient.Patient, d reply.Decision) {
	env.replies.replies = append(env.replies.replies, &reply.Reply{
		ID: uuid.New(), CreatedAt: today.Add(-48 * time.Hour), PatientID: p.ID, ProgrammeID: "hpv", SessionID: env.session.ID,
		Respondent: reply.Respondent{Name: "Parent " + p.FirstName, Relationship: reply.RelationshipParent},
		Decision:   d,
	})
}

func (env *testEnv) vaccinate(p *patient.Patient) {
	env.vaccinations.vaccs = append(env.vaccinations.vaccs, &vaccination.Vaccination{
		ID: uuid.New(), PatientID: p.ID, ProgrammeID: "hpv", SessionID: env.session.ID,
		Outcome: vaccination.OutcomeVaccinated, CreatedAt: today,
	})
}

func TestGet_Due(t *testing.T) {
	env := newTestEnv()
	p := env.enrol("Ada")
	env.consent(p, reply.DecisionGiven)

	ps, err := env.svc.Get(context.Background(), p.ID, "hpv", env.session.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ps.Consent != outcome.ConsentGiven || ps.Report != outcome.ReportDue {
		t.Errorf("expected Given/Due, got %s/%s", ps.Consent, ps.Report)
	}
	if ps.NextActivity != outcome.ActivityRecord {
		t.Errorf("expected record, got %s", ps.NextActivity)
	}
}

func TestGet_Vaccinated(t *testing.T) {
	env := newTestEnv()
	p := env.enrol("Ada")
	env.consent(p, reply.DecisionGiven)
	env.vaccinate(p)

	ps, err := env.svc.Get(context.Background(), p.ID, "hpv", env.session.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ps.Outcome != outcome.CaptureVaccinated || ps.Report != outcome.ReportVaccinated {
		t.Errorf("expected Vaccinated/Vaccinated, got %s/%s", ps.Outcome, ps.Report)
	}
	if ps.Doses.Remaining != 0 {
		t.Errorf("expected no doses remaining, got %d", ps.Doses.Remaining)
	}
}

func TestGet_UsesClockForEligibility(t *testing.T) {
	env := newTestEnv()
	p := env.enrol("Ada")
	env.consent(p, reply.DecisionGiven)
	env.svc.SetClock(func() time.Time { return time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC) })

	ps, err := env.svc.Get(context.Background(), p.ID, "hpv", env.session.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ps.Report != outcome.ReportIneligible {
		t.Errorf("expected Ineligible a year earlier, got %s", ps.Report)
	}
}

func TestGet_MissingReferencesAreAnomalies(t *testing.T) {
	env := newTestEnv()
	ps, err := env.svc.Get(context.Background(), uuid.New(), "mmr", uuid.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ps.Anomalies) != 3 {
		t.Errorf("expected anomalies for patient, programme and session, got %v", ps.Anomalies)
	}
	if ps.Report != "" || ps.Register != "" {
		t.Errorf("expected blank axes, got %s/%s", ps.Report, ps.Register)
	}
	if got := testutil.ToFloat64(env.svc.metrics.anomalies.WithLabelValues(string(outcome.AxisReport))); got != 2 {
		t.Errorf("expected 2 report anomalies counted, got %v", got)
	}
}

func TestGet_StorageErrors(t *testing.T) {
	env := newTestEnv()
	p := env.enrol("Ada")
	env.vaccinations.fail = true
	if _, err := env.svc.Get(context.Background(), p.ID, "hpv", env.session.ID); !errors.Is(err, errDown) {
		t.Errorf("expected storage error, got %v", err)
	}

	env = newTestEnv()
	p = env.enrol("Ada")
	env.patients.fail = true
	if _, err := env.svc.Get(context.Background(), p.ID, "hpv", env.session.ID); !errors.Is(err, errDown) {
		t.Errorf("expected storage error, got %v", err)
	}
}

func TestGet_RecordsMetrics(t *testing.T) {
	env := newTestEnv()
	p := env.enrol("Ada")
	env.consent(p, reply.DecisionGiven)
	for i := 0; i < 2; i++ {
		if _, err := env.svc.Get(context.Background(), p.ID, "hpv", env.session.ID); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if got := testutil.ToFloat64(env.svc.metrics.outcomes.WithLabelValues("report", "Due", "hpv")); got != 2 {
		t.Errorf("expected 2 Due reports counted, got %v", got)
	}
	if got := testutil.CollectAndCount(env.svc.metrics.latency); got != 1 {
		t.Errorf("expected one latency series, got %d", got)
	}
}

func TestSessionOutcomes(t *testing.T) {
	env := newTestEnv()
	ada := env.enrol("Ada")
	env.consent(ada, reply.DecisionGiven)
	bob := env.enrol("Bob")
	env.consent(bob, reply.DecisionRefused)
	cat := env.enrol("Cat")
	env.consent(cat, reply.DecisionGiven)
	env.vaccinate(cat)
	env.enrol("Dan")

	rollup, err := env.svc.SessionOutcomes(context.Background(), env.session.ID, "hpv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rollup.Patients) != 4 {
		t.Fatalf("expected 4 patients, got %d", len(rollup.Patients))
	}
	want := map[outcome.ReportOutcome]int{
		outcome.ReportDue:        1,
		outcome.ReportRefused:    1,
		outcome.ReportVaccinated: 1,
		outcome.ReportConsent:    1,
	}
	for k, v := range want {
		if rollup.Reports[k] != v {
			t.Errorf("expected %d %s, got %d", v, k, rollup.Reports[k])
		}
	}
	if rollup.Activities[outcome.ActivityConsent] != 1 || rollup.Activities[outcome.ActivityRecord] != 1 {
		t.Errorf("unexpected activities %v", rollup.Activities)
	}
	for _, ps := range rollup.Patients {
		if ps == nil {
			t.Fatal("expected every patient to be derived")
		}
		if ps.SessionID != env.session.ID {
			t.Errorf("expected session %s, got %s", env.session.ID, ps.SessionID)
		}
	}
	if !rollup.Today.Equal(programme.DateOnly(today)) {
		t.Errorf("expected today truncated to the day, got %v", rollup.Today)
	}
}

func TestSessionOutcomes_BoundedParallelism(t *testing.T) {
	env := newTestEnv()
	env.svc.parallelism = 1
	for i := 0; i < 5; i++ {
		env.enrol("Pupil")
	}
	rollup, err := env.svc.SessionOutcomes(context.Background(), env.session.ID, "hpv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rollup.Patients) != 5 {
		t.Errorf("expected 5 patients, got %d", len(rollup.Patients))
	}
	// One call to list who is in the session does not read events per patient.
	if env.events.calls != 5 {
		t.Errorf("expected one event load per patient, got %d", env.events.calls)
	}
}

func TestSessionOutcomes_SerialOnScopedConnection(t *testing.T) {
	env := newTestEnv()
	for i := 0; i < 4; i++ {
		env.enrol("Pupil")
	}
	ctx := context.WithValue(context.Background(), db.DBConnKey, &pgxpool.Conn{})
	if _, err := env.svc.SessionOutcomes(ctx, env.session.ID, "hpv"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env.events.peak != 1 {
		t.Errorf("expected queries on a scoped connection to run one at a time, peak was %d", env.events.peak)
	}
}

func TestSessionOutcomes_UnknownSession(t *testing.T) {
	env := newTestEnv()
	if _, err := env.svc.SessionOutcomes(context.Background(), uuid.New(), "hpv"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestSessionOutcomes_StorageError(t *testing.T) {
	env := newTestEnv()
	env.enrol("Ada")
	env.vaccinations.fail = true
	if _, err := env.svc.SessionOutcomes(context.Background(), env.session.ID, "hpv"); !errors.Is(err, errDown) {
		t.Errorf("expected storage error, got %v", err)
	}
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.Observe(&outcome.PatientSession{})
	m.ObserveDuration("patient", time.Second)
}
