package outcome

import (
	"time"

	"github.com/google/uuid"

	"github.com/ehr/vaccinations/internal/domain/eventlog"
	"github.com/ehr/vaccinations/internal/domain/patient"
	"github.com/ehr/vaccinations/internal/domain/programme"
	"github.com/ehr/vaccinations/internal/domain/reply"
	"github.com/ehr/vaccinations/internal/domain/vaccination"
)

var (
	today = time.Date(2025, 10, 19, 0, 0, 0, 0, time.UTC)
	t0    = time.Date(2025, 9, 15, 9, 0, 0, 0, time.UTC)
)

func at(minutes int) time.Time { return t0.Add(time.Duration(minutes) * time.Minute) }

func hpvProgramme() *programme.Programme {
	return &programme.Programme{
		ID:         "hpv",
		Name:       "HPV",
		Sequence:   []string{"1P"},
		Methods:    []programme.Method{programme.MethodInjection},
		YearGroups: []int{8, 9, 10, 11},
	}
}

func fluProgramme() *programme.Programme {
	return &programme.Programme{
		ID:         "flu",
		Name:       "Flu",
		Sequence:   []string{"1P"},
		Methods:    []programme.Method{programme.MethodNasal, programme.MethodInjection},
		YearGroups: []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11},
	}
}

// year8 is in year 8 on today.
func year8() *patient.Patient {
	return &patient.Patient{ID: uuid.New(), FirstName: "Ada", LastName: "Lovelace", DOB: time.Date(2012, 12, 1, 0, 0, 0, 0, time.UTC)}
}

func session(programmeIDs ...string) *programme.Session {
	return &programme.Session{ID: uuid.New(), Name: "St Mary's", ProgrammeIDs: programmeIDs}
}

type fixture struct {
	patient   *patient.Patient
	programme *programme.Programme
	session   *programme.Session
	events    []*eventlog.Event
	replies   []*reply.Reply
	vaccs     []*vaccination.Vaccination
	seq       int64
}

func newFixture(p *programme.Programme) *fixture {
	return &fixture{patient: year8(), programme: p, session: session(p.ID)}
}

func (f *fixture) input() Input {
	return Input{
		PatientID:    f.patient.ID,
		ProgrammeID:  f.programme.ID,
		SessionID:    f.session.ID,
		Patient:      f.patient,
		Programme:    f.programme,
		Session:      f.session,
		Events:       f.events,
		Replies:      f.replies,
		Vaccinations: f.vaccs,
		Today:        today,
	}
}

func (f *fixture) event(kind eventlog.Kind, outcome string, when time.Time) *eventlog.Event {
	f.seq++
	e := &eventlog.Event{
		ID:           uuid.New(),
		PatientID:    f.patient.ID,
		CreatedAt:    when,
		Kind:         kind,
		Name:         string(kind),
		ProgrammeIDs: []string{f.programme.ID},
		Seq:          f.seq,
	}
	if outcome != "" {
		e.Outcome = &outcome
	}
	f.events = append(f.events, e)
	return e
}

func (f *fixture) invite(outcome string, when time.Time) *eventlog.Event {
	return f.event(eventlog.KindInvite, outcome, when)
}

func (f *fixture) screen(outcome string, when time.Time) *eventlog.Event {
	return f.event(eventlog.KindScreen, outcome, when)
}

var (
	mum = reply.Respondent{Name: "Jane Lovelace", Relationship: reply.RelationshipParent}
	dad = reply.Respondent{Name: "John Lovelace", Relationship: reply.RelationshipParent}
	kid = reply.Respondent{Name: "Ada Lovelace", Relationship: reply.RelationshipSelf}
)

func (f *fixture) reply(who reply.Respondent, d reply.Decision, when time.Time) *reply.Reply {
	r := &reply.Reply{
		ID:          uuid.New(),
		CreatedAt:   when,
		PatientID:   f.patient.ID,
		ProgrammeID: f.programme.ID,
		SessionID:   f.session.ID,
		Respondent:  who,
		Decision:    d,
	}
	f.replies = append(f.replies, r)
	return r
}

func (f *fixture) vaccination(sessionID uuid.UUID, o vaccination.Outcome, when time.Time) *vaccination.Vaccination {
	v := &vaccination.Vaccination{
		ID:          uuid.New(),
		PatientID:   f.patient.ID,
		ProgrammeID: f.programme.ID,
		SessionID:   sessionID,
		Outcome:     o,
		CreatedAt:   when,
		UpdatedAt:   when,
	}
	f.vaccs = append(f.vaccs, v)
	return v
}

func (f *fixture) consent() consentResult {
	return resolveConsent(consentInput{
		replies:     f.replies,
		events:      f.events,
		programme:   f.programme,
		programmeID: f.programme.ID,
		sessionID:   f.session.ID,
	})
}
