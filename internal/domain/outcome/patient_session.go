package outcome

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/ehr/vaccinations/internal/domain/eventlog"
	"github.com/ehr/vaccinations/internal/domain/patient"
	"github.com/ehr/vaccinations/internal/domain/programme"
	"github.com/ehr/vaccinations/internal/domain/reply"
	"github.com/ehr/vaccinations/internal/domain/vaccination"
)

// Input is a snapshot of the evidence for one patient, programme and session.
// The IDs are always set; the entities may be nil when a reference does not
// resolve.
type Input struct {
	PatientID   uuid.UUID
	ProgrammeID string
	SessionID   uuid.UUID

	Patient   *patient.Patient
	Programme *programme.Programme
	Session   *programme.Session

	// Events is the patient's whole log.
	Events []*eventlog.Event
	// Replies are the replies for this patient, programme and session,
	// including invalidated ones.
	Replies []*reply.Reply
	// Vaccinations are the patient's records for any programme and session.
	Vaccinations []*vaccination.Vaccination

	Today time.Time
}

// PatientSession is the derived, read-only view of a patient in a session for
// one programme. Empty values mean the field could not be derived; Anomalies
// says why.
type PatientSession struct {
	PatientID        uuid.UUID               `json:"patient_id"`
	ProgrammeID      string                  `json:"programme_id"`
	SessionID        uuid.UUID               `json:"session_id"`
	Consent          ConsentOutcome          `json:"consent"`
	Screen           ScreenOutcome           `json:"screen,omitempty"`
	Triage           TriageStatus            `json:"triage"`
	Register         RegisterOutcome         `json:"register,omitempty"`
	Outcome          CaptureOutcome          `json:"outcome,omitempty"`
	Report           ReportOutcome           `json:"report,omitempty"`
	Doses            *Doses                  `json:"doses,omitempty"`
	VaccineMethod    programme.Method        `json:"vaccine_method,omitempty"`
	NextActivity     Activity                `json:"next_activity"`
	ConsentWindow    programme.ConsentWindow `json:"consent_window,omitempty"`
	CaptureUpdatedAt *time.Time              `json:"capture_updated_at,omitempty"`
	Anomalies        []Anomaly               `json:"anomalies,omitempty"`
}

// Engine turns an Input into a PatientSession. It holds no state beyond its
// logger and never returns an error: broken references blank the affected
// fields and are logged.
type Engine struct {
	logger zerolog.Logger
}

func NewEngine(logger zerolog.Logger) *Engine {
	return &Engine{logger: logger.With().Str("component", "outcome").Logger()}
}

// PatientSession derives every axis. Each step only reads the results of the
// steps before it: consent, screen, registration, capture, report, method and
// finally the next activity.
func (e *Engine) PatientSession(in Input) *PatientSession {
	ps, an := derive(in)
	if len(an) > 0 {
		ps.Anomalies = an
		for _, a := range an {
			e.logger.Warn().
				Str("patient_id", in.PatientID.String()).
				Str("programme_id", in.ProgrammeID).
				Str("session_id", in.SessionID.String()).
				Str("axis", string(a.Axis)).
				Msg(a.Message)
		}
	}
	return ps
}

func derive(in Input) (*PatientSession, anomalies) {
	var an anomalies
	ps := &PatientSession{PatientID: in.PatientID, ProgrammeID: in.ProgrammeID, SessionID: in.SessionID}

	if in.Programme == nil {
		an.add(AxisReport, "programme %s not found", in.ProgrammeID)
	}
	if in.Session == nil {
		an.add(AxisRegister, "session %s not found", in.SessionID)
	} else if !in.Session.IncludesProgramme(in.ProgrammeID) {
		an.add(AxisRegister, "session %s does not deliver %s", in.SessionID, in.ProgrammeID)
	}
	if in.Patient == nil {
		an.add(AxisReport, "patient %s not found", in.PatientID)
	}

	replies := lo.Filter(in.Replies, func(r *reply.Reply, _ int) bool {
		return r.PatientID == in.PatientID && r.ProgrammeID == in.ProgrammeID && r.SessionID == in.SessionID
	})
	if n := len(in.Replies) - len(replies); n > 0 {
		an.add(AxisConsent, "ignored %d replies for another patient, programme or session", n)
	}
	vaccs := lo.Filter(in.Vaccinations, func(v *vaccination.Vaccination, _ int) bool {
		return v.PatientID == in.PatientID && v.ProgrammeID == in.ProgrammeID
	})

	consent := resolveConsent(consentInput{
		replies:     replies,
		events:      in.Events,
		programme:   in.Programme,
		programmeID: in.ProgrammeID,
		sessionID:   in.SessionID,
	})
	ps.Consent = consent.outcome
	ps.Screen, ps.Triage = resolveScreen(ps.Consent, consent.current, in.Events, in.ProgrammeID, &an)

	record := sessionRecord(vaccs, in.SessionID, &an)
	if record != nil {
		changed := record.LastChanged()
		ps.CaptureUpdatedAt = &changed
	}

	canReport := in.Programme != nil && in.Patient != nil
	if in.Session != nil {
		prior := ReportOutcome("")
		if canReport {
			earlier := lo.Filter(vaccs, func(v *vaccination.Vaccination, _ int) bool { return v.SessionID != in.SessionID })
			prior, _ = resolveReport(reportInput{
				patient:      in.Patient,
				programme:    in.Programme,
				vaccinations: earlier,
				consent:      ps.Consent,
				screen:       ps.Screen,
				today:        in.Today,
			})
		}
		ps.Register = resolveRegistration(in.Session, in.PatientID, prior)
		ps.ConsentWindow = in.Session.ConsentWindowAt(in.Today)
	}

	ps.Outcome = resolveCapture(record, ps.Consent, ps.Screen, &an)

	if canReport {
		report, doses := resolveReport(reportInput{
			patient:      in.Patient,
			programme:    in.Programme,
			vaccinations: vaccs,
			record:       record,
			consent:      ps.Consent,
			screen:       ps.Screen,
			capture:      ps.Outcome,
			today:        in.Today,
		})
		ps.Report, ps.Doses = report, &doses
	}
	if in.Programme != nil {
		ps.VaccineMethod = resolveMethod(in.Programme, ps.Consent, ps.Screen)
	}

	ps.NextActivity = nextActivity(ps)
	return ps, an
}
