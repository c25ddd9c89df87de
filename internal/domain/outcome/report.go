package outcome

import (
	"time"

	"github.com/samber/lo"

	"github.com/ehr/vaccinations/internal/domain/patient"
	"github.com/ehr/vaccinations/internal/domain/programme"
	"github.com/ehr/vaccinations/internal/domain/vaccination"
)

// Doses is the patient's progress through the programme's schedule.
type Doses struct {
	Needed    int    `json:"doses_needed"`
	Given     int    `json:"doses_given"`
	Remaining int    `json:"doses_remaining"`
	Next      string `json:"next_dose_sequence,omitempty"`
}

// countDoses works out the next dose from the position in the schedule, not
// from arithmetic on dose codes, because booster codes do not follow on from
// primary ones.
func countDoses(p *programme.Programme, immunocompromised bool, vaccs []*vaccination.Vaccination) Doses {
	seq := p.SequenceFor(immunocompromised)
	d := Doses{Needed: len(seq)}
	d.Given = lo.CountBy(vaccs, func(v *vaccination.Vaccination) bool { return v.Outcome.Given() })
	d.Remaining = max(d.Needed-d.Given, 0)
	if d.Remaining > 0 {
		d.Next = seq[d.Needed-d.Remaining]
	}
	return d
}

type reportInput struct {
	patient   *patient.Patient
	programme *programme.Programme
	// vaccinations holds the programme's records from every session.
	vaccinations []*vaccination.Vaccination
	// record is the vaccination recorded at the current session, if any.
	record  *vaccination.Vaccination
	consent ConsentOutcome
	screen  ScreenOutcome
	capture CaptureOutcome
	today   time.Time
}

func ineligible(pat *patient.Patient, p *programme.Programme, today time.Time) bool {
	lowest, ok := p.LowestYearGroup()
	return ok && pat.YearGroup(today) < lowest
}

// deferred is true when the patient was seen at this session but could not be
// vaccinated, or triage put vaccination off. Absences at earlier sessions are
// excluded so the patient is offered the vaccine again.
func deferred(record *vaccination.Vaccination, capture CaptureOutcome) bool {
	if record != nil {
		switch record.Outcome {
		case vaccination.OutcomeAbsent, vaccination.OutcomeRefused, vaccination.OutcomeUnwell:
			return true
		}
	}
	return capture == CaptureDelayVaccination || capture == CaptureDoNotVaccinate
}

// resolveReport evaluates the rules in priority order; the first match wins.
func resolveReport(in reportInput) (ReportOutcome, Doses) {
	d := countDoses(in.programme, in.patient.Immunocompromised, in.vaccinations)
	switch {
	case ineligible(in.patient, in.programme, in.today):
		return ReportIneligible, d
	case d.Remaining == 0:
		return ReportVaccinated, d
	case deferred(in.record, in.capture):
		return ReportDeferred, d
	case in.consent.Grants() && in.screen.ClearsVaccination():
		return ReportDue, d
	case in.consent.Withholds():
		return ReportRefused, d
	case in.screen == ScreenNeedsTriage:
		return ReportTriage, d
	}
	return ReportConsent, d
}
