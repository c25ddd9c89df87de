// Package outcome derives the status of a patient in a vaccination session
// from the patient's event log, consent replies, vaccination records and the
// programme and session configuration. Nothing here is stored; every value is
// recomputed from its evidence on each read.
package outcome

import "fmt"

// ConsentOutcome is the reconciled answer of every respondent.
type ConsentOutcome string

const (
	ConsentNoRequest      ConsentOutcome = "NoRequest"
	ConsentNoResponse     ConsentOutcome = "NoResponse"
	ConsentInconsistent   ConsentOutcome = "Inconsistent"
	ConsentGiven          ConsentOutcome = "Given"
	ConsentGivenNasal     ConsentOutcome = "GivenNasal"
	ConsentGivenInjection ConsentOutcome = "GivenInjection"
	ConsentDeclined       ConsentOutcome = "Declined"
	ConsentRefused        ConsentOutcome = "Refused"
	ConsentFinalRefusal   ConsentOutcome = "FinalRefusal"
)

// Grants reports whether consent allows vaccination by some method.
func (c ConsentOutcome) Grants() bool {
	switch c {
	case ConsentGiven, ConsentGivenNasal, ConsentGivenInjection:
		return true
	}
	return false
}

// Withholds reports whether consent was declined or refused.
func (c ConsentOutcome) Withholds() bool {
	switch c {
	case ConsentDeclined, ConsentRefused, ConsentFinalRefusal:
		return true
	}
	return false
}

// Unresolved reports whether someone still has to obtain or clarify consent.
func (c ConsentOutcome) Unresolved() bool {
	switch c {
	case ConsentNoRequest, ConsentNoResponse, ConsentInconsistent:
		return true
	}
	return false
}

// ScreenOutcome is the latest clinical triage decision. The empty value means
// no triage was needed.
type ScreenOutcome string

const (
	ScreenVaccinate          ScreenOutcome = "Vaccinate"
	ScreenVaccinateInjection ScreenOutcome = "VaccinateInjection"
	ScreenVaccinateNasal     ScreenOutcome = "VaccinateNasal"
	ScreenNeedsTriage        ScreenOutcome = "NeedsTriage"
	ScreenDelayVaccination   ScreenOutcome = "DelayVaccination"
	ScreenDoNotVaccinate     ScreenOutcome = "DoNotVaccinate"
)

// ParseScreenOutcome maps the outcome recorded on a screen event.
func ParseScreenOutcome(s string) (ScreenOutcome, bool) {
	switch o := ScreenOutcome(s); o {
	case ScreenVaccinate, ScreenVaccinateInjection, ScreenVaccinateNasal,
		ScreenNeedsTriage, ScreenDelayVaccination, ScreenDoNotVaccinate:
		return o, true
	}
	return "", false
}

// ClearsVaccination reports whether screening lets vaccination go ahead.
func (s ScreenOutcome) ClearsVaccination() bool {
	switch s {
	case "", ScreenVaccinate, ScreenVaccinateInjection, ScreenVaccinateNasal:
		return true
	}
	return false
}

// TriageStatus summarises whether triage is outstanding.
type TriageStatus string

const (
	TriageNotNeeded TriageStatus = "NotNeeded"
	TriageNeeded    TriageStatus = "Needed"
	TriageCompleted TriageStatus = "Completed"
)

// RegisterOutcome is attendance on the session day.
type RegisterOutcome string

const (
	RegisterPending  RegisterOutcome = "Pending"
	RegisterPresent  RegisterOutcome = "Present"
	RegisterAbsent   RegisterOutcome = "Absent"
	RegisterComplete RegisterOutcome = "Complete"
)

// CaptureOutcome is what happened at this session.
type CaptureOutcome string

const (
	CaptureVaccinated        CaptureOutcome = "Vaccinated"
	CapturePartVaccinated    CaptureOutcome = "PartVaccinated"
	CaptureAlreadyVaccinated CaptureOutcome = "AlreadyVaccinated"
	CaptureContraindications CaptureOutcome = "Contraindications"
	CaptureRefused           CaptureOutcome = "Refused"
	CaptureAbsent            CaptureOutcome = "Absent"
	CaptureUnwell            CaptureOutcome = "Unwell"
	CaptureDelayVaccination  CaptureOutcome = "DelayVaccination"
	CaptureDoNotVaccinate    CaptureOutcome = "DoNotVaccinate"
	CaptureNoOutcomeYet      CaptureOutcome = "NoOutcomeYet"
)

// ReportOutcome is the patient's overall position in the programme.
type ReportOutcome string

const (
	ReportIneligible ReportOutcome = "Ineligible"
	ReportVaccinated ReportOutcome = "Vaccinated"
	ReportDeferred   ReportOutcome = "Deferred"
	ReportDue        ReportOutcome = "Due"
	ReportRefused    ReportOutcome = "Refused"
	ReportTriage     ReportOutcome = "Triage"
	ReportConsent    ReportOutcome = "Consent"
)

// Activity is the single next thing a team member should do.
type Activity string

const (
	ActivityConsent  Activity = "consent"
	ActivityFollowUp Activity = "follow-up"
	ActivityTriage   Activity = "triage"
	ActivityRegister Activity = "register"
	ActivityRecord   Activity = "record"
	ActivityNone     Activity = "none"
)

// Axis names a derived field, used to attribute anomalies.
type Axis string

const (
	AxisConsent  Axis = "consent"
	AxisScreen   Axis = "screen"
	AxisRegister Axis = "register"
	AxisOutcome  Axis = "outcome"
	AxisReport   Axis = "report"
	AxisMethod   Axis = "vaccine_method"
	AxisWindow   Axis = "consent_window"
)

// Anomaly is broken or ambiguous evidence that degraded one field.
type Anomaly struct {
	Axis    Axis   `json:"axis"`
	Message string `json:"message"`
}

type anomalies []Anomaly

func (a *anomalies) add(axis Axis, format string, args ...interface{}) {
	*a = append(*a, Anomaly{Axis: axis, Message: fmt.Sprintf(format, args...)})
}
