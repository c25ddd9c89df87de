package outcome

// nextActivity checks the axes in a fixed order: consent, triage,
// registration, then capture.
func nextActivity(ps *PatientSession) Activity {
	switch {
	case ps.Consent.Unresolved():
		return ActivityConsent
	case ps.Consent == ConsentDeclined:
		return ActivityFollowUp
	case ps.Screen == ScreenNeedsTriage:
		return ActivityTriage
	case ps.Report != ReportDue:
		return ActivityNone
	case ps.Register == RegisterPending:
		return ActivityRegister
	case ps.Outcome == CaptureNoOutcomeYet && ps.Register == RegisterPresent:
		return ActivityRecord
	}
	return ActivityNone
}
