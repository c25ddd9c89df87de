package outcome

import (
	"github.com/samber/lo"

	"github.com/ehr/vaccinations/internal/domain/eventlog"
	"github.com/ehr/vaccinations/internal/domain/reply"
)

// triageNeeded is true when consent was given and a respondent answered yes
// to a health question.
func triageNeeded(consent ConsentOutcome, current []*reply.Reply) bool {
	return consent.Grants() && lo.SomeBy(current, (*reply.Reply).HasHealthConcerns)
}

// resolveScreen returns the latest triage decision for the programme. The
// latest decision supersedes earlier ones; they are never combined.
func resolveScreen(consent ConsentOutcome, current []*reply.Reply, events []*eventlog.Event, programmeID string, an *anomalies) (ScreenOutcome, TriageStatus) {
	if !triageNeeded(consent, current) {
		return "", TriageNotNeeded
	}
	screens := eventlog.Filter(events, eventlog.KindScreen, programmeID)
	for i := len(screens) - 1; i >= 0; i-- {
		e := screens[i]
		if e.Outcome == nil {
			continue
		}
		o, ok := ParseScreenOutcome(*e.Outcome)
		if !ok {
			an.add(AxisScreen, "screen event %s has unknown outcome %q", e.ID, *e.Outcome)
			continue
		}
		if o == ScreenNeedsTriage {
			return o, TriageNeeded
		}
		return o, TriageCompleted
	}
	return ScreenNeedsTriage, TriageNeeded
}
