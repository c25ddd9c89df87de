package outcome

import (
	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/ehr/vaccinations/internal/domain/vaccination"
)

var captureOutcomes = map[vaccination.Outcome]CaptureOutcome{
	vaccination.OutcomeVaccinated:        CaptureVaccinated,
	vaccination.OutcomePartVaccinated:    CapturePartVaccinated,
	vaccination.OutcomeAlreadyVaccinated: CaptureAlreadyVaccinated,
	vaccination.OutcomeContraindications: CaptureContraindications,
	vaccination.OutcomeRefused:           CaptureRefused,
	vaccination.OutcomeAbsent:            CaptureAbsent,
	vaccination.OutcomeUnwell:            CaptureUnwell,
}

// sessionRecord returns the vaccination recorded at sessionID. A second record
// for the same session should not exist; when it does the most recently
// changed one wins.
func sessionRecord(vaccs []*vaccination.Vaccination, sessionID uuid.UUID, an *anomalies) *vaccination.Vaccination {
	records := lo.Filter(vaccs, func(v *vaccination.Vaccination, _ int) bool { return v.SessionID == sessionID })
	if len(records) == 0 {
		return nil
	}
	if len(records) > 1 {
		an.add(AxisOutcome, "%d vaccination records for one session, using the latest", len(records))
	}
	return lo.MaxBy(records, func(a, b *vaccination.Vaccination) bool { return a.LastChanged().After(b.LastChanged()) })
}

// resolveCapture reports the outcome of this session. A record is reported as
// is; otherwise the outcome follows consent and triage.
func resolveCapture(record *vaccination.Vaccination, consent ConsentOutcome, screen ScreenOutcome, an *anomalies) CaptureOutcome {
	if record != nil {
		if o, ok := captureOutcomes[record.Outcome]; ok {
			return o
		}
		an.add(AxisOutcome, "vaccination %s has unknown outcome %q", record.ID, record.Outcome)
		return ""
	}
	switch consent {
	case ConsentRefused, ConsentInconsistent, ConsentFinalRefusal:
		return CaptureRefused
	}
	switch screen {
	case ScreenDelayVaccination:
		return CaptureDelayVaccination
	case ScreenDoNotVaccinate:
		return CaptureDoNotVaccinate
	}
	return CaptureNoOutcomeYet
}
