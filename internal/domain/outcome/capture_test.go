package outcome

import (
	"testing"

	"github.com/google/uuid"

	"github.com/ehr/vaccinations/internal/domain/vaccination"
)

func TestResolveCapture_RecordReportedAsIs(t *testing.T) {
	for vo, want := range captureOutcomes {
		t.Run(string(vo), func(t *testing.T) {
			var an anomalies
			v := &vaccination.Vaccination{ID: uuid.New(), Outcome: vo}
			// A record beats contradicting consent and triage.
			if got := resolveCapture(v, ConsentRefused, ScreenDoNotVaccinate, &an); got != want {
				t.Errorf("expected %s, got %s", want, got)
			}
		})
	}
}

func TestResolveCapture_UnknownRecordOutcome(t *testing.T) {
	var an anomalies
	v := &vaccination.Vaccination{ID: uuid.New(), Outcome: "lost"}
	if got := resolveCapture(v, ConsentGiven, "", &an); got != "" {
		t.Errorf("expected no outcome, got %s", got)
	}
	if len(an) != 1 || an[0].Axis != AxisOutcome {
		t.Errorf("expected one outcome anomaly, got %v", an)
	}
}

func TestResolveCapture_NoRecord(t *testing.T) {
	tests := []struct {
		consent ConsentOutcome
		screen  ScreenOutcome
		want    CaptureOutcome
	}{
		{ConsentGiven, "", CaptureNoOutcomeYet},
		{ConsentGiven, ScreenVaccinate, CaptureNoOutcomeYet},
		{ConsentGiven, ScreenNeedsTriage, CaptureNoOutcomeYet},
		{ConsentGiven, ScreenDelayVaccination, CaptureDelayVaccination},
		{ConsentGivenNasal, ScreenDoNotVaccinate, CaptureDoNotVaccinate},
		{ConsentRefused, "", CaptureRefused},
		{ConsentFinalRefusal, "", CaptureRefused},
		{ConsentInconsistent, "", CaptureRefused},
		{ConsentDeclined, "", CaptureNoOutcomeYet},
		{ConsentNoResponse, "", CaptureNoOutcomeYet},
		{ConsentNoRequest, "", CaptureNoOutcomeYet},
	}
	for _, tt := range tests {
		t.Run(string(tt.consent)+"/"+string(tt.screen), func(t *testing.T) {
			var an anomalies
			if got := resolveCapture(nil, tt.consent, tt.screen, &an); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestSessionRecord(t *testing.T) {
	f := newFixture(hpvProgramme())
	other := uuid.New()
	f.vaccination(other, vaccination.OutcomeVaccinated, at(0))

	var an anomalies
	if got := sessionRecord(f.vaccs, f.session.ID, &an); got != nil {
		t.Fatalf("expected no record for this session, got %v", got)
	}

	first := f.vaccination(f.session.ID, vaccination.OutcomeAbsent, at(10))
	second := f.vaccination(f.session.ID, vaccination.OutcomeUnwell, at(5))
	if got := sessionRecord(f.vaccs, f.session.ID, &an); got != first {
		t.Errorf("expected the most recently changed record, got %v", got)
	}
	if len(an) != 1 {
		t.Errorf("expected one anomaly for duplicate records, got %v", an)
	}

	second.UpdatedAt = at(20)
	an = nil
	if got := sessionRecord(f.vaccs, f.session.ID, &an); got != second {
		t.Errorf("expected the edited record, got %v", got)
	}
}
