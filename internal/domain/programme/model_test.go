package programme

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestProgramme_Methods(t *testing.T) {
	flu := &Programme{Methods: []Method{MethodNasal, MethodInjection}}
	if flu.PrimaryMethod() != MethodNasal {
		t.Errorf("expected nasal primary, got %s", flu.PrimaryMethod())
	}
	if !flu.HasAlternativeMethods() {
		t.Error("expected flu to offer alternatives")
	}
	if !flu.IsAlternative(MethodInjection) {
		t.Error("expected injection to be an alternative")
	}
	if flu.IsAlternative(MethodNasal) {
		t.Error("primary method is not an alternative")
	}

	hpv := &Programme{Methods: []Method{MethodInjection}}
	if hpv.HasAlternativeMethods() || hpv.IsAlternative(MethodNasal) {
		t.Error("expected hpv to offer no alternatives")
	}
	if (&Programme{}).PrimaryMethod() != "" {
		t.Error("expected empty primary method")
	}
}

func TestProgramme_SequenceFor(t *testing.T) {
	p := &Programme{Sequence: []string{"1P"}, ImmunocompromisedSequence: []string{"1P", "2P", "3P"}}
	if got := p.SequenceFor(false); len(got) != 1 {
		t.Errorf("expected standard sequence, got %v", got)
	}
	if got := p.SequenceFor(true); len(got) != 3 {
		t.Errorf("expected immunocompromised sequence, got %v", got)
	}
	noAlt := &Programme{Sequence: []string{"1P", "2P"}}
	if got := noAlt.SequenceFor(true); len(got) != 2 {
		t.Errorf("expected fallback to standard sequence, got %v", got)
	}
}

func TestProgramme_LowestYearGroup(t *testing.T) {
	p := &Programme{YearGroups: []int{10, 8, 9}}
	yg, ok := p.LowestYearGroup()
	if !ok || yg != 8 {
		t.Errorf("expected 8, got %d (%v)", yg, ok)
	}
	if _, ok := (&Programme{}).LowestYearGroup(); ok {
		t.Error("expected no year group")
	}
}

func TestSession_CloseAt(t *testing.T) {
	s := &Session{Dates: []time.Time{date(2025, 5, 20), date(2025, 5, 22), date(2025, 5, 21)}}
	closeAt, ok := s.CloseAt()
	if !ok {
		t.Fatal("expected close date")
	}
	if !closeAt.Equal(date(2025, 5, 21)) {
		t.Errorf("expected day before last date, got %v", closeAt)
	}
	if _, ok := (&Session{}).CloseAt(); ok {
		t.Error("expected no close date without dates")
	}
}

func TestSession_ConsentWindowAt(t *testing.T) {
	open := date(2025, 5, 1)
	s := &Session{Dates: []time.Time{date(2025, 5, 20)}, OpenAt: &open}
	tests := []struct {
		today time.Time
		want  ConsentWindow
	}{
		{date(2025, 4, 30), ConsentWindowUpcoming},
		{date(2025, 5, 1), ConsentWindowOpen},
		{time.Date(2025, 5, 19, 23, 0, 0, 0, time.UTC), ConsentWindowOpen},
		{date(2025, 5, 20), ConsentWindowClosed},
	}
	for _, tt := range tests {
		if got := s.ConsentWindowAt(tt.today); got != tt.want {
			t.Errorf("%v: expected %s, got %s", tt.today, tt.want, got)
		}
	}
	if got := (&Session{Dates: s.Dates}).ConsentWindowAt(date(2025, 5, 1)); got != "" {
		t.Errorf("expected no window without open date, got %s", got)
	}
}

func TestSession_Attendance(t *testing.T) {
	pid := uuid.New()
	s := &Session{ProgrammeIDs: []string{"hpv"}, Register: map[uuid.UUID]Attendance{pid: AttendanceAbsent}}
	if a, ok := s.Attendance(pid); !ok || a != AttendanceAbsent {
		t.Errorf("expected absent, got %s (%v)", a, ok)
	}
	if _, ok := s.Attendance(uuid.New()); ok {
		t.Error("expected no entry")
	}
	if !s.IncludesProgramme("hpv") || s.IncludesProgramme("flu") {
		t.Error("unexpected programme membership")
	}
}
