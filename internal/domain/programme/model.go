package programme

import (
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// Method is a route of administration a programme can offer.
type Method string

const (
	MethodInjection Method = "injection"
	MethodNasal     Method = "nasal"
)

var validMethods = map[Method]bool{MethodInjection: true, MethodNasal: true}

// Valid reports whether m is a known administration method.
func (m Method) Valid() bool { return validMethods[m] }

// Programme is the static configuration of one vaccination programme.
type Programme struct {
	ID                        string    `db:"id" json:"id"`
	Name                      string    `db:"name" json:"name"`
	VaccineCode               string    `db:"vaccine_code" json:"vaccine_code"`
	VaccineDisplay            string    `db:"vaccine_display" json:"vaccine_display"`
	Sequence                  []string  `db:"sequence" json:"sequence"`
	ImmunocompromisedSequence []string  `db:"immunocompromised_sequence" json:"immunocompromised_sequence,omitempty"`
	Methods                   []Method  `db:"methods" json:"methods"`
	YearGroups                []int     `db:"year_groups" json:"year_groups"`
	SyncToRegistry            bool      `db:"sync_to_registry" json:"sync_to_registry"`
	CreatedAt                 time.Time `db:"created_at" json:"created_at"`
	UpdatedAt                 time.Time `db:"updated_at" json:"updated_at"`
}

// PrimaryMethod is the first configured method, or "" when none is configured.
func (p *Programme) PrimaryMethod() Method {
	if len(p.Methods) == 0 {
		return ""
	}
	return p.Methods[0]
}

// HasAlternativeMethods reports whether patients can be offered a choice of method.
func (p *Programme) HasAlternativeMethods() bool { return len(p.Methods) > 1 }

// IsAlternative reports whether m is offered but is not the primary method.
func (p *Programme) IsAlternative(m Method) bool {
	return m != p.PrimaryMethod() && lo.Contains(p.Methods, m)
}

// SequenceFor returns the dose sequence that applies to a patient. The
// immunocompromised schedule only applies when the programme defines one.
func (p *Programme) SequenceFor(immunocompromised bool) []string {
	if immunocompromised && len(p.ImmunocompromisedSequence) > 0 {
		return p.ImmunocompromisedSequence
	}
	return p.Sequence
}

// LowestYearGroup returns the youngest targeted year group.
func (p *Programme) LowestYearGroup() (int, bool) {
	if len(p.YearGroups) == 0 {
		return 0, false
	}
	return lo.Min(p.YearGroups), true
}

// Attendance is a register entry for a patient on a session day.
type Attendance string

const (
	AttendancePresent Attendance = "present"
	AttendanceAbsent  Attendance = "absent"
)

// ConsentWindow is where today falls relative to a session's consent period.
type ConsentWindow string

const (
	ConsentWindowUpcoming ConsentWindow = "upcoming"
	ConsentWindowOpen     ConsentWindow = "open"
	ConsentWindowClosed   ConsentWindow = "closed"
)

// Session is a scheduled school clinic delivering one or more programmes.
type Session struct {
	ID                   uuid.UUID                `db:"id" json:"id"`
	Name                 string                   `db:"name" json:"name"`
	Location             string                   `db:"location" json:"location"`
	ProgrammeIDs         []string                 `db:"programme_ids" json:"programme_ids"`
	Dates                []time.Time              `db:"dates" json:"dates"`
	OpenAt               *time.Time               `db:"open_at" json:"open_at,omitempty"`
	RegistrationRequired bool                     `db:"registration_required" json:"registration_required"`
	Register             map[uuid.UUID]Attendance `json:"register,omitempty"`
	CreatedAt            time.Time                `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time                `db:"updated_at" json:"updated_at"`
}

// IncludesProgramme reports whether the session delivers programmeID.
func (s *Session) IncludesProgramme(programmeID string) bool {
	return lo.Contains(s.ProgrammeIDs, programmeID)
}

// LastDate is the final session day.
func (s *Session) LastDate() (time.Time, bool) {
	if len(s.Dates) == 0 {
		return time.Time{}, false
	}
	return lo.MaxBy(s.Dates, func(a, b time.Time) bool { return a.After(b) }), true
}

// CloseAt is the day before the last session day; consent requests close then.
func (s *Session) CloseAt() (time.Time, bool) {
	last, ok := s.LastDate()
	if !ok {
		return time.Time{}, false
	}
	return DateOnly(last).AddDate(0, 0, -1), true
}

// ConsentWindowAt places today against OpenAt and CloseAt. Sessions without
// dates or an open date have no window and return "".
func (s *Session) ConsentWindowAt(today time.Time) ConsentWindow {
	closeAt, ok := s.CloseAt()
	if !ok || s.OpenAt == nil {
		return ""
	}
	day := DateOnly(today)
	switch {
	case day.Before(DateOnly(*s.OpenAt)):
		return ConsentWindowUpcoming
	case day.After(closeAt):
		return ConsentWindowClosed
	default:
		return ConsentWindowOpen
	}
}

// Attendance returns the register entry for a patient, if one was taken.
func (s *Session) Attendance(patientID uuid.UUID) (Attendance, bool) {
	a, ok := s.Register[patientID]
	return a, ok
}

// DateOnly truncates t to midnight UTC of its calendar day.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
