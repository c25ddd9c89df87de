package eventlog

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// Kind classifies an entry in a patient's audit log.
type Kind string

const (
	KindSelect   Kind = "select"
	KindInvite   Kind = "invite"
	KindRemind   Kind = "remind"
	KindConsent  Kind = "consent"
	KindScreen   Kind = "screen"
	KindRegister Kind = "register"
	KindRecord   Kind = "record"
	KindNotice   Kind = "notice"
)

var validKinds = map[Kind]bool{
	KindSelect: true, KindInvite: true, KindRemind: true, KindConsent: true,
	KindScreen: true, KindRegister: true, KindRecord: true, KindNotice: true,
}

// Valid reports whether k is a known event kind.
func (k Kind) Valid() bool { return validKinds[k] }

// Structured outcomes carried by invite and consent events.
const (
	OutcomeInviteSent       = "sent"
	OutcomeInviteFailed     = "failed"
	OutcomeRefusalConfirmed = "refusal-confirmed"
	OutcomeReplyInvalidated = "reply-invalidated"
)

// ScreenOutcomes is the vocabulary a clinician can record on a screen event.
var ScreenOutcomes = []string{
	"Vaccinate",
	"VaccinateInjection",
	"VaccinateNasal",
	"NeedsTriage",
	"DelayVaccination",
	"DoNotVaccinate",
}

// Event is one immutable entry in a patient's log. Seq is assigned on append
// and breaks ties between events sharing a CreatedAt.
type Event struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	PatientID    uuid.UUID  `db:"patient_id" json:"patient_id"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	CreatedBy    *string    `db:"created_by" json:"created_by,omitempty"`
	Kind         Kind       `db:"kind" json:"kind"`
	Name         string     `db:"name" json:"name"`
	Note         *string    `db:"note" json:"note,omitempty"`
	Outcome      *string    `db:"outcome" json:"outcome,omitempty"`
	ProgrammeIDs []string   `db:"programme_ids" json:"programme_ids"`
	SessionID    *uuid.UUID `db:"session_id" json:"session_id,omitempty"`
	Seq          int64      `db:"seq" json:"seq"`
}

// OutcomeValue returns the structured outcome or "".
func (e *Event) OutcomeValue() string {
	if e.Outcome == nil {
		return ""
	}
	return *e.Outcome
}

// AppliesTo reports whether the event concerns programmeID.
func (e *Event) AppliesTo(programmeID string) bool {
	return lo.Contains(e.ProgrammeIDs, programmeID)
}

// InSession reports whether the event was raised for sessionID.
func (e *Event) InSession(sessionID uuid.UUID) bool {
	return e.SessionID != nil && *e.SessionID == sessionID
}

// Before orders events by CreatedAt, then by append order.
func (e *Event) Before(o *Event) bool {
	if !e.CreatedAt.Equal(o.CreatedAt) {
		return e.CreatedAt.Before(o.CreatedAt)
	}
	return e.Seq < o.Seq
}

// Sorted returns a copy of events in log order.
func Sorted(events []*Event) []*Event {
	out := make([]*Event, len(events))
	copy(out, events)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// Filter returns the events of the given kind that apply to programmeID, in log order.
func Filter(events []*Event, kind Kind, programmeID string) []*Event {
	return Sorted(lo.Filter(events, func(e *Event, _ int) bool {
		return e.Kind == kind && e.AppliesTo(programmeID)
	}))
}

// Latest returns the last event in log order that satisfies keep.
func Latest(events []*Event, keep func(*Event) bool) (*Event, bool) {
	var latest *Event
	for _, e := range events {
		if !keep(e) {
			continue
		}
		if latest == nil || latest.Before(e) {
			latest = e
		}
	}
	return latest, latest != nil
}
