package reply

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/ehr/vaccinations/internal/domain/programme"
)

// Relationship is how a respondent is related to the patient. A self reply
// comes from a Gillick competent child.
type Relationship string

const (
	RelationshipParent   Relationship = "parent"
	RelationshipGuardian Relationship = "guardian"
	RelationshipCarer    Relationship = "carer"
	RelationshipSelf     Relationship = "self"
)

var validRelationships = map[Relationship]bool{
	RelationshipParent: true, RelationshipGuardian: true, RelationshipCarer: true, RelationshipSelf: true,
}

func (r Relationship) Valid() bool { return validRelationships[r] }

// Decision is what a respondent said.
type Decision string

const (
	DecisionNoResponse     Decision = "no-response"
	DecisionGiven          Decision = "given"
	DecisionGivenNasal     Decision = "given-nasal"
	DecisionGivenInjection Decision = "given-injection"
	DecisionDeclined       Decision = "declined"
	DecisionRefused        Decision = "refused"
)

var validDecisions = map[Decision]bool{
	DecisionNoResponse: true, DecisionGiven: true, DecisionGivenNasal: true,
	DecisionGivenInjection: true, DecisionDeclined: true, DecisionRefused: true,
}

func (d Decision) Valid() bool { return validDecisions[d] }

// Grants reports whether the decision gives consent in any form.
func (d Decision) Grants() bool {
	return d == DecisionGiven || d == DecisionGivenNasal || d == DecisionGivenInjection
}

// Withholds reports whether the decision declines or refuses.
func (d Decision) Withholds() bool {
	return d == DecisionDeclined || d == DecisionRefused
}

// RestrictedMethod returns the only method a consenting decision allows, or ""
// when any method is acceptable.
func (d Decision) RestrictedMethod() programme.Method {
	switch d {
	case DecisionGivenNasal:
		return programme.MethodNasal
	case DecisionGivenInjection:
		return programme.MethodInjection
	}
	return ""
}

type Respondent struct {
	Name         string       `json:"name"`
	Relationship Relationship `json:"relationship"`
}

// Key identifies a respondent across replies. There is only one self.
func (r Respondent) Key() string {
	if r.Relationship == RelationshipSelf {
		return string(RelationshipSelf)
	}
	return string(r.Relationship) + ":" + strings.ToLower(strings.TrimSpace(r.Name))
}

type HealthAnswer struct {
	Answer  string `json:"answer"`
	Details string `json:"details,omitempty"`
}

type Reply struct {
	ID            uuid.UUID               `db:"id" json:"id"`
	CreatedAt     time.Time               `db:"created_at" json:"created_at"`
	PatientID     uuid.UUID               `db:"patient_id" json:"patient_id"`
	ProgrammeID   string                  `db:"programme_id" json:"programme_id"`
	SessionID     uuid.UUID               `db:"session_id" json:"session_id"`
	Respondent    Respondent              `db:"respondent" json:"respondent"`
	Decision      Decision                `db:"decision" json:"decision"`
	HealthAnswers map[string]HealthAnswer `db:"health_answers" json:"health_answers,omitempty"`
	RefusalReason *string                 `db:"refusal_reason" json:"refusal_reason,omitempty"`
	Invalidated   bool                    `db:"invalidated" json:"invalidated"`
}

func (r *Reply) Live() bool { return !r.Invalidated }

// HasHealthConcerns reports whether any health question was answered.
func (r *Reply) HasHealthConcerns() bool {
	return lo.SomeBy(lo.Values(r.HealthAnswers), func(a HealthAnswer) bool { return a.Answer != "" })
}

// Live filters out invalidated replies.
func Live(replies []*Reply) []*Reply {
	return lo.Filter(replies, func(r *Reply, _ int) bool { return r.Live() })
}
