package reply

import (
	"testing"

	"github.com/ehr/vaccinations/internal/domain/programme"
)

func TestRespondent_Key(t *testing.T) {
	a := Respondent{Name: "Jane Smith", Relationship: RelationshipParent}
	b := Respondent{Name: " jane smith ", Relationship: RelationshipParent}
	if a.Key() != b.Key() {
		t.Errorf("expected same key, got %q and %q", a.Key(), b.Key())
	}
	c := Respondent{Name: "Jane Smith", Relationship: RelationshipGuardian}
	if a.Key() == c.Key() {
		t.Error("expected different relationships to differ")
	}
	self1 := Respondent{Name: "Sam", Relationship: RelationshipSelf}
	self2 := Respondent{Relationship: RelationshipSelf}
	if self1.Key() != self2.Key() {
		t.Error("expected all self replies to share a key")
	}
}

func TestDecision_Classification(t *testing.T) {
	tests := []struct {
		d         Decision
		grants    bool
		withholds bool
		method    programme.Method
	}{
		{DecisionNoResponse, false, false, ""},
		{DecisionGiven, true, false, ""},
		{DecisionGivenNasal, true, false, programme.MethodNasal},
		{DecisionGivenInjection, true, false, programme.MethodInjection},
		{DecisionDeclined, false, true, ""},
		{DecisionRefused, false, true, ""},
	}
	for _, tt := range tests {
		if tt.d.Grants() != tt.grants || tt.d.Withholds() != tt.withholds || tt.d.RestrictedMethod() != tt.method {
			t.Errorf("%s: unexpected classification", tt.d)
		}
		if !tt.d.Valid() {
			t.Errorf("%s: expected valid", tt.d)
		}
	}
	if Decision("maybe").Valid() {
		t.Error("expected unknown decision to be invalid")
	}
}

func TestReply_HasHealthConcerns(t *testing.T) {
	none := &Reply{HealthAnswers: map[string]HealthAnswer{"allergy": {}, "asthma": {Answer: ""}}}
	if none.HasHealthConcerns() {
		t.Error("expected no concerns with empty answers")
	}
	if (&Reply{}).HasHealthConcerns() {
		t.Error("expected no concerns without answers")
	}
	some := &Reply{HealthAnswers: map[string]HealthAnswer{"allergy": {}, "asthma": {Answer: "yes", Details: "Uses an inhaler"}}}
	if !some.HasHealthConcerns() {
		t.Error("expected concerns")
	}
}

func TestLive(t *testing.T) {
	rs := []*Reply{{Decision: DecisionGiven}, {Decision: DecisionRefused, Invalidated: true}}
	live := Live(rs)
	if len(live) != 1 || live[0].Decision != DecisionGiven {
		t.Errorf("unexpected live replies: %v", live)
	}
}
