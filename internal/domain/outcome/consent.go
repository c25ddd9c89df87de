package outcome

import (
	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/ehr/vaccinations/internal/domain/eventlog"
	"github.com/ehr/vaccinations/internal/domain/programme"
	"github.com/ehr/vaccinations/internal/domain/reply"
)

// consentInput is everything the reply aggregator looks at.
type consentInput struct {
	replies     []*reply.Reply
	events      []*eventlog.Event
	programme   *programme.Programme
	programmeID string
	sessionID   uuid.UUID
}

// consentResult carries the outcome plus the replies that produced it.
type consentResult struct {
	outcome ConsentOutcome
	// current holds the latest live reply of each respondent.
	current []*reply.Reply
	// deciding is the subset of current that expressed a decision and counted.
	deciding []*reply.Reply
}

// currentReplies keeps the latest live reply per respondent, in input order.
func currentReplies(replies []*reply.Reply) []*reply.Reply {
	latest := map[string]int{}
	var keys []string
	live := reply.Live(replies)
	for i, r := range live {
		k := r.Respondent.Key()
		j, seen := latest[k]
		if !seen {
			keys = append(keys, k)
			latest[k] = i
			continue
		}
		if !r.CreatedAt.Before(live[j].CreatedAt) {
			latest[k] = i
		}
	}
	return lo.Map(keys, func(k string, _ int) *reply.Reply { return live[latest[k]] })
}

// appliesToSession reports whether an event raised for a session applies to
// sessionID. Events with no session apply everywhere.
func appliesToSession(e *eventlog.Event, sessionID uuid.UUID) bool {
	return e.SessionID == nil || *e.SessionID == sessionID
}

func resolveConsent(in consentInput) consentResult {
	current := currentReplies(in.replies)
	deciding := lo.Filter(current, func(r *reply.Reply, _ int) bool {
		return r.Decision != reply.DecisionNoResponse
	})
	if self := lo.Filter(deciding, func(r *reply.Reply, _ int) bool {
		return r.Respondent.Relationship == reply.RelationshipSelf
	}); len(self) > 0 {
		deciding = self
	}
	res := consentResult{current: current, deciding: deciding}

	if len(deciding) == 0 {
		if len(current) > 0 || inviteDelivered(in) {
			res.outcome = ConsentNoResponse
		} else {
			res.outcome = ConsentNoRequest
		}
		return res
	}

	res.outcome = combine(deciding, in.programme)
	if res.outcome == ConsentDeclined && refusalConfirmed(in, deciding) {
		res.outcome = ConsentFinalRefusal
	}
	return res
}

// inviteDelivered reports whether the latest invite for the programme went out.
func inviteDelivered(in consentInput) bool {
	invite, ok := eventlog.Latest(in.events, func(e *eventlog.Event) bool {
		return e.Kind == eventlog.KindInvite && e.AppliesTo(in.programmeID) && appliesToSession(e, in.sessionID)
	})
	return ok && invite.OutcomeValue() != eventlog.OutcomeInviteFailed
}

// refusalConfirmed looks for a follow-up that upheld the decline after the
// last reply that contributed to it.
func refusalConfirmed(in consentInput, deciding []*reply.Reply) bool {
	last := lo.MaxBy(deciding, func(a, b *reply.Reply) bool { return !a.CreatedAt.Before(b.CreatedAt) })
	_, ok := eventlog.Latest(in.events, func(e *eventlog.Event) bool {
		return e.Kind == eventlog.KindConsent &&
			e.OutcomeValue() == eventlog.OutcomeRefusalConfirmed &&
			e.AppliesTo(in.programmeID) &&
			appliesToSession(e, in.sessionID) &&
			e.CreatedAt.After(last.CreatedAt)
	})
	return ok
}

// single maps one reply's decision onto a consent outcome.
func single(d reply.Decision, p *programme.Programme) ConsentOutcome {
	switch d {
	case reply.DecisionGiven:
		return ConsentGiven
	case reply.DecisionGivenNasal:
		if offers(p, programme.MethodNasal) {
			return ConsentGivenNasal
		}
		return ConsentGiven
	case reply.DecisionGivenInjection:
		if offers(p, programme.MethodInjection) {
			return ConsentGivenInjection
		}
		return ConsentGiven
	case reply.DecisionDeclined:
		return ConsentDeclined
	case reply.DecisionRefused:
		return ConsentRefused
	}
	return ConsentNoResponse
}

func offers(p *programme.Programme, m programme.Method) bool {
	return p != nil && p.HasAlternativeMethods() && lo.Contains(p.Methods, m)
}

// combine reconciles the deciding replies. Disagreement is never broken by
// picking a winner, except between declined and refused, which both withhold.
// A method-specific outcome survives only when every reply restricts to the
// same method; a mix of plain and restricted consent is plain Given.
func combine(deciding []*reply.Reply, p *programme.Programme) ConsentOutcome {
	outcomes := lo.Map(deciding, func(r *reply.Reply, _ int) ConsentOutcome { return single(r.Decision, p) })
	if len(lo.Uniq(outcomes)) == 1 {
		return outcomes[0]
	}

	granting := lo.CountBy(outcomes, ConsentOutcome.Grants)
	switch granting {
	case len(outcomes):
		restrictions := lo.Uniq(lo.Filter(outcomes, func(o ConsentOutcome, _ int) bool { return o != ConsentGiven }))
		if len(restrictions) > 1 {
			return ConsentInconsistent
		}
		return ConsentGiven
	case 0:
		latest := lo.MaxBy(deciding, func(a, b *reply.Reply) bool { return !a.CreatedAt.Before(b.CreatedAt) })
		return single(latest.Decision, p)
	default:
		return ConsentInconsistent
	}
}
