// Package guard keeps the interview from getting stuck: a strike counter
// forces topic changes across turns, and a duplicate detector bounds how
// often one turn may regenerate its question.
package guard

import "reqgather/internal/intent"

const DefaultMaxStrikes = 2

// OverrideDirective is sent to the model when the strike counter clears the
// pending intent.
const OverrideDirective = "SYSTEM OVERRIDE: the interview has been stuck on the same topic for several turns. " +
	"Consider the current topic addressed, do not ask about it again, and move to a new topic immediately."

// Meta is the strike state persisted with a session.
type Meta struct {
	LastIntentType intent.Type `json:"last_intent_type"`
	StrikeCount    int         `json:"strike_count"`
}

// Strikes counts consecutive turns that share a pending intent type.
type Strikes struct {
	// Max is the largest strike count that is still tolerated.
	Max int
}

// Observation is the outcome of one Observe call.
type Observation struct {
	Meta Meta
	// Effective is the intent to send to the model; nil when overridden.
	Effective  *intent.Pending
	Overridden bool
}

// Observe folds the current pending intent into the previous meta. A repeated
// type increments the count, a new type resets it to 1, and no intent resets
// it to 0.
func (s Strikes) Observe(prev Meta, p *intent.Pending) Observation {
	max := s.Max
	if max <= 0 {
		max = DefaultMaxStrikes
	}
	if p == nil || p.Type == "" {
		return Observation{}
	}
	next := Meta{LastIntentType: p.Type, StrikeCount: 1}
	if prev.LastIntentType == p.Type {
		next.StrikeCount = prev.StrikeCount + 1
	}
	if next.StrikeCount > max {
		return Observation{Meta: next, Overridden: true}
	}
	return Observation{Meta: next, Effective: p}
}
