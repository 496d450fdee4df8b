// Package session persists per-session interview state behind a small
// key-value abstraction with expiry.
package session

import (
	"time"

	"reqgather/internal/guard"
	"reqgather/internal/intent"
	"reqgather/internal/registry"
)

type LastQuestion struct {
	Text    string    `json:"text"`
	AskedAt time.Time `json:"asked_at"`
}

// Exchange is one answered question. History only ever grows.
type Exchange struct {
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Timestamp time.Time `json:"timestamp"`
}

type State struct {
	Phase                    intent.Phase      `json:"phase"`
	Registry                 registry.Registry `json:"registry"`
	LastQuestion             *LastQuestion     `json:"last_question"`
	PendingIntent            *intent.Pending   `json:"pending_intent"`
	AdditionalQuestionsAsked int               `json:"additional_questions_asked"`
	History                  []Exchange        `json:"history"`
	Meta                     guard.Meta        `json:"meta"`
}

// NewState is the state of a session that has never been saved.
func NewState() State {
	return State{
		Phase:    intent.InitialPhase,
		Registry: registry.New(),
		History:  []Exchange{},
	}
}

// Started reports whether a question has been asked in this session.
func (s State) Started() bool {
	return s.LastQuestion != nil && s.LastQuestion.Text != ""
}

// AskedQuestions returns every question asked so far, oldest first,
// including the one still awaiting an answer.
func (s State) AskedQuestions() []string {
	out := make([]string, 0, len(s.History)+1)
	for _, h := range s.History {
		out = append(out, h.Question)
	}
	if s.Started() && (len(s.History) == 0 || s.History[len(s.History)-1].Question != s.LastQuestion.Text) {
		out = append(out, s.LastQuestion.Text)
	}
	return out
}

// Clone copies everything a turn may mutate.
func (s State) Clone() State {
	out := s
	out.Registry = s.Registry.Clone()
	out.PendingIntent = s.PendingIntent.Clone()
	if s.LastQuestion != nil {
		lq := *s.LastQuestion
		out.LastQuestion = &lq
	}
	out.History = append([]Exchange{}, s.History...)
	return out
}

// repair fills the fields a stored record may omit.
func (s State) repair() State {
	if !s.Phase.Known() {
		s.Phase = intent.InitialPhase
	}
	if s.Registry == nil {
		s.Registry = registry.New()
	}
	if s.History == nil {
		s.History = []Exchange{}
	}
	if s.AdditionalQuestionsAsked < 0 {
		s.AdditionalQuestionsAsked = 0
	}
	return s
}
