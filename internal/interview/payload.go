package interview

import (
	"encoding/json"

	"reqgather/internal/guard"
	"reqgather/internal/intent"
	"reqgather/internal/llm"
	"reqgather/internal/registry"
	"reqgather/internal/session"
)

type metadata struct {
	CurrentPhase             intent.Phase `json:"current_phase"`
	UserAnswer               *string      `json:"user_answer"`
	LastQuestionAsked        *string      `json:"last_question_asked"`
	AdditionalQuestionsAsked int          `json:"additional_questions_asked"`
}

// payload is the user message of every interview call.
type payload struct {
	Metadata       metadata          `json:"metadata"`
	AskedQuestions []string          `json:"history_of_asked_questions"`
	Registry       registry.Registry `json:"requirements_registry"`
	Original       registry.Registry `json:"original_registry"`
	PendingIntent  *intent.Pending   `json:"pending_intent"`
	CompanyProfile map[string]any    `json:"company_profile,omitempty"`
}

type turnInput struct {
	prev     session.State
	answer   *string
	merged   registry.Registry
	pending  *intent.Pending
	override bool
	profile  map[string]any
}

func (e *Engine) messages(in turnInput) ([]llm.Message, error) {
	p := payload{
		Metadata: metadata{
			CurrentPhase:             in.prev.Phase,
			UserAnswer:               in.answer,
			AdditionalQuestionsAsked: in.prev.AdditionalQuestionsAsked,
		},
		AskedQuestions: in.prev.AskedQuestions(),
		Registry:       in.merged,
		Original:       in.prev.Registry,
		PendingIntent:  in.pending,
		CompanyProfile: in.profile,
	}
	if in.prev.LastQuestion != nil {
		q := in.prev.LastQuestion.Text
		p.Metadata.LastQuestionAsked = &q
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	msgs := []llm.Message{{Role: llm.RoleSystem, Content: e.cfg.SystemPrompt}}
	if in.override {
		msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: guard.OverrideDirective})
	}
	return append(msgs, llm.Message{Role: llm.RoleUser, Content: string(raw)}), nil
}
