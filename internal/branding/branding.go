// Package branding runs the short company-profile interview that precedes
// requirements gathering.
package branding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"reqgather/internal/export"
	"reqgather/internal/llm"
	"reqgather/internal/output"
	"reqgather/internal/session"
)

const (
	KeyPrefix   = "branding:session:"
	temperature = 0.3
	startAnswer = "[User started the session]"
)

type Turn struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// State is persisted without expiry until the profile is exported.
type State struct {
	Profile      Profile `json:"profile"`
	History      []Turn  `json:"history"`
	LastQuestion string  `json:"last_question,omitempty"`
	IsComplete   bool    `json:"is_complete"`
}

type Response struct {
	Status   output.Status `json:"status"`
	Question string        `json:"question,omitempty"`
	Profile  Profile       `json:"profile"`
}

// Artefacts is where completed profiles are written.
type Artefacts interface {
	WriteJSON(kind export.Kind, id string, v any) error
	ReadJSON(kind export.Kind, id string, v any) error
}

type modelOutput struct {
	Profile      Profile `json:"updated_profile"`
	NextQuestion *string `json:"next_question"`
	IsComplete   bool    `json:"is_complete"`
	Question     string  `json:"-" validate:"required_if=IsComplete false"`
}

var validate *validator.Validate

func init() {
	validate = validator.New()
}

type Service struct {
	kv     session.KV
	client llm.Client
	files  Artefacts
	prompt string
	locks  *session.Locker
	log    *zap.Logger
}

func NewService(kv session.KV, client llm.Client, files Artefacts, systemPrompt string, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		kv:     kv,
		client: client,
		files:  files,
		prompt: systemPrompt,
		locks:  session.NewLocker(),
		log:    log,
	}
}

// Turn records answer against the last question and asks the model for the
// next one. A completed profile is exported and its state deleted.
func (s *Service) Turn(ctx context.Context, id string, answer *string) (Response, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Response{}, errors.New("session_id is required")
	}
	unlock := s.locks.Lock(id)
	defer unlock()
	log := s.log.With(zap.String("session_id", id))

	if p, ok, err := s.exported(id); err != nil {
		return Response{}, err
	} else if ok {
		return Response{Status: output.StatusComplete, Profile: p}, nil
	}

	st := s.load(ctx, log, id)
	userInput := startAnswer
	if answer != nil && strings.TrimSpace(*answer) != "" {
		userInput = strings.TrimSpace(*answer)
		if st.LastQuestion != "" {
			st.History = append(st.History, Turn{Question: st.LastQuestion, Answer: userInput})
		}
	}

	out, err := s.ask(ctx, log, st, userInput)
	if err != nil {
		return Response{}, err
	}
	st.Profile = out.Profile

	if out.IsComplete {
		st.IsComplete = true
		if err := s.files.WriteJSON(export.KindBranding, id, st.Profile); err != nil {
			return Response{}, fmt.Errorf("export branding: %w", err)
		}
		if err := s.kv.Delete(ctx, KeyPrefix+id); err != nil {
			log.Error("❌ failed to delete branding state", zap.Error(err))
		}
		log.Info("✅ branding profile complete")
		return Response{Status: output.StatusComplete, Profile: st.Profile}, nil
	}

	st.LastQuestion = out.Question
	if err := s.save(ctx, id, st); err != nil {
		return Response{}, err
	}
	return Response{Status: output.StatusAsk, Question: out.Question, Profile: st.Profile}, nil
}

// Profile returns the exported profile of a session as a plain object.
func (s *Service) Profile(id string) (map[string]any, bool, error) {
	p, ok, err := s.exported(id)
	if err != nil || !ok {
		return nil, ok, err
	}
	return p.Map(), true, nil
}

func (s *Service) exported(id string) (Profile, bool, error) {
	var p Profile
	err := s.files.ReadJSON(export.KindBranding, id, &p)
	switch {
	case err == nil:
		return p, true, nil
	case errors.Is(err, export.ErrNotExported):
		return Profile{}, false, nil
	default:
		return Profile{}, false, err
	}
}

func (s *Service) ask(ctx context.Context, log *zap.Logger, st State, userInput string) (modelOutput, error) {
	profile, err := json.Marshal(st.Profile)
	if err != nil {
		return modelOutput{}, err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Current Known Profile: %s\n", profile)
	if st.LastQuestion != "" {
		fmt.Fprintf(&b, "Last Question Asked: %q\n", st.LastQuestion)
	}
	fmt.Fprintf(&b, "User's Latest Answer: %q\n", userInput)
	b.WriteString("Update the profile and ask the next question.")

	resp, err := s.client.Generate(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: s.prompt},
		{Role: llm.RoleUser, Content: b.String()},
	}, llm.Options{Temperature: temperature, JSON: true})
	if err != nil {
		return modelOutput{}, fmt.Errorf("branding: %w", err)
	}
	out, err := parse(resp.Content)
	if err != nil {
		log.Error("❌ malformed branding output", zap.Error(err), zap.String("raw", resp.Content))
		return modelOutput{}, err
	}
	return out, nil
}

func parse(raw string) (modelOutput, error) {
	var out modelOutput
	if err := json.Unmarshal([]byte(output.Clean(raw)), &out); err != nil {
		return modelOutput{}, &output.ParseError{Raw: raw, Reason: "invalid branding json", Err: err}
	}
	if out.NextQuestion != nil {
		out.Question = strings.TrimSpace(*out.NextQuestion)
	}
	if err := validate.Struct(out); err != nil {
		return modelOutput{}, &output.ParseError{Raw: raw, Reason: "invalid branding payload", Err: err}
	}
	return out, nil
}

func (s *Service) load(ctx context.Context, log *zap.Logger, id string) State {
	raw, err := s.kv.Get(ctx, KeyPrefix+id)
	if err != nil {
		if !errors.Is(err, session.ErrNotFound) {
			log.Warn("branding state unavailable, starting over", zap.Error(err))
		}
		return State{}
	}
	var st State
	if err := json.Unmarshal(raw, &st); err != nil {
		log.Warn("corrupt branding state, starting over", zap.Error(err))
		return State{}
	}
	return st
}

func (s *Service) save(ctx context.Context, id string, st State) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode branding state: %w", err)
	}
	if err := s.kv.Set(ctx, KeyPrefix+id, raw, 0); err != nil {
		return fmt.Errorf("save branding state: %w", err)
	}
	return nil
}
