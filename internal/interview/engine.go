// Package interview runs one requirement-gathering turn: it merges the
// user's answer into the session registry, asks the model for the next
// question, guards against loops and persists or finalizes the session.
package interview

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"reqgather/internal/guard"
	"reqgather/internal/intent"
	"reqgather/internal/llm"
	"reqgather/internal/metrics"
	"reqgather/internal/output"
	"reqgather/internal/registry"
	"reqgather/internal/session"
)

// Exporter receives the artefacts of a completed interview.
type Exporter interface {
	Completed(id string) (bool, error)
	ExportCompletion(ctx context.Context, id string, requirements map[string]any, history []session.Exchange) error
}

// Profiles looks up the company profile produced by the branding interview.
type Profiles interface {
	Profile(id string) (map[string]any, bool, error)
}

type Config struct {
	SystemPrompt     string
	MaxStrikes       int
	MaxRegenerations int
	BaseTemperature  float64
	TemperatureStep  float64
	RequireBranding  bool
}

type TurnRequest struct {
	SessionID string  `json:"session_id"`
	Answer    *string `json:"answer,omitempty"`
}

type TurnResponse struct {
	Status       output.Status     `json:"status"`
	Phase        intent.Phase      `json:"phase,omitempty"`
	Question     string            `json:"question,omitempty"`
	Registry     registry.Registry `json:"registry,omitempty"`
	Requirements map[string]any    `json:"requirements,omitempty"`
}

type Engine struct {
	store      session.Store
	client     llm.Client
	exporter   Exporter
	profiles   Profiles
	dispatcher *intent.Dispatcher
	strikes    guard.Strikes
	loop       *guard.Loop
	locks      *session.Locker
	cfg        Config
	classify   registry.ScopeClassifier

	log     *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

type Option func(*Engine)

func WithLogger(log *zap.Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option { return func(e *Engine) { e.metrics = m } }

func WithExporter(x Exporter) Option { return func(e *Engine) { e.exporter = x } }

func WithProfiles(p Profiles) Option { return func(e *Engine) { e.profiles = p } }

func WithScopeClassifier(c registry.ScopeClassifier) Option {
	return func(e *Engine) { e.classify = c }
}

func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

func New(store session.Store, client llm.Client, cfg Config, opts ...Option) *Engine {
	e := &Engine{
		store:  store,
		client: client,
		locks:  session.NewLocker(),
		cfg:    cfg,
		log:    zap.NewNop(),
		now:    time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	dopts := []intent.Option{intent.WithMetrics(e.metrics)}
	if e.classify != nil {
		dopts = append(dopts, intent.WithScopeClassifier(e.classify))
	}
	e.dispatcher = intent.NewDispatcher(e.log, dopts...)
	e.strikes = guard.Strikes{Max: cfg.MaxStrikes}
	e.loop = guard.NewLoop(e.log, e.metrics)
	if cfg.MaxRegenerations > 0 {
		e.loop.MaxRetries = cfg.MaxRegenerations
	}
	if cfg.TemperatureStep > 0 {
		e.loop.TemperatureStep = cfg.TemperatureStep
	}
	e.loop.BaseTemperature = cfg.BaseTemperature
	return e
}

// Turn processes one request. Turns for the same session id are serialized.
// Nothing is persisted when the turn fails.
func (e *Engine) Turn(ctx context.Context, req TurnRequest) (TurnResponse, error) {
	id := strings.TrimSpace(req.SessionID)
	if id == "" {
		return TurnResponse{}, ErrMissingSessionID
	}
	unlock := e.locks.Lock(id)
	defer unlock()

	log := e.log.With(zap.String("session_id", id))
	resp, err := e.turn(ctx, log, id, req.Answer)
	if err != nil {
		e.metrics.Turn("error")
		return TurnResponse{}, err
	}
	e.metrics.Turn(string(resp.Status))
	return resp, nil
}

func (e *Engine) turn(ctx context.Context, log *zap.Logger, id string, answer *string) (TurnResponse, error) {
	if e.exporter != nil {
		done, err := e.exporter.Completed(id)
		if err != nil {
			return TurnResponse{}, fmt.Errorf("check export: %w", err)
		}
		if done {
			return TurnResponse{}, ErrSessionCompleted
		}
	}

	prev, err := e.store.Load(ctx, id)
	if err != nil {
		return TurnResponse{}, err
	}

	var profile map[string]any
	if e.profiles != nil {
		p, ok, err := e.profiles.Profile(id)
		if err != nil {
			return TurnResponse{}, fmt.Errorf("load company profile: %w", err)
		}
		if ok {
			profile = p
		}
	}

	next := prev.Clone()
	in := turnInput{prev: prev, merged: prev.Registry, profile: profile}

	if !prev.Started() {
		if answer != nil && strings.TrimSpace(*answer) != "" {
			return TurnResponse{}, ErrUnexpectedAnswer
		}
		if e.cfg.RequireBranding && profile == nil {
			return TurnResponse{}, ErrBrandingRequired
		}
		log.Info("🆕 new interview session")
	} else {
		if answer == nil {
			return TurnResponse{}, ErrAnswerRequired
		}
		raw := *answer
		in.answer = &raw
		next.History = append(next.History, session.Exchange{
			Question:  prev.LastQuestion.Text,
			Answer:    raw,
			Timestamp: e.now().UTC(),
		})

		effective := intent.Normalize(raw)
		obs := e.strikes.Observe(prev.Meta, prev.PendingIntent)
		next.Meta = obs.Meta
		in.pending = obs.Effective
		if obs.Overridden {
			in.override = true
			e.metrics.StrikeOverride()
			log.Info("🛑 strike limit reached, clearing pending intent",
				zap.String("intent", string(obs.Meta.LastIntentType)),
				zap.Int("strikes", obs.Meta.StrikeCount))
		}
		in.merged = e.dispatcher.Apply(prev.PendingIntent, prev.Registry, effective)
	}

	msgs, err := e.messages(in)
	if err != nil {
		return TurnResponse{}, fmt.Errorf("build prompt: %w", err)
	}

	res, err := e.generate(ctx, log, msgs, e.cfg.BaseTemperature)
	if err != nil {
		return TurnResponse{}, err
	}

	var corrections []llm.Message
	regen := func(ctx context.Context, correction string, temperature float64) (output.Result, error) {
		corrections = append(corrections, llm.Message{Role: llm.RoleSystem, Content: correction})
		return e.generate(ctx, log, append(append([]llm.Message{}, msgs...), corrections...), temperature)
	}
	res, outcome, err := e.loop.Review(ctx, res, next.AskedQuestions(), regen)
	if err != nil {
		return TurnResponse{}, err
	}

	if res.Terminal() {
		return e.finalize(ctx, log, id, next, res)
	}

	next.Phase = intent.Advance(prev.Phase, res.Phase)
	next.AdditionalQuestionsAsked = res.AdditionalQuestionsAsked
	next.LastQuestion = &session.LastQuestion{Text: res.Question, AskedAt: e.now().UTC()}
	switch {
	case res.Status == output.StatusReject && !outcome.ForcedReject:
		// The answer was not accepted: keep the registry as it was and ask
		// for the same intent again.
		next.Registry = prev.Registry
		next.PendingIntent = prev.PendingIntent.Clone()
	default:
		next.Registry = registry.Reconcile(in.merged, res.Registry)
		next.PendingIntent = res.Pending
	}

	if err := e.store.Save(ctx, id, next); err != nil {
		return TurnResponse{}, err
	}
	log.Debug("turn persisted",
		zap.String("status", string(res.Status)),
		zap.String("phase", string(next.Phase)),
		zap.Stringer("pending_intent", next.PendingIntent),
		zap.Int("regenerations", outcome.Regenerations))

	return TurnResponse{
		Status:   res.Status,
		Phase:    next.Phase,
		Question: res.Question,
		Registry: next.Registry,
	}, nil
}

func (e *Engine) generate(ctx context.Context, log *zap.Logger, msgs []llm.Message, temperature float64) (output.Result, error) {
	resp, err := e.client.Generate(ctx, msgs, llm.Options{Temperature: temperature, JSON: true})
	if err != nil {
		log.Error("❌ reasoning provider failed", zap.Error(err))
		return output.Result{}, fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	res, err := output.Parse(resp.Content)
	if err != nil {
		log.Error("❌ malformed model output", zap.Error(err), zap.String("raw", resp.Content))
		return output.Result{}, fmt.Errorf("%w: %w", ErrMalformedOutput, err)
	}
	return res, nil
}

// finalize exports the completed interview and deletes the session. Export
// and delete failures are logged; the completion is still returned.
func (e *Engine) finalize(ctx context.Context, log *zap.Logger, id string, st session.State, res output.Result) (TurnResponse, error) {
	if e.exporter != nil {
		if err := e.exporter.ExportCompletion(ctx, id, res.Requirements, st.History); err != nil {
			log.Error("❌ export of completed interview failed", zap.Error(err))
		}
	}
	if err := e.store.Delete(ctx, id); err != nil {
		log.Error("❌ failed to delete completed session", zap.Error(err))
	}
	log.Info("✅ interview complete", zap.Int("answers", len(st.History)))
	return TurnResponse{
		Status:       output.StatusComplete,
		Phase:        intent.PhaseComplete,
		Requirements: res.Requirements,
	}, nil
}

// State returns the stored state of a session.
func (e *Engine) State(ctx context.Context, id string) (session.State, error) {
	if strings.TrimSpace(id) == "" {
		return session.State{}, ErrMissingSessionID
	}
	unlock := e.locks.Lock(id)
	defer unlock()
	return e.store.Load(ctx, id)
}

// Reset deletes a session so the next turn starts over.
func (e *Engine) Reset(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return ErrMissingSessionID
	}
	unlock := e.locks.Lock(id)
	defer unlock()
	return e.store.Delete(ctx, id)
}

// IsClientError reports whether err was caused by the request rather than
// by the service.
func IsClientError(err error) bool {
	for _, target := range []error{ErrMissingSessionID, ErrAnswerRequired, ErrUnexpectedAnswer} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
