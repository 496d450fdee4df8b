package interview

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"reqgather/internal/guard"
	"reqgather/internal/intent"
	"reqgather/internal/llm"
	"reqgather/internal/output"
	"reqgather/internal/registry"
	"reqgather/internal/session"
)

type scriptedLLM struct {
	mu      sync.Mutex
	replies []func() (string, error)
	calls   [][]llm.Message
	opts    []llm.Options
}

func (s *scriptedLLM) Generate(_ context.Context, msgs []llm.Message, o llm.Options) (llm.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, msgs)
	s.opts = append(s.opts, o)
	if len(s.replies) == 0 {
		return llm.Response{}, errors.New("script exhausted")
	}
	next := s.replies[0]
	if len(s.replies) > 1 {
		s.replies = s.replies[1:]
	}
	text, err := next()
	return llm.Response{Content: text}, err
}

func (s *scriptedLLM) then(texts ...string) *scriptedLLM {
	for _, t := range texts {
		t := t
		s.replies = append(s.replies, func() (string, error) { return t, nil })
	}
	return s
}

func (s *scriptedLLM) payload(t *testing.T, call int) payload {
	t.Helper()
	msgs := s.calls[call]
	var p payload
	require.NoError(t, json.Unmarshal([]byte(msgs[len(msgs)-1].Content), &p))
	return p
}

func ask(phase, question, reg, intentType string) string {
	return fmt.Sprintf(`{"status":"ASK","phase":%q,"question":%q,"updated_registry":%s,"pending_intent":{"type":%q,"role":null},"additional_questions_asked":0}`,
		phase, question, reg, intentType)
}

type fakeExporter struct {
	mu        sync.Mutex
	completed map[string]bool
	exported  map[string]map[string]any
	history   map[string][]session.Exchange
	err       error
}

func newFakeExporter() *fakeExporter {
	return &fakeExporter{completed: map[string]bool{}, exported: map[string]map[string]any{}, history: map[string][]session.Exchange{}}
}

func (f *fakeExporter) Completed(id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.completed[id], nil
}

func (f *fakeExporter) ExportCompletion(_ context.Context, id string, req map[string]any, h []session.Exchange) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.completed[id] = true
	f.exported[id] = req
	f.history[id] = h
	return nil
}

type fakeProfiles map[string]map[string]any

func (f fakeProfiles) Profile(id string) (map[string]any, bool, error) {
	p, ok := f[id]
	return p, ok, nil
}

func newEngine(t *testing.T, client llm.Client, opts ...Option) (*Engine, session.Store) {
	t.Helper()
	store := session.NewStore(session.NewMemoryKV(), time.Hour, zap.NewNop())
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	opts = append([]Option{WithClock(func() time.Time { return clock })}, opts...)
	return New(store, client, Config{SystemPrompt: "system"}, opts...), store
}

func str(s string) *string { return &s }

const firstQuestion = "Is this a new build or an update of an existing application?"

func TestTurn_FirstTurnStartsSession(t *testing.T) {
	client := (&scriptedLLM{}).then(ask("SCOPE_DEFINITION", firstQuestion, `{}`, "DEFINE_SCOPE"))
	e, store := newEngine(t, client)

	resp, err := e.Turn(context.Background(), TurnRequest{SessionID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, output.StatusAsk, resp.Status)
	assert.Equal(t, firstQuestion, resp.Question)

	st, err := store.Load(context.Background(), "s1")
	require.NoError(t, err)
	require.NotNil(t, st.LastQuestion)
	assert.Equal(t, firstQuestion, st.LastQuestion.Text)
	assert.Equal(t, intent.DefineScope, st.PendingIntent.Type)
	assert.Empty(t, st.History)

	assert.True(t, client.opts[0].JSON)
	assert.Equal(t, "system", client.calls[0][0].Content)
	p := client.payload(t, 0)
	assert.Nil(t, p.Metadata.UserAnswer)
	assert.Nil(t, p.PendingIntent)
}

func TestTurn_RequestChecks(t *testing.T) {
	client := (&scriptedLLM{}).then(ask("SCOPE_DEFINITION", firstQuestion, `{}`, "DEFINE_SCOPE"))
	e, _ := newEngine(t, client)
	ctx := context.Background()

	_, err := e.Turn(ctx, TurnRequest{SessionID: " "})
	assert.ErrorIs(t, err, ErrMissingSessionID)

	_, err = e.Turn(ctx, TurnRequest{SessionID: "s1", Answer: str("hello")})
	assert.ErrorIs(t, err, ErrUnexpectedAnswer)
	assert.True(t, IsClientError(err))

	_, err = e.Turn(ctx, TurnRequest{SessionID: "s1"})
	require.NoError(t, err)

	_, err = e.Turn(ctx, TurnRequest{SessionID: "s1"})
	assert.ErrorIs(t, err, ErrAnswerRequired)
	assert.Len(t, client.calls, 1)
}

func TestTurn_MergesAnswerBeforeCallingModel(t *testing.T) {
	client := (&scriptedLLM{}).then(
		ask("SCOPE_DEFINITION", firstQuestion, `{}`, "DEFINE_SCOPE"),
		// The model drops project_scope from its registry; it must survive.
		ask("INIT", "Who will use the system?", `{"project_description":"fleet tracker"}`, "ROLE_DEFINITION"),
	)
	e, store := newEngine(t, client)
	ctx := context.Background()

	_, err := e.Turn(ctx, TurnRequest{SessionID: "s1"})
	require.NoError(t, err)
	resp, err := e.Turn(ctx, TurnRequest{SessionID: "s1", Answer: str("brand new app from scratch")})
	require.NoError(t, err)

	p := client.payload(t, 1)
	assert.Equal(t, "NEW_BUILD", p.Registry["project_scope"].Text())
	assert.Empty(t, p.Original)
	assert.Equal(t, intent.DefineScope, p.PendingIntent.Type)
	assert.Equal(t, []string{firstQuestion}, p.AskedQuestions)

	assert.Equal(t, intent.PhaseInit, resp.Phase)
	assert.Equal(t, "NEW_BUILD", resp.Registry["project_scope"].Text())
	assert.Equal(t, "fleet tracker", resp.Registry["project_description"].Text())

	st, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, st.History, 1)
	assert.Equal(t, session.Exchange{
		Question:  firstQuestion,
		Answer:    "brand new app from scratch",
		Timestamp: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}, st.History[0])
	assert.Equal(t, guard.Meta{LastIntentType: intent.DefineScope, StrikeCount: 1}, st.Meta)
}

func TestTurn_ModelCannotDropMergedRole(t *testing.T) {
	client := (&scriptedLLM{}).then(
		ask("INIT", "Who will use the system?", `{}`, "ROLE_DEFINITION"),
		ask("INIT", "What are the business goals?", `{}`, "BUSINESS_GOALS"),
		// Keeps roles but lists only Admin.
		ask("BUSINESS", "Describe the current process.", `{"roles":{"Admin":{}}}`, "CURRENT_PROCESS"),
	)
	e, store := newEngine(t, client)
	ctx := context.Background()

	_, err := e.Turn(ctx, TurnRequest{SessionID: "s1"})
	require.NoError(t, err)
	_, err = e.Turn(ctx, TurnRequest{SessionID: "s1", Answer: str("Admin, Doctor")})
	require.NoError(t, err)
	resp, err := e.Turn(ctx, TurnRequest{SessionID: "s1", Answer: str("Cut waiting times")})
	require.NoError(t, err)

	assert.Equal(t, []string{"Admin", "Doctor"}, resp.Registry[registry.FieldRoles].Keys())
	assert.Equal(t, []string{"Cut waiting times"}, resp.Registry[registry.FieldBusinessGoals].Items())

	st, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Admin", "Doctor"}, st.Registry[registry.FieldRoles].Keys())
}

func TestTurn_DeclineIsMergedAsPlaceholder(t *testing.T) {
	client := (&scriptedLLM{}).then(
		ask("BUSINESS", "What are the business goals?", `{}`, "BUSINESS_GOALS"),
		ask("BUSINESS", "Describe the current process.", `{}`, "CURRENT_PROCESS"),
	)
	e, _ := newEngine(t, client)
	ctx := context.Background()

	_, err := e.Turn(ctx, TurnRequest{SessionID: "s1"})
	require.NoError(t, err)
	resp, err := e.Turn(ctx, TurnRequest{SessionID: "s1", Answer: str("Skip.")})
	require.NoError(t, err)
	assert.Equal(t, []string{intent.NotProvided}, resp.Registry["business_goals"].Items())
}

func TestTurn_PhaseNeverMovesBackward(t *testing.T) {
	client := (&scriptedLLM{}).then(
		ask("DESIGN", "Any design system?", `{}`, "DESIGN_PREFERENCES"),
		ask("BUSINESS", "What are the goals?", `{}`, "BUSINESS_GOALS"),
	)
	e, _ := newEngine(t, client)
	ctx := context.Background()

	_, err := e.Turn(ctx, TurnRequest{SessionID: "s1"})
	require.NoError(t, err)
	resp, err := e.Turn(ctx, TurnRequest{SessionID: "s1", Answer: str("material")})
	require.NoError(t, err)
	assert.Equal(t, intent.PhaseDesign, resp.Phase)
}

func TestTurn_UpstreamFailureKeepsState(t *testing.T) {
	client := (&scriptedLLM{}).then(ask("SCOPE_DEFINITION", firstQuestion, `{}`, "DEFINE_SCOPE"))
	client.replies = append(client.replies, func() (string, error) { return "", llm.ErrAllAttemptsFailed })
	e, store := newEngine(t, client)
	ctx := context.Background()

	_, err := e.Turn(ctx, TurnRequest{SessionID: "s1"})
	require.NoError(t, err)
	before, err := store.Load(ctx, "s1")
	require.NoError(t, err)

	_, err = e.Turn(ctx, TurnRequest{SessionID: "s1", Answer: str("new")})
	assert.ErrorIs(t, err, ErrUpstream)
	assert.ErrorIs(t, err, llm.ErrAllAttemptsFailed)
	assert.False(t, IsClientError(err))

	after, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	if diff := cmp.Diff(before, after, cmp.Comparer(func(a, b registry.Registry) bool { return a.Equal(b) })); diff != "" {
		t.Fatalf("state changed after failed turn (-before +after):\n%s", diff)
	}
}

func TestTurn_MalformedOutput(t *testing.T) {
	client := (&scriptedLLM{}).then(`{"status":"MAYBE"}`)
	e, _ := newEngine(t, client)

	_, err := e.Turn(context.Background(), TurnRequest{SessionID: "s1"})
	assert.ErrorIs(t, err, ErrMalformedOutput)
	assert.ErrorIs(t, err, output.ErrMalformed)
}

func TestTurn_RejectKeepsRegistryAndIntent(t *testing.T) {
	client := (&scriptedLLM{}).then(
		ask("INIT", "What does the project do?", `{}`, "PROJECT_DESCRIPTION"),
		`{"status":"REJECT","phase":"INIT","question":"Sorry, could you describe the project?","updated_registry":{"project_description":"I like pizza"},"pending_intent":null}`,
	)
	e, store := newEngine(t, client)
	ctx := context.Background()

	_, err := e.Turn(ctx, TurnRequest{SessionID: "s1"})
	require.NoError(t, err)
	resp, err := e.Turn(ctx, TurnRequest{SessionID: "s1", Answer: str("I like pizza")})
	require.NoError(t, err)
	assert.Equal(t, output.StatusReject, resp.Status)
	assert.Empty(t, resp.Registry)

	st, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, intent.ProjectDescription, st.PendingIntent.Type)
	assert.Equal(t, "Sorry, could you describe the project?", st.LastQuestion.Text)
	assert.Len(t, st.History, 1)
}

func TestTurn_DuplicateQuestionForcesRejectAfterRetries(t *testing.T) {
	client := (&scriptedLLM{}).then(
		ask("BUSINESS", "What are the business goals?", `{}`, "BUSINESS_GOALS"),
		ask("BUSINESS", "What are the business goals?", `{"business_goals":["grow"]}`, "BUSINESS_GOALS"),
	)
	e, store := newEngine(t, client)
	ctx := context.Background()

	_, err := e.Turn(ctx, TurnRequest{SessionID: "s1"})
	require.NoError(t, err)
	resp, err := e.Turn(ctx, TurnRequest{SessionID: "s1", Answer: str("grow")})
	require.NoError(t, err)

	assert.Equal(t, output.StatusReject, resp.Status)
	assert.Equal(t, guard.Apology, resp.Question)
	// one call for the first turn, one for the answer, three regenerations
	assert.Len(t, client.calls, 5)
	assert.InDelta(t, 0.6, client.opts[4].Temperature, 1e-9)
	last := client.calls[4]
	assert.Contains(t, last[len(last)-1].Content, "CORRECTION")

	st, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, st.PendingIntent)
	assert.Equal(t, intent.AdditionalInfo, st.PendingIntent.Type)
	assert.Equal(t, []string{"grow"}, st.Registry["business_goals"].Items())

	// The reply to the apology lands in additional_notes.
	client.replies = nil
	client.then(ask("ADDITIONAL", "Any deadline?", `{}`, "PROJECT_TIMELINE"))
	resp, err = e.Turn(ctx, TurnRequest{SessionID: "s1", Answer: str("Must support offline mode")})
	require.NoError(t, err)
	assert.Equal(t, []string{"Must support offline mode"}, resp.Registry[registry.FieldAdditionalNotes].Items())
}

func TestTurn_StrikeOverrideClearsIntentSentToModel(t *testing.T) {
	client := (&scriptedLLM{}).then(ask("FUNCTIONAL", "Which integrations?", `{}`, "INTEGRATIONS"))
	e, store := newEngine(t, client)
	ctx := context.Background()

	st := session.NewState()
	st.LastQuestion = &session.LastQuestion{Text: "Which features?"}
	st.PendingIntent = intent.New(intent.SystemFeatures, "")
	st.Meta = guard.Meta{LastIntentType: intent.SystemFeatures, StrikeCount: 2}
	require.NoError(t, store.Save(ctx, "s1", st))

	_, err := e.Turn(ctx, TurnRequest{SessionID: "s1", Answer: str("search")})
	require.NoError(t, err)

	p := client.payload(t, 0)
	assert.Nil(t, p.PendingIntent)
	assert.Equal(t, []string{"search"}, p.Registry["system_features"].Items())
	var directives []string
	for _, m := range client.calls[0] {
		if m.Role == llm.RoleSystem {
			directives = append(directives, m.Content)
		}
	}
	assert.Contains(t, directives, guard.OverrideDirective)

	saved, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 3, saved.Meta.StrikeCount)
}

func TestTurn_CompleteExportsAndDeletes(t *testing.T) {
	client := (&scriptedLLM{}).then(
		ask("ADDITIONAL", "What is the budget?", `{"budget":"10k"}`, "BUDGET"),
		`{"status":"COMPLETE","phase":"COMPLETE","requirements":{"budget":"10k"}}`,
	)
	x := newFakeExporter()
	e, store := newEngine(t, client, WithExporter(x))
	ctx := context.Background()

	_, err := e.Turn(ctx, TurnRequest{SessionID: "s1"})
	require.NoError(t, err)
	resp, err := e.Turn(ctx, TurnRequest{SessionID: "s1", Answer: str("10k")})
	require.NoError(t, err)
	assert.Equal(t, output.StatusComplete, resp.Status)
	assert.Equal(t, map[string]any{"budget": "10k"}, resp.Requirements)
	assert.Equal(t, map[string]any{"budget": "10k"}, x.exported["s1"])
	require.Len(t, x.history["s1"], 1)
	assert.Equal(t, "10k", x.history["s1"][0].Answer)

	st, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, st.Started())

	_, err = e.Turn(ctx, TurnRequest{SessionID: "s1"})
	assert.ErrorIs(t, err, ErrSessionCompleted)
}

func TestTurn_ExportFailureStillCompletes(t *testing.T) {
	client := (&scriptedLLM{}).then(`{"status":"COMPLETE","phase":"COMPLETE","requirements":{}}`)
	x := newFakeExporter()
	x.err = errors.New("disk full")
	e, _ := newEngine(t, client, WithExporter(x))

	resp, err := e.Turn(context.Background(), TurnRequest{SessionID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, output.StatusComplete, resp.Status)
}

func TestTurn_BrandingGate(t *testing.T) {
	client := (&scriptedLLM{}).then(ask("SCOPE_DEFINITION", firstQuestion, `{}`, "DEFINE_SCOPE"))
	store := session.NewStore(session.NewMemoryKV(), time.Hour, nil)
	profiles := fakeProfiles{"branded": {"name": "Acme"}}
	e := New(store, client, Config{SystemPrompt: "system", RequireBranding: true}, WithProfiles(profiles))
	ctx := context.Background()

	_, err := e.Turn(ctx, TurnRequest{SessionID: "plain"})
	assert.ErrorIs(t, err, ErrBrandingRequired)

	_, err = e.Turn(ctx, TurnRequest{SessionID: "branded"})
	require.NoError(t, err)
	p := client.payload(t, 0)
	assert.Equal(t, "Acme", p.CompanyProfile["name"])
}

func TestTurn_ConcurrentTurnsOnOneSessionDoNotInterleave(t *testing.T) {
	client := (&scriptedLLM{}).then(ask("SCOPE_DEFINITION", firstQuestion, `{}`, "DEFINE_SCOPE"))
	e, _ := newEngine(t, client)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.Turn(ctx, TurnRequest{SessionID: "s1"})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var ok, required int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrAnswerRequired):
			required++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, required)
}

func TestResetAndState(t *testing.T) {
	client := (&scriptedLLM{}).then(ask("SCOPE_DEFINITION", firstQuestion, `{}`, "DEFINE_SCOPE"))
	e, _ := newEngine(t, client)
	ctx := context.Background()

	_, err := e.Turn(ctx, TurnRequest{SessionID: "s1"})
	require.NoError(t, err)
	st, err := e.State(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, st.Started())

	require.NoError(t, e.Reset(ctx, "s1"))
	st, err = e.State(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, st.Started())
	assert.True(t, strings.HasPrefix(string(st.Phase), "SCOPE"))
}
