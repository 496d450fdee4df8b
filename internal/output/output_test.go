package output

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reqgather/internal/intent"
	"reqgather/internal/registry"
)

var registryEqual = cmp.Comparer(func(a, b registry.Registry) bool { return a.Equal(b) })

const askJSON = `{
  "status": "ASK",
  "phase": "FUNCTIONAL",
  "question": "Which features does the Doctor role need?",
  "updated_registry": {"roles": {"Doctor": {"features": []}}, "website": "https://clinic.example/a,b"},
  "pending_intent": {"type": "ROLE_FEATURES", "role": "Doctor"},
  "additional_questions_asked": 1
}`

func TestParse_RoundTripThroughFenceAndTrailingComma(t *testing.T) {
	wrapped := "Sure! Here you go:\n```json\n" +
		`{
  "status": "ASK",
  "phase": "FUNCTIONAL",
  "question": "Which features does the Doctor role need?",
  "updated_registry": {"roles": {"Doctor": {"features": [],},}, "website": "https://clinic.example/a,b",},
  "pending_intent": {"type": "ROLE_FEATURES", "role": "Doctor",},
  "additional_questions_asked": 1,
}` + "\n```\nLet me know!"

	want, err := Parse(askJSON)
	require.NoError(t, err)
	got, err := Parse(wrapped)
	require.NoError(t, err)

	if diff := cmp.Diff(want, got, registryEqual); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, StatusAsk, got.Status)
	assert.Equal(t, intent.PhaseFunctional, got.Phase)
	assert.Equal(t, "Doctor", got.Pending.RoleName())
	assert.Equal(t, "https://clinic.example/a,b", got.Registry["website"].Text())
}

func TestClean(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"prose around", `Result: {"a":1} hope it helps`, `{"a":1}`},
		{"bare fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"tagged fence", "```JSON\n{\"a\":1}\n```", `{"a":1}`},
		{"line comment", "{\"a\":1 // one\n}", "{\"a\":1 \n}"},
		{"block comment", `{/* note */"a":1}`, `{"a":1}`},
		{"url kept", `{"u":"http://x.io/*y*/"}`, `{"u":"http://x.io/*y*/"}`},
		{"comma in string kept", `{"a":"x,}"}`, `{"a":"x,}"}`},
		{"trailing commas", "{\"a\":[1,2,\n],}", "{\"a\":[1,2\n]}"},
		{"escaped quote", `{"a":"say \"hi\", // no"}`, `{"a":"say \"hi\", // no"}`},
		{"bare array", "```json\n[{\"a\":1},]\n```", `[{"a":1}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Clean(tt.in))
		})
	}
}

func TestParse_Complete(t *testing.T) {
	res, err := Parse(`{"status":"complete","phase":"complete","requirements":{"roles":{"Admin":{"features":["x"]}}}}`)
	require.NoError(t, err)
	assert.True(t, res.Terminal())
	assert.Equal(t, intent.PhaseComplete, res.Phase)
	assert.Contains(t, res.Requirements, "roles")
}

func TestParse_AcceptsLegacyContextKey(t *testing.T) {
	res, err := Parse(`{"status":"ASK","phase":"BUSINESS","question":"Goals?","updated_context":{"budget":"1k"},"pending_intent":{"type":"BUSINESS_GOALS"}}`)
	require.NoError(t, err)
	assert.Equal(t, "1k", res.Registry[registry.FieldBudget].Text())
	assert.Equal(t, 0, res.AdditionalQuestionsAsked)
}

func TestParse_RejectWithoutIntent(t *testing.T) {
	res, err := Parse(`{"status":"REJECT","phase":"DESIGN","question":"Please answer the question about colors.","updated_registry":{},"pending_intent":{"type":""}}`)
	require.NoError(t, err)
	assert.Equal(t, StatusReject, res.Status)
	assert.Nil(t, res.Pending)
}

func TestParse_Failures(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", "I cannot help with that"},
		{"no status", `{"phase":"INIT"}`},
		{"unknown status", `{"status":"DONE","phase":"INIT"}`},
		{"ask without intent", `{"status":"ASK","phase":"INIT","question":"q","updated_registry":{}}`},
		{"ask without registry", `{"status":"ASK","phase":"INIT","question":"q","pending_intent":{"type":"BUDGET"}}`},
		{"ask blank question", `{"status":"ASK","phase":"INIT","question":"  ","updated_registry":{},"pending_intent":{"type":"BUDGET"}}`},
		{"ask unknown phase", `{"status":"ASK","phase":"LATER","question":"q","updated_registry":{},"pending_intent":{"type":"BUDGET"}}`},
		{"ask complete phase", `{"status":"ASK","phase":"COMPLETE","question":"q","updated_registry":{},"pending_intent":{"type":"BUDGET"}}`},
		{"negative counter", `{"status":"ASK","phase":"INIT","question":"q","updated_registry":{},"pending_intent":{"type":"BUDGET"},"additional_questions_asked":-1}`},
		{"complete wrong phase", `{"status":"COMPLETE","phase":"DESIGN","requirements":{}}`},
		{"complete no requirements", `{"status":"COMPLETE","phase":"COMPLETE"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.raw)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformed))
			var pe *ParseError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.raw, pe.Raw)
			assert.NotEmpty(t, pe.Reason)
		})
	}
}
