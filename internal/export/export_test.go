package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"reqgather/internal/metrics"
	"reqgather/internal/session"
)

func newFiles(t *testing.T) *Files {
	t.Helper()
	f, err := NewFiles(t.TempDir(), zap.NewNop(), nil)
	require.NoError(t, err)
	return f
}

func TestExportCompletion(t *testing.T) {
	f := newFiles(t)
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	history := []session.Exchange{
		{Question: "New build?", Answer: "new", Timestamp: now},
		{Question: "Who uses it?", Answer: "admins", Timestamp: now.Add(time.Minute)},
	}

	done, err := f.Completed("s1")
	require.NoError(t, err)
	assert.False(t, done)

	require.NoError(t, f.ExportCompletion(context.Background(), "s1", map[string]any{"project_scope": "NEW_BUILD"}, history))

	done, err = f.Completed("s1")
	require.NoError(t, err)
	assert.True(t, done)

	var req map[string]any
	require.NoError(t, f.ReadJSON(KindRequirements, "s1", &req))
	assert.Equal(t, "NEW_BUILD", req["project_scope"])

	got, err := f.History("s1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "s1", got[0].SessionID)
	assert.Equal(t, "admins", got[1].Answer)
	assert.True(t, got[1].Timestamp.Equal(now.Add(time.Minute)))
}

func TestExportHistoryAppends(t *testing.T) {
	f := newFiles(t)
	require.NoError(t, f.ExportHistory("s2", []session.Exchange{{Question: "a", Answer: "1"}}))
	require.NoError(t, f.ExportHistory("s2", []session.Exchange{{Question: "b", Answer: "2"}}))

	got, err := f.History("s2")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[1].Question)
}

func TestHistorySkipsBrokenLines(t *testing.T) {
	f := newFiles(t)
	p := filepath.Join(f.Dir, "history_s3.jsonl")
	require.NoError(t, os.WriteFile(p, []byte("{\"question\":\"ok\"}\nnot json\n\n"), 0o644))

	got, err := f.History("s3")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "ok", got[0].Question)
}

func TestReadJSONMissing(t *testing.T) {
	f := newFiles(t)
	var v map[string]any
	assert.ErrorIs(t, f.ReadJSON(KindBranding, "nobody", &v), ErrNotExported)
	_, err := f.History("nobody")
	assert.ErrorIs(t, err, ErrNotExported)
}

func TestUnsafeSessionID(t *testing.T) {
	f := newFiles(t)
	assert.ErrorIs(t, f.WriteJSON(KindSitemap, "../etc/passwd", map[string]any{}), ErrBadSessionID)
	_, err := f.Completed("a/b")
	assert.ErrorIs(t, err, ErrBadSessionID)
}

func TestExportCompletionCountsFailures(t *testing.T) {
	reg := prometheus.NewRegistry()
	f, err := NewFiles(t.TempDir(), zap.NewNop(), metrics.New(reg))
	require.NoError(t, err)

	err = f.ExportCompletion(context.Background(), "bad/id", map[string]any{}, []session.Exchange{{Question: "q"}})
	require.Error(t, err)
	expected := `
# HELP reqgather_export_failures_total Failed export writes by artefact kind
# TYPE reqgather_export_failures_total counter
reqgather_export_failures_total{kind="history"} 1
reqgather_export_failures_total{kind="requirements"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "reqgather_export_failures_total"))
}

func TestExportCompletionWritesHistoryWhenRequirementsFail(t *testing.T) {
	reg := prometheus.NewRegistry()
	f, err := NewFiles(t.TempDir(), zap.NewNop(), metrics.New(reg))
	require.NoError(t, err)
	// A non-empty directory in the way of requirements_s5.json makes the rename fail.
	require.NoError(t, os.MkdirAll(filepath.Join(f.Dir, "requirements_s5.json", "x"), 0o755))

	err = f.ExportCompletion(context.Background(), "s5", map[string]any{"budget": "1k"}, []session.Exchange{{Question: "q", Answer: "a"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requirements")

	got, err := f.History("s5")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].Answer)
	expected := `
# HELP reqgather_export_failures_total Failed export writes by artefact kind
# TYPE reqgather_export_failures_total counter
reqgather_export_failures_total{kind="requirements"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "reqgather_export_failures_total"))
}

func TestExportHistoryConcurrentAppends(t *testing.T) {
	f := newFiles(t)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, f.ExportHistory("s6", []session.Exchange{{Question: fmt.Sprintf("q%d", i), Answer: "a"}}))
		}(i)
	}
	wg.Wait()

	got, err := f.History("s6")
	require.NoError(t, err)
	require.Len(t, got, 20)
	seen := map[string]bool{}
	for _, r := range got {
		assert.Equal(t, "a", r.Answer)
		seen[r.Question] = true
	}
	assert.Len(t, seen, 20)
}
