// Package export writes interview artefacts to a directory: the final
// requirements, the question/answer log and the branding, sitemap and
// prompt documents produced around the interview.
package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"reqgather/internal/metrics"
	"reqgather/internal/session"
)

type Kind string

const (
	KindRequirements Kind = "requirements"
	KindBranding     Kind = "branding"
	KindSitemap      Kind = "sitemap"
	KindPrompts      Kind = "prompts"
	KindHistory      Kind = "history"
)

var (
	ErrNotExported  = errors.New("artefact not exported")
	ErrBadSessionID = errors.New("session id is not safe for a file name")
)

var safeID = regexp.MustCompile(`^[A-Za-z0-9_.:-]{1,128}$`)

// HistoryRecord is one line of history_<id>.jsonl.
type HistoryRecord struct {
	SessionID string `json:"session_id"`
	session.Exchange
}

// Files stores artefacts as <kind>_<id>.json under Dir.
type Files struct {
	Dir string

	log     *zap.Logger
	metrics *metrics.Metrics

	// appendMu serializes history appends.
	appendMu sync.Mutex
}

func NewFiles(dir string, log *zap.Logger, m *metrics.Metrics) (*Files, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Files{Dir: dir, log: log, metrics: m}, nil
}

func (f *Files) path(kind Kind, id string) (string, error) {
	if !safeID.MatchString(id) {
		return "", fmt.Errorf("%w: %q", ErrBadSessionID, id)
	}
	ext := ".json"
	if kind == KindHistory {
		ext = ".jsonl"
	}
	return filepath.Join(f.Dir, string(kind)+"_"+id+ext), nil
}

// WriteJSON replaces the artefact of the given kind for id.
func (f *Files) WriteJSON(kind Kind, id string, v any) error {
	p, err := f.path(kind, id)
	if err != nil {
		return err
	}
	raw, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", kind, err)
	}
	tmp, err := os.CreateTemp(f.Dir, "."+string(kind)+"-*")
	if err != nil {
		return fmt.Errorf("write %s: %w", kind, err)
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", kind, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", kind, err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", kind, err)
	}
	f.log.Info("💾 exported", zap.String("kind", string(kind)), zap.String("session_id", id), zap.String("path", p))
	return nil
}

// ReadJSON decodes the artefact into v. ErrNotExported when it does not exist.
func (f *Files) ReadJSON(kind Kind, id string, v any) error {
	p, err := f.path(kind, id)
	if err != nil {
		return err
	}
	raw, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%s for %s: %w", kind, id, ErrNotExported)
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", kind, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode %s: %w", kind, err)
	}
	return nil
}

// Exists reports whether an artefact of the given kind exists for id.
func (f *Files) Exists(kind Kind, id string) (bool, error) {
	p, err := f.path(kind, id)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(p)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}

// Completed reports whether the interview for id has already been exported.
func (f *Files) Completed(id string) (bool, error) {
	return f.Exists(KindRequirements, id)
}

func (f *Files) ExportRequirements(id string, requirements map[string]any) error {
	if requirements == nil {
		requirements = map[string]any{}
	}
	return f.WriteJSON(KindRequirements, id, requirements)
}

// ExportHistory appends the exchanges to history_<id>.jsonl.
func (f *Files) ExportHistory(id string, history []session.Exchange) error {
	p, err := f.path(KindHistory, id)
	if err != nil {
		return err
	}
	rec, err := newRecorder(p)
	if err != nil {
		return err
	}
	records := make([]any, 0, len(history))
	for _, h := range history {
		records = append(records, HistoryRecord{SessionID: id, Exchange: h})
	}
	f.appendMu.Lock()
	defer f.appendMu.Unlock()
	if err := rec.append(records...); err != nil {
		return fmt.Errorf("export history: %w", err)
	}
	return nil
}

// History reads back the exported exchanges for id.
func (f *Files) History(id string) ([]HistoryRecord, error) {
	p, err := f.path(KindHistory, id)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("history for %s: %w", id, ErrNotExported)
	}
	return load[HistoryRecord](p)
}

// ExportCompletion writes the requirements and the history concurrently.
// Both writes always run to the end; the session is deleted right after, so
// they are not tied to ctx. Failures are logged, counted and joined.
func (f *Files) ExportCompletion(_ context.Context, id string, requirements map[string]any, history []session.Exchange) error {
	var g errgroup.Group
	var errs [2]error
	g.Go(func() error {
		if err := f.ExportRequirements(id, requirements); err != nil {
			f.metrics.ExportFailure(string(KindRequirements))
			errs[0] = err
			return err
		}
		return nil
	})
	g.Go(func() error {
		if err := f.ExportHistory(id, history); err != nil {
			f.metrics.ExportFailure(string(KindHistory))
			errs[1] = err
			return err
		}
		return nil
	})
	if g.Wait() == nil {
		return nil
	}
	err := errors.Join(errs[:]...)
	f.log.Error("❌ export failed", zap.String("session_id", id), zap.Error(err))
	return err
}
