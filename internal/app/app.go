// Package app wires configuration into the services shared by the
// server, the Telegram bot, the MCP server and the admin CLI.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"reqgather/internal/branding"
	"reqgather/internal/config"
	"reqgather/internal/estimate"
	"reqgather/internal/export"
	"reqgather/internal/interview"
	"reqgather/internal/llm"
	"reqgather/internal/metrics"
	"reqgather/internal/prompts"
	"reqgather/internal/scheduler"
	"reqgather/internal/session"
)

type App struct {
	Config   *config.Config
	Log      *zap.Logger
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics

	KV      session.KV
	Store   *session.KVStore
	Files   *export.Files
	Prompts prompts.Catalogue
	LLM     llm.Client

	Interview *interview.Engine
	Branding  *branding.Service
	Estimator *estimate.Estimator

	closers []func() error
}

// Storage opens the key-value store and the export directory only. It is
// enough for commands that never call the model.
func Storage(cfg *config.Config, log *zap.Logger) (*App, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a := &App{Config: cfg, Log: log, Registry: reg, Metrics: metrics.New(reg)}

	kv, err := OpenKV(cfg, log)
	if err != nil {
		return nil, err
	}
	a.KV = kv
	if c, ok := kv.(interface{ Close() error }); ok {
		a.closers = append(a.closers, c.Close)
	}
	a.Store = session.NewStore(kv, cfg.SessionTTL, log)

	files, err := export.NewFiles(cfg.ExportDir, log, a.Metrics)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.Files = files
	return a, nil
}

// New builds every service.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	a, err := Storage(cfg, log)
	if err != nil {
		return nil, err
	}
	if err := a.wireServices(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) wireServices(ctx context.Context) error {
	cfg := a.Config
	catalogue, err := prompts.Load(cfg.PromptsPath)
	if err != nil {
		return err
	}
	a.Prompts = catalogue

	model, fallbackModel := cfg.Model()
	primary, secondary, err := llm.NewFactory(cfg).CreatePair(ctx, string(cfg.LLMProvider), model, fallbackModel)
	if err != nil {
		return fmt.Errorf("create llm client: %w", err)
	}
	a.LLM = llm.NewFallback(primary, secondary,
		llm.WithTimeout(cfg.LLMTimeout),
		llm.WithRateLimit(cfg.LLMRatePerSec),
		llm.WithLogger(a.Log.Named("llm")),
		llm.WithMetrics(a.Metrics))
	a.Log.Info("🤖 llm ready",
		zap.String("provider", string(cfg.LLMProvider)),
		zap.String("model", model),
		zap.String("fallback", fallbackModel))

	a.Branding = branding.NewService(a.KV, a.LLM, a.Files, catalogue.Branding, a.Log.Named("branding"))
	a.Estimator = estimate.New(a.LLM, catalogue.Sitemap, catalogue.UIPrompts, a.Log.Named("estimate"))
	a.Interview = interview.New(a.Store, a.LLM, interview.Config{
		SystemPrompt:     catalogue.Interview,
		MaxStrikes:       cfg.MaxStrikes,
		MaxRegenerations: cfg.MaxRegenerations,
		TemperatureStep:  cfg.RegenTemperatureStep,
		RequireBranding:  cfg.RequireBranding,
	},
		interview.WithLogger(a.Log.Named("interview")),
		interview.WithMetrics(a.Metrics),
		interview.WithExporter(a.Files),
		interview.WithProfiles(a.Branding),
	)
	return nil
}

// OpenKV opens the configured store driver.
func OpenKV(cfg *config.Config, log *zap.Logger) (session.KV, error) {
	switch cfg.StoreDriver {
	case config.StoreMemory:
		log.Warn("⚠️ using in-memory session store, sessions are lost on restart")
		return session.NewMemoryKV(), nil
	case config.StoreBadger, "":
		kv, err := session.OpenBadger(session.BadgerConfig{Path: cfg.StorePath}, log)
		if err != nil {
			return nil, err
		}
		log.Info("💾 session store opened", zap.String("path", cfg.StorePath), zap.Duration("ttl", cfg.SessionTTL))
		return kv, nil
	default:
		return nil, fmt.Errorf("unknown store driver: %s", cfg.StoreDriver)
	}
}

// Maintenance schedules value-log GC when the store is badger. The caller
// starts and stops the returned scheduler.
func (a *App) Maintenance() (*scheduler.Scheduler, error) {
	s := scheduler.New(a.Log.Named("scheduler"))
	if gc, ok := a.KV.(*session.BadgerKV); ok {
		if err := s.Add("store-gc", a.Config.StoreGCSchedule, gc.RunGC); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	_ = a.Log.Sync()
	return errors.Join(errs...)
}
