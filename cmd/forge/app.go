package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/dataforge-ai/forge/internal/config"
	"github.com/dataforge-ai/forge/internal/extract"
	"github.com/dataforge-ai/forge/internal/pipeline"
	"github.com/dataforge-ai/forge/internal/progress"
	"github.com/dataforge-ai/forge/internal/providers"
	"github.com/dataforge-ai/forge/internal/scrape"
	"github.com/dataforge-ai/forge/internal/stages"
	"github.com/dataforge-ai/forge/internal/store"
	"github.com/dataforge-ai/forge/internal/templates"
)

// app bundles the long-lived services shared by serve and run.
type app struct {
	cfg          *config.Manager
	store        *store.SQLite
	bus          *progress.Bus
	templates    *templates.Registry
	orchestrator *pipeline.Orchestrator
	logger       *slog.Logger
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

// newApp loads config and wires the pipeline services together.
func newApp(ctx context.Context, logger *slog.Logger) (*app, error) {
	cm, err := config.NewManager(cfgFile)
	if err != nil {
		return nil, err
	}
	cfg := cm.Get()

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, err
	}

	st, err := store.OpenSQLite(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, err
	}

	counter, err := extract.NewTiktokenCounter()
	if err != nil {
		st.Close()
		return nil, err
	}

	bus := progress.NewBus(logger)
	registry := templates.NewRegistry()
	llm := providers.NewOpenRouterClient(cfg.ToProviderConfig())
	scraper := scrape.NewClient(scrape.ClientConfig{
		UserAgent: cfg.Scraper.UserAgent,
		Timeout:   time.Duration(cfg.Scraper.TimeoutSeconds) * time.Second,
		Logger:    logger,
	})

	builder := stages.Builder(stages.Deps{
		Scraper:   scraper,
		LLM:       llm,
		Templates: registry,
		Counter:   counter,
		DataDir:   cfg.DataDir,
		Logger:    logger,
	})

	return &app{
		cfg:          cm,
		store:        st,
		bus:          bus,
		templates:    registry,
		orchestrator: pipeline.NewOrchestrator(st, st, bus, builder, logger),
		logger:       logger,
	}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}
