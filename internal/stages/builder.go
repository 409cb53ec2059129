package stages

import (
	"log/slog"

	"github.com/dataforge-ai/forge/internal/extract"
	"github.com/dataforge-ai/forge/internal/pipeline"
	"github.com/dataforge-ai/forge/internal/providers"
	"github.com/dataforge-ai/forge/internal/scrape"
	"github.com/dataforge-ai/forge/internal/store"
	"github.com/dataforge-ai/forge/internal/templates"
)

// Deps holds the long-lived dependencies shared by every job's stages.
type Deps struct {
	Scraper   *scrape.Client
	LLM       providers.LLMClient
	Templates *templates.Registry
	Counter   extract.TokenCounter
	DataDir   string
	Logger    *slog.Logger
}

// Builder returns a pipeline.StageBuilder that assembles the five
// stages for a job, each bound to its slice of the job config.
func Builder(deps Deps) pipeline.StageBuilder {
	return func(job *store.Job) ([]pipeline.Stage, error) {
		cfg := job.Config
		cfg.Normalize()

		return []pipeline.Stage{
			NewSpider(deps.Scraper, deps.DataDir, job.ID, cfg.Scraping, deps.Logger),
			NewRefiner(deps.Counter, cfg.Processing, deps.Logger),
			NewFactory(deps.LLM, deps.Templates, cfg.Generation, deps.Logger),
			NewInspector(cfg.Quality, deps.Logger),
			NewShipper(deps.DataDir, job.ID, cfg.Export, deps.Logger),
		}, nil
	}
}
