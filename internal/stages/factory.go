package stages

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/dataforge-ai/forge/internal/dataset"
	"github.com/dataforge-ai/forge/internal/extract"
	"github.com/dataforge-ai/forge/internal/pipeline"
	"github.com/dataforge-ai/forge/internal/providers"
	"github.com/dataforge-ai/forge/internal/store"
	"github.com/dataforge-ai/forge/internal/templates"
)

// sourceExcerptLen bounds the provenance excerpt stored per example.
const sourceExcerptLen = 200

// Factory generates training examples from chunks: one LLM call per
// chunk, response parsed into pairs, each enriched with provenance.
// Failed chunks become item errors; the stage succeeds with whatever
// generated.
type Factory struct {
	llm      providers.LLMClient
	registry *templates.Registry
	cfg      store.GenerationConfig
	logger   *slog.Logger
}

// NewFactory builds the factory stage.
func NewFactory(llm providers.LLMClient, registry *templates.Registry, cfg store.GenerationConfig, logger *slog.Logger) *Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Factory{llm: llm, registry: registry, cfg: cfg, logger: logger}
}

func (f *Factory) Name() string { return pipeline.StageFactory }

func (f *Factory) Run(ctx context.Context, input any) (*pipeline.Result, error) {
	docs, ok := input.([]extract.Document)
	if !ok {
		return nil, fmt.Errorf("invalid input: expected []extract.Document, got %T", input)
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("invalid input: no documents to generate from")
	}

	tmpl, err := f.registry.Get(f.cfg.Template)
	if err != nil {
		return nil, err
	}

	var chunks []extract.Chunk
	for _, doc := range docs {
		chunks = append(chunks, doc.Chunks...)
	}

	outputs := make([]chunkOutput, len(chunks))

	// One goroutine per chunk; the LLM client's own permit pool and
	// token bucket bound actual concurrency. max_concurrent_llm adds a
	// stage-level cap so huge batches don't pile up goroutines.
	g, gctx := errgroup.WithContext(ctx)
	if f.cfg.MaxConcurrentLLM > 0 {
		g.SetLimit(f.cfg.MaxConcurrentLLM)
	}
	for i, chunk := range chunks {
		g.Go(func() error {
			outputs[i] = f.generate(gctx, tmpl, chunk)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var (
		results     []dataset.Example
		errs        []string
		totalTokens int
		totalCost   float64
	)
	for _, out := range outputs {
		totalTokens += out.tokens
		totalCost += out.cost
		if out.err != nil {
			f.logger.Warn("chunk generation failed", "error", out.err)
			errs = append(errs, out.err.Error())
			continue
		}
		results = append(results, out.examples...)
	}

	return &pipeline.Result{
		Success: true,
		Data:    results,
		Errors:  errs,
		Stats: map[string]any{
			"total_examples": len(results),
			"total_tokens":   totalTokens,
			"total_cost":     totalCost,
			"template":       f.cfg.Template,
			"model":          f.cfg.Model,
		},
	}, nil
}

type chunkOutput struct {
	examples []dataset.Example
	tokens   int
	cost     float64
	err      error
}

func (f *Factory) generate(ctx context.Context, tmpl *templates.Template, chunk extract.Chunk) (out chunkOutput) {
	metadata := map[string]any{
		"source_url":   chunk.Metadata.SourceURL,
		"language":     chunk.Metadata.Language,
		"title":        chunk.Metadata.Title,
		"num_examples": f.cfg.ExamplesPerChunk,
	}

	prompt, err := tmpl.Render(chunk.Content, metadata)
	if err != nil {
		out.err = err
		return out
	}

	resp, err := f.llm.Complete(ctx, &providers.CompletionRequest{
		Prompt:       prompt,
		Model:        f.cfg.Model,
		Temperature:  f.cfg.Temperature,
		SystemPrompt: tmpl.SystemPrompt,
	})
	if err != nil {
		out.err = fmt.Errorf("generate for %s: %w", chunk.Metadata.SourceURL, err)
		return out
	}

	// The call is paid for whether or not the response survives
	// validation, so tokens and cost are accounted from here on.
	out.tokens = resp.TotalTokens
	out.cost = resp.Cost

	if err := tmpl.ValidateOutput(resp.Content); err != nil {
		out.err = fmt.Errorf("response for %s: %w", chunk.Metadata.SourceURL, err)
		return out
	}

	pairs := tmpl.ParseResponse(resp.Content)

	// Cost is split evenly across the examples the call produced.
	perExample := resp.Cost / float64(max(len(pairs), 1))
	excerpt := chunk.Content
	if runes := []rune(excerpt); len(runes) > sourceExcerptLen {
		excerpt = string(runes[:sourceExcerptLen])
	}

	for _, pair := range pairs {
		out.examples = append(out.examples, dataset.Example{
			Input:        pair.Input,
			Output:       pair.Output,
			TemplateType: tmpl.Type,
			ModelUsed:    resp.Model,
			TokenCount:   resp.TotalTokens,
			Cost:         perExample,
			SourceChunk:  excerpt,
			SourceURL:    chunk.Metadata.SourceURL,
		})
	}
	return out
}
