package stages

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/dataforge-ai/forge/internal/extract"
	"github.com/dataforge-ai/forge/internal/pipeline"
	"github.com/dataforge-ai/forge/internal/scrape"
	"github.com/dataforge-ai/forge/internal/store"
)

// Refiner turns raw HTML into chunked, deduplicated text. Pages with no
// extractable content are skipped silently; unreadable files are
// recorded as item errors.
type Refiner struct {
	counter extract.TokenCounter
	cfg     store.ProcessingConfig
	logger  *slog.Logger
}

// NewRefiner builds the refiner stage.
func NewRefiner(counter extract.TokenCounter, cfg store.ProcessingConfig, logger *slog.Logger) *Refiner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Refiner{counter: counter, cfg: cfg, logger: logger}
}

func (r *Refiner) Name() string { return pipeline.StageRefiner }

func (r *Refiner) Run(ctx context.Context, input any) (*pipeline.Result, error) {
	docs, ok := input.([]scrape.Document)
	if !ok {
		return nil, fmt.Errorf("invalid input: expected []scrape.Document, got %T", input)
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("invalid input: no documents to refine")
	}

	// Batch validation: every document must point at an HTML file that
	// exists on disk before any extraction work starts.
	for _, doc := range docs {
		if doc.HTMLPath == "" {
			return nil, fmt.Errorf("invalid input: document %s has no html path", doc.URL)
		}
		if _, err := os.Stat(doc.HTMLPath); err != nil {
			return nil, fmt.Errorf("invalid input: html file for %s: %v", doc.URL, err)
		}
	}

	splitter := extract.NewSplitter(r.cfg.ChunkSize, r.cfg.ChunkOverlap, r.counter)

	var (
		results           []extract.Document
		errs              []string
		totalChunks       int
		duplicatesRemoved int
	)

	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		raw, err := os.ReadFile(doc.HTMLPath)
		if err != nil {
			msg := fmt.Sprintf("cannot read %s: %v", doc.HTMLPath, err)
			r.logger.Warn("refine failed", "url", doc.URL, "error", err)
			errs = append(errs, msg)
			continue
		}

		content := extract.FromHTML(string(raw), doc.URL)
		text := content.Text
		if text == "" {
			text = extract.StripTags(string(raw))
		}
		if text == "" {
			r.logger.Info("no extractable content", "url", doc.URL)
			continue
		}

		language := content.Language
		if language == "" {
			language = extract.DetectLanguage(text)
		}
		if language == "" {
			language = doc.Language
		}
		if language == "" {
			language = "en"
		}

		title := content.Title
		if title == "" {
			title = doc.Title
		}

		pieces := splitter.Split(text)
		chunks := make([]extract.Chunk, len(pieces))
		for i, piece := range pieces {
			chunks[i] = extract.Chunk{
				Content:    piece,
				TokenCount: r.counter.Count(piece),
				ChunkIndex: i,
				Metadata: extract.ChunkMetadata{
					SourceURL: doc.URL,
					Language:  language,
					Title:     title,
				},
			}
		}

		unique, removed := extract.Deduplicate(chunks)
		duplicatesRemoved += removed
		totalChunks += len(unique)

		results = append(results, extract.Document{
			URL:      doc.URL,
			Title:    title,
			Language: language,
			Content:  text,
			Chunks:   unique,
		})
	}

	return &pipeline.Result{
		Success: true,
		Data:    results,
		Errors:  errs,
		Stats: map[string]any{
			"total_documents":    len(docs),
			"processed":          len(results),
			"failed":             len(errs),
			"total_chunks":       totalChunks,
			"duplicates_removed": duplicatesRemoved,
		},
	}, nil
}
