package stages

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dataforge-ai/forge/internal/dataset"
	"github.com/dataforge-ai/forge/internal/pipeline"
	"github.com/dataforge-ai/forge/internal/store"
)

// Shipper exports examples that passed QC to
// {dataDir}/exports/{jobID}/{version}.{format} and writes a Markdown
// dataset card alongside. It is the only stage that fails outright:
// an unsupported format or missing job id is a config error, not a
// partial failure.
type Shipper struct {
	dataDir string
	jobID   string
	cfg     store.ExportConfig
	logger  *slog.Logger
}

// NewShipper builds the shipper stage.
func NewShipper(dataDir, jobID string, cfg store.ExportConfig, logger *slog.Logger) *Shipper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Shipper{dataDir: dataDir, jobID: jobID, cfg: cfg, logger: logger}
}

func (s *Shipper) Name() string { return pipeline.StageShipper }

func (s *Shipper) Run(ctx context.Context, input any) (*pipeline.Result, error) {
	examples, ok := input.([]dataset.Example)
	if !ok {
		return nil, fmt.Errorf("invalid input: expected []dataset.Example, got %T", input)
	}
	if len(examples) == 0 {
		return nil, fmt.Errorf("invalid input: no examples to export")
	}

	format := strings.ToLower(s.cfg.Format)
	switch format {
	case "json", "jsonl", "csv":
	default:
		return &pipeline.Result{
			Success: false,
			Errors:  []string{fmt.Sprintf("unsupported export format: %s", format)},
		}, nil
	}
	if s.jobID == "" {
		return &pipeline.Result{
			Success: false,
			Errors:  []string{"missing job id for export"},
		}, nil
	}

	version := s.cfg.Version
	if version == "" {
		version = "v1"
	}

	var passed []dataset.Example
	filteredOut := 0
	for _, ex := range examples {
		if ex.Passed() {
			passed = append(passed, ex)
		} else {
			filteredOut++
		}
	}

	formatted, err := formatExamples(passed, format)
	if err != nil {
		return nil, fmt.Errorf("format examples: %w", err)
	}
	card := datasetCard(s.jobID, version, format, examples, len(passed), filteredOut)

	exportDir := filepath.Join(s.dataDir, "exports", s.jobID)
	if err := os.MkdirAll(exportDir, 0o755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}

	filePath := filepath.Join(exportDir, version+"."+format)
	cardPath := filepath.Join(exportDir, version+"_card.md")

	if err := os.WriteFile(filePath, []byte(formatted), 0o644); err != nil {
		return nil, fmt.Errorf("write export: %w", err)
	}
	if err := os.WriteFile(cardPath, []byte(card), 0o644); err != nil {
		return nil, fmt.Errorf("write dataset card: %w", err)
	}

	s.logger.Info("exported dataset",
		"path", filePath, "records", len(passed), "filtered_out", filteredOut)

	return &pipeline.Result{
		Success: true,
		Data:    passed,
		Stats: map[string]any{
			"file_path":          filePath,
			"record_count":       len(passed),
			"dataset_card_path":  cardPath,
			"format":             format,
			"total_filtered_out": filteredOut,
		},
	}, nil
}

// exportRecord is the serialized shape: training pairs only, no QC or
// provenance fields.
type exportRecord struct {
	Input  string `json:"input"`
	Output string `json:"output"`
}

func formatExamples(examples []dataset.Example, format string) (string, error) {
	records := make([]exportRecord, len(examples))
	for i, ex := range examples {
		records[i] = exportRecord{Input: ex.Input, Output: ex.Output}
	}

	switch format {
	case "json":
		var buf strings.Builder
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		if err := enc.Encode(records); err != nil {
			return "", err
		}
		return strings.TrimSuffix(buf.String(), "\n"), nil

	case "jsonl":
		var buf strings.Builder
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		for _, r := range records {
			if err := enc.Encode(r); err != nil {
				return "", err
			}
		}
		return buf.String(), nil

	case "csv":
		var buf strings.Builder
		buf.WriteString(csvRow("input", "output"))
		for _, r := range records {
			buf.WriteString(csvRow(r.Input, r.Output))
		}
		return buf.String(), nil
	}
	return "", fmt.Errorf("unsupported export format: %s", format)
}

// csvRow emits one fully-quoted CSV row. Every field is quoted so
// downstream loaders never have to sniff quoting rules.
func csvRow(fields ...string) string {
	quoted := make([]string, len(fields))
	for i, f := range fields {
		quoted[i] = `"` + strings.ReplaceAll(f, `"`, `""`) + `"`
	}
	return strings.Join(quoted, ",") + "\n"
}

// datasetCard renders the Markdown card summarizing the export and its
// quality score distribution.
func datasetCard(jobID, version, format string, all []dataset.Example, passed, filtered int) string {
	var scores []float64
	for _, ex := range all {
		if ex.QualityScore != nil {
			scores = append(scores, *ex.QualityScore)
		}
	}

	avg := 0.0
	var excellent, good, fair, poor int
	if len(scores) > 0 {
		sum := 0.0
		for _, s := range scores {
			sum += s
			switch {
			case s >= 0.9:
				excellent++
			case s >= 0.7:
				good++
			case s >= 0.5:
				fair++
			default:
				poor++
			}
		}
		avg = sum / float64(len(scores))
	}

	exportDate := time.Now().UTC().Format("2006-01-02T15:04:05Z")

	return fmt.Sprintf(`# Dataset Card

## Overview
- **Job ID**: %s
- **Version**: %s
- **Format**: %s
- **Export Date**: %s

## Statistics
- **Total examples**: %d
- **Passed QC**: %d
- **Filtered out**: %d
- **Average quality score**: %.3f

## Quality Score Distribution
- Excellent (>= 0.9): %d
- Good (>= 0.7): %d
- Fair (>= 0.5): %d
- Poor (< 0.5): %d

## Fields
- `+"`input`"+`: The input prompt or question
- `+"`output`"+`: The expected response or answer
`,
		jobID, version, format, exportDate,
		len(all), passed, filtered, avg,
		excellent, good, fair, poor)
}
