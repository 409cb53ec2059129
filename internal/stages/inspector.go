package stages

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dataforge-ai/forge/internal/dataset"
	"github.com/dataforge-ai/forge/internal/pipeline"
	"github.com/dataforge-ai/forge/internal/quality"
	"github.com/dataforge-ai/forge/internal/store"
)

// Inspector runs the configured quality checks on every example,
// attaches per-check details, computes the weighted aggregate score,
// and marks pass/fail against the minimum score.
type Inspector struct {
	cfg    store.QualityConfig
	logger *slog.Logger
}

// NewInspector builds the inspector stage.
func NewInspector(cfg store.QualityConfig, logger *slog.Logger) *Inspector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Inspector{cfg: cfg, logger: logger}
}

func (ins *Inspector) Name() string { return pipeline.StageInspector }

func (ins *Inspector) Run(ctx context.Context, input any) (*pipeline.Result, error) {
	examples, ok := input.([]dataset.Example)
	if !ok {
		return nil, fmt.Errorf("invalid input: expected []dataset.Example, got %T", input)
	}
	if len(examples) == 0 {
		return nil, fmt.Errorf("invalid input: no examples to inspect")
	}

	// Unknown checker names are skipped with a warning rather than
	// failing the whole batch.
	var checkers []quality.Checker
	for _, name := range ins.cfg.Checks {
		kind, err := quality.ParseKind(name)
		if err != nil {
			ins.logger.Warn("unknown quality checker", "name", name)
			continue
		}
		checker, err := quality.New(kind)
		if err != nil {
			ins.logger.Warn("unknown quality checker", "name", name)
			continue
		}
		if dup, isDup := checker.(*quality.DuplicateChecker); isDup {
			dup.SetExamples(examples)
		}
		checkers = append(checkers, checker)
	}

	var (
		errs   []string
		passed int
		failed int
	)

	for idx := range examples {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ex := &examples[idx]

		details := make(map[string]dataset.CheckDetail, len(checkers))
		weightedSum := 0.0
		totalWeight := 0.0

		for _, checker := range checkers {
			weight := 1.0
			if w, ok := ins.cfg.Weights[checker.Name()]; ok {
				weight = w
			}

			score, detail, err := checker.Check(ex, idx)
			if err != nil {
				ins.logger.Warn("checker failed", "checker", checker.Name(), "error", err)
				errs = append(errs, fmt.Sprintf("%s: %v", checker.Name(), err))
				score = 0.0
				detail = fmt.Sprintf("error: %v", err)
			}

			details[checker.Name()] = dataset.CheckDetail{Score: score, Detail: detail}
			weightedSum += score * weight
			totalWeight += weight
		}

		score := 0.0
		if totalWeight > 0 {
			score = weightedSum / totalWeight
		}
		pass := score >= ins.cfg.MinScore

		ex.QualityScore = &score
		ex.QualityDetails = details
		ex.PassedQC = &pass

		if pass {
			passed++
		} else {
			failed++
		}
	}

	return &pipeline.Result{
		Success: true,
		Data:    examples,
		Errors:  errs,
		Stats: map[string]any{
			"total":      len(examples),
			"passed":     passed,
			"failed":     failed,
			"checks_run": strings.Join(ins.cfg.Checks, ","),
			"min_score":  ins.cfg.MinScore,
		},
	}, nil
}
