// Package pipeline runs jobs through the five stages in order: spider,
// refiner, factory, inspector, shipper. The orchestrator exclusively
// owns job state transitions; stages receive the previous stage's
// output and report a Result.
package pipeline

import "context"

// Stage names in execution order.
const (
	StageSpider    = "spider"
	StageRefiner   = "refiner"
	StageFactory   = "factory"
	StageInspector = "inspector"
	StageShipper   = "shipper"
)

// StageProgress maps each stage to the job progress reached when the
// stage starts. Shipper completion brings the job to 1.0.
var StageProgress = map[string]float64{
	StageSpider:    0.1,
	StageRefiner:   0.3,
	StageFactory:   0.6,
	StageInspector: 0.8,
	StageShipper:   1.0,
}

// Result is what a stage hands back: its output data for the next
// stage, per-item error strings, and summary stats. A stage that can
// make no progress at all sets Success false; item-level failures are
// recorded in Errors with Success left true.
type Result struct {
	Success bool
	Data    any
	Errors  []string
	Stats   map[string]any
}

// Stage is one pipeline step. Run receives the previous stage's Data;
// a wrong input type is a validation failure and returns an error.
type Stage interface {
	Name() string
	Run(ctx context.Context, input any) (*Result, error)
}

// StatFloat reads a numeric stat, tolerating int-typed values.
func StatFloat(stats map[string]any, key string) float64 {
	switch v := stats[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0
}

// StatInt reads an integer stat.
func StatInt(stats map[string]any, key string) int {
	switch v := stats[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

// StatString reads a string stat.
func StatString(stats map[string]any, key string) string {
	if v, ok := stats[key].(string); ok {
		return v
	}
	return ""
}
