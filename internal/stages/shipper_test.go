package stages

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dataforge-ai/forge/internal/dataset"
	"github.com/dataforge-ai/forge/internal/pipeline"
	"github.com/dataforge-ai/forge/internal/store"
)

func qcExample(input, output string, score float64, passed bool) dataset.Example {
	return dataset.Example{
		Input:        input,
		Output:       output,
		QualityScore: &score,
		PassedQC:     &passed,
	}
}

func inspectedBatch() []dataset.Example {
	return []dataset.Example{
		qcExample("What is gravity?", "Gravity is the attraction between masses.", 0.95, true),
		qcExample("What is light?", "Light is electromagnetic radiation.", 0.75, true),
		qcExample("Why?", "No.", 0.2, false),
	}
}

func runShipper(t *testing.T, cfg store.ExportConfig, batch []dataset.Example) (*pipeline.Result, string) {
	t.Helper()
	dataDir := t.TempDir()
	shipper := NewShipper(dataDir, "job-9", cfg, nil)
	res, err := shipper.Run(context.Background(), batch)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	return res, dataDir
}

func TestShipperJSONL(t *testing.T) {
	res, dataDir := runShipper(t, store.ExportConfig{Format: "jsonl", Version: "v1"}, inspectedBatch())

	if !res.Success {
		t.Fatalf("Run() failed: %v", res.Errors)
	}
	wantPath := filepath.Join(dataDir, "exports", "job-9", "v1.jsonl")
	if got := pipeline.StatString(res.Stats, "file_path"); got != wantPath {
		t.Errorf("file_path = %q, want %q", got, wantPath)
	}
	if pipeline.StatInt(res.Stats, "record_count") != 2 {
		t.Errorf("record_count = %v, want 2", res.Stats["record_count"])
	}
	if pipeline.StatInt(res.Stats, "total_filtered_out") != 1 {
		t.Errorf("total_filtered_out = %v, want 1", res.Stats["total_filtered_out"])
	}

	raw, err := os.ReadFile(wantPath)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimRight(string(raw), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("jsonl lines = %d, want 2", len(lines))
	}
	var rec map[string]string
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("line 0 not valid JSON: %v", err)
	}
	if rec["input"] != "What is gravity?" || len(rec) != 2 {
		t.Errorf("record = %v, want input/output only", rec)
	}
}

func TestShipperJSON(t *testing.T) {
	res, dataDir := runShipper(t, store.ExportConfig{Format: "json", Version: "v2"}, inspectedBatch())
	if !res.Success {
		t.Fatalf("Run() failed: %v", res.Errors)
	}

	raw, err := os.ReadFile(filepath.Join(dataDir, "exports", "job-9", "v2.json"))
	if err != nil {
		t.Fatal(err)
	}
	var records []map[string]string
	if err := json.Unmarshal(raw, &records); err != nil {
		t.Fatalf("export not a JSON array: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("records = %d, want 2", len(records))
	}
}

func TestShipperCSV(t *testing.T) {
	batch := []dataset.Example{
		qcExample(`He said "hello"`, "A greeting, with commas.", 0.9, true),
	}
	res, dataDir := runShipper(t, store.ExportConfig{Format: "csv"}, batch)
	if !res.Success {
		t.Fatalf("Run() failed: %v", res.Errors)
	}

	raw, err := os.ReadFile(filepath.Join(dataDir, "exports", "job-9", "v1.csv"))
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimRight(string(raw), "\n"), "\n")
	if lines[0] != `"input","output"` {
		t.Errorf("header = %q", lines[0])
	}
	if lines[1] != `"He said ""hello""","A greeting, with commas."` {
		t.Errorf("row = %q", lines[1])
	}
}

func TestShipperFormatCaseInsensitive(t *testing.T) {
	res, _ := runShipper(t, store.ExportConfig{Format: "JSONL"}, inspectedBatch())
	if !res.Success {
		t.Fatalf("Run() failed: %v", res.Errors)
	}
	if got := pipeline.StatString(res.Stats, "format"); got != "jsonl" {
		t.Errorf("format stat = %q", got)
	}
}

func TestShipperUnsupportedFormat(t *testing.T) {
	res, _ := runShipper(t, store.ExportConfig{Format: "parquet"}, inspectedBatch())
	if res.Success {
		t.Fatal("Run() succeeded with unsupported format")
	}
	if len(res.Errors) != 1 || !strings.Contains(res.Errors[0], "unsupported export format") {
		t.Errorf("errors = %v", res.Errors)
	}
}

func TestShipperMissingJobID(t *testing.T) {
	shipper := NewShipper(t.TempDir(), "", store.ExportConfig{Format: "jsonl"}, nil)
	res, err := shipper.Run(context.Background(), inspectedBatch())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Success {
		t.Fatal("Run() succeeded without a job id")
	}
}

func TestShipperDatasetCard(t *testing.T) {
	res, dataDir := runShipper(t, store.ExportConfig{Format: "jsonl"}, inspectedBatch())
	if !res.Success {
		t.Fatalf("Run() failed: %v", res.Errors)
	}

	cardPath := pipeline.StatString(res.Stats, "dataset_card_path")
	if cardPath != filepath.Join(dataDir, "exports", "job-9", "v1_card.md") {
		t.Errorf("dataset_card_path = %q", cardPath)
	}

	raw, err := os.ReadFile(cardPath)
	if err != nil {
		t.Fatal(err)
	}
	card := string(raw)

	for _, want := range []string{
		"# Dataset Card",
		"**Job ID**: job-9",
		"**Total examples**: 3",
		"**Passed QC**: 2",
		"**Filtered out**: 1",
		"Excellent (>= 0.9): 1",
		"Good (>= 0.7): 1",
		"Poor (< 0.5): 1",
	} {
		if !strings.Contains(card, want) {
			t.Errorf("card missing %q:\n%s", want, card)
		}
	}
}

func TestShipperIncludesUnscoredExamples(t *testing.T) {
	batch := []dataset.Example{
		{Input: "What is rain?", Output: "Water falling from clouds as droplets."},
	}
	res, _ := runShipper(t, store.ExportConfig{Format: "jsonl"}, batch)
	if !res.Success {
		t.Fatalf("Run() failed: %v", res.Errors)
	}
	if pipeline.StatInt(res.Stats, "record_count") != 1 {
		t.Error("examples without QC annotation should be exported")
	}
}

func TestShipperInputValidation(t *testing.T) {
	shipper := NewShipper(t.TempDir(), "job-9", store.ExportConfig{Format: "jsonl"}, nil)
	if _, err := shipper.Run(context.Background(), []dataset.Example{}); err == nil {
		t.Error("Run() accepted empty input")
	}
}
