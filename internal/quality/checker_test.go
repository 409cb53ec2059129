package quality

import (
	"strings"
	"testing"

	"github.com/dataforge-ai/forge/internal/dataset"
)

func example(input, output string) *dataset.Example {
	return &dataset.Example{Input: input, Output: output}
}

func TestParseKind(t *testing.T) {
	for _, k := range Kinds() {
		got, err := ParseKind(string(k))
		if err != nil || got != k {
			t.Errorf("ParseKind(%q) = %v, %v", k, got, err)
		}
	}
	if _, err := ParseKind("sentiment"); err == nil {
		t.Error("ParseKind() accepted unknown kind")
	}
}

func TestNewCoversAllKinds(t *testing.T) {
	for _, k := range Kinds() {
		c, err := New(k)
		if err != nil {
			t.Fatalf("New(%q) error = %v", k, err)
		}
		if c.Name() != string(k) {
			t.Errorf("New(%q).Name() = %q", k, c.Name())
		}
	}
}

func TestFormatChecker(t *testing.T) {
	c := FormatChecker{}

	tests := []struct {
		name      string
		input     string
		output    string
		wantScore float64
	}{
		{"valid", "What is photosynthesis?", "The process by which plants convert light into energy.", 1.0},
		{"empty input", "", "A long enough output string here.", 0.0},
		{"whitespace input", "   ", "A long enough output string here.", 0.0},
		{"empty output", "What is photosynthesis?", "", 0.0},
		{"input too short", "Why?", "A long enough output string here.", 0.0},
		{"output too short", "What is photosynthesis?", "Plants do it.", 0.0},
		{"input exactly 9", "123456789", "12345678901234567890", 0.0},
		{"input exactly 10", "1234567890", "12345678901234567890", 1.0},
		// Lengths count characters, not bytes.
		{"multibyte input of 10 runes", "αααααααααα", "12345678901234567890", 1.0},
		{"multibyte output of 19 runes", "1234567890", strings.Repeat("ß", 19), 0.0},
		{"multibyte output of 20 runes", "1234567890", strings.Repeat("ß", 20), 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, detail, err := c.Check(example(tt.input, tt.output), 0)
			if err != nil {
				t.Fatalf("Check() error = %v", err)
			}
			if score != tt.wantScore {
				t.Errorf("Check() score = %v, want %v (detail: %s)", score, tt.wantScore, detail)
			}
		})
	}
}

func words(n int) string {
	out := make([]string, n)
	for i := range out {
		out[i] = "w"
	}
	return strings.Join(out, " ")
}

func TestLengthBalanceChecker(t *testing.T) {
	c := LengthBalanceChecker{}

	tests := []struct {
		name      string
		input     string
		output    string
		wantScore float64
	}{
		{"both empty", "", "", 0.5},
		{"empty input", "", words(5), 0.3},
		{"empty output", words(5), "", 0.0},
		{"ratio 1", words(10), words(10), 1.0},
		{"ratio 0.5 boundary", words(10), words(5), 1.0},
		{"ratio 20 boundary", words(1), words(20), 1.0},
		{"ratio 0.25 degrades", words(20), words(5), 0.5},
		{"ratio 60 degrades", words(1), words(60), 0.5},
		{"ratio 100 floor", words(1), words(100), 0.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, detail, err := c.Check(example(tt.input, tt.output), 0)
			if err != nil {
				t.Fatalf("Check() error = %v", err)
			}
			if diff := score - tt.wantScore; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("Check() score = %v, want %v (detail: %s)", score, tt.wantScore, detail)
			}
		})
	}
}

func TestDuplicateChecker(t *testing.T) {
	batch := []dataset.Example{
		{Input: "what is the boiling point of water", Output: "water boils at one hundred degrees celsius at sea level"},
		{Input: "what is the boiling point of water", Output: "water boils at one hundred degrees celsius at sea level"},
		{Input: "how do birds navigate during migration", Output: "birds use the sun the stars and magnetic fields to find their way"},
	}

	c := NewDuplicateChecker(0.9)
	c.SetExamples(batch)

	t.Run("first occurrence is unique", func(t *testing.T) {
		score, detail, err := c.Check(&batch[0], 0)
		if err != nil {
			t.Fatalf("Check() error = %v", err)
		}
		if score != 1.0 || detail != "unique" {
			t.Errorf("Check() = %v, %q", score, detail)
		}
	})

	t.Run("second occurrence flagged", func(t *testing.T) {
		score, detail, err := c.Check(&batch[1], 1)
		if err != nil {
			t.Fatalf("Check() error = %v", err)
		}
		if score > 0.1 {
			t.Errorf("Check() score = %v for exact duplicate", score)
		}
		if !strings.Contains(detail, "duplicate detected") {
			t.Errorf("Check() detail = %q", detail)
		}
	})

	t.Run("dissimilar example unique", func(t *testing.T) {
		score, _, err := c.Check(&batch[2], 2)
		if err != nil {
			t.Fatalf("Check() error = %v", err)
		}
		if score != 1.0 {
			t.Errorf("Check() score = %v for dissimilar example", score)
		}
	})
}

func TestReadabilityChecker(t *testing.T) {
	c := ReadabilityChecker{}

	t.Run("empty output", func(t *testing.T) {
		score, detail, _ := c.Check(example("question", ""), 0)
		if score != 0.0 || detail != "no output text to evaluate" {
			t.Errorf("Check() = %v, %q", score, detail)
		}
	})

	t.Run("simple text scores higher than dense text", func(t *testing.T) {
		simple, _, _ := c.Check(example("q", "The cat sat. The dog ran. We had fun."), 0)
		dense, _, _ := c.Check(example("q", "Nevertheless, interdisciplinary methodological considerations necessitate comprehensive epistemological reevaluation of institutional paradigms."), 0)
		if simple <= dense {
			t.Errorf("simple text scored %v, dense text %v", simple, dense)
		}
	})

	t.Run("score within range", func(t *testing.T) {
		score, _, _ := c.Check(example("q", "Water freezes at zero degrees. Ice floats on liquid water."), 0)
		if score < 0.0 || score > 1.0 {
			t.Errorf("Check() score = %v, out of [0,1]", score)
		}
	})
}

func TestToxicityChecker(t *testing.T) {
	c := NewToxicityChecker(nil)

	t.Run("clean text", func(t *testing.T) {
		score, detail, _ := c.Check(example("What is the capital of France?", "The capital of France is Paris."), 0)
		if score != 1.0 || detail != "clean" {
			t.Errorf("Check() = %v, %q", score, detail)
		}
	})

	t.Run("toxic text scores low", func(t *testing.T) {
		score, detail, _ := c.Check(example("you are a worthless idiot", "and a pathetic stupid moron too"), 0)
		if score > 0.5 {
			t.Errorf("Check() score = %v for toxic text (detail: %s)", score, detail)
		}
	})

	t.Run("empty text is clean", func(t *testing.T) {
		score, detail, _ := c.Check(example("", ""), 0)
		if score != 1.0 || detail != "no text to check" {
			t.Errorf("Check() = %v, %q", score, detail)
		}
	})
}

func TestCoherenceChecker(t *testing.T) {
	c := NewCoherenceChecker(nil)

	t.Run("missing field neutral", func(t *testing.T) {
		score, detail, _ := c.Check(example("", "some output"), 0)
		if score != 0.5 || detail != "missing input or output text" {
			t.Errorf("Check() = %v, %q", score, detail)
		}
	})

	t.Run("overlapping vocabulary coheres", func(t *testing.T) {
		related, _, _ := c.Check(example(
			"how does the water cycle move water through the atmosphere",
			"the water cycle moves water through evaporation condensation and precipitation in the atmosphere"), 0)
		unrelated, _, _ := c.Check(example(
			"how does the water cycle work",
			"quarterly revenue projections exceeded analyst expectations substantially"), 0)
		if related <= unrelated {
			t.Errorf("related = %v, unrelated = %v", related, unrelated)
		}
	})
}
