package quality

import (
	"fmt"
	"math"
	"strings"

	"github.com/dataforge-ai/forge/internal/dataset"
)

// DuplicateChecker flags examples whose word-frequency cosine
// similarity against any earlier example in the batch meets the
// threshold. The inspector calls SetExamples with the full batch before
// checking so vectors are computed once.
type DuplicateChecker struct {
	threshold float64
	vectors   []wordVector
}

type wordVector map[string]int

// NewDuplicateChecker builds a checker; threshold <= 0 uses 0.9.
func NewDuplicateChecker(threshold float64) *DuplicateChecker {
	if threshold <= 0 {
		threshold = 0.9
	}
	return &DuplicateChecker{threshold: threshold}
}

func (c *DuplicateChecker) Name() string { return string(KindDuplicate) }

// SetExamples precomputes word vectors for the batch.
func (c *DuplicateChecker) SetExamples(examples []dataset.Example) {
	c.vectors = make([]wordVector, len(examples))
	for i, ex := range examples {
		c.vectors[i] = newWordVector(ex.Input + " " + ex.Output)
	}
}

// Check compares the example against earlier batch members only, so a
// duplicate pair is flagged once rather than twice.
func (c *DuplicateChecker) Check(ex *dataset.Example, index int) (float64, string, error) {
	vec := newWordVector(ex.Input + " " + ex.Output)

	end := index
	if end < 0 || end > len(c.vectors) {
		end = len(c.vectors)
	}

	maxSim := 0.0
	for i := 0; i < end; i++ {
		if sim := cosineSimilarity(vec, c.vectors[i]); sim > maxSim {
			maxSim = sim
		}
	}

	if maxSim >= c.threshold {
		return 1.0 - maxSim, fmt.Sprintf("duplicate detected (similarity: %.3f)", maxSim), nil
	}
	return 1.0, "unique", nil
}

func newWordVector(text string) wordVector {
	vec := make(wordVector)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		vec[w]++
	}
	return vec
}

func cosineSimilarity(a, b wordVector) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}

	dot := 0.0
	for k, av := range a {
		if bv, ok := b[k]; ok {
			dot += float64(av) * float64(bv)
		}
	}

	var normA, normB float64
	for _, v := range a {
		normA += float64(v) * float64(v)
	}
	for _, v := range b {
		normB += float64(v) * float64(v)
	}

	if normA == 0 || normB == 0 {
		return 0.0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
