package quality

import (
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/dataforge-ai/forge/internal/dataset"
)

// Embedder maps text to a vector for similarity comparison.
type Embedder interface {
	Embed(text string) []float64
}

// CoherenceChecker scores the cosine similarity between input and
// output embeddings, clamped to [0,1]. Examples missing either field
// get a neutral 0.5.
type CoherenceChecker struct {
	embedder Embedder
}

// NewCoherenceChecker builds a checker; a nil embedder uses the shared
// hashed term-frequency embedder.
func NewCoherenceChecker(embedder Embedder) *CoherenceChecker {
	if embedder == nil {
		embedder = defaultEmbedder()
	}
	return &CoherenceChecker{embedder: embedder}
}

func (c *CoherenceChecker) Name() string { return string(KindCoherence) }

func (c *CoherenceChecker) Check(ex *dataset.Example, _ int) (float64, string, error) {
	input := strings.TrimSpace(ex.Input)
	output := strings.TrimSpace(ex.Output)
	if input == "" || output == "" {
		return 0.5, "missing input or output text", nil
	}

	sim := vectorCosine(c.embedder.Embed(input), c.embedder.Embed(output))
	score := clamp01(sim)

	switch {
	case score >= 0.7:
		return score, fmt.Sprintf("highly coherent (similarity: %.3f)", sim), nil
	case score >= 0.4:
		return score, fmt.Sprintf("moderately coherent (similarity: %.3f)", sim), nil
	default:
		return score, fmt.Sprintf("low coherence (similarity: %.3f)", sim), nil
	}
}

func vectorCosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0.0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0.0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// tfEmbedder hashes lowercased terms into a fixed-size term-frequency
// vector. Shared vocabulary between input and output then shows up as
// cosine similarity.
type tfEmbedder struct {
	dims int
}

var (
	embedderOnce   sync.Once
	sharedEmbedder *tfEmbedder
)

func defaultEmbedder() Embedder {
	embedderOnce.Do(func() {
		sharedEmbedder = &tfEmbedder{dims: 256}
	})
	return sharedEmbedder
}

func (e *tfEmbedder) Embed(text string) []float64 {
	vec := make([]float64, e.dims)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.TrimFunc(word, func(r rune) bool {
			return r == '.' || r == ',' || r == '!' || r == '?' || r == ';' || r == ':'
		})
		if word == "" {
			continue
		}
		vec[termIndex(word, e.dims)]++
	}
	return vec
}

// termIndex is FNV-1a reduced to the vector dimension.
func termIndex(word string, dims int) int {
	const (
		offset = 14695981039346656037
		prime  = 1099511628211
	)
	h := uint64(offset)
	for i := 0; i < len(word); i++ {
		h ^= uint64(word[i])
		h *= prime
	}
	return int(h % uint64(dims))
}
