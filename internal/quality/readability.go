package quality

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/dataforge-ai/forge/internal/dataset"
)

// ReadabilityChecker scores the output's Flesch Reading Ease,
// normalized to [0,1] by dividing by 100 and clamping.
type ReadabilityChecker struct{}

func (ReadabilityChecker) Name() string { return string(KindReadability) }

func (ReadabilityChecker) Check(ex *dataset.Example, _ int) (float64, string, error) {
	text := ex.Output
	if strings.TrimSpace(text) == "" {
		return 0.0, "no output text to evaluate", nil
	}

	flesch := fleschReadingEase(text)
	return clamp01(flesch / 100.0), fmt.Sprintf("Flesch: %.1f", flesch), nil
}

// fleschReadingEase computes 206.835 - 1.015*(words/sentences) -
// 84.6*(syllables/words) with heuristic sentence and syllable counts.
func fleschReadingEase(text string) float64 {
	words := strings.Fields(text)
	if len(words) == 0 {
		return 0.0
	}

	sentences := countSentences(text)
	syllables := 0
	for _, w := range words {
		syllables += countSyllables(w)
	}

	wordCount := float64(len(words))
	return 206.835 - 1.015*(wordCount/float64(sentences)) - 84.6*(float64(syllables)/wordCount)
}

func countSentences(text string) int {
	n := 0
	inTerminator := false
	for _, r := range text {
		switch r {
		case '.', '!', '?':
			if !inTerminator {
				n++
				inTerminator = true
			}
		default:
			inTerminator = false
		}
	}
	if n == 0 {
		return 1
	}
	return n
}

// countSyllables approximates syllables as vowel groups, discounting a
// trailing silent e.
func countSyllables(word string) int {
	word = strings.ToLower(strings.TrimFunc(word, func(r rune) bool {
		return !unicode.IsLetter(r)
	}))
	if word == "" {
		return 1
	}

	isVowel := func(r rune) bool {
		return strings.ContainsRune("aeiouy", r)
	}

	count := 0
	prevVowel := false
	for _, r := range word {
		v := isVowel(r)
		if v && !prevVowel {
			count++
		}
		prevVowel = v
	}

	if strings.HasSuffix(word, "e") && !strings.HasSuffix(word, "le") && count > 1 {
		count--
	}
	if count == 0 {
		count = 1
	}
	return count
}
