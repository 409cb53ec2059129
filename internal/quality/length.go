package quality

import (
	"fmt"
	"strings"

	"github.com/dataforge-ai/forge/internal/dataset"
)

// LengthBalanceChecker compares output length to input length. The
// ideal output/input word ratio is 0.5x to 20x; the score degrades
// linearly to 0 at a ratio of 0 on the short side and 100x on the long
// side.
type LengthBalanceChecker struct{}

func (LengthBalanceChecker) Name() string { return string(KindLengthBalance) }

func (LengthBalanceChecker) Check(ex *dataset.Example, _ int) (float64, string, error) {
	inputWords := len(strings.Fields(ex.Input))
	outputWords := len(strings.Fields(ex.Output))

	switch {
	case inputWords == 0 && outputWords == 0:
		return 0.5, "both input and output are empty", nil
	case inputWords == 0:
		return 0.3, fmt.Sprintf("empty input, output has %d words", outputWords), nil
	case outputWords == 0:
		return 0.0, "empty output", nil
	}

	ratio := float64(outputWords) / float64(inputWords)

	switch {
	case ratio >= 0.5 && ratio <= 20.0:
		return 1.0, fmt.Sprintf("balanced (ratio: %.1fx, %d→%d words)", ratio, inputWords, outputWords), nil
	case ratio < 0.5:
		score := clamp01(ratio / 0.5)
		return score, fmt.Sprintf("output too short (ratio: %.2fx, %d→%d words)", ratio, inputWords, outputWords), nil
	default:
		score := clamp01(1.0 - (ratio-20.0)/80.0)
		return score, fmt.Sprintf("output too long (ratio: %.1fx, %d→%d words)", ratio, inputWords, outputWords), nil
	}
}
