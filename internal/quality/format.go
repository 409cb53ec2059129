package quality

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/dataforge-ai/forge/internal/dataset"
)

// FormatChecker validates the structural shape of an example: both
// fields present, not whitespace-only, input at least 10 characters,
// output at least 20.
type FormatChecker struct{}

func (FormatChecker) Name() string { return string(KindFormat) }

func (FormatChecker) Check(ex *dataset.Example, _ int) (float64, string, error) {
	input := strings.TrimSpace(ex.Input)
	output := strings.TrimSpace(ex.Output)

	if input == "" {
		return 0.0, "input is empty or whitespace-only", nil
	}
	if output == "" {
		return 0.0, "output is empty or whitespace-only", nil
	}
	if n := utf8.RuneCountInString(input); n < 10 {
		return 0.0, fmt.Sprintf("input too short (%d chars, need >= 10)", n), nil
	}
	if n := utf8.RuneCountInString(output); n < 20 {
		return 0.0, fmt.Sprintf("output too short (%d chars, need >= 20)", n), nil
	}
	return 1.0, "valid format", nil
}
