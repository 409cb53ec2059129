// Package quality scores training examples. Each checker returns a
// score in [0,1] with a human-readable detail; the inspector stage
// aggregates them into a weighted quality score.
package quality

import (
	"fmt"

	"github.com/dataforge-ai/forge/internal/dataset"
)

// Kind identifies a checker. The set is closed; unknown names in a job
// config are skipped by the inspector with a warning.
type Kind string

const (
	KindFormat        Kind = "format"
	KindLengthBalance Kind = "length_balance"
	KindDuplicate     Kind = "duplicate"
	KindReadability   Kind = "readability"
	KindToxicity      Kind = "toxicity"
	KindCoherence     Kind = "coherence"
)

// Kinds returns all valid checker kinds.
func Kinds() []Kind {
	return []Kind{
		KindFormat, KindLengthBalance, KindDuplicate,
		KindReadability, KindToxicity, KindCoherence,
	}
}

// ParseKind validates a checker name from config.
func ParseKind(name string) (Kind, error) {
	k := Kind(name)
	switch k {
	case KindFormat, KindLengthBalance, KindDuplicate,
		KindReadability, KindToxicity, KindCoherence:
		return k, nil
	}
	return "", fmt.Errorf("unknown quality checker: %q", name)
}

// Checker evaluates one training example. index is the example's
// position in the batch; only the duplicate checker uses it.
type Checker interface {
	Name() string
	Check(ex *dataset.Example, index int) (score float64, detail string, err error)
}

// New builds the checker for a kind.
func New(kind Kind) (Checker, error) {
	switch kind {
	case KindFormat:
		return &FormatChecker{}, nil
	case KindLengthBalance:
		return &LengthBalanceChecker{}, nil
	case KindDuplicate:
		return NewDuplicateChecker(0), nil
	case KindReadability:
		return &ReadabilityChecker{}, nil
	case KindToxicity:
		return NewToxicityChecker(nil), nil
	case KindCoherence:
		return NewCoherenceChecker(nil), nil
	}
	return nil, fmt.Errorf("unknown quality checker: %q", kind)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
