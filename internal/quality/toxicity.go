package quality

import (
	"fmt"
	"strings"
	"sync"

	"github.com/dataforge-ai/forge/internal/dataset"
)

// ToxicityModel predicts per-category toxicity probabilities in [0,1]
// for a piece of text.
type ToxicityModel interface {
	Predict(text string) map[string]float64
}

// ToxicityChecker inverts the model's maximum category probability, so
// clean text scores 1.0 and clearly toxic text scores near 0.
type ToxicityChecker struct {
	model ToxicityModel
}

// NewToxicityChecker builds a checker; a nil model uses the shared
// lexicon model.
func NewToxicityChecker(model ToxicityModel) *ToxicityChecker {
	if model == nil {
		model = defaultToxicityModel()
	}
	return &ToxicityChecker{model: model}
}

func (c *ToxicityChecker) Name() string { return string(KindToxicity) }

func (c *ToxicityChecker) Check(ex *dataset.Example, _ int) (float64, string, error) {
	combined := strings.TrimSpace(ex.Input + " " + ex.Output)
	if combined == "" {
		return 1.0, "no text to check", nil
	}

	maxToxicity := 0.0
	for _, p := range c.model.Predict(combined) {
		if p > maxToxicity {
			maxToxicity = p
		}
	}

	score := clamp01(1.0 - maxToxicity)
	switch {
	case score >= 0.9:
		return score, "clean", nil
	case score >= 0.7:
		return score, fmt.Sprintf("mildly toxic (max toxicity: %.3f)", maxToxicity), nil
	default:
		return score, fmt.Sprintf("toxic (max toxicity: %.3f)", maxToxicity), nil
	}
}

// lexiconToxicityModel estimates toxicity from term-list matches. Each
// hit in a category raises that category's probability; repeated hits
// saturate toward 1.
type lexiconToxicityModel struct {
	categories map[string][]string
}

var (
	lexiconOnce  sync.Once
	sharedModel  *lexiconToxicityModel
)

// defaultToxicityModel builds the shared lexicon model once per
// process.
func defaultToxicityModel() ToxicityModel {
	lexiconOnce.Do(func() {
		sharedModel = &lexiconToxicityModel{
			categories: map[string][]string{
				"insult": {
					"idiot", "stupid", "moron", "dumb", "imbecile",
					"loser", "pathetic", "worthless",
				},
				"threat": {
					"kill you", "hurt you", "destroy you", "beat you",
					"make you pay", "watch your back",
				},
				"identity_attack": {
					"subhuman", "vermin", "go back to", "your kind",
				},
				"obscene": {
					"damn you", "go to hell", "piece of trash", "piece of garbage",
				},
			},
		}
	})
	return sharedModel
}

func (m *lexiconToxicityModel) Predict(text string) map[string]float64 {
	lowered := strings.ToLower(text)

	out := make(map[string]float64, len(m.categories))
	for category, terms := range m.categories {
		hits := 0
		for _, term := range terms {
			hits += strings.Count(lowered, term)
		}
		prob := 0.0
		if hits > 0 {
			prob = 0.6 + 0.2*float64(hits-1)
			if prob > 1.0 {
				prob = 1.0
			}
		}
		out[category] = prob
	}
	return out
}
