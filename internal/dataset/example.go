// Package dataset defines the training-example types that flow through
// the factory, inspector, and shipper stages.
package dataset

// CheckDetail is one quality checker's verdict on an example.
type CheckDetail struct {
	Score  float64 `json:"score"`
	Detail string  `json:"detail"`
}

// Example is a single generated training example with provenance and,
// after inspection, quality annotations.
type Example struct {
	Input        string  `json:"input"`
	Output       string  `json:"output"`
	TemplateType string  `json:"template_type"`
	ModelUsed    string  `json:"model_used"`
	TokenCount   int     `json:"token_count"`
	Cost         float64 `json:"cost"`
	SourceChunk  string  `json:"source_chunk"`
	SourceURL    string  `json:"source_url"`

	// Set by the inspector stage.
	QualityScore   *float64               `json:"quality_score,omitempty"`
	QualityDetails map[string]CheckDetail `json:"quality_details,omitempty"`
	PassedQC       *bool                  `json:"passed_qc,omitempty"`
}

// Passed reports whether the example survives export filtering: true
// when it was never inspected or when it passed QC.
func (e *Example) Passed() bool {
	return e.PassedQC == nil || *e.PassedQC
}
