// Package templates holds the prompt templates the factory stage renders
// for each content chunk, and the parsing of model responses back into
// input/output training pairs.
package templates

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// templateFuncs are helpers available inside user templates.
var templateFuncs = template.FuncMap{
	// join renders a metadata list as "a, b, c".
	"join": func(v any) string {
		switch items := v.(type) {
		case []string:
			return strings.Join(items, ", ")
		case []any:
			parts := make([]string, 0, len(items))
			for _, item := range items {
				parts = append(parts, fmt.Sprintf("%v", item))
			}
			return strings.Join(parts, ", ")
		case nil:
			return ""
		default:
			return fmt.Sprintf("%v", v)
		}
	},
}

// Pair is one parsed training example from a model response.
type Pair struct {
	Input  string `json:"input"`
	Output string `json:"output"`
}

// Template renders a user prompt for a chunk of content and knows the
// JSON shape the model is asked to return.
type Template struct {
	Name         string
	Type         string
	SystemPrompt string

	userTemplate *template.Template
	rawUser      string

	outputSchema    *jsonschema.Schema
	rawOutputSchema json.RawMessage
}

// New compiles a template. The user template is text/template syntax;
// it receives the chunk as {{.content}} plus every metadata key at the
// top level (and the full map as {{.metadata}}).
func New(name, typ, systemPrompt, userTemplate string, outputSchema json.RawMessage) (*Template, error) {
	if name == "" {
		return nil, fmt.Errorf("template name is required")
	}
	parsed, err := template.New(name).Option("missingkey=zero").Funcs(templateFuncs).Parse(userTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse user template %q: %w", name, err)
	}

	t := &Template{
		Name:         name,
		Type:         typ,
		SystemPrompt: systemPrompt,
		userTemplate: parsed,
		rawUser:      userTemplate,
	}

	if len(outputSchema) > 0 {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("schema.json", strings.NewReader(string(outputSchema))); err != nil {
			return nil, fmt.Errorf("add output schema for %q: %w", name, err)
		}
		compiled, err := compiler.Compile("schema.json")
		if err != nil {
			return nil, fmt.Errorf("compile output schema for %q: %w", name, err)
		}
		t.outputSchema = compiled
		t.rawOutputSchema = outputSchema
	}

	return t, nil
}

// UserTemplate returns the raw user template text.
func (t *Template) UserTemplate() string { return t.rawUser }

// OutputSchema returns the raw JSON schema the model output is checked
// against, or nil when the template carries none.
func (t *Template) OutputSchema() json.RawMessage { return t.rawOutputSchema }

// Render fills the user template with the chunk content and metadata.
// Metadata keys are flattened to the top level, so builtin templates can
// write {{.num_examples}} directly; a missing num_examples defaults to 3.
func (t *Template) Render(content string, metadata map[string]any) (string, error) {
	ctx := make(map[string]any, len(metadata)+2)
	ctx["num_examples"] = 3
	for k, v := range metadata {
		ctx[k] = v
	}
	ctx["content"] = content
	ctx["metadata"] = metadata

	var buf strings.Builder
	if err := t.userTemplate.Execute(&buf, ctx); err != nil {
		return "", fmt.Errorf("render template %q: %w", t.Name, err)
	}
	return buf.String(), nil
}

// ParseResponse extracts training pairs from a model response. The model
// is asked for a JSON array of {"input","output"} objects; a single
// object is accepted too. Markdown code fences around the JSON are
// stripped. An unparseable response yields an empty slice, never an
// error, so one bad completion doesn't sink a whole chunk batch.
func (t *Template) ParseResponse(response string) []Pair {
	raw := stripCodeFences(strings.TrimSpace(response))
	if raw == "" {
		return nil
	}

	var items []map[string]any
	if err := json.Unmarshal([]byte(raw), &items); err == nil {
		pairs := make([]Pair, 0, len(items))
		for _, item := range items {
			pairs = append(pairs, Pair{
				Input:  stringField(item, "input"),
				Output: stringField(item, "output"),
			})
		}
		return pairs
	}

	var single map[string]any
	if err := json.Unmarshal([]byte(raw), &single); err == nil {
		return []Pair{{
			Input:  stringField(single, "input"),
			Output: stringField(single, "output"),
		}}
	}

	return nil
}

// ValidateOutput checks a raw model response against the template's
// output schema. Templates without a schema accept anything. A single
// pair object is retried as a one-element array, since ParseResponse
// accepts that shape too.
func (t *Template) ValidateOutput(response string) error {
	if t.outputSchema == nil {
		return nil
	}
	raw := stripCodeFences(strings.TrimSpace(response))

	var doc any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return fmt.Errorf("output is not valid JSON: %w", err)
	}
	if err := t.outputSchema.Validate(doc); err != nil {
		if single, ok := doc.(map[string]any); ok {
			if err2 := t.outputSchema.Validate([]any{single}); err2 == nil {
				return nil
			}
		}
		return fmt.Errorf("output does not match schema for %q: %w", t.Name, err)
	}
	return nil
}

func stringField(m map[string]any, key string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	switch s := v.(type) {
	case string:
		return s
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(b)
	}
}

// stripCodeFences removes a single surrounding markdown fence, with or
// without a language tag.
func stripCodeFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.Index(s, "\n"); idx >= 0 {
		// Drop a language tag like "json" on the fence line.
		first := strings.TrimSpace(s[:idx])
		if len(first) <= 20 && !strings.ContainsAny(first, "{}[]") {
			s = s[idx+1:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
