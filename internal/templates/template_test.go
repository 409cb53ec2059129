package templates

import (
	"strings"
	"testing"
)

func TestRegistryBuiltins(t *testing.T) {
	reg := NewRegistry()

	want := []string{"classification", "instruction", "qa", "summarization"}
	got := reg.List()
	if len(got) != len(want) {
		t.Fatalf("List() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("List()[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	for _, name := range want {
		tmpl, err := reg.Get(name)
		if err != nil {
			t.Fatalf("Get(%q) error = %v", name, err)
		}
		if tmpl.SystemPrompt == "" {
			t.Errorf("template %q has empty system prompt", name)
		}
		if tmpl.OutputSchema() == nil {
			t.Errorf("template %q has no output schema", name)
		}
	}
}

func TestRegistryUnknownTemplate(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Get("poetry")
	if err == nil {
		t.Fatal("Get() succeeded for unknown template")
	}
	if !strings.Contains(err.Error(), "qa") {
		t.Errorf("error %q should list available templates", err)
	}
}

func TestRegistryRegisterCustom(t *testing.T) {
	reg := NewRegistry()
	custom, err := New("dialogue", "qa", "system", "Make {{.num_examples}} dialogues from:\n{{.content}}", nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := reg.Register(custom); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	got, err := reg.Get("dialogue")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Name != "dialogue" {
		t.Errorf("Get().Name = %q", got.Name)
	}
}

func TestRenderDefaultsAndMetadata(t *testing.T) {
	reg := NewRegistry()
	tmpl, _ := reg.Get("qa")

	t.Run("default num_examples", func(t *testing.T) {
		out, err := tmpl.Render("the moon orbits the earth", nil)
		if err != nil {
			t.Fatalf("Render() error = %v", err)
		}
		if !strings.Contains(out, "Generate 3 question-answer pairs") {
			t.Errorf("Render() missing default count:\n%s", out)
		}
		if !strings.Contains(out, "the moon orbits the earth") {
			t.Error("Render() missing content")
		}
		if strings.Contains(out, "Source:") {
			t.Error("Render() included Source without a title")
		}
	})

	t.Run("metadata overrides", func(t *testing.T) {
		out, err := tmpl.Render("chunk", map[string]any{"num_examples": 5, "title": "Astronomy 101"})
		if err != nil {
			t.Fatalf("Render() error = %v", err)
		}
		if !strings.Contains(out, "Generate 5 question-answer pairs") {
			t.Errorf("Render() ignored num_examples:\n%s", out)
		}
		if !strings.Contains(out, "Source: Astronomy 101") {
			t.Errorf("Render() ignored title:\n%s", out)
		}
	})
}

func TestRenderClassificationLabels(t *testing.T) {
	reg := NewRegistry()
	tmpl, _ := reg.Get("classification")

	out, err := tmpl.Render("some text", map[string]any{"labels": []string{"spam", "ham"}})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if !strings.Contains(out, "Use ONLY the following labels: spam, ham") {
		t.Errorf("Render() labels clause missing:\n%s", out)
	}
}

func TestParseResponse(t *testing.T) {
	tmpl := builtinTemplates[0]

	t.Run("array", func(t *testing.T) {
		pairs := tmpl.ParseResponse(`[{"input":"q1","output":"a1"},{"input":"q2","output":"a2"}]`)
		if len(pairs) != 2 || pairs[0].Input != "q1" || pairs[1].Output != "a2" {
			t.Errorf("ParseResponse() = %+v", pairs)
		}
	})

	t.Run("single object", func(t *testing.T) {
		pairs := tmpl.ParseResponse(`{"input":"q","output":"a"}`)
		if len(pairs) != 1 || pairs[0].Input != "q" || pairs[0].Output != "a" {
			t.Errorf("ParseResponse() = %+v", pairs)
		}
	})

	t.Run("fenced", func(t *testing.T) {
		pairs := tmpl.ParseResponse("```json\n[{\"input\":\"q\",\"output\":\"a\"}]\n```")
		if len(pairs) != 1 || pairs[0].Input != "q" {
			t.Errorf("ParseResponse() = %+v", pairs)
		}
	})

	t.Run("missing keys become empty", func(t *testing.T) {
		pairs := tmpl.ParseResponse(`[{"input":"only input"}]`)
		if len(pairs) != 1 || pairs[0].Output != "" {
			t.Errorf("ParseResponse() = %+v", pairs)
		}
	})

	t.Run("garbage", func(t *testing.T) {
		if pairs := tmpl.ParseResponse("I could not produce JSON, sorry"); len(pairs) != 0 {
			t.Errorf("ParseResponse() = %+v, want empty", pairs)
		}
	})

	t.Run("empty", func(t *testing.T) {
		if pairs := tmpl.ParseResponse(""); len(pairs) != 0 {
			t.Errorf("ParseResponse() = %+v, want empty", pairs)
		}
	})
}

func TestValidateOutput(t *testing.T) {
	tmpl := builtinTemplates[0]

	if err := tmpl.ValidateOutput(`[{"input":"q","output":"a"}]`); err != nil {
		t.Errorf("ValidateOutput() error = %v for valid output", err)
	}
	if err := tmpl.ValidateOutput(`{"input":"q","output":"a"}`); err != nil {
		t.Errorf("ValidateOutput() error = %v for single pair object", err)
	}
	if err := tmpl.ValidateOutput(`[{"input":"q"}]`); err == nil {
		t.Error("ValidateOutput() accepted object missing required output key")
	}
	if err := tmpl.ValidateOutput(`[{"input": 7, "output": "a"}]`); err == nil {
		t.Error("ValidateOutput() accepted non-string input field")
	}
	if err := tmpl.ValidateOutput(`not json`); err == nil {
		t.Error("ValidateOutput() accepted non-JSON")
	}
}

func TestNewRejectsBadTemplate(t *testing.T) {
	if _, err := New("bad", "qa", "s", "{{.content", nil); err == nil {
		t.Error("New() accepted unparseable template")
	}
	if _, err := New("", "qa", "s", "{{.content}}", nil); err == nil {
		t.Error("New() accepted empty name")
	}
}
