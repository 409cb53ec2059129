package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.LLM.APIKey != "${OPENROUTER_API_KEY}" {
		t.Errorf("api key = %q, want env placeholder", cfg.LLM.APIKey)
	}
	if cfg.Server.Port != "8080" {
		t.Errorf("port = %q", cfg.Server.Port)
	}
	if cfg.JobDefaults.Generation.Template != "qa" {
		t.Error("job defaults not normalized")
	}
}

func TestResolveEnvVars(t *testing.T) {
	t.Run("resolves environment variable", func(t *testing.T) {
		t.Setenv("TEST_API_KEY", "secret123")
		if got := ResolveEnvVars("${TEST_API_KEY}"); got != "secret123" {
			t.Errorf("got %q, want secret123", got)
		}
	})

	t.Run("returns empty for missing env var", func(t *testing.T) {
		if got := ResolveEnvVars("${DEFINITELY_NOT_SET_12345}"); got != "" {
			t.Errorf("got %q, want empty", got)
		}
	})

	t.Run("leaves literal values unchanged", func(t *testing.T) {
		if got := ResolveEnvVars("literal-value"); got != "literal-value" {
			t.Errorf("got %q", got)
		}
	})
}

func TestManagerLoadsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	raw := []byte("data_dir: /srv/forge\nllm:\n  model: gpt-4o\n  rate_limit: 2.5\n")
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatal(err)
	}

	cm, err := NewManager(path)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	cfg := cm.Get()
	if cfg.DataDir != "/srv/forge" {
		t.Errorf("data_dir = %q", cfg.DataDir)
	}
	if cfg.LLM.Model != "gpt-4o" || cfg.LLM.RateLimit != 2.5 {
		t.Errorf("llm = %+v", cfg.LLM)
	}
	// Unset fields keep defaults.
	if cfg.DatabasePath != "forge.db" {
		t.Errorf("database_path = %q, want default", cfg.DatabasePath)
	}
}

func TestManagerMissingFileUsesDefaults(t *testing.T) {
	cm, err := NewManager("")
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	if cm.Get().Server.Host != "127.0.0.1" {
		t.Errorf("host = %q", cm.Get().Server.Host)
	}
}

func TestToProviderConfig(t *testing.T) {
	t.Setenv("TEST_FORGE_KEY", "or-key-123")

	cfg := DefaultConfig()
	cfg.LLM.APIKey = "${TEST_FORGE_KEY}"

	pc := cfg.ToProviderConfig()
	if pc.APIKey != "or-key-123" {
		t.Errorf("api key = %q, want resolved env value", pc.APIKey)
	}
	if pc.DefaultModel != "gpt-4o-mini" || pc.RPS != 5.0 {
		t.Errorf("provider config = %+v", pc)
	}
}

func TestWriteDefaultRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	if err := WriteDefault(path); err != nil {
		t.Fatalf("WriteDefault() error = %v", err)
	}

	cm, err := NewManager(path)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	if cm.Get().LLM.BaseURL == "" {
		t.Error("base_url lost in round trip")
	}
}
