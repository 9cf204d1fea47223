package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Model != "gemini-2.5-pro" {
		t.Errorf("model = %q", cfg.Model)
	}
	if cfg.Compression.TokenThreshold != 0.7 || cfg.Compression.PreserveFraction != 0.3 {
		t.Errorf("compression = %+v", cfg.Compression)
	}
	if cfg.Retry.MaxAttempts != 5 {
		t.Errorf("retry = %+v", cfg.Retry)
	}
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agent.yaml")
	data := `
model: gemini-2.5-flash
max_session_turns: 10
compression:
  token_threshold: 0.5
  preserve_fraction: 0.4
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Model != "gemini-2.5-flash" || cfg.MaxSessionTurns != 10 {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.Compression.TokenThreshold != 0.5 {
		t.Errorf("nested file value not applied: %+v", cfg.Compression)
	}
	// Untouched fields keep their defaults.
	if cfg.Retry.BackoffFactor != 2.0 {
		t.Errorf("default lost: %+v", cfg.Retry)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agent.yaml")
	if err := os.WriteFile(path, []byte("model: from-file\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("AGENT_MODEL", "from-env")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Model != "from-env" {
		t.Errorf("model = %q, want env value", cfg.Model)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv("AGENT_APPROVAL_MODE", "yolo")
	if _, err := Load(""); err == nil {
		t.Fatal("invalid approval mode accepted")
	}
}

func TestLoadMissingFileIsAnError(t *testing.T) {
	if _, err := Load("/nonexistent/agent.yaml"); err == nil {
		t.Fatal("missing explicit file accepted")
	}
}
