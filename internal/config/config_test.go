package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv(configPathEnv, "")
	t.Setenv(databaseDSNEnv, "")
	t.Setenv(grokAPIKeyEnv, "")

	cfg := Load()

	if cfg.Grok.Endpoint == "" || cfg.Grok.SearchEndpoint == "" {
		t.Fatalf("default grok endpoints missing: %+v", cfg.Grok)
	}
	if cfg.Grok.TimeoutSeconds != 60 {
		t.Fatalf("default grok timeout = %d", cfg.Grok.TimeoutSeconds)
	}
	if cfg.Enrichment.TimeoutSeconds != 10 {
		t.Fatalf("default enrichment timeout = %d", cfg.Enrichment.TimeoutSeconds)
	}
	if len(cfg.Prompts) == 0 || cfg.Prompts[0].Type != "discovery" {
		t.Fatalf("default prompt seed missing: %+v", cfg.Prompts)
	}
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
logging:
  level: debug
grok:
  model: grok-4
prompts:
  - name: school-bonds
    type: discovery
    text: Find school bond coverage.
    active: true
    region: Midwest
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(configPathEnv, path)

	cfg := Load()

	if cfg.Logging.Level != "debug" {
		t.Fatalf("level = %q", cfg.Logging.Level)
	}
	if cfg.Grok.Model != "grok-4" {
		t.Fatalf("model = %q", cfg.Grok.Model)
	}
	// Untouched defaults survive the merge.
	if cfg.Grok.Endpoint == "" || cfg.Grok.TimeoutSeconds != 60 {
		t.Fatalf("defaults lost in merge: %+v", cfg.Grok)
	}
	if len(cfg.Prompts) != 1 || cfg.Prompts[0].Region != "Midwest" {
		t.Fatalf("file prompts should replace defaults: %+v", cfg.Prompts)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv(configPathEnv, "")
	t.Setenv(databaseDSNEnv, "postgres://env/pipeline")
	t.Setenv(grokAPIKeyEnv, "env-key")
	t.Setenv(grokModelEnv, "grok-env")

	cfg := Load()

	if cfg.Database.DSN != "postgres://env/pipeline" {
		t.Fatalf("dsn = %q", cfg.Database.DSN)
	}
	if cfg.Grok.APIKey != "env-key" || cfg.Grok.Model != "grok-env" {
		t.Fatalf("grok env overrides lost: %+v", cfg.Grok)
	}
}
