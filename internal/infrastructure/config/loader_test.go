package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoaderWritesDefaultOnFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	loader := NewFileLoader(path)

	cfg, err := loader.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DefaultProvider != "deepseek" {
		t.Fatalf("default provider = %q, want deepseek", cfg.DefaultProvider)
	}
	if len(cfg.Providers) != 4 {
		t.Fatalf("want 4 bundled providers, got %d", len(cfg.Providers))
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("default config not written: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("config mode = %o, want 600", perm)
	}
}

func TestLoaderReadsExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
default_provider: ollama
providers:
  - name: ollama
    kind: ollama
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("seed config: %v", err)
	}

	cfg, err := NewFileLoader(path).Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DefaultProvider != "ollama" {
		t.Fatalf("default provider = %q, want ollama", cfg.DefaultProvider)
	}
}

func TestLoaderHonorsEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "elsewhere.yaml")
	t.Setenv(EnvConfigPath, path)

	loader := NewFileLoader("")
	if got := loader.Path(); got != path {
		t.Fatalf("path = %q, want %q", got, path)
	}
	if _, err := loader.Load(context.Background()); err != nil {
		t.Fatalf("load via env override: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default not materialised at override path: %v", err)
	}
}

func TestLoaderExplicitPathBeatsEnv(t *testing.T) {
	t.Setenv(EnvConfigPath, "/somewhere/else.yaml")
	loader := NewFileLoader("/explicit/config.yaml")
	if got := loader.Path(); got != "/explicit/config.yaml" {
		t.Fatalf("path = %q, want the explicit flag to win", got)
	}
}

func TestLoaderRejectsInconsistentConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
default_provider: missing
providers:
  - name: ollama
    kind: ollama
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("seed config: %v", err)
	}

	_, err := NewFileLoader(path).Load(context.Background())
	if err == nil {
		t.Fatal("want error for default provider that is not defined")
	}
	if !strings.Contains(err.Error(), "missing") {
		t.Fatalf("error %q does not name the bad provider", err)
	}
}

func TestLoaderRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("providers: [broken"), 0o600); err != nil {
		t.Fatalf("seed config: %v", err)
	}
	if _, err := NewFileLoader(path).Load(context.Background()); err == nil {
		t.Fatal("want parse error for malformed yaml")
	}
}

func TestLoaderExpandsStatePaths(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
default_provider: ollama
providers:
  - name: ollama
    kind: ollama
security:
  rules_file: ~/rules.yaml
memory:
  dir: ~/memdir
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("seed config: %v", err)
	}

	cfg, err := NewFileLoader(path).Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if strings.HasPrefix(cfg.Security.RulesFile, "~") {
		t.Fatalf("rules_file %q not expanded", cfg.Security.RulesFile)
	}
	if strings.HasPrefix(cfg.Memory.Dir, "~") {
		t.Fatalf("memory dir %q not expanded", cfg.Memory.Dir)
	}
}
