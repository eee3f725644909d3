package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_NoFile(t *testing.T) {
	t.Parallel()

	log := slog.Default()
	path, err := Load("/nonexistent/path/config.yaml", log)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != "" {
		t.Errorf("expected empty path, got %q", path)
	}
}

func TestLoad_ValidFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	content := []byte(`
model:
  provider: azure
  base_url: https://my-resource.openai.azure.com
  azure_deployment: gpt-4o
  azure_api_version: "2024-02-01"
  max_tokens: 4096
  temperature: 0.3
embedding:
  provider: ollama
  model: nomic-embed-text
chunking:
  max_tokens: 400
  min_tokens: 80
retrieval:
  top_k: 20
  top_n: 8
  rerank_url: http://localhost:8001
eval:
  threshold: 0.4
  insight: true
index:
  backend: flat
  dir: /var/lib/policyrag/index
logging:
  level: debug
  format: text
`)

	if err := os.WriteFile(cfgPath, content, 0o644); err != nil {
		t.Fatal(err)
	}

	// Clear env vars that the YAML should set.
	envKeys := []string{
		"MODEL_PROVIDER", "MODEL_BASE_URL", "AZURE_DEPLOYMENT", "AZURE_API_VERSION",
		"MODEL_MAX_TOKENS", "MODEL_TEMPERATURE",
		"EMBEDDING_PROVIDER", "EMBEDDING_MODEL",
		"CHUNK_MAX_TOKENS", "CHUNK_MIN_TOKENS",
		"RETRIEVAL_TOP_K", "RERANK_TOP_N", "RERANK_URL",
		"EVAL_THRESHOLD", "INSIGHT_ENABLED",
		"INDEX_BACKEND", "INDEX_DIR",
		"LOG_LEVEL", "LOG_FORMAT",
	}
	for _, k := range envKeys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	log := slog.Default()
	loaded, err := Load(cfgPath, log)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded != cfgPath {
		t.Errorf("loaded path: got %q, want %q", loaded, cfgPath)
	}

	checks := map[string]string{
		"MODEL_PROVIDER":     "azure",
		"MODEL_BASE_URL":     "https://my-resource.openai.azure.com",
		"AZURE_DEPLOYMENT":   "gpt-4o",
		"AZURE_API_VERSION":  "2024-02-01",
		"MODEL_MAX_TOKENS":   "4096",
		"MODEL_TEMPERATURE":  "0.3",
		"EMBEDDING_PROVIDER": "ollama",
		"EMBEDDING_MODEL":    "nomic-embed-text",
		"CHUNK_MAX_TOKENS":   "400",
		"CHUNK_MIN_TOKENS":   "80",
		"RETRIEVAL_TOP_K":    "20",
		"RERANK_TOP_N":       "8",
		"RERANK_URL":         "http://localhost:8001",
		"EVAL_THRESHOLD":     "0.4",
		"INSIGHT_ENABLED":    "true",
		"INDEX_BACKEND":      "flat",
		"INDEX_DIR":          "/var/lib/policyrag/index",
		"LOG_LEVEL":          "debug",
		"LOG_FORMAT":         "text",
	}
	for k, want := range checks {
		got := os.Getenv(k)
		if got != want {
			t.Errorf("%s: got %q, want %q", k, got, want)
		}
	}
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	content := []byte(`
model:
  provider: ollama
`)
	if err := os.WriteFile(cfgPath, content, 0o644); err != nil {
		t.Fatal(err)
	}

	// Env var set before loading must not be overwritten.
	t.Setenv("MODEL_PROVIDER", "azure")

	log := slog.Default()
	_, err := Load(cfgPath, log)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if got := os.Getenv("MODEL_PROVIDER"); got != "azure" {
		t.Errorf("MODEL_PROVIDER: expected env override %q, got %q", "azure", got)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	if err := os.WriteFile(cfgPath, []byte("{{invalid yaml"), 0o644); err != nil {
		t.Fatal(err)
	}

	log := slog.Default()
	_, err := Load(cfgPath, log)
	if err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestFloat32Str(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   float32
		want string
	}{
		{0.0, ""},
		{0.2, "0.2"},
		{0.35, "0.35"},
		{1.0, "1"},
	}
	for _, tt := range tests {
		if got := float32Str(tt.in); got != tt.want {
			t.Errorf("float32Str(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
