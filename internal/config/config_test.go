package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/54b3r/ragq-go/internal/logging"
)

// envMap returns a lookup over a fixed set of variables.
func envMap(kv map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := kv[k]
		return v, ok
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestDefault(t *testing.T) {
	t.Parallel()
	cfg := Default()
	if cfg.Retrieval.TopK != 15 {
		t.Errorf("TopK = %d, want 15", cfg.Retrieval.TopK)
	}
	if cfg.Model.Provider != "ollama" || cfg.Model.Ollama.Model != "llama3.1" {
		t.Errorf("unexpected model defaults: %+v", cfg.Model)
	}
	if cfg.Store.Backend != "sqlite" || cfg.Store.Metric != "cosine" {
		t.Errorf("unexpected store defaults: %+v", cfg.Store)
	}
	if cfg.Ingestion.ChunkSize != 800 || cfg.Ingestion.ChunkOverlap != 80 {
		t.Errorf("unexpected ingestion defaults: %+v", cfg.Ingestion)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 8080 {
		t.Errorf("unexpected server defaults: %+v", cfg.Server)
	}
}

func TestLoad_ExplicitMissing(t *testing.T) {
	t.Parallel()
	_, _, err := load("/nonexistent/path/config.yaml", logging.Discard(), envMap(nil))
	if err == nil {
		t.Fatal("expected error for a missing explicit config file")
	}
}

func TestLoad_ValidFile(t *testing.T) {
	t.Parallel()
	cfgPath := writeConfig(t, `
model:
  provider: azure
  max_tokens: 8192
  temperature: 0.3
  azure:
    endpoint: https://my-resource.openai.azure.com
    deployment: gpt-4o
    api_version: "2025-04-01-preview"
embedding:
  provider: ollama
  model: nomic-embed-text
store:
  backend: qdrant
  collection: my-docs
qdrant:
  host: qdrant.internal
  port: 6334
retrieval:
  top_k: 5
  max_context_tokens: 3000
server:
  query_timeout: 90s
logging:
  level: debug
  format: text
`)

	cfg, loaded, err := load(cfgPath, logging.Discard(), envMap(nil))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded != cfgPath {
		t.Errorf("loaded path: got %q, want %q", loaded, cfgPath)
	}

	checks := []struct {
		name string
		got  any
		want any
	}{
		{"model.provider", cfg.Model.Provider, "azure"},
		{"model.max_tokens", cfg.Model.MaxTokens, 8192},
		{"model.temperature", cfg.Model.Temperature, float32(0.3)},
		{"azure.endpoint", cfg.Model.Azure.Endpoint, "https://my-resource.openai.azure.com"},
		{"azure.deployment", cfg.Model.Azure.Deployment, "gpt-4o"},
		{"azure.api_version", cfg.Model.Azure.APIVersion, "2025-04-01-preview"},
		{"embedding.model", cfg.Embedding.Model, "nomic-embed-text"},
		{"store.backend", cfg.Store.Backend, "qdrant"},
		{"store.collection", cfg.Store.Collection, "my-docs"},
		{"qdrant.host", cfg.Qdrant.Host, "qdrant.internal"},
		{"retrieval.top_k", cfg.Retrieval.TopK, 5},
		{"retrieval.max_context_tokens", cfg.Retrieval.MaxContextTokens, 3000},
		{"server.query_timeout", cfg.Server.QueryTimeout, 90 * time.Second},
		{"logging.level", cfg.Logging.Level, "debug"},
		{"logging.format", cfg.Logging.Format, "text"},
		// Untouched keys keep their defaults.
		{"store.metric", cfg.Store.Metric, "cosine"},
		{"retrieval.preview_chars", cfg.Retrieval.PreviewChars, 400},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s: got %v, want %v", c.name, c.got, c.want)
		}
	}
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	t.Parallel()
	cfgPath := writeConfig(t, `
model:
  provider: ollama
retrieval:
  top_k: 5
`)
	cfg, _, err := load(cfgPath, logging.Discard(), envMap(map[string]string{
		"MODEL_PROVIDER":    "azure",
		"RAGQ_TOP_K":        "7",
		"MODEL_TEMPERATURE": "0.7",
		"QDRANT_TLS":        "true",
		"OPENAI_MODEL":      "", // empty values never override
	}))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Model.Provider != "azure" {
		t.Errorf("MODEL_PROVIDER: expected env override %q, got %q", "azure", cfg.Model.Provider)
	}
	if cfg.Retrieval.TopK != 7 {
		t.Errorf("RAGQ_TOP_K: got %d, want 7", cfg.Retrieval.TopK)
	}
	if cfg.Model.Temperature != float32(0.7) {
		t.Errorf("MODEL_TEMPERATURE: got %v, want 0.7", cfg.Model.Temperature)
	}
	if !cfg.Qdrant.TLS {
		t.Error("QDRANT_TLS: expected true")
	}
	if cfg.Model.OpenAI.Model != "gpt-4o" {
		t.Errorf("OPENAI_MODEL: empty env should keep default, got %q", cfg.Model.OpenAI.Model)
	}
}

func TestLoad_ConfigFromEnv(t *testing.T) {
	t.Parallel()
	cfgPath := writeConfig(t, "retrieval:\n  top_k: 3\n")
	cfg, loaded, err := load("", logging.Discard(), envMap(map[string]string{"RAGQ_CONFIG": cfgPath}))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded != cfgPath {
		t.Errorf("loaded path: got %q, want %q", loaded, cfgPath)
	}
	if cfg.Retrieval.TopK != 3 {
		t.Errorf("TopK = %d, want 3", cfg.Retrieval.TopK)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	t.Parallel()
	cfgPath := writeConfig(t, "{{invalid yaml")
	if _, _, err := load(cfgPath, logging.Discard(), envMap(nil)); err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestLoad_InvalidEnv(t *testing.T) {
	t.Parallel()
	tests := map[string]string{
		"RAGQ_TOP_K":         "many",
		"MODEL_TEMPERATURE":  "warm",
		"QDRANT_TLS":         "sometimes",
		"RAGQ_QUERY_TIMEOUT": "soon",
	}
	for key, val := range tests {
		t.Run(key, func(t *testing.T) {
			t.Parallel()
			cfgPath := writeConfig(t, "")
			if _, _, err := load(cfgPath, logging.Discard(), envMap(map[string]string{key: val})); err == nil {
				t.Fatalf("expected error for %s=%q", key, val)
			}
		})
	}
}

func TestAuditEntries(t *testing.T) {
	t.Parallel()
	cfg := Default()
	cfg.Model.OpenAI.APIKey = "sk-secret"

	entries := cfg.AuditEntries()
	if len(entries) != len(envBindings) {
		t.Fatalf("got %d entries, want %d", len(entries), len(envBindings))
	}
	byKey := make(map[string]string, len(entries))
	for _, e := range entries {
		byKey[e.Key] = e.Sanitised()
	}
	want := map[string]string{
		"MODEL_PROVIDER":       "ollama",
		"OPENAI_API_KEY":       "set",
		"RAGQ_API_KEY":         "unset",
		"RAGQ_TOP_K":           "15",
		"MODEL_TEMPERATURE":    "0.2",
		"QDRANT_TLS":           "false",
		"RAGQ_MAX_FETCH_BYTES": "67108864",
	}
	for k, v := range want {
		if byKey[k] != v {
			t.Errorf("%s = %q, want %q", k, byKey[k], v)
		}
	}
}
