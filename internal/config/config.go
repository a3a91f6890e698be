// Package config provides layered configuration for ragq.
// Configuration is resolved with the precedence: defaults → YAML file → env
// vars. Environment variables always win.
//
// File search order:
//  1. --config CLI flag (explicit path; must exist)
//  2. RAGQ_CONFIG environment variable
//  3. ~/.ragq/config.yaml
//  4. ./ragq.yaml
//
// If no file is found the defaults and environment are used as-is.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// HistoryDisabled turns off query history when used as History.DBPath.
const HistoryDisabled = "disabled"

// Config is the fully resolved configuration.
type Config struct {
	// Model configures the LLM chat model that writes answers.
	Model ModelConfig `yaml:"model"`

	// Embedding configures the embedding backend.
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Store configures the vector store.
	Store StoreConfig `yaml:"store"`

	// Qdrant configures the Qdrant connection (store.backend: qdrant).
	Qdrant QdrantConfig `yaml:"qdrant"`

	// Retrieval configures the query pipeline.
	Retrieval RetrievalConfig `yaml:"retrieval"`

	// Ingestion configures chunking for `ragq ingest`.
	Ingestion IngestionConfig `yaml:"ingestion"`

	// Server configures the HTTP server.
	Server ServerConfig `yaml:"server"`

	// Logging configures structured logging.
	Logging LoggingConfig `yaml:"logging"`

	// History configures query history persistence.
	History HistoryConfig `yaml:"history"`

	// Tracing configures Langfuse tracing.
	Tracing TracingConfig `yaml:"tracing"`
}

// ModelConfig holds LLM chat model settings.
type ModelConfig struct {
	// Provider selects the backend: ollama, openai, azure, ark, gemini.
	Provider string `yaml:"provider"`
	// MaxTokens is the maximum number of tokens in an answer.
	MaxTokens int `yaml:"max_tokens"`
	// Temperature controls response randomness.
	Temperature float32 `yaml:"temperature"`

	Ollama OllamaConfig `yaml:"ollama"`
	OpenAI OpenAIConfig `yaml:"openai"`
	Azure  AzureConfig  `yaml:"azure"`
	Ark    ArkConfig    `yaml:"ark"`
	Gemini GeminiConfig `yaml:"gemini"`
}

// OllamaConfig holds Ollama provider settings. Host is shared with the
// Ollama embedding backend.
type OllamaConfig struct {
	Host  string `yaml:"host"`
	Model string `yaml:"model"`
}

// OpenAIConfig holds OpenAI provider settings.
type OpenAIConfig struct {
	// APIKey is the OpenAI API key. Prefer env var OPENAI_API_KEY.
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
}

// AzureConfig holds Azure OpenAI provider settings.
type AzureConfig struct {
	// APIKey is the Azure OpenAI API key. Prefer env var AZURE_OPENAI_API_KEY.
	APIKey     string `yaml:"api_key"`
	Endpoint   string `yaml:"endpoint"`
	Deployment string `yaml:"deployment"`
	APIVersion string `yaml:"api_version"`
}

// ArkConfig holds Volcengine Ark provider settings.
type ArkConfig struct {
	// APIKey is the Ark API key. Prefer env var ARK_API_KEY.
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
}

// GeminiConfig holds Google Gemini provider settings.
type GeminiConfig struct {
	// APIKey is the Google API key. Prefer env var GOOGLE_API_KEY.
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

// EmbeddingConfig holds embedding backend settings. Empty credentials and
// endpoints are inherited from the matching chat provider section.
type EmbeddingConfig struct {
	// Provider selects the embedding backend (ollama, openai, azure).
	Provider   string `yaml:"provider"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	// APIKey is the embedding API key. Prefer env var EMBEDDING_API_KEY.
	APIKey   string `yaml:"api_key"`
	Endpoint string `yaml:"endpoint"`
}

// StoreConfig holds vector store settings.
type StoreConfig struct {
	// Backend is one of memory, sqlite, chromem, qdrant.
	Backend string `yaml:"backend"`
	// Path is the SQLite file or chromem directory. Empty selects a default
	// under ~/.ragq.
	Path string `yaml:"path"`
	// Metric is cosine or l2.
	Metric string `yaml:"metric"`
	// Dimensions pins the embedding length; zero learns it from data.
	Dimensions int `yaml:"dimensions"`
	// Collection names the chromem or Qdrant collection.
	Collection string `yaml:"collection"`
	// Compress gzips chromem's persisted files.
	Compress bool `yaml:"compress"`
}

// QdrantConfig holds Qdrant connection settings.
type QdrantConfig struct {
	Host string `yaml:"host"`
	// Port is the Qdrant gRPC port.
	Port int `yaml:"port"`
	// APIKey is the Qdrant API key. Prefer env var QDRANT_API_KEY.
	APIKey string `yaml:"api_key"`
	TLS    bool   `yaml:"tls"`
}

// RetrievalConfig holds query pipeline settings.
type RetrievalConfig struct {
	// TopK is the number of chunks retrieved per question.
	TopK int `yaml:"top_k"`
	// PreviewChars bounds the provenance preview of each chunk.
	PreviewChars int `yaml:"preview_chars"`
	// MaxContextTokens drops the lowest-ranked chunks until the prompt fits.
	// Zero disables the budget.
	MaxContextTokens int `yaml:"max_context_tokens"`
	// PromptTemplate is a path to a template file with {context} and
	// {question} placeholders. Empty selects the built-in template.
	PromptTemplate string `yaml:"prompt_template"`
}

// IngestionConfig holds chunking and fetch settings.
type IngestionConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
	BatchSize    int `yaml:"batch_size"`
	// MaxFetchBytes caps the body read from a URL source. Larger bodies
	// fail the ingest.
	MaxFetchBytes int `yaml:"max_fetch_bytes"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the bind address.
	Host string `yaml:"host"`
	// Port is the TCP port.
	Port int `yaml:"port"`
	// APIKey is the Bearer token for API authentication. Prefer env var RAGQ_API_KEY.
	APIKey string `yaml:"api_key"`
	// RateLimit is the sustained requests per second allowed per client IP.
	RateLimit float64 `yaml:"rate_limit"`
	// RateBurst is the per-IP burst size.
	RateBurst int `yaml:"rate_burst"`
	// QueryTimeout bounds one /api/query request.
	QueryTimeout time.Duration `yaml:"query_timeout"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is the log output format: json, text.
	Format string `yaml:"format"`
}

// HistoryConfig holds query history settings.
type HistoryConfig struct {
	// DBPath is the SQLite database path. "disabled" turns history off.
	// Empty selects ~/.ragq/store.db.
	DBPath string `yaml:"db_path"`
}

// TracingConfig holds Langfuse tracing settings.
type TracingConfig struct {
	// PublicKey is the Langfuse public key. Prefer env var LANGFUSE_PUBLIC_KEY.
	PublicKey string `yaml:"public_key"`
	// SecretKey is the Langfuse secret key. Prefer env var LANGFUSE_SECRET_KEY.
	SecretKey string `yaml:"secret_key"`
	Host      string `yaml:"host"`
}

// Default returns the built-in configuration: a local Ollama with llama3.1
// and nomic-embed-text, a SQLite-backed exact store with cosine distance,
// and k = 15.
func Default() *Config {
	return &Config{
		Model: ModelConfig{
			Provider:    "ollama",
			MaxTokens:   4096,
			Temperature: 0.2,
			Ollama:      OllamaConfig{Host: "http://localhost:11434", Model: "llama3.1"},
			OpenAI:      OpenAIConfig{Model: "gpt-4o"},
			Azure:       AzureConfig{APIVersion: "2024-02-01"},
			Gemini:      GeminiConfig{Model: "gemini-2.0-flash"},
		},
		Store: StoreConfig{
			Backend:    "sqlite",
			Metric:     "cosine",
			Collection: "ragq",
		},
		Qdrant: QdrantConfig{Host: "localhost", Port: 6334},
		Retrieval: RetrievalConfig{
			TopK:         15,
			PreviewChars: 400,
		},
		Ingestion: IngestionConfig{
			ChunkSize:     800,
			ChunkOverlap:  80,
			BatchSize:     32,
			MaxFetchBytes: 64 << 20,
		},
		Server: ServerConfig{
			Host:         "127.0.0.1",
			Port:         8080,
			RateLimit:    10,
			RateBurst:    20,
			QueryTimeout: 5 * time.Minute,
		},
		Logging: LoggingConfig{Level: "info", Format: "json"},
		Tracing: TracingConfig{Host: "http://localhost:3000"},
	}
}

// Load resolves the configuration: defaults, then the first config file
// found (see package docs), then environment variables. It returns the
// resolved config and the path of the file that was read, or "" when none
// was found.
func Load(explicitPath string, log *slog.Logger) (*Config, string, error) {
	return load(explicitPath, log, os.LookupEnv)
}

func load(explicitPath string, log *slog.Logger, lookup func(string) (string, bool)) (*Config, string, error) {
	cfg := Default()

	path, err := resolveConfigPath(explicitPath, lookup)
	if err != nil {
		return nil, "", err
	}
	if path == "" {
		log.Debug("config: no YAML config file found, using defaults and env vars")
	} else {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, "", fmt.Errorf("config: failed to read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, "", fmt.Errorf("config: failed to parse %s: %w", path, err)
		}
	}

	applied, err := applyEnv(cfg, lookup)
	if err != nil {
		return nil, "", err
	}

	log.Debug("config: resolved",
		slog.String("path", path),
		slog.Int("env_overrides", applied),
	)
	return cfg, path, nil
}

// resolveConfigPath returns the first config file path that exists. An
// explicit path that does not exist is an error.
func resolveConfigPath(explicit string, lookup func(string) (string, bool)) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config: %w", err)
		}
		return explicit, nil
	}

	if envPath, _ := lookup("RAGQ_CONFIG"); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath, nil
		}
	}

	if home, err := os.UserHomeDir(); err == nil {
		p := filepath.Join(home, ".ragq", "config.yaml")
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	if _, err := os.Stat("ragq.yaml"); err == nil {
		return "ragq.yaml", nil
	}
	return "", nil
}
