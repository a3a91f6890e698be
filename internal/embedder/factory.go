// Package embedder provides rag.Embedder implementations that talk to an
// embedding backend (Ollama, OpenAI, Azure OpenAI) over plain HTTP.
package embedder

import (
	"fmt"
	"strings"
	"time"

	"github.com/54b3r/ragq-go/internal/rag"
)

// Supported backends.
const (
	BackendOllama = "ollama"
	BackendOpenAI = "openai"
	BackendAzure  = "azure"
)

// Default models and endpoints per backend.
const (
	DefaultOllamaModel = "nomic-embed-text"
	DefaultOpenAIModel = "text-embedding-3-small"
	DefaultOllamaHost  = "http://localhost:11434"
	DefaultOpenAIURL   = "https://api.openai.com/v1"
	DefaultAzureAPIVer = "2025-04-01-preview"

	// defaultTimeout bounds one embedding HTTP round-trip.
	defaultTimeout = 60 * time.Second
)

// Config selects and configures an embedding backend.
type Config struct {
	// Backend is one of ollama, openai, azure (default: ollama).
	Backend string `yaml:"backend"`

	// Model is the embedding model name. Empty selects the backend default.
	Model string `yaml:"model"`

	// Endpoint is the backend base URL: the Ollama host, the OpenAI base
	// URL, or the Azure resource endpoint.
	Endpoint string `yaml:"endpoint"`

	// APIKey authenticates against OpenAI or Azure. Ignored for Ollama.
	APIKey string `yaml:"api_key"`

	// APIVersion is the Azure OpenAI api-version query parameter.
	APIVersion string `yaml:"api_version"`

	// Dimensions requests a vector length from backends that support
	// truncation (OpenAI text-embedding-3). Zero keeps the model default.
	Dimensions int `yaml:"dimensions"`

	// Timeout bounds each request (default: 60s).
	Timeout time.Duration `yaml:"timeout"`
}

// withDefaults fills the zero fields of cfg for its backend.
func (cfg Config) withDefaults() Config {
	if cfg.Backend == "" {
		cfg.Backend = BackendOllama
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	switch cfg.Backend {
	case BackendOllama:
		if cfg.Model == "" {
			cfg.Model = DefaultOllamaModel
		}
		if cfg.Endpoint == "" {
			cfg.Endpoint = DefaultOllamaHost
		}
	case BackendOpenAI:
		if cfg.Model == "" {
			cfg.Model = DefaultOpenAIModel
		}
		if cfg.Endpoint == "" {
			cfg.Endpoint = DefaultOpenAIURL
		}
	case BackendAzure:
		if cfg.Model == "" {
			cfg.Model = DefaultOpenAIModel
		}
		if cfg.APIVersion == "" {
			cfg.APIVersion = DefaultAzureAPIVer
		}
	}
	return cfg
}

// New validates cfg and constructs the configured embedder.
func New(cfg Config) (rag.Embedder, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Backend {
	case BackendOllama:
		return NewOllamaEmbedder(&OllamaConfig{
			Host:    cfg.Endpoint,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		}), nil

	case BackendOpenAI:
		return NewOpenAIEmbedder(&OpenAIConfig{
			BaseURL:    cfg.Endpoint,
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			Timeout:    cfg.Timeout,
		}), nil

	case BackendAzure:
		return NewOpenAIEmbedder(&OpenAIConfig{
			BaseURL:    strings.TrimRight(cfg.Endpoint, "/") + "/openai",
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			Azure:      true,
			APIVersion: cfg.APIVersion,
			Timeout:    cfg.Timeout,
		}), nil
	}
	return nil, fmt.Errorf("embedder: unknown backend %q (valid values: ollama, openai, azure)", cfg.Backend)
}
