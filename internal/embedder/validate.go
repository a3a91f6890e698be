package embedder

import (
	"fmt"
	"log/slog"
	"strings"
)

// chatModelFragments identify chat/completion models that are not suitable
// for embedding.
var chatModelFragments = []string{
	"gpt-4",
	"gpt-3.5",
	"gpt-35",
	"o1",
	"o3",
	"llama3",
	"llama2",
	"llama-3",
	"llama-2",
	"mistral",
	"mixtral",
	"gemma",
	"phi-",
	"phi3",
	"claude",
	"command-r",
	"deepseek",
	"qwen",
	"solar",
	"vicuna",
	"falcon",
	"yi-",
}

// LooksLikeChatModel reports whether model resembles a known chat model
// rather than a dedicated embedding model.
func LooksLikeChatModel(model string) bool {
	lower := strings.ToLower(model)
	for _, frag := range chatModelFragments {
		if strings.Contains(lower, frag) {
			return true
		}
	}
	return false
}

// Validate reports configuration that cannot work, such as a hosted backend
// without credentials. It does not contact the backend.
func (cfg Config) Validate() error {
	switch cfg.Backend {
	case BackendOllama:
		if cfg.Endpoint == "" {
			return fmt.Errorf("embedder: ollama requires an endpoint")
		}
	case BackendOpenAI:
		if cfg.APIKey == "" {
			return fmt.Errorf("embedder: openai requires an API key (set embedding.api_key or OPENAI_API_KEY)")
		}
	case BackendAzure:
		if cfg.APIKey == "" {
			return fmt.Errorf("embedder: azure requires an API key (set embedding.api_key or AZURE_OPENAI_API_KEY)")
		}
		if cfg.Endpoint == "" {
			return fmt.Errorf("embedder: azure requires an endpoint (set embedding.endpoint or AZURE_OPENAI_ENDPOINT)")
		}
	default:
		return fmt.Errorf("embedder: unknown backend %q (valid values: ollama, openai, azure)", cfg.Backend)
	}
	if cfg.Dimensions < 0 {
		return fmt.Errorf("embedder: dimensions must not be negative, got %d", cfg.Dimensions)
	}
	return nil
}

// Preflight validates cfg with its defaults applied and warns when the model
// name looks like a chat model. Call it at startup so operators get a clear
// error before the first embed call.
func Preflight(cfg Config, log *slog.Logger) error {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}
	if LooksLikeChatModel(cfg.Model) {
		log.Warn("embedder: model looks like a chat model, not an embedding model",
			slog.String("model", cfg.Model),
			slog.String("hint", "use a dedicated embedding model e.g. nomic-embed-text, text-embedding-3-small"),
		)
	}
	return nil
}
