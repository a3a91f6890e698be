package provider

import (
	"fmt"
	"strings"
)

// Validate reports missing settings for the selected backend. Error messages
// name the environment variable that supplies each setting.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendOllama:
		if c.Ollama.Host == "" {
			return fmt.Errorf("provider: ollama requires OLLAMA_HOST")
		}
		if c.Ollama.Model == "" {
			return fmt.Errorf("provider: ollama requires OLLAMA_MODEL")
		}
	case BackendOpenAI:
		if c.OpenAI.APIKey == "" {
			return fmt.Errorf("provider: openai requires OPENAI_API_KEY")
		}
		if c.OpenAI.Model == "" {
			return fmt.Errorf("provider: openai requires OPENAI_MODEL")
		}
	case BackendAzure:
		if c.AzureOpenAI.APIKey == "" {
			return fmt.Errorf("provider: azure requires AZURE_OPENAI_API_KEY")
		}
		if c.AzureOpenAI.Endpoint == "" {
			return fmt.Errorf("provider: azure requires AZURE_OPENAI_ENDPOINT")
		}
		if c.AzureOpenAI.Deployment == "" {
			return fmt.Errorf("provider: azure requires AZURE_OPENAI_DEPLOYMENT")
		}
	case BackendArk:
		if c.Ark.APIKey == "" {
			return fmt.Errorf("provider: ark requires ARK_API_KEY")
		}
		if c.Ark.Model == "" {
			return fmt.Errorf("provider: ark requires ARK_MODEL")
		}
	case BackendGemini:
		if c.Gemini.APIKey == "" {
			return fmt.Errorf("provider: gemini requires GOOGLE_API_KEY")
		}
		if c.Gemini.Model == "" {
			return fmt.Errorf("provider: gemini requires GEMINI_MODEL")
		}
	default:
		return fmt.Errorf("provider: unknown backend %q (valid values: ollama, openai, azure, ark, gemini)", c.Backend)
	}
	if c.Tuning.MaxTokens < 0 {
		return fmt.Errorf("provider: MODEL_MAX_TOKENS must not be negative, got %d", c.Tuning.MaxTokens)
	}
	if c.Tuning.Temperature < 0 || c.Tuning.Temperature > 2 {
		return fmt.Errorf("provider: MODEL_TEMPERATURE must be within [0, 2], got %g", c.Tuning.Temperature)
	}
	return nil
}

// isAzureReasoningModel reports whether an Azure deployment name refers to an
// o-series or codex reasoning model. Those reject temperature and max_tokens.
func isAzureReasoningModel(deployment string) bool {
	d := strings.ToLower(deployment)
	for _, prefix := range []string{"o1", "o3", "o4", "codex"} {
		if strings.HasPrefix(d, prefix) {
			return true
		}
	}
	return false
}
