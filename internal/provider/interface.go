// Package provider selects and constructs the LLM chat model behind the
// answer generator. Supported backends: Ollama, OpenAI, Azure OpenAI,
// Volcengine Ark, Google Gemini.
package provider

// Backend enumerates the supported LLM inference providers.
type Backend string

const (
	// BackendOllama selects a locally running Ollama instance.
	BackendOllama Backend = "ollama"
	// BackendOpenAI selects the OpenAI API.
	BackendOpenAI Backend = "openai"
	// BackendAzure selects Azure OpenAI Service.
	BackendAzure Backend = "azure"
	// BackendArk selects the Volcengine Ark model runtime.
	BackendArk Backend = "ark"
	// BackendGemini selects Google Gemini via AI Studio.
	BackendGemini Backend = "gemini"
)

// Defaults applied by DefaultConfig.
const (
	DefaultOllamaHost      = "http://localhost:11434"
	DefaultOllamaModel     = "llama3.1"
	DefaultOpenAIModel     = "gpt-4o"
	DefaultAzureAPIVersion = "2024-02-01"
	DefaultGeminiModel     = "gemini-2.0-flash"
	DefaultMaxTokens       = 4096
	DefaultTemperature     = 0.2
)

// Config holds the settings of every backend; only the section matching
// Backend is used.
type Config struct {
	// Backend identifies which inference provider to use.
	Backend Backend

	Ollama      ProviderOllama
	OpenAI      ProviderOpenAI
	AzureOpenAI ProviderAzureOpenAI
	Ark         ProviderArk
	Gemini      ProviderGemini

	// Tuning applies to every backend that accepts it.
	Tuning SharedTuning
}

// ProviderOllama configures the Ollama backend.
type ProviderOllama struct {
	// Host is the Ollama API endpoint.
	Host string
	// Model is the Ollama model name (e.g. "llama3.1").
	Model string
}

// ProviderOpenAI configures the OpenAI backend.
type ProviderOpenAI struct {
	APIKey string
	Model  string
	// BaseURL overrides the API endpoint for OpenAI-compatible servers.
	BaseURL string
}

// ProviderAzureOpenAI configures the Azure OpenAI backend.
type ProviderAzureOpenAI struct {
	APIKey     string
	Endpoint   string
	Deployment string
	APIVersion string
}

// ProviderArk configures the Volcengine Ark backend.
type ProviderArk struct {
	APIKey string
	// Model is the Ark endpoint or model id.
	Model   string
	BaseURL string
}

// ProviderGemini configures the Google Gemini backend.
type ProviderGemini struct {
	APIKey string
	Model  string
}

// SharedTuning holds generation parameters common to all backends.
type SharedTuning struct {
	// MaxTokens caps the number of tokens generated per answer.
	MaxTokens int
	// Temperature controls response randomness (0.0 to 1.0).
	Temperature float32
}

// DefaultConfig returns a Config targeting a local Ollama with llama3.1.
func DefaultConfig() Config {
	return Config{
		Backend: BackendOllama,
		Ollama: ProviderOllama{
			Host:  DefaultOllamaHost,
			Model: DefaultOllamaModel,
		},
		OpenAI:      ProviderOpenAI{Model: DefaultOpenAIModel},
		AzureOpenAI: ProviderAzureOpenAI{APIVersion: DefaultAzureAPIVersion},
		Gemini:      ProviderGemini{Model: DefaultGeminiModel},
		Tuning: SharedTuning{
			MaxTokens:   DefaultMaxTokens,
			Temperature: DefaultTemperature,
		},
	}
}

// ModelName returns the model (or deployment) the config will use.
func (c *Config) ModelName() string {
	switch c.Backend {
	case BackendOllama:
		return c.Ollama.Model
	case BackendOpenAI:
		return c.OpenAI.Model
	case BackendAzure:
		return c.AzureOpenAI.Deployment
	case BackendArk:
		return c.Ark.Model
	case BackendGemini:
		return c.Gemini.Model
	}
	return ""
}
