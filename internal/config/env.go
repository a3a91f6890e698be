package config

import (
	"fmt"
	"strconv"
	"time"

	"github.com/54b3r/ragq-go/internal/audit"
)

// envBinding ties an environment variable to a config field.
type envBinding struct {
	key    string
	secret bool
	set    func(c *Config, v string) error
	get    func(c *Config) string
}

func strVar(key string, secret bool, field func(*Config) *string) envBinding {
	return envBinding{
		key:    key,
		secret: secret,
		set:    func(c *Config, v string) error { *field(c) = v; return nil },
		get:    func(c *Config) string { return *field(c) },
	}
}

func intVar(key string, field func(*Config) *int) envBinding {
	return envBinding{
		key: key,
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return err
			}
			*field(c) = n
			return nil
		},
		get: func(c *Config) string { return strconv.Itoa(*field(c)) },
	}
}

func floatVar(key string, bits int, field func(*Config) *float64) envBinding {
	return envBinding{
		key: key,
		set: func(c *Config, v string) error {
			f, err := strconv.ParseFloat(v, bits)
			if err != nil {
				return err
			}
			*field(c) = f
			return nil
		},
		get: func(c *Config) string { return strconv.FormatFloat(*field(c), 'g', -1, bits) },
	}
}

func boolVar(key string, field func(*Config) *bool) envBinding {
	return envBinding{
		key: key,
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return err
			}
			*field(c) = b
			return nil
		},
		get: func(c *Config) string { return strconv.FormatBool(*field(c)) },
	}
}

func durationVar(key string, field func(*Config) *time.Duration) envBinding {
	return envBinding{
		key: key,
		set: func(c *Config, v string) error {
			d, err := time.ParseDuration(v)
			if err != nil {
				return err
			}
			*field(c) = d
			return nil
		},
		get: func(c *Config) string { return field(c).String() },
	}
}

// temperatureVar binds the float32 model temperature.
func temperatureVar(key string) envBinding {
	return envBinding{
		key: key,
		set: func(c *Config, v string) error {
			f, err := strconv.ParseFloat(v, 32)
			if err != nil {
				return err
			}
			c.Model.Temperature = float32(f)
			return nil
		},
		get: func(c *Config) string {
			return strconv.FormatFloat(float64(c.Model.Temperature), 'g', -1, 32)
		},
	}
}

// envBindings lists every environment override, in audit-log order.
var envBindings = []envBinding{
	// ── Model ────────────────────────────────────────────────────────────
	strVar("MODEL_PROVIDER", false, func(c *Config) *string { return &c.Model.Provider }),
	intVar("MODEL_MAX_TOKENS", func(c *Config) *int { return &c.Model.MaxTokens }),
	temperatureVar("MODEL_TEMPERATURE"),
	strVar("OLLAMA_HOST", false, func(c *Config) *string { return &c.Model.Ollama.Host }),
	strVar("OLLAMA_MODEL", false, func(c *Config) *string { return &c.Model.Ollama.Model }),
	strVar("OPENAI_API_KEY", true, func(c *Config) *string { return &c.Model.OpenAI.APIKey }),
	strVar("OPENAI_MODEL", false, func(c *Config) *string { return &c.Model.OpenAI.Model }),
	strVar("OPENAI_BASE_URL", false, func(c *Config) *string { return &c.Model.OpenAI.BaseURL }),
	strVar("AZURE_OPENAI_API_KEY", true, func(c *Config) *string { return &c.Model.Azure.APIKey }),
	strVar("AZURE_OPENAI_ENDPOINT", false, func(c *Config) *string { return &c.Model.Azure.Endpoint }),
	strVar("AZURE_OPENAI_DEPLOYMENT", false, func(c *Config) *string { return &c.Model.Azure.Deployment }),
	strVar("AZURE_OPENAI_API_VERSION", false, func(c *Config) *string { return &c.Model.Azure.APIVersion }),
	strVar("ARK_API_KEY", true, func(c *Config) *string { return &c.Model.Ark.APIKey }),
	strVar("ARK_MODEL", false, func(c *Config) *string { return &c.Model.Ark.Model }),
	strVar("ARK_BASE_URL", false, func(c *Config) *string { return &c.Model.Ark.BaseURL }),
	strVar("GOOGLE_API_KEY", true, func(c *Config) *string { return &c.Model.Gemini.APIKey }),
	strVar("GEMINI_MODEL", false, func(c *Config) *string { return &c.Model.Gemini.Model }),

	// ── Embedding ────────────────────────────────────────────────────────
	strVar("EMBEDDING_PROVIDER", false, func(c *Config) *string { return &c.Embedding.Provider }),
	strVar("EMBEDDING_MODEL", false, func(c *Config) *string { return &c.Embedding.Model }),
	intVar("EMBEDDING_DIMENSIONS", func(c *Config) *int { return &c.Embedding.Dimensions }),
	strVar("EMBEDDING_API_KEY", true, func(c *Config) *string { return &c.Embedding.APIKey }),
	strVar("EMBEDDING_ENDPOINT", false, func(c *Config) *string { return &c.Embedding.Endpoint }),

	// ── Store ────────────────────────────────────────────────────────────
	strVar("RAGQ_STORE_BACKEND", false, func(c *Config) *string { return &c.Store.Backend }),
	strVar("RAGQ_STORE_PATH", false, func(c *Config) *string { return &c.Store.Path }),
	strVar("RAGQ_STORE_METRIC", false, func(c *Config) *string { return &c.Store.Metric }),
	intVar("RAGQ_STORE_DIMENSIONS", func(c *Config) *int { return &c.Store.Dimensions }),
	strVar("RAGQ_STORE_COLLECTION", false, func(c *Config) *string { return &c.Store.Collection }),
	strVar("QDRANT_HOST", false, func(c *Config) *string { return &c.Qdrant.Host }),
	intVar("QDRANT_PORT", func(c *Config) *int { return &c.Qdrant.Port }),
	strVar("QDRANT_API_KEY", true, func(c *Config) *string { return &c.Qdrant.APIKey }),
	boolVar("QDRANT_TLS", func(c *Config) *bool { return &c.Qdrant.TLS }),

	// ── Retrieval ────────────────────────────────────────────────────────
	intVar("RAGQ_TOP_K", func(c *Config) *int { return &c.Retrieval.TopK }),
	intVar("RAGQ_MAX_CONTEXT_TOKENS", func(c *Config) *int { return &c.Retrieval.MaxContextTokens }),
	strVar("RAGQ_PROMPT_TEMPLATE", false, func(c *Config) *string { return &c.Retrieval.PromptTemplate }),

	// ── Ingestion ────────────────────────────────────────────────────────
	intVar("RAGQ_MAX_FETCH_BYTES", func(c *Config) *int { return &c.Ingestion.MaxFetchBytes }),

	// ── Server, history, logging, tracing ────────────────────────────────
	strVar("RAGQ_API_KEY", true, func(c *Config) *string { return &c.Server.APIKey }),
	floatVar("RAGQ_RATE_LIMIT", 64, func(c *Config) *float64 { return &c.Server.RateLimit }),
	durationVar("RAGQ_QUERY_TIMEOUT", func(c *Config) *time.Duration { return &c.Server.QueryTimeout }),
	strVar("RAGQ_HISTORY_DB", false, func(c *Config) *string { return &c.History.DBPath }),
	strVar("LOG_LEVEL", false, func(c *Config) *string { return &c.Logging.Level }),
	strVar("LOG_FORMAT", false, func(c *Config) *string { return &c.Logging.Format }),
	strVar("LANGFUSE_PUBLIC_KEY", true, func(c *Config) *string { return &c.Tracing.PublicKey }),
	strVar("LANGFUSE_SECRET_KEY", true, func(c *Config) *string { return &c.Tracing.SecretKey }),
	strVar("LANGFUSE_HOST", false, func(c *Config) *string { return &c.Tracing.Host }),
}

// applyEnv overrides cfg with every non-empty variable returned by lookup
// and reports how many were applied.
func applyEnv(cfg *Config, lookup func(string) (string, bool)) (int, error) {
	applied := 0
	for _, b := range envBindings {
		v, ok := lookup(b.key)
		if !ok || v == "" {
			continue
		}
		if err := b.set(cfg, v); err != nil {
			return applied, fmt.Errorf("config: invalid %s=%q: %w", b.key, v, err)
		}
		applied++
	}
	return applied, nil
}

// AuditEntries returns every environment-backed setting with its resolved
// value. Secrets are flagged so the audit log reports only set/unset.
func (c *Config) AuditEntries() []audit.Entry {
	out := make([]audit.Entry, 0, len(envBindings))
	for _, b := range envBindings {
		out = append(out, audit.Entry{Key: b.key, Value: b.get(c), Secret: b.secret})
	}
	return out
}
