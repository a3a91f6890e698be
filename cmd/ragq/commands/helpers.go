package commands

import (
	"context"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/54b3r/ragq-go/internal/config"
	"github.com/54b3r/ragq-go/internal/embedder"
	"github.com/54b3r/ragq-go/internal/ingestion"
	"github.com/54b3r/ragq-go/internal/pipeline"
	"github.com/54b3r/ragq-go/internal/prompt"
	"github.com/54b3r/ragq-go/internal/provider"
	"github.com/54b3r/ragq-go/internal/rag"
	"github.com/54b3r/ragq-go/internal/server"
	"github.com/54b3r/ragq-go/internal/store"
	"github.com/54b3r/ragq-go/internal/vectorstore"
)

// Default file names under ~/.ragq.
const (
	defaultVectorDB   = "vectors.db"
	defaultChromemDir = "chromem"
)

// providerConfig maps the resolved configuration onto the chat model
// provider settings.
func providerConfig(c *config.Config) *provider.Config {
	return &provider.Config{
		Backend: provider.Backend(c.Model.Provider),
		Ollama: provider.ProviderOllama{
			Host:  c.Model.Ollama.Host,
			Model: c.Model.Ollama.Model,
		},
		OpenAI: provider.ProviderOpenAI{
			APIKey:  c.Model.OpenAI.APIKey,
			Model:   c.Model.OpenAI.Model,
			BaseURL: c.Model.OpenAI.BaseURL,
		},
		AzureOpenAI: provider.ProviderAzureOpenAI{
			APIKey:     c.Model.Azure.APIKey,
			Endpoint:   c.Model.Azure.Endpoint,
			Deployment: c.Model.Azure.Deployment,
			APIVersion: c.Model.Azure.APIVersion,
		},
		Ark: provider.ProviderArk{
			APIKey:  c.Model.Ark.APIKey,
			Model:   c.Model.Ark.Model,
			BaseURL: c.Model.Ark.BaseURL,
		},
		Gemini: provider.ProviderGemini{
			APIKey: c.Model.Gemini.APIKey,
			Model:  c.Model.Gemini.Model,
		},
		Tuning: provider.SharedTuning{
			MaxTokens:   c.Model.MaxTokens,
			Temperature: c.Model.Temperature,
		},
	}
}

// embedderConfig maps the resolved configuration onto the embedding backend
// settings. Without an explicit embedding provider the chat provider is
// reused when it can embed, otherwise Ollama. Empty credentials and
// endpoints are inherited from the matching chat provider section.
func embedderConfig(c *config.Config) embedder.Config {
	e := c.Embedding
	backend := e.Provider
	if backend == "" {
		switch c.Model.Provider {
		case embedder.BackendOpenAI, embedder.BackendAzure:
			backend = c.Model.Provider
		default:
			backend = embedder.BackendOllama
		}
	}

	cfg := embedder.Config{
		Backend:    backend,
		Model:      e.Model,
		Endpoint:   e.Endpoint,
		APIKey:     e.APIKey,
		Dimensions: e.Dimensions,
	}
	switch backend {
	case embedder.BackendOllama:
		cfg.Endpoint = firstNonEmpty(cfg.Endpoint, c.Model.Ollama.Host)
	case embedder.BackendOpenAI:
		cfg.Endpoint = firstNonEmpty(cfg.Endpoint, c.Model.OpenAI.BaseURL)
		cfg.APIKey = firstNonEmpty(cfg.APIKey, c.Model.OpenAI.APIKey)
	case embedder.BackendAzure:
		cfg.Endpoint = firstNonEmpty(cfg.Endpoint, c.Model.Azure.Endpoint)
		cfg.APIKey = firstNonEmpty(cfg.APIKey, c.Model.Azure.APIKey)
	}
	return cfg
}

// storeConfig maps the resolved configuration onto the vector store
// settings, defaulting local backends to files under ~/.ragq.
func storeConfig(c *config.Config) (vectorstore.Config, error) {
	s := c.Store
	cfg := vectorstore.Config{
		Backend:    s.Backend,
		Path:       s.Path,
		Metric:     rag.Metric(s.Metric),
		Dimensions: s.Dimensions,
		Collection: s.Collection,
		Compress:   s.Compress,
		Qdrant: vectorstore.QdrantConfig{
			Host:       c.Qdrant.Host,
			Port:       c.Qdrant.Port,
			Collection: s.Collection,
			APIKey:     c.Qdrant.APIKey,
			UseTLS:     c.Qdrant.TLS,
		},
	}

	if cfg.Path == "" {
		var name string
		switch cfg.Backend {
		case vectorstore.BackendSQLite, "":
			name = defaultVectorDB
		case vectorstore.BackendChromem:
			name = defaultChromemDir
		}
		if name != "" {
			dir, err := store.DefaultDir()
			if err != nil {
				return cfg, err
			}
			cfg.Path = filepath.Join(dir, name)
		}
	}
	return cfg, nil
}

// openStore opens the configured vector store.
func openStore(ctx context.Context, c *config.Config, log *slog.Logger) (rag.VectorStore, error) {
	cfg, err := storeConfig(c)
	if err != nil {
		return nil, err
	}
	st, err := vectorstore.Open(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	return st, nil
}

// openHistory opens the query history database, or returns nil when history
// is disabled. A history database that cannot be opened disables history
// with a warning rather than failing the command.
func openHistory(c *config.Config, log *slog.Logger) *store.SQLiteStore {
	path := c.History.DBPath
	if path == config.HistoryDisabled {
		log.Debug("history: disabled via configuration")
		return nil
	}
	if path == "" {
		p, err := store.DefaultDBPath()
		if err != nil {
			log.Warn("history: could not resolve default DB path, disabling", slog.Any("error", err))
			return nil
		}
		path = p
	}
	hs, err := store.Open(path)
	if err != nil {
		log.Warn("history: failed to open store, disabling", slog.String("path", path), slog.Any("error", err))
		return nil
	}
	log.Debug("history: store opened", slog.String("path", path))
	return hs
}

// promptAssembler builds the prompt assembler from the configured template,
// or the built-in one.
func promptAssembler(c *config.Config) (*prompt.Assembler, error) {
	tmpl := prompt.DefaultTemplate
	if c.Retrieval.PromptTemplate != "" {
		t, err := prompt.LoadTemplate(c.Retrieval.PromptTemplate)
		if err != nil {
			return nil, err
		}
		tmpl = t
	}
	return prompt.New(tmpl)
}

// queryStack is everything a query needs, plus its cleanup.
type queryStack struct {
	pipeline *pipeline.Pipeline
	store    rag.VectorStore
	history  *store.SQLiteStore
}

// Close releases the store and the history database.
func (q *queryStack) Close() {
	if q.history != nil {
		_ = q.history.Close()
	}
	if q.store != nil {
		_ = q.store.Close()
	}
}

// stackOptions tunes buildQueryStack.
type stackOptions struct {
	// noHistory skips opening the history database.
	noHistory bool
	// metrics instruments the pipeline when non-nil.
	metrics *pipeline.Metrics
}

// buildQueryStack wires embedder, store, retriever, prompt assembler and
// generator into a pipeline. The caller must Close the returned stack.
func buildQueryStack(ctx context.Context, c *config.Config, log *slog.Logger, opts stackOptions) (*queryStack, error) {
	embCfg := embedderConfig(c)
	if err := embedder.Preflight(embCfg, log); err != nil {
		return nil, err
	}
	emb, err := embedder.New(embCfg)
	if err != nil {
		return nil, err
	}

	assembler, err := promptAssembler(c)
	if err != nil {
		return nil, err
	}

	gen, err := provider.NewGenerator(ctx, providerConfig(c))
	if err != nil {
		return nil, err
	}

	st, err := openStore(ctx, c, log)
	if err != nil {
		return nil, err
	}
	qs := &queryStack{store: st}

	retriever, err := rag.NewRetriever(emb, st)
	if err != nil {
		qs.Close()
		return nil, err
	}

	var pipeOpts []pipeline.Option
	if !opts.noHistory {
		if hs := openHistory(c, log); hs != nil {
			qs.history = hs
			pipeOpts = append(pipeOpts, pipeline.WithHistory(hs))
		}
	}
	if opts.metrics != nil {
		pipeOpts = append(pipeOpts, pipeline.WithMetrics(opts.metrics))
	}

	p, err := pipeline.New(retriever, assembler, gen, pipeline.Config{
		TopK:             c.Retrieval.TopK,
		PreviewChars:     c.Retrieval.PreviewChars,
		MaxContextTokens: c.Retrieval.MaxContextTokens,
	}, pipeOpts...)
	if err != nil {
		qs.Close()
		return nil, err
	}
	qs.pipeline = p

	log.Debug("query pipeline ready",
		slog.String("provider", c.Model.Provider),
		slog.String("model", providerConfig(c).ModelName()),
		slog.String("embedding", embCfg.Backend),
		slog.String("store", c.Store.Backend),
		slog.Int("top_k", p.TopK()),
	)
	return qs, nil
}

// ingestionConfig maps the resolved configuration onto the ingestion
// pipeline settings.
func ingestionConfig(c *config.Config) ingestion.Config {
	return ingestion.Config{
		ChunkSize:     c.Ingestion.ChunkSize,
		ChunkOverlap:  c.Ingestion.ChunkOverlap,
		BatchSize:     c.Ingestion.BatchSize,
		MaxFetchBytes: int64(c.Ingestion.MaxFetchBytes),
	}
}

// buildPingers returns the readiness probes for the configured backends:
// the vector store always, plus Ollama when either the chat model or the
// embedder runs on it.
func buildPingers(c *config.Config, st rag.VectorStore) []server.Pinger {
	pingers := []server.Pinger{server.NewStorePinger(st, firstNonEmpty(c.Store.Backend, vectorstore.BackendSQLite))}

	client := &http.Client{Timeout: 5 * time.Second}
	seen := map[string]bool{}
	addOllama := func(name, host string) {
		if host == "" || seen[host] {
			return
		}
		seen[host] = true
		pingers = append(pingers, server.NewOllamaPinger(client, name, host))
	}
	if c.Model.Provider == string(provider.BackendOllama) {
		addOllama("ollama", c.Model.Ollama.Host)
	}
	if emb := embedderConfig(c); emb.Backend == embedder.BackendOllama {
		addOllama("ollama-embeddings", firstNonEmpty(emb.Endpoint, embedder.DefaultOllamaHost))
	}
	return pingers
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
