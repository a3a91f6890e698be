// Package pipeline wires retrieval, prompt assembly and generation into the
// single question-answering operation exposed by the CLI and the HTTP server.
// Each call is synchronous and independent: nothing is cached between
// questions and no stage is retried.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/54b3r/ragq-go/internal/budget"
	"github.com/54b3r/ragq-go/internal/logging"
	"github.com/54b3r/ragq-go/internal/rag"
	"github.com/54b3r/ragq-go/internal/store"
)

const (
	// DefaultTopK is the number of chunks retrieved per question.
	DefaultTopK = 15

	// DefaultPreviewChars is the provenance preview length in characters.
	DefaultPreviewChars = 400
)

// errEmptyAnswer marks a generator response with no visible text.
var errEmptyAnswer = errors.New("generator returned an empty response")

// Renderer turns retrieved results and the question into a prompt.
// *prompt.Assembler satisfies it.
type Renderer interface {
	Render(results []rag.SearchResult, question string) (string, error)
}

// Recorder persists answered questions. *store.SQLiteStore satisfies it.
type Recorder interface {
	RecordQuery(ctx context.Context, rec store.QueryRecord) error
}

// Config holds the tunables of a Pipeline.
type Config struct {
	// TopK is how many chunks to retrieve (default: 15).
	TopK int

	// PreviewChars bounds each provenance preview (default: 400).
	PreviewChars int

	// MaxContextTokens, when positive, drops the lowest-ranked chunks until
	// the estimated prompt size fits. Zero disables the budget.
	MaxContextTokens int
}

// Source is one provenance entry: a chunk the answer was grounded on.
type Source struct {
	// ID is the chunk id.
	ID string `json:"id"`

	// Score is the chunk's distance to the question, lower is closer.
	Score float64 `json:"score"`

	// Preview is the chunk's content with whitespace runs collapsed to a
	// single space, truncated to PreviewChars characters.
	Preview string `json:"preview"`

	// Metadata carries the chunk's source metadata (source, page, ...).
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Answer is the result of a successful Pipeline.Answer call.
type Answer struct {
	// Question is the question as asked.
	Question string `json:"question"`

	// Text is the generated answer with surrounding whitespace removed.
	Text string `json:"answer"`

	// Sources lists the chunks used as context, in ranking order.
	Sources []Source `json:"sources"`

	// Dropped counts retrieved chunks left out of the prompt by the context
	// budget.
	Dropped int `json:"dropped,omitempty"`

	// Duration is the end-to-end latency of the call.
	Duration time.Duration `json:"duration_ns"`
}

// Pipeline answers questions against a knowledge base.
// It is safe for concurrent use if its collaborators are.
type Pipeline struct {
	retriever rag.Retriever
	renderer  Renderer
	generator rag.Generator
	cfg       Config
	history   Recorder
	metrics   *Metrics
}

// Option configures optional Pipeline collaborators.
type Option func(*Pipeline)

// WithHistory records every successful answer. Recording failures are
// logged and do not fail the answer.
func WithHistory(r Recorder) Option {
	return func(p *Pipeline) { p.history = r }
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// New validates its collaborators and returns a Pipeline.
func New(retriever rag.Retriever, renderer Renderer, generator rag.Generator, cfg Config, opts ...Option) (*Pipeline, error) {
	if retriever == nil {
		return nil, fmt.Errorf("pipeline: retriever must not be nil")
	}
	if renderer == nil {
		return nil, fmt.Errorf("pipeline: renderer must not be nil")
	}
	if generator == nil {
		return nil, fmt.Errorf("pipeline: generator must not be nil")
	}
	if cfg.TopK == 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.TopK < 0 {
		return nil, fmt.Errorf("pipeline: %w: top-k %d", rag.ErrInvalidK, cfg.TopK)
	}
	if cfg.PreviewChars <= 0 {
		cfg.PreviewChars = DefaultPreviewChars
	}

	p := &Pipeline{retriever: retriever, renderer: renderer, generator: generator, cfg: cfg}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// TopK returns the configured retrieval depth.
func (p *Pipeline) TopK() int { return p.cfg.TopK }

// Answer runs retrieve → render → generate for question. On any failure it
// returns no answer and an error that matches the failing stage's sentinel
// (rag.ErrRetrieval, rag.ErrTemplate, rag.ErrGeneration) as well as the
// underlying cause; rag.StageOf reports the stage name.
func (p *Pipeline) Answer(ctx context.Context, question string) (*Answer, error) {
	start := time.Now()
	log := logging.FromContext(ctx)

	ans, err := p.answer(ctx, question)
	if err != nil {
		stage := rag.StageOf(err)
		p.metrics.observeOutcome(stage)
		log.Warn("pipeline: answer failed",
			slog.String("stage", stage),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	ans.Duration = time.Since(start)
	p.metrics.observeOutcome(outcomeOK)
	p.metrics.observeResults(len(ans.Sources))

	log.Info("pipeline: answered",
		slog.Int("sources", len(ans.Sources)),
		slog.Int("dropped", ans.Dropped),
		slog.Duration("duration", ans.Duration),
	)

	if p.history != nil {
		rec := store.QueryRecord{
			Question: question,
			Answer:   ans.Text,
			Sources:  sourceIDs(ans.Sources),
			Duration: ans.Duration,
		}
		if err := p.history.RecordQuery(ctx, rec); err != nil {
			log.Warn("pipeline: failed to record query history", slog.String("error", err.Error()))
		}
	}
	return ans, nil
}

func (p *Pipeline) answer(ctx context.Context, question string) (*Answer, error) {
	log := logging.FromContext(ctx)

	t := time.Now()
	results, err := p.retriever.Search(ctx, question, p.cfg.TopK)
	p.metrics.observeStage(rag.StageRetrieve, t)
	if err != nil {
		return nil, stageError(rag.StageRetrieve, rag.ErrRetrieval, err)
	}
	log.Debug("pipeline: retrieved", slog.Int("results", len(results)))

	t = time.Now()
	kept, err := budget.TrimResults(results, p.cfg.MaxContextTokens, func(rs []rag.SearchResult) (string, error) {
		return p.renderer.Render(rs, question)
	})
	if err != nil {
		p.metrics.observeStage(rag.StageRender, t)
		return nil, stageError(rag.StageRender, rag.ErrTemplate, err)
	}
	prompt, err := p.renderer.Render(kept, question)
	p.metrics.observeStage(rag.StageRender, t)
	if err != nil {
		return nil, stageError(rag.StageRender, rag.ErrTemplate, err)
	}
	if dropped := len(results) - len(kept); dropped > 0 {
		log.Info("pipeline: context budget dropped lowest-ranked chunks",
			slog.Int("dropped", dropped),
			slog.Int("kept", len(kept)),
			slog.Int("max_tokens", p.cfg.MaxContextTokens),
		)
	}

	t = time.Now()
	text, err := p.generator.Generate(ctx, prompt)
	p.metrics.observeStage(rag.StageGenerate, t)
	if err != nil {
		return nil, stageError(rag.StageGenerate, rag.ErrGeneration, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, stageError(rag.StageGenerate, rag.ErrGeneration, errEmptyAnswer)
	}

	return &Answer{
		Question: question,
		Text:     text,
		Sources:  p.sources(kept),
		Dropped:  len(results) - len(kept),
	}, nil
}

// sources builds provenance entries for results, preserving order.
func (p *Pipeline) sources(results []rag.SearchResult) []Source {
	out := make([]Source, 0, len(results))
	for _, r := range results {
		if r.Document == nil {
			continue
		}
		out = append(out, Source{
			ID:       r.Document.ID,
			Score:    r.Score,
			Preview:  Preview(r.Document.Content, p.cfg.PreviewChars),
			Metadata: r.Document.Metadata,
		})
	}
	return out
}

// stageError wraps err as a failure of stage.
func stageError(stage string, kind, err error) error {
	return fmt.Errorf("pipeline: %w", &rag.StageError{Stage: stage, Kind: kind, Err: err})
}

func sourceIDs(sources []Source) []string {
	ids := make([]string, len(sources))
	for i, s := range sources {
		ids[i] = s.ID
	}
	return ids
}
