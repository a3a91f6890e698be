package rag

import (
	"errors"
	"fmt"
)

// Sentinel errors for the retrieval and answer pipeline. Callers match them
// with errors.Is; every returned error also wraps its underlying cause.
var (
	// ErrDuplicateID is returned by VectorStore.Add when the id is already stored.
	ErrDuplicateID = errors.New("duplicate document id")

	// ErrDimensionMismatch is returned when an embedding's length differs from
	// the store's dimensionality.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrMetricMismatch is returned when a persisted store or collection was
	// built with a different distance metric than the one configured.
	ErrMetricMismatch = errors.New("distance metric mismatch")

	// ErrInvalidK is returned by VectorStore.Search when k <= 0.
	ErrInvalidK = errors.New("k must be positive")

	// ErrInvalidDocument is returned when a document has no id or no embedding.
	ErrInvalidDocument = errors.New("invalid document")

	// ErrEmbedding is returned by the Retriever when the Embedder fails.
	ErrEmbedding = errors.New("embedding failed")

	// ErrTemplate is returned when a prompt template is missing a required
	// placeholder or contains an unknown one.
	ErrTemplate = errors.New("invalid prompt template")

	// ErrRetrieval is returned by the pipeline when retrieval fails.
	ErrRetrieval = errors.New("retrieval failed")

	// ErrGeneration is returned by the pipeline when generation fails or
	// produces empty output.
	ErrGeneration = errors.New("generation failed")
)

// Pipeline stage names reported by StageError.
const (
	StageRetrieve = "retrieve"
	StageRender   = "render"
	StageGenerate = "generate"
)

// StageError records which pipeline stage failed. It unwraps to both the
// stage sentinel (ErrRetrieval, ErrTemplate, ErrGeneration) and the
// original cause.
type StageError struct {
	// Stage is the failing stage name (StageRetrieve, StageRender, StageGenerate).
	Stage string
	// Kind is the stage sentinel.
	Kind error
	// Err is the underlying cause. May be nil for failures detected by the
	// pipeline itself (e.g. empty generator output).
	Err error
}

// Error formats the stage, sentinel, and cause.
func (e *StageError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Stage, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Stage, e.Kind, e.Err)
}

// Unwrap exposes both the sentinel and the cause to errors.Is / errors.As.
func (e *StageError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// StageOf returns the failing pipeline stage recorded in err, or empty string
// if err did not come from a pipeline stage.
func StageOf(err error) string {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}
