package rag

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_StageError_UnwrapsSentinelAndCause(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection refused")
	err := fmt.Errorf("pipeline: %w", &StageError{Stage: StageRetrieve, Kind: ErrRetrieval, Err: cause})

	assert.ErrorIs(t, err, ErrRetrieval)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrGeneration)
	assert.Equal(t, StageRetrieve, StageOf(err))
	assert.Contains(t, err.Error(), "connection refused")
}

func Test_StageError_NilCause(t *testing.T) {
	t.Parallel()

	err := &StageError{Stage: StageGenerate, Kind: ErrGeneration}
	assert.ErrorIs(t, err, ErrGeneration)
	assert.Equal(t, "generate: generation failed", err.Error())
}

func Test_StageOf_NonStageError(t *testing.T) {
	t.Parallel()

	assert.Empty(t, StageOf(errors.New("plain")))
	assert.Empty(t, StageOf(nil))
}
