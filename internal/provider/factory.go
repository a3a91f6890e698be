package provider

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
)

// New validates cfg and constructs the chat model for its backend, so
// callers get a clear error at startup rather than on the first question.
func New(ctx context.Context, cfg *Config) (model.BaseChatModel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Backend {
	case BackendOllama:
		return newOllama(ctx, cfg)
	case BackendOpenAI:
		return newOpenAI(ctx, cfg)
	case BackendAzure:
		return newAzure(ctx, cfg)
	case BackendArk:
		return newArk(ctx, cfg)
	case BackendGemini:
		return newGemini(ctx, cfg)
	}
	return nil, fmt.Errorf("provider: unknown backend %q", cfg.Backend)
}

// NewGenerator constructs the chat model for cfg and wraps it as a
// ChatGenerator.
func NewGenerator(ctx context.Context, cfg *Config) (*ChatGenerator, error) {
	cm, err := New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewChatGenerator(ctx, cm)
}
