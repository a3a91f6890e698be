package provider

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/ragq-go/internal/logging"
)

// ChatGenerator implements rag.Generator on an eino chat model. The prompt is
// sent as a single user message through a compiled chain, so globally
// registered callback handlers (tracing) observe every generation.
type ChatGenerator struct {
	runnable compose.Runnable[[]*schema.Message, *schema.Message]
}

// NewChatGenerator compiles a one-node chain around cm.
func NewChatGenerator(ctx context.Context, cm model.BaseChatModel) (*ChatGenerator, error) {
	if cm == nil {
		return nil, fmt.Errorf("provider: chat model must not be nil")
	}
	runnable, err := compose.NewChain[[]*schema.Message, *schema.Message]().
		AppendChatModel(cm).
		Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("provider: compile generator chain: %w", err)
	}
	return &ChatGenerator{runnable: runnable}, nil
}

// Generate returns the model's reply to prompt.
func (g *ChatGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	msg, err := g.runnable.Invoke(ctx, []*schema.Message{schema.UserMessage(prompt)})
	if err != nil {
		return "", fmt.Errorf("provider: generate: %w", err)
	}
	if msg == nil {
		return "", fmt.Errorf("provider: generate: model returned no message")
	}
	if u := msg.ResponseMeta; u != nil && u.Usage != nil {
		logging.FromContext(ctx).Debug("provider: generation usage",
			slog.Int("prompt_tokens", u.Usage.PromptTokens),
			slog.Int("completion_tokens", u.Usage.CompletionTokens),
		)
	}
	return msg.Content, nil
}
