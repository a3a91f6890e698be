package provider

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// fakeChatModel echoes the last user message back, or fails with err.
type fakeChatModel struct {
	err  error
	seen [][]*schema.Message
}

func (f *fakeChatModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	f.seen = append(f.seen, input)
	if f.err != nil {
		return nil, f.err
	}
	return schema.AssistantMessage("echo: "+input[len(input)-1].Content, nil), nil
}

func (f *fakeChatModel) Stream(context.Context, []*schema.Message, ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("streaming not supported")
}

func TestChatGenerator_Generate(t *testing.T) {
	t.Parallel()
	cm := &fakeChatModel{}
	gen, err := NewChatGenerator(t.Context(), cm)
	if err != nil {
		t.Fatalf("NewChatGenerator: %v", err)
	}

	got, err := gen.Generate(t.Context(), "the prompt")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != "echo: the prompt" {
		t.Errorf("Generate() = %q, want %q", got, "echo: the prompt")
	}
	if len(cm.seen) != 1 || len(cm.seen[0]) != 1 || cm.seen[0][0].Role != schema.User {
		t.Errorf("want a single user message, got %+v", cm.seen)
	}
}

func TestChatGenerator_Error(t *testing.T) {
	t.Parallel()
	gen, err := NewChatGenerator(t.Context(), &fakeChatModel{err: errors.New("model overloaded")})
	if err != nil {
		t.Fatalf("NewChatGenerator: %v", err)
	}
	_, err = gen.Generate(t.Context(), "p")
	if err == nil || !strings.Contains(err.Error(), "model overloaded") {
		t.Errorf("want wrapped model error, got %v", err)
	}
}

func TestNewChatGenerator_NilModel(t *testing.T) {
	t.Parallel()
	if _, err := NewChatGenerator(t.Context(), nil); err == nil {
		t.Error("want error for nil chat model")
	}
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	t.Parallel()
	if _, err := New(t.Context(), &Config{Backend: BackendOpenAI}); err == nil {
		t.Error("want validation error")
	}
}
