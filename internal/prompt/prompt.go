// Package prompt renders the final LLM prompt from retrieved context and the
// user's question. Rendering is a pure function of its inputs.
package prompt

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/54b3r/ragq-go/internal/rag"
)

// Placeholder names recognised in templates.
const (
	ContextPlaceholder  = "{context}"
	QuestionPlaceholder = "{question}"
)

// DefaultSeparator joins retrieved chunks in the context block.
const DefaultSeparator = "\n\n---\n\n"

// DefaultTemplate instructs the model to answer strictly from the supplied
// context and to say so when the context is insufficient.
const DefaultTemplate = `
You are an expert assistant tasked with answering questions based on a provided context.
Follow these steps rigorously:
1. First, carefully read the user's QUESTION and the CONTEXT below.
2. Next, identify and extract the exact sentences or paragraphs from the CONTEXT that are directly relevant to answering the QUESTION.
3. Finally, synthesize the extracted information into a cohesive, clear, and complete answer. Do not add any information external to the context.
4. If the context does not contain enough information to answer, state this clearly with the phrase: "The information to answer this question was not found in the provided documents."

CONTEXT:
{context}

QUESTION:
{question}

ANSWER (follow the steps above):
`

// placeholderRE matches {identifier} tokens.
var placeholderRE = regexp.MustCompile(`\{[A-Za-z_][A-Za-z0-9_]*\}`)

// Assembler renders prompts from a validated template.
// The zero value is not usable; construct with New.
type Assembler struct {
	template  string
	separator string
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithSeparator overrides the string placed between context chunks.
func WithSeparator(sep string) Option {
	return func(a *Assembler) { a.separator = sep }
}

// New validates template and returns an Assembler for it. An empty template
// selects DefaultTemplate.
func New(template string, opts ...Option) (*Assembler, error) {
	if template == "" {
		template = DefaultTemplate
	}
	if err := Validate(template); err != nil {
		return nil, err
	}
	a := &Assembler{template: template, separator: DefaultSeparator}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Validate reports ErrTemplate when template lacks {context} or {question},
// or contains any other {name} placeholder.
func Validate(template string) error {
	var hasContext, hasQuestion bool
	for _, tok := range placeholderRE.FindAllString(template, -1) {
		switch tok {
		case ContextPlaceholder:
			hasContext = true
		case QuestionPlaceholder:
			hasQuestion = true
		default:
			return fmt.Errorf("prompt: %w: unknown placeholder %s", rag.ErrTemplate, tok)
		}
	}
	if !hasContext {
		return fmt.Errorf("prompt: %w: missing %s", rag.ErrTemplate, ContextPlaceholder)
	}
	if !hasQuestion {
		return fmt.Errorf("prompt: %w: missing %s", rag.ErrTemplate, QuestionPlaceholder)
	}
	return nil
}

// Render joins the contents of results, in the order given, with the
// separator and substitutes the context block and question into the
// template. Substitution is single-pass: placeholder text appearing inside
// the context or question is left as-is.
func (a *Assembler) Render(results []rag.SearchResult, question string) (string, error) {
	if a == nil || a.template == "" {
		return "", fmt.Errorf("prompt: %w: assembler has no template", rag.ErrTemplate)
	}
	r := strings.NewReplacer(
		ContextPlaceholder, Context(results, a.separator),
		QuestionPlaceholder, question,
	)
	return r.Replace(a.template), nil
}

// Context joins the document contents of results with sep.
func Context(results []rag.SearchResult, sep string) string {
	parts := make([]string, 0, len(results))
	for _, r := range results {
		if r.Document == nil {
			continue
		}
		parts = append(parts, r.Document.Content)
	}
	return strings.Join(parts, sep)
}

// LoadTemplate reads and validates a template file.
func LoadTemplate(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("prompt: reading template %s: %w", path, err)
	}
	t := string(b)
	if err := Validate(t); err != nil {
		return "", fmt.Errorf("%w (file %s)", err, path)
	}
	return t, nil
}
