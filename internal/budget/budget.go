// Package budget provides token budget estimation and context trimming for
// the query pipeline. Because ragq supports multiple LLM backends with
// different tokenizers, this package uses a conservative character-based
// heuristic: 1 token ≈ 4 characters (English prose and code).
package budget

import (
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/ragq-go/internal/rag"
)

// charsPerToken is the character-to-token ratio used for estimation.
const charsPerToken = 4

// Estimate returns a rough token count for s using the character heuristic.
func Estimate(s string) int {
	n := len(s) / charsPerToken
	if n == 0 && len(s) > 0 {
		return 1
	}
	return n
}

// EstimateMessages returns the estimated total token count for a slice of
// schema.Message values, summing role + content for each message.
func EstimateMessages(msgs []*schema.Message) int {
	total := 0
	for _, m := range msgs {
		// Each message has a small per-message overhead (~4 tokens in most APIs).
		total += 4
		total += Estimate(string(m.Role))
		total += Estimate(m.Content)
	}
	return total
}

// EstimatePrompt estimates the tokens the generator will send for prompt,
// which travels as a single user message.
func EstimatePrompt(prompt string) int {
	return EstimateMessages([]*schema.Message{schema.UserMessage(prompt)})
}

// TrimResults drops the lowest-ranked results until the prompt rendered from
// the remainder fits within maxTokens. Ranking order is never changed: the
// returned slice is always a prefix of results. If even the empty prefix does
// not fit, the empty prefix is returned and the caller decides whether to
// proceed. maxTokens <= 0 disables trimming.
func TrimResults(results []rag.SearchResult, maxTokens int, render func([]rag.SearchResult) (string, error)) ([]rag.SearchResult, error) {
	if maxTokens <= 0 {
		return results, nil
	}
	for n := len(results); n >= 0; n-- {
		prompt, err := render(results[:n])
		if err != nil {
			return nil, err
		}
		if EstimatePrompt(prompt) <= maxTokens {
			return results[:n], nil
		}
	}
	return results[:0], nil
}
