package prompt

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/54b3r/ragq-go/internal/rag"
)

func results(contents ...string) []rag.SearchResult {
	out := make([]rag.SearchResult, len(contents))
	for i, c := range contents {
		out[i] = rag.SearchResult{Document: &rag.Document{ID: c, Content: c}, Score: float64(i)}
	}
	return out
}

func Test_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		tmpl    string
		wantErr bool
	}{
		{name: "default", tmpl: DefaultTemplate},
		{name: "minimal", tmpl: "{context}{question}"},
		{name: "repeated placeholders", tmpl: "{question}\n{context}\n{question}"},
		{name: "literal braces", tmpl: `{"json": 1} {context} { question } {question}`},
		{name: "missing context", tmpl: "Q: {question}", wantErr: true},
		{name: "missing question", tmpl: "C: {context}", wantErr: true},
		{name: "unknown placeholder", tmpl: "{context} {question} {history}", wantErr: true},
		{name: "empty", tmpl: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := Validate(tt.tmpl)
			if tt.wantErr {
				assert.ErrorIs(t, err, rag.ErrTemplate)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func Test_New_RejectsInvalidTemplate(t *testing.T) {
	t.Parallel()

	_, err := New("no placeholders")
	assert.ErrorIs(t, err, rag.ErrTemplate)
}

func Test_Render_JoinsInOrder(t *testing.T) {
	t.Parallel()

	a, err := New("C:{context}|Q:{question}")
	require.NoError(t, err)

	got, err := a.Render(results("beta", "alpha"), "why?")
	require.NoError(t, err)
	assert.Equal(t, "C:beta\n\n---\n\nalpha|Q:why?", got)
}

func Test_Render_EmptyResults(t *testing.T) {
	t.Parallel()

	a, err := New("C:[{context}] Q:[{question}]")
	require.NoError(t, err)

	got, err := a.Render(nil, "anything")
	require.NoError(t, err)
	assert.Equal(t, "C:[] Q:[anything]", got)
}

func Test_Render_SinglePass(t *testing.T) {
	t.Parallel()

	a, err := New("{context}/{question}")
	require.NoError(t, err)

	got, err := a.Render(results("doc mentions {question} literally"), "what about {context}?")
	require.NoError(t, err)
	assert.Equal(t, "doc mentions {question} literally/what about {context}?", got)
}

func Test_Render_Idempotent(t *testing.T) {
	t.Parallel()

	a, err := New("")
	require.NoError(t, err)
	rs := results("one", "two", "three")

	first, err := a.Render(rs, "q")
	require.NoError(t, err)
	second, err := a.Render(rs, "q")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.True(t, strings.Contains(first, "one\n\n---\n\ntwo\n\n---\n\nthree"))
	assert.Contains(t, first, "was not found in the provided documents")
}

func Test_Render_CustomSeparator(t *testing.T) {
	t.Parallel()

	a, err := New("{context}{question}", WithSeparator(" | "))
	require.NoError(t, err)
	got, err := a.Render(results("a", "b"), "")
	require.NoError(t, err)
	assert.Equal(t, "a | b", got)
}

func Test_Render_ZeroAssembler(t *testing.T) {
	t.Parallel()

	var a Assembler
	_, err := a.Render(nil, "q")
	assert.ErrorIs(t, err, rag.ErrTemplate)
}

func Test_LoadTemplate(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	good := filepath.Join(dir, "good.txt")
	require.NoError(t, os.WriteFile(good, []byte("Use {context} to answer {question}"), 0o600))
	tmpl, err := LoadTemplate(good)
	require.NoError(t, err)
	assert.Equal(t, "Use {context} to answer {question}", tmpl)

	bad := filepath.Join(dir, "bad.txt")
	require.NoError(t, os.WriteFile(bad, []byte("Use {ctx}"), 0o600))
	_, err = LoadTemplate(bad)
	assert.ErrorIs(t, err, rag.ErrTemplate)

	_, err = LoadTemplate(filepath.Join(dir, "missing.txt"))
	assert.Error(t, err)
}
