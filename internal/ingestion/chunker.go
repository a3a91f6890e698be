package ingestion

import (
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"
)

// Chunking defaults: 800-character chunks with 80 characters of overlap.
const (
	DefaultChunkSize    = 800
	DefaultChunkOverlap = 80
)

// splitter breaks page text into overlapping chunks, preferring paragraph,
// then line, then word boundaries. Lengths are counted in characters, so a
// chunk never splits a multi-byte rune.
type splitter struct {
	rc textsplitter.RecursiveCharacter
}

func newSplitter(size, overlap int) splitter {
	return splitter{rc: textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(size),
		textsplitter.WithChunkOverlap(overlap),
		textsplitter.WithSeparators([]string{"\n\n", "\n", " ", ""}),
	)}
}

// split returns the non-blank chunks of text.
func (s splitter) split(text string) ([]string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	parts, err := s.rc.SplitText(text)
	if err != nil {
		return nil, fmt.Errorf("split text: %w", err)
	}
	out := parts[:0]
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return out, nil
}

// ChunkID returns the id of the index-th chunk of a page, in the
// "<source>:<page>:<index>" form, e.g. "data/monopoly.pdf:6:2".
func ChunkID(source string, page, index int) string {
	return fmt.Sprintf("%s:%d:%d", source, page, index)
}
