package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/54b3r/ragq-go/internal/pipeline"
	"github.com/54b3r/ragq-go/internal/store"
)

var rule = strings.Repeat("=", 50)

// writeAnswer prints the answer block followed by the provenance listing,
// one entry per retrieved chunk in ranking order.
func writeAnswer(w io.Writer, ans *pipeline.Answer) error {
	var b strings.Builder

	fmt.Fprintf(&b, "ANSWER:\n%s\n", rule)
	fmt.Fprintln(&b, strings.TrimSpace(ans.Text))
	fmt.Fprintf(&b, "%s\n\n", rule)

	fmt.Fprintf(&b, "SOURCES AND CONTEXTS:\n%s\n", rule)
	for i, src := range ans.Sources {
		fmt.Fprintf(&b, "--- Source #%d ---\n\n", i+1)
		fmt.Fprintf(&b, "ID file: %s\n", src.ID)
		fmt.Fprintf(&b, "Distance (Score): %.4f\n", src.Score)
		fmt.Fprintf(&b, "Text of the Chunk: \"%s...\"\n\n", src.Preview)
	}
	if ans.Dropped > 0 {
		fmt.Fprintf(&b, "(%d lower-ranked chunks left out of the prompt by the context budget)\n", ans.Dropped)
	}
	fmt.Fprintln(&b, rule)

	_, err := io.WriteString(w, b.String())
	return err
}

// writeHistory prints history records newest first, one block per record.
func writeHistory(w io.Writer, recs []store.QueryRecord) error {
	var b strings.Builder
	if len(recs) == 0 {
		fmt.Fprintln(&b, "no queries recorded")
	}
	for _, rec := range recs {
		fmt.Fprintf(&b, "#%d  %s  (%s)\n", rec.ID, rec.CreatedAt.Local().Format(time.DateTime), rec.Duration.Round(time.Millisecond))
		fmt.Fprintf(&b, "Q: %s\n", rec.Question)
		fmt.Fprintf(&b, "A: %s\n", pipeline.Preview(rec.Answer, 200))
		if len(rec.Sources) > 0 {
			fmt.Fprintf(&b, "Sources: %s\n", strings.Join(rec.Sources, ", "))
		}
		fmt.Fprintln(&b)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// writeJSON prints v as indented JSON.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
