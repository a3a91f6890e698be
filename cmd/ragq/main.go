// Command ragq answers questions against a local document knowledge base.
// It ingests PDFs, text files and web pages into a vector store, and answers
// questions with an LLM grounded on the most relevant chunks, either from the
// CLI or over an HTTP API.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/54b3r/ragq-go/cmd/ragq/commands"
)

func main() {
	if err := commands.NewRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
