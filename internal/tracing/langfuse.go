// Package tracing wires Langfuse tracing into the eino callback chain.
package tracing

import (
	"github.com/cloudwego/eino-ext/callbacks/langfuse"
	"github.com/cloudwego/eino/callbacks"
)

// DefaultHost is the Langfuse host used when none is configured.
const DefaultHost = "http://localhost:3000"

// Config holds Langfuse credentials.
type Config struct {
	Host      string
	PublicKey string
	SecretKey string
}

// Enabled reports whether both keys are present.
func (c Config) Enabled() bool {
	return c.PublicKey != "" && c.SecretKey != ""
}

// Setup returns a Langfuse callback handler when cfg carries both keys, plus
// a flush function that must run before process exit so pending traces are
// sent. When Langfuse is not configured it returns nil, nil, false and
// tracing stays off.
func Setup(cfg Config) (callbacks.Handler, func(), bool) {
	if !cfg.Enabled() {
		return nil, nil, false
	}
	host := cfg.Host
	if host == "" {
		host = DefaultHost
	}

	handler, flusher := langfuse.NewLangfuseHandler(&langfuse.Config{
		Host:      host,
		PublicKey: cfg.PublicKey,
		SecretKey: cfg.SecretKey,
	})
	return handler, flusher, true
}
