package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// documentCounter is the subset of rag.VectorStore used by StorePinger.
type documentCounter interface {
	Len(ctx context.Context) (int, error)
}

// StorePinger probes a vector store by counting its documents. For the
// Qdrant backend this is a round trip to the server; for local backends it
// confirms the store is open.
type StorePinger struct {
	// store is the vector store to probe.
	store documentCounter
	// name identifies the backend in readiness responses (e.g. "qdrant").
	name string
}

// NewStorePinger constructs a StorePinger for st, labelled with the backend
// name.
func NewStorePinger(st documentCounter, backend string) *StorePinger {
	return &StorePinger{store: st, name: "store:" + backend}
}

// Name returns the dependency label used in readiness responses.
func (p *StorePinger) Name() string { return p.name }

// Ping counts the stored documents and discards the result.
func (p *StorePinger) Ping(ctx context.Context) error {
	if _, err := p.store.Len(ctx); err != nil {
		return fmt.Errorf("count failed: %w", err)
	}
	return nil
}

// HTTPPinger probes an HTTP backend (Ollama, an OpenAI-compatible gateway)
// with a GET that costs no tokens. Any response below 500 counts as
// reachable.
type HTTPPinger struct {
	// client performs the probe request.
	client *http.Client
	// url is the probe target.
	url string
	// name identifies the backend in readiness responses (e.g. "ollama").
	name string
}

// NewHTTPPinger constructs an HTTPPinger for url. A nil client selects
// http.DefaultClient; the per-probe deadline comes from the request context.
func NewHTTPPinger(client *http.Client, name, url string) *HTTPPinger {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPPinger{client: client, url: url, name: name}
}

// NewOllamaPinger probes Ollama's model list endpoint at host.
func NewOllamaPinger(client *http.Client, name, host string) *HTTPPinger {
	return NewHTTPPinger(client, name, strings.TrimRight(host, "/")+"/api/tags")
}

// Name returns the backend label used in readiness responses.
func (p *HTTPPinger) Name() string { return p.name }

// Ping issues the probe request.
func (p *HTTPPinger) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("unhealthy: HTTP %d", resp.StatusCode)
	}
	return nil
}
