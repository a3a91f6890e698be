package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/54b3r/ragq-go/internal/logging"
)

func TestRequestLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	base := logging.NewWithWriter(&buf, "info", "json")

	var ctxHasLogger bool
	h := requestLogger(base, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctxHasLogger = logging.FromContext(r.Context()) != nil
		w.WriteHeader(http.StatusTeapot)
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/query", nil))

	if !ctxHasLogger {
		t.Error("expected a logger in the request context")
	}
	id := w.Header().Get("X-Request-ID")
	if len(id) != 16 {
		t.Errorf("X-Request-ID: expected 16 hex chars, got %q", id)
	}

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("expected one JSON log line, got %q: %v", buf.String(), err)
	}
	if rec["request_id"] != id {
		t.Errorf("request_id: got %v, want %q", rec["request_id"], id)
	}
	if rec["status"] != float64(http.StatusTeapot) {
		t.Errorf("status: got %v", rec["status"])
	}
}

func TestRequestLogger_ProbesAtDebug(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	h := requestLogger(logging.NewWithWriter(&buf, "info", "json"), okHandler)
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/health", nil))

	if buf.Len() != 0 {
		t.Errorf("expected no info-level log for a probe, got %q", buf.String())
	}
}
