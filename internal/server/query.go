package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/54b3r/ragq-go/internal/logging"
	"github.com/54b3r/ragq-go/internal/rag"
)

const (
	// maxQueryBody caps the POST /api/query request body.
	maxQueryBody = 64 << 10

	defaultHistoryLimit = 20
	maxHistoryLimit     = 500
)

// Outcome label values for ragq_query_requests_total.
const (
	outcomeOK      = "ok"
	outcomeTimeout = "timeout"
	outcomeError   = "error"
)

// handleQuery handles POST /api/query. It runs the full pipeline for one
// question under QueryTimeout and returns the answer with its sources.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	var req queryRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxQueryBody)).Decode(&req); err != nil {
		writeJSON(w, log, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	question := strings.TrimSpace(req.Question)
	if question == "" {
		writeJSON(w, log, http.StatusBadRequest, errorResponse{Error: "question is required"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.QueryTimeout)
	defer cancel()

	s.metrics.queryInFlight.Inc()
	defer s.metrics.queryInFlight.Dec()
	start := time.Now()

	ans, err := s.querier.Answer(ctx, question)
	if err != nil {
		outcome := outcomeError
		status := statusForError(err)
		if errors.Is(err, context.DeadlineExceeded) {
			outcome = outcomeTimeout
			status = http.StatusGatewayTimeout
		}
		s.metrics.observeQuery(outcome, time.Since(start))
		log.Error("query failed",
			slog.String("stage", rag.StageOf(err)),
			slog.Any("error", err),
		)
		writeJSON(w, log, status, errorResponse{Error: err.Error(), Stage: rag.StageOf(err)})
		return
	}
	s.metrics.observeQuery(outcomeOK, time.Since(start))

	writeJSON(w, log, http.StatusOK, queryResponse{
		Question:   ans.Question,
		Answer:     ans.Text,
		Sources:    ans.Sources,
		Dropped:    ans.Dropped,
		DurationMS: ans.Duration.Milliseconds(),
	})
}

// statusForError maps a pipeline failure to an HTTP status. Failures of the
// embedding or generation backends are upstream errors; a broken prompt
// template is a server misconfiguration.
func statusForError(err error) int {
	switch {
	case errors.Is(err, rag.ErrRetrieval), errors.Is(err, rag.ErrGeneration):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// handleHistory handles GET /api/history?limit=N, returning the most recent
// answers newest first.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	if s.history == nil {
		writeJSON(w, log, http.StatusNotFound, errorResponse{Error: "query history is disabled"})
		return
	}

	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSON(w, log, http.StatusBadRequest, errorResponse{Error: "limit must be a positive integer"})
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	recs, err := s.history.RecentQueries(r.Context(), limit)
	if err != nil {
		log.Error("history query failed", slog.Any("error", err))
		writeJSON(w, log, http.StatusInternalServerError, errorResponse{Error: "failed to read query history"})
		return
	}

	out := make([]historyEntry, 0, len(recs))
	for _, rec := range recs {
		out = append(out, historyEntry{
			ID:         rec.ID,
			Question:   rec.Question,
			Answer:     rec.Answer,
			Sources:    rec.Sources,
			DurationMS: rec.Duration.Milliseconds(),
			CreatedAt:  rec.CreatedAt,
		})
	}
	writeJSON(w, log, http.StatusOK, out)
}

// writeJSON encodes v as the response body with the given status.
func writeJSON(w http.ResponseWriter, log *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("response encode error", slog.Any("error", err))
	}
}
