package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/ragq-go/internal/logging"
)

func TestAuthMiddleware(t *testing.T) {
	t.Parallel()

	const (
		challenge        = `Bearer realm="ragq"`
		invalidChallenge = `Bearer realm="ragq" error="invalid_token"`
	)

	cases := []struct {
		name          string
		apiKey        string
		authorization string // empty means no header
		wantCode      int
		wantChallenge string
		wantBody      string
	}{
		{name: "auth disabled passes anything", apiKey: "", authorization: "Bearer whatever", wantCode: http.StatusOK},
		{name: "auth disabled passes no header", apiKey: "", wantCode: http.StatusOK},
		{name: "valid token", apiKey: "s3cret", authorization: "Bearer s3cret", wantCode: http.StatusOK},
		{name: "scheme is case-insensitive", apiKey: "s3cret", authorization: "bEaReR s3cret", wantCode: http.StatusOK},
		{name: "extra spaces around token", apiKey: "s3cret", authorization: "Bearer   s3cret  ", wantCode: http.StatusOK},
		{name: "no header", apiKey: "s3cret", wantCode: http.StatusUnauthorized, wantChallenge: challenge, wantBody: "authorization required"},
		{name: "scheme without token", apiKey: "s3cret", authorization: "Bearer", wantCode: http.StatusUnauthorized, wantChallenge: challenge, wantBody: "authorization required"},
		{name: "scheme with blank token", apiKey: "s3cret", authorization: "Bearer    ", wantCode: http.StatusUnauthorized, wantChallenge: challenge, wantBody: "authorization required"},
		{name: "other scheme", apiKey: "s3cret", authorization: "Basic s3cret", wantCode: http.StatusUnauthorized, wantChallenge: challenge, wantBody: "authorization required"},
		{name: "bare token without scheme", apiKey: "s3cret", authorization: "s3cret", wantCode: http.StatusUnauthorized, wantChallenge: challenge, wantBody: "authorization required"},
		{name: "wrong token", apiKey: "s3cret", authorization: "Bearer nope", wantCode: http.StatusUnauthorized, wantChallenge: invalidChallenge, wantBody: "invalid token"},
		{name: "token prefix", apiKey: "s3cret", authorization: "Bearer s3c", wantCode: http.StatusUnauthorized, wantChallenge: invalidChallenge, wantBody: "invalid token"},
		{name: "token with trailing word", apiKey: "s3cret", authorization: "Bearer s3cret extra", wantCode: http.StatusUnauthorized, wantChallenge: invalidChallenge, wantBody: "invalid token"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			called := false
			next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				called = true
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodPost, "/api/query", nil)
			if tc.authorization != "" {
				req.Header.Set("Authorization", tc.authorization)
			}
			w := httptest.NewRecorder()
			authMiddleware(tc.apiKey, next).ServeHTTP(w, req)

			if w.Code != tc.wantCode {
				t.Fatalf("status: got %d, want %d", w.Code, tc.wantCode)
			}
			if want := tc.wantCode == http.StatusOK; called != want {
				t.Errorf("next handler called = %v, want %v", called, want)
			}
			if got := w.Header().Get("WWW-Authenticate"); got != tc.wantChallenge {
				t.Errorf("WWW-Authenticate: got %q, want %q", got, tc.wantChallenge)
			}
			if got := strings.TrimSpace(w.Body.String()); tc.wantBody != "" && got != tc.wantBody {
				t.Errorf("body: got %q, want %q", got, tc.wantBody)
			}
		})
	}
}

func TestBearerToken(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"":                    "",
		"Bearer":              "",
		"Bearer ":             "",
		"Bearer abc":          "abc",
		"bearer abc":          "abc",
		"BEARER  abc ":        "abc",
		"Bearer a b":          "a b",
		"Basic abc":           "",
		"Token abc":           "",
		"Bearerabc":           "",
		"abc":                 "",
		"Bearer\tabc":         "",
		"Bearer eyJhbGciOi.x": "eyJhbGciOi.x",
	}
	for header, want := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		if got := bearerToken(req); got != want {
			t.Errorf("bearerToken(%q): got %q, want %q", header, got, want)
		}
	}
}

func TestAuthMiddleware_OnlyGuardsWrappedHandler(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	srv, err := New(&fakeQuerier{}, &Config{
		APIKey:          "s3cret",
		Logger:          logging.Discard(),
		MetricsRegistry: reg,
		MetricsGatherer: reg,
	}, WithHistory(&fakeHistory{}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(srv.stopRL)
	h := srv.Handler()

	for _, path := range []string{"/api/health", "/api/ready"} {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code == http.StatusUnauthorized {
			t.Errorf("%s should not require auth", path)
		}
	}

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodPost, "/api/query", strings.NewReader(`{"question":"q"}`)),
		httptest.NewRequest(http.MethodGet, "/api/history", nil),
	} {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("%s without token: got %d, want 401", req.URL.Path, w.Code)
		}
	}
}
