package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jllopis/autoagent/pkg/errors"
)

func TestEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embeddings" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req embeddingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if req.Model != "nomic-embed-text" || req.Prompt != "hello" {
			t.Errorf("unexpected request %+v", req)
		}
		_ = json.NewEncoder(w).Encode(embeddingResponse{Embedding: []float64{0.5, -0.25, 1}})
	}))
	defer srv.Close()

	vec, err := NewEmbedder(srv.URL, "nomic-embed-text").Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if len(vec) != 3 || vec[0] != 0.5 || vec[1] != -0.25 || vec[2] != 1 {
		t.Fatalf("unexpected vector %v", vec)
	}
}

func TestEmbedErrors(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		recoverable bool
	}{
		{"server error", http.StatusInternalServerError, "boom", true},
		{"bad request", http.StatusBadRequest, "unknown model", false},
		{"empty embedding", http.StatusOK, `{"embedding":[]}`, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			_, err := NewEmbedder(srv.URL, "m").Embed(context.Background(), "x")
			if !errors.HasCode(err, errors.CodeBackendUnavailable) {
				t.Fatalf("expected backend unavailable, got %v", err)
			}
			if got := errors.AsAgentError(err).Recoverable; got != tc.recoverable {
				t.Fatalf("expected recoverable=%v, got %v", tc.recoverable, got)
			}
		})
	}
}

func TestEmbedUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewEmbedder(url, "m").Embed(context.Background(), "x")
	if !errors.HasCode(err, errors.CodeBackendUnavailable) || !errors.AsAgentError(err).Recoverable {
		t.Fatalf("expected recoverable backend error, got %v", err)
	}
}
