package crossencoder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestScoreAlignsResultsWithInput(t *testing.T) {
	var got rerankRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/rerank" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"results":[{"index":1,"relevance_score":0.9},{"index":0,"relevance_score":0.2}]}`))
	}))
	defer server.Close()

	scorer := New(server.URL+"/", "bge-reranker", Options{})
	scores, err := scorer.Score(context.Background(), "query", []string{"first", "second"})
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if len(scores) != 2 || scores[0] != 0.2 || scores[1] != 0.9 {
		t.Fatalf("unexpected scores %v", scores)
	}
	if got.Model != "bge-reranker" || got.Query != "query" || len(got.Documents) != 2 {
		t.Fatalf("unexpected request %+v", got)
	}
	if scorer.Name() != "cross-encoder" {
		t.Fatalf("unexpected name %q", scorer.Name())
	}
}

func TestScoreRejectsIncompleteResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":[{"index":0,"relevance_score":0.5}]}`))
	}))
	defer server.Close()

	if _, err := New(server.URL, "", Options{}).Score(context.Background(), "q", []string{"a", "b"}); err == nil {
		t.Fatalf("expected error for missing score")
	}
}

func TestScoreRejectsOutOfRangeIndex(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":[{"index":3,"relevance_score":0.5}]}`))
	}))
	defer server.Close()

	if _, err := New(server.URL, "", Options{}).Score(context.Background(), "q", []string{"a"}); err == nil {
		t.Fatalf("expected error for out of range index")
	}
}

func TestScoreStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer server.Close()

	if _, err := New(server.URL, "", Options{}).Score(context.Background(), "q", []string{"a"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestScoreEmptyInputSkipsCall(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	scores, err := New(server.URL, "", Options{}).Score(context.Background(), "q", nil)
	if err != nil || len(scores) != 0 || called {
		t.Fatalf("expected no call for empty input, got %v %v %v", scores, err, called)
	}
}
