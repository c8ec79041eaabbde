package openaicompat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lectern/lectern"
)

func TestProvider_Chat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/chat/completions" {
			t.Errorf("expected path /chat/completions, got %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("unexpected auth header: %s", r.Header.Get("Authorization"))
		}

		var req ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Model != "gpt-4o-mini" {
			t.Errorf("expected model gpt-4o-mini, got %s", req.Model)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(ChatResponse{
			ID: "chatcmpl-1",
			Choices: []Choice{{
				Message: &ChoiceMessage{Role: "assistant", Content: "Hello!"},
			}},
			Usage: &Usage{PromptTokens: 5, CompletionTokens: 2},
		})
	}))
	defer srv.Close()

	p := NewProvider("test-key", "gpt-4o-mini", srv.URL)

	resp, err := p.Chat(context.Background(), lectern.ChatRequest{
		Messages: []lectern.ChatMessage{{Role: "user", Content: "Hi"}},
	})
	if err != nil {
		t.Fatalf("Chat returned error: %v", err)
	}
	if resp.Content != "Hello!" {
		t.Errorf("expected content 'Hello!', got %q", resp.Content)
	}
	if resp.Usage.InputTokens != 5 || resp.Usage.OutputTokens != 2 {
		t.Errorf("unexpected usage: %+v", resp.Usage)
	}
}

func TestProvider_ChatHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte("rate limited"))
	}))
	defer srv.Close()

	p := NewProvider("test-key", "gpt-4o-mini", srv.URL)

	_, err := p.Chat(context.Background(), lectern.ChatRequest{
		Messages: []lectern.ChatMessage{{Role: "user", Content: "Hi"}},
	})
	var httpErr *lectern.ErrHTTP
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected ErrHTTP, got %v", err)
	}
	if httpErr.Status != http.StatusTooManyRequests {
		t.Errorf("expected status 429, got %d", httpErr.Status)
	}
	if httpErr.Body != "rate limited" {
		t.Errorf("unexpected body: %q", httpErr.Body)
	}
}

func TestProvider_Name(t *testing.T) {
	p := NewProvider("k", "m", "http://localhost")
	if p.Name() != "openai" {
		t.Errorf("expected default name 'openai', got %q", p.Name())
	}

	p = NewProvider("k", "m", "http://localhost", WithName("groq"))
	if p.Name() != "groq" {
		t.Errorf("expected name 'groq', got %q", p.Name())
	}
}

func TestEmbedding_Embed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("expected path /embeddings, got %s", r.URL.Path)
		}

		var req EmbeddingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if len(req.Input) != 2 {
			t.Fatalf("expected 2 inputs, got %d", len(req.Input))
		}
		if req.Dimensions != 3 {
			t.Errorf("expected dimensions 3, got %d", req.Dimensions)
		}

		// Return data out of order; Embed must restore input order by index.
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(EmbeddingResponse{
			Data: []EmbeddingData{
				{Index: 1, Embedding: []float32{0, 1, 0}},
				{Index: 0, Embedding: []float32{1, 0, 0}},
			},
		})
	}))
	defer srv.Close()

	e := NewEmbedding("test-key", "text-embedding-3-small", srv.URL, 3)

	vecs, err := e.Embed(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatalf("Embed returned error: %v", err)
	}
	if len(vecs) != 2 {
		t.Fatalf("expected 2 vectors, got %d", len(vecs))
	}
	if vecs[0][0] != 1 || vecs[1][1] != 1 {
		t.Errorf("vectors not in input order: %v", vecs)
	}
	if e.Dimensions() != 3 {
		t.Errorf("expected Dimensions 3, got %d", e.Dimensions())
	}
}

func TestEmbedding_CountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(EmbeddingResponse{
			Data: []EmbeddingData{{Index: 0, Embedding: []float32{1}}},
		})
	}))
	defer srv.Close()

	e := NewEmbedding("test-key", "text-embedding-3-small", srv.URL, 1)

	_, err := e.Embed(context.Background(), []string{"a", "b"})
	var llmErr *lectern.ErrLLM
	if !errors.As(err, &llmErr) {
		t.Fatalf("expected ErrLLM, got %v", err)
	}
}

func TestEmbedding_EmptyInput(t *testing.T) {
	e := NewEmbedding("test-key", "text-embedding-3-small", "http://localhost:1", 3)

	vecs, err := e.Embed(context.Background(), nil)
	if err != nil {
		t.Fatalf("Embed returned error: %v", err)
	}
	if vecs != nil {
		t.Errorf("expected nil result for empty input, got %v", vecs)
	}
}
