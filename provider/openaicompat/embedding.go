package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/lectern/lectern"
)

// Embedding implements lectern.EmbeddingProvider against the OpenAI
// embeddings endpoint. The whole input slice goes out in one request;
// callers batch above this layer.
type Embedding struct {
	apiKey  string
	model   string
	baseURL string
	dims    int
	client  *http.Client
	name    string
}

// EmbeddingOption configures an Embedding instance.
type EmbeddingOption func(*Embedding)

// WithEmbeddingName sets the name returned by Name() (default "openai").
func WithEmbeddingName(name string) EmbeddingOption {
	return func(e *Embedding) { e.name = name }
}

// WithEmbeddingHTTPClient sets a custom HTTP client.
func WithEmbeddingHTTPClient(c *http.Client) EmbeddingOption {
	return func(e *Embedding) { e.client = c }
}

// NewEmbedding creates an OpenAI-compatible embedding provider. dims is the
// requested output dimensionality; it is sent to the API when the model
// supports truncation and always reported by Dimensions().
func NewEmbedding(apiKey, model, baseURL string, dims int, opts ...EmbeddingOption) *Embedding {
	e := &Embedding{
		apiKey:  apiKey,
		model:   model,
		baseURL: baseURL,
		dims:    dims,
		client:  &http.Client{},
		name:    "openai",
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name returns the provider name.
func (e *Embedding) Name() string { return e.name }

// Dimensions returns the configured embedding dimensionality.
func (e *Embedding) Dimensions() int { return e.dims }

// Embed returns one embedding vector per input text, in input order.
func (e *Embedding) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	body := EmbeddingRequest{
		Model:      e.model,
		Input:      texts,
		Dimensions: e.dims,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, &lectern.ErrLLM{Provider: e.name, Message: fmt.Sprintf("marshal embed request: %v", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embeddings", bytes.NewReader(payload))
	if err != nil {
		return nil, &lectern.ErrLLM{Provider: e.name, Message: fmt.Sprintf("create embed request: %v", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, &lectern.ErrLLM{Provider: e.name, Message: fmt.Sprintf("embed request failed: %v", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, httpErr(resp)
	}

	var parsed EmbeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, &lectern.ErrLLM{Provider: e.name, Message: fmt.Sprintf("decode embed response: %v", err)}
	}

	if len(parsed.Data) != len(texts) {
		return nil, &lectern.ErrLLM{
			Provider: e.name,
			Message:  fmt.Sprintf("embed count mismatch: sent %d texts, got %d vectors", len(texts), len(parsed.Data)),
		}
	}

	// The API documents data in input order, but index is authoritative.
	out := make([][]float32, len(texts))
	for _, d := range parsed.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, &lectern.ErrLLM{Provider: e.name, Message: fmt.Sprintf("embed index %d out of range", d.Index)}
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}

// Compile-time interface check.
var _ lectern.EmbeddingProvider = (*Embedding)(nil)
