package lectern

import "context"

// Provider abstracts the language-model backend. The query path is blocking
// request/response; when req.Tools is non-empty the response may carry
// structured tool calls instead of (or alongside) text.
type Provider interface {
	Chat(ctx context.Context, req ChatRequest) (ChatResponse, error)
	// Name returns the provider name (e.g. "openai").
	Name() string
}

// EmbeddingProvider abstracts text embedding.
type EmbeddingProvider interface {
	// Embed returns embedding vectors for the given texts.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// Dimensions returns the embedding vector size.
	Dimensions() int
	// Name returns the provider name.
	Name() string
}
