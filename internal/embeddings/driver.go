// Package embeddings provides the sentence-embedding drivers and the
// product/query embedding service. Drivers speak HTTP to an embedding
// endpoint; the service builds the enriched text fed to them.
//
// Shipped drivers: Ollama (/api/embed, all-minilm 384d) and any
// OpenAI-compatible /v1/embeddings endpoint hosting a sentence-transformer.
package embeddings

import (
	"context"
	"errors"
	"fmt"
)

// ErrEmbedding wraps every driver failure. Callers must degrade to
// non-vector strategies rather than abort.
var ErrEmbedding = errors.New("embedding failed")

// Driver generates vector embeddings for batches of text.
type Driver interface {
	// Kind returns the driver identifier (e.g. "ollama", "openai").
	Kind() string

	// Dimensions returns the embedding dimensionality. Must match the
	// graph store's vector index.
	Dimensions() int

	// Embed generates one vector per input text.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// HealthCheck verifies the endpoint is reachable and serving the model.
	HealthCheck(ctx context.Context) error
}

// NewDriver constructs a driver by kind.
func NewDriver(kind, endpoint, apiKey, model string, dimensions int) (Driver, error) {
	switch kind {
	case "ollama":
		return NewOllamaDriver(endpoint, model, dimensions), nil
	case "openai":
		return NewOpenAIDriver(endpoint, apiKey, model, dimensions), nil
	default:
		return nil, fmt.Errorf("unknown embedding driver kind: %s", kind)
	}
}
