// Package embed converts text into fixed-length float32 vectors.
//
// Two implementations are provided:
//
//   - [Hash]: offline feature hashing, deterministic, no network
//   - [OpenAI]: the OpenAI embeddings API (or any compatible endpoint)
package embed

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hpungsan/sift/internal/config"
)

// Embedder converts text into dense float32 vectors.
type Embedder interface {
	// Embed returns the embedding vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns embedding vectors for multiple texts.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the dimensionality of the output vectors.
	Dimension() int
}

// ErrEmptyInput is returned when the input text is empty.
var ErrEmptyInput = stderrors.New("embed: empty input")

// options holds shared configuration for embedder implementations.
type options struct {
	model      string
	dim        int
	baseURL    string
	httpClient *http.Client
}

// Option configures an embedder.
type Option func(*options)

// WithModel sets the embedding model name.
func WithModel(model string) Option {
	return func(o *options) { o.model = model }
}

// WithDimension sets the output vector dimensionality.
func WithDimension(dim int) Option {
	return func(o *options) { o.dim = dim }
}

// WithBaseURL overrides the API base URL.
func WithBaseURL(url string) Option {
	return func(o *options) { o.baseURL = url }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) { o.httpClient = client }
}

// FromConfig builds the embedder selected by cfg.Embedder. apiKey is only
// used by the openai backend and must come from the environment, not config.
func FromConfig(cfg *config.Config, apiKey string) (Embedder, error) {
	switch cfg.Embedder {
	case "", config.EmbedderHash:
		return NewHash(cfg.VectorDimension), nil
	case config.EmbedderOpenAI:
		if apiKey == "" {
			return nil, fmt.Errorf("embedder %q requires OPENAI_API_KEY", cfg.Embedder)
		}
		opts := []Option{
			WithDimension(cfg.VectorDimension),
			WithHTTPClient(&http.Client{Timeout: 30 * time.Second}),
		}
		if cfg.OpenAIModel != "" {
			opts = append(opts, WithModel(cfg.OpenAIModel))
		}
		if cfg.OpenAIBaseURL != "" {
			opts = append(opts, WithBaseURL(cfg.OpenAIBaseURL))
		}
		return NewOpenAI(apiKey, opts...), nil
	}
	return nil, fmt.Errorf("unknown embedder %q", cfg.Embedder)
}
