package ops

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/hpungsan/sift/internal/errors"
	"github.com/hpungsan/sift/internal/memory"
)

// MemoryQueryInput contains parameters for the MemoryQuery operation.
type MemoryQueryInput struct {
	Text string
	K    int // default DefaultQueryK, max MaxQueryK
}

// MemoryQueryOutput contains the result of the MemoryQuery operation.
type MemoryQueryOutput struct {
	Hits []memory.Hit `json:"hits"`
}

// MemoryQuery returns the K remembered documents nearest to text.
func MemoryQuery(ctx context.Context, env *Env, input MemoryQueryInput) (out *MemoryQueryOutput, err error) {
	ctx, span := startSpan(ctx, "MemoryQuery", attribute.Int("k", input.K))
	defer func() { endSpan(span, err) }()

	if err := requireText(input.Text); err != nil {
		return nil, err
	}
	k := input.K
	switch {
	case k == 0:
		k = DefaultQueryK
	case k < 0:
		return nil, errors.NewInvalidRequest(fmt.Sprintf("k must not be negative, got %d", k))
	case k > MaxQueryK:
		k = MaxQueryK
	}

	hits, err := nearest(ctx, env, input.Text, k)
	if err != nil {
		return nil, err
	}
	return &MemoryQueryOutput{Hits: hits}, nil
}

// MemoryStatsInput contains parameters for the MemoryStats operation.
type MemoryStatsInput struct{}

// MemoryStatsOutput contains the result of the MemoryStats operation.
type MemoryStatsOutput struct {
	Entries    int                    `json:"entries"`
	Dimension  int                    `json:"dimension"`
	Backend    string                 `json:"backend"`
	Embedder   string                 `json:"embedder"`
	Categories []memory.CategoryCount `json:"categories"`
	ModelReady bool                   `json:"model_ready"`
}

// MemoryStats summarises the memory store.
func MemoryStats(ctx context.Context, env *Env, _ MemoryStatsInput) (out *MemoryStatsOutput, err error) {
	ctx, span := startSpan(ctx, "MemoryStats")
	defer func() { endSpan(span, err) }()

	store, err := env.Memory(ctx)
	if err != nil {
		return nil, err
	}
	if err := env.ensureModel(ctx); err != nil {
		return nil, err
	}

	return &MemoryStatsOutput{
		Entries:    store.Len(),
		Dimension:  store.Dimension(),
		Backend:    env.Config.MemoryBackend,
		Embedder:   env.Config.Embedder,
		Categories: store.Categories(),
		ModelReady: env.Scorer.Ready(),
	}, nil
}
