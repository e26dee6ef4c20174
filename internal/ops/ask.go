package ops

import (
	"context"

	"github.com/hpungsan/sift/internal/errors"
	"github.com/hpungsan/sift/internal/memory"
)

// AskInput contains parameters for the Ask operation.
type AskInput struct {
	Text string
}

// AskOutput contains the result of the Ask operation.
type AskOutput struct {
	Label      string      `json:"label"`
	Confidence float64     `json:"confidence"`
	Degraded   bool        `json:"degraded,omitempty"`
	Match      *memory.Hit `json:"match"`
}

// Ask classifies a question and returns the single closest remembered
// document. Match is nil when the memory is empty.
func Ask(ctx context.Context, env *Env, input AskInput) (out *AskOutput, err error) {
	ctx, span := startSpan(ctx, "Ask")
	defer func() { endSpan(span, err) }()

	if err := requireText(input.Text); err != nil {
		return nil, err
	}

	scored, err := Score(ctx, env, ScoreInput{Text: input.Text})
	if err != nil {
		return nil, err
	}
	out = &AskOutput{Label: scored.Label, Confidence: scored.Confidence, Degraded: scored.Degraded}

	hits, err := nearest(ctx, env, input.Text, 1)
	if err != nil {
		return nil, err
	}
	if len(hits) > 0 {
		out.Match = &hits[0]
	}
	return out, nil
}

// nearest embeds text and queries the memory store.
func nearest(ctx context.Context, env *Env, text string, k int) ([]memory.Hit, error) {
	store, err := env.Memory(ctx)
	if err != nil {
		return nil, err
	}
	vec, err := env.Embedder.Embed(ctx, text)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.NewCancelled("embed")
		}
		return nil, errors.NewInternal(err)
	}
	return store.Query(vec, k)
}
