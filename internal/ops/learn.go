package ops

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/hpungsan/sift/internal/errors"
	"github.com/hpungsan/sift/internal/logging"
	"github.com/hpungsan/sift/internal/memory"
	"github.com/hpungsan/sift/internal/textutil"
)

// LearnInput contains parameters for the Learn operation.
type LearnInput struct {
	Text  string
	URL   string
	Extra map[string]string
}

// LearnOutput contains the result of the Learn operation.
type LearnOutput struct {
	ID          string  `json:"id"`
	Position    int     `json:"position"`
	Label       string  `json:"label"`
	Confidence  float64 `json:"confidence"`
	Degraded    bool    `json:"degraded,omitempty"`
	AutoLabeled bool    `json:"auto_labeled"`
	MemorySize  int     `json:"memory_size"`
}

// Learn scores a document, embeds it, offers it to the auto-label gate and
// remembers it. The memory store is saved before returning. Embedding runs
// before the gate so a failed embed leaves no pending row behind. A failure
// after the gate keeps the pending row; the two writes are not atomic.
func Learn(ctx context.Context, env *Env, input LearnInput) (out *LearnOutput, err error) {
	ctx, span := startSpan(ctx, "Learn", attribute.String("url", input.URL))
	defer func() { endSpan(span, err) }()

	if err := requireText(input.Text); err != nil {
		return nil, err
	}

	store, err := env.Memory(ctx)
	if err != nil {
		return nil, err
	}

	scored, err := Score(ctx, env, ScoreInput{Text: input.Text})
	if err != nil {
		return nil, err
	}
	out = &LearnOutput{Label: scored.Label, Confidence: scored.Confidence, Degraded: scored.Degraded}

	vec, err := env.Embedder.Embed(ctx, input.Text)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.NewCancelled("embed")
		}
		return nil, errors.NewInternal(err)
	}

	if !scored.Degraded {
		labelText := textutil.Truncate(input.Text, env.Config.LabelChars)
		out.AutoLabeled, err = env.Gate.MaybeLabel(ctx, labelText, scored.Label, scored.Confidence)
		if err != nil {
			return nil, err
		}
	}

	meta, err := store.Add(vec, memory.Metadata{
		URL:               input.URL,
		TextSnippet:       textutil.Truncate(input.Text, env.Config.SnippetChars),
		PredictedCategory: scored.Label,
		Confidence:        round2(scored.Confidence),
		Extra:             input.Extra,
	})
	if err != nil {
		return nil, err
	}
	if err := store.Save(ctx); err != nil {
		return nil, err
	}

	out.ID = meta.ID
	out.MemorySize = store.Len()
	out.Position = out.MemorySize - 1
	env.Metrics.SetMemoryEntries(out.MemorySize)

	logging.From(ctx).Debug("learned",
		"id", meta.ID,
		"label", scored.Label,
		"confidence", scored.Confidence,
		"auto_labeled", out.AutoLabeled,
	)
	return out, nil
}
