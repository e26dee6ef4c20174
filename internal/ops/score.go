package ops

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/hpungsan/sift/internal/scorer"
)

// ScoreInput contains parameters for the Score operation.
type ScoreInput struct {
	Text string
	Top  int // when > 0, also return the top N predictions (max MaxTopN)
}

// ScoreOutput contains the result of the Score operation.
type ScoreOutput struct {
	Label      string          `json:"label"`
	Confidence float64         `json:"confidence"`
	Degraded   bool            `json:"degraded,omitempty"`
	Top        []scorer.Result `json:"top,omitempty"`
}

// Score classifies text. Without a trained model the result is unknown/0
// with Degraded set; other model errors are returned.
func Score(ctx context.Context, env *Env, input ScoreInput) (out *ScoreOutput, err error) {
	ctx, span := startSpan(ctx, "Score", attribute.Int("top", input.Top))
	defer func() { endSpan(span, err) }()

	if err := requireText(input.Text); err != nil {
		return nil, err
	}
	if err := env.ensureModel(ctx); err != nil {
		return nil, err
	}

	outcome, err := env.Scorer.Score(input.Text)
	if err != nil {
		return nil, err
	}
	out = &ScoreOutput{
		Label:      outcome.Label,
		Confidence: outcome.Confidence,
		Degraded:   outcome.Degraded,
	}

	if input.Top > 0 {
		top := input.Top
		if top > MaxTopN {
			top = MaxTopN
		}
		ranked, _, err := env.Scorer.Rank(input.Text, top)
		if err != nil {
			return nil, err
		}
		out.Top = ranked
	}

	span.SetAttributes(
		attribute.String("label", out.Label),
		attribute.Float64("confidence", out.Confidence),
		attribute.Bool("degraded", out.Degraded),
	)
	return out, nil
}
