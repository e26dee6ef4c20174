package ops

import (
	"context"
	"fmt"
	"math"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/hpungsan/sift/internal/errors"
	"github.com/hpungsan/sift/internal/textutil"
)

// LabelInput contains parameters for the Label operation.
//
// With Manual the pair is persisted unconditionally. Otherwise Confidence
// goes through the gate; when Label is empty the text is scored first and
// the prediction is used.
type LabelInput struct {
	Text       string
	Label      string
	Confidence *float64
	Manual     bool
}

// LabelOutput contains the result of the Label operation.
type LabelOutput struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Threshold  float64 `json:"threshold"`
	Persisted  bool    `json:"persisted"`
	Degraded   bool    `json:"degraded,omitempty"`
}

// Label offers (text, label) to the pending store.
func Label(ctx context.Context, env *Env, input LabelInput) (out *LabelOutput, err error) {
	ctx, span := startSpan(ctx, "Label", attribute.Bool("manual", input.Manual))
	defer func() { endSpan(span, err) }()

	if err := requireText(input.Text); err != nil {
		return nil, err
	}
	text := textutil.Truncate(input.Text, env.Config.LabelChars)
	label := strings.TrimSpace(input.Label)

	if input.Manual {
		if label == "" {
			return nil, errors.NewInvalidRequest("label is required for manual labeling")
		}
		if err := env.Gate.Force(ctx, text, label); err != nil {
			return nil, err
		}
		return &LabelOutput{Label: label, Confidence: 1, Threshold: env.Gate.Threshold(), Persisted: true}, nil
	}

	out = &LabelOutput{Label: label, Threshold: env.Gate.Threshold()}
	switch {
	case label == "":
		if input.Confidence != nil {
			return nil, errors.NewInvalidRequest("confidence requires a label")
		}
		scored, err := Score(ctx, env, ScoreInput{Text: input.Text})
		if err != nil {
			return nil, err
		}
		if scored.Degraded {
			out.Label, out.Confidence, out.Degraded = scored.Label, scored.Confidence, true
			return out, nil
		}
		out.Label, out.Confidence = scored.Label, scored.Confidence
	case input.Confidence == nil:
		return nil, errors.NewInvalidRequest("confidence is required unless manual is set")
	default:
		c := *input.Confidence
		if math.IsNaN(c) || c < 0 || c > 1 {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("confidence must be within [0, 1], got %v", c))
		}
		out.Confidence = c
	}

	out.Persisted, err = env.Gate.MaybeLabel(ctx, text, out.Label, out.Confidence)
	if err != nil {
		return nil, err
	}
	return out, nil
}
