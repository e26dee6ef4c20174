package ops

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/hpungsan/sift/internal/dataset"
)

// MergeInput contains parameters for the Merge operation.
type MergeInput struct {
	Retrain bool // train a new model after a merge that changed the dataset
}

// MergeOutput contains the result of the Merge operation.
type MergeOutput struct {
	dataset.MergeResult
	Train *TrainOutput `json:"train,omitempty"`
}

// Merge folds pending auto-labels into the main dataset. With Retrain, a
// successful merge is followed by Train; a no-op merge does not retrain.
func Merge(ctx context.Context, env *Env, input MergeInput) (out *MergeOutput, err error) {
	ctx, span := startSpan(ctx, "Merge", attribute.Bool("retrain", input.Retrain))
	defer func() { endSpan(span, err) }()

	env.datasetMu.Lock()
	res, err := dataset.Merge(ctx, env.Paths.LabeledData, env.Pending)
	env.datasetMu.Unlock()
	if err != nil {
		return nil, err
	}
	env.Metrics.ObserveMerge(string(res.Status))
	span.SetAttributes(attribute.String("status", string(res.Status)))

	out = &MergeOutput{MergeResult: *res}
	if input.Retrain && res.Status == dataset.StatusMerged {
		out.Train, err = Train(ctx, env, TrainInput{})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}
