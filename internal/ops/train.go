package ops

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/hpungsan/sift/internal/dataset"
	"github.com/hpungsan/sift/internal/errors"
	"github.com/hpungsan/sift/internal/logging"
	"github.com/hpungsan/sift/internal/model"
)

// TrainInput contains parameters for the Train operation.
type TrainInput struct{}

// TrainOutput contains the result of the Train operation.
type TrainOutput struct {
	ModelPath string        `json:"model_path"`
	Kind      model.Kind    `json:"kind"`
	Classes   []string      `json:"classes"`
	Report    *model.Report `json:"report"`
}

// Train fits a classifier on the main labeled dataset, writes it atomically
// and swaps it into the scorer.
func Train(ctx context.Context, env *Env, _ TrainInput) (out *TrainOutput, err error) {
	ctx, span := startSpan(ctx, "Train")
	defer func() { endSpan(span, err) }()

	start := time.Now()

	opts := model.DefaultOptions()
	opts.MinExamples = env.Config.MinTrainExamples

	ds, err := dataset.Load(env.Paths.LabeledData)
	if err != nil {
		if errors.Is(err, errors.ErrFileNotFound) {
			return nil, errors.NewInsufficientData(0, opts.MinExamples)
		}
		return nil, err
	}

	examples := make([]model.Example, len(ds.Records))
	for i, r := range ds.Records {
		examples[i] = model.Example{Text: r.Text, Label: r.Label}
	}

	artifact, err := model.Train(ctx, examples, opts)
	if err != nil {
		return nil, err
	}
	if err := model.Save(env.Paths.Model, artifact); err != nil {
		return nil, err
	}
	if err := env.Scorer.Reload(ctx); err != nil {
		return nil, err
	}
	env.Metrics.ObserveTrain(time.Since(start))

	span.SetAttributes(
		attribute.String("best", artifact.Report.Best),
		attribute.Int("examples", artifact.Report.Examples),
	)
	logging.From(ctx).Info("model saved", "path", env.Paths.Model, "kind", artifact.Kind)

	return &TrainOutput{
		ModelPath: env.Paths.Model,
		Kind:      artifact.Kind,
		Classes:   artifact.Classes(),
		Report:    artifact.Report,
	}, nil
}
