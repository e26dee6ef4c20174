package ops

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/hpungsan/sift/internal/dataset"
	"github.com/hpungsan/sift/internal/errors"
	"github.com/hpungsan/sift/internal/logging"
)

// DoctorInput contains parameters for the Doctor operation.
// Fixes are only written when Apply is set; otherwise the output previews them.
type DoctorInput struct {
	Relabel     map[string]string
	Drop        []string
	DropInvalid bool
	Apply       bool
}

// DoctorOutput contains the result of the Doctor operation.
type DoctorOutput struct {
	dataset.Report
	Fixes   *dataset.FixStats `json:"fixes,omitempty"`
	After   *dataset.Report   `json:"after,omitempty"`
	Applied bool              `json:"applied"`
}

// Doctor reports label health of the main dataset and optionally applies
// relabel and drop fixes, rewriting the file atomically.
func Doctor(ctx context.Context, env *Env, input DoctorInput) (out *DoctorOutput, err error) {
	ctx, span := startSpan(ctx, "Doctor", attribute.Bool("apply", input.Apply))
	defer func() { endSpan(span, err) }()

	fixes := dataset.Fixes{Relabel: input.Relabel, Drop: input.Drop, DropInvalid: input.DropInvalid}
	for from, to := range fixes.Relabel {
		if strings.TrimSpace(from) == "" || strings.TrimSpace(to) == "" {
			return nil, errors.NewInvalidRequest("relabel needs non-empty labels on both sides")
		}
	}

	env.datasetMu.Lock()
	defer env.datasetMu.Unlock()

	ds, err := dataset.Load(env.Paths.LabeledData)
	if err != nil {
		return nil, err
	}

	lonelyMin := env.Config.LonelyLabelMin
	out = &DoctorOutput{Report: dataset.Analyze(ds.Records, lonelyMin)}
	if fixes.Empty() {
		return out, nil
	}

	fixed, stats := dataset.Apply(ds.Records, fixes)
	after := dataset.Analyze(fixed, lonelyMin)
	out.Fixes = &stats
	out.After = &after

	if !input.Apply {
		return out, nil
	}
	ds.Records = fixed
	if err := ds.Save(env.Paths.LabeledData); err != nil {
		return nil, err
	}
	out.Applied = true
	logging.From(ctx).Info("doctor applied fixes",
		"relabeled", stats.Relabeled,
		"dropped", stats.Dropped,
	)
	return out, nil
}

// ParseRelabel parses "from=to" pairs.
func ParseRelabel(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		from, to, ok := strings.Cut(p, "=")
		from, to = strings.TrimSpace(from), strings.TrimSpace(to)
		if !ok || from == "" || to == "" {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("relabel must look like from=to, got %q", p))
		}
		out[from] = to
	}
	return out, nil
}
