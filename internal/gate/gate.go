// Package gate decides whether a scored text is trusted enough to become
// training data.
package gate

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/hpungsan/sift/internal/dataset"
	"github.com/hpungsan/sift/internal/errors"
	"github.com/hpungsan/sift/internal/logging"
	"github.com/hpungsan/sift/internal/metrics"
)

// Gate persists (text, label) pairs to the pending store when confidence
// clears the threshold. The cutoff is inclusive and deterministic.
type Gate struct {
	threshold float64
	pending   *dataset.PendingStore
	metrics   *metrics.Metrics
}

// New returns a gate. threshold must be within [0, 1].
func New(threshold float64, pending *dataset.PendingStore, m *metrics.Metrics) (*Gate, error) {
	if math.IsNaN(threshold) || threshold < 0 || threshold > 1 {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("threshold must be within [0, 1], got %v", threshold))
	}
	if pending == nil {
		return nil, errors.NewInternal(fmt.Errorf("gate requires a pending store"))
	}
	return &Gate{threshold: threshold, pending: pending, metrics: m}, nil
}

// Threshold returns the configured cutoff.
func (g *Gate) Threshold() float64 {
	return g.threshold
}

// MaybeLabel appends (text, label) iff confidence >= threshold and reports
// whether it did. Blank text is rejected before anything is written. A NaN
// confidence never persists.
func (g *Gate) MaybeLabel(ctx context.Context, text, label string, confidence float64) (bool, error) {
	if strings.TrimSpace(text) == "" {
		return false, errors.NewInvalidRequest("text is required")
	}

	logger := logging.From(ctx)
	if math.IsNaN(confidence) || confidence < g.threshold {
		g.metrics.ObserveDecision(metrics.DecisionBelowThreshold)
		logger.Debug("below threshold, not labeled",
			"label", label,
			"confidence", confidence,
			"threshold", g.threshold,
		)
		return false, nil
	}

	if err := g.pending.Append(text, label); err != nil {
		return false, err
	}
	g.metrics.ObserveDecision(metrics.DecisionPersisted)
	logger.Debug("auto-labeled", "label", label, "confidence", confidence, "threshold", g.threshold)
	return true, nil
}

// Force appends (text, label) regardless of confidence. Used for manual curation.
func (g *Gate) Force(ctx context.Context, text, label string) error {
	if err := g.pending.Append(text, label); err != nil {
		return err
	}
	g.metrics.ObserveDecision(metrics.DecisionForced)
	logging.From(ctx).Debug("labeled manually", "label", label)
	return nil
}
