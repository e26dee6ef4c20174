// Package scorer turns raw classifier output into a single (label, confidence) pair.
package scorer

import (
	"fmt"
	"math"
	"sort"

	"github.com/hpungsan/sift/internal/errors"
	"github.com/hpungsan/sift/internal/model"
)

// UnknownLabel is reported when no model is loaded.
const UnknownLabel = "unknown"

// Result is one prediction. Confidence is in [0, 1].
type Result struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Scorer scores text against a loaded classifier. Implementations are pure.
type Scorer interface {
	Score(text string) (Result, error)
	// Rank returns the top n predictions by descending confidence; n <= 0 means all.
	Rank(text string, n int) ([]Result, error)
	Classes() []string
}

// ProbabilityModel exposes calibrated class probabilities.
type ProbabilityModel interface {
	Classes() []string
	PredictProba(text string) []float64
}

// MarginModel exposes one uncalibrated decision value per class.
type MarginModel interface {
	Classes() []string
	DecisionFunction(text string) []float64
}

// ProbabilisticScorer reports the maximum class probability as confidence.
type ProbabilisticScorer struct {
	model ProbabilityModel
}

func NewProbabilistic(m ProbabilityModel) *ProbabilisticScorer {
	return &ProbabilisticScorer{model: m}
}

func (s *ProbabilisticScorer) Classes() []string { return s.model.Classes() }

func (s *ProbabilisticScorer) Score(text string) (Result, error) {
	ranked, err := s.Rank(text, 1)
	if err != nil {
		return Result{}, err
	}
	return ranked[0], nil
}

func (s *ProbabilisticScorer) Rank(text string, n int) ([]Result, error) {
	classes := s.model.Classes()
	probs := s.model.PredictProba(text)
	if err := checkOutput(classes, probs); err != nil {
		return nil, err
	}
	conf := make([]float64, len(probs))
	for i, p := range probs {
		conf[i] = clamp01(p)
	}
	return rank(classes, conf, n), nil
}

// MarginScorer min-max normalises decision values: (m - min) / (max - min).
// When every margin is equal, including the single-class case, confidence is 1.0.
type MarginScorer struct {
	model MarginModel
}

func NewMargin(m MarginModel) *MarginScorer {
	return &MarginScorer{model: m}
}

func (s *MarginScorer) Classes() []string { return s.model.Classes() }

func (s *MarginScorer) Score(text string) (Result, error) {
	ranked, err := s.Rank(text, 1)
	if err != nil {
		return Result{}, err
	}
	return ranked[0], nil
}

func (s *MarginScorer) Rank(text string, n int) ([]Result, error) {
	classes := s.model.Classes()
	margins := s.model.DecisionFunction(text)
	if err := checkOutput(classes, margins); err != nil {
		return nil, err
	}
	return rank(classes, normalizeMargins(margins), n), nil
}

func normalizeMargins(margins []float64) []float64 {
	lo, hi := margins[0], margins[0]
	for _, m := range margins[1:] {
		lo = math.Min(lo, m)
		hi = math.Max(hi, m)
	}
	out := make([]float64, len(margins))
	for i, m := range margins {
		if hi == lo {
			out[i] = 1.0
			continue
		}
		out[i] = (m - lo) / (hi - lo)
	}
	return out
}

// New inspects the artifact once and returns the matching scorer variant.
func New(a *model.Artifact) (Scorer, error) {
	switch {
	case a == nil:
		return nil, errors.NewInternal(fmt.Errorf("nil model artifact"))
	case a.NaiveBayes != nil:
		return NewProbabilistic(a.NaiveBayes), nil
	case a.Centroid != nil:
		return NewMargin(a.Centroid), nil
	}
	return nil, errors.NewInternal(fmt.Errorf("artifact kind %q exposes neither probabilities nor margins", a.Kind))
}

// Load reads the model at path. MODEL_UNAVAILABLE is returned when no
// artifact exists so the caller can prompt for training.
func Load(path string) (Scorer, error) {
	a, err := model.Load(path)
	if err != nil {
		return nil, err
	}
	return New(a)
}

func checkOutput(classes []string, values []float64) error {
	if len(classes) == 0 {
		return errors.NewInternal(fmt.Errorf("model has no classes"))
	}
	if len(values) != len(classes) {
		return errors.NewInternal(fmt.Errorf("model returned %d values for %d classes", len(values), len(classes)))
	}
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.NewInternal(fmt.Errorf("model returned non-finite value for class %q", classes[i]))
		}
	}
	return nil
}

// rank orders classes by descending confidence; ties keep class order.
func rank(classes []string, conf []float64, n int) []Result {
	out := make([]Result, len(classes))
	for i := range classes {
		out[i] = Result{Label: classes[i], Confidence: conf[i]}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })
	if n > 0 && n < len(out) {
		out = out[:n]
	}
	return out
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
