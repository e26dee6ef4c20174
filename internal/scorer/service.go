package scorer

import (
	"context"
	"sync"

	"github.com/hpungsan/sift/internal/errors"
	"github.com/hpungsan/sift/internal/logging"
	"github.com/hpungsan/sift/internal/metrics"
)

// Outcome is a scoring result from the Service. Degraded is set when no
// model is loaded and the result is the unknown/0 placeholder.
type Outcome struct {
	Result
	Degraded bool `json:"degraded,omitempty"`
}

// Service owns the currently loaded scorer. It is constructed and
// initialised explicitly by the caller and is safe for concurrent use.
type Service struct {
	path    string
	metrics *metrics.Metrics

	mu     sync.RWMutex
	scorer Scorer
}

// NewService returns a service for the model at path. Nothing is loaded
// until Reload is called.
func NewService(path string, m *metrics.Metrics) *Service {
	return &Service{path: path, metrics: m}
}

// NewStaticService wraps an already built scorer. Reload is a no-op when path is empty.
func NewStaticService(s Scorer, m *metrics.Metrics) *Service {
	return &Service{scorer: s, metrics: m}
}

// Reload loads the model from disk and swaps it in. Errors are surfaced,
// including MODEL_UNAVAILABLE; on error the previous scorer is kept.
func (s *Service) Reload(ctx context.Context) error {
	if s.path == "" {
		return nil
	}
	sc, err := Load(s.path)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.scorer = sc
	s.mu.Unlock()
	logging.From(ctx).Debug("loaded model", "path", s.path, "classes", len(sc.Classes()))
	return nil
}

// Ready reports whether a model is loaded.
func (s *Service) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scorer != nil
}

func (s *Service) current() Scorer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scorer
}

// Score classifies text. Without a model it returns {unknown, 0} and
// Degraded instead of failing.
func (s *Service) Score(text string) (Outcome, error) {
	sc := s.current()
	if sc == nil {
		s.metrics.ObserveScore(true)
		return Outcome{Result: Result{Label: UnknownLabel, Confidence: 0}, Degraded: true}, nil
	}
	r, err := sc.Score(text)
	if err != nil {
		return Outcome{}, err
	}
	s.metrics.ObserveScore(false)
	return Outcome{Result: r}, nil
}

// Rank returns the top n predictions. Without a model the list is empty
// and degraded is true.
func (s *Service) Rank(text string, n int) ([]Result, bool, error) {
	sc := s.current()
	if sc == nil {
		s.metrics.ObserveScore(true)
		return []Result{}, true, nil
	}
	rs, err := sc.Rank(text, n)
	if err != nil {
		return nil, false, err
	}
	s.metrics.ObserveScore(false)
	return rs, false, nil
}

// IsUnavailable reports whether err means no model exists yet.
func IsUnavailable(err error) bool {
	return errors.Is(err, errors.ErrModelUnavailable)
}
