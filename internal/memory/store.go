// Package memory is the vector memory: an exact L2 index whose positions
// are aligned one-to-one with a metadata list.
package memory

import (
	"context"
	"crypto/rand"
	"fmt"
	"maps"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hpungsan/sift/internal/errors"
	"github.com/hpungsan/sift/internal/logging"
)

// Metadata describes one remembered document.
type Metadata struct {
	ID                string            `json:"id" msgpack:"id"`
	URL               string            `json:"url,omitempty" msgpack:"url,omitempty"`
	TextSnippet       string            `json:"text_snippet" msgpack:"text_snippet"`
	PredictedCategory string            `json:"predicted_category" msgpack:"predicted_category"`
	Confidence        float64           `json:"confidence" msgpack:"confidence"`
	AddedAt           int64             `json:"added_at" msgpack:"added_at"`
	Extra             map[string]string `json:"extra,omitempty" msgpack:"extra,omitempty"`
}

// clone returns m with its own copy of Extra.
func (m Metadata) clone() Metadata {
	m.Extra = maps.Clone(m.Extra)
	return m
}

// Hit is one query result.
type Hit struct {
	Position int      `json:"position"`
	Distance float32  `json:"distance"`
	Metadata Metadata `json:"metadata"`
}

// Persister loads and saves the full store state.
// Load returns a nil index when nothing has been saved yet.
type Persister interface {
	Load(ctx context.Context) (*FlatL2, []Metadata, error)
	Save(ctx context.Context, idx *FlatL2, meta []Metadata) error
}

// Store is the vector memory. The i-th vector in the index belongs to the
// i-th metadata entry. Safe for concurrent use.
type Store struct {
	mu        sync.RWMutex
	dim       int
	index     *FlatL2
	meta      []Metadata
	persister Persister
	entropy   *ulid.MonotonicEntropy
	now       func() time.Time
}

// New returns an empty store for vectors of length dim. p may be nil for a
// store that is never persisted.
func New(dim int, p Persister) (*Store, error) {
	if dim <= 0 {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("dimension must be positive, got %d", dim))
	}
	return &Store{
		dim:       dim,
		index:     NewFlatL2(dim),
		persister: p,
		entropy:   ulid.Monotonic(rand.Reader, 0),
		now:       time.Now,
	}, nil
}

// Open loads the store through p. Nothing saved yet yields an empty store.
// A stored dimension different from dim is a configuration error.
func Open(ctx context.Context, dim int, p Persister) (*Store, error) {
	s, err := New(dim, p)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return s, nil
	}

	idx, meta, err := p.Load(ctx)
	if err != nil {
		return nil, err
	}
	if idx == nil {
		logging.From(ctx).Debug("memory store empty", "dim", dim)
		return s, nil
	}
	if idx.Dim() != dim {
		return nil, errors.NewInvalidRequest(fmt.Sprintf(
			"stored memory has dimension %d but vector_dimension is %d", idx.Dim(), dim))
	}
	if idx.Len() != len(meta) {
		return nil, errors.NewCorruptStore("memory",
			fmt.Errorf("index has %d vectors but metadata has %d entries", idx.Len(), len(meta)))
	}

	s.index = idx
	s.meta = meta
	logging.From(ctx).Debug("memory store loaded", "entries", len(meta), "dim", dim)
	return s, nil
}

// Dimension returns D.
func (s *Store) Dimension() int { return s.dim }

// Len returns the number of entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Len()
}

// Add validates vector and appends it with meta. ID and AddedAt are filled
// in when empty. On error nothing is changed. The new state is in memory
// only until Save.
func (s *Store) Add(vector []float32, meta Metadata) (Metadata, error) {
	if err := s.validate(vector); err != nil {
		return Metadata{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if meta.ID == "" {
		meta.ID = ulid.MustNew(ulid.Timestamp(now), s.entropy).String()
	}
	if meta.AddedAt == 0 {
		meta.AddedAt = now.Unix()
	}
	meta.Extra = maps.Clone(meta.Extra)
	s.index.Add(vector)
	s.meta = append(s.meta, meta)
	return meta.clone(), nil
}

// Query returns up to k nearest entries, nearest first. An empty store or
// k <= 0 yields no hits.
func (s *Store) Query(vector []float32, k int) ([]Hit, error) {
	if err := s.validate(vector); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if k <= 0 || s.index.Len() == 0 {
		return []Hit{}, nil
	}

	positions, distances := s.index.Search(vector, min(k, s.index.Len()))
	hits := make([]Hit, 0, len(positions))
	for i, pos := range positions {
		if pos < 0 {
			continue
		}
		hits = append(hits, Hit{Position: pos, Distance: distances[i], Metadata: s.meta[pos].clone()})
	}
	return hits, nil
}

// Entry returns the metadata at position.
func (s *Store) Entry(position int) (Metadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if position < 0 || position >= len(s.meta) {
		return Metadata{}, errors.NewNotFound(fmt.Sprintf("memory position %d", position))
	}
	return s.meta[position].clone(), nil
}

// Categories counts entries per predicted category, sorted by count
// descending then name.
func (s *Store) Categories() []CategoryCount {
	s.mu.RLock()
	counts := make(map[string]int)
	for _, m := range s.meta {
		counts[m.PredictedCategory]++
	}
	s.mu.RUnlock()

	out := make([]CategoryCount, 0, len(counts))
	for c, n := range counts {
		out = append(out, CategoryCount{Category: c, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// CategoryCount is one row of Categories.
type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// Save writes the full state through the persister. Adds wait until it
// finishes so the saved index and metadata are the same snapshot.
func (s *Store) Save(ctx context.Context) error {
	if s.persister == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.persister.Save(ctx, s.index, s.meta); err != nil {
		return err
	}
	logging.From(ctx).Info("memory saved", "entries", len(s.meta))
	return nil
}

func (s *Store) validate(vector []float32) error {
	if len(vector) != s.dim {
		return errors.NewMalformedVector(
			fmt.Sprintf("vector has dimension %d, want %d", len(vector), s.dim),
			map[string]any{"want": s.dim, "got": len(vector)},
		)
	}
	for i, v := range vector {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return errors.NewMalformedVector(
				fmt.Sprintf("vector component %d is not finite", i),
				map[string]any{"index": i},
			)
		}
	}
	return nil
}
