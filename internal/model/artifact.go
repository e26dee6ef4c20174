package model

import (
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/hpungsan/sift/internal/errors"
	"github.com/hpungsan/sift/internal/fsutil"
)

// ArtifactVersion is bumped whenever the persisted layout changes.
const ArtifactVersion = 1

// Kind names a classifier family.
type Kind string

const (
	KindNaiveBayes Kind = "naive_bayes"
	KindCentroid   Kind = "tfidf_centroid"
)

// Artifact is a trained classifier as persisted on disk. Exactly one of
// NaiveBayes or Centroid is set, matching Kind. Artifacts are replaced
// wholesale on retraining, never patched.
type Artifact struct {
	Version    int         `json:"version" msgpack:"version"`
	Kind       Kind        `json:"kind" msgpack:"kind"`
	TrainedAt  int64       `json:"trained_at" msgpack:"trained_at"`
	NaiveBayes *NaiveBayes `json:"naive_bayes,omitempty" msgpack:"naive_bayes,omitempty"`
	Centroid   *Centroid   `json:"centroid,omitempty" msgpack:"centroid,omitempty"`
	Report     *Report     `json:"report,omitempty" msgpack:"report,omitempty"`
}

// Classes returns the labels the artifact predicts over.
func (a *Artifact) Classes() []string {
	switch {
	case a.NaiveBayes != nil:
		return a.NaiveBayes.Labels
	case a.Centroid != nil:
		return a.Centroid.Labels
	}
	return nil
}

// Validate checks that the payload matches Kind and its tables are aligned.
func (a *Artifact) Validate() error {
	if a.Version != ArtifactVersion {
		return fmt.Errorf("unsupported artifact version %d", a.Version)
	}
	switch a.Kind {
	case KindNaiveBayes:
		nb := a.NaiveBayes
		if nb == nil || a.Centroid != nil {
			return fmt.Errorf("kind %s requires a naive_bayes payload only", a.Kind)
		}
		if len(nb.Labels) == 0 {
			return fmt.Errorf("no classes")
		}
		if len(nb.ClassLogPrior) != len(nb.Labels) || len(nb.FeatureLogProb) != len(nb.Labels) {
			return fmt.Errorf("class tables do not match %d classes", len(nb.Labels))
		}
		for _, row := range nb.FeatureLogProb {
			if len(row) != nb.Vocab.Size() {
				return fmt.Errorf("feature table does not match vocabulary size %d", nb.Vocab.Size())
			}
		}
	case KindCentroid:
		m := a.Centroid
		if m == nil || a.NaiveBayes != nil {
			return fmt.Errorf("kind %s requires a centroid payload only", a.Kind)
		}
		if len(m.Labels) == 0 {
			return fmt.Errorf("no classes")
		}
		if len(m.Centroids) != len(m.Labels) || len(m.IDF) != m.Vocab.Size() {
			return fmt.Errorf("centroid tables do not match %d classes", len(m.Labels))
		}
		for _, row := range m.Centroids {
			if len(row) != m.Vocab.Size() {
				return fmt.Errorf("centroid does not match vocabulary size %d", m.Vocab.Size())
			}
		}
	default:
		return fmt.Errorf("unknown kind %q", a.Kind)
	}
	vocab := a.vocab()
	for _, idx := range vocab.Terms {
		if idx < 0 || idx >= vocab.Size() {
			return fmt.Errorf("vocabulary index %d out of range", idx)
		}
	}
	return nil
}

func (a *Artifact) vocab() Vocabulary {
	if a.NaiveBayes != nil {
		return a.NaiveBayes.Vocab
	}
	return a.Centroid.Vocab
}

// Save writes the artifact atomically; readers see the old model or the new one.
func Save(path string, a *Artifact) error {
	err := fsutil.WriteAtomic(path, 0600, func(w io.Writer) error {
		return msgpack.NewEncoder(w).Encode(a)
	})
	if err != nil {
		if _, ok := errors.As(err); ok {
			return err
		}
		return errors.NewInternal(fmt.Errorf("save model: %w", err))
	}
	return nil
}

// Load reads the artifact at path.
// Missing file: MODEL_UNAVAILABLE. Undecodable or inconsistent: CORRUPT_STORE.
func Load(path string) (*Artifact, error) {
	f, err := fsutil.OpenNoFollowRead(path)
	if err != nil {
		if errors.Is(err, errors.ErrFileNotFound) {
			return nil, errors.NewModelUnavailable(path)
		}
		if _, ok := errors.As(err); ok {
			return nil, err
		}
		return nil, errors.NewInternal(fmt.Errorf("open model: %w", err))
	}
	defer f.Close()

	var a Artifact
	if err := msgpack.NewDecoder(f).Decode(&a); err != nil {
		return nil, errors.NewCorruptStore(path, err)
	}
	if err := a.Validate(); err != nil {
		return nil, errors.NewCorruptStore(path, err)
	}
	return &a, nil
}
