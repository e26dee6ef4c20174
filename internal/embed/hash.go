package embed

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"

	"github.com/hpungsan/sift/internal/textutil"
)

// Hash is an offline embedder using signed feature hashing over word
// unigrams and bigrams. Vectors are L2-normalised, so squared L2 distance
// between two embeddings is 2 - 2*cosine.
type Hash struct {
	dim int
}

var _ Embedder = (*Hash)(nil)

// NewHash returns a hashing embedder producing dim-length vectors.
func NewHash(dim int) *Hash {
	return &Hash{dim: dim}
}

func (h *Hash) Dimension() int {
	return h.dim
}

func (h *Hash) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyInput
	}
	if h.dim <= 0 {
		return nil, fmt.Errorf("embed: invalid dimension %d", h.dim)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vec := make([]float64, h.dim)
	tokens := textutil.Tokenize(text)
	for i, tok := range tokens {
		h.add(vec, tok)
		if i > 0 {
			h.add(vec, tokens[i-1]+" "+tok)
		}
	}

	norm := 0.0
	for _, v := range vec {
		norm += v * v
	}
	out := make([]float32, h.dim)
	if norm == 0 {
		return out, nil
	}
	norm = math.Sqrt(norm)
	for i, v := range vec {
		out[i] = float32(v / norm)
	}
	return out, nil
}

func (h *Hash) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyInput
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := h.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// add hashes feature into a bucket; one hash bit picks the sign so
// collisions cancel out on average.
func (h *Hash) add(vec []float64, feature string) {
	hasher := fnv.New64a()
	hasher.Write([]byte(feature))
	x := hasher.Sum64()

	bucket := int(x % uint64(h.dim))
	if x>>63 == 1 {
		vec[bucket]--
	} else {
		vec[bucket]++
	}
}
