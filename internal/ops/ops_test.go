package ops

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/hpungsan/sift/internal/config"
	"github.com/hpungsan/sift/internal/errors"
)

const testDim = 64

var sportsTexts = []string{
	"the striker scored a late goal in the football match",
	"the referee showed a red card during the match",
	"our team won the league after a penalty shootout",
	"the goalkeeper saved a penalty in the final minute",
	"fans cheered as the team lifted the cup",
	"the coach praised the defence after the league win",
}

var cookingTexts = []string{
	"simmer the tomato sauce with garlic and basil",
	"knead the dough and bake the bread in a hot oven",
	"whisk the eggs with butter and sugar for the cake",
	"roast the chicken with rosemary and lemon",
	"season the soup with salt pepper and fresh herbs",
	"chop the onions and fry them in olive oil",
}

func newTestEnv(t *testing.T, mutate func(c *config.Config)) *Env {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.VectorDimension = testDim
	if mutate != nil {
		mutate(cfg)
	}
	env, err := NewEnv(Options{BaseDir: t.TempDir(), Config: cfg})
	if err != nil {
		t.Fatalf("NewEnv() error = %v", err)
	}
	t.Cleanup(func() { env.Close() })
	return env
}

func writeDataset(t *testing.T, env *Env) {
	t.Helper()
	var b strings.Builder
	b.WriteString("text,label\n")
	for _, s := range sportsTexts {
		fmt.Fprintf(&b, "%q,sports\n", s)
	}
	for _, s := range cookingTexts {
		fmt.Fprintf(&b, "%q,cooking\n", s)
	}
	if err := os.WriteFile(env.Paths.LabeledData, []byte(b.String()), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
}

func trainedEnv(t *testing.T, mutate func(c *config.Config)) *Env {
	t.Helper()
	env := newTestEnv(t, mutate)
	writeDataset(t, env)
	if _, err := Train(context.Background(), env, TrainInput{}); err != nil {
		t.Fatalf("Train() error = %v", err)
	}
	return env
}

func TestNewEnv_DimensionMismatch(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.VectorDimension = 8
	_, err := NewEnv(Options{BaseDir: t.TempDir(), Config: cfg, Embedder: fixedEmbedder{dim: 4}})
	if !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("NewEnv() error = %v, want INVALID_REQUEST", err)
	}
}

func TestNewEnv_OpenAIRequiresKey(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Embedder = config.EmbedderOpenAI
	_, err := NewEnv(Options{BaseDir: t.TempDir(), Config: cfg})
	if !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("NewEnv() error = %v, want INVALID_REQUEST", err)
	}
}

func TestRound2(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0.876, 0.88},
		{0.874, 0.87},
		{1, 1},
		{0, 0},
	}
	for _, tt := range tests {
		if got := round2(tt.in); got != tt.want {
			t.Errorf("round2(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

// fixedEmbedder returns preset vectors keyed by text.
type fixedEmbedder struct {
	dim     int
	vectors map[string][]float32
}

func (f fixedEmbedder) Dimension() int { return f.dim }

func (f fixedEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	v, ok := f.vectors[text]
	if !ok {
		return nil, fmt.Errorf("no vector for %q", text)
	}
	return v, nil
}

func (f fixedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := f.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
