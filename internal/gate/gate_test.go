package gate

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/sift/internal/dataset"
	"github.com/hpungsan/sift/internal/errors"
)

func newGate(t *testing.T, threshold float64) (*Gate, *dataset.PendingStore) {
	t.Helper()
	pending := dataset.NewPendingStore(filepath.Join(t.TempDir(), "auto_labeled_data.csv"))
	g, err := New(threshold, pending, nil)
	require.NoError(t, err)
	return g, pending
}

func TestNew_RejectsBadThreshold(t *testing.T) {
	pending := dataset.NewPendingStore(filepath.Join(t.TempDir(), "p.csv"))
	for _, th := range []float64{-0.01, 1.01, math.NaN()} {
		_, err := New(th, pending, nil)
		require.True(t, errors.Is(err, errors.ErrInvalidRequest), "threshold %v: error = %v", th, err)
	}
	for _, th := range []float64{0, 0.5, 1} {
		_, err := New(th, pending, nil)
		require.NoError(t, err, "threshold %v", th)
	}
}

func TestMaybeLabel_ThresholdInclusive(t *testing.T) {
	tests := []struct {
		name       string
		threshold  float64
		confidence float64
		want       bool
	}{
		{"above", 0.85, 0.9, true},
		{"exactly at threshold", 0.85, 0.85, true},
		{"just below", 0.85, 0.8499999, false},
		{"zero confidence", 0.85, 0, false},
		{"threshold one, confidence one", 1, 1, true},
		{"threshold zero accepts zero", 0, 0, true},
		{"nan never persists", 0, math.NaN(), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, pending := newGate(t, tt.threshold)

			got, err := g.MaybeLabel(context.Background(), "some text", "label", tt.confidence)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)

			recs, err := pending.Load()
			if tt.want {
				require.NoError(t, err)
				require.Len(t, recs, 1)
			} else {
				require.True(t, errors.Is(err, errors.ErrFileNotFound), "nothing should be written; error = %v", err)
			}
		})
	}
}

func TestMaybeLabel_RejectsBlankText(t *testing.T) {
	g, pending := newGate(t, 0.5)

	_, err := g.MaybeLabel(context.Background(), "   ", "label", 0.99)
	require.True(t, errors.Is(err, errors.ErrInvalidRequest), "error = %v", err)

	_, err = os.Stat(pending.Path())
	require.True(t, os.IsNotExist(err))
}

func TestMaybeLabel_NoDedupAtAppend(t *testing.T) {
	g, pending := newGate(t, 0.5)
	for i := 0; i < 3; i++ {
		ok, err := g.MaybeLabel(context.Background(), "same text", "label", 0.9)
		require.NoError(t, err)
		require.True(t, ok)
	}

	recs, err := pending.Load()
	require.NoError(t, err)
	require.Len(t, recs, 3)
}

func TestMaybeLabel_QuotesSurviveParsing(t *testing.T) {
	g, pending := newGate(t, 0.5)
	text := `He said "ship it", twice.` + "\n" + `"Quoted line"`

	ok, err := g.MaybeLabel(context.Background(), text, "dialogue", 0.95)
	require.NoError(t, err)
	require.True(t, ok)

	recs, err := pending.Load()
	require.NoError(t, err)
	require.Equal(t, text, recs[0].Text)
}

func TestForce(t *testing.T) {
	g, pending := newGate(t, 1)

	require.NoError(t, g.Force(context.Background(), "curated", "label"))

	recs, err := pending.Load()
	require.NoError(t, err)
	require.Equal(t, []dataset.Record{{Text: "curated", Label: "label"}}, recs)
}
