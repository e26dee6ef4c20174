package ops

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/sift/internal/errors"
)

func TestTrain_NoDataset(t *testing.T) {
	env := newTestEnv(t, nil)

	_, err := Train(context.Background(), env, TrainInput{})
	if !errors.Is(err, errors.ErrInsufficientData) {
		t.Errorf("Train() error = %v, want INSUFFICIENT_DATA", err)
	}
}

func TestTrain_TooFewExamples(t *testing.T) {
	env := newTestEnv(t, nil)
	writeFile(t, env.Paths.LabeledData, "text,label\n\"a b\",x\n\"c d\",y\n")

	_, err := Train(context.Background(), env, TrainInput{})
	if !errors.Is(err, errors.ErrInsufficientData) {
		t.Errorf("Train() error = %v, want INSUFFICIENT_DATA", err)
	}
}

func TestTrain_CorruptDataset(t *testing.T) {
	env := newTestEnv(t, nil)
	writeFile(t, env.Paths.LabeledData, "wrong,header\n1,2\n")

	_, err := Train(context.Background(), env, TrainInput{})
	if !errors.Is(err, errors.ErrCorruptStore) {
		t.Errorf("Train() error = %v, want CORRUPT_STORE", err)
	}
}

func TestTrain_ReportAndReload(t *testing.T) {
	env := newTestEnv(t, nil)
	writeDataset(t, env)
	require.False(t, env.Scorer.Ready())

	out, err := Train(context.Background(), env, TrainInput{})
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"sports", "cooking"}, out.Classes)
	require.Equal(t, 12, out.Report.Examples)
	require.Equal(t, 8, out.Report.TrainSize)
	require.Equal(t, 4, out.Report.TestSize)
	require.True(t, out.Report.Stratified)
	require.NotEmpty(t, out.Report.Best)
	require.Equal(t, env.Paths.Model, out.ModelPath)
	require.True(t, env.Scorer.Ready())
}
