package ops

import (
	"context"
	"testing"

	"github.com/hpungsan/sift/internal/errors"
	"github.com/hpungsan/sift/internal/scorer"
)

func TestScore_DegradedWithoutModel(t *testing.T) {
	env := newTestEnv(t, nil)

	out, err := Score(context.Background(), env, ScoreInput{Text: "anything", Top: 3})
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if out.Label != scorer.UnknownLabel || out.Confidence != 0 || !out.Degraded {
		t.Errorf("Score() = %+v, want unknown/0 degraded", out)
	}
	if len(out.Top) != 0 {
		t.Errorf("Top = %v, want empty", out.Top)
	}
}

func TestScore_BlankText(t *testing.T) {
	env := newTestEnv(t, nil)

	_, err := Score(context.Background(), env, ScoreInput{Text: "   "})
	if !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("Score() error = %v, want INVALID_REQUEST", err)
	}
}

func TestScore_AfterTraining(t *testing.T) {
	env := trainedEnv(t, nil)

	out, err := Score(context.Background(), env, ScoreInput{Text: "the striker scored a goal", Top: 5})
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if out.Degraded {
		t.Fatal("Degraded = true after training")
	}
	if out.Label != "sports" {
		t.Errorf("Label = %q, want sports", out.Label)
	}
	if out.Confidence <= 0 || out.Confidence > 1 {
		t.Errorf("Confidence = %v, want in (0, 1]", out.Confidence)
	}
	if len(out.Top) != 2 {
		t.Fatalf("len(Top) = %d, want 2 classes", len(out.Top))
	}
	if out.Top[0].Label != out.Label || out.Top[0].Confidence < out.Top[1].Confidence {
		t.Errorf("Top = %+v, want descending with %q first", out.Top, out.Label)
	}
}

func TestScore_CorruptModelSurfaces(t *testing.T) {
	env := newTestEnv(t, nil)
	writeFile(t, env.Paths.Model, "garbage")

	_, err := Score(context.Background(), env, ScoreInput{Text: "hello"})
	if !errors.Is(err, errors.ErrCorruptStore) {
		t.Errorf("Score() error = %v, want CORRUPT_STORE", err)
	}
}
