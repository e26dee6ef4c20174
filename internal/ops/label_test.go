package ops

import (
	"context"
	"os"
	"testing"

	"github.com/hpungsan/sift/internal/config"
	"github.com/hpungsan/sift/internal/dataset"
	"github.com/hpungsan/sift/internal/errors"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
}

func float64Ptr(v float64) *float64 { return &v }

func pendingRecords(t *testing.T, env *Env) []dataset.Record {
	t.Helper()
	recs, err := env.Pending.Load()
	if errors.Is(err, errors.ErrFileNotFound) {
		return nil
	}
	if err != nil {
		t.Fatalf("Pending.Load() error = %v", err)
	}
	return recs
}

func TestLabel_Threshold(t *testing.T) {
	tests := []struct {
		name       string
		confidence float64
		want       bool
	}{
		{"above", 0.9, true},
		{"equal", 0.85, true},
		{"below", 0.84, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil)
			out, err := Label(context.Background(), env, LabelInput{
				Text:       "some text",
				Label:      "news",
				Confidence: float64Ptr(tt.confidence),
			})
			if err != nil {
				t.Fatalf("Label() error = %v", err)
			}
			if out.Persisted != tt.want {
				t.Errorf("Persisted = %v, want %v", out.Persisted, tt.want)
			}
			if got := len(pendingRecords(t, env)); (got == 1) != tt.want {
				t.Errorf("pending records = %d", got)
			}
		})
	}
}

func TestLabel_Manual(t *testing.T) {
	env := newTestEnv(t, nil)

	out, err := Label(context.Background(), env, LabelInput{Text: "x y z", Label: "misc", Manual: true})
	if err != nil {
		t.Fatalf("Label() error = %v", err)
	}
	if !out.Persisted || out.Confidence != 1 {
		t.Errorf("Label() = %+v, want persisted with confidence 1", out)
	}
}

func TestLabel_Validation(t *testing.T) {
	tests := []struct {
		name  string
		input LabelInput
	}{
		{"blank text", LabelInput{Text: " ", Label: "a", Manual: true}},
		{"manual without label", LabelInput{Text: "t", Manual: true}},
		{"missing confidence", LabelInput{Text: "t", Label: "a"}},
		{"confidence without label", LabelInput{Text: "t", Confidence: float64Ptr(0.9)}},
		{"confidence out of range", LabelInput{Text: "t", Label: "a", Confidence: float64Ptr(1.5)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil)
			_, err := Label(context.Background(), env, tt.input)
			if !errors.Is(err, errors.ErrInvalidRequest) {
				t.Errorf("Label() error = %v, want INVALID_REQUEST", err)
			}
		})
	}
}

func TestLabel_PredictsWhenLabelOmitted(t *testing.T) {
	env := trainedEnv(t, func(c *config.Config) { c.ConfidenceThreshold = 0.01 })

	out, err := Label(context.Background(), env, LabelInput{Text: "bake the bread with butter"})
	if err != nil {
		t.Fatalf("Label() error = %v", err)
	}
	if out.Label != "cooking" {
		t.Errorf("Label = %q, want cooking", out.Label)
	}
	if !out.Persisted {
		t.Error("Persisted = false, want true with a tiny threshold")
	}
}

func TestLabel_DegradedNeverPersists(t *testing.T) {
	env := newTestEnv(t, nil)

	out, err := Label(context.Background(), env, LabelInput{Text: "no model here"})
	if err != nil {
		t.Fatalf("Label() error = %v", err)
	}
	if !out.Degraded || out.Persisted {
		t.Errorf("Label() = %+v, want degraded and not persisted", out)
	}
}

func TestLabel_TruncatesText(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) { c.LabelChars = 5 })

	_, err := Label(context.Background(), env, LabelInput{Text: "abcdefghij", Label: "a", Manual: true})
	if err != nil {
		t.Fatalf("Label() error = %v", err)
	}
	recs := pendingRecords(t, env)
	if len(recs) != 1 || recs[0].Text != "abcde" {
		t.Errorf("pending = %+v, want one record with text abcde", recs)
	}
}
