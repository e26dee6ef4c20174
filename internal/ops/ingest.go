package ops

import (
	"context"
	"io"
	"path/filepath"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/hpungsan/sift/internal/errors"
	"github.com/hpungsan/sift/internal/fsutil"
	"github.com/hpungsan/sift/internal/logging"
	"github.com/hpungsan/sift/internal/textutil"
)

// IngestInput contains parameters for the Ingest operation.
type IngestInput struct {
	Paths []string
}

// IngestItem reports what happened to one path.
type IngestItem struct {
	Path       string  `json:"path"`
	ID         string  `json:"id,omitempty"`
	Label      string  `json:"label,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	Reason     string  `json:"reason,omitempty"`
	Error      string  `json:"error,omitempty"`
}

// IngestOutput contains the result of the Ingest operation.
type IngestOutput struct {
	Learned   []IngestItem `json:"learned"`
	Skipped   []IngestItem `json:"skipped"`
	Failed    []IngestItem `json:"failed"`
	Cancelled bool         `json:"cancelled,omitempty"`
}

// Ingest learns local .txt and .md files one at a time. Markdown is reduced
// to plain text first. A failing path is reported and the rest continue.
// Cancellation stops between files; everything learned so far is saved.
func Ingest(ctx context.Context, env *Env, input IngestInput) (out *IngestOutput, err error) {
	ctx, span := startSpan(ctx, "Ingest", attribute.Int("paths", len(input.Paths)))
	defer func() { endSpan(span, err) }()

	if len(input.Paths) == 0 {
		return nil, errors.NewInvalidRequest("at least one path is required")
	}

	logger := logging.From(ctx)
	out = &IngestOutput{Learned: []IngestItem{}, Skipped: []IngestItem{}, Failed: []IngestItem{}}

	for _, path := range input.Paths {
		if ctx.Err() != nil {
			out.Cancelled = true
			logger.Warn("ingest cancelled", "learned", len(out.Learned), "remaining_from", path)
			break
		}

		abs, text, err := readIngestFile(path)
		if err != nil {
			out.Failed = append(out.Failed, IngestItem{Path: path, Error: err.Error()})
			logger.Debug("ingest failed", "path", path, "error", err)
			continue
		}
		if textutil.IsBlank(text) {
			out.Skipped = append(out.Skipped, IngestItem{Path: path, Reason: "empty"})
			continue
		}
		if textutil.CountChars(text) < env.Config.MinIngestChars {
			out.Skipped = append(out.Skipped, IngestItem{Path: path, Reason: "too short"})
			continue
		}

		learned, err := Learn(ctx, env, LearnInput{Text: text, URL: "file://" + filepath.ToSlash(abs)})
		if err != nil {
			if errors.Is(err, errors.ErrCancelled) {
				out.Cancelled = true
				break
			}
			out.Failed = append(out.Failed, IngestItem{Path: path, Error: err.Error()})
			logger.Debug("ingest failed", "path", path, "error", err)
			continue
		}
		out.Learned = append(out.Learned, IngestItem{
			Path:       path,
			ID:         learned.ID,
			Label:      learned.Label,
			Confidence: learned.Confidence,
		})
	}

	logger.Info("ingest finished",
		"learned", len(out.Learned),
		"skipped", len(out.Skipped),
		"failed", len(out.Failed),
	)
	return out, nil
}

// readIngestFile validates path and returns its absolute form and text content.
func readIngestFile(path string) (string, string, error) {
	abs, markdown, err := ValidateIngestPath(path)
	if err != nil {
		return "", "", err
	}

	f, err := fsutil.OpenNoFollowRead(abs)
	if err != nil {
		return "", "", err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxIngestBytes+1))
	if err != nil {
		return "", "", errors.NewInternal(err)
	}
	if len(data) > MaxIngestBytes {
		return "", "", errors.NewInvalidRequest("file grew past the size limit while reading: " + path)
	}

	if markdown {
		return abs, textutil.FromMarkdown(data), nil
	}
	return abs, strings.TrimSpace(string(data)), nil
}
