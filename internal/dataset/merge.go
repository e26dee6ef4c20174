package dataset

import (
	"context"
	"fmt"

	"github.com/hpungsan/sift/internal/errors"
	"github.com/hpungsan/sift/internal/fsutil"
	"github.com/hpungsan/sift/internal/logging"
)

// MergeStatus describes what Merge did.
type MergeStatus string

const (
	StatusNoPending           MergeStatus = "no_pending"
	StatusEmptyPendingRemoved MergeStatus = "empty_pending_removed"
	StatusMerged              MergeStatus = "merged"
)

// MergeResult reports the outcome of a merge.
type MergeResult struct {
	Status     MergeStatus `json:"status"`
	Existing   int         `json:"existing"`
	Pending    int         `json:"pending"`
	Total      int         `json:"total"`
	Replaced   int         `json:"replaced"`
	Duplicates int         `json:"duplicates"`
}

// Merge folds the pending store into the main dataset.
//
// Rows are concatenated main first, then deduplicated by exact text keeping
// the last occurrence, so a pending label overrides an existing one. The new
// main file is written atomically and only then is the pending file removed.
// A corrupt file on either side aborts before anything is written.
func Merge(ctx context.Context, mainPath string, pending *PendingStore) (*MergeResult, error) {
	logger := logging.From(ctx)

	// Appends wait until the pending file is merged and removed.
	pending.mu.Lock()
	defer pending.mu.Unlock()

	pendingDS, err := Load(pending.path)
	if err != nil {
		if errors.Is(err, errors.ErrFileNotFound) {
			return &MergeResult{Status: StatusNoPending}, nil
		}
		return nil, err
	}
	pendingRecords := pendingDS.Records

	if len(pendingRecords) == 0 {
		if err := fsutil.RemoveIfExists(pending.path); err != nil {
			return nil, errors.NewInternal(fmt.Errorf("remove empty pending file: %w", err))
		}
		logger.Info("removed empty pending file", "path", pending.path)
		return &MergeResult{Status: StatusEmptyPendingRemoved}, nil
	}

	main, err := Load(mainPath)
	if err != nil {
		if !errors.Is(err, errors.ErrFileNotFound) {
			return nil, err
		}
		main = &Dataset{}
	}

	if err := ctx.Err(); err != nil {
		return nil, errors.NewCancelled("merge")
	}

	existing := make(map[string]bool, len(main.Records))
	for _, r := range main.Records {
		existing[r.Text] = true
	}

	combined := make([]Record, 0, len(main.Records)+len(pendingRecords))
	combined = append(combined, main.Records...)
	combined = append(combined, pendingRecords...)
	deduped := DedupLast(combined)

	replaced := 0
	seen := make(map[string]bool, len(pendingRecords))
	for _, r := range pendingRecords {
		if existing[r.Text] && !seen[r.Text] {
			replaced++
		}
		seen[r.Text] = true
	}

	out := &Dataset{HasConfidence: main.HasConfidence, Records: deduped}
	if err := out.Save(mainPath); err != nil {
		return nil, err
	}

	if err := fsutil.RemoveIfExists(pending.path); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("remove merged pending file: %w", err))
	}

	result := &MergeResult{
		Status:     StatusMerged,
		Existing:   len(main.Records),
		Pending:    len(pendingRecords),
		Total:      len(deduped),
		Replaced:   replaced,
		Duplicates: len(combined) - len(deduped),
	}
	logger.Info("merged pending labels",
		"existing", result.Existing,
		"pending", result.Pending,
		"total", result.Total,
		"replaced", result.Replaced,
	)
	return result, nil
}

// DedupLast drops every record whose text appears again later in the slice.
// Survivors keep their relative order.
func DedupLast(records []Record) []Record {
	last := make(map[string]int, len(records))
	for i, r := range records {
		last[r.Text] = i
	}
	out := make([]Record, 0, len(last))
	for i, r := range records {
		if last[r.Text] == i {
			out = append(out, r)
		}
	}
	return out
}
