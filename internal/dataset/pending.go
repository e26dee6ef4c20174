package dataset

import (
	"fmt"
	"strings"
	"sync"

	"github.com/hpungsan/sift/internal/errors"
	"github.com/hpungsan/sift/internal/fsutil"
)

// PendingStore is the append-only log of auto-labeled records awaiting merge.
// Appends never deduplicate; merge resolves duplicates.
type PendingStore struct {
	path string
	mu   sync.Mutex
}

// NewPendingStore returns a store backed by the CSV file at path.
func NewPendingStore(path string) *PendingStore {
	return &PendingStore{path: path}
}

// Path returns the backing file path.
func (p *PendingStore) Path() string {
	return p.path
}

// Append writes one (text, label) line. A missing or empty file gets the
// text,label header in the same write.
func (p *PendingStore) Append(text, label string) error {
	if strings.TrimSpace(text) == "" {
		return errors.NewInvalidRequest("text is required")
	}
	if strings.TrimSpace(label) == "" {
		return errors.NewInvalidRequest("label is required")
	}

	line := EncodeRecord(Record{Text: text, Label: label}, false)

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, err := fsutil.AppendRecord(p.path, Header(false), line, 0600); err != nil {
		if _, ok := errors.As(err); ok {
			return err
		}
		return errors.NewInternal(fmt.Errorf("append pending: %w", err))
	}
	return nil
}

// Load returns all pending records. A missing file is FILE_NOT_FOUND.
func (p *PendingStore) Load() ([]Record, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ds, err := Load(p.path)
	if err != nil {
		return nil, err
	}
	return ds.Records, nil
}
