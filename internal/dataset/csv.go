// Package dataset reads and writes the labeled CSV stores: the main
// labeled dataset and the pending auto-label log that merge folds into it.
package dataset

import (
	"bytes"
	"encoding/csv"
	stderrors "errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/hpungsan/sift/internal/errors"
	"github.com/hpungsan/sift/internal/fsutil"
)

// Column names.
const (
	ColText       = "text"
	ColLabel      = "label"
	ColConfidence = "confidence"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Record is one labeled example. Text is the uniqueness key, compared byte for byte.
type Record struct {
	Text       string   `json:"text"`
	Label      string   `json:"label"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// Valid reports whether the record can be used for training.
func (r Record) Valid() bool {
	return strings.TrimSpace(r.Text) != "" && strings.TrimSpace(r.Label) != ""
}

// Dataset is a parsed labeled CSV file.
type Dataset struct {
	// HasConfidence is true when the file carries a confidence column.
	HasConfidence bool
	Records       []Record
}

// Load reads the dataset at path.
// Missing file: FILE_NOT_FOUND. Unparsable content: CORRUPT_STORE.
func Load(path string) (*Dataset, error) {
	f, err := fsutil.OpenNoFollowRead(path)
	if err != nil {
		if _, ok := errors.As(err); ok {
			return nil, err
		}
		return nil, errors.NewInternal(fmt.Errorf("open %s: %w", path, err))
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, errors.NewInternal(fmt.Errorf("read %s: %w", path, err))
	}

	ds, err := Parse(data)
	if err != nil {
		return nil, errors.NewCorruptStore(path, err)
	}
	return ds, nil
}

// Parse decodes CSV content. An empty input is an empty dataset.
// The header must name text and label; confidence is optional; other
// columns are rejected rather than silently dropped on rewrite.
func Parse(data []byte) (*Dataset, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	ds := &Dataset{}
	if len(bytes.TrimSpace(data)) == 0 {
		return ds, nil
	}

	r := csv.NewReader(bytes.NewReader(data))
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	textIdx, labelIdx, confIdx := -1, -1, -1
	for i, col := range header {
		switch strings.TrimSpace(col) {
		case ColText:
			textIdx = i
		case ColLabel:
			labelIdx = i
		case ColConfidence:
			confIdx = i
		default:
			return nil, fmt.Errorf("unexpected column %q", col)
		}
	}
	if textIdx < 0 || labelIdx < 0 {
		return nil, fmt.Errorf("header must contain %q and %q columns, got %v", ColText, ColLabel, header)
	}
	ds.HasConfidence = confIdx >= 0
	r.FieldsPerRecord = len(header)

	for {
		row, err := r.Read()
		if stderrors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		rec := Record{Text: row[textIdx], Label: row[labelIdx]}
		if confIdx >= 0 && strings.TrimSpace(row[confIdx]) != "" {
			c, err := strconv.ParseFloat(strings.TrimSpace(row[confIdx]), 64)
			if err != nil {
				line, _ := r.FieldPos(confIdx)
				return nil, fmt.Errorf("line %d: invalid confidence %q", line, row[confIdx])
			}
			rec.Confidence = &c
		}
		ds.Records = append(ds.Records, rec)
	}
	return ds, nil
}

// Header returns the header line for a file with or without a confidence column.
func Header(withConfidence bool) []byte {
	if withConfidence {
		return []byte(ColText + "," + ColLabel + "," + ColConfidence + "\n")
	}
	return []byte(ColText + "," + ColLabel + "\n")
}

// NormalizeNewlines folds every CRLF into LF. The CSV reader drops the CR
// of a CRLF even inside quoted fields, so values are folded before writing
// and what is read back matches what was written byte for byte.
func NormalizeNewlines(s string) string {
	for strings.Contains(s, "\r\n") {
		s = strings.ReplaceAll(s, "\r\n", "\n")
	}
	return s
}

// EncodeRecord renders one CSV line. Text is always quoted with internal
// quotes doubled; the label is quoted only when it needs to be. CRLF in
// either field is stored as LF.
func EncodeRecord(rec Record, withConfidence bool) []byte {
	text, label := NormalizeNewlines(rec.Text), NormalizeNewlines(rec.Label)
	var b strings.Builder
	b.WriteString(quote(text))
	b.WriteByte(',')
	if strings.ContainsAny(label, ",\"\r\n") || strings.TrimSpace(label) != label {
		b.WriteString(quote(label))
	} else {
		b.WriteString(label)
	}
	if withConfidence {
		b.WriteByte(',')
		if rec.Confidence != nil {
			b.WriteString(strconv.FormatFloat(*rec.Confidence, 'f', -1, 64))
		}
	}
	b.WriteByte('\n')
	return []byte(b.String())
}

// Marshal renders the whole dataset, header included.
func (ds *Dataset) Marshal() []byte {
	var buf bytes.Buffer
	buf.Write(Header(ds.HasConfidence))
	for _, rec := range ds.Records {
		buf.Write(EncodeRecord(rec, ds.HasConfidence))
	}
	return buf.Bytes()
}

// Save replaces the file at path with the dataset in one atomic rename.
func (ds *Dataset) Save(path string) error {
	if err := fsutil.WriteFileAtomic(path, ds.Marshal(), 0600); err != nil {
		if _, ok := errors.As(err); ok {
			return err
		}
		return errors.NewInternal(fmt.Errorf("write %s: %w", path, err))
	}
	return nil
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
