package db

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/hpungsan/sift/internal/errors"
)

// MemoryRow is one persisted memory entry: a vector and its metadata columns.
type MemoryRow struct {
	Position          int
	ID                string
	Vector            []float32
	URL               string // stored as NULL when empty
	TextSnippet       string
	PredictedCategory string
	Confidence        float64
	AddedAt           int64
	Extra             []byte // msgpack-encoded, nil when empty
}

// EncodeVector encodes a float32 vector as a little-endian blob.
func EncodeVector(vec []float32) []byte {
	b := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(v))
	}
	return b
}

// DecodeVector decodes a blob produced by EncodeVector.
func DecodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("invalid vector blob length %d (not multiple of 4)", len(b))
	}
	vec := make([]float32, len(b)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return vec, nil
}

// ReplaceMemory rewrites the whole memory table inside one transaction.
// Either every row lands or none does.
func ReplaceMemory(ctx context.Context, db *sql.DB, dim int, rows []MemoryRow) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewInternal(err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, `DELETE FROM memory_entries`); err != nil {
		return errors.NewInternal(err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO memory_info (id, dimension, updated_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET dimension = excluded.dimension, updated_at = excluded.updated_at
	`, dim, time.Now().Unix())
	if err != nil {
		return errors.NewInternal(err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO memory_entries (
			position, id, vector, url, text_snippet,
			predicted_category, confidence, added_at, extra
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return errors.NewInternal(err)
	}
	defer stmt.Close()

	for _, r := range rows {
		if len(r.Vector) != dim {
			return errors.NewMalformedVector("vector dimension mismatch",
				map[string]any{"position": r.Position, "want": dim, "got": len(r.Vector)})
		}
		_, err := stmt.ExecContext(ctx,
			r.Position, r.ID, EncodeVector(r.Vector), toNullString(r.URL), r.TextSnippet,
			r.PredictedCategory, r.Confidence, r.AddedAt, r.Extra,
		)
		if err != nil {
			return errors.NewInternal(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// LoadMemory reads the stored dimension and every row ordered by position.
// found is false when nothing has ever been saved.
// Gaps in positions or undecodable vectors are reported as CORRUPT_STORE.
func LoadMemory(ctx context.Context, db *sql.DB) (dim int, rows []MemoryRow, found bool, err error) {
	err = db.QueryRowContext(ctx, `SELECT dimension FROM memory_info WHERE id = 1`).Scan(&dim)
	if err == sql.ErrNoRows {
		return 0, nil, false, nil
	}
	if err != nil {
		return 0, nil, false, errors.NewInternal(err)
	}

	result, err := db.QueryContext(ctx, `
		SELECT position, id, vector, url, text_snippet,
			predicted_category, confidence, added_at, extra
		FROM memory_entries
		ORDER BY position
	`)
	if err != nil {
		return 0, nil, false, errors.NewInternal(err)
	}
	defer result.Close()

	for result.Next() {
		var (
			r    MemoryRow
			blob []byte
			url  sql.NullString
		)
		if err := result.Scan(&r.Position, &r.ID, &blob, &url, &r.TextSnippet,
			&r.PredictedCategory, &r.Confidence, &r.AddedAt, &r.Extra); err != nil {
			return 0, nil, false, errors.NewInternal(err)
		}
		if r.Position != len(rows) {
			return 0, nil, false, errors.NewCorruptStore(FileName,
				fmt.Errorf("position gap: want %d, got %d", len(rows), r.Position))
		}
		if r.Vector, err = DecodeVector(blob); err != nil {
			return 0, nil, false, errors.NewCorruptStore(FileName, err)
		}
		if len(r.Vector) != dim {
			return 0, nil, false, errors.NewCorruptStore(FileName,
				fmt.Errorf("row %d has dimension %d, want %d", r.Position, len(r.Vector), dim))
		}
		r.URL = url.String
		rows = append(rows, r)
	}
	if err := result.Err(); err != nil {
		return 0, nil, false, errors.NewInternal(err)
	}

	return dim, rows, true, nil
}

// CountMemory returns the number of stored entries.
func CountMemory(ctx context.Context, db *sql.DB) (int, error) {
	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memory_entries`).Scan(&n); err != nil {
		return 0, errors.NewInternal(err)
	}
	return n, nil
}

// toNullString maps the empty string to NULL.
func toNullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
