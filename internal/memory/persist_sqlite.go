package memory

import (
	"context"
	"database/sql"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/hpungsan/sift/internal/db"
	"github.com/hpungsan/sift/internal/errors"
)

// SQLitePersister keeps vectors and metadata in the same rows, so a save
// replaces both inside one transaction.
type SQLitePersister struct {
	db *sql.DB
}

// NewSQLitePersister returns a persister over an initialized database (see db.Init).
func NewSQLitePersister(conn *sql.DB) *SQLitePersister {
	return &SQLitePersister{db: conn}
}

// Load reads every row. A database that was never saved to yields a nil index.
func (p *SQLitePersister) Load(ctx context.Context) (*FlatL2, []Metadata, error) {
	dim, rows, found, err := db.LoadMemory(ctx, p.db)
	if err != nil {
		return nil, nil, err
	}
	if !found {
		return nil, nil, nil
	}

	idx := NewFlatL2(dim)
	meta := make([]Metadata, 0, len(rows))
	for _, r := range rows {
		m := Metadata{
			ID:                r.ID,
			URL:               r.URL,
			TextSnippet:       r.TextSnippet,
			PredictedCategory: r.PredictedCategory,
			Confidence:        r.Confidence,
			AddedAt:           r.AddedAt,
		}
		if len(r.Extra) > 0 {
			if err := msgpack.Unmarshal(r.Extra, &m.Extra); err != nil {
				return nil, nil, errors.NewCorruptStore(db.FileName, err)
			}
		}
		idx.Add(r.Vector)
		meta = append(meta, m)
	}
	return idx, meta, nil
}

// Save replaces all rows in one transaction.
func (p *SQLitePersister) Save(ctx context.Context, idx *FlatL2, meta []Metadata) error {
	rows := make([]db.MemoryRow, len(meta))
	for i, m := range meta {
		var extra []byte
		if len(m.Extra) > 0 {
			b, err := msgpack.Marshal(m.Extra)
			if err != nil {
				return errors.NewInternal(err)
			}
			extra = b
		}
		rows[i] = db.MemoryRow{
			Position:          i,
			ID:                m.ID,
			Vector:            idx.Vector(i),
			URL:               m.URL,
			TextSnippet:       m.TextSnippet,
			PredictedCategory: m.PredictedCategory,
			Confidence:        m.Confidence,
			AddedAt:           m.AddedAt,
			Extra:             extra,
		}
	}
	return db.ReplaceMemory(ctx, p.db, idx.Dim(), rows)
}
