package memory

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/sift/internal/db"
	"github.com/hpungsan/sift/internal/errors"
)

func newFileStore(t *testing.T, dir string, dim int) (*Store, *FilePersister) {
	t.Helper()
	p := NewFilePersister(filepath.Join(dir, "memory.index"), filepath.Join(dir, "memory.meta"))
	s, err := Open(context.Background(), dim, p)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return s, p
}

func addAll(t *testing.T, s *Store, vectors [][]float32) {
	t.Helper()
	for i, v := range vectors {
		_, err := s.Add(v, Metadata{
			TextSnippet:       fmt.Sprintf("doc %d", i+1),
			PredictedCategory: fmt.Sprintf("cat%d", i%2),
			Confidence:        0.5,
		})
		if err != nil {
			t.Fatalf("Add(%d) error = %v", i, err)
		}
	}
}

func TestStore_EndToEndOrdering(t *testing.T) {
	s, err := New(4, nil)
	require.NoError(t, err)

	addAll(t, s, [][]float32{
		{1, 0, 0, 0},
		{0, 1, 0, 0},
		{0.9, 0.1, 0, 0},
	})

	hits, err := s.Query([]float32{1, 0, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	require.Equal(t, "doc 1", hits[0].Metadata.TextSnippet)
	require.Equal(t, "doc 3", hits[1].Metadata.TextSnippet)

	all, err := s.Query([]float32{1, 0, 0, 0}, 3)
	require.NoError(t, err)
	require.Equal(t, "doc 2", all[2].Metadata.TextSnippet)
}

func TestStore_QueryKLargerThanN(t *testing.T) {
	s, err := New(2, nil)
	require.NoError(t, err)
	addAll(t, s, [][]float32{{0, 3}, {0, 1}, {0, 2}})

	for _, k := range []int{4, 10, 1 << 62, math.MaxInt} {
		hits, err := s.Query([]float32{0, 0}, k)
		require.NoError(t, err, "k=%d", k)
		require.Len(t, hits, 3, "k=%d", k)
		for i := 1; i < len(hits); i++ {
			if hits[i].Distance < hits[i-1].Distance {
				t.Errorf("k=%d: distances not ascending: %v then %v", k, hits[i-1].Distance, hits[i].Distance)
			}
			if hits[i].Position < 0 {
				t.Errorf("k=%d: hit %d has sentinel position", k, i)
			}
		}
	}
}

func TestStore_ExtraIsolatedFromCaller(t *testing.T) {
	s, err := New(2, nil)
	require.NoError(t, err)

	extra := map[string]string{"source": "ingest"}
	added, err := s.Add([]float32{1, 0}, Metadata{TextSnippet: "a", Extra: extra})
	require.NoError(t, err)

	extra["source"] = "mutated"
	extra["new"] = "x"
	added.Extra["source"] = "also mutated"

	got, err := s.Entry(0)
	require.NoError(t, err)
	require.Equal(t, map[string]string{"source": "ingest"}, got.Extra)

	hits, err := s.Query([]float32{1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	hits[0].Metadata.Extra["source"] = "from hit"

	got, err = s.Entry(0)
	require.NoError(t, err)
	require.Equal(t, "ingest", got.Extra["source"])
}

func TestStore_QueryEmptyAndNonPositiveK(t *testing.T) {
	s, err := New(2, nil)
	require.NoError(t, err)

	hits, err := s.Query([]float32{1, 1}, 3)
	require.NoError(t, err)
	require.Empty(t, hits)

	addAll(t, s, [][]float32{{1, 1}})
	hits, err = s.Query([]float32{1, 1}, 0)
	require.NoError(t, err)
	require.Empty(t, hits)
}

func TestStore_AddRejectsMalformedVector(t *testing.T) {
	s, err := New(3, nil)
	require.NoError(t, err)

	tests := []struct {
		name string
		vec  []float32
	}{
		{"short", []float32{1, 2}},
		{"long", []float32{1, 2, 3, 4}},
		{"nan", []float32{1, float32(math.NaN()), 0}},
		{"inf", []float32{float32(math.Inf(-1)), 0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Add(tt.vec, Metadata{TextSnippet: "x"})
			if !errors.Is(err, errors.ErrMalformedVector) {
				t.Errorf("Add() error = %v, want MALFORMED_VECTOR", err)
			}
			if s.Len() != 0 {
				t.Errorf("Len() = %d after rejected add, want 0", s.Len())
			}
		})
	}

	if _, err := s.Query([]float32{1}, 1); !errors.Is(err, errors.ErrMalformedVector) {
		t.Errorf("Query() error = %v, want MALFORMED_VECTOR", err)
	}
}

func TestStore_AddAssignsIDAndTime(t *testing.T) {
	s, err := New(1, nil)
	require.NoError(t, err)

	a, err := s.Add([]float32{1}, Metadata{TextSnippet: "a"})
	require.NoError(t, err)
	b, err := s.Add([]float32{2}, Metadata{TextSnippet: "b"})
	require.NoError(t, err)

	require.Len(t, a.ID, 26)
	require.NotEqual(t, a.ID, b.ID)
	require.Less(t, a.ID, b.ID, "monotonic ULIDs sort by insertion")
	require.NotZero(t, a.AddedAt)

	kept, err := s.Add([]float32{3}, Metadata{ID: "fixed", AddedAt: 42})
	require.NoError(t, err)
	require.Equal(t, "fixed", kept.ID)
	require.Equal(t, int64(42), kept.AddedAt)
}

func TestStore_FileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, _ := newFileStore(t, dir, 4)
	addAll(t, s, [][]float32{
		{1, 0, 0, 0},
		{0, 1, 0, 0},
		{0.9, 0.1, 0, 0},
	})
	_, err := s.Add([]float32{0, 0, 1, 0}, Metadata{
		URL:               "https://example.com/a",
		TextSnippet:       "with extra",
		PredictedCategory: "science",
		Confidence:        0.91,
		Extra:             map[string]string{"source": "ingest"},
	})
	require.NoError(t, err)

	query := []float32{0.95, 0.05, 0, 0}
	before, err := s.Query(query, 1)
	require.NoError(t, err)
	require.NoError(t, s.Save(context.Background()))

	reopened, _ := newFileStore(t, dir, 4)
	require.Equal(t, s.Len(), reopened.Len())

	after, err := reopened.Query(query, 1)
	require.NoError(t, err)
	require.Equal(t, before, after)

	last, err := reopened.Entry(3)
	require.NoError(t, err)
	require.Equal(t, "https://example.com/a", last.URL)
	require.Equal(t, "ingest", last.Extra["source"])
}

func TestStore_OpenMissingIsEmpty(t *testing.T) {
	s, _ := newFileStore(t, t.TempDir(), 4)
	require.Equal(t, 0, s.Len())
}

func TestStore_OpenDimensionMismatch(t *testing.T) {
	dir := t.TempDir()
	s, p := newFileStore(t, dir, 2)
	addAll(t, s, [][]float32{{1, 2}})
	require.NoError(t, s.Save(context.Background()))

	_, err := Open(context.Background(), 3, p)
	if !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("Open() error = %v, want INVALID_REQUEST", err)
	}
}

func TestFilePersister_Corrupt(t *testing.T) {
	seed := func(t *testing.T) (string, *FilePersister) {
		dir := t.TempDir()
		s, p := newFileStore(t, dir, 2)
		addAll(t, s, [][]float32{{1, 2}, {3, 4}})
		require.NoError(t, s.Save(context.Background()))
		return dir, p
	}

	tests := []struct {
		name   string
		mutate func(t *testing.T, p *FilePersister)
	}{
		{"index missing", func(t *testing.T, p *FilePersister) {
			require.NoError(t, os.Remove(p.IndexPath))
		}},
		{"metadata missing", func(t *testing.T, p *FilePersister) {
			require.NoError(t, os.Remove(p.MetaPath))
		}},
		{"index garbage", func(t *testing.T, p *FilePersister) {
			require.NoError(t, os.WriteFile(p.IndexPath, []byte("not an index"), 0600))
		}},
		{"metadata garbage", func(t *testing.T, p *FilePersister) {
			require.NoError(t, os.WriteFile(p.MetaPath, []byte{0xc1, 0xc1}, 0600))
		}},
		{"count mismatch", func(t *testing.T, p *FilePersister) {
			idx := NewFlatL2(2)
			idx.Add([]float32{1, 2})
			f, err := os.Create(p.IndexPath)
			require.NoError(t, err)
			require.NoError(t, idx.Encode(f))
			require.NoError(t, f.Close())
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, p := seed(t)
			tt.mutate(t, p)

			_, err := Open(context.Background(), 2, p)
			if !errors.Is(err, errors.ErrCorruptStore) {
				t.Errorf("Open() error = %v, want CORRUPT_STORE", err)
			}
		})
	}
}

func TestStore_ConcurrentAddQuery(t *testing.T) {
	s, err := New(2, nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				if _, err := s.Add([]float32{float32(w), float32(i)}, Metadata{TextSnippet: "x"}); err != nil {
					t.Errorf("Add() error = %v", err)
					return
				}
				if _, err := s.Query([]float32{0, 0}, 3); err != nil {
					t.Errorf("Query() error = %v", err)
					return
				}
			}
		}(w)
	}
	wg.Wait()

	require.Equal(t, 200, s.Len())
	hits, err := s.Query([]float32{0, 0}, 200)
	require.NoError(t, err)
	seen := make(map[string]bool)
	for _, h := range hits {
		require.False(t, seen[h.Metadata.ID], "duplicate id %s", h.Metadata.ID)
		seen[h.Metadata.ID] = true
	}
}

func TestStore_SQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	conn, err := db.Init(t.TempDir())
	require.NoError(t, err)
	defer conn.Close()

	p := NewSQLitePersister(conn)
	s, err := Open(ctx, 4, p)
	require.NoError(t, err)
	require.Equal(t, 0, s.Len())

	addAll(t, s, [][]float32{
		{1, 0, 0, 0},
		{0, 1, 0, 0},
		{0.9, 0.1, 0, 0},
	})
	_, err = s.Add([]float32{0, 0, 0, 1}, Metadata{TextSnippet: "tagged", Extra: map[string]string{"k": "v"}})
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx))

	reopened, err := Open(ctx, 4, p)
	require.NoError(t, err)
	require.Equal(t, 4, reopened.Len())

	hits, err := reopened.Query([]float32{1, 0, 0, 0}, 2)
	require.NoError(t, err)
	require.Equal(t, "doc 1", hits[0].Metadata.TextSnippet)
	require.Equal(t, "doc 3", hits[1].Metadata.TextSnippet)

	tagged, err := reopened.Entry(3)
	require.NoError(t, err)
	require.Equal(t, "v", tagged.Extra["k"])

	_, err = Open(ctx, 8, p)
	require.True(t, errors.Is(err, errors.ErrInvalidRequest), "dimension mismatch: %v", err)
}

func TestStore_Categories(t *testing.T) {
	s, err := New(1, nil)
	require.NoError(t, err)
	for _, c := range []string{"b", "a", "b", "c", "a", "b"} {
		_, err := s.Add([]float32{1}, Metadata{PredictedCategory: c})
		require.NoError(t, err)
	}

	got := s.Categories()
	want := []CategoryCount{{"b", 3}, {"a", 2}, {"c", 1}}
	require.Equal(t, want, got)
}
