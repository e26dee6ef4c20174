package memory

import (
	"context"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/hpungsan/sift/internal/errors"
	"github.com/hpungsan/sift/internal/fsutil"
)

const metaVersion = 1

// metaFile is the msgpack layout of the metadata artifact.
type metaFile struct {
	Version int        `msgpack:"version"`
	Dim     int        `msgpack:"dim"`
	Count   int        `msgpack:"count"`
	Entries []Metadata `msgpack:"entries"`
}

// FilePersister stores the index and the metadata list as two files, each
// replaced atomically. The pair is cross-checked on load.
type FilePersister struct {
	IndexPath string
	MetaPath  string
}

// NewFilePersister returns a persister for the given artifact paths.
func NewFilePersister(indexPath, metaPath string) *FilePersister {
	return &FilePersister{IndexPath: indexPath, MetaPath: metaPath}
}

// Load reads both artifacts. Neither present means nothing was saved.
// Only one present, a decode failure, or a count or dimension mismatch is
// CORRUPT_STORE; the caller never gets an empty store in that case.
func (p *FilePersister) Load(ctx context.Context) (*FlatL2, []Metadata, error) {
	hasIndex, err := fsutil.Exists(p.IndexPath)
	if err != nil {
		return nil, nil, errors.NewInternal(err)
	}
	hasMeta, err := fsutil.Exists(p.MetaPath)
	if err != nil {
		return nil, nil, errors.NewInternal(err)
	}

	switch {
	case !hasIndex && !hasMeta:
		return nil, nil, nil
	case !hasIndex:
		return nil, nil, errors.NewCorruptStore(p.IndexPath, fmt.Errorf("index missing but metadata present"))
	case !hasMeta:
		return nil, nil, errors.NewCorruptStore(p.MetaPath, fmt.Errorf("metadata missing but index present"))
	}

	if err := ctx.Err(); err != nil {
		return nil, nil, errors.NewCancelled("memory load")
	}

	var idx *FlatL2
	err = readFile(p.IndexPath, func(r io.Reader) error {
		var derr error
		idx, derr = DecodeFlatL2(r)
		return derr
	})
	if err != nil {
		return nil, nil, err
	}

	var mf metaFile
	err = readFile(p.MetaPath, func(r io.Reader) error {
		return msgpack.NewDecoder(r).Decode(&mf)
	})
	if err != nil {
		return nil, nil, err
	}

	switch {
	case mf.Version != metaVersion:
		return nil, nil, errors.NewCorruptStore(p.MetaPath, fmt.Errorf("unsupported metadata version %d", mf.Version))
	case mf.Count != len(mf.Entries):
		return nil, nil, errors.NewCorruptStore(p.MetaPath,
			fmt.Errorf("header count %d but %d entries", mf.Count, len(mf.Entries)))
	case mf.Count != idx.Len():
		return nil, nil, errors.NewCorruptStore(p.MetaPath,
			fmt.Errorf("metadata has %d entries but index has %d vectors", mf.Count, idx.Len()))
	case mf.Dim != idx.Dim():
		return nil, nil, errors.NewCorruptStore(p.MetaPath,
			fmt.Errorf("metadata dimension %d but index dimension %d", mf.Dim, idx.Dim()))
	}

	return idx, mf.Entries, nil
}

// Save writes the index, then the metadata. Each file is replaced
// atomically; a crash between the two is detected by Load as a count mismatch.
func (p *FilePersister) Save(ctx context.Context, idx *FlatL2, meta []Metadata) error {
	if idx.Len() != len(meta) {
		return errors.NewInternal(fmt.Errorf("index has %d vectors but metadata has %d entries", idx.Len(), len(meta)))
	}
	if err := ctx.Err(); err != nil {
		return errors.NewCancelled("memory save")
	}

	if err := fsutil.WriteAtomic(p.IndexPath, 0600, idx.Encode); err != nil {
		return wrapWriteError(err)
	}

	mf := metaFile{Version: metaVersion, Dim: idx.Dim(), Count: len(meta), Entries: meta}
	err := fsutil.WriteAtomic(p.MetaPath, 0600, func(w io.Writer) error {
		return msgpack.NewEncoder(w).Encode(&mf)
	})
	if err != nil {
		return wrapWriteError(err)
	}
	return nil
}

// readFile opens path without following symlinks and decodes it with fn.
// Decode errors become CORRUPT_STORE.
func readFile(path string, fn func(r io.Reader) error) error {
	f, err := fsutil.OpenNoFollowRead(path)
	if err != nil {
		if errors.Is(err, errors.ErrFileNotFound) {
			return errors.NewCorruptStore(path, err)
		}
		if _, ok := errors.As(err); ok {
			return err
		}
		return errors.NewInternal(err)
	}
	defer f.Close()

	if err := fn(f); err != nil {
		return errors.NewCorruptStore(path, err)
	}
	return nil
}

func wrapWriteError(err error) error {
	if _, ok := errors.As(err); ok {
		return err
	}
	return errors.NewInternal(fmt.Errorf("save memory: %w", err))
}
