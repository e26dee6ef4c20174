package memory

import (
	"bufio"
	"cmp"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"slices"
)

// Binary format magic and version for FlatL2 serialization.
var flatMagic = [4]byte{'S', 'F', 'L', '2'}

const flatVersion uint32 = 1

// maxDim bounds the dimension accepted when decoding, so a corrupt header
// cannot force a huge allocation.
const maxDim = 1 << 16

// FlatL2 is an exact nearest-neighbour index over squared L2 distance.
// Vectors are stored contiguously; position i is the i-th added vector.
// FlatL2 is not safe for concurrent use; Store guards it.
type FlatL2 struct {
	dim  int
	data []float32
}

// NewFlatL2 returns an empty index for vectors of length dim.
func NewFlatL2(dim int) *FlatL2 {
	return &FlatL2{dim: dim}
}

// Dim returns the vector dimension.
func (f *FlatL2) Dim() int { return f.dim }

// Len returns the number of stored vectors (ntotal).
func (f *FlatL2) Len() int {
	if f.dim == 0 {
		return 0
	}
	return len(f.data) / f.dim
}

// Add appends vec. The caller has checked len(vec) == Dim().
func (f *FlatL2) Add(vec []float32) {
	f.data = append(f.data, vec...)
}

// Vector returns the stored vector at position i. The slice aliases the index.
func (f *FlatL2) Vector(i int) []float32 {
	return f.data[i*f.dim : (i+1)*f.dim]
}

// Search returns the k nearest positions and their squared L2 distances,
// nearest first. Equal distances keep insertion order. When fewer than k
// vectors exist the tail is padded with position -1 and +Inf distance.
func (f *FlatL2) Search(q []float32, k int) ([]int, []float32) {
	if k <= 0 {
		return nil, nil
	}

	n := f.Len()
	order := make([]int, n)
	dist := make([]float32, n)
	for i := 0; i < n; i++ {
		order[i] = i
		dist[i] = squaredL2(q, f.Vector(i))
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return cmp.Compare(dist[a], dist[b])
	})

	positions := make([]int, k)
	distances := make([]float32, k)
	for i := 0; i < k; i++ {
		if i < n {
			positions[i] = order[i]
			distances[i] = dist[order[i]]
			continue
		}
		positions[i] = -1
		distances[i] = float32(math.Inf(1))
	}
	return positions, distances
}

func squaredL2(a, b []float32) float32 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return float32(sum)
}

// Encode writes the index to w.
//
// Format:
//
//	[4B magic "SFL2"] [4B version] [4B dim] [8B count]
//	[count × dim × 4B float32]
//
// All integers and floats are little-endian.
func (f *FlatL2) Encode(w io.Writer) error {
	bw := bufio.NewWriter(w)
	le := binary.LittleEndian
	write := func(v any) error { return binary.Write(bw, le, v) }

	if _, err := bw.Write(flatMagic[:]); err != nil {
		return fmt.Errorf("memory: write magic: %w", err)
	}
	if err := write(flatVersion); err != nil {
		return fmt.Errorf("memory: write version: %w", err)
	}
	if err := write(uint32(f.dim)); err != nil {
		return fmt.Errorf("memory: write dim: %w", err)
	}
	if err := write(uint64(f.Len())); err != nil {
		return fmt.Errorf("memory: write count: %w", err)
	}
	if err := write(f.data); err != nil {
		return fmt.Errorf("memory: write vectors: %w", err)
	}
	return bw.Flush()
}

// DecodeFlatL2 reads an index written by Encode. Any deviation from the
// format, including trailing bytes, is an error.
func DecodeFlatL2(r io.Reader) (*FlatL2, error) {
	br := bufio.NewReader(r)
	le := binary.LittleEndian
	read := func(v any) error { return binary.Read(br, le, v) }

	var magic [4]byte
	if _, err := io.ReadFull(br, magic[:]); err != nil {
		return nil, fmt.Errorf("memory: read magic: %w", err)
	}
	if magic != flatMagic {
		return nil, fmt.Errorf("memory: invalid magic %q", magic[:])
	}

	var version, dim uint32
	if err := read(&version); err != nil {
		return nil, fmt.Errorf("memory: read version: %w", err)
	}
	if version != flatVersion {
		return nil, fmt.Errorf("memory: unsupported version %d", version)
	}
	if err := read(&dim); err != nil {
		return nil, fmt.Errorf("memory: read dim: %w", err)
	}
	if dim == 0 || dim > maxDim {
		return nil, fmt.Errorf("memory: invalid dim %d", dim)
	}

	var count uint64
	if err := read(&count); err != nil {
		return nil, fmt.Errorf("memory: read count: %w", err)
	}

	f := NewFlatL2(int(dim))
	row := make([]float32, dim)
	for i := uint64(0); i < count; i++ {
		if err := read(row); err != nil {
			return nil, fmt.Errorf("memory: read vector %d of %d: %w", i, count, err)
		}
		f.Add(row)
	}

	if _, err := br.ReadByte(); err != io.EOF {
		return nil, fmt.Errorf("memory: trailing data after %d vectors", count)
	}
	return f, nil
}
