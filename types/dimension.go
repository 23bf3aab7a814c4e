package types

import (
	"errors"
	"fmt"
)

// DimensionKind classifies an axis for OME metadata purposes.
type DimensionKind uint8

const (
	DimensionTime DimensionKind = iota
	DimensionChannel
	DimensionSpace
	DimensionOther

	dimensionKindCount
)

// String returns the OME axis type for the kind.
func (k DimensionKind) String() string {
	switch k {
	case DimensionTime:
		return "time"
	case DimensionChannel:
		return "channel"
	case DimensionSpace:
		return "space"
	case DimensionOther:
		return "other"
	default:
		return "(unknown)"
	}
}

// ParseDimensionKind resolves an axis type name to a DimensionKind.
func ParseDimensionKind(s string) (DimensionKind, error) {
	switch s {
	case "time":
		return DimensionTime, nil
	case "channel":
		return DimensionChannel, nil
	case "space":
		return DimensionSpace, nil
	case "other":
		return DimensionOther, nil
	}
	return 0, fmt.Errorf("unsupported dimension type: %q", s)
}

// Valid reports whether k is a known kind.
func (k DimensionKind) Valid() bool { return k < dimensionKindCount }

// Dimension describes one axis of the array.
// ArraySizePx of zero on the first (append) dimension means unbounded.
type Dimension struct {
	Name            string
	Kind            DimensionKind
	ArraySizePx     uint64
	ChunkSizePx     uint64
	ShardSizeChunks uint64
}

// Dimensions is the ordered, immutable axis list of one array, with the
// geometry derived from it. The first dimension is the append dimension;
// the last two are Y then X.
type Dimensions struct {
	dims  []Dimension
	dtype Dtype
}

// NewDimensions validates the axis list and derives the array geometry.
func NewDimensions(dims []Dimension, dt Dtype) (*Dimensions, error) {
	if len(dims) < 3 {
		return nil, fmt.Errorf("invalid number of dimensions: %d. Must be at least 3", len(dims))
	}
	if !dt.Valid() {
		return nil, fmt.Errorf("invalid data type: %d", dt)
	}
	if dims[len(dims)-1].Kind != DimensionSpace {
		return nil, errors.New("last dimension must be of type space")
	}
	if dims[len(dims)-2].Kind != DimensionSpace {
		return nil, errors.New("second to last dimension must be of type space")
	}
	for i, dim := range dims {
		if dim.Name == "" {
			return nil, fmt.Errorf("dimension %d: name is empty", i)
		}
		if !dim.Kind.Valid() {
			return nil, fmt.Errorf("dimension %q: invalid type", dim.Name)
		}
		if i > 0 && dim.ArraySizePx == 0 {
			return nil, fmt.Errorf("dimension %q: array size must be nonzero", dim.Name)
		}
		if dim.ChunkSizePx == 0 {
			return nil, fmt.Errorf("dimension %q: invalid chunk size: 0", dim.Name)
		}
	}

	out := make([]Dimension, len(dims))
	copy(out, dims)
	return &Dimensions{dims: out, dtype: dt}, nil
}

// NDims returns the number of axes.
func (d *Dimensions) NDims() int { return len(d.dims) }

// At returns the axis at index i.
func (d *Dimensions) At(i int) Dimension { return d.dims[i] }

// AppendDim returns the first axis, along which frames accumulate.
func (d *Dimensions) AppendDim() Dimension { return d.dims[0] }

// HeightDim returns the penultimate (Y) axis.
func (d *Dimensions) HeightDim() Dimension { return d.dims[len(d.dims)-2] }

// WidthDim returns the final (X) axis.
func (d *Dimensions) WidthDim() Dimension { return d.dims[len(d.dims)-1] }

// DataType returns the sample type shared by every axis.
func (d *Dimensions) DataType() Dtype { return d.dtype }

// Equal reports whether two dimension sets agree on every semantic field.
func (d *Dimensions) Equal(other *Dimensions) bool {
	if d.dtype != other.dtype || len(d.dims) != len(other.dims) {
		return false
	}
	for i := range d.dims {
		if d.dims[i] != other.dims[i] {
			return false
		}
	}
	return true
}

func ceilDiv(a, b uint64) uint64 {
	return (a + b - 1) / b
}

// ChunksAlong returns the number of chunks along axis i.
// The unbounded append axis reports a single chunk.
func (d *Dimensions) ChunksAlong(i int) uint64 {
	dim := d.dims[i]
	if dim.ArraySizePx == 0 {
		return 1
	}
	return ceilDiv(dim.ArraySizePx, dim.ChunkSizePx)
}

// ShardsAlong returns the number of shards along axis i.
func (d *Dimensions) ShardsAlong(i int) uint64 {
	if d.dims[i].ShardSizeChunks == 0 {
		return 0
	}
	return ceilDiv(d.ChunksAlong(i), d.dims[i].ShardSizeChunks)
}

// FrameBytes returns the byte size of one frame: the slab of all samples at
// a single append index.
func (d *Dimensions) FrameBytes() uint64 {
	n := uint64(d.dtype.Size())
	for _, dim := range d.dims[1:] {
		n *= dim.ArraySizePx
	}
	return n
}

// ChunkBytes returns the uncompressed byte size of one full chunk.
func (d *Dimensions) ChunkBytes() uint64 {
	n := uint64(d.dtype.Size())
	for _, dim := range d.dims {
		n *= dim.ChunkSizePx
	}
	return n
}

// ChunksPerFrame returns the number of chunks a single frame intersects.
func (d *Dimensions) ChunksPerFrame() uint64 {
	n := uint64(1)
	for i := 1; i < len(d.dims); i++ {
		n *= d.ChunksAlong(i)
	}
	return n
}

// ShardsPerFrame returns the number of shards a single frame intersects.
func (d *Dimensions) ShardsPerFrame() uint64 {
	n := uint64(1)
	for i := 1; i < len(d.dims); i++ {
		n *= d.ShardsAlong(i)
	}
	return n
}

// ChunksPerShard returns the number of chunks grouped into one shard,
// counting the append axis.
func (d *Dimensions) ChunksPerShard() uint64 {
	n := uint64(1)
	for _, dim := range d.dims {
		n *= dim.ShardSizeChunks
	}
	return n
}

// chunkCoords decomposes a row-major chunk index over the non-append chunk
// grid into per-axis chunk coordinates for axes 1..N-1.
func (d *Dimensions) chunkCoords(chunkIndex uint64) []uint64 {
	n := len(d.dims)
	coords := make([]uint64, n-1)
	for i := n - 1; i >= 1; i-- {
		extent := d.ChunksAlong(i)
		coords[i-1] = chunkIndex % extent
		chunkIndex /= extent
	}
	return coords
}

// ShardIndexForChunk maps a row-major chunk index (over the non-append chunk
// grid of one band) to the row-major index of its shard over the non-append
// shard grid.
func (d *Dimensions) ShardIndexForChunk(chunkIndex uint64) uint64 {
	coords := d.chunkCoords(chunkIndex)
	var idx uint64
	for i := 1; i < len(d.dims); i++ {
		idx = idx*d.ShardsAlong(i) + coords[i-1]/d.dims[i].ShardSizeChunks
	}
	return idx
}

// ShardInternalIndex returns the row-major position of a chunk inside its
// shard. appendChunk is the chunk's offset along the append axis within the
// shard; chunkIndex is the chunk's row-major index over the non-append grid.
func (d *Dimensions) ShardInternalIndex(appendChunk, chunkIndex uint64) uint64 {
	coords := d.chunkCoords(chunkIndex)
	idx := appendChunk
	for i := 1; i < len(d.dims); i++ {
		idx = idx*d.dims[i].ShardSizeChunks + coords[i-1]%d.dims[i].ShardSizeChunks
	}
	return idx
}
