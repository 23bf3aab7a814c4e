package stream

import (
	"github.com/justapithecus/strata/types"
)

// halvePx halves a pixel extent, rounding up. Zero (unbounded) stays zero.
func halvePx(px uint64) uint64 {
	if px == 0 {
		return 0
	}
	return (px + px%2) / 2
}

// downsampleDims derives the axis list of the next pyramid level: the
// append axis and the two spatial axes are halved, everything between is
// kept at full extent. Chunk sizes are clamped to the shrunken extents and
// shard sizes to the shrunken chunk counts. The second return reports
// whether the result can be halved again without a spatial axis falling
// below its chunk size.
func downsampleDims(dims *types.Dimensions) (*types.Dimensions, bool) {
	n := dims.NDims()

	out := make([]types.Dimension, n)
	for i := 0; i < n; i++ {
		dim := dims.At(i)
		if i != 0 && i < n-2 {
			out[i] = dim
			continue
		}

		arraySize := halvePx(dim.ArraySizePx)

		chunkSize := dim.ChunkSizePx
		if arraySize > 0 && chunkSize > arraySize {
			chunkSize = arraySize
		}

		shardSize := dim.ShardSizeChunks
		if shardSize > 0 && arraySize > 0 {
			nChunks := (arraySize + chunkSize - 1) / chunkSize
			if shardSize > nChunks {
				shardSize = nChunks
			}
		}

		out[i] = types.Dimension{
			Name:            dim.Name,
			Kind:            dim.Kind,
			ArraySizePx:     arraySize,
			ChunkSizePx:     chunkSize,
			ShardSizeChunks: shardSize,
		}
	}

	downsampled, err := types.NewDimensions(out, dims.DataType())
	if err != nil {
		// The halved extents of a valid axis list are themselves valid.
		panic(err)
	}

	// Can we halve a second time?
	again := true
	for i := n - 2; i < n; i++ {
		dim := downsampled.At(i)
		if dim.ArraySizePx > 0 && halvePx(dim.ArraySizePx) < dim.ChunkSizePx {
			again = false
		}
		// A 1-pixel axis cannot shrink further.
		if dim.ArraySizePx == 1 {
			again = false
		}
	}

	return downsampled, again
}
