// Package codec implements chunk compression for the array writers.
//
// A Compressor turns one uncompressed chunk into its stored form. The
// shuffle filters reorder sample bytes before the inner codec runs, which
// improves ratios on low-entropy imaging data. Compressors declare a
// worst-case output bound and size their own output buffers from it.
package codec

import (
	"fmt"

	"github.com/justapithecus/strata/types"
)

// Params carries the compression configuration of one array.
type Params struct {
	Codec    types.CompressionCodec
	Level    int
	Shuffle  types.Shuffle
	TypeSize int
}

// ParamsFromSettings derives codec parameters from stream settings.
// Returns nil when compression is not configured.
func ParamsFromSettings(cs *types.CompressionSettings, dt types.Dtype) *Params {
	if cs == nil || cs.Compressor == types.CompressorNone {
		return nil
	}
	return &Params{
		Codec:    cs.Codec,
		Level:    cs.Level,
		Shuffle:  cs.Shuffle,
		TypeSize: dt.Size(),
	}
}

// Compressor compresses chunk buffers. Implementations are safe for
// concurrent use by multiple pool workers.
type Compressor interface {
	// Compress returns the stored form of src. src is not retained.
	Compress(src []byte) ([]byte, error)

	// MaxCompressedSize bounds the stored size of an n-byte input.
	MaxCompressedSize(n int) int
}

// New constructs the compressor selected by params.
func New(params *Params) (Compressor, error) {
	switch params.Codec {
	case types.CodecZstd:
		return newZstdCompressor(params)
	case types.CodecLZ4:
		return newLZ4Compressor(params)
	default:
		return nil, fmt.Errorf("unsupported compression codec: %d", params.Codec)
	}
}
