package codec

import (
	"fmt"

	"github.com/klauspost/compress/zstd"

	"github.com/justapithecus/strata/types"
)

// zstdCompressor stores chunks as standard zstd frames. The frame header
// carries the uncompressed size, so no extra framing is needed.
type zstdCompressor struct {
	enc      *zstd.Encoder
	shuffle  types.Shuffle
	typeSize int
}

func newZstdCompressor(p *Params) (*zstdCompressor, error) {
	level := zstd.SpeedFastest
	if p.Level > 0 {
		level = zstd.EncoderLevelFromZstd(p.Level)
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(level))
	if err != nil {
		return nil, fmt.Errorf("creating zstd encoder: %w", err)
	}

	return &zstdCompressor{
		enc:      enc,
		shuffle:  p.Shuffle,
		typeSize: p.TypeSize,
	}, nil
}

// Compress implements Compressor. EncodeAll is safe for concurrent use.
func (c *zstdCompressor) Compress(src []byte) ([]byte, error) {
	filtered := applyShuffle(src, c.shuffle, c.typeSize)
	dst := make([]byte, 0, c.MaxCompressedSize(len(src)))
	return c.enc.EncodeAll(filtered, dst), nil
}

// MaxCompressedSize implements Compressor.
func (c *zstdCompressor) MaxCompressedSize(n int) int {
	return n + n>>8 + 128
}

var _ Compressor = (*zstdCompressor)(nil)
