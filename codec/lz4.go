package codec

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/pierrec/lz4/v4"

	"github.com/justapithecus/strata/types"
)

// lz4SizePrefix is the little-endian uncompressed-size header preceding
// every stored LZ4 block. A payload whose length equals the header value
// is stored raw; LZ4 blocks are only kept when they are strictly smaller.
const lz4SizePrefix = 4

var lz4Levels = [...]lz4.CompressionLevel{
	lz4.Fast,
	lz4.Level1,
	lz4.Level2,
	lz4.Level3,
	lz4.Level4,
	lz4.Level5,
	lz4.Level6,
	lz4.Level7,
	lz4.Level8,
	lz4.Level9,
}

// lz4Compressor stores chunks as size-prefixed LZ4 blocks. Block
// compressors keep per-instance match tables, so each worker checks one
// out of a pool rather than sharing.
type lz4Compressor struct {
	level    lz4.CompressionLevel
	shuffle  types.Shuffle
	typeSize int

	fast sync.Pool // *lz4.Compressor
	hc   sync.Pool // *lz4.CompressorHC
}

func newLZ4Compressor(p *Params) (*lz4Compressor, error) {
	if p.Level < 0 || p.Level >= len(lz4Levels) {
		return nil, fmt.Errorf("invalid compression level: %d", p.Level)
	}
	c := &lz4Compressor{
		level:    lz4Levels[p.Level],
		shuffle:  p.Shuffle,
		typeSize: p.TypeSize,
	}
	c.fast.New = func() any { return new(lz4.Compressor) }
	c.hc.New = func() any { return &lz4.CompressorHC{Level: c.level} }
	return c, nil
}

// Compress implements Compressor.
func (c *lz4Compressor) Compress(src []byte) ([]byte, error) {
	filtered := applyShuffle(src, c.shuffle, c.typeSize)

	dst := make([]byte, c.MaxCompressedSize(len(filtered)))
	binary.LittleEndian.PutUint32(dst, uint32(len(filtered)))

	var (
		n   int
		err error
	)
	if c.level == lz4.Fast {
		enc := c.fast.Get().(*lz4.Compressor)
		n, err = enc.CompressBlock(filtered, dst[lz4SizePrefix:])
		c.fast.Put(enc)
	} else {
		enc := c.hc.Get().(*lz4.CompressorHC)
		n, err = enc.CompressBlock(filtered, dst[lz4SizePrefix:])
		c.hc.Put(enc)
	}
	if err != nil {
		return nil, fmt.Errorf("lz4 block compression: %w", err)
	}

	// Incompressible input is stored raw behind the size prefix.
	if n == 0 || n >= len(filtered) {
		n = copy(dst[lz4SizePrefix:], filtered)
	}

	return dst[:lz4SizePrefix+n], nil
}

// MaxCompressedSize implements Compressor.
func (c *lz4Compressor) MaxCompressedSize(n int) int {
	return lz4SizePrefix + lz4.CompressBlockBound(n)
}

var _ Compressor = (*lz4Compressor)(nil)
