package types

import (
	"errors"
	"fmt"
	"strings"
)

// ZarrVersion selects the on-disk dialect.
type ZarrVersion int

const (
	ZarrV2 ZarrVersion = 2
	ZarrV3 ZarrVersion = 3
)

// Compressor selects the compression container.
type Compressor uint8

const (
	CompressorNone Compressor = iota
	CompressorBlosc

	compressorCount
)

// CompressionCodec selects the inner codec of the compression container.
type CompressionCodec uint8

const (
	CodecNone CompressionCodec = iota
	CodecLZ4
	CodecZstd

	codecCount
)

// String returns the codec name recorded in array metadata.
func (c CompressionCodec) String() string {
	switch c {
	case CodecLZ4:
		return "lz4"
	case CodecZstd:
		return "zstd"
	default:
		return "none"
	}
}

// ParseCompressionCodec resolves a codec name from configuration.
func ParseCompressionCodec(s string) (CompressionCodec, error) {
	switch s {
	case "lz4":
		return CodecLZ4, nil
	case "zstd":
		return CodecZstd, nil
	}
	return 0, fmt.Errorf("unsupported compression codec: %q", s)
}

// Shuffle selects the pre-compression filter.
type Shuffle uint8

const (
	ShuffleNone Shuffle = iota
	ShuffleByte
	ShuffleBit

	shuffleCount
)

// CompressionSettings configures chunk compression. A nil value on Settings
// means chunks are stored raw.
type CompressionSettings struct {
	Compressor Compressor
	Codec      CompressionCodec
	Level      int
	Shuffle    Shuffle
}

// Validate checks the compression settings for internal consistency.
func (c *CompressionSettings) Validate() error {
	if c.Compressor >= compressorCount {
		return fmt.Errorf("invalid compressor: %d", c.Compressor)
	}
	if c.Codec >= codecCount {
		return fmt.Errorf("invalid compression codec: %d", c.Codec)
	}
	if c.Compressor != CompressorNone && c.Codec == CodecNone {
		return errors.New("compression codec must be set when using a compressor")
	}
	if c.Level < 0 || c.Level > 9 {
		return fmt.Errorf("invalid compression level: %d. Must be between 0 and 9", c.Level)
	}
	if c.Shuffle >= shuffleCount {
		return fmt.Errorf("invalid shuffle: %d", c.Shuffle)
	}
	return nil
}

// S3Settings configures an S3-compatible object store target. A nil value
// on Settings means the store is the local filesystem.
type S3Settings struct {
	// Endpoint is the object store URL (required).
	Endpoint string
	// BucketName is the target bucket (required, 3-63 characters).
	BucketName string
	// Region is optional; empty uses the default credential chain region.
	Region string
}

// Validate checks required S3 configuration.
func (s *S3Settings) Validate() error {
	if strings.TrimSpace(s.Endpoint) == "" {
		return errors.New("S3 endpoint is empty")
	}
	name := strings.TrimSpace(s.BucketName)
	if len(name) < 3 || len(name) > 63 {
		return fmt.Errorf("invalid length for S3 bucket name: %d. Must be between 3 and 63 characters", len(name))
	}
	return nil
}

// Settings is the full configuration of one stream.
type Settings struct {
	// Version selects the Zarr dialect (2 or 3).
	Version ZarrVersion
	// StorePath is the dataset root: a local path or file:// URI, or the
	// object-key prefix when S3 is configured.
	StorePath string
	// S3 selects an object store target; nil means local filesystem.
	S3 *S3Settings
	// Compression configures chunk compression; nil means raw chunks.
	Compression *CompressionSettings
	// DataType is the sample type of every element.
	DataType Dtype
	// Dimensions is the ordered axis list; at least 3 entries, last two
	// of kind space, first is the append dimension.
	Dimensions []Dimension
	// Multiscale enables the resolution pyramid.
	Multiscale bool
	// MaxThreads bounds the worker pool; 0 means hardware concurrency.
	MaxThreads int
}
