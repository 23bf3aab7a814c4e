// Package config handles YAML settings file loading for strata stream.
package config

import (
	"fmt"

	"github.com/justapithecus/strata/types"
)

// Config represents a strata.yaml settings file. It mirrors
// types.Settings with string-typed enums for human editing.
type Config struct {
	Version     int                `yaml:"version"`
	StorePath   string             `yaml:"store_path"`
	DataType    string             `yaml:"data_type"`
	Multiscale  bool               `yaml:"multiscale"`
	MaxThreads  int                `yaml:"max_threads"`
	S3          *S3Config          `yaml:"s3,omitempty"`
	Compression *CompressionConfig `yaml:"compression,omitempty"`
	Dimensions  []DimensionConfig  `yaml:"dimensions"`
}

// S3Config selects an S3-compatible target in the config file.
type S3Config struct {
	Endpoint string `yaml:"endpoint"`
	Bucket   string `yaml:"bucket"`
	Region   string `yaml:"region,omitempty"`
}

// CompressionConfig holds compression settings in the config file.
type CompressionConfig struct {
	Codec   string `yaml:"codec"`
	Level   int    `yaml:"level"`
	Shuffle string `yaml:"shuffle,omitempty"`
}

// DimensionConfig is one axis definition in the config file.
type DimensionConfig struct {
	Name            string `yaml:"name"`
	Type            string `yaml:"type"`
	ArraySizePx     uint64 `yaml:"array_size_px"`
	ChunkSizePx     uint64 `yaml:"chunk_size_px"`
	ShardSizeChunks uint64 `yaml:"shard_size_chunks,omitempty"`
}

// ToSettings resolves the string-typed fields into stream settings.
// Structural validation beyond enum parsing is left to the stream.
func (c *Config) ToSettings() (types.Settings, error) {
	settings := types.Settings{
		Version:    types.ZarrVersion(c.Version),
		StorePath:  c.StorePath,
		Multiscale: c.Multiscale,
		MaxThreads: c.MaxThreads,
	}

	dt, err := types.ParseDtype(c.DataType)
	if err != nil {
		return types.Settings{}, err
	}
	settings.DataType = dt

	if c.S3 != nil {
		settings.S3 = &types.S3Settings{
			Endpoint:   c.S3.Endpoint,
			BucketName: c.S3.Bucket,
			Region:     c.S3.Region,
		}
	}

	if c.Compression != nil {
		codec, err := types.ParseCompressionCodec(c.Compression.Codec)
		if err != nil {
			return types.Settings{}, err
		}
		shuffle, err := parseShuffle(c.Compression.Shuffle)
		if err != nil {
			return types.Settings{}, err
		}
		settings.Compression = &types.CompressionSettings{
			Compressor: types.CompressorBlosc,
			Codec:      codec,
			Level:      c.Compression.Level,
			Shuffle:    shuffle,
		}
	}

	for _, dim := range c.Dimensions {
		kind, err := types.ParseDimensionKind(dim.Type)
		if err != nil {
			return types.Settings{}, fmt.Errorf("dimension %q: %w", dim.Name, err)
		}
		settings.Dimensions = append(settings.Dimensions, types.Dimension{
			Name:            dim.Name,
			Kind:            kind,
			ArraySizePx:     dim.ArraySizePx,
			ChunkSizePx:     dim.ChunkSizePx,
			ShardSizeChunks: dim.ShardSizeChunks,
		})
	}

	return settings, nil
}

func parseShuffle(s string) (types.Shuffle, error) {
	switch s {
	case "", "none":
		return types.ShuffleNone, nil
	case "byte":
		return types.ShuffleByte, nil
	case "bit":
		return types.ShuffleBit, nil
	}
	return 0, fmt.Errorf("unsupported shuffle: %q", s)
}
