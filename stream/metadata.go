package stream

// The metadata emitter produces every sidecar document of the store: the
// group descriptors of both dialects, the OME-NGFF multiscale attributes,
// and the per-array descriptors. All documents are serialized with 4-space
// indentation.

import (
	"strconv"

	"github.com/justapithecus/strata/codec"
	"github.com/justapithecus/strata/types"
)

type omeAxis struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Unit string `json:"unit,omitempty"`
}

type omeScaleTransform struct {
	Type  string    `json:"type"`
	Scale []float64 `json:"scale"`
}

type omeDataset struct {
	Path                      string              `json:"path"`
	CoordinateTransformations []omeScaleTransform `json:"coordinateTransformations"`
}

type omeDownsamplingMetadata struct {
	Description string         `json:"description"`
	Method      string         `json:"method"`
	Version     string         `json:"version"`
	Args        string         `json:"args"`
	Kwargs      map[string]int `json:"kwargs"`
}

type omeMultiscale struct {
	Axes     []omeAxis                `json:"axes"`
	Datasets []omeDataset             `json:"datasets"`
	Type     string                   `json:"type,omitempty"`
	Metadata *omeDownsamplingMetadata `json:"metadata,omitempty"`

	// Version and Name ride inside the multiscale entry in the 0.4 (v2)
	// dialect only.
	Version string `json:"version,omitempty"`
	Name    string `json:"name,omitempty"`
}

type omeDocument struct {
	Version     string          `json:"version"`
	Name        string          `json:"name"`
	Multiscales []omeMultiscale `json:"multiscales"`
}

// makeMultiscales builds the dialect-independent multiscale entry for a
// pyramid of nLevels levels.
func makeMultiscales(dims *types.Dimensions, nLevels int) []omeMultiscale {
	n := dims.NDims()

	axes := make([]omeAxis, n)
	for i := 0; i < n; i++ {
		dim := dims.At(i)
		axes[i] = omeAxis{Name: dim.Name, Type: dim.Kind.String()}
		if i >= n-2 {
			axes[i].Unit = "micrometer"
		}
	}

	scales := make([]float64, n)
	for i := range scales {
		scales[i] = 1.0
	}
	datasets := []omeDataset{{
		Path: "0",
		CoordinateTransformations: []omeScaleTransform{
			{Type: "scale", Scale: scales},
		},
	}}

	ms := omeMultiscale{Axes: axes, Datasets: datasets}

	for level := 1; level < nLevels; level++ {
		factor := float64(uint64(1) << level)
		scale := make([]float64, 0, n)
		scale = append(scale, factor) // append axis
		for k := 0; k < n-3; k++ {
			scale = append(scale, 1.0)
		}
		scale = append(scale, factor, factor) // y, x

		ms.Datasets = append(ms.Datasets, omeDataset{
			Path: strconv.Itoa(level),
			CoordinateTransformations: []omeScaleTransform{
				{Type: "scale", Scale: scale},
			},
		})

		ms.Type = "local_mean"
		ms.Metadata = &omeDownsamplingMetadata{
			Description: "The fields in the metadata describe how to reproduce this " +
				"multiscaling in scikit-image. The method and its parameters are " +
				"given here.",
			Method:  "skimage.transform.downscale_local_mean",
			Version: "0.21.0",
			Args:    "[2]",
			Kwargs:  map[string]int{"cval": 0},
		}
	}

	return []omeMultiscale{ms}
}

// makeV2Attrs builds the .zattrs document (OME-NGFF 0.4).
func makeV2Attrs(dims *types.Dimensions, nLevels int) any {
	ms := makeMultiscales(dims, nLevels)
	ms[0].Version = "0.4"
	ms[0].Name = "/"
	return struct {
		Multiscales []omeMultiscale `json:"multiscales"`
	}{Multiscales: ms}
}

// makeV2GroupMetadata builds the .zgroup document.
func makeV2GroupMetadata() any {
	return struct {
		ZarrFormat int `json:"zarr_format"`
	}{ZarrFormat: 2}
}

// makeV3BaseMetadata builds the construction-time zarr.json. The mixed
// URL-keyed shape is preserved verbatim from the store format; the group
// document overwrites it.
func makeV3BaseMetadata() any {
	return struct {
		Extensions        []any  `json:"extensions"`
		MetadataEncoding  string `json:"metadata_encoding"`
		MetadataKeySuffix string `json:"metadata_key_suffix"`
		ZarrFormat        string `json:"zarr_format"`
	}{
		Extensions:        []any{},
		MetadataEncoding:  "https://purl.org/zarr/spec/protocol/core/3.0",
		MetadataKeySuffix: ".json",
		ZarrFormat:        "https://purl.org/zarr/spec/protocol/core/3.0",
	}
}

// makeV3GroupMetadata builds the group-level zarr.json (OME 0.5).
func makeV3GroupMetadata(dims *types.Dimensions, nLevels int) any {
	return struct {
		ZarrFormat           int            `json:"zarr_format"`
		NodeType             string         `json:"node_type"`
		ConsolidatedMetadata any            `json:"consolidated_metadata"`
		Attributes           map[string]any `json:"attributes"`
	}{
		ZarrFormat:           3,
		NodeType:             "group",
		ConsolidatedMetadata: nil,
		Attributes: map[string]any{
			"ome": omeDocument{
				Version:     "0.5",
				Name:        "/",
				Multiscales: makeMultiscales(dims, nLevels),
			},
		},
	}
}

type v2CompressorMetadata struct {
	ID      string `json:"id"`
	Cname   string `json:"cname"`
	Clevel  int    `json:"clevel"`
	Shuffle int    `json:"shuffle"`
}

// makeV2ArrayMetadata builds the .zarray document for one level.
// frames is the total number of frames the level received.
func makeV2ArrayMetadata(dims *types.Dimensions, frames uint64, comp *codec.Params) any {
	n := dims.NDims()
	shape := make([]uint64, n)
	chunks := make([]uint64, n)
	shape[0] = frames
	chunks[0] = dims.AppendDim().ChunkSizePx
	for i := 1; i < n; i++ {
		shape[i] = dims.At(i).ArraySizePx
		chunks[i] = dims.At(i).ChunkSizePx
	}

	var compressor *v2CompressorMetadata
	if comp != nil {
		compressor = &v2CompressorMetadata{
			ID:      "blosc",
			Cname:   comp.Codec.String(),
			Clevel:  comp.Level,
			Shuffle: int(comp.Shuffle),
		}
	}

	return struct {
		Shape              []uint64              `json:"shape"`
		Chunks             []uint64              `json:"chunks"`
		Dtype              string                `json:"dtype"`
		Compressor         *v2CompressorMetadata `json:"compressor"`
		FillValue          int                   `json:"fill_value"`
		Order              string                `json:"order"`
		Filters            any                   `json:"filters"`
		DimensionSeparator string                `json:"dimension_separator"`
		ZarrFormat         int                   `json:"zarr_format"`
	}{
		Shape:              shape,
		Chunks:             chunks,
		Dtype:              dims.DataType().Typestr(),
		Compressor:         compressor,
		FillValue:          0,
		Order:              "C",
		Filters:            nil,
		DimensionSeparator: "/",
		ZarrFormat:         2,
	}
}

type v3CodecSpec struct {
	Name          string         `json:"name"`
	Configuration map[string]any `json:"configuration,omitempty"`
}

var v3ShuffleNames = map[types.Shuffle]string{
	types.ShuffleNone: "noshuffle",
	types.ShuffleByte: "shuffle",
	types.ShuffleBit:  "bitshuffle",
}

// makeV3ArrayMetadata builds the array-level zarr.json for one level.
func makeV3ArrayMetadata(dims *types.Dimensions, frames uint64, comp *codec.Params) any {
	n := dims.NDims()
	shape := make([]uint64, n)
	chunkShape := make([]uint64, n)
	shardShape := make([]uint64, n)
	names := make([]string, n)
	for i := 0; i < n; i++ {
		dim := dims.At(i)
		shape[i] = dim.ArraySizePx
		chunkShape[i] = dim.ChunkSizePx
		shardShape[i] = dim.ShardSizeChunks * dim.ChunkSizePx
		names[i] = dim.Name
	}
	shape[0] = frames

	innerCodecs := []v3CodecSpec{
		{Name: "bytes", Configuration: map[string]any{"endian": "little"}},
	}
	if comp != nil {
		innerCodecs = append(innerCodecs, v3CodecSpec{
			Name: "blosc",
			Configuration: map[string]any{
				"cname":     comp.Codec.String(),
				"clevel":    comp.Level,
				"shuffle":   v3ShuffleNames[comp.Shuffle],
				"typesize":  comp.TypeSize,
				"blocksize": 0,
			},
		})
	}

	sharding := v3CodecSpec{
		Name: "sharding_indexed",
		Configuration: map[string]any{
			"chunk_shape": chunkShape,
			"codecs":      innerCodecs,
			"index_codecs": []v3CodecSpec{
				{Name: "bytes", Configuration: map[string]any{"endian": "little"}},
			},
			"index_location": "end",
		},
	}

	return struct {
		ZarrFormat       int           `json:"zarr_format"`
		NodeType         string        `json:"node_type"`
		Shape            []uint64      `json:"shape"`
		DataType         string        `json:"data_type"`
		ChunkGrid        any           `json:"chunk_grid"`
		ChunkKeyEncoding any           `json:"chunk_key_encoding"`
		FillValue        int           `json:"fill_value"`
		Codecs           []v3CodecSpec `json:"codecs"`
		DimensionNames   []string      `json:"dimension_names"`
	}{
		ZarrFormat: 3,
		NodeType:   "array",
		Shape:      shape,
		DataType:   dims.DataType().String(),
		ChunkGrid: map[string]any{
			"name":          "regular",
			"configuration": map[string]any{"chunk_shape": shardShape},
		},
		ChunkKeyEncoding: map[string]any{
			"name":          "default",
			"configuration": map[string]any{"separator": "/"},
		},
		FillValue:      0,
		Codecs:         []v3CodecSpec{sharding},
		DimensionNames: names,
	}
}
