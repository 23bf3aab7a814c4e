package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/justapithecus/strata/types"
)

const sampleConfig = `
version: 3
store_path: /data/acq-001
data_type: uint16
multiscale: true
max_threads: 8
compression:
  codec: zstd
  level: 4
  shuffle: byte
dimensions:
  - name: t
    type: time
    array_size_px: 0
    chunk_size_px: 32
    shard_size_chunks: 1
  - name: y
    type: space
    array_size_px: 2048
    chunk_size_px: 256
    shard_size_chunks: 2
  - name: x
    type: space
    array_size_px: 2048
    chunk_size_px: 256
    shard_size_chunks: 2
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "strata.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_ToSettings(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	settings, err := cfg.ToSettings()
	if err != nil {
		t.Fatalf("ToSettings failed: %v", err)
	}

	if settings.Version != types.ZarrV3 {
		t.Errorf("Version = %d, want 3", settings.Version)
	}
	if settings.DataType != types.DtypeUint16 {
		t.Errorf("DataType = %v, want uint16", settings.DataType)
	}
	if !settings.Multiscale {
		t.Error("Multiscale not carried through")
	}
	if settings.Compression == nil {
		t.Fatal("Compression not carried through")
	}
	if settings.Compression.Codec != types.CodecZstd {
		t.Errorf("Codec = %v, want zstd", settings.Compression.Codec)
	}
	if settings.Compression.Shuffle != types.ShuffleByte {
		t.Errorf("Shuffle = %v, want byte", settings.Compression.Shuffle)
	}
	if len(settings.Dimensions) != 3 {
		t.Fatalf("Dimensions = %d entries, want 3", len(settings.Dimensions))
	}
	if settings.Dimensions[0].Kind != types.DimensionTime {
		t.Errorf("dim 0 kind = %v, want time", settings.Dimensions[0].Kind)
	}
	if settings.Dimensions[1].ChunkSizePx != 256 {
		t.Errorf("dim 1 chunk = %d, want 256", settings.Dimensions[1].ChunkSizePx)
	}
}

func TestToSettings_RejectsUnknownEnums(t *testing.T) {
	cfg := &Config{Version: 2, DataType: "uint12"}
	if _, err := cfg.ToSettings(); err == nil {
		t.Error("unknown dtype accepted")
	}

	cfg = &Config{
		Version:     2,
		DataType:    "uint8",
		Compression: &CompressionConfig{Codec: "snappy"},
	}
	if _, err := cfg.ToSettings(); err == nil {
		t.Error("unknown codec accepted")
	}

	cfg = &Config{
		Version:    2,
		DataType:   "uint8",
		Dimensions: []DimensionConfig{{Name: "t", Type: "temporal"}},
	}
	if _, err := cfg.ToSettings(); err == nil {
		t.Error("unknown dimension type accepted")
	}
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("STRATA_STORE", "/mnt/data/store")
	cfg, err := Load(writeConfig(t, "version: 2\nstore_path: ${STRATA_STORE}\ndata_type: uint8\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.StorePath != "/mnt/data/store" {
		t.Errorf("StorePath = %q, want expanded env value", cfg.StorePath)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("Load of a missing file succeeded")
	}
}
