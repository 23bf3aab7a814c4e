package stream

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/justapithecus/strata/log"
	"github.com/justapithecus/strata/pool"
	"github.com/justapithecus/strata/sink"
	"github.com/justapithecus/strata/types"
)

// shardTestDims: one shard spans 2 append chunks x 2x2 spatial chunks of
// 1x2x2 u8 samples, so a complete shard holds 8 chunk bodies.
func shardTestDims(t *testing.T) *types.Dimensions {
	return mustDims(t, []types.Dimension{
		{Name: "t", Kind: types.DimensionTime, ArraySizePx: 0, ChunkSizePx: 1, ShardSizeChunks: 2},
		{Name: "y", Kind: types.DimensionSpace, ArraySizePx: 4, ChunkSizePx: 2, ShardSizeChunks: 2},
		{Name: "x", Kind: types.DimensionSpace, ArraySizePx: 4, ChunkSizePx: 2, ShardSizeChunks: 2},
	}, types.DtypeUint8)
}

func newTestV3Writer(t *testing.T, dims *types.Dimensions, factory sink.Factory) *v3Writer {
	t.Helper()
	w, err := newV3Writer(writerConfig{
		dims:      dims,
		level:     0,
		storeRoot: "store",
	}, pool.New(2, nil), factory, log.Nop())
	if err != nil {
		t.Fatalf("newV3Writer failed: %v", err)
	}
	return w
}

func decodeShardIndex(t *testing.T, data []byte, chunksPerShard int) []shardEntry {
	t.Helper()
	footerBytes := 16 * chunksPerShard
	if len(data) < footerBytes {
		t.Fatalf("shard is %d bytes, smaller than its %d-byte index", len(data), footerBytes)
	}
	footer := data[len(data)-footerBytes:]
	entries := make([]shardEntry, chunksPerShard)
	for i := range entries {
		entries[i] = shardEntry{
			offset: binary.LittleEndian.Uint64(footer[16*i:]),
			length: binary.LittleEndian.Uint64(footer[16*i+8:]),
		}
	}
	return entries
}

func TestV3Writer_CompleteShard(t *testing.T) {
	dims := shardTestDims(t)
	factory := sink.NewStubFactory()
	w := newTestV3Writer(t, dims, factory)

	// Two frames complete the shard along the append axis.
	frame := make([]byte, 16)
	for f := 0; f < 2; f++ {
		for i := range frame {
			frame[i] = byte(f*100 + i)
		}
		if _, err := w.WriteFrame(frame); err != nil {
			t.Fatalf("WriteFrame(%d) failed: %v", f, err)
		}
	}

	shard, ok := factory.Sinks["store/0/c/0/0/0"]
	if !ok {
		t.Fatalf("shard sink missing; have %v", factory.Sinks)
	}
	if !shard.Flushed {
		t.Error("completed shard not flushed")
	}

	// Body: 8 chunk bodies of 4 bytes each; footer: 8 entries.
	const chunksPerShard = 8
	if got, want := len(shard.Data), 8*4+16*chunksPerShard; got != want {
		t.Fatalf("shard is %d bytes, want %d", got, want)
	}

	entries := decodeShardIndex(t, shard.Data, chunksPerShard)
	bodyLen := uint64(len(shard.Data)) - 16*chunksPerShard

	var prev uint64
	var total uint64
	for i, e := range entries {
		if e.offset == absentChunk {
			t.Fatalf("entry %d absent in a complete shard", i)
		}
		if e.offset < prev {
			t.Fatalf("entry %d offset %d decreases from %d", i, e.offset, prev)
		}
		prev = e.offset
		total += e.length
	}
	if total != bodyLen {
		t.Fatalf("entry lengths sum to %d, want body length %d", total, bodyLen)
	}

	// The first chunk body is the (t0, y0, x0) tile: frame-0 samples at
	// rows 0-1, cols 0-1.
	want := []byte{0, 1, 4, 5}
	for i, b := range want {
		if shard.Data[i] != b {
			t.Errorf("chunk 0 byte %d = %d, want %d", i, shard.Data[i], b)
		}
	}
}

func TestV3Writer_PartialShardOnFinalize(t *testing.T) {
	dims := shardTestDims(t)
	factory := sink.NewStubFactory()
	w := newTestV3Writer(t, dims, factory)

	// One frame fills only the first append chunk of the shard.
	frame := make([]byte, 16)
	for i := range frame {
		frame[i] = byte(i + 1)
	}
	if _, err := w.WriteFrame(frame); err != nil {
		t.Fatalf("WriteFrame failed: %v", err)
	}

	if err := w.Finalize(); err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}

	shard, ok := factory.Sinks["store/0/c/0/0/0"]
	if !ok {
		t.Fatal("shard sink missing after finalize")
	}

	const chunksPerShard = 8
	entries := decodeShardIndex(t, shard.Data, chunksPerShard)

	// The first four internal slots (append offset 0) are present, the
	// rest carry the absent sentinel.
	present, absent := 0, 0
	for _, e := range entries {
		if e.offset == absentChunk && e.length == absentChunk {
			absent++
		} else {
			present++
		}
	}
	if present != 4 || absent != 4 {
		t.Fatalf("present/absent = %d/%d, want 4/4", present, absent)
	}

	if _, ok := factory.Sinks["store/0/zarr.json"]; !ok {
		t.Error("array metadata not written")
	}
}

func TestV3Writer_RollsAtShardBoundary(t *testing.T) {
	dims := shardTestDims(t)
	factory := sink.NewStubFactory()
	w := newTestV3Writer(t, dims, factory)

	// Four frames: two complete shard bands along the append axis.
	frame := make([]byte, 16)
	for f := 0; f < 4; f++ {
		if _, err := w.WriteFrame(frame); err != nil {
			t.Fatalf("WriteFrame(%d) failed: %v", f, err)
		}
	}

	for _, path := range []string{"store/0/c/0/0/0", "store/0/c/1/0/0"} {
		s, ok := factory.Sinks[path]
		if !ok {
			t.Fatalf("shard sink %q missing", path)
		}
		if !s.Flushed {
			t.Errorf("%s not flushed", path)
		}
	}
}

func TestEncodeShardIndex(t *testing.T) {
	table := []shardEntry{
		{offset: 0, length: 10},
		{offset: math.MaxUint64, length: math.MaxUint64},
	}
	footer := encodeShardIndex(table)
	if len(footer) != 32 {
		t.Fatalf("footer is %d bytes, want 32", len(footer))
	}
	if got := binary.LittleEndian.Uint64(footer[8:]); got != 10 {
		t.Errorf("first entry length = %d, want 10", got)
	}
	if got := binary.LittleEndian.Uint64(footer[16:]); got != math.MaxUint64 {
		t.Errorf("absent offset = %d, want MaxUint64", got)
	}
}
