package stream

import (
	"testing"

	"github.com/justapithecus/strata/log"
	"github.com/justapithecus/strata/pool"
	"github.com/justapithecus/strata/sink"
	"github.com/justapithecus/strata/types"
)

func newTestV2Writer(t *testing.T, dims *types.Dimensions, factory sink.Factory) *v2Writer {
	t.Helper()
	w, err := newV2Writer(writerConfig{
		dims:      dims,
		level:     0,
		storeRoot: "store",
	}, pool.New(2, nil), factory, log.Nop())
	if err != nil {
		t.Fatalf("newV2Writer failed: %v", err)
	}
	return w
}

// Four chunk files per band for a 64x64 frame tiled 32x32, three frames
// per append chunk.
func TestV2Writer_BandFlush(t *testing.T) {
	dims := mustDims(t, []types.Dimension{
		{Name: "t", Kind: types.DimensionTime, ArraySizePx: 0, ChunkSizePx: 3},
		{Name: "y", Kind: types.DimensionSpace, ArraySizePx: 64, ChunkSizePx: 32},
		{Name: "x", Kind: types.DimensionSpace, ArraySizePx: 64, ChunkSizePx: 32},
	}, types.DtypeUint8)

	factory := sink.NewStubFactory()
	w := newTestV2Writer(t, dims, factory)

	frame := make([]byte, 64*64)
	for f := 0; f < 3; f++ {
		for y := 0; y < 64; y++ {
			for x := 0; x < 64; x++ {
				frame[y*64+x] = byte(f*31 + y + x)
			}
		}
		n, err := w.WriteFrame(frame)
		if err != nil {
			t.Fatalf("WriteFrame(%d) failed: %v", f, err)
		}
		if n != len(frame) {
			t.Fatalf("WriteFrame(%d) accepted %d bytes, want %d", f, n, len(frame))
		}
	}

	wantPaths := []string{
		"store/0/0/0/0",
		"store/0/0/0/1",
		"store/0/0/1/0",
		"store/0/0/1/1",
	}
	if len(factory.Sinks) != len(wantPaths) {
		t.Fatalf("created %d sinks, want %d: %v", len(factory.Sinks), len(wantPaths), factory.Sinks)
	}
	for _, path := range wantPaths {
		s, ok := factory.Sinks[path]
		if !ok {
			t.Fatalf("chunk sink %q missing", path)
		}
		if got, want := len(s.Data), 3*32*32; got != want {
			t.Errorf("%s: %d bytes, want %d", path, got, want)
		}
		if s.Writes != 1 {
			t.Errorf("%s: written %d times, want exactly once", path, s.Writes)
		}
		if !s.Flushed {
			t.Errorf("%s: not flushed", path)
		}
	}

	// Spot-check tiling: chunk (y1, x0), frame 2, tile row 5, col 7 must
	// hold frame sample (32+5, 0+7). Within the chunk, the layout is
	// row-major (t, y, x).
	chunk := factory.Sinks["store/0/0/1/0"].Data
	got := chunk[2*32*32+5*32+7]
	want := byte(2*31 + (32 + 5) + 7)
	if got != want {
		t.Errorf("chunk sample = %d, want %d", got, want)
	}
}

func TestV2Writer_PartialBandFlushedOnFinalize(t *testing.T) {
	dims := mustDims(t, []types.Dimension{
		{Name: "t", Kind: types.DimensionTime, ArraySizePx: 0, ChunkSizePx: 4},
		{Name: "y", Kind: types.DimensionSpace, ArraySizePx: 8, ChunkSizePx: 8},
		{Name: "x", Kind: types.DimensionSpace, ArraySizePx: 8, ChunkSizePx: 8},
	}, types.DtypeUint8)

	factory := sink.NewStubFactory()
	w := newTestV2Writer(t, dims, factory)

	frame := make([]byte, 64)
	for i := range frame {
		frame[i] = 0xAB
	}
	if _, err := w.WriteFrame(frame); err != nil {
		t.Fatalf("WriteFrame failed: %v", err)
	}

	if err := w.Finalize(); err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}

	chunk, ok := factory.Sinks["store/0/0/0/0"]
	if !ok {
		t.Fatal("partial band chunk not flushed on finalize")
	}
	// One frame of data, padded with zeros to the full 4-frame chunk.
	if got, want := len(chunk.Data), 4*64; got != want {
		t.Fatalf("chunk is %d bytes, want %d", got, want)
	}
	for i := 0; i < 64; i++ {
		if chunk.Data[i] != 0xAB {
			t.Fatalf("chunk byte %d = %d, want 0xAB", i, chunk.Data[i])
		}
	}
	for i := 64; i < 4*64; i++ {
		if chunk.Data[i] != 0 {
			t.Fatalf("chunk padding byte %d = %d, want 0", i, chunk.Data[i])
		}
	}

	meta, ok := factory.Sinks["store/0/.zarray"]
	if !ok {
		t.Fatal("array metadata not written")
	}
	if len(meta.Data) == 0 {
		t.Fatal("array metadata is empty")
	}
}

func TestV2Writer_LatchedErrorRefusesFrames(t *testing.T) {
	dims := mustDims(t, []types.Dimension{
		{Name: "t", Kind: types.DimensionTime, ArraySizePx: 0, ChunkSizePx: 1},
		{Name: "y", Kind: types.DimensionSpace, ArraySizePx: 4, ChunkSizePx: 4},
		{Name: "x", Kind: types.DimensionSpace, ArraySizePx: 4, ChunkSizePx: 4},
	}, types.DtypeUint8)

	factory := &failingFactory{}
	w := newTestV2Writer(t, dims, factory)

	frame := make([]byte, 16)
	if _, err := w.WriteFrame(frame); err == nil {
		t.Fatal("WriteFrame succeeded with a failing sink factory")
	}

	n, err := w.WriteFrame(frame)
	if err == nil {
		t.Fatal("WriteFrame accepted data after a latched error")
	}
	if n != 0 {
		t.Fatalf("WriteFrame returned %d after a latched error, want 0", n)
	}
}

// failingFactory fails every sink creation.
type failingFactory struct{}

func (f *failingFactory) MakeSink(string) (sink.Sink, error) {
	return nil, errSinkUnavailable
}

func (f *failingFactory) MakeDataSinks(string, *types.Dimensions, sink.PartsFunc) ([]sink.Sink, error) {
	return nil, errSinkUnavailable
}

var errSinkUnavailable = &sink.StorageError{Kind: sink.ErrNotFound, Op: "create", Err: sink.ErrNotFound}
