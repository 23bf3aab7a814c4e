package sink

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/justapithecus/strata/pool"
	"github.com/justapithecus/strata/types"
)

func TestFileSink_WriteAndFlush(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chunk")
	s, err := NewFileSink(path)
	if err != nil {
		t.Fatalf("NewFileSink failed: %v", err)
	}

	if err := s.Write(0, []byte("hello")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := s.Write(5, []byte(" world")); err != nil {
		t.Fatalf("Write at offset failed: %v", err)
	}
	if err := Finalize(s); err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "hello world" {
		t.Errorf("file contents = %q, want %q", data, "hello world")
	}

	// Writes after finalize are refused.
	if err := s.Write(0, []byte("x")); err == nil {
		t.Error("Write succeeded after finalize")
	}
	// A second flush is a no-op.
	if err := s.Flush(); err != nil {
		t.Errorf("second Flush = %v, want nil", err)
	}
}

func TestMakeFileSink_CreatesParents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "chunk")
	s, err := MakeFileSink(path)
	if err != nil {
		t.Fatalf("MakeFileSink failed: %v", err)
	}
	if err := s.Write(0, []byte("x")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := Finalize(s); err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("file not created: %v", err)
	}
}

func TestFileFactory_MakeDataSinks(t *testing.T) {
	dims, err := types.NewDimensions([]types.Dimension{
		{Name: "t", Kind: types.DimensionTime, ArraySizePx: 0, ChunkSizePx: 1},
		{Name: "y", Kind: types.DimensionSpace, ArraySizePx: 4, ChunkSizePx: 2},
		{Name: "x", Kind: types.DimensionSpace, ArraySizePx: 4, ChunkSizePx: 2},
	}, types.DtypeUint8)
	if err != nil {
		t.Fatal(err)
	}

	base := filepath.Join(t.TempDir(), "0", "0")
	factory := NewFileFactory(pool.New(2, nil))
	sinks, err := factory.MakeDataSinks(base, dims, ChunksAlong)
	if err != nil {
		t.Fatalf("MakeDataSinks failed: %v", err)
	}
	if len(sinks) != 4 {
		t.Fatalf("created %d sinks, want 4", len(sinks))
	}
	for i, s := range sinks {
		if err := s.Write(0, []byte{byte(i)}); err != nil {
			t.Fatalf("sink %d write failed: %v", i, err)
		}
		if err := Finalize(s); err != nil {
			t.Fatalf("sink %d finalize failed: %v", i, err)
		}
	}

	for _, rel := range []string{"0/0", "0/1", "1/0", "1/1"} {
		if _, err := os.Stat(filepath.Join(base, rel)); err != nil {
			t.Errorf("chunk file %s missing: %v", rel, err)
		}
	}
}
