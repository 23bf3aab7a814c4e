package codec

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/justapithecus/strata/types"
)

func chunkFixture(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i / 7)
	}
	return data
}

func TestZstdCompressor_RoundTrip(t *testing.T) {
	c, err := New(&Params{Codec: types.CodecZstd, Level: 3, TypeSize: 1})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	src := chunkFixture(4096)
	compressed, err := c.Compress(src)
	if err != nil {
		t.Fatalf("Compress failed: %v", err)
	}
	if len(compressed) > c.MaxCompressedSize(len(src)) {
		t.Fatalf("compressed %d bytes exceeds declared bound %d", len(compressed), c.MaxCompressedSize(len(src)))
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		t.Fatal(err)
	}
	defer dec.Close()
	out, err := dec.DecodeAll(compressed, nil)
	if err != nil {
		t.Fatalf("decompress failed: %v", err)
	}
	if !bytes.Equal(out, src) {
		t.Error("round trip does not recover the input")
	}
}

func TestZstdCompressor_ShuffleRoundTrip(t *testing.T) {
	c, err := New(&Params{Codec: types.CodecZstd, Level: 1, Shuffle: types.ShuffleByte, TypeSize: 2})
	if err != nil {
		t.Fatal(err)
	}

	src := chunkFixture(512)
	compressed, err := c.Compress(src)
	if err != nil {
		t.Fatal(err)
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		t.Fatal(err)
	}
	defer dec.Close()
	shuffled, err := dec.DecodeAll(compressed, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(byteUnshuffle(shuffled, 2), src) {
		t.Error("unshuffled round trip does not recover the input")
	}
}

func TestLZ4Compressor_RoundTrip(t *testing.T) {
	c, err := New(&Params{Codec: types.CodecLZ4, Level: 0, TypeSize: 1})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	src := chunkFixture(4096)
	compressed, err := c.Compress(src)
	if err != nil {
		t.Fatalf("Compress failed: %v", err)
	}

	nbytes := binary.LittleEndian.Uint32(compressed)
	if nbytes != uint32(len(src)) {
		t.Fatalf("size prefix = %d, want %d", nbytes, len(src))
	}

	payload := compressed[lz4SizePrefix:]
	if len(payload) == len(src) {
		t.Fatal("compressible fixture stored raw")
	}
	out := make([]byte, nbytes)
	n, err := lz4.UncompressBlock(payload, out)
	if err != nil {
		t.Fatalf("decompress failed: %v", err)
	}
	if !bytes.Equal(out[:n], src) {
		t.Error("round trip does not recover the input")
	}
}

func TestLZ4Compressor_HighLevel(t *testing.T) {
	c, err := New(&Params{Codec: types.CodecLZ4, Level: 9, TypeSize: 1})
	if err != nil {
		t.Fatal(err)
	}
	src := chunkFixture(1024)
	compressed, err := c.Compress(src)
	if err != nil {
		t.Fatal(err)
	}
	out := make([]byte, len(src))
	if _, err := lz4.UncompressBlock(compressed[lz4SizePrefix:], out); err != nil {
		t.Fatalf("decompress failed: %v", err)
	}
	if !bytes.Equal(out, src) {
		t.Error("round trip does not recover the input")
	}
}

func TestNew_UnknownCodec(t *testing.T) {
	if _, err := New(&Params{Codec: types.CodecNone}); err == nil {
		t.Error("New accepted an unset codec")
	}
}

func TestByteShuffle_RoundTrip(t *testing.T) {
	src := chunkFixture(100) // not a multiple of 3: exercises the tail
	out := byteUnshuffle(byteShuffle(src, 3), 3)
	if !bytes.Equal(out, src) {
		t.Error("byte shuffle round trip does not recover the input")
	}
}

func TestByteShuffle_PlaneLayout(t *testing.T) {
	// Two u16 samples: planes gather low bytes then high bytes.
	src := []byte{0x01, 0x02, 0x03, 0x04}
	got := byteShuffle(src, 2)
	want := []byte{0x01, 0x03, 0x02, 0x04}
	if !bytes.Equal(got, want) {
		t.Errorf("byteShuffle = %v, want %v", got, want)
	}
}

func TestBitShuffle_RoundTrip(t *testing.T) {
	for _, size := range []int{64, 100, 130} {
		src := chunkFixture(size)
		out := bitUnshuffle(bitShuffle(src, 2), 2)
		if !bytes.Equal(out, src) {
			t.Errorf("bit shuffle round trip failed for %d bytes", size)
		}
	}
}

func TestParamsFromSettings(t *testing.T) {
	if got := ParamsFromSettings(nil, types.DtypeUint16); got != nil {
		t.Error("nil settings produced params")
	}

	cs := &types.CompressionSettings{
		Compressor: types.CompressorBlosc,
		Codec:      types.CodecZstd,
		Level:      5,
		Shuffle:    types.ShuffleBit,
	}
	p := ParamsFromSettings(cs, types.DtypeUint16)
	if p == nil {
		t.Fatal("params not derived")
	}
	if p.TypeSize != 2 || p.Level != 5 || p.Codec != types.CodecZstd {
		t.Errorf("params = %+v", p)
	}
}
