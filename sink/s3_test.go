package sink

import (
	"bytes"
	"context"
	"testing"
)

func TestS3Sink_SmallObjectSinglePut(t *testing.T) {
	store := NewStubObjectStore("bucket")
	s := NewS3Sink(context.Background(), store, "bucket", "store/0/0/0")

	if err := s.Write(0, []byte("abc")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := s.Write(3, []byte("def")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	if len(store.Objects) != 0 {
		t.Fatal("object uploaded before flush")
	}

	if err := Finalize(s); err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}

	got := store.Objects["bucket/store/0/0/0"]
	if string(got) != "abcdef" {
		t.Errorf("object = %q, want abcdef", got)
	}
}

func TestS3Sink_MetadataRewriteAtZero(t *testing.T) {
	store := NewStubObjectStore("bucket")
	s := NewS3Sink(context.Background(), store, "bucket", "zarr.json")

	if err := s.Write(0, []byte(`{"draft": true, "pad": "xxxxxxxx"}`)); err != nil {
		t.Fatal(err)
	}
	// The finalize-time rewrite replaces the whole buffered document,
	// including when it is shorter than the first.
	if err := s.Write(0, []byte(`{"final": true}`)); err != nil {
		t.Fatal(err)
	}
	if err := Finalize(s); err != nil {
		t.Fatal(err)
	}

	got := store.Objects["bucket/zarr.json"]
	if string(got) != `{"final": true}` {
		t.Errorf("object = %q, want the rewritten document", got)
	}
}

func TestS3Sink_MultipartOverThreshold(t *testing.T) {
	store := NewStubObjectStore("bucket")
	s := NewS3Sink(context.Background(), store, "bucket", "big")

	// One write of exactly one part, then a 100-byte tail.
	part := bytes.Repeat([]byte{1}, MultipartThreshold)
	if err := s.Write(0, part); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	tail := bytes.Repeat([]byte{2}, 100)
	if err := s.Write(MultipartThreshold, tail); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := Finalize(s); err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}

	got := store.Objects["bucket/big"]
	if len(got) != MultipartThreshold+100 {
		t.Fatalf("object is %d bytes, want %d", len(got), MultipartThreshold+100)
	}
	if got[0] != 1 || got[MultipartThreshold] != 2 {
		t.Error("multipart object bytes out of order")
	}

	// Writes preceding uploaded parts are rejected.
	s2 := NewS3Sink(context.Background(), store, "bucket", "big2")
	if err := s2.Write(0, part); err != nil {
		t.Fatal(err)
	}
	if err := s2.Write(10, []byte("x")); err == nil {
		t.Error("write before uploaded offset accepted")
	}
}

func TestS3Factory_MakeDataSinks(t *testing.T) {
	store := NewStubObjectStore("bucket")
	factory := NewS3Factory(context.Background(), store, "bucket")

	dims := pathTestDims(t)
	sinks, err := factory.MakeDataSinks("prefix/0/0", dims, ShardsAlong)
	if err != nil {
		t.Fatalf("MakeDataSinks failed: %v", err)
	}
	if len(sinks) != 3 {
		t.Fatalf("created %d sinks, want 3", len(sinks))
	}

	for i, s := range sinks {
		if err := s.Write(0, []byte{byte(i)}); err != nil {
			t.Fatal(err)
		}
		if err := Finalize(s); err != nil {
			t.Fatal(err)
		}
	}
	if _, ok := store.Objects["bucket/prefix/0/0/2/0/0"]; !ok {
		t.Errorf("expected object key missing; have %v", keys(store.Objects))
	}
}

func TestStubObjectStore_BucketExists(t *testing.T) {
	store := NewStubObjectStore("present")
	if ok, _ := store.BucketExists(context.Background(), "present"); !ok {
		t.Error("existing bucket reported missing")
	}
	if ok, _ := store.BucketExists(context.Background(), "absent"); ok {
		t.Error("missing bucket reported present")
	}
}

func keys(m map[string][]byte) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
