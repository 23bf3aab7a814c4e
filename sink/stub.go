package sink

import (
	"context"
	"fmt"
	"sync"

	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/justapithecus/strata/types"
)

// StubObjectStore is an in-memory ObjectStore for testing. Completed
// objects (single PUT or completed multipart) land in Objects.
type StubObjectStore struct {
	mu      sync.Mutex
	Objects map[string][]byte
	Buckets map[string]bool

	uploads map[string][][]byte
	nextID  int
}

// NewStubObjectStore creates a stub with the given buckets present.
func NewStubObjectStore(buckets ...string) *StubObjectStore {
	s := &StubObjectStore{
		Objects: make(map[string][]byte),
		Buckets: make(map[string]bool),
		uploads: make(map[string][][]byte),
	}
	for _, b := range buckets {
		s.Buckets[b] = true
	}
	return s
}

// PutObject implements ObjectStore.
func (s *StubObjectStore) PutObject(_ context.Context, bucket, key string, body []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Objects[bucket+"/"+key] = append([]byte(nil), body...)
	return nil
}

// CreateMultipartUpload implements ObjectStore.
func (s *StubObjectStore) CreateMultipartUpload(_ context.Context, bucket, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := fmt.Sprintf("upload-%d", s.nextID)
	s.uploads[id] = nil
	return id, nil
}

// UploadPart implements ObjectStore.
func (s *StubObjectStore) UploadPart(_ context.Context, bucket, key, uploadID string, partNumber int32, body []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	parts, ok := s.uploads[uploadID]
	if !ok {
		return "", fmt.Errorf("unknown upload: %s", uploadID)
	}
	if int(partNumber) != len(parts)+1 {
		return "", fmt.Errorf("out-of-order part %d", partNumber)
	}
	s.uploads[uploadID] = append(parts, append([]byte(nil), body...))
	return fmt.Sprintf("etag-%d", partNumber), nil
}

// CompleteMultipartUpload implements ObjectStore.
func (s *StubObjectStore) CompleteMultipartUpload(_ context.Context, bucket, key, uploadID string, parts []s3types.CompletedPart) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	uploaded, ok := s.uploads[uploadID]
	if !ok {
		return fmt.Errorf("unknown upload: %s", uploadID)
	}
	var body []byte
	for _, part := range uploaded {
		body = append(body, part...)
	}
	s.Objects[bucket+"/"+key] = body
	delete(s.uploads, uploadID)
	return nil
}

// AbortMultipartUpload implements ObjectStore.
func (s *StubObjectStore) AbortMultipartUpload(_ context.Context, bucket, key, uploadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.uploads, uploadID)
	return nil
}

// BucketExists implements ObjectStore.
func (s *StubObjectStore) BucketExists(_ context.Context, bucket string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Buckets[bucket], nil
}

var _ ObjectStore = (*StubObjectStore)(nil)

// StubSink records writes in memory for testing.
type StubSink struct {
	mu      sync.Mutex
	Data    []byte
	Writes  int
	Flushed bool
	// WriteErr, when set, is returned by every Write.
	WriteErr error
}

// Write implements Sink.
func (s *StubSink) Write(offset int64, p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.WriteErr != nil {
		return s.WriteErr
	}
	s.Writes++
	if offset == 0 && len(s.Data) > 0 {
		s.Data = s.Data[:0]
	}
	if gap := offset - int64(len(s.Data)); gap > 0 {
		s.Data = append(s.Data, make([]byte, gap)...)
	}
	if end := offset + int64(len(p)); end > int64(len(s.Data)) {
		s.Data = s.Data[:offset]
		s.Data = append(s.Data, p...)
	} else {
		copy(s.Data[offset:], p)
	}
	return nil
}

// Flush implements Sink.
func (s *StubSink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Flushed = true
	return nil
}

var _ Sink = (*StubSink)(nil)

// StubFactory creates StubSinks and records them by key for testing.
type StubFactory struct {
	mu    sync.Mutex
	Sinks map[string]*StubSink
}

// NewStubFactory creates an empty stub factory.
func NewStubFactory() *StubFactory {
	return &StubFactory{Sinks: make(map[string]*StubSink)}
}

// MakeSink implements Factory.
func (f *StubFactory) MakeSink(key string) (Sink, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := &StubSink{}
	f.Sinks[key] = s
	return s, nil
}

// MakeDataSinks implements Factory.
func (f *StubFactory) MakeDataSinks(base string, dims *types.Dimensions, partsAlong PartsFunc) ([]Sink, error) {
	paths := ConstructDataPaths(base, dims, partsAlong)
	sinks := make([]Sink, len(paths))
	for i, path := range paths {
		s, _ := f.MakeSink(path)
		sinks[i] = s
	}
	return sinks, nil
}

var _ Factory = (*StubFactory)(nil)
