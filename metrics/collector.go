// Package metrics provides per-stream metrics collection.
//
// The Collector accumulates counters during the life of a single stream.
// It is a leaf package with no internal dependencies. Writers record
// band flushes as they happen; the coordinator absorbs totals at
// finalization and logs the snapshot.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of stream metrics.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Ingest
	BytesAppended   int64
	FramesAssembled int64

	// Write path
	FramesWritten int64 // across all pyramid levels
	BandsFlushed  int64
	ChunksWritten int64
	ShardsWritten int64
	BytesStaged   int64
	BytesFlushed  int64 // post-compression

	// Failures
	Errors int64

	// Dimensions (informational, set at construction)
	StorePath   string
	ZarrVersion int
	Levels      int
}

// Collector accumulates metrics during a single stream.
// Thread-safe via sync.Mutex. All increment methods are nil-receiver safe.
type Collector struct {
	mu sync.Mutex

	bytesAppended   int64
	framesAssembled int64
	framesWritten   int64
	bandsFlushed    int64
	chunksWritten   int64
	shardsWritten   int64
	bytesStaged     int64
	bytesFlushed    int64
	errors          int64

	storePath   string
	zarrVersion int
	levels      int
}

// NewCollector creates a collector annotated with stream identity.
func NewCollector(storePath string, zarrVersion, levels int) *Collector {
	return &Collector{
		storePath:   storePath,
		zarrVersion: zarrVersion,
		levels:      levels,
	}
}

// AddBytesAppended records bytes accepted by the public append call.
func (c *Collector) AddBytesAppended(n int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.bytesAppended += n
	c.mu.Unlock()
}

// IncFramesAssembled records one whole frame leaving the assembler.
func (c *Collector) IncFramesAssembled() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.framesAssembled++
	c.mu.Unlock()
}

// IncFramesWritten records one frame accepted by a level writer.
func (c *Collector) IncFramesWritten() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.framesWritten++
	c.mu.Unlock()
}

// AddBandFlush records one band flush with its chunk count and byte
// totals (staged uncompressed, flushed stored form).
func (c *Collector) AddBandFlush(chunks int, staged, flushed int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.bandsFlushed++
	c.chunksWritten += int64(chunks)
	c.bytesStaged += staged
	c.bytesFlushed += flushed
	c.mu.Unlock()
}

// AddShardsWritten records completed shard objects.
func (c *Collector) AddShardsWritten(n int) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.shardsWritten += int64(n)
	c.mu.Unlock()
}

// IncErrors records one latched or finalization failure.
func (c *Collector) IncErrors() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.errors++
	c.mu.Unlock()
}

// Snapshot returns an atomic copy of all counters.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		BytesAppended:   c.bytesAppended,
		FramesAssembled: c.framesAssembled,
		FramesWritten:   c.framesWritten,
		BandsFlushed:    c.bandsFlushed,
		ChunksWritten:   c.chunksWritten,
		ShardsWritten:   c.shardsWritten,
		BytesStaged:     c.bytesStaged,
		BytesFlushed:    c.bytesFlushed,
		Errors:          c.errors,
		StorePath:       c.storePath,
		ZarrVersion:     c.zarrVersion,
		Levels:          c.levels,
	}
}

// Fields returns the snapshot as structured log fields.
func (s Snapshot) Fields() map[string]any {
	return map[string]any{
		"bytes_appended":   s.BytesAppended,
		"frames_assembled": s.FramesAssembled,
		"frames_written":   s.FramesWritten,
		"bands_flushed":    s.BandsFlushed,
		"chunks_written":   s.ChunksWritten,
		"shards_written":   s.ShardsWritten,
		"bytes_staged":     s.BytesStaged,
		"bytes_flushed":    s.BytesFlushed,
		"errors":           s.Errors,
		"levels":           s.Levels,
	}
}
