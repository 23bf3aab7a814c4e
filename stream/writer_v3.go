package stream

import (
	"encoding/binary"
	"fmt"
	"math"

	"go.uber.org/multierr"

	"github.com/justapithecus/strata/log"
	"github.com/justapithecus/strata/pool"
	"github.com/justapithecus/strata/sink"
)

// shardEntry is one chunk's slot in a shard's trailing index. Chunks that
// were never written keep the all-ones sentinel.
type shardEntry struct {
	offset uint64
	length uint64
}

const absentChunk = math.MaxUint64

// shardWrite is one chunk body queued for a shard sink.
type shardWrite struct {
	offset  uint64
	payload []byte
}

// v3Writer tiles frames into Zarr v3 shards: one sink per shard, rolled
// at shard boundaries along the append axis. Chunk bodies are appended to
// their shard as each chunk band flushes; the index footer is written
// when the shard band completes.
type v3Writer struct {
	writerBase

	// Shard-band state; nil/empty until the band first flushes.
	sinks        []sink.Sink
	shardOffsets []uint64
	shardTables  [][]shardEntry
}

func newV3Writer(cfg writerConfig, p *pool.Pool, factory sink.Factory, logger *log.Logger) (*v3Writer, error) {
	base, err := newWriterBase(cfg, p, factory, logger)
	if err != nil {
		return nil, err
	}
	return &v3Writer{writerBase: base}, nil
}

// WriteFrame implements levelWriter.
func (w *v3Writer) WriteFrame(frame []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.latched != nil {
		return 0, w.latched
	}

	if bandDone := w.stageFrame(frame); bandDone {
		if err := w.flushLocked(); err != nil {
			w.latch(err)
			return 0, err
		}
	}
	return len(frame), nil
}

// shardBandRoot returns the data root of the current shard band. The c/
// segment is the prefix of the default chunk key encoding.
func (w *v3Writer) shardBandRoot() string {
	appendShard := w.appendChunkIndex / w.cfg.dims.AppendDim().ShardSizeChunks
	return fmt.Sprintf("%s/c/%d", w.levelRoot(), appendShard)
}

// openShardBandLocked creates the shard sinks and index state for a fresh
// shard band. Caller must hold mu.
func (w *v3Writer) openShardBandLocked() error {
	sinks, err := w.factory.MakeDataSinks(w.shardBandRoot(), w.cfg.dims, sink.ShardsAlong)
	if err != nil {
		return err
	}
	w.sinks = sinks
	w.shardOffsets = make([]uint64, len(sinks))

	chunksPerShard := w.cfg.dims.ChunksPerShard()
	w.shardTables = make([][]shardEntry, len(sinks))
	for i := range w.shardTables {
		table := make([]shardEntry, chunksPerShard)
		for j := range table {
			table[j] = shardEntry{offset: absentChunk, length: absentChunk}
		}
		w.shardTables[i] = table
	}
	return nil
}

// flushLocked compresses the staged chunk band and appends the bodies to
// their shards in canonical order. When the band completes its shard
// along the append axis, or the writer is finalizing, the shard footers
// are written and the sinks rolled. Caller must hold mu.
func (w *v3Writer) flushLocked() error {
	if w.bytesToFlush == 0 {
		return nil
	}

	payloads, err := w.compressAll()
	if err != nil {
		return err
	}

	if w.sinks == nil {
		if err := w.openShardBandLocked(); err != nil {
			return err
		}
	}

	dims := w.cfg.dims
	appendChunkInShard := w.appendChunkIndex % dims.AppendDim().ShardSizeChunks

	// Assign every chunk its place in its shard. Ascending chunk order is
	// ascending internal order within each shard, so offsets in the index
	// are monotonic.
	writes := make([][]shardWrite, len(w.sinks))
	for ci, payload := range payloads {
		s := dims.ShardIndexForChunk(uint64(ci))
		internal := dims.ShardInternalIndex(appendChunkInShard, uint64(ci))

		w.shardTables[s][internal] = shardEntry{
			offset: w.shardOffsets[s],
			length: uint64(len(payload)),
		}
		writes[s] = append(writes[s], shardWrite{offset: w.shardOffsets[s], payload: payload})
		w.shardOffsets[s] += uint64(len(payload))
	}

	var flushedBytes int64
	batch := w.pool.Batch()
	for s, queue := range writes {
		for _, wr := range queue {
			flushedBytes += int64(len(wr.payload))
		}
		batch.Go(func() error {
			for _, wr := range queue {
				if err := w.sinks[s].Write(int64(wr.offset), wr.payload); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := batch.Wait(); err != nil {
		return err
	}
	w.cfg.metrics.AddBandFlush(len(payloads), int64(w.bytesToFlush), flushedBytes)

	shardDone := appendChunkInShard == dims.AppendDim().ShardSizeChunks-1
	if shardDone || w.isFinalizing {
		if err := w.closeShardBandLocked(); err != nil {
			return err
		}
	}

	w.zeroBuffers()
	w.bytesToFlush = 0
	w.appendChunkIndex++
	return nil
}

// closeShardBandLocked writes each shard's index footer and finalizes its
// sink. Caller must hold mu.
func (w *v3Writer) closeShardBandLocked() error {
	batch := w.pool.Batch()
	for s := range w.sinks {
		batch.Go(func() error {
			footer := encodeShardIndex(w.shardTables[s])
			if err := w.sinks[s].Write(int64(w.shardOffsets[s]), footer); err != nil {
				return err
			}
			return sink.Finalize(w.sinks[s])
		})
	}
	err := batch.Wait()
	if err == nil {
		w.cfg.metrics.AddShardsWritten(len(w.sinks))
	}

	w.sinks = nil
	w.shardOffsets = nil
	w.shardTables = nil
	return err
}

// encodeShardIndex packs the trailing index: little-endian
// [u64 offset, u64 length] per chunk, in shard-internal order.
func encodeShardIndex(table []shardEntry) []byte {
	footer := make([]byte, 16*len(table))
	for i, e := range table {
		binary.LittleEndian.PutUint64(footer[16*i:], e.offset)
		binary.LittleEndian.PutUint64(footer[16*i+8:], e.length)
	}
	return footer
}

// Finalize implements levelWriter: flush the partial band, close any
// open shard band, and emit the array metadata document. Failures
// accumulate; every step is still attempted.
func (w *v3Writer) Finalize() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.isFinalizing {
		return nil
	}
	w.isFinalizing = true

	var errs error
	if err := w.flushLocked(); err != nil {
		errs = multierr.Append(errs, err)
	}

	// A shard band left open by a whole-chunk boundary still needs its
	// footers.
	if w.sinks != nil {
		if err := w.closeShardBandLocked(); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	doc := makeV3ArrayMetadata(w.cfg.dims, w.framesWritten, w.cfg.compression)
	if err := w.writeMetadataDoc(w.levelRoot()+"/zarr.json", doc); err != nil {
		errs = multierr.Append(errs, err)
	}

	return multierr.Append(w.latched, errs)
}

var _ levelWriter = (*v3Writer)(nil)
