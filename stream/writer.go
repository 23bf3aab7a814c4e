package stream

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/justapithecus/strata/codec"
	"github.com/justapithecus/strata/log"
	"github.com/justapithecus/strata/metrics"
	"github.com/justapithecus/strata/pool"
	"github.com/justapithecus/strata/sink"
	"github.com/justapithecus/strata/types"
)

// levelWriter is one pyramid level's array writer.
type levelWriter interface {
	// WriteFrame stages one whole frame, flushing the append band when it
	// completes. Returns the number of bytes accepted: short on a latched
	// error.
	WriteFrame(frame []byte) (int, error)

	// Finalize flushes any partial band, emits the array metadata
	// document, and releases the writer's sinks.
	Finalize() error
}

// writerConfig is the immutable configuration of one array writer.
type writerConfig struct {
	dims        *types.Dimensions
	level       int
	storeRoot   string
	compression *codec.Params
	metrics     *metrics.Collector
}

// writerBase carries the staging and bookkeeping state shared by the v2
// and v3 writers. The mutex guards buffers and bookkeeping so compression
// batches and a concurrent finalize do not race.
type writerBase struct {
	cfg        writerConfig
	pool       *pool.Pool
	factory    sink.Factory
	logger     *log.Logger
	compressor codec.Compressor

	// frameStride[i] and chunkStride[i] are the byte strides of one step
	// along axis i within a frame slab and within a chunk buffer. Index 0
	// (the append axis) is only meaningful for chunkStride: one frame's
	// footprint inside a chunk.
	frameStride []uint64
	chunkStride []uint64

	mu               sync.Mutex
	buffers          [][]byte
	framesWritten    uint64
	appendChunkIndex uint64
	bytesToFlush     uint64
	isFinalizing     bool
	latched          error
}

func newWriterBase(cfg writerConfig, p *pool.Pool, factory sink.Factory, logger *log.Logger) (writerBase, error) {
	w := writerBase{
		cfg:     cfg,
		pool:    p,
		factory: factory,
		logger:  logger,
	}

	if cfg.compression != nil {
		c, err := codec.New(cfg.compression)
		if err != nil {
			return writerBase{}, err
		}
		w.compressor = c
	}

	dims := cfg.dims
	n := dims.NDims()
	es := uint64(dims.DataType().Size())

	w.frameStride = make([]uint64, n)
	w.chunkStride = make([]uint64, n)
	fs, cs := es, es
	for i := n - 1; i >= 1; i-- {
		w.frameStride[i] = fs
		w.chunkStride[i] = cs
		fs *= dims.At(i).ArraySizePx
		cs *= dims.At(i).ChunkSizePx
	}
	w.chunkStride[0] = cs

	w.makeBuffers()
	return w, nil
}

// makeBuffers allocates one zeroed staging buffer per chunk of a band.
func (w *writerBase) makeBuffers() {
	chunkBytes := w.cfg.dims.ChunkBytes()
	w.buffers = make([][]byte, w.cfg.dims.ChunksPerFrame())
	for i := range w.buffers {
		w.buffers[i] = make([]byte, chunkBytes)
	}
}

// zeroBuffers resets the staging buffers for the next band.
func (w *writerBase) zeroBuffers() {
	for _, buf := range w.buffers {
		clear(buf)
	}
}

// latch records the first fatal error. Caller must hold mu.
func (w *writerBase) latch(err error) {
	if w.latched == nil {
		w.latched = err
		w.logger.Error("array writer error latched", map[string]any{
			"level": w.cfg.level,
			"error": err.Error(),
		})
	}
}

// stageFrame tiles one frame into the staging buffers and reports whether
// the append band is now complete. Caller must hold mu.
func (w *writerBase) stageFrame(frame []byte) bool {
	dims := w.cfg.dims
	n := dims.NDims()

	// Offset of this frame along the append axis within its chunk.
	k := w.framesWritten % dims.AppendDim().ChunkSizePx
	base := k * w.chunkStride[0]

	// Walk the non-append axes. chunkIndex accumulates the row-major
	// chunk coordinate; frameOff and bufOff track the byte position for
	// the coordinate prefix chosen so far.
	var walk func(axis int, chunkIndex, frameOff, bufOff uint64)
	walk = func(axis int, chunkIndex, frameOff, bufOff uint64) {
		dim := dims.At(axis)
		nChunks := dims.ChunksAlong(axis)

		if axis == n-1 {
			// Width axis: one contiguous run per chunk.
			for c := uint64(0); c < nChunks; c++ {
				runPx := min(dim.ChunkSizePx, dim.ArraySizePx-c*dim.ChunkSizePx)
				runBytes := runPx * w.frameStride[axis]
				buf := w.buffers[chunkIndex*nChunks+c]
				src := frame[frameOff+c*dim.ChunkSizePx*w.frameStride[axis]:]
				copy(buf[base+bufOff:base+bufOff+runBytes], src[:runBytes])
			}
			return
		}

		for c := uint64(0); c < nChunks; c++ {
			extent := min(dim.ChunkSizePx, dim.ArraySizePx-c*dim.ChunkSizePx)
			for off := uint64(0); off < extent; off++ {
				walk(axis+1,
					chunkIndex*nChunks+c,
					frameOff+(c*dim.ChunkSizePx+off)*w.frameStride[axis],
					bufOff+off*w.chunkStride[axis])
			}
		}
	}
	walk(1, 0, 0, 0)

	w.framesWritten++
	w.bytesToFlush += uint64(len(frame))

	return w.framesWritten%dims.AppendDim().ChunkSizePx == 0
}

// compressAll produces the stored form of every staged chunk, fanning the
// codec out across the pool and joining before any sink write begins.
// Caller must hold mu.
func (w *writerBase) compressAll() ([][]byte, error) {
	if w.compressor == nil {
		return w.buffers, nil
	}

	payloads := make([][]byte, len(w.buffers))
	batch := w.pool.Batch()
	for i, buf := range w.buffers {
		batch.Go(func() error {
			p, err := w.compressor.Compress(buf)
			if err != nil {
				return fmt.Errorf("compressing chunk %d: %w", i, err)
			}
			payloads[i] = p
			return nil
		})
	}
	if err := batch.Wait(); err != nil {
		return nil, err
	}
	return payloads, nil
}

// levelRoot returns the array root for this writer's pyramid level.
func (w *writerBase) levelRoot() string {
	return fmt.Sprintf("%s/%d", w.cfg.storeRoot, w.cfg.level)
}

// writeMetadataDoc marshals doc with 4-space indentation and writes it to
// a fresh sink at path.
func (w *writerBase) writeMetadataDoc(path string, doc any) error {
	data, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		return fmt.Errorf("encoding array metadata: %w", err)
	}

	s, err := w.factory.MakeSink(path)
	if err != nil {
		return err
	}
	if err := s.Write(0, data); err != nil {
		_ = sink.Finalize(s)
		return err
	}
	return sink.Finalize(s)
}
