package stream

import (
	"fmt"

	"go.uber.org/multierr"

	"github.com/justapithecus/strata/log"
	"github.com/justapithecus/strata/pool"
	"github.com/justapithecus/strata/sink"
)

// v2Writer tiles frames into Zarr v2 chunk files: one sink per chunk,
// rolled per append-axis chunk band.
type v2Writer struct {
	writerBase

	// sinks covers the current band; nil until the band first flushes.
	sinks []sink.Sink
}

func newV2Writer(cfg writerConfig, p *pool.Pool, factory sink.Factory, logger *log.Logger) (*v2Writer, error) {
	base, err := newWriterBase(cfg, p, factory, logger)
	if err != nil {
		return nil, err
	}
	return &v2Writer{writerBase: base}, nil
}

// WriteFrame implements levelWriter.
func (w *v2Writer) WriteFrame(frame []byte) (int, error) {
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

// bandRoot returns the data root of the current append band.
func (w *v2Writer) bandRoot() string {
	return fmt.Sprintf("%s/%d", w.levelRoot(), w.appendChunkIndex)
}

// flushLocked compresses and writes out the staged band, then rolls the
// writer over to the next one. Caller must hold mu.
func (w *v2Writer) flushLocked() error {
	if w.bytesToFlush == 0 {
		return nil
	}

	payloads, err := w.compressAll()
	if err != nil {
		return err
	}

	sinks, err := w.factory.MakeDataSinks(w.bandRoot(), w.cfg.dims, sink.ChunksAlong)
	if err != nil {
		return err
	}
	w.sinks = sinks

	var flushedBytes int64
	batch := w.pool.Batch()
	for i, payload := range payloads {
		flushedBytes += int64(len(payload))
		batch.Go(func() error {
			if err := w.sinks[i].Write(0, payload); err != nil {
				return err
			}
			return sink.Finalize(w.sinks[i])
		})
	}
	err = batch.Wait()
	if err == nil {
		w.cfg.metrics.AddBandFlush(len(payloads), int64(w.bytesToFlush), flushedBytes)
	}

	w.sinks = nil
	w.zeroBuffers()
	w.bytesToFlush = 0
	w.appendChunkIndex++
	return err
}

// Finalize implements levelWriter: flush the partial band if one is
// staged, then emit the array metadata document. Failures accumulate;
// every step is still attempted.
func (w *v2Writer) Finalize() error {
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

	doc := makeV2ArrayMetadata(w.cfg.dims, w.framesWritten, w.cfg.compression)
	if err := w.writeMetadataDoc(w.levelRoot()+"/.zarray", doc); err != nil {
		errs = multierr.Append(errs, err)
	}

	return multierr.Append(w.latched, errs)
}

var _ levelWriter = (*v2Writer)(nil)
