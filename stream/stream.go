// Package stream implements the streaming ingest and chunk-flush engine:
// frame assembly, the multiscale pyramid, the per-level array writers,
// and the finalization protocol.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/multierr"

	"github.com/justapithecus/strata/codec"
	"github.com/justapithecus/strata/log"
	"github.com/justapithecus/strata/metrics"
	"github.com/justapithecus/strata/pool"
	"github.com/justapithecus/strata/sink"
	"github.com/justapithecus/strata/types"
)

// ErrStreamFinalized is returned by Append after Finalize has run.
var ErrStreamFinalized = errors.New("stream already finalized")

// customMetadataKey is the logical name of the optional user document.
const customMetadataKey = "acquire.json"

// Stream is one open dataset accepting appended frames. Construct with
// New, feed with Append, and close with Finalize; a Stream is safe for
// use from one producer goroutine.
type Stream struct {
	version     types.ZarrVersion
	storeRoot   string
	dims        *types.Dimensions
	multiscale  bool
	compression *codec.Params

	pool    *pool.Pool
	factory sink.Factory
	logger  *log.Logger
	metrics *metrics.Collector

	mu            sync.Mutex
	assembler     *frameAssembler
	writers       []levelWriter
	levelDims     []*types.Dimensions
	metadataSinks map[string]sink.Sink
	scaledFrames  [][]byte // stash per level; nil means empty
	latched       error
	finalized     bool
}

// New validates settings, prepares the store, constructs the pyramid of
// array writers, and emits the base and group metadata.
func New(ctx context.Context, settings types.Settings) (*Stream, error) {
	dims, err := validateSettings(&settings)
	if err != nil {
		return nil, err
	}

	storeRoot := sink.TrimFileScheme(strings.TrimSpace(settings.StorePath))

	s := &Stream{
		version:     settings.Version,
		storeRoot:   storeRoot,
		dims:        dims,
		multiscale:  settings.Multiscale,
		compression: codec.ParamsFromSettings(settings.Compression, settings.DataType),
		logger: log.NewLogger(log.StreamMeta{
			StorePath: storeRoot,
			Version:   int(settings.Version),
		}),
	}

	s.pool = pool.New(settings.MaxThreads, func(err error) {
		s.mu.Lock()
		s.latch(err)
		s.mu.Unlock()
	})

	if err := s.createStore(ctx, settings.S3); err != nil {
		return nil, err
	}

	s.buildLevelDims()
	s.metrics = metrics.NewCollector(storeRoot, int(settings.Version), len(s.levelDims))

	if err := s.createWriters(); err != nil {
		return nil, err
	}
	s.scaledFrames = make([][]byte, len(s.writers))

	sinks, err := sink.MakeMetadataSinks(s.version, s.factory, storeRoot)
	if err != nil {
		return nil, fmt.Errorf("error creating metadata sinks: %w", err)
	}
	s.metadataSinks = sinks

	if err := s.writeBaseMetadata(); err != nil {
		return nil, err
	}
	if err := s.writeGroupMetadata(); err != nil {
		return nil, err
	}

	s.assembler = newFrameAssembler(int(dims.FrameBytes()), s.writeFrame)

	s.logger.Info("stream opened", map[string]any{
		"levels":     len(s.writers),
		"multiscale": s.multiscale,
		"compressed": s.compression != nil,
	})

	return s, nil
}

// createStore prepares the storage backend and its sink factory.
func (s *Stream) createStore(ctx context.Context, s3Settings *types.S3Settings) error {
	if s3Settings != nil {
		client, err := sink.NewS3Client(ctx, s3Settings)
		if err != nil {
			return fmt.Errorf("error creating S3 client: %w", err)
		}
		bucket := strings.TrimSpace(s3Settings.BucketName)
		exists, err := client.BucketExists(ctx, bucket)
		if err != nil {
			return fmt.Errorf("failed to connect to S3: %w", err)
		}
		if !exists {
			return fmt.Errorf("bucket %q does not exist", bucket)
		}
		s.factory = sink.NewS3Factory(ctx, client, bucket)
		return nil
	}

	if err := createLocalStore(s.storeRoot); err != nil {
		return err
	}
	s.factory = sink.NewFileFactory(s.pool)
	return nil
}

// buildLevelDims derives the axis list of every pyramid level: level 0,
// then, when multiscale is on, successive halvings until a spatial axis
// would fall below its chunk size.
func (s *Stream) buildLevelDims() {
	s.levelDims = []*types.Dimensions{s.dims}
	if s.multiscale {
		dims, again := s.dims, true
		for again {
			dims, again = downsampleDims(dims)
			s.levelDims = append(s.levelDims, dims)
		}
	}
}

// createWriters builds one array writer per pyramid level.
func (s *Stream) createWriters() error {
	for level, dims := range s.levelDims {
		cfg := writerConfig{
			dims:        dims,
			level:       level,
			storeRoot:   s.storeRoot,
			compression: s.compression,
			metrics:     s.metrics,
		}

		var (
			w   levelWriter
			err error
		)
		if s.version == types.ZarrV2 {
			w, err = newV2Writer(cfg, s.pool, s.factory, s.logger)
		} else {
			w, err = newV3Writer(cfg, s.pool, s.factory, s.logger)
		}
		if err != nil {
			return err
		}
		s.writers = append(s.writers, w)
	}

	return nil
}

// latch records the first fatal error. Caller must hold mu.
func (s *Stream) latch(err error) {
	if s.latched == nil {
		s.latched = err
		s.metrics.IncErrors()
		s.logger.Error("stream error latched", map[string]any{"error": err.Error()})
	}
}

// Append consumes data, slicing it into whole frames and dispatching
// each to the pyramid. It returns the number of bytes consumed; a short
// count means an error has been latched and further appends will refuse.
func (s *Stream) Append(data []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finalized {
		return 0, ErrStreamFinalized
	}
	if s.latched != nil {
		return 0, fmt.Errorf("cannot append data: %w", s.latched)
	}
	if len(data) == 0 {
		return 0, nil
	}

	n, err := s.assembler.append(data)
	s.metrics.AddBytesAppended(int64(n))
	if err != nil {
		s.latch(err)
	}
	return n, err
}

// writeFrame hands one whole frame to the level-0 writer, then walks the
// pyramid. Called by the assembler under the stream mutex.
func (s *Stream) writeFrame(frame []byte) error {
	s.metrics.IncFramesAssembled()

	n, err := s.writers[0].WriteFrame(frame)
	if err != nil {
		return err
	}
	if n != len(frame) {
		return errors.New("incomplete write to full-resolution array")
	}
	s.metrics.IncFramesWritten()

	if !s.multiscale {
		return nil
	}
	return s.writeMultiscaleFrames(frame)
}

// writeMultiscaleFrames propagates one level-0 frame down the pyramid.
// At each level the downsampled frame either waits for its partner or is
// averaged with the stashed one, written, and passed deeper.
func (s *Stream) writeMultiscaleFrames(frame []byte) error {
	dt := s.dims.DataType()
	width := int(s.dims.WidthDim().ArraySizePx)
	height := int(s.dims.HeightDim().ArraySizePx)

	data := frame
	for level := 1; level < len(s.writers); level++ {
		dst, w, h := scaleFrame(data, dt, width, height)
		width, height = w, h

		if s.scaledFrames[level] == nil {
			s.scaledFrames[level] = dst
			return nil
		}

		if err := averageTwoFrames(dst, s.scaledFrames[level], dt); err != nil {
			return err
		}
		if _, err := s.writers[level].WriteFrame(dst); err != nil {
			return fmt.Errorf("failed to write frame to level %d: %w", level, err)
		}
		s.metrics.IncFramesWritten()
		s.scaledFrames[level] = nil

		data = dst
	}
	return nil
}

// WriteCustomMetadata stores caller-provided JSON at <root>/acquire.json.
// Malformed JSON is rejected; a second write without overwrite fails with
// WillNotOverwrite.
func (s *Stream) WriteCustomMetadata(jsonText string, overwrite bool) types.StatusCode {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finalized {
		return types.StatusInternalError
	}

	var parsed any
	if jsonText == "" || json.Unmarshal([]byte(jsonText), &parsed) != nil {
		s.logger.Error("invalid custom metadata", map[string]any{"json": jsonText})
		return types.StatusInvalidArgument
	}

	if _, written := s.metadataSinks[customMetadataKey]; written {
		if !overwrite {
			s.logger.Error("custom metadata already written, use overwrite flag", nil)
			return types.StatusWillNotOverwrite
		}
		// Replace the sink so the rewrite truncates the previous document.
		if err := sink.Finalize(s.metadataSinks[customMetadataKey]); err != nil {
			s.logger.Warn("error flushing custom metadata sink", map[string]any{"error": err.Error()})
		}
		delete(s.metadataSinks, customMetadataKey)
	}

	ms, err := s.factory.MakeSink(s.storeRoot + "/" + customMetadataKey)
	if err != nil {
		s.logger.Error("error creating custom metadata sink", map[string]any{"error": err.Error()})
		return types.StatusIOError
	}
	s.metadataSinks[customMetadataKey] = ms

	data, err := json.MarshalIndent(parsed, "", "    ")
	if err != nil {
		return types.StatusInternalError
	}
	if err := ms.Write(0, data); err != nil {
		s.logger.Error("error writing custom metadata", map[string]any{"error": err.Error()})
		return types.StatusIOError
	}
	return types.StatusSuccess
}

// writeMetadataDocTo serializes doc and writes it to the named metadata sink.
func (s *Stream) writeMetadataDocTo(key string, doc any) error {
	ms, ok := s.metadataSinks[key]
	if !ok || ms == nil {
		return fmt.Errorf("metadata sink %q not found", key)
	}
	data, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		return err
	}
	if err := ms.Write(0, data); err != nil {
		return fmt.Errorf("error writing %s: %w", key, err)
	}
	return nil
}

// writeBaseMetadata emits the construction-time document: OME attributes
// for v2, the URL-keyed base descriptor for v3.
func (s *Stream) writeBaseMetadata() error {
	if s.version == types.ZarrV2 {
		return s.writeMetadataDocTo(".zattrs", makeV2Attrs(s.dims, len(s.writers)))
	}
	return s.writeMetadataDocTo("zarr.json", makeV3BaseMetadata())
}

// writeGroupMetadata emits the group descriptor. It runs at construction
// and again at finalize; the finalize copy is authoritative.
func (s *Stream) writeGroupMetadata() error {
	if s.version == types.ZarrV2 {
		return s.writeMetadataDocTo(".zgroup", makeV2GroupMetadata())
	}
	return s.writeMetadataDocTo("zarr.json", makeV3GroupMetadata(s.dims, len(s.writers)))
}

// Finalize flushes every partial band, emits terminal metadata, releases
// all sinks, and drains the worker pool. Failures are reported but
// finalization continues through the remaining steps. A second call is a
// no-op returning success.
func (s *Stream) Finalize() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finalized {
		return nil
	}
	s.finalized = true

	var errs error

	if err := s.writeGroupMetadata(); err != nil {
		errs = multierr.Append(errs, err)
	}

	for name, ms := range s.metadataSinks {
		if err := sink.Finalize(ms); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("failed to finalize %s: %w", name, err))
		}
	}
	s.metadataSinks = nil

	for level, w := range s.writers {
		if err := w.Finalize(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("failed to finalize array %d: %w", level, err))
		}
	}

	s.pool.Drain()

	if errs != nil {
		s.metrics.IncErrors()
	}
	s.logger.Info("stream finalized", s.metrics.Snapshot().Fields())

	return errs
}

// LastError returns the latched error message, or "".
func (s *Stream) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latched == nil {
		return ""
	}
	return s.latched.Error()
}

// Metrics returns a snapshot of the stream's counters.
func (s *Stream) Metrics() metrics.Snapshot {
	return s.metrics.Snapshot()
}
