package sink

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/justapithecus/strata/pool"
	"github.com/justapithecus/strata/types"
)

// mkdirAll creates dir and any missing parents; an existing directory is
// not an error.
func mkdirAll(dir string) error {
	return os.MkdirAll(dir, 0o755)
}

// FileSink writes to a seekable file on the local filesystem.
// Not safe for concurrent use; each sink has a single writer.
type FileSink struct {
	file *os.File
	path string
}

// NewFileSink opens (creating or truncating) the file at path.
func NewFileSink(path string) (*FileSink, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, WrapWriteError(err, path)
	}
	return &FileSink{file: f, path: path}, nil
}

// Write implements Sink by placing p at the given file offset.
func (s *FileSink) Write(offset int64, p []byte) error {
	if s.file == nil {
		return fmt.Errorf("write %s: sink already finalized", s.path)
	}
	_, err := s.file.WriteAt(p, offset)
	return WrapWriteError(err, s.path)
}

// Flush implements Sink by syncing and closing the descriptor.
func (s *FileSink) Flush() error {
	if s.file == nil {
		return nil
	}
	f := s.file
	s.file = nil

	if err := f.Sync(); err != nil {
		_ = f.Close()
		return WrapFlushError(err, s.path)
	}
	return WrapFlushError(f.Close(), s.path)
}

var _ Sink = (*FileSink)(nil)

// MakeFileSink creates a file sink at path, creating parent directories
// as needed. A file:// scheme prefix is accepted.
func MakeFileSink(path string) (Sink, error) {
	path = TrimFileScheme(path)
	if path == "" {
		return nil, fmt.Errorf("file path must not be empty")
	}

	if err := mkdirAll(filepath.Dir(path)); err != nil {
		return nil, WrapWriteError(err, filepath.Dir(path))
	}
	return NewFileSink(path)
}

// FileFactory creates file-backed sinks. Data sinks are opened in
// parallel on the shared pool.
type FileFactory struct {
	pool *pool.Pool
}

// NewFileFactory creates a factory using p for parallel creation passes.
func NewFileFactory(p *pool.Pool) *FileFactory {
	return &FileFactory{pool: p}
}

// MakeSink implements Factory.
func (f *FileFactory) MakeSink(key string) (Sink, error) {
	return MakeFileSink(key)
}

// MakeDataSinks implements Factory: one sink per leaf part under base,
// with a parallel directory-creation pass first.
func (f *FileFactory) MakeDataSinks(base string, dims *types.Dimensions, partsAlong PartsFunc) ([]Sink, error) {
	base = TrimFileScheme(base)
	if base == "" {
		return nil, fmt.Errorf("base path must not be empty")
	}

	paths := ConstructDataPaths(base, dims, partsAlong)
	if err := MakeDirs(ParentPaths(paths), f.pool); err != nil {
		return nil, fmt.Errorf("creating dataset directories: %w", err)
	}

	sinks := make([]Sink, len(paths))
	batch := f.pool.Batch()
	for i, path := range paths {
		batch.Go(func() error {
			s, err := NewFileSink(path)
			if err != nil {
				return err
			}
			sinks[i] = s
			return nil
		})
	}
	if err := batch.Wait(); err != nil {
		// Release whatever was opened before the failure.
		for _, s := range sinks {
			if s != nil {
				_ = s.Flush()
			}
		}
		return nil, err
	}

	return sinks, nil
}

var _ Factory = (*FileFactory)(nil)
