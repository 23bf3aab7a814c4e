// Package sink provides the byte destinations chunks and metadata are
// written to. A sink is an append-style destination backed by either a
// local file or an S3 object; writers never see which.
package sink

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/justapithecus/strata/pool"
	"github.com/justapithecus/strata/types"
)

// Sink is an append-style byte destination.
//
// Write places p at the given offset. Offsets must be non-decreasing
// except for rewrites of already-buffered prefixes (metadata documents are
// rewritten at offset zero on finalize). Flush forces the accumulated
// bytes out to storage; after Finalize the sink must not be used.
type Sink interface {
	Write(offset int64, p []byte) error
	Flush() error
}

// Finalize drains and releases a sink. Nil sinks are accepted and ignored.
func Finalize(s Sink) error {
	if s == nil {
		return nil
	}
	return s.Flush()
}

// PartsFunc reports the number of parts (chunks or shards) along axis i.
type PartsFunc func(dims *types.Dimensions, i int) uint64

// ChunksAlong counts chunk parts; used by the v2 writer.
func ChunksAlong(dims *types.Dimensions, i int) uint64 { return dims.ChunksAlong(i) }

// ShardsAlong counts shard parts; used by the v3 writer.
func ShardsAlong(dims *types.Dimensions, i int) uint64 { return dims.ShardsAlong(i) }

// ConstructDataPaths produces one path per leaf part under base. Axes from
// the second through the next-to-last contribute intermediate directories;
// the width axis contributes the leaf index.
func ConstructDataPaths(base string, dims *types.Dimensions, partsAlong PartsFunc) []string {
	paths := []string{base}

	for i := 1; i < dims.NDims()-1; i++ {
		nParts := partsAlong(dims, i)

		next := make([]string, 0, uint64(len(paths))*nParts)
		for _, path := range paths {
			for k := uint64(0); k < nParts; k++ {
				kstr := strconv.FormatUint(k, 10)
				if path == "" {
					next = append(next, kstr)
				} else {
					next = append(next, path+"/"+kstr)
				}
			}
		}
		paths = next
	}

	nLeaves := partsAlong(dims, dims.NDims()-1)
	out := make([]string, 0, uint64(len(paths))*nLeaves)
	for _, path := range paths {
		for j := uint64(0); j < nLeaves; j++ {
			out = append(out, path+"/"+strconv.FormatUint(j, 10))
		}
	}

	return out
}

// ParentPaths returns the unique parent directories of the given paths.
func ParentPaths(filePaths []string) []string {
	seen := make(map[string]struct{}, len(filePaths))
	var out []string
	for _, p := range filePaths {
		parent := filepath.Dir(p)
		if _, ok := seen[parent]; ok {
			continue
		}
		seen[parent] = struct{}{}
		out = append(out, parent)
	}
	return out
}

// MakeDirs creates the given directories in parallel. Pre-existing
// directories are accepted.
func MakeDirs(dirPaths []string, p *pool.Pool) error {
	if len(dirPaths) == 0 {
		return nil
	}

	batch := p.Batch()
	for _, dir := range dirPaths {
		batch.Go(func() error {
			return WrapWriteError(mkdirAll(dir), dir)
		})
	}
	return batch.Wait()
}

// TrimFileScheme strips a leading file:// scheme from a store path.
func TrimFileScheme(path string) string {
	return strings.TrimPrefix(path, "file://")
}
