package sink

import (
	"github.com/justapithecus/strata/types"
)

// Factory creates sinks for one storage backend. The stream coordinator
// picks the backend; writers only ever see the Factory and Sink
// abstractions.
type Factory interface {
	// MakeSink creates a single sink at the given key (a file path or
	// object key).
	MakeSink(key string) (Sink, error)

	// MakeDataSinks creates one sink per leaf part (chunk or shard)
	// under base, in the canonical path order of ConstructDataPaths.
	MakeDataSinks(base string, dims *types.Dimensions, partsAlong PartsFunc) ([]Sink, error)
}

// MetadataKeys returns the logical names of the group-level metadata
// documents for the given dialect.
func MetadataKeys(version types.ZarrVersion) []string {
	if version == types.ZarrV2 {
		return []string{".zattrs", ".zgroup"}
	}
	return []string{"zarr.json"}
}

// MakeMetadataSinks creates the group-level metadata sinks for a store,
// keyed by their logical names.
func MakeMetadataSinks(version types.ZarrVersion, factory Factory, root string) (map[string]Sink, error) {
	sinks := make(map[string]Sink)
	for _, key := range MetadataKeys(version) {
		s, err := factory.MakeSink(root + "/" + key)
		if err != nil {
			for _, open := range sinks {
				_ = Finalize(open)
			}
			return nil, err
		}
		sinks[key] = s
	}
	return sinks, nil
}
