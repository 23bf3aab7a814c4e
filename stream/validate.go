package stream

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/justapithecus/strata/sink"
	"github.com/justapithecus/strata/types"
)

// validateSettings checks a settings struct end to end and returns the
// constructed dimension model.
func validateSettings(settings *types.Settings) (*types.Dimensions, error) {
	if settings == nil {
		return nil, errors.New("null settings")
	}

	if settings.Version != types.ZarrV2 && settings.Version != types.ZarrV3 {
		return nil, fmt.Errorf("invalid Zarr version: %d", settings.Version)
	}

	storePath := strings.TrimSpace(settings.StorePath)
	if storePath == "" {
		return nil, errors.New("store path is empty")
	}

	if settings.S3 != nil {
		if err := settings.S3.Validate(); err != nil {
			return nil, err
		}
	} else if err := validateFilesystemStorePath(sink.TrimFileScheme(storePath)); err != nil {
		return nil, err
	}

	if !settings.DataType.Valid() {
		return nil, fmt.Errorf("invalid data type: %d", settings.DataType)
	}

	if settings.Compression != nil {
		if err := settings.Compression.Validate(); err != nil {
			return nil, err
		}
	}

	dims, err := types.NewDimensions(settings.Dimensions, settings.DataType)
	if err != nil {
		return nil, err
	}

	if settings.Version == types.ZarrV3 {
		for i := 0; i < dims.NDims(); i++ {
			if dims.At(i).ShardSizeChunks == 0 {
				return nil, fmt.Errorf("dimension %q: shard size must be nonzero", dims.At(i).Name)
			}
		}
	}

	return dims, nil
}

// validateFilesystemStorePath checks that the store root can be created:
// its parent must exist, be a directory, and be writable.
func validateFilesystemStorePath(root string) error {
	parent := filepath.Dir(root)
	if parent == "" {
		parent = "."
	}

	info, err := os.Stat(parent)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("parent path %q does not exist or is not a directory", parent)
	}

	if info.Mode().Perm()&0o222 == 0 {
		return fmt.Errorf("parent path %q is not writable", parent)
	}

	return nil
}

// createLocalStore clears any previous dataset at root and creates a
// fresh directory.
func createLocalStore(root string) error {
	if _, err := os.Stat(root); err == nil {
		if err := os.RemoveAll(root); err != nil {
			return fmt.Errorf("failed to remove existing store path %q: %w", root, err)
		}
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("failed to create store path %q: %w", root, err)
	}
	return nil
}
