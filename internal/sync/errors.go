package sync

import (
	"errors"
	"fmt"

	"github.com/danieljhkim/gda/internal/hash"
)

var (
	// ErrAssetNotInRelease is returned in strict mode when a manifest asset
	// has no artifact in the remote release.
	ErrAssetNotInRelease = errors.New("asset not found in release")

	// ErrAssetNotInManifest is returned in strict mode when a locked asset
	// has no destination in the manifest.
	ErrAssetNotInManifest = errors.New("asset has no destination in manifest")

	// ErrNothingToPush is returned when no manifest asset has a source
	// directory to pack.
	ErrNothingToPush = errors.New("no asset sources found, nothing to push")
)

// HashMismatchError reports a downloaded artifact whose digest disagrees
// with the lock. The destination is never touched when this is returned.
type HashMismatchError struct {
	Asset    string
	Expected string
	Actual   string
}

func (e *HashMismatchError) Error() string {
	return fmt.Sprintf("hash mismatch for %s: expected %s..., got %s...",
		e.Asset, hash.Short(e.Expected), hash.Short(e.Actual))
}
