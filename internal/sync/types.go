package sync

import (
	"time"

	"github.com/danieljhkim/gda/internal/config"
	"github.com/danieljhkim/gda/internal/lockfile"
	"github.com/danieljhkim/gda/internal/manifest"
)

// ResolveRequest contains parameters for resolving a manifest into a lock.
type ResolveRequest struct {
	// Paths locates the project
	Paths *config.Paths

	// Strict fails the resolve when an asset is missing from the release
	Strict bool
}

// ResolveResult contains the result of a resolve.
type ResolveResult struct {
	// Lock is the freshly resolved lock
	Lock *lockfile.Lockfile

	// Skipped lists manifest assets that had no artifact in the release
	Skipped []string
}

// PullAllOptions controls a pull over every locked asset.
type PullAllOptions struct {
	// CacheDir receives downloads while they are verified
	CacheDir string

	// Force downloads even when the destination verifies
	Force bool

	// NoPrune keeps files in a destination that the artifact did not produce
	NoPrune bool

	// Strict fails on locked assets without a destination
	Strict bool
}

// AssetResult is the outcome of pulling one asset.
type AssetResult struct {
	Name string

	// Destination is the absolute extraction directory
	Destination string

	// Files is the extracted file list recorded in the lock
	Files []string

	// UpToDate is set when the destination verified and nothing was downloaded
	UpToDate bool

	// Pruned lists files removed from the destination
	Pruned []string

	// Skipped is set when the asset had no destination
	Skipped bool
}

// PullAllResult contains the result of PullAll.
type PullAllResult struct {
	Assets []AssetResult

	// Changed reports whether any locked file list was updated
	Changed bool
}

// PullRequest contains parameters for the full pull pipeline.
type PullRequest struct {
	Paths *config.Paths

	// Force downloads every asset even when its destination verifies
	Force bool

	// NoPrune keeps untracked files in destinations
	NoPrune bool

	// Strict turns skipped assets into errors
	Strict bool
}

// PullResult contains the result of a pull.
type PullResult struct {
	// Resolved is set when the lock was missing or stale and was re-resolved
	Resolved bool

	// ResolveReason explains why the lock was re-resolved
	ResolveReason string

	// ResolveSkipped lists assets the re-resolve could not find
	ResolveSkipped []string

	Assets []AssetResult

	// LockUpdated is set when the lockfile was rewritten with new file lists
	LockUpdated bool

	Duration time.Duration
}

// PushRequest contains parameters for packing and uploading assets.
type PushRequest struct {
	Paths *config.Paths

	// Overwrite replaces artifacts that already exist in the release
	Overwrite bool

	// DryRun packs artifacts without contacting the store
	DryRun bool
}

// PushedAsset is the outcome of pushing one asset.
type PushedAsset struct {
	Name string

	// ArtifactName is the remote asset name
	ArtifactName string

	// ArtifactPath is the staged archive in the build directory
	ArtifactPath string

	SHA256 string
	Size   int64

	// Uploaded is set when the artifact was sent to the store
	Uploaded bool

	// Replaced is set when an existing remote artifact was deleted first
	Replaced bool

	// SkipReason explains why an asset was not packed or not uploaded
	SkipReason string
}

// PushResult contains the result of a push.
type PushResult struct {
	Repository string
	Version    string

	Assets []PushedAsset

	// ReleaseCreated is set when the release did not exist before the push
	ReleaseCreated bool

	DryRun   bool
	Duration time.Duration
}

// StatusRequest contains parameters for a status report.
type StatusRequest struct {
	Paths *config.Paths
}

// AssetStatus describes one manifest asset against the lock and disk.
type AssetStatus struct {
	Name        string
	Destination string

	// Locked is set when the lock has an entry for the asset
	Locked bool

	// Verified is set when every locked file exists in the destination
	Verified bool

	SHA256 string
	Files  int
}

// StatusResult contains a read-only report of a project.
type StatusResult struct {
	Manifest *manifest.Manifest

	// LockFound is set when gda.lock exists and parses
	LockFound bool

	// LockStale is set when the lock was resolved for another version
	LockStale   bool
	LockVersion string

	Assets []AssetStatus

	// Orphans lists locked assets that the manifest no longer declares
	Orphans []string

	Overlaps []manifest.Overlap
}
