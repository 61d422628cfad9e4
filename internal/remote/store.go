// Package remote defines the release store that artifacts are published to
// and fetched from.
//
// A store is organized as repositories holding tagged releases, each release
// holding named assets. Implementations live in sub-packages (GitHub
// Releases, S3); FakeStore is an in-memory implementation for tests.
package remote

import (
	"context"
	"io"
)

// Asset is one downloadable object attached to a release.
type Asset struct {
	ID          int64
	Name        string
	URL         string
	Size        int64
	ContentType string
}

// Release is a tagged collection of assets.
type Release struct {
	ID     int64
	Tag    string
	Name   string
	Assets []Asset
}

// Find returns the asset with the given name.
func (r *Release) Find(name string) (*Asset, bool) {
	for i := range r.Assets {
		if r.Assets[i].Name == name {
			return &r.Assets[i], true
		}
	}
	return nil, false
}

// Store is the capability set the sync engine needs from a release store.
// Every method may block on the network.
type Store interface {
	// GetRelease returns the release tagged tag, or an error wrapping
	// ErrReleaseNotFound.
	GetRelease(ctx context.Context, repo, tag string) (*Release, error)

	// CreateRelease creates a release for tag.
	CreateRelease(ctx context.Context, repo, tag, name string) (*Release, error)

	// UploadAsset streams size bytes from r as a new asset of release.
	UploadAsset(ctx context.Context, repo string, release *Release, name string, r io.Reader, size int64, contentType string) (*Asset, error)

	// DeleteAsset removes an asset from its release.
	DeleteAsset(ctx context.Context, repo string, asset *Asset) error

	// DownloadAsset streams the object at url into destPath, creating
	// parent directories.
	DownloadAsset(ctx context.Context, url, destPath string) error

	// GetRemoteHash returns the SHA-256 hex digest of the object at url
	// without keeping a local copy.
	GetRemoteHash(ctx context.Context, url string) (string, error)
}
