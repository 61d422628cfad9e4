// Package sync reconciles local asset directories with a remote release.
//
// The pipeline is resolve (manifest -> lock) followed by pull (lock -> disk).
// Push is independent and only writes to the remote store.
package sync

import (
	"context"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/danieljhkim/gda/internal/archive"
	"github.com/danieljhkim/gda/internal/clock"
	"github.com/danieljhkim/gda/internal/fsops"
	"github.com/danieljhkim/gda/internal/hash"
	"github.com/danieljhkim/gda/internal/lockfile"
	"github.com/danieljhkim/gda/internal/remote"
)

// Syncer orchestrates resolve, pull and push against a remote store.
type Syncer struct {
	store  remote.Store
	codec  *archive.Codec
	fs     fsops.FS
	hasher hash.Hasher
	clock  clock.Clock
	log    zerolog.Logger
}

// New creates a new Syncer with the specified dependencies.
func New(
	store remote.Store,
	codec *archive.Codec,
	fs fsops.FS,
	hasher hash.Hasher,
	clock clock.Clock,
	log zerolog.Logger,
) *Syncer {
	return &Syncer{
		store:  store,
		codec:  codec,
		fs:     fs,
		hasher: hasher,
		clock:  clock,
		log:    log,
	}
}

// Pull runs the full pull pipeline for a project.
func (s *Syncer) Pull(ctx context.Context, req *PullRequest) (*PullResult, error) {
	return s.pull(ctx, req)
}

// Push packs and uploads the project's assets.
func (s *Syncer) Push(ctx context.Context, req *PushRequest) (*PushResult, error) {
	return s.push(ctx, req)
}

// Status reports the project's state without touching the network.
func (s *Syncer) Status(ctx context.Context, req *StatusRequest) (*StatusResult, error) {
	return s.status(ctx, req)
}

// Verify reports whether every file recorded for asset exists under destDir.
// It checks existence only; an asset with no recorded files never verifies.
func (s *Syncer) Verify(asset *lockfile.LockedAsset, destDir string) bool {
	if !asset.Verified() {
		return false
	}
	if ok, err := s.fs.IsDir(destDir); err != nil || !ok {
		return false
	}
	for _, rel := range asset.Files {
		if err := s.fs.ValidateRelPath(rel); err != nil {
			return false
		}
		if ok, err := s.fs.Exists(filepath.Join(destDir, filepath.FromSlash(rel))); err != nil || !ok {
			return false
		}
	}
	return true
}
