package sync

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/danieljhkim/gda/internal/clock"
	"github.com/danieljhkim/gda/internal/lockfile"
	"github.com/danieljhkim/gda/internal/manifest"
)

// PullAsset makes destDir hold exactly the artifact of asset and returns the
// extracted file list. Without force, an asset that already verifies is
// returned as is with no network or disk access.
func (s *Syncer) PullAsset(ctx context.Context, asset *lockfile.LockedAsset, destDir, cacheDir string, force bool) ([]string, error) {
	files, _, err := s.pullAsset(ctx, asset, destDir, cacheDir, force)
	return files, err
}

// pullAsset also reports whether the artifact was downloaded.
func (s *Syncer) pullAsset(ctx context.Context, asset *lockfile.LockedAsset, destDir, cacheDir string, force bool) ([]string, bool, error) {
	if err := s.fs.ValidateIdentifier(asset.Name); err != nil {
		return nil, false, fmt.Errorf("invalid asset name: %w", err)
	}
	if !force && s.Verify(asset, destDir) {
		return asset.Files, false, nil
	}

	log := s.log.With().Str("asset", asset.Name).Logger()
	if err := s.fs.MkdirAll(cacheDir, 0755); err != nil {
		return nil, false, fmt.Errorf("failed to create cache directory: %w", err)
	}
	cachePath := filepath.Join(cacheDir, asset.Name+".zip")
	defer s.cleanupCache(cachePath, cacheDir)

	log.Debug().Str("url", asset.URL).Msg("downloading")
	if err := s.store.DownloadAsset(ctx, asset.URL, cachePath); err != nil {
		return nil, false, fmt.Errorf("failed to download %s: %w", asset.Name, err)
	}

	actual, err := s.codec.HashFile(cachePath)
	if err != nil {
		return nil, false, fmt.Errorf("failed to hash download: %w", err)
	}
	if actual != asset.SHA256 {
		return nil, false, &HashMismatchError{Asset: asset.Name, Expected: asset.SHA256, Actual: actual}
	}

	// Destinations are replaced wholesale, never merged
	if exists, err := s.fs.Exists(destDir); err != nil {
		return nil, false, fmt.Errorf("failed to check destination: %w", err)
	} else if exists {
		if err := s.fs.RemoveAll(destDir); err != nil {
			return nil, false, fmt.Errorf("failed to clear destination: %w", err)
		}
	}

	files, err := s.codec.Unpack(cachePath, destDir)
	if err != nil {
		return nil, false, fmt.Errorf("failed to extract %s: %w", asset.Name, err)
	}
	log.Debug().Int("files", len(files)).Str("destination", destDir).Msg("extracted")
	return files, true, nil
}

func (s *Syncer) cleanupCache(cachePath, cacheDir string) {
	if err := s.fs.Remove(cachePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.log.Warn().Err(err).Str("path", cachePath).Msg("failed to remove cached download")
	}
	if _, err := s.fs.RemoveIfEmpty(cacheDir); err != nil {
		s.log.Warn().Err(err).Str("path", cacheDir).Msg("failed to remove cache directory")
	}
}

// PullAll pulls every locked asset that has a destination, pruning each
// destination afterward unless disabled. File lists are updated on lock in
// memory; the result reports whether any changed. On failure the result
// still describes the assets pulled so far.
func (s *Syncer) PullAll(ctx context.Context, lock *lockfile.Lockfile, destinations map[string]string, opts PullAllOptions) (*PullAllResult, error) {
	result := &PullAllResult{}
	for _, asset := range lock.Assets {
		dest, ok := destinations[asset.Name]
		if !ok {
			if opts.Strict {
				return result, fmt.Errorf("%w: %s", ErrAssetNotInManifest, asset.Name)
			}
			s.log.Warn().Str("asset", asset.Name).Msg("no destination in manifest, skipping")
			result.Assets = append(result.Assets, AssetResult{Name: asset.Name, Skipped: true})
			continue
		}

		files, downloaded, err := s.pullAsset(ctx, asset, dest, opts.CacheDir, opts.Force)
		if err != nil {
			return result, err
		}
		if !slices.Equal(files, asset.Files) {
			asset.Files = files
			result.Changed = true
		}

		ar := AssetResult{
			Name:        asset.Name,
			Destination: dest,
			Files:       files,
			UpToDate:    !downloaded,
		}
		if !opts.NoPrune {
			pruned, err := s.Prune(dest, files)
			if err != nil {
				return result, fmt.Errorf("failed to prune %s: %w", asset.Name, err)
			}
			ar.Pruned = pruned
		}
		result.Assets = append(result.Assets, ar)
	}
	return result, nil
}

// pull loads the project, re-resolves a missing or stale lock, pulls every
// asset and writes the lock at most once.
func (s *Syncer) pull(ctx context.Context, req *PullRequest) (*PullResult, error) {
	start := s.clock.Now()
	paths := req.Paths

	m, err := manifest.Load(s.fs, paths.Manifest)
	if err != nil {
		return nil, err
	}

	result := &PullResult{}
	lock, err := lockfile.Load(s.fs, paths.Lockfile)
	switch {
	case errors.Is(err, lockfile.ErrLockfileNotFound):
		result.ResolveReason = "lockfile not found"
	case err != nil:
		return nil, err
	case !lock.Matches(m.Version):
		result.ResolveReason = fmt.Sprintf("lockfile version %s does not match manifest version %s", lock.Version, m.Version)
	}

	if result.ResolveReason != "" {
		s.log.Info().Str("reason", result.ResolveReason).Msg("resolving before pull")
		resolved, err := s.Resolve(ctx, m, req.Strict)
		if err != nil {
			return nil, err
		}
		lock = resolved.Lock
		result.Resolved = true
		result.ResolveSkipped = resolved.Skipped
	}

	destinations := make(map[string]string, len(m.Assets))
	for _, asset := range m.Assets {
		destinations[asset.Name] = paths.Resolve(asset.Destination)
	}

	all, pullErr := s.PullAll(ctx, lock, destinations, PullAllOptions{
		CacheDir: paths.Cache,
		Force:    req.Force,
		NoPrune:  req.NoPrune,
		Strict:   req.Strict,
	})
	result.Assets = all.Assets

	// Assets already extracted are recorded even when a later one failed
	if result.Resolved || all.Changed {
		if err := lock.Save(s.fs, paths.Lockfile); err != nil {
			return nil, fmt.Errorf("failed to write lockfile: %w", err)
		}
		result.LockUpdated = true
	}
	if pullErr != nil {
		return nil, pullErr
	}

	result.Duration = clock.Since(s.clock, start)
	return result, nil
}
