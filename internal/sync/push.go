package sync

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"

	"github.com/danieljhkim/gda/internal/archive"
	"github.com/danieljhkim/gda/internal/clock"
	"github.com/danieljhkim/gda/internal/manifest"
	"github.com/danieljhkim/gda/internal/remote"
)

// push packs every asset whose source exists and uploads it to the release
// named by the manifest version.
func (s *Syncer) push(ctx context.Context, req *PushRequest) (*PushResult, error) {
	start := s.clock.Now()
	paths := req.Paths

	m, err := manifest.Load(s.fs, paths.Manifest)
	if err != nil {
		return nil, err
	}
	if err := paths.EnsureDirectories(); err != nil {
		return nil, err
	}

	result := &PushResult{
		Repository: m.Repository,
		Version:    m.Version,
		DryRun:     req.DryRun,
	}

	// Pack everything before talking to the store so archive errors surface first
	var packed []int
	for _, asset := range m.Assets {
		pa, err := s.pack(asset, paths.Resolve(asset.Source), paths.Build)
		if err != nil {
			return nil, err
		}
		result.Assets = append(result.Assets, pa)
		if pa.SkipReason == "" {
			packed = append(packed, len(result.Assets)-1)
		}
	}
	if len(packed) == 0 {
		return nil, ErrNothingToPush
	}
	if req.DryRun {
		result.Duration = clock.Since(s.clock, start)
		return result, nil
	}

	release, err := s.store.GetRelease(ctx, m.Repository, m.Version)
	if errors.Is(err, remote.ErrReleaseNotFound) {
		s.log.Info().Str("version", m.Version).Msg("creating release")
		release, err = s.store.CreateRelease(ctx, m.Repository, m.Version, m.Version)
		if err != nil {
			return nil, fmt.Errorf("failed to create release %s: %w", m.Version, err)
		}
		result.ReleaseCreated = true
	} else if err != nil {
		return nil, fmt.Errorf("failed to get release %s: %w", m.Version, err)
	}

	for _, i := range packed {
		if err := s.upload(ctx, m.Repository, release, &result.Assets[i], req.Overwrite); err != nil {
			return nil, err
		}
	}

	result.Duration = clock.Since(s.clock, start)
	return result, nil
}

func (s *Syncer) pack(asset *manifest.Asset, sourceDir, buildDir string) (PushedAsset, error) {
	pa := PushedAsset{Name: asset.Name, ArtifactName: asset.ArtifactName()}

	isDir, err := s.fs.IsDir(sourceDir)
	if err != nil {
		return pa, fmt.Errorf("failed to check source of %s: %w", asset.Name, err)
	}
	if !isDir {
		s.log.Warn().Str("asset", asset.Name).Str("source", sourceDir).Msg("source directory not found, skipping")
		pa.SkipReason = "source directory not found"
		return pa, nil
	}

	pa.ArtifactPath = filepath.Join(buildDir, pa.ArtifactName)
	sum, err := s.codec.Pack(sourceDir, pa.ArtifactPath, asset.Excludes)
	if err != nil {
		return pa, fmt.Errorf("failed to pack %s: %w", asset.Name, err)
	}
	info, err := s.fs.Lstat(pa.ArtifactPath)
	if err != nil {
		return pa, fmt.Errorf("failed to stat artifact: %w", err)
	}
	pa.SHA256 = sum
	pa.Size = info.Size()
	s.log.Debug().Str("asset", asset.Name).Str("sha256", sum).Int64("size", pa.Size).Msg("packed")
	return pa, nil
}

func (s *Syncer) upload(ctx context.Context, repo string, release *remote.Release, pa *PushedAsset, overwrite bool) error {
	log := s.log.With().Str("asset", pa.Name).Logger()

	if existing, ok := release.Find(pa.ArtifactName); ok {
		if !overwrite {
			log.Warn().Msgf("%s already exists in release, skipping", pa.ArtifactName)
			pa.SkipReason = "already exists in release"
			return nil
		}
		if err := s.store.DeleteAsset(ctx, repo, existing); err != nil {
			return fmt.Errorf("failed to replace %s: %w", pa.ArtifactName, err)
		}
		pa.Replaced = true
	}

	f, err := s.fs.Open(pa.ArtifactPath)
	if err != nil {
		return fmt.Errorf("failed to open artifact: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	if _, err := s.store.UploadAsset(ctx, repo, release, pa.ArtifactName, f, pa.Size, detectContentType(pa.ArtifactPath)); err != nil {
		return fmt.Errorf("failed to upload %s: %w", pa.ArtifactName, err)
	}
	pa.Uploaded = true
	log.Info().Int64("size", pa.Size).Msg("uploaded")
	return nil
}

// detectContentType reports the artifact's type, collapsing zip-based
// formats such as jar or docx to plain zip.
func detectContentType(path string) string {
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return archive.ContentType
	}
	for m := mt; m != nil; m = m.Parent() {
		if m.Is(archive.ContentType) {
			return archive.ContentType
		}
	}
	return mt.String()
}
