package sync

import (
	"context"
	"fmt"

	"github.com/danieljhkim/gda/internal/lockfile"
	"github.com/danieljhkim/gda/internal/manifest"
)

// Resolve looks up every manifest asset in the release named by the
// manifest version and returns a fresh lock. Assets without an artifact in
// the release are skipped unless strict is set. Nothing is written.
func (s *Syncer) Resolve(ctx context.Context, m *manifest.Manifest, strict bool) (*ResolveResult, error) {
	log := s.log.With().Str("repository", m.Repository).Str("version", m.Version).Logger()
	log.Debug().Msg("resolving release")

	release, err := s.store.GetRelease(ctx, m.Repository, m.Version)
	if err != nil {
		return nil, fmt.Errorf("failed to get release %s: %w", m.Version, err)
	}

	lock := lockfile.New(m.Version)
	result := &ResolveResult{Lock: lock}
	for _, asset := range m.Assets {
		artifact, ok := release.Find(asset.ArtifactName())
		if !ok {
			if strict {
				return nil, fmt.Errorf("%w: %s in %s@%s", ErrAssetNotInRelease, asset.ArtifactName(), m.Repository, m.Version)
			}
			log.Warn().Str("asset", asset.Name).Msgf("%s not found in release, skipping", asset.ArtifactName())
			result.Skipped = append(result.Skipped, asset.Name)
			continue
		}

		sum, err := s.store.GetRemoteHash(ctx, artifact.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to hash %s: %w", asset.ArtifactName(), err)
		}
		lock.Set(&lockfile.LockedAsset{
			Name:   asset.Name,
			URL:    artifact.URL,
			SHA256: sum,
			Files:  []string{},
		})
		log.Debug().Str("asset", asset.Name).Str("sha256", sum).Msg("resolved")
	}
	return result, nil
}

// ResolveAndSave resolves the project manifest and writes the lockfile once
// every lookup has succeeded. A failed resolve leaves the previous lock as is.
func (s *Syncer) ResolveAndSave(ctx context.Context, req *ResolveRequest) (*ResolveResult, error) {
	m, err := manifest.Load(s.fs, req.Paths.Manifest)
	if err != nil {
		return nil, err
	}
	result, err := s.Resolve(ctx, m, req.Strict)
	if err != nil {
		return nil, err
	}
	if err := result.Lock.Save(s.fs, req.Paths.Lockfile); err != nil {
		return nil, fmt.Errorf("failed to write lockfile: %w", err)
	}
	return result, nil
}
