package sync

import (
	"context"
	"errors"

	"github.com/danieljhkim/gda/internal/lockfile"
	"github.com/danieljhkim/gda/internal/manifest"
)

func (s *Syncer) status(ctx context.Context, req *StatusRequest) (*StatusResult, error) {
	paths := req.Paths

	m, err := manifest.Load(s.fs, paths.Manifest)
	if err != nil {
		return nil, err
	}
	result := &StatusResult{
		Manifest: m,
		Overlaps: m.Overlaps(),
	}

	lock, err := lockfile.Load(s.fs, paths.Lockfile)
	if err != nil && !errors.Is(err, lockfile.ErrLockfileNotFound) {
		return nil, err
	}
	if lock != nil {
		result.LockFound = true
		result.LockVersion = lock.Version
		result.LockStale = !lock.Matches(m.Version)
	}

	for _, asset := range m.Assets {
		as := AssetStatus{
			Name:        asset.Name,
			Destination: paths.Resolve(asset.Destination),
		}
		if lock != nil {
			if locked, ok := lock.Asset(asset.Name); ok {
				as.Locked = true
				as.SHA256 = locked.SHA256
				as.Files = len(locked.Files)
				as.Verified = s.Verify(locked, as.Destination)
			}
		}
		result.Assets = append(result.Assets, as)
	}

	if lock != nil {
		for _, locked := range lock.Assets {
			if _, ok := m.Asset(locked.Name); !ok {
				result.Orphans = append(result.Orphans, locked.Name)
			}
		}
	}
	return result, nil
}
