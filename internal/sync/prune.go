package sync

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"slices"
)

// Prune deletes every regular file under destDir whose relative path is not
// in keep, then removes directories left empty, deepest first. destDir itself
// is kept. It returns the removed files as slash-separated relative paths.
func (s *Syncer) Prune(destDir string, keep []string) ([]string, error) {
	keepSet := make(map[string]struct{}, len(keep))
	for _, rel := range keep {
		keepSet[rel] = struct{}{}
	}

	if ok, err := s.fs.IsDir(destDir); err != nil {
		return nil, err
	} else if !ok {
		return nil, nil
	}

	var removed, dirs []string
	err := filepath.WalkDir(destDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == destDir {
			return nil
		}
		if d.IsDir() {
			dirs = append(dirs, path)
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(destDir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if _, ok := keepSet[rel]; ok {
			return nil
		}
		if err := s.fs.Remove(path); err != nil {
			return fmt.Errorf("failed to remove %s: %w", rel, err)
		}
		removed = append(removed, rel)
		return nil
	})
	if err != nil {
		return removed, err
	}

	// WalkDir visits parents before children
	slices.Reverse(dirs)
	for _, dir := range dirs {
		if _, err := s.fs.RemoveIfEmpty(dir); err != nil {
			return removed, err
		}
	}

	if len(removed) > 0 {
		s.log.Debug().Str("destination", destDir).Strs("files", removed).Msg("pruned")
	}
	return removed, nil
}
