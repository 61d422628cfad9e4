// Package config locates gda's project files and loads user settings.
//
// A project is the directory holding gda.yml. Everything gda writes next to
// it lives in that directory: the lockfile, and a .gda/ scratch directory
// with in-flight downloads (cache/) and staged archives (build/). The
// scratch directory is safe to delete between runs.
package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DirName is the per-project scratch directory.
	DirName = ".gda"

	// ManifestFile and LockFile are the project's state files.
	ManifestFile = "gda.yml"
	LockFile     = "gda.lock"
)

// Paths contains all the filesystem paths of one project.
type Paths struct {
	// Workdir is the directory containing the manifest. Asset sources and
	// destinations are relative to it.
	Workdir string

	Manifest string
	Lockfile string

	// Root is the scratch directory (<workdir>/.gda)
	Root string

	// Cache holds downloads while they are verified
	Cache string

	// Build holds archives staged by push
	Build string
}

// ProjectPaths derives the project layout from the manifest location.
func ProjectPaths(manifestPath string) (*Paths, error) {
	if manifestPath == "" {
		manifestPath = ManifestFile
	}
	abs, err := filepath.Abs(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve manifest path: %w", err)
	}

	workdir := filepath.Dir(abs)
	root := filepath.Join(workdir, DirName)
	return &Paths{
		Workdir:  workdir,
		Manifest: abs,
		Lockfile: filepath.Join(workdir, LockFile),
		Root:     root,
		Cache:    filepath.Join(root, "cache"),
		Build:    filepath.Join(root, "build"),
	}, nil
}

// Resolve returns a manifest-relative path as an absolute path.
func (p *Paths) Resolve(rel string) string {
	if filepath.IsAbs(rel) {
		return filepath.Clean(rel)
	}
	return filepath.Join(p.Workdir, filepath.FromSlash(rel))
}

// EnsureDirectories creates the scratch directories if they don't exist.
func (p *Paths) EnsureDirectories() error {
	for _, dir := range []string{p.Root, p.Build} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}
