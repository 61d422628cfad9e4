package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/danieljhkim/gda/internal/fsops"
)

const gitignoreBlock = "# gda cache and build artifacts\n" + DirName + "/\n"

// EnsureGitignore adds the scratch directory to workdir/.gitignore. It
// reports whether the file changed.
func EnsureGitignore(fs fsops.FS, workdir string) (bool, error) {
	path := filepath.Join(workdir, ".gitignore")

	var content string
	exists, err := fs.Exists(path)
	if err != nil {
		return false, fmt.Errorf("failed to check .gitignore: %w", err)
	}
	if exists {
		data, err := fs.ReadFile(path)
		if err != nil {
			return false, fmt.Errorf("failed to read .gitignore: %w", err)
		}
		content = string(data)
	}

	for _, line := range strings.Split(content, "\n") {
		switch strings.TrimSpace(line) {
		case DirName, DirName + "/":
			return false, nil
		}
	}

	if content != "" {
		if !strings.HasSuffix(content, "\n") {
			content += "\n"
		}
		content += "\n"
	}
	content += gitignoreBlock

	if err := fs.AtomicWrite(path, []byte(content), 0644); err != nil {
		return false, fmt.Errorf("failed to write .gitignore: %w", err)
	}
	return true, nil
}
