package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/danieljhkim/gda/internal/fsops"
)

func TestEnsureGitignore(t *testing.T) {
	fs := fsops.NewRealFS()

	t.Run("creates the file", func(t *testing.T) {
		dir := t.TempDir()
		changed, err := EnsureGitignore(fs, dir)
		if err != nil || !changed {
			t.Fatalf("EnsureGitignore = %v, %v", changed, err)
		}
		data, _ := os.ReadFile(filepath.Join(dir, ".gitignore"))
		if string(data) != gitignoreBlock {
			t.Errorf(".gitignore = %q", data)
		}
	})

	t.Run("appends after existing content", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, ".gitignore")
		if err := os.WriteFile(path, []byte("node_modules"), 0644); err != nil {
			t.Fatal(err)
		}
		changed, err := EnsureGitignore(fs, dir)
		if err != nil || !changed {
			t.Fatalf("EnsureGitignore = %v, %v", changed, err)
		}
		data, _ := os.ReadFile(path)
		if !strings.HasPrefix(string(data), "node_modules\n\n# gda") {
			t.Errorf(".gitignore = %q", data)
		}
	})

	t.Run("leaves an existing entry alone", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, ".gitignore")
		if err := os.WriteFile(path, []byte("bin/\n  .gda  \n"), 0644); err != nil {
			t.Fatal(err)
		}
		changed, err := EnsureGitignore(fs, dir)
		if err != nil || changed {
			t.Fatalf("EnsureGitignore = %v, %v", changed, err)
		}
	})
}
