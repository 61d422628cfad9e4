// Package archive implements the deterministic directory <-> zip codec.
//
// An artifact is a zip whose entries are the regular files of a directory,
// sorted by slash-separated relative path, each stored with the same fixed
// modification time and mode and compressed with Deflate. Nothing about the
// machine or the moment of packing leaks into the bytes, so packing the same
// tree with the same excludes always yields the same SHA-256. The lockfile
// relies on that: a digest recorded on one machine is checked on another.
package archive

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/klauspost/compress/zip"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"

	"github.com/danieljhkim/gda/internal/fsops"
	"github.com/danieljhkim/gda/internal/hash"
)

// FixedModTime is stamped on every entry (2020-01-01 00:00:00 UTC).
var FixedModTime = time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)

// entryMode is the permission recorded for every entry.
const entryMode os.FileMode = 0644

// ContentType is the MIME type of packed artifacts.
const ContentType = "application/zip"

// Codec packs, unpacks, lists and hashes artifacts.
type Codec struct {
	fs     fsops.FS
	hasher hash.Hasher
}

// NewCodec creates a Codec.
func NewCodec(fs fsops.FS, hasher hash.Hasher) *Codec {
	return &Codec{fs: fs, hasher: hasher}
}

// Collect returns the sorted slash-separated relative paths of every regular
// file under sourceDir that no exclude pattern matches.
func (c *Codec) Collect(sourceDir string, excludes []string) ([]string, error) {
	isDir, err := c.fs.IsDir(sourceDir)
	if err != nil {
		return nil, fmt.Errorf("failed to stat source directory: %w", err)
	}
	if !isDir {
		return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, sourceDir)
	}

	ex, err := CompileExcludes(excludes)
	if err != nil {
		return nil, err
	}

	var files []string
	err = filepath.WalkDir(sourceDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		// Symlinks and special files are not content
		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(sourceDir, path)
		if err != nil {
			return fmt.Errorf("failed to compute relative path: %w", err)
		}
		rel = filepath.ToSlash(rel)
		if ex.Match(rel) {
			return nil
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk source directory: %w", err)
	}

	sort.Strings(files)
	return files, nil
}

// Pack writes the artifact for sourceDir to outputPath and returns its
// SHA-256 hex digest.
func (c *Codec) Pack(sourceDir, outputPath string, excludes []string) (string, error) {
	files, err := c.Collect(sourceDir, excludes)
	if err != nil {
		return "", err
	}

	out, err := c.fs.Create(outputPath)
	if err != nil {
		return "", fmt.Errorf("failed to create archive: %w", err)
	}

	if err := writeEntries(out, sourceDir, files); err != nil {
		_ = out.Close()
		_ = c.fs.Remove(outputPath)
		return "", err
	}
	if err := out.Close(); err != nil {
		_ = c.fs.Remove(outputPath)
		return "", fmt.Errorf("failed to close archive: %w", err)
	}

	return c.HashFile(outputPath)
}

func writeEntries(w io.Writer, sourceDir string, files []string) error {
	zw := zip.NewWriter(w)
	for _, rel := range files {
		header := &zip.FileHeader{
			Name:     rel,
			Method:   zip.Deflate,
			Modified: FixedModTime,
		}
		header.SetMode(entryMode)

		entry, err := zw.CreateHeader(header)
		if err != nil {
			return fmt.Errorf("failed to add %s: %w", rel, err)
		}
		if err := copyFileInto(entry, filepath.Join(sourceDir, filepath.FromSlash(rel))); err != nil {
			return fmt.Errorf("failed to add %s: %w", rel, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finalize archive: %w", err)
	}
	return nil
}

func copyFileInto(w io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() {
		_ = f.Close()
	}()
	_, err = io.Copy(w, f)
	return err
}

// Unpack extracts every non-directory entry of the artifact into destDir and
// returns the sorted relative paths written.
func (c *Codec) Unpack(artifactPath, destDir string) ([]string, error) {
	r, err := openArtifact(artifactPath)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = r.Close()
	}()

	if err := c.fs.MkdirAll(destDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create destination: %w", err)
	}

	var extracted []string
	for _, f := range r.File {
		if isDirEntry(f) {
			continue
		}

		name := decodeName(f)
		if err := c.fs.ValidateRelPath(name); err != nil {
			return nil, fmt.Errorf("%w: entry %q: %v", ErrCorruptArchive, name, err)
		}

		target := filepath.Join(destDir, filepath.FromSlash(name))
		if err := c.extractEntry(f, target); err != nil {
			return nil, err
		}
		extracted = append(extracted, name)
	}

	// A repeated entry overwrites the earlier one on disk
	sort.Strings(extracted)
	return slices.Compact(extracted), nil
}

func (c *Codec) extractEntry(f *zip.File, target string) error {
	src, err := f.Open()
	if err != nil {
		return fmt.Errorf("%w: open %s: %v", ErrCorruptArchive, f.Name, err)
	}
	defer func() {
		_ = src.Close()
	}()

	dst, err := c.fs.Create(target)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", target, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return fmt.Errorf("%w: read %s: %v", ErrCorruptArchive, f.Name, err)
	}
	if err := dst.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", target, err)
	}
	return nil
}

// List returns the sorted names of the artifact's non-directory entries
// without extracting anything.
func (c *Codec) List(artifactPath string) ([]string, error) {
	r, err := openArtifact(artifactPath)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = r.Close()
	}()

	names := make([]string, 0, len(r.File))
	for _, f := range r.File {
		if isDirEntry(f) {
			continue
		}
		names = append(names, decodeName(f))
	}
	sort.Strings(names)
	return slices.Compact(names), nil
}

// HashFile returns the SHA-256 hex digest of the file at path.
func (c *Codec) HashFile(path string) (string, error) {
	return c.hasher.HashFile(path)
}

func openArtifact(path string) (*zip.ReadCloser, error) {
	r, err := zip.OpenReader(path)
	if errors.Is(err, zip.ErrInsecurePath) {
		// Entry names are validated one by one during Unpack.
		return r, nil
	}
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to open archive: %w", err)
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptArchive, path, err)
	}
	return r, nil
}

func isDirEntry(f *zip.File) bool {
	return strings.HasSuffix(f.Name, "/") || f.FileInfo().IsDir()
}

// decodeName recovers an entry name written by tools that did not use UTF-8.
// Names are tried as UTF-8, then as Shift-JIS (CP932), and finally read as
// CP437, the zip default. Every byte sequence is valid CP437, so recorded
// names are always valid UTF-8.
func decodeName(f *zip.File) string {
	if utf8.ValidString(f.Name) {
		return f.Name
	}
	decoded, err := japanese.ShiftJIS.NewDecoder().String(f.Name)
	if err == nil && !strings.ContainsRune(decoded, utf8.RuneError) {
		return decoded
	}
	decoded, err = charmap.CodePage437.NewDecoder().String(f.Name)
	if err != nil {
		return strings.ToValidUTF8(f.Name, string(utf8.RuneError))
	}
	return decoded
}
