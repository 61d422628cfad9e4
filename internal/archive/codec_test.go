package archive

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/klauspost/compress/zip"
	"golang.org/x/text/encoding/japanese"

	"github.com/danieljhkim/gda/internal/fsops"
	"github.com/danieljhkim/gda/internal/hash"
)

func newTestCodec() *Codec {
	return NewCodec(fsops.NewRealFS(), hash.NewSHA256Hasher())
}

// writeTree creates files (relative slash paths -> content) under root.
func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("failed to create dir for %s: %v", rel, err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("failed to write %s: %v", rel, err)
		}
	}
}

func TestCodec_UnpackRepeatedEntry(t *testing.T) {
	codec := newTestCodec()
	tmpDir := t.TempDir()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range []struct{ name, content string }{
		{"dup.txt", "first"},
		{"other.txt", "other"},
		{"dup.txt", "second"},
	} {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: e.name, Method: zip.Store})
		if err != nil {
			t.Fatalf("failed to create entry %q: %v", e.name, err)
		}
		if _, err := w.Write([]byte(e.content)); err != nil {
			t.Fatalf("failed to write entry %q: %v", e.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("failed to close zip: %v", err)
	}
	path := filepath.Join(tmpDir, "dup.zip")
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatalf("failed to write zip: %v", err)
	}

	dest := filepath.Join(tmpDir, "dest")
	extracted, err := codec.Unpack(path, dest)
	if err != nil {
		t.Fatalf("Unpack failed: %v", err)
	}
	want := []string{"dup.txt", "other.txt"}
	if !reflect.DeepEqual(extracted, want) {
		t.Errorf("extracted = %q, want %q", extracted, want)
	}
	if data, _ := os.ReadFile(filepath.Join(dest, "dup.txt")); string(data) != "second" {
		t.Errorf("dup.txt = %q, want the last entry", data)
	}

	listed, err := codec.List(path)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if !reflect.DeepEqual(listed, want) {
		t.Errorf("List = %q, want %q", listed, want)
	}
}

// writeRawZip builds a zip with the given raw entry names, bypassing the codec.
func writeRawZip(t *testing.T, path string, entries map[string]string) {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range entries {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Store})
		if err != nil {
			t.Fatalf("failed to create entry %q: %v", name, err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("failed to write entry %q: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("failed to close zip: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatalf("failed to write zip: %v", err)
	}
}

func TestCodec_PackIsDeterministic(t *testing.T) {
	codec := newTestCodec()
	tmpDir := t.TempDir()

	files := map[string]string{
		"b.txt":          "bravo",
		"a.txt":          "alpha",
		"nested/c.bin":   "charlie",
		"nested/deep/d":  "delta",
		"z/last-one.txt": "zulu",
	}

	src1 := filepath.Join(tmpDir, "src1")
	src2 := filepath.Join(tmpDir, "src2")
	writeTree(t, src1, files)
	writeTree(t, src2, files)

	// Different timestamps and permissions must not leak into the artifact
	past := time.Date(2001, time.March, 3, 4, 5, 6, 0, time.UTC)
	if err := os.Chtimes(filepath.Join(src2, "a.txt"), past, past); err != nil {
		t.Fatalf("failed to change times: %v", err)
	}
	if err := os.Chmod(filepath.Join(src2, "b.txt"), 0600); err != nil {
		t.Fatalf("failed to chmod: %v", err)
	}

	out1 := filepath.Join(tmpDir, "out1.zip")
	out2 := filepath.Join(tmpDir, "out2.zip")

	hash1, err := codec.Pack(src1, out1, nil)
	if err != nil {
		t.Fatalf("Pack failed: %v", err)
	}
	hash2, err := codec.Pack(src2, out2, nil)
	if err != nil {
		t.Fatalf("Pack failed: %v", err)
	}

	if hash1 != hash2 {
		t.Errorf("hashes differ: %s vs %s", hash1, hash2)
	}

	data1, _ := os.ReadFile(out1)
	data2, _ := os.ReadFile(out2)
	if !bytes.Equal(data1, data2) {
		t.Error("artifacts are not byte-identical")
	}

	t.Run("repacking yields the same hash", func(t *testing.T) {
		again, err := codec.Pack(src1, out1, nil)
		if err != nil {
			t.Fatalf("Pack failed: %v", err)
		}
		if again != hash1 {
			t.Errorf("repack hash = %s, want %s", again, hash1)
		}
	})

	t.Run("returned hash matches file digest", func(t *testing.T) {
		sum, err := hash.NewSHA256Hasher().HashFile(out1)
		if err != nil {
			t.Fatalf("HashFile failed: %v", err)
		}
		if sum != hash1 {
			t.Errorf("Pack returned %s, file digest is %s", hash1, sum)
		}
	})
}

func TestCodec_PackEntriesAreSortedWithFixedMetadata(t *testing.T) {
	codec := newTestCodec()
	tmpDir := t.TempDir()
	src := filepath.Join(tmpDir, "src")
	writeTree(t, src, map[string]string{
		"zeta.txt":   "z",
		"alpha.txt":  "a",
		"mid/b.txt":  "b",
		"mid/a.txt":  "a",
		"Upper.txt":  "U",
	})

	out := filepath.Join(tmpDir, "out.zip")
	if _, err := codec.Pack(src, out, nil); err != nil {
		t.Fatalf("Pack failed: %v", err)
	}

	r, err := zip.OpenReader(out)
	if err != nil {
		t.Fatalf("failed to open artifact: %v", err)
	}
	defer r.Close()

	var names []string
	for _, f := range r.File {
		names = append(names, f.Name)
		if !f.Modified.Equal(FixedModTime) {
			t.Errorf("%s: Modified = %v, want %v", f.Name, f.Modified, FixedModTime)
		}
		if f.Method != zip.Deflate {
			t.Errorf("%s: Method = %d, want Deflate", f.Name, f.Method)
		}
		if f.Mode().Perm() != entryMode {
			t.Errorf("%s: mode = %v, want %v", f.Name, f.Mode().Perm(), entryMode)
		}
	}

	want := []string{"Upper.txt", "alpha.txt", "mid/a.txt", "mid/b.txt", "zeta.txt"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("entry order = %v, want %v", names, want)
	}
}

func TestCodec_RoundTrip(t *testing.T) {
	codec := newTestCodec()
	tmpDir := t.TempDir()
	src := filepath.Join(tmpDir, "src")
	files := map[string]string{
		"file.txt":            "content",
		"dir/inner.txt":       "inner",
		"dir/sub/deeper.bin":  string([]byte{0, 1, 2, 3, 255}),
		"データ/ファイル.txt":       "unicode",
	}
	writeTree(t, src, files)

	out := filepath.Join(tmpDir, "build", "asset.zip")
	if _, err := codec.Pack(src, out, nil); err != nil {
		t.Fatalf("Pack failed: %v", err)
	}

	dest := filepath.Join(tmpDir, "dest")
	extracted, err := codec.Unpack(out, dest)
	if err != nil {
		t.Fatalf("Unpack failed: %v", err)
	}

	want := []string{"dir/inner.txt", "dir/sub/deeper.bin", "file.txt", "データ/ファイル.txt"}
	if !reflect.DeepEqual(extracted, want) {
		t.Errorf("extracted = %v, want %v", extracted, want)
	}

	for rel, content := range files {
		data, err := os.ReadFile(filepath.Join(dest, filepath.FromSlash(rel)))
		if err != nil {
			t.Errorf("missing %s after unpack: %v", rel, err)
			continue
		}
		if string(data) != content {
			t.Errorf("%s content = %q, want %q", rel, data, content)
		}
	}

	listed, err := codec.List(out)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if !reflect.DeepEqual(listed, want) {
		t.Errorf("List = %v, want %v", listed, want)
	}
}

func TestCodec_PackExcludes(t *testing.T) {
	codec := newTestCodec()
	tmpDir := t.TempDir()
	src := filepath.Join(tmpDir, "src")
	writeTree(t, src, map[string]string{
		".DS_Store":           "mac",
		"keep.txt":            "keep",
		"a/.DS_Store":         "mac",
		"a/b/.DS_Store":       "mac",
		"a/b/keep.bin":        "keep",
		"scratch.tmp":         "tmp",
		"a/scratch.tmp":       "tmp",
		"cache/blob":          "cached",
		"logs/run.log":        "log",
	})

	excludes := []string{"**/.DS_Store", "*.tmp", "cache/*", "logs/run.lo?"}
	out := filepath.Join(tmpDir, "out.zip")
	if _, err := codec.Pack(src, out, excludes); err != nil {
		t.Fatalf("Pack failed: %v", err)
	}

	listed, err := codec.List(out)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}

	want := []string{"a/b/keep.bin", "keep.txt"}
	if !reflect.DeepEqual(listed, want) {
		t.Errorf("listed = %v, want %v", listed, want)
	}
}

func TestCodec_PackMissingSource(t *testing.T) {
	codec := newTestCodec()
	tmpDir := t.TempDir()

	_, err := codec.Pack(filepath.Join(tmpDir, "missing"), filepath.Join(tmpDir, "out.zip"), nil)
	if !errors.Is(err, ErrSourceNotFound) {
		t.Fatalf("Pack error = %v, want ErrSourceNotFound", err)
	}
	if _, statErr := os.Stat(filepath.Join(tmpDir, "out.zip")); !os.IsNotExist(statErr) {
		t.Error("no artifact should be written for a missing source")
	}
}

func TestCodec_PackInvalidExclude(t *testing.T) {
	codec := newTestCodec()
	tmpDir := t.TempDir()
	writeTree(t, tmpDir, map[string]string{"a.txt": "a"})

	_, err := codec.Pack(tmpDir, filepath.Join(t.TempDir(), "out.zip"), []string{"[unclosed"})
	if !errors.Is(err, ErrInvalidPattern) {
		t.Fatalf("Pack error = %v, want ErrInvalidPattern", err)
	}
}

func TestCodec_UnpackCorruptArchive(t *testing.T) {
	codec := newTestCodec()
	tmpDir := t.TempDir()

	t.Run("garbage bytes", func(t *testing.T) {
		path := filepath.Join(tmpDir, "garbage.zip")
		if err := os.WriteFile(path, []byte("definitely not a zip"), 0644); err != nil {
			t.Fatalf("failed to write file: %v", err)
		}
		_, err := codec.Unpack(path, filepath.Join(tmpDir, "dest-garbage"))
		if !errors.Is(err, ErrCorruptArchive) {
			t.Errorf("Unpack error = %v, want ErrCorruptArchive", err)
		}
	})

	t.Run("truncated artifact", func(t *testing.T) {
		src := filepath.Join(tmpDir, "src")
		writeTree(t, src, map[string]string{"file.txt": "content content content"})
		full := filepath.Join(tmpDir, "full.zip")
		if _, err := codec.Pack(src, full, nil); err != nil {
			t.Fatalf("Pack failed: %v", err)
		}
		data, _ := os.ReadFile(full)
		truncated := filepath.Join(tmpDir, "truncated.zip")
		if err := os.WriteFile(truncated, data[:len(data)/2], 0644); err != nil {
			t.Fatalf("failed to write truncated file: %v", err)
		}

		_, err := codec.Unpack(truncated, filepath.Join(tmpDir, "dest-truncated"))
		if !errors.Is(err, ErrCorruptArchive) {
			t.Errorf("Unpack error = %v, want ErrCorruptArchive", err)
		}
	})

	t.Run("entry escaping destination", func(t *testing.T) {
		path := filepath.Join(tmpDir, "slip.zip")
		writeRawZip(t, path, map[string]string{"../escape.txt": "nope"})

		_, err := codec.Unpack(path, filepath.Join(tmpDir, "dest-slip"))
		if !errors.Is(err, ErrCorruptArchive) {
			t.Errorf("Unpack error = %v, want ErrCorruptArchive", err)
		}
		if _, statErr := os.Stat(filepath.Join(tmpDir, "escape.txt")); !os.IsNotExist(statErr) {
			t.Error("entry was written outside the destination")
		}
	})
}

func TestCodec_UnpackLegacyEncodedNames(t *testing.T) {
	codec := newTestCodec()
	tmpDir := t.TempDir()

	sjisName, err := japanese.ShiftJIS.NewEncoder().String("データ.txt")
	if err != nil {
		t.Fatalf("failed to encode name: %v", err)
	}
	rawName := string([]byte{'r', 'a', 'w', 0xff, 0xfe, '.', 'b', 'i', 'n'})

	path := filepath.Join(tmpDir, "legacy.zip")
	writeRawZip(t, path, map[string]string{
		sjisName:    "sjis",
		"plain.txt": "plain",
		rawName:     "raw",
	})

	dest := filepath.Join(tmpDir, "dest")
	extracted, err := codec.Unpack(path, dest)
	if err != nil {
		t.Fatalf("Unpack failed: %v", err)
	}

	// 0xff and 0xfe are not Shift-JIS, so the name is read as CP437
	cp437Name := "raw\u00a0\u25a0.bin"
	want := []string{"plain.txt", cp437Name, "データ.txt"}
	if !reflect.DeepEqual(extracted, want) {
		t.Errorf("extracted = %q, want %q", extracted, want)
	}
	for _, name := range extracted {
		if !utf8.ValidString(name) {
			t.Errorf("extracted name %q is not valid UTF-8", name)
		}
	}
	if got, err := os.ReadFile(filepath.Join(dest, cp437Name)); err != nil || string(got) != "raw" {
		t.Errorf("%s = %q, %v", cp437Name, got, err)
	}

	data, err := os.ReadFile(filepath.Join(dest, "データ.txt"))
	if err != nil {
		t.Fatalf("decoded file missing: %v", err)
	}
	if string(data) != "sjis" {
		t.Errorf("content = %q, want %q", data, "sjis")
	}
}

func TestCodec_UnpackSkipsDirectoryEntries(t *testing.T) {
	codec := newTestCodec()
	tmpDir := t.TempDir()

	path := filepath.Join(tmpDir, "dirs.zip")
	writeRawZip(t, path, map[string]string{
		"folder/":          "",
		"folder/file.txt":  "x",
	})

	extracted, err := codec.Unpack(path, filepath.Join(tmpDir, "dest"))
	if err != nil {
		t.Fatalf("Unpack failed: %v", err)
	}
	if !reflect.DeepEqual(extracted, []string{"folder/file.txt"}) {
		t.Errorf("extracted = %v", extracted)
	}
}
