// Package lockfile models gda.lock, the resolved state of a manifest version.
//
// For each asset the lock records where the artifact lives, the SHA-256 it
// must hash to, and the files its last successful extraction produced. The
// file list is empty until the first pull; an asset with an empty list is
// unverified and always downloaded.
package lockfile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/danieljhkim/gda/internal/fsops"
	"github.com/danieljhkim/gda/internal/hash"
)

// FileName is the conventional lockfile name.
const FileName = "gda.lock"

// LockedAsset is the resolved state of one asset.
type LockedAsset struct {
	Name   string
	URL    string
	SHA256 string
	Files  []string
}

// Verified reports whether a pull has recorded extracted files for the asset.
func (a *LockedAsset) Verified() bool {
	return len(a.Files) > 0
}

// Lockfile is the parsed contents of gda.lock.
type Lockfile struct {
	Version string
	Assets  []*LockedAsset
}

// New returns an empty lock for version.
func New(version string) *Lockfile {
	return &Lockfile{Version: version}
}

// Asset returns the locked asset with the given name.
func (l *Lockfile) Asset(name string) (*LockedAsset, bool) {
	for _, a := range l.Assets {
		if a.Name == name {
			return a, true
		}
	}
	return nil, false
}

// Set adds asset, replacing an existing entry of the same name in place.
func (l *Lockfile) Set(asset *LockedAsset) {
	if asset.Files == nil {
		asset.Files = []string{}
	}
	for i, a := range l.Assets {
		if a.Name == asset.Name {
			l.Assets[i] = asset
			return
		}
	}
	l.Assets = append(l.Assets, asset)
}

// Matches reports whether the lock was resolved for version.
func (l *Lockfile) Matches(version string) bool {
	return l.Version == version
}

// Parse decodes and validates lockfile JSON.
func Parse(data []byte) (*Lockfile, error) {
	if !json.Valid(data) {
		var v any
		err := json.Unmarshal(data, &v)
		return nil, corrupted("", "JSON parse error: %v", err)
	}

	root, err := decodeObject(data)
	if err != nil {
		return nil, corrupted("", "root must be an object")
	}

	l := &Lockfile{}
	versionRaw, ok := root.get("version")
	if !ok {
		return nil, corrupted("version", "missing required field")
	}
	if l.Version, err = requiredString(versionRaw); err != nil {
		return nil, corrupted("version", "%v", err)
	}

	assetsRaw, ok := root.get("assets")
	if !ok {
		return l, nil
	}
	assets, err := decodeObject(assetsRaw)
	if err != nil {
		return nil, corrupted("assets", "must be an object")
	}

	seen := make(map[string]bool, len(assets))
	for _, entry := range assets {
		if seen[entry.key] {
			return nil, corrupted("assets."+entry.key, "duplicate asset name")
		}
		seen[entry.key] = true

		asset, err := parseAsset(entry.key, entry.value)
		if err != nil {
			return nil, err
		}
		l.Assets = append(l.Assets, asset)
	}
	return l, nil
}

func parseAsset(name string, raw json.RawMessage) (*LockedAsset, error) {
	field := "assets." + name
	obj, err := decodeObject(raw)
	if err != nil {
		return nil, corrupted(field, "must be an object")
	}

	asset := &LockedAsset{Name: name, Files: []string{}}

	urlRaw, ok := obj.get("url")
	if !ok {
		return nil, corrupted(field+".url", "missing required field")
	}
	if asset.URL, err = requiredString(urlRaw); err != nil {
		return nil, corrupted(field+".url", "%v", err)
	}

	sumRaw, ok := obj.get("sha256")
	if !ok {
		return nil, corrupted(field+".sha256", "missing required field")
	}
	if asset.SHA256, err = requiredString(sumRaw); err != nil {
		return nil, corrupted(field+".sha256", "%v", err)
	}
	if err := hash.Validate(asset.SHA256); err != nil {
		return nil, corrupted(field+".sha256", "%v", err)
	}

	if filesRaw, ok := obj.get("files"); ok && !isNull(filesRaw) {
		var files []string
		if err := json.Unmarshal(filesRaw, &files); err != nil {
			return nil, corrupted(field+".files", "must be a list of strings")
		}
		if files != nil {
			asset.Files = files
		}
	}
	return asset, nil
}

type member struct {
	key   string
	value json.RawMessage
}

type object []member

func (o object) get(key string) (json.RawMessage, bool) {
	for _, m := range o {
		if m.key == key {
			return m.value, true
		}
	}
	return nil, false
}

// decodeObject splits a JSON object into its members in document order.
func decodeObject(data []byte) (object, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("not an object")
	}

	var obj object
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected token %v", tok)
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, err
		}
		obj = append(obj, member{key: key, value: value})
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return obj, nil
}

func isNull(raw json.RawMessage) bool {
	return string(bytes.TrimSpace(raw)) == "null"
}

func requiredString(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("must be a string")
	}
	if s == "" {
		return "", fmt.Errorf("must not be empty")
	}
	return s, nil
}

type lockJSON struct {
	Version string       `json:"version"`
	Assets  orderedAssets `json:"assets"`
}

type assetJSON struct {
	URL    string   `json:"url"`
	SHA256 string   `json:"sha256"`
	Files  []string `json:"files"`
}

type orderedAssets []*LockedAsset

func (o orderedAssets) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, a := range o {
		if i > 0 {
			buf.WriteByte(',')
		}
		files := a.Files
		if files == nil {
			files = []string{}
		}
		if err := encode(&buf, a.Name); err != nil {
			return nil, err
		}
		buf.WriteByte(':')
		if err := encode(&buf, assetJSON{URL: a.URL, SHA256: a.SHA256, Files: files}); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func encode(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// Marshal serializes the lock as two-space indented JSON with assets in
// insertion order and a trailing newline. Parse(Marshal(l)) yields l again.
func (l *Lockfile) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(lockJSON{Version: l.Version, Assets: l.Assets}); err != nil {
		return nil, fmt.Errorf("failed to encode lockfile: %w", err)
	}
	return buf.Bytes(), nil
}

// Load reads and parses the lockfile at path.
func Load(fs fsops.FS, path string) (*Lockfile, error) {
	exists, err := fs.Exists(path)
	if err != nil {
		return nil, fmt.Errorf("failed to check lockfile: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrLockfileNotFound, path)
	}

	data, err := fs.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read lockfile: %w", err)
	}
	return Parse(data)
}

// Save writes the whole lock to path atomically.
func (l *Lockfile) Save(fs fsops.FS, path string) error {
	data, err := l.Marshal()
	if err != nil {
		return err
	}
	if err := fs.AtomicWrite(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write lockfile: %w", err)
	}
	return nil
}
