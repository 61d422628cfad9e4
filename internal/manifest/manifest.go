// Package manifest models gda.yml, the declared state of a project: which
// remote repository and release version to sync against, and for each asset
// the local directory it is packed from and the directory it unpacks to.
//
// Assets keep the order they are written in; resolve and push walk them in
// that order, and Marshal writes them back out the same way.
package manifest

import (
	"bytes"
	"fmt"
	"os"
	"path"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/danieljhkim/gda/internal/fsops"
)

// FileName is the conventional manifest file name.
const FileName = "gda.yml"

// Asset declares one synchronized directory.
type Asset struct {
	Name string

	// Source is the directory packed by push, relative to the project root.
	// It defaults to the asset name.
	Source string

	// Destination is the directory pull extracts into. It exclusively owns
	// the files of this asset.
	Destination string

	// Excludes are glob patterns of files left out of the artifact.
	Excludes []string
}

// ArtifactName returns the remote asset name this asset is published under.
func (a *Asset) ArtifactName() string {
	return a.Name + ".zip"
}

// Manifest is the parsed contents of gda.yml.
type Manifest struct {
	Repository string
	Version    string
	Assets     []*Asset
}

// Asset returns the asset with the given name.
func (m *Manifest) Asset(name string) (*Asset, bool) {
	for _, a := range m.Assets {
		if a.Name == name {
			return a, true
		}
	}
	return nil, false
}

// Overlap is a pair of assets whose destinations nest or coincide.
type Overlap struct {
	First, Second string
}

// Overlaps reports every pair of assets whose destination directories are
// equal or nested inside one another. Such assets would prune each other's
// files on pull.
func (m *Manifest) Overlaps() []Overlap {
	var out []Overlap
	for i := 0; i < len(m.Assets); i++ {
		for j := i + 1; j < len(m.Assets); j++ {
			a := cleanDest(m.Assets[i].Destination)
			b := cleanDest(m.Assets[j].Destination)
			if a == b || isWithin(a, b) || isWithin(b, a) {
				out = append(out, Overlap{First: m.Assets[i].Name, Second: m.Assets[j].Name})
			}
		}
	}
	return out
}

func cleanDest(dest string) string {
	return path.Clean(strings.ReplaceAll(dest, `\`, "/"))
}

func isWithin(child, parent string) bool {
	if parent == "." {
		return true
	}
	return strings.HasPrefix(child, parent+"/")
}

// Parse decodes and validates manifest YAML.
func Parse(data []byte) (*Manifest, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, invalid("", "YAML parse error: %v", err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, invalid("", "root must be a mapping")
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, invalid("", "root must be a mapping")
	}

	m := &Manifest{}
	var err error
	if m.Repository, err = requiredScalar(root, "repository", "repository"); err != nil {
		return nil, err
	}
	if m.Version, err = requiredScalar(root, "version", "version"); err != nil {
		return nil, err
	}

	assets := lookup(root, "assets")
	if isNull(assets) {
		return m, nil
	}
	if assets.Kind != yaml.MappingNode {
		return nil, invalid("assets", "must be a mapping")
	}

	seen := make(map[string]bool, len(assets.Content)/2)
	for i := 0; i+1 < len(assets.Content); i += 2 {
		name := assets.Content[i].Value
		if seen[name] {
			return nil, invalid("assets."+name, "duplicate asset name")
		}
		seen[name] = true

		asset, err := parseAsset(name, assets.Content[i+1])
		if err != nil {
			return nil, err
		}
		m.Assets = append(m.Assets, asset)
	}
	return m, nil
}

func parseAsset(name string, node *yaml.Node) (*Asset, error) {
	field := "assets." + name
	if err := fsops.ValidateIdentifier(name); err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrInvalidAssetName, name, err)
	}
	if node.Kind != yaml.MappingNode {
		return nil, invalid(field, "must be a mapping")
	}

	asset := &Asset{Name: name, Source: name}

	if src := lookup(node, "source"); !isNull(src) {
		if src.Kind != yaml.ScalarNode {
			return nil, invalid(field+".source", "must be a string")
		}
		if src.Value != "" {
			asset.Source = src.Value
		}
	}

	dest, err := requiredScalar(node, "destination", field+".destination")
	if err != nil {
		return nil, err
	}
	asset.Destination = dest

	if ex := lookup(node, "excludes"); !isNull(ex) {
		if ex.Kind != yaml.SequenceNode {
			return nil, invalid(field+".excludes", "must be a list")
		}
		for _, item := range ex.Content {
			if item.Kind != yaml.ScalarNode {
				return nil, invalid(field+".excludes", "must be a list of strings")
			}
			asset.Excludes = append(asset.Excludes, item.Value)
		}
	}
	return asset, nil
}

func lookup(mapping *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			return mapping.Content[i+1]
		}
	}
	return nil
}

func isNull(n *yaml.Node) bool {
	return n == nil || (n.Kind == yaml.ScalarNode && n.Tag == "!!null")
}

func requiredScalar(mapping *yaml.Node, key, field string) (string, error) {
	n := lookup(mapping, key)
	if isNull(n) {
		return "", invalid(field, "missing required field")
	}
	if n.Kind != yaml.ScalarNode {
		return "", invalid(field, "must be a string")
	}
	if n.Value == "" {
		return "", invalid(field, "must not be empty")
	}
	return n.Value, nil
}

// Marshal serializes the manifest. Parse(Marshal(m)) yields m again.
func (m *Manifest) Marshal() ([]byte, error) {
	assets := mappingNode()
	for _, a := range m.Assets {
		spec := mappingNode()
		appendPair(spec, "source", strNode(a.Source))
		appendPair(spec, "destination", strNode(a.Destination))
		if len(a.Excludes) > 0 {
			seq := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
			for _, ex := range a.Excludes {
				seq.Content = append(seq.Content, strNode(ex))
			}
			appendPair(spec, "excludes", seq)
		}
		appendPair(assets, a.Name, spec)
	}

	root := mappingNode()
	appendPair(root, "repository", strNode(m.Repository))
	appendPair(root, "version", strNode(m.Version))
	appendPair(root, "assets", assets)

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{root}}); err != nil {
		return nil, fmt.Errorf("failed to encode manifest: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode manifest: %w", err)
	}
	return buf.Bytes(), nil
}

func mappingNode() *yaml.Node {
	return &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
}

func strNode(v string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v}
}

func appendPair(mapping *yaml.Node, key string, value *yaml.Node) {
	mapping.Content = append(mapping.Content, strNode(key), value)
}

// Load reads and parses the manifest at path.
func Load(fs fsops.FS, path string) (*Manifest, error) {
	exists, err := fs.Exists(path)
	if err != nil {
		return nil, fmt.Errorf("failed to check manifest: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrManifestNotFound, path)
	}

	data, err := fs.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	return Parse(data)
}

// Save writes the manifest to path atomically.
func (m *Manifest) Save(fs fsops.FS, path string) error {
	data, err := m.Marshal()
	if err != nil {
		return err
	}
	if err := fs.AtomicWrite(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

const template = `repository: %q
version: %q

assets:
  # Example asset configuration
  # dataset-name:
  #   source: "path/to/source"
  #   destination: "path/to/dest"
  #   excludes:
  #     - "**/.DS_Store"
`

// Template renders the starter manifest written by "gda init".
func Template(repository, version string) []byte {
	return []byte(fmt.Sprintf(template, repository, version))
}

// WriteTemplate writes the starter manifest to path unless a file already
// exists there and overwrite is false. It reports whether it wrote.
func WriteTemplate(fs fsops.FS, path, repository, version string, overwrite bool) (bool, error) {
	exists, err := fs.Exists(path)
	if err != nil {
		return false, fmt.Errorf("failed to check manifest: %w", err)
	}
	if exists && !overwrite {
		return false, nil
	}
	if err := fs.AtomicWrite(path, Template(repository, version), os.FileMode(0644)); err != nil {
		return false, fmt.Errorf("failed to write manifest: %w", err)
	}
	return true, nil
}
