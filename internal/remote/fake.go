package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/danieljhkim/gda/internal/hash"
)

// FakeStore is an in-memory Store that records every call.
type FakeStore struct {
	releases map[string]*Release
	blobs    map[string][]byte
	nextID   int64
	hasher   hash.Hasher

	GetReleaseCalls    []ReleaseCall
	CreateReleaseCalls []ReleaseCall
	UploadCalls        []UploadCall
	DeleteCalls        []string
	DownloadCalls      []string
	HashCalls          []string

	// Configurable failures
	GetReleaseErr    error
	CreateReleaseErr error
	UploadErr        error
	DeleteErr        error
	DownloadErr      error
	HashErr          error
}

type ReleaseCall struct {
	Repo string
	Tag  string
}

type UploadCall struct {
	Repo        string
	Tag         string
	Name        string
	Size        int64
	ContentType string
}

// NewFakeStore creates an empty FakeStore.
func NewFakeStore() *FakeStore {
	return &FakeStore{
		releases: make(map[string]*Release),
		blobs:    make(map[string][]byte),
		hasher:   hash.NewSHA256Hasher(),
	}
}

func releaseKey(repo, tag string) string {
	return repo + "@" + tag
}

// AssetURL returns the URL FakeStore assigns to an asset.
func AssetURL(repo, tag, name string) string {
	return fmt.Sprintf("fake://%s/%s/%s", repo, tag, name)
}

// AddAsset seeds an asset, creating its release when needed. It records no call.
func (f *FakeStore) AddAsset(repo, tag, name string, content []byte) *Asset {
	rel, ok := f.releases[releaseKey(repo, tag)]
	if !ok {
		rel = f.addRelease(repo, tag, tag)
	}
	return f.attach(repo, rel, name, content, "application/zip")
}

// SetContent replaces the bytes served at url.
func (f *FakeStore) SetContent(url string, content []byte) {
	f.blobs[url] = content
}

// Content returns the bytes served at url.
func (f *FakeStore) Content(url string) ([]byte, bool) {
	b, ok := f.blobs[url]
	return b, ok
}

// NetworkCalls returns the number of Store calls made so far.
func (f *FakeStore) NetworkCalls() int {
	return len(f.GetReleaseCalls) + len(f.CreateReleaseCalls) + len(f.UploadCalls) +
		len(f.DeleteCalls) + len(f.DownloadCalls) + len(f.HashCalls)
}

func (f *FakeStore) addRelease(repo, tag, name string) *Release {
	f.nextID++
	rel := &Release{ID: f.nextID, Tag: tag, Name: name}
	f.releases[releaseKey(repo, tag)] = rel
	return rel
}

func (f *FakeStore) attach(repo string, rel *Release, name string, content []byte, contentType string) *Asset {
	f.nextID++
	asset := Asset{
		ID:          f.nextID,
		Name:        name,
		URL:         AssetURL(repo, rel.Tag, name),
		Size:        int64(len(content)),
		ContentType: contentType,
	}
	rel.Assets = append(rel.Assets, asset)
	f.blobs[asset.URL] = content
	return &rel.Assets[len(rel.Assets)-1]
}

func copyRelease(rel *Release) *Release {
	out := *rel
	out.Assets = append([]Asset(nil), rel.Assets...)
	return &out
}

func (f *FakeStore) GetRelease(ctx context.Context, repo, tag string) (*Release, error) {
	f.GetReleaseCalls = append(f.GetReleaseCalls, ReleaseCall{Repo: repo, Tag: tag})
	if f.GetReleaseErr != nil {
		return nil, f.GetReleaseErr
	}
	rel, ok := f.releases[releaseKey(repo, tag)]
	if !ok {
		return nil, &Error{Op: "get release", StatusCode: 404, Err: fmt.Errorf("%w: %s@%s", ErrReleaseNotFound, repo, tag)}
	}
	return copyRelease(rel), nil
}

func (f *FakeStore) CreateRelease(ctx context.Context, repo, tag, name string) (*Release, error) {
	f.CreateReleaseCalls = append(f.CreateReleaseCalls, ReleaseCall{Repo: repo, Tag: tag})
	if f.CreateReleaseErr != nil {
		return nil, f.CreateReleaseErr
	}
	if _, ok := f.releases[releaseKey(repo, tag)]; ok {
		return nil, &Error{Op: "create release", StatusCode: 422, Err: fmt.Errorf("release %s already exists", tag)}
	}
	return copyRelease(f.addRelease(repo, tag, name)), nil
}

func (f *FakeStore) UploadAsset(ctx context.Context, repo string, release *Release, name string, r io.Reader, size int64, contentType string) (*Asset, error) {
	f.UploadCalls = append(f.UploadCalls, UploadCall{Repo: repo, Tag: release.Tag, Name: name, Size: size, ContentType: contentType})
	if f.UploadErr != nil {
		return nil, f.UploadErr
	}
	rel, ok := f.releases[releaseKey(repo, release.Tag)]
	if !ok {
		return nil, &Error{Op: "upload asset", StatusCode: 404, Err: ErrReleaseNotFound}
	}
	if _, exists := rel.Find(name); exists {
		return nil, &Error{Op: "upload asset", StatusCode: 422, Err: fmt.Errorf("asset %s already exists", name)}
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return nil, &Error{Op: "upload asset", Err: err}
	}
	asset := *f.attach(repo, rel, name, buf.Bytes(), contentType)
	return &asset, nil
}

func (f *FakeStore) DeleteAsset(ctx context.Context, repo string, asset *Asset) error {
	f.DeleteCalls = append(f.DeleteCalls, asset.URL)
	if f.DeleteErr != nil {
		return f.DeleteErr
	}
	for _, rel := range f.releases {
		for i := range rel.Assets {
			if rel.Assets[i].URL == asset.URL {
				rel.Assets = append(rel.Assets[:i], rel.Assets[i+1:]...)
				delete(f.blobs, asset.URL)
				return nil
			}
		}
	}
	return &Error{Op: "delete asset", StatusCode: 404, Err: ErrAssetNotFound}
}

func (f *FakeStore) DownloadAsset(ctx context.Context, url, destPath string) error {
	f.DownloadCalls = append(f.DownloadCalls, url)
	if f.DownloadErr != nil {
		return f.DownloadErr
	}
	content, ok := f.blobs[url]
	if !ok {
		return &Error{Op: "download asset", StatusCode: 404, Err: fmt.Errorf("%w: %s", ErrAssetNotFound, url)}
	}
	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return err
	}
	return os.WriteFile(destPath, content, 0644)
}

func (f *FakeStore) GetRemoteHash(ctx context.Context, url string) (string, error) {
	f.HashCalls = append(f.HashCalls, url)
	if f.HashErr != nil {
		return "", f.HashErr
	}
	content, ok := f.blobs[url]
	if !ok {
		return "", &Error{Op: "get remote hash", StatusCode: 404, Err: fmt.Errorf("%w: %s", ErrAssetNotFound, url)}
	}
	return f.hasher.HashReader(bytes.NewReader(content))
}

var _ Store = (*FakeStore)(nil)
