// Package githubstore implements remote.Store on GitHub Releases.
//
// Repositories are "owner/repo"; a gda release is a GitHub release whose tag
// is the manifest version, and artifacts are its uploaded assets, addressed
// by their browser download URL.
package githubstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/go-github/v66/github"

	"github.com/danieljhkim/gda/internal/hash"
	"github.com/danieljhkim/gda/internal/remote"
)

// TokenEnvVars are consulted in order when no token is configured.
var TokenEnvVars = []string{"GITHUB_TOKEN", "GH_TOKEN"}

// TokenFromEnv returns the first non-empty token environment variable.
func TokenFromEnv() string {
	for _, name := range TokenEnvVars {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}

// Options configures a Store.
type Options struct {
	// Token authenticates API calls. Anonymous access works for public
	// repositories but cannot create releases or upload.
	Token string

	// BaseURL and UploadURL point the client at GitHub Enterprise or a test
	// server. Both default to github.com.
	BaseURL   string
	UploadURL string

	HTTPClient *http.Client
}

// Store talks to the GitHub REST API.
type Store struct {
	client *github.Client
	hasher hash.Hasher
}

// New creates a Store.
func New(opts Options, hasher hash.Hasher) (*Store, error) {
	client := github.NewClient(opts.HTTPClient)
	if opts.Token != "" {
		client = client.WithAuthToken(opts.Token)
	}
	if opts.BaseURL != "" {
		u, err := url.Parse(withSlash(opts.BaseURL))
		if err != nil {
			return nil, fmt.Errorf("invalid GitHub base URL: %w", err)
		}
		client.BaseURL = u
		client.UploadURL = u
	}
	if opts.UploadURL != "" {
		u, err := url.Parse(withSlash(opts.UploadURL))
		if err != nil {
			return nil, fmt.Errorf("invalid GitHub upload URL: %w", err)
		}
		client.UploadURL = u
	}
	return &Store{client: client, hasher: hasher}, nil
}

func withSlash(s string) string {
	if strings.HasSuffix(s, "/") {
		return s
	}
	return s + "/"
}

func splitRepo(repo string) (string, string, error) {
	owner, name, ok := strings.Cut(repo, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return "", "", fmt.Errorf("%w: %q, expected owner/repo", remote.ErrInvalidRepository, repo)
	}
	return owner, name, nil
}

// apiError converts a go-github failure into a *remote.Error. A 404 is
// reported as notFound when one is given.
func apiError(op string, resp *github.Response, err error, notFound error) error {
	status := 0
	if resp != nil && resp.Response != nil {
		status = resp.StatusCode
	}
	var ghErr *github.ErrorResponse
	if status == 0 && errors.As(err, &ghErr) && ghErr.Response != nil {
		status = ghErr.Response.StatusCode
	}
	if status == http.StatusNotFound && notFound != nil {
		err = notFound
	}
	return &remote.Error{Op: op, StatusCode: status, Err: err}
}

func toRelease(rel *github.RepositoryRelease) *remote.Release {
	out := &remote.Release{
		ID:   rel.GetID(),
		Tag:  rel.GetTagName(),
		Name: rel.GetName(),
	}
	if out.Name == "" {
		out.Name = out.Tag
	}
	for _, a := range rel.Assets {
		out.Assets = append(out.Assets, *toAsset(a))
	}
	return out
}

func toAsset(a *github.ReleaseAsset) *remote.Asset {
	return &remote.Asset{
		ID:          a.GetID(),
		Name:        a.GetName(),
		URL:         a.GetBrowserDownloadURL(),
		Size:        int64(a.GetSize()),
		ContentType: a.GetContentType(),
	}
}

func (s *Store) GetRelease(ctx context.Context, repo, tag string) (*remote.Release, error) {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return nil, err
	}
	rel, resp, err := s.client.Repositories.GetReleaseByTag(ctx, owner, name, tag)
	if err != nil {
		return nil, apiError("get release", resp, err, fmt.Errorf("%w: %s@%s", remote.ErrReleaseNotFound, repo, tag))
	}
	return toRelease(rel), nil
}

func (s *Store) CreateRelease(ctx context.Context, repo, tag, releaseName string) (*remote.Release, error) {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return nil, err
	}
	rel, resp, err := s.client.Repositories.CreateRelease(ctx, owner, name, &github.RepositoryRelease{
		TagName: github.String(tag),
		Name:    github.String(releaseName),
	})
	if err != nil {
		return nil, apiError("create release", resp, err, nil)
	}
	return toRelease(rel), nil
}

func (s *Store) UploadAsset(ctx context.Context, repo string, release *remote.Release, assetName string, r io.Reader, size int64, contentType string) (*remote.Asset, error) {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return nil, err
	}
	u := fmt.Sprintf("repos/%s/%s/releases/%d/assets?name=%s", owner, name, release.ID, url.QueryEscape(assetName))
	req, err := s.client.NewUploadRequest(u, r, size, contentType)
	if err != nil {
		return nil, &remote.Error{Op: "upload asset", Err: err}
	}

	asset := new(github.ReleaseAsset)
	resp, err := s.client.Do(ctx, req, asset)
	if err != nil {
		return nil, apiError("upload asset", resp, err, nil)
	}
	return toAsset(asset), nil
}

func (s *Store) DeleteAsset(ctx context.Context, repo string, asset *remote.Asset) error {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return err
	}
	resp, err := s.client.Repositories.DeleteReleaseAsset(ctx, owner, name, asset.ID)
	if err != nil {
		return apiError("delete asset", resp, err, remote.ErrAssetNotFound)
	}
	return nil
}

// get opens the body of a download URL. The caller closes it.
func (s *Store) get(ctx context.Context, op, rawURL string) (io.ReadCloser, error) {
	req, err := s.client.NewRequest(http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &remote.Error{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/octet-stream")

	resp, err := s.client.BareDo(ctx, req)
	if err != nil {
		return nil, apiError(op, resp, err, fmt.Errorf("%w: %s", remote.ErrAssetNotFound, rawURL))
	}
	return resp.Body, nil
}

func (s *Store) DownloadAsset(ctx context.Context, rawURL, destPath string) error {
	body, err := s.get(ctx, "download asset", rawURL)
	if err != nil {
		return err
	}
	defer func() {
		_ = body.Close()
	}()

	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return fmt.Errorf("failed to create download directory: %w", err)
	}
	f, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", destPath, err)
	}
	if _, err := io.Copy(f, body); err != nil {
		_ = f.Close()
		_ = os.Remove(destPath)
		return &remote.Error{Op: "download asset", Err: err}
	}
	return f.Close()
}

func (s *Store) GetRemoteHash(ctx context.Context, rawURL string) (string, error) {
	body, err := s.get(ctx, "get remote hash", rawURL)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = body.Close()
	}()

	sum, err := s.hasher.HashReader(body)
	if err != nil {
		return "", &remote.Error{Op: "get remote hash", Err: err}
	}
	return sum, nil
}

var _ remote.Store = (*Store)(nil)
