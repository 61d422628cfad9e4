// Package s3store implements remote.Store on an S3-compatible bucket.
//
// A repository is "bucket" or "bucket/prefix". Release tag T lives under the
// key prefix "<prefix>/T/": a marker object ".release.json" records that the
// release exists, and every other object under the prefix is an asset.
// Asset URLs have the form "s3://bucket/key".
package s3store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/danieljhkim/gda/internal/hash"
	"github.com/danieljhkim/gda/internal/remote"
)

// MarkerName is the object that marks a release prefix as a release.
const MarkerName = ".release.json"

// S3API is the subset of the S3 client the store uses.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// Options configures the AWS client built by New.
type Options struct {
	// Region overrides the region from the default credential chain.
	Region string

	// Endpoint points the client at an S3-compatible service such as MinIO.
	Endpoint string

	// PathStyle forces path-style addressing, which most S3-compatible
	// services require.
	PathStyle bool
}

// Store reads and writes releases in S3.
type Store struct {
	api    S3API
	hasher hash.Hasher
}

// New builds a Store from the default AWS credential chain.
func New(ctx context.Context, opts Options, hasher hash.Hasher) (*Store, error) {
	var loadOpts []func(*config.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(opts.Region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.PathStyle
	})
	return NewWithAPI(client, hasher), nil
}

// NewWithAPI wraps an existing S3 client.
func NewWithAPI(api S3API, hasher hash.Hasher) *Store {
	return &Store{api: api, hasher: hasher}
}

type location struct {
	bucket string
	prefix string
}

func parseRepo(repo string) (location, error) {
	bucket, prefix, _ := strings.Cut(strings.Trim(repo, "/"), "/")
	if bucket == "" {
		return location{}, fmt.Errorf("%w: %q, expected bucket[/prefix]", remote.ErrInvalidRepository, repo)
	}
	return location{bucket: bucket, prefix: strings.Trim(prefix, "/")}, nil
}

func (l location) releasePrefix(tag string) string {
	if l.prefix == "" {
		return tag + "/"
	}
	return l.prefix + "/" + tag + "/"
}

func objectURL(bucket, key string) string {
	return "s3://" + bucket + "/" + key
}

func parseURL(rawURL string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(rawURL, "s3://")
	if !ok {
		return "", "", fmt.Errorf("%w: not an s3:// URL: %s", remote.ErrInvalidRepository, rawURL)
	}
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("%w: malformed s3 URL: %s", remote.ErrInvalidRepository, rawURL)
	}
	return bucket, key, nil
}

// apiError converts an SDK failure into a *remote.Error. Missing objects
// are reported as notFound when one is given.
func apiError(op string, err error, notFound error) error {
	status := 0
	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		status = respErr.HTTPStatusCode()
	}

	var noSuchKey *types.NoSuchKey
	var missing *types.NotFound
	if notFound != nil && (errors.As(err, &noSuchKey) || errors.As(err, &missing) || status == http.StatusNotFound) {
		if status == 0 {
			status = http.StatusNotFound
		}
		err = notFound
	}
	return &remote.Error{Op: op, StatusCode: status, Err: err}
}

type marker struct {
	Tag  string `json:"tag"`
	Name string `json:"name"`
}

func (s *Store) GetRelease(ctx context.Context, repo, tag string) (*remote.Release, error) {
	loc, err := parseRepo(repo)
	if err != nil {
		return nil, err
	}
	prefix := loc.releasePrefix(tag)

	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(loc.bucket),
		Key:    aws.String(prefix + MarkerName),
	})
	if err != nil {
		return nil, apiError("get release", err, fmt.Errorf("%w: %s@%s", remote.ErrReleaseNotFound, repo, tag))
	}
	var m marker
	decodeErr := json.NewDecoder(out.Body).Decode(&m)
	_ = out.Body.Close()
	if decodeErr != nil {
		return nil, &remote.Error{Op: "get release", Err: fmt.Errorf("unreadable release marker: %w", decodeErr)}
	}

	rel := &remote.Release{Tag: tag, Name: m.Name}
	if rel.Name == "" {
		rel.Name = tag
	}

	paginator := s3.NewListObjectsV2Paginator(s.api, &s3.ListObjectsV2Input{
		Bucket: aws.String(loc.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, apiError("list assets", err, nil)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			name := strings.TrimPrefix(key, prefix)
			// Nested keys are not assets of this release
			if name == MarkerName || name == "" || strings.Contains(name, "/") {
				continue
			}
			rel.Assets = append(rel.Assets, remote.Asset{
				Name:        name,
				URL:         objectURL(loc.bucket, key),
				Size:        aws.ToInt64(obj.Size),
				ContentType: contentTypeFor(name),
			})
		}
	}
	return rel, nil
}

func contentTypeFor(name string) string {
	if path.Ext(name) == ".zip" {
		return "application/zip"
	}
	return "application/octet-stream"
}

func (s *Store) CreateRelease(ctx context.Context, repo, tag, name string) (*remote.Release, error) {
	loc, err := parseRepo(repo)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(marker{Tag: tag, Name: name})
	if err != nil {
		return nil, err
	}
	_, err = s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(loc.bucket),
		Key:         aws.String(loc.releasePrefix(tag) + MarkerName),
		Body:        strings.NewReader(string(body)),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return nil, apiError("create release", err, nil)
	}
	return &remote.Release{Tag: tag, Name: name}, nil
}

func (s *Store) UploadAsset(ctx context.Context, repo string, release *remote.Release, name string, r io.Reader, size int64, contentType string) (*remote.Asset, error) {
	loc, err := parseRepo(repo)
	if err != nil {
		return nil, err
	}
	key := loc.releasePrefix(release.Tag) + name
	_, err = s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(loc.bucket),
		Key:           aws.String(key),
		Body:          r,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return nil, apiError("upload asset", err, nil)
	}
	return &remote.Asset{
		Name:        name,
		URL:         objectURL(loc.bucket, key),
		Size:        size,
		ContentType: contentType,
	}, nil
}

func (s *Store) DeleteAsset(ctx context.Context, repo string, asset *remote.Asset) error {
	bucket, key, err := parseURL(asset.URL)
	if err != nil {
		return err
	}
	_, err = s.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return apiError("delete asset", err, remote.ErrAssetNotFound)
	}
	return nil
}

func (s *Store) open(ctx context.Context, op, rawURL string) (io.ReadCloser, error) {
	bucket, key, err := parseURL(rawURL)
	if err != nil {
		return nil, err
	}
	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, apiError(op, err, fmt.Errorf("%w: %s", remote.ErrAssetNotFound, rawURL))
	}
	return out.Body, nil
}

func (s *Store) DownloadAsset(ctx context.Context, rawURL, destPath string) error {
	body, err := s.open(ctx, "download asset", rawURL)
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
	body, err := s.open(ctx, "get remote hash", rawURL)
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
