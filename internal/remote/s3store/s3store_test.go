package s3store

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danieljhkim/gda/internal/hash"
	"github.com/danieljhkim/gda/internal/remote"
)

// fakeS3 is an in-memory bucket set keyed by "bucket/key".
type fakeS3 struct {
	objects      map[string][]byte
	contentTypes map[string]string
	pageSize     int
	listCalls    int
}

func newFakeS3() *fakeS3 {
	return &fakeS3{
		objects:      make(map[string][]byte),
		contentTypes: make(map[string]string),
		pageSize:     1000,
	}
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	k := aws.ToString(in.Bucket) + "/" + aws.ToString(in.Key)
	f.objects[k] = data
	f.contentTypes[k] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{Message: aws.String("The specified key does not exist.")}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.listCalls++
	bucketPrefix := aws.ToString(in.Bucket) + "/"
	var keys []string
	for k := range f.objects {
		key, ok := strings.CutPrefix(k, bucketPrefix)
		if ok && strings.HasPrefix(key, aws.ToString(in.Prefix)) && key > aws.ToString(in.ContinuationToken) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	if len(keys) > f.pageSize {
		keys = keys[:f.pageSize]
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String(keys[len(keys)-1])
	}
	for _, key := range keys {
		out.Contents = append(out.Contents, types.Object{
			Key:  aws.String(key),
			Size: aws.Int64(int64(len(f.objects[bucketPrefix+key]))),
		})
	}
	return out, nil
}

func TestStore_ReleaseLifecycle(t *testing.T) {
	ctx := context.Background()
	api := newFakeS3()
	store := NewWithAPI(api, hash.NewSHA256Hasher())

	_, err := store.GetRelease(ctx, "assets/team", "v1")
	require.ErrorIs(t, err, remote.ErrReleaseNotFound)
	assert.Equal(t, 404, remote.StatusCode(err))

	rel, err := store.CreateRelease(ctx, "assets/team", "v1", "First")
	require.NoError(t, err)
	assert.Contains(t, api.objects, "assets/team/v1/"+MarkerName)

	asset, err := store.UploadAsset(ctx, "assets/team", rel, "data.zip", strings.NewReader("zipbytes"), 8, "application/zip")
	require.NoError(t, err)
	assert.Equal(t, "s3://assets/team/v1/data.zip", asset.URL)
	assert.Equal(t, "application/zip", api.contentTypes["assets/team/v1/data.zip"])

	// A nested object is not an asset of the release
	api.objects["assets/team/v1/nested/x.zip"] = []byte("x")

	got, err := store.GetRelease(ctx, "assets/team", "v1")
	require.NoError(t, err)
	assert.Equal(t, "v1", got.Tag)
	assert.Equal(t, "First", got.Name)
	require.Len(t, got.Assets, 1)
	assert.Equal(t, "data.zip", got.Assets[0].Name)
	assert.Equal(t, int64(8), got.Assets[0].Size)

	require.NoError(t, store.DeleteAsset(ctx, "assets/team", asset))
	got, err = store.GetRelease(ctx, "assets/team", "v1")
	require.NoError(t, err)
	assert.Empty(t, got.Assets)
}

func TestStore_GetRelease_Paginates(t *testing.T) {
	ctx := context.Background()
	api := newFakeS3()
	api.pageSize = 2
	store := NewWithAPI(api, hash.NewSHA256Hasher())

	rel, err := store.CreateRelease(ctx, "bucket", "v2", "v2")
	require.NoError(t, err)
	for _, name := range []string{"a.zip", "b.zip", "c.zip", "d.zip"} {
		_, err := store.UploadAsset(ctx, "bucket", rel, name, strings.NewReader(name), int64(len(name)), "application/zip")
		require.NoError(t, err)
	}

	got, err := store.GetRelease(ctx, "bucket", "v2")
	require.NoError(t, err)
	assert.Len(t, got.Assets, 4)
	assert.Greater(t, api.listCalls, 1)
}

func TestStore_DownloadAndHash(t *testing.T) {
	ctx := context.Background()
	api := newFakeS3()
	api.objects["bucket/v1/data.zip"] = []byte("payload")
	store := NewWithAPI(api, hash.NewSHA256Hasher())

	dest := filepath.Join(t.TempDir(), "cache", "data.zip")
	require.NoError(t, store.DownloadAsset(ctx, "s3://bucket/v1/data.zip", dest))
	content, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(content))

	sum, err := store.GetRemoteHash(ctx, "s3://bucket/v1/data.zip")
	require.NoError(t, err)
	want, err := hash.NewSHA256Hasher().HashFile(dest)
	require.NoError(t, err)
	assert.Equal(t, want, sum)

	err = store.DownloadAsset(ctx, "s3://bucket/v1/missing.zip", dest)
	assert.ErrorIs(t, err, remote.ErrAssetNotFound)
}

func TestParseRepoAndURL(t *testing.T) {
	loc, err := parseRepo("bucket/a/b/")
	require.NoError(t, err)
	assert.Equal(t, "bucket", loc.bucket)
	assert.Equal(t, "a/b/v1/", loc.releasePrefix("v1"))

	loc, err = parseRepo("bucket")
	require.NoError(t, err)
	assert.Equal(t, "v1/", loc.releasePrefix("v1"))

	_, err = parseRepo("/")
	assert.ErrorIs(t, err, remote.ErrInvalidRepository)

	bucket, key, err := parseURL("s3://bucket/v1/data.zip")
	require.NoError(t, err)
	assert.Equal(t, "bucket", bucket)
	assert.Equal(t, "v1/data.zip", key)

	_, _, err = parseURL("https://example.com/data.zip")
	assert.ErrorIs(t, err, remote.ErrInvalidRepository)
}
