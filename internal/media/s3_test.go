package media

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"sort"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 keeps objects in memory and counts downloads so cache-once
// semantics can be asserted.
type fakeS3 struct {
	objects   map[string][]byte
	buckets   map[string]struct{}
	downloads int
}

func newFakeS3() *fakeS3 {
	return &fakeS3{
		objects: make(map[string][]byte),
		buckets: make(map[string]struct{}),
	}
}

func (f *fakeS3) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	f.objects[*params.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, params *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[*params.Key]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	f.downloads++
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, params *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	keys := make([]string, 0, len(f.objects))
	for key := range f.objects {
		if strings.HasPrefix(key, aws.ToString(params.Prefix)) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	contents := make([]types.Object, 0, len(keys))
	for _, key := range keys {
		contents = append(contents, types.Object{Key: aws.String(key)})
	}
	return &s3.ListObjectsV2Output{Contents: contents, IsTruncated: aws.Bool(false)}, nil
}

func (f *fakeS3) HeadBucket(_ context.Context, params *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	if _, ok := f.buckets[*params.Bucket]; !ok {
		return nil, errors.New("NotFound")
	}
	return &s3.HeadBucketOutput{}, nil
}

func (f *fakeS3) CreateBucket(_ context.Context, params *s3.CreateBucketInput, _ ...func(*s3.Options)) (*s3.CreateBucketOutput, error) {
	f.buckets[*params.Bucket] = struct{}{}
	return &s3.CreateBucketOutput{}, nil
}

func newS3Storage(t *testing.T, client S3API, objectPrefix string) *S3Storage {
	t.Helper()
	storage, err := NewS3(context.Background(), client, "listings", objectPrefix, t.TempDir())
	require.NoError(t, err)
	return storage
}

func TestS3NewCreatesMissingBucket(t *testing.T) {
	t.Parallel()
	client := newFakeS3()
	newS3Storage(t, client, "")

	_, ok := client.buckets["listings"]
	assert.True(t, ok)
}

func TestS3UploadAndListHandles(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	client := newFakeS3()
	storage := newS3Storage(t, client, "photos")

	session, err := storage.CreateSession(7)
	require.NoError(t, err)
	assert.Empty(t, session.Dir)

	for _, name := range []string{"photo_2.jpg", "photo_1.jpg"} {
		path := writeStagedPhoto(t, storage, session, name)
		handle, err := storage.FinalizeUpload(ctx, session, path)
		require.NoError(t, err)
		assert.Equal(t, session.Key+"/"+name, handle)
	}

	// Object keys carry the configured prefix; handles do not.
	_, ok := client.objects["photos/"+session.Key+"/photo_1.jpg"]
	assert.True(t, ok)

	handles, err := storage.ListHandles(ctx, session.Key)
	require.NoError(t, err)
	assert.Equal(t, []string{
		session.Key + "/photo_1.jpg",
		session.Key + "/photo_2.jpg",
	}, handles)
}

func TestS3CachePhotoDownloadsOnce(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	client := newFakeS3()
	storage := newS3Storage(t, client, "")

	session, err := storage.CreateSession(7)
	require.NoError(t, err)
	path := writeStagedPhoto(t, storage, session, "photo_1.jpg")
	handle, err := storage.FinalizeUpload(ctx, session, path)
	require.NoError(t, err)

	// The staged copy doubles as the cache entry, so drop it to force a
	// real download.
	require.NoError(t, os.Remove(path))

	first, err := storage.CachePhoto(ctx, handle)
	require.NoError(t, err)
	assert.FileExists(t, first)
	assert.Equal(t, 1, client.downloads)

	second, err := storage.CachePhoto(ctx, handle)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, client.downloads)
}

func TestS3CachePhotoMissingObject(t *testing.T) {
	t.Parallel()
	storage := newS3Storage(t, newFakeS3(), "")

	_, err := storage.CachePhoto(context.Background(), "some_key/absent.jpg")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestS3CachePhotoRejectsTraversal(t *testing.T) {
	t.Parallel()
	storage := newS3Storage(t, newFakeS3(), "")

	for _, handle := range []string{"../../etc/passwd", "key/../../secret", "/etc/passwd"} {
		_, err := storage.CachePhoto(context.Background(), handle)
		assert.ErrorIs(t, err, ErrNotFound, "handle %q", handle)
	}
}

func TestS3GetSessionRejectsTraversal(t *testing.T) {
	t.Parallel()
	storage := newS3Storage(t, newFakeS3(), "")

	_, err := storage.GetSession("../escape")
	assert.ErrorIs(t, err, ErrNotFound)

	session, err := storage.GetSession("7_20240101120000_abc123")
	require.NoError(t, err)
	assert.Equal(t, "7_20240101120000_abc123", session.Key)
}
