package media

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3API is the subset of the S3 client used by the object storage backend.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
}

// S3Storage keeps blobs in an S3-compatible bucket and materializes them
// into a local cache directory on demand. A cached object is never
// re-fetched.
type S3Storage struct {
	client   S3API
	bucket   string
	prefix   string
	cacheDir string
}

// NewS3 creates the object storage backend and asserts the bucket exists,
// creating it when missing.
func NewS3(ctx context.Context, client S3API, bucket, objectPrefix, cacheDir string) (*S3Storage, error) {
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	abs, err := filepath.Abs(cacheDir)
	if err != nil {
		return nil, fmt.Errorf("resolve cache directory: %w", err)
	}
	prefix := strings.Trim(objectPrefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	st := &S3Storage{client: client, bucket: bucket, prefix: prefix, cacheDir: abs}
	if err := st.ensureBucket(ctx); err != nil {
		return nil, err
	}
	return st, nil
}

func (s *S3Storage) ensureBucket(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err == nil {
		return nil
	}
	if _, err := s.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(s.bucket)}); err != nil {
		return fmt.Errorf("ensure bucket %s: %w", s.bucket, err)
	}
	return nil
}

func (s *S3Storage) CreateSession(userID int64) (Session, error) {
	key := generateSessionKey(userID)
	slog.Debug("created object media session", "key", key)
	return Session{Key: key}, nil
}

func (s *S3Storage) GetSession(sessionKey string) (Session, error) {
	// The key becomes both an object key segment and a cache subdirectory,
	// so it gets the same traversal check as local storage.
	if _, err := resolveWithin(s.cacheDir, sessionKey); err != nil {
		slog.Warn("rejected session key resolving outside cache root", "key", sessionKey)
		return Session{}, err
	}
	return Session{Key: sessionKey}, nil
}

func (s *S3Storage) AllocatePath(session Session, filename string) (string, error) {
	name, err := sanitizeFilename(filename)
	if err != nil {
		return "", err
	}
	dir, err := resolveWithin(s.cacheDir, session.Key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create staging directory: %w", err)
	}
	return filepath.Join(dir, name), nil
}

// FinalizeUpload synchronously uploads the staged file and returns its
// handle.
func (s *S3Storage) FinalizeUpload(ctx context.Context, session Session, path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open staged file: %w", err)
	}
	defer file.Close()

	name := filepath.Base(path)
	objectName := s.objectName(session.Key + "/" + name)
	if _, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectName),
		Body:   file,
	}); err != nil {
		return "", fmt.Errorf("upload %s: %w", objectName, err)
	}
	handle := session.Key + "/" + name
	slog.Debug("uploaded media object", "bucket", s.bucket, "object", objectName, "handle", handle)
	return handle, nil
}

// ListHandles enumerates objects under the session's key prefix and strips
// the configured object prefix to recover bare handles.
func (s *S3Storage) ListHandles(ctx context.Context, sessionKey string) ([]string, error) {
	prefix := s.objectName(sessionKey + "/")
	handles := []string{}
	var token *string
	for {
		out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: token,
		})
		if err != nil {
			slog.Warn("failed to list objects for session", "key", sessionKey, "error", err)
			return handles, nil
		}
		for _, obj := range out.Contents {
			if obj.Key == nil || *obj.Key == "" {
				continue
			}
			handles = append(handles, s.handleFromObjectName(*obj.Key))
		}
		if out.IsTruncated == nil || !*out.IsTruncated {
			break
		}
		token = out.NextContinuationToken
	}
	sort.Strings(handles)
	return handles, nil
}

// CachePhoto downloads the object into the local cache on first access and
// reuses the cached file afterwards.
func (s *S3Storage) CachePhoto(ctx context.Context, handle string) (string, error) {
	target, err := resolveWithin(s.cacheDir, handle)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(target); err == nil {
		return target, nil
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("create cache directory: %w", err)
	}
	objectName := s.objectName(handle)
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectName),
	})
	if err != nil {
		slog.Warn("failed to download media object", "object", objectName, "error", err)
		return "", ErrNotFound
	}
	defer out.Body.Close()

	file, err := os.Create(target)
	if err != nil {
		return "", fmt.Errorf("create cache file: %w", err)
	}
	if _, err := io.Copy(file, out.Body); err != nil {
		file.Close()
		os.Remove(target)
		return "", fmt.Errorf("write cache file: %w", err)
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("close cache file: %w", err)
	}
	return target, nil
}

func (s *S3Storage) objectName(handle string) string {
	return s.prefix + strings.TrimLeft(handle, "/")
}

func (s *S3Storage) handleFromObjectName(objectName string) string {
	if s.prefix != "" && strings.HasPrefix(objectName, s.prefix) {
		return objectName[len(s.prefix):]
	}
	return objectName
}
