package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioConfig holds connection settings for an S3-compatible endpoint.
type MinioConfig struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	Region          string
}

// MinioStore implements Store with the minio-go SDK.
type MinioStore struct {
	client *minio.Client
}

// NewMinioStore creates a client for cfg.Endpoint. The endpoint may carry a
// scheme, which then decides TLS.
func NewMinioStore(cfg MinioConfig) (*MinioStore, error) {
	if cfg.Endpoint == "" {
		return nil, wrapError(CodeEndpointUnreachable, false, errors.New("endpoint is required"))
	}

	endpoint := cfg.Endpoint
	useSSL := cfg.UseSSL
	if strings.Contains(endpoint, "://") {
		u, err := url.Parse(endpoint)
		if err != nil {
			return nil, wrapError(CodeEndpointUnreachable, false, fmt.Errorf("invalid endpoint URL: %w", err))
		}
		endpoint = u.Host
		useSSL = u.Scheme == "https"
	}

	opts := &minio.Options{Secure: useSSL, Region: cfg.Region}
	if cfg.AccessKeyID != "" {
		opts.Creds = credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, "")
	} else {
		opts.Creds = credentials.NewIAM("")
	}

	client, err := minio.New(endpoint, opts)
	if err != nil {
		return nil, wrapError(CodeEndpointUnreachable, true, fmt.Errorf("create minio client: %w", err))
	}
	return &MinioStore{client: client}, nil
}

// Ping checks that the bucket is reachable.
func (s *MinioStore) Ping(ctx context.Context, bucket string) error {
	ok, err := s.client.BucketExists(ctx, bucket)
	if err != nil {
		return classifyMinioError(err)
	}
	if !ok {
		return wrapError(CodeBucketNotFound, false, fmt.Errorf("bucket %q does not exist", bucket))
	}
	return nil
}

func (s *MinioStore) List(ctx context.Context, bucket, prefix string) ([]Object, error) {
	var objects []Object
	for obj := range s.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, classifyMinioError(obj.Err)
		}
		objects = append(objects, Object{Key: obj.Key, Size: obj.Size})
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })
	return objects, nil
}

func (s *MinioStore) Get(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, classifyMinioError(err)
	}
	// GetObject is lazy; Stat surfaces a missing key before the first read.
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, classifyMinioError(err)
	}
	return obj, nil
}

func (s *MinioStore) Put(ctx context.Context, bucket, key string, r io.Reader, size int64) error {
	if key == "" {
		return wrapError(CodeWriteFailed, false, errors.New("object key is required"))
	}
	_, err := s.client.PutObject(ctx, bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType(key),
	})
	if err != nil {
		return classifyMinioError(err)
	}
	return nil
}

func (s *MinioStore) Delete(ctx context.Context, bucket, key string) error {
	if _, err := s.client.StatObject(ctx, bucket, key, minio.StatObjectOptions{}); err != nil {
		return classifyMinioError(err)
	}
	if err := s.client.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return classifyMinioError(err)
	}
	return nil
}

func (s *MinioStore) Tags(ctx context.Context, bucket, key string) (map[string]string, error) {
	t, err := s.client.GetObjectTagging(ctx, bucket, key, minio.GetObjectTaggingOptions{})
	if err != nil {
		return nil, classifyMinioError(err)
	}
	return t.ToMap(), nil
}

// StartCopy runs a server-side copy. S3 completes CopyObject before
// returning, so CopyStatus only confirms the destination exists.
func (s *MinioStore) StartCopy(ctx context.Context, src, dst Ref) error {
	_, err := s.client.CopyObject(ctx,
		minio.CopyDestOptions{Bucket: dst.Bucket, Object: dst.Key},
		minio.CopySrcOptions{Bucket: src.Bucket, Object: src.Key},
	)
	if err != nil {
		return wrapError(CodeCopyFailed, true, fmt.Errorf("copy %s to %s: %w", src, dst, err))
	}
	return nil
}

func (s *MinioStore) CopyStatus(ctx context.Context, dst Ref) (CopyState, error) {
	_, err := s.client.StatObject(ctx, dst.Bucket, dst.Key, minio.StatObjectOptions{})
	if err != nil {
		classified := classifyMinioError(err)
		if classified.Code == CodeObjectNotFound {
			return CopyFailed, nil
		}
		return "", classified
	}
	return CopySuccess, nil
}

func contentType(key string) string {
	switch {
	case strings.HasSuffix(key, ".parquet"):
		return "application/vnd.apache.parquet"
	case strings.HasSuffix(key, ".log"), strings.HasSuffix(key, ".txt"):
		return "text/plain"
	}
	return "application/octet-stream"
}

// classifyMinioError converts minio-go errors to the structured Error type.
func classifyMinioError(err error) *Error {
	if err == nil {
		return nil
	}

	resp := minio.ToErrorResponse(err)
	switch resp.Code {
	case "NoSuchBucket":
		return wrapError(CodeBucketNotFound, false, err)
	case "NoSuchKey", "NoSuchObject":
		return wrapError(CodeObjectNotFound, false, err)
	case "AccessDenied":
		return wrapError(CodePermissionDenied, false, err)
	case "InvalidAccessKeyId", "SignatureDoesNotMatch":
		return wrapError(CodeAuthInvalid, false, err)
	}

	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "no such bucket"):
		return wrapError(CodeBucketNotFound, false, err)
	case strings.Contains(errStr, "no such key"), strings.Contains(errStr, "does not exist"):
		return wrapError(CodeObjectNotFound, false, err)
	case strings.Contains(errStr, "access denied"):
		return wrapError(CodePermissionDenied, false, err)
	case strings.Contains(errStr, "timeout"), strings.Contains(errStr, "deadline"):
		return wrapError(CodeTimeout, true, err)
	case strings.Contains(errStr, "connection refused"), strings.Contains(errStr, "no such host"):
		return wrapError(CodeEndpointUnreachable, true, err)
	}

	return wrapError(CodeWriteFailed, true, err)
}
