package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"pdfupload/internal/config"
)

// minioStorage implements Storage using an S3-compatible backend (MinIO, AWS S3, etc.).
// The bucket plays the role of the container. It is safe for concurrent use.
type minioStorage struct {
	client *minio.Client
	bucket string
}

// NewMinIO creates a new S3-compatible storage client backed by MinIO.
// Unlike the azure backend it does not touch the network until first use.
func NewMinIO(cfg config.StorageConfig) (Storage, error) {
	m := cfg.MinIO
	if m.Endpoint == "" {
		return nil, fmt.Errorf("minio endpoint is required")
	}
	if m.AccessKey == "" || m.SecretKey == "" {
		return nil, fmt.Errorf("minio credentials are required")
	}
	if cfg.ContainerName == "" {
		return nil, fmt.Errorf("minio bucket is required")
	}

	cli, err := minio.New(m.Endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(m.AccessKey, m.SecretKey, ""),
		Secure:    m.UseSSL,
		Transport: tracedTransport(),
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	return &minioStorage{client: cli, bucket: cfg.ContainerName}, nil
}

func (m *minioStorage) Container() string { return m.bucket }

// EnsureContainer creates the bucket; a bucket we already own is not an error.
func (m *minioStorage) EnsureContainer(ctx context.Context) error {
	err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{})
	if err == nil || isBucketExists(err) {
		return nil
	}
	return fmt.Errorf("create bucket %q: %w", m.bucket, err)
}

func isBucketExists(err error) bool {
	switch minio.ToErrorResponse(err).Code {
	case "BucketAlreadyOwnedByYou", "BucketAlreadyExists":
		return true
	}
	return false
}

// Put uploads an object using streaming I/O. PutObject overwrites existing keys.
func (m *minioStorage) Put(ctx context.Context, key string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error) {
	putOpts := minio.PutObjectOptions{
		ContentType: opt.ContentType,
	}
	info, err := m.client.PutObject(ctx, m.bucket, key, r, opt.Size, putOpts)
	if err != nil {
		return ObjectInfo{}, err
	}
	lastModified := info.LastModified
	if lastModified.IsZero() {
		lastModified = time.Now()
	}
	return ObjectInfo{
		Container:    m.bucket,
		Key:          key,
		Size:         info.Size,
		ETag:         info.ETag,
		ContentType:  opt.ContentType,
		LastModified: lastModified,
	}, nil
}
