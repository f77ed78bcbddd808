package media

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	miniocreds "github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIO implements Provider with the MinIO client.
type MinIO struct {
	client *minio.Client
	cfg    ObjectConfig
}

// NewMinIO builds the client. The endpoint is host[:port]; a scheme, if
// present, is stripped and overrides UseSSL.
func NewMinIO(cfg ObjectConfig) (*MinIO, error) {
	endpoint := cfg.Endpoint
	switch {
	case strings.HasPrefix(endpoint, "https://"):
		cfg.UseSSL = true
		endpoint = strings.TrimPrefix(endpoint, "https://")
	case strings.HasPrefix(endpoint, "http://"):
		cfg.UseSSL = false
		endpoint = strings.TrimPrefix(endpoint, "http://")
	}
	client, err := minio.New(strings.TrimRight(endpoint, "/"), &minio.Options{
		Creds:  miniocreds.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("media: init minio: %w", err)
	}
	return &MinIO{client: client, cfg: cfg}, nil
}

// EnsureBucket creates the bucket when it does not exist yet.
func (m *MinIO) EnsureBucket(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.cfg.Bucket)
	if err != nil {
		return fmt.Errorf("media: check bucket %s: %w", m.cfg.Bucket, err)
	}
	if exists {
		return nil
	}
	if err := m.client.MakeBucket(ctx, m.cfg.Bucket, minio.MakeBucketOptions{Region: m.cfg.Region}); err != nil {
		return fmt.Errorf("media: make bucket %s: %w", m.cfg.Bucket, err)
	}
	return nil
}

// Put uploads the object and returns its public or presigned URL.
func (m *MinIO) Put(ctx context.Context, name string, r io.Reader, size int64, contentType string) (string, error) {
	opts := minio.PutObjectOptions{ContentType: contentType}
	if _, err := m.client.PutObject(ctx, m.cfg.Bucket, name, r, size, opts); err != nil {
		return "", fmt.Errorf("media: put object %s: %w", name, err)
	}
	return m.Locate(ctx, name)
}

// Locate returns the retrieval URL for an existing object.
func (m *MinIO) Locate(ctx context.Context, name string) (string, error) {
	if u := publicURL(m.cfg.PublicBaseURL, name); u != "" {
		return u, nil
	}
	u, err := m.client.PresignedGetObject(ctx, m.cfg.Bucket, name, m.cfg.presignTTL(), url.Values{})
	if err != nil {
		return "", fmt.Errorf("media: presign %s: %w", name, err)
	}
	return u.String(), nil
}

// Delete removes the object.
func (m *MinIO) Delete(ctx context.Context, name string) error {
	if err := m.client.RemoveObject(ctx, m.cfg.Bucket, name, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("media: delete object %s: %w", name, err)
	}
	return nil
}

var (
	_ Provider = (*FS)(nil)
	_ Provider = (*S3)(nil)
	_ Provider = (*MinIO)(nil)
)
