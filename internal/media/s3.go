package media

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ObjectConfig describes a bucket on an S3-compatible service.
type ObjectConfig struct {
	Endpoint      string
	Region        string
	Bucket        string
	AccessKey     string
	SecretKey     string
	UseSSL        bool
	PublicBaseURL string
	PresignTTL    time.Duration
}

func (c ObjectConfig) presignTTL() time.Duration {
	if c.PresignTTL <= 0 {
		return 24 * time.Hour
	}
	return c.PresignTTL
}

// S3 implements Provider with the AWS SDK. Requests use path-style
// addressing so MinIO and other compatible servers work unchanged.
type S3 struct {
	client  *s3.Client
	presign *s3.PresignClient
	cfg     ObjectConfig
}

// NewS3 builds the client; no request is made until the first Put.
func NewS3(ctx context.Context, cfg ObjectConfig) (*S3, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey, cfg.SecretKey, "",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("media: load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(endpointURL(cfg.Endpoint, cfg.UseSSL))
		}
		o.UsePathStyle = true
	})
	return &S3{client: client, presign: s3.NewPresignClient(client), cfg: cfg}, nil
}

// Put uploads the object and returns its public or presigned URL.
func (s *S3) Put(ctx context.Context, name string, r io.Reader, size int64, contentType string) (string, error) {
	body, ok := r.(io.ReadSeeker)
	if !ok {
		// Payload signing needs a seekable body.
		data, err := io.ReadAll(r)
		if err != nil {
			return "", fmt.Errorf("media: buffer upload: %w", err)
		}
		body = bytes.NewReader(data)
		size = int64(len(data))
	}
	in := &s3.PutObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(name),
		Body:   body,
	}
	if size >= 0 {
		in.ContentLength = aws.Int64(size)
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}
	if _, err := s.client.PutObject(ctx, in); err != nil {
		return "", fmt.Errorf("media: put object %s: %w", name, err)
	}
	return s.Locate(ctx, name)
}

// Locate returns the retrieval URL for an existing object.
func (s *S3) Locate(ctx context.Context, name string) (string, error) {
	if u := publicURL(s.cfg.PublicBaseURL, name); u != "" {
		return u, nil
	}
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(name),
	}, s3.WithPresignExpires(s.cfg.presignTTL()))
	if err != nil {
		return "", fmt.Errorf("media: presign %s: %w", name, err)
	}
	return req.URL, nil
}

// Delete removes the object.
func (s *S3) Delete(ctx context.Context, name string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(name),
	})
	if err != nil {
		return fmt.Errorf("media: delete object %s: %w", name, err)
	}
	return nil
}

func endpointURL(endpoint string, ssl bool) string {
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return endpoint
	}
	if ssl {
		return "https://" + endpoint
	}
	return "http://" + endpoint
}
