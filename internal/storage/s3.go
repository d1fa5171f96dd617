// Package storage holds off-site object storage clients.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"

	awsbase "github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Store copies snapshot documents to an S3 bucket
type S3Store struct {
	client *s3.Client
	bucket string
}

// NewS3Store creates an S3-backed snapshot store. Returns nil when no
// bucket is configured, which disables off-site copies.
func NewS3Store(ctx context.Context, awsRegion, bucket string) (*S3Store, error) {
	if bucket == "" {
		return nil, nil
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(awsRegion))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &S3Store{
		client: s3.NewFromConfig(cfg),
		bucket: bucket,
	}, nil
}

// Upload writes an object to the bucket
func (s *S3Store) Upload(ctx context.Context, key string, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      awsbase.String(s.bucket),
		Key:         awsbase.String(key),
		Body:        bytes.NewReader(data),
		ContentType: awsbase.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return nil
}

// Download reads an object back from the bucket
func (s *S3Store) Download(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: awsbase.String(s.bucket),
		Key:    awsbase.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return data, nil
}
