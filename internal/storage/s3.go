// Package storage re-hosts generated cover images: temporary service
// URLs expire, so bytes are copied into S3 for a permanent URL.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/sybotstackdev/fyaar-be-sub000/internal/config"
)

// S3Storage uploads cover bytes to a bucket and returns permanent URLs.
type S3Storage struct {
	client *s3.Client
	bucket string
	region string
}

// NewS3Storage builds the storage client from config.
func NewS3Storage(ctx context.Context, cfg config.Config) (*S3Storage, error) {
	if cfg.CoverS3Bucket == "" {
		return nil, fmt.Errorf("COVER_S3_BUCKET is not configured")
	}
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.CoverS3Region),
	}
	if cfg.CoverS3Endpoint != "" {
		resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, _ ...interface{}) (aws.Endpoint, error) {
			if service == s3.ServiceID {
				return aws.Endpoint{
					URL:               cfg.CoverS3Endpoint,
					HostnameImmutable: cfg.CoverS3PathStyle,
					SigningRegion:     cfg.CoverS3Region,
					Source:            aws.EndpointSourceCustom,
				}, nil
			}
			return aws.Endpoint{}, &aws.EndpointNotFoundError{}
		})
		opts = append(opts, awsconfig.WithEndpointResolverWithOptions(resolver))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.CoverS3PathStyle
	})
	return &S3Storage{client: client, bucket: cfg.CoverS3Bucket, region: cfg.CoverS3Region}, nil
}

// Upload writes the bytes under folder with a fresh key and returns
// the permanent URL.
func (s *S3Storage) Upload(ctx context.Context, data []byte, folder, key, contentType string) (string, error) {
	fullKey := key
	if folder != "" {
		fullKey = strings.TrimSuffix(folder, "/") + "/" + key
	}
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(fullKey),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("put object: %w", err)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, fullKey), nil
}

// Delete removes a previously uploaded object by its permanent URL.
func (s *S3Storage) Delete(ctx context.Context, permanentURL string) error {
	u, err := url.Parse(permanentURL)
	if err != nil {
		return fmt.Errorf("parse url: %w", err)
	}
	key := strings.TrimPrefix(u.Path, "/")
	if key == "" {
		return fmt.Errorf("no object key in url %q", permanentURL)
	}
	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}
