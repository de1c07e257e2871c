package store

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
)

// S3Config locates the bucket profile exports are archived to.
type S3Config struct {
	AccessKey string
	SecretKey string
	Region    string
	Bucket    string
	Prefix    string
}

// S3Archive uploads profile exports to S3 and hands out download links.
type S3Archive struct {
	client s3iface.S3API
	bucket string
	region string
	prefix string
}

func NewS3Archive(cfg S3Config) (*S3Archive, error) {
	if cfg.AccessKey == "" || cfg.SecretKey == "" || cfg.Region == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("AWS credentials not configured")
	}

	sess, err := session.NewSession(&aws.Config{
		Region:      aws.String(cfg.Region),
		Credentials: credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, ""),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}
	return NewS3ArchiveWithClient(s3.New(sess), cfg), nil
}

// NewS3ArchiveWithClient uses an existing client.
func NewS3ArchiveWithClient(client s3iface.S3API, cfg S3Config) *S3Archive {
	return &S3Archive{client: client, bucket: cfg.Bucket, region: cfg.Region, prefix: cfg.Prefix}
}

func (a *S3Archive) validate() error {
	if a.bucket == "" {
		return fmt.Errorf("bucket name is required")
	}
	if a.region == "" {
		return fmt.Errorf("region is required")
	}
	return nil
}

// Upload stores body under name and returns a presigned download URL.
func (a *S3Archive) Upload(ctx context.Context, name string, body []byte, contentType string) (string, error) {
	if err := a.validate(); err != nil {
		return "", err
	}
	key := a.prefix + name
	_, err := a.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}
	return a.PresignedURL(key)
}

// PresignedURL returns a link to key that expires in one hour.
func (a *S3Archive) PresignedURL(key string) (string, error) {
	req, _ := a.client.GetObjectRequest(&s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	url, err := req.Presign(1 * time.Hour)
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}
	return url, nil
}

func (a *S3Archive) Delete(ctx context.Context, name string) error {
	_, err := a.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(a.prefix + name),
	})
	if err != nil {
		return fmt.Errorf("failed to delete file from S3: %w", err)
	}
	return nil
}
