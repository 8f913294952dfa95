package storage

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/google/uuid"
)

// ImageArchive stores the original uploaded receipt photos in an
// S3-compatible bucket so a persisted receipt can be traced back to its
// source image. Archiving is best-effort; the pipeline continues without
// it.
type ImageArchive struct {
	s3Client *s3.S3
	bucket   string
	endpoint string
}

// Config holds configuration for the image archive
type Config struct {
	Endpoint        string
	AccessKeyID     string
	AccessKeySecret string
	Bucket          string
	Region          string
}

// NewImageArchive creates a new S3-backed image archive
func NewImageArchive(config *Config) (*ImageArchive, error) {
	if config.Endpoint == "" || config.AccessKeyID == "" || config.AccessKeySecret == "" {
		return nil, fmt.Errorf("archive storage configuration is incomplete")
	}

	if config.Bucket == "" {
		return nil, fmt.Errorf("archive bucket is not configured")
	}

	sess := session.Must(session.NewSession(&aws.Config{
		Region:           aws.String(config.Region),
		Endpoint:         aws.String(config.Endpoint),
		Credentials:      credentials.NewStaticCredentials(config.AccessKeyID, config.AccessKeySecret, ""),
		S3ForcePathStyle: aws.Bool(true),
	}))

	return &ImageArchive{
		s3Client: s3.New(sess),
		bucket:   config.Bucket,
		endpoint: config.Endpoint,
	}, nil
}

// StoreImage uploads receipt image bytes under a random object name and
// returns the object URL.
func (a *ImageArchive) StoreImage(imageData []byte, contentType string) (string, error) {
	if contentType == "" {
		contentType = "image/png"
	}

	key := fmt.Sprintf("receipt_%s%s", uuid.NewString(), extensionFor(contentType))

	_, err := a.s3Client.PutObject(&s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(imageData),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(imageData))),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload image to archive: %w", err)
	}

	return fmt.Sprintf("%s/%s/%s", strings.TrimRight(a.endpoint, "/"), a.bucket, key), nil
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	default:
		return ".png"
	}
}
