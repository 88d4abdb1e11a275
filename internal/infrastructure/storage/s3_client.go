package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
)

type S3Client struct {
	client     *s3.S3
	bucketName string
	baseURL    string
}

// NewS3Client uses the default AWS credential chain. endpoint is set for S3-compatible stores (MinIO, R2).
func NewS3Client(bucketName, region, endpoint, baseURL string) (*S3Client, error) {
	cfg := &aws.Config{Region: aws.String(region)}
	if endpoint != "" {
		cfg.Endpoint = aws.String(endpoint)
		cfg.S3ForcePathStyle = aws.Bool(true)
	}

	sess, err := session.NewSession(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %v", err)
	}

	if baseURL == "" {
		if endpoint != "" {
			baseURL = fmt.Sprintf("%s/%s", strings.TrimRight(endpoint, "/"), bucketName)
		} else {
			baseURL = fmt.Sprintf("https://%s.s3.amazonaws.com", bucketName)
		}
	}

	return &S3Client{client: s3.New(sess), bucketName: bucketName, baseURL: baseURL}, nil
}

func (c *S3Client) Upload(ctx context.Context, path string, data []byte, contentType string) error {
	_, err := c.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(c.bucketName),
		Key:          aws.String(path),
		Body:         bytes.NewReader(data),
		ContentType:  aws.String(contentType),
		CacheControl: aws.String("public, max-age=86400"),
		ACL:          aws.String("public-read"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload to S3: %v", err)
	}
	return nil
}

func (c *S3Client) PublicURL(path string) string {
	return c.baseURL + "/" + path
}
