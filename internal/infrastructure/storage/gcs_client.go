package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"shopdesk/pkg/logger"
)

type CloudStorageClient struct {
	client     *storage.Client
	bucketName string
	baseURL    string
}

// NewCloudStorageClient opens a GCS bucket. baseURL overrides the default
// https://storage.googleapis.com/<bucket> prefix, for buckets served behind a CDN.
func NewCloudStorageClient(ctx context.Context, bucketName, baseURL, credentialsPath string, origins []string) (*CloudStorageClient, error) {
	var opts []option.ClientOption
	if credentialsPath != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsPath))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %v", err)
	}

	if baseURL == "" {
		baseURL = fmt.Sprintf("https://storage.googleapis.com/%s", bucketName)
	}

	storageClient := &CloudStorageClient{
		client:     client,
		bucketName: bucketName,
		baseURL:    baseURL,
	}

	if err := storageClient.setBucketCORS(ctx, origins); err != nil {
		logger.Warn("Failed to set CORS configuration: %v", err)
	}

	return storageClient, nil
}

func (c *CloudStorageClient) setBucketCORS(ctx context.Context, origins []string) error {
	bucket := c.client.Bucket(c.bucketName)

	corsConfig := storage.CORS{
		MaxAge:          3600, // 1 hour
		Methods:         []string{"GET", "HEAD", "OPTIONS"},
		Origins:         origins,
		ResponseHeaders: []string{"Content-Type"},
	}

	bucketAttrs, err := bucket.Attrs(ctx)
	if err != nil {
		return fmt.Errorf("failed to get bucket attributes: %v", err)
	}

	if len(bucketAttrs.CORS) == 0 {
		_, err := bucket.Update(ctx, storage.BucketAttrsToUpdate{CORS: []storage.CORS{corsConfig}})
		if err != nil {
			return fmt.Errorf("failed to update bucket CORS: %v", err)
		}
	}

	return nil
}

func (c *CloudStorageClient) Upload(ctx context.Context, path string, data []byte, contentType string) error {
	obj := c.client.Bucket(c.bucketName).Object(path)
	wc := obj.NewWriter(ctx)
	wc.ContentType = contentType
	wc.CacheControl = "public, max-age=86400" // 1 day caching

	if _, err := io.Copy(wc, bytes.NewReader(data)); err != nil {
		wc.Close()
		return fmt.Errorf("failed to copy file to GCS: %v", err)
	}

	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close writer: %v", err)
	}

	if err := obj.ACL().Set(ctx, storage.AllUsers, storage.RoleReader); err != nil {
		return fmt.Errorf("failed to set ACL: %v", err)
	}

	return nil
}

func (c *CloudStorageClient) PublicURL(path string) string {
	return c.baseURL + "/" + path
}

func (c *CloudStorageClient) Close() error {
	return c.client.Close()
}
