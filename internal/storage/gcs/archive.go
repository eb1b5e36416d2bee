// Package gcs archives raw fetched bodies in a Google Cloud Storage bucket.
package gcs

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"
)

// Archive uploads raw bodies to a GCS bucket.
type Archive struct {
	client *storage.Client
	bucket string
	logger *zap.Logger
}

// New initializes a GCS client and verifies the bucket is reachable, so a
// misconfigured deployment fails at startup instead of mid-run.
// Authentication comes from Application Default Credentials.
func New(ctx context.Context, bucket string, logger *zap.Logger) (*Archive, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}
	if _, err := client.Bucket(bucket).Attrs(ctx); err != nil {
		if closeErr := client.Close(); closeErr != nil {
			logger.Warn("failed to close gcs client after bucket check", zap.Error(closeErr))
		}
		return nil, fmt.Errorf("check gcs bucket %q: %w", bucket, err)
	}
	return &Archive{client: client, bucket: bucket, logger: logger}, nil
}

// Save uploads data as objectName.
func (a *Archive) Save(ctx context.Context, objectName string, data []byte) error {
	wc := a.client.Bucket(a.bucket).Object(objectName).NewWriter(ctx)
	if _, err := wc.Write(data); err != nil {
		if closeErr := wc.Close(); closeErr != nil {
			a.logger.Warn("failed to close gcs writer after write failure", zap.Error(closeErr))
		}
		return fmt.Errorf("write gcs object %s: %w", objectName, err)
	}
	// Close finalizes the upload.
	if err := wc.Close(); err != nil {
		return fmt.Errorf("close gcs writer for %s: %w", objectName, err)
	}
	return nil
}

// Close releases the underlying client.
func (a *Archive) Close() error {
	return a.client.Close()
}
