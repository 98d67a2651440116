package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"courier/internal/config"
)

// GCS uploads files to a Google Cloud Storage bucket.
type GCS struct {
	client  *storage.Client
	bucket  string
	prefix  string
	timeout time.Duration
}

// NewGCS creates a storage client. Without a credentials file the client
// falls back to Application Default Credentials.
func NewGCS(ctx context.Context, cfg config.GCS, timeout time.Duration) (*GCS, error) {
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, errors.New("gcs: bucket is required")
	}
	var opts []option.ClientOption
	if creds := strings.TrimSpace(cfg.CredentialsFile); creds != "" {
		opts = append(opts, option.WithCredentialsFile(creds))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gcs: create client: %w", err)
	}
	return &GCS{client: client, bucket: bucket, prefix: cfg.Prefix, timeout: timeout}, nil
}

// ObjectName returns the object key used for remoteKey.
func (g *GCS) ObjectName(remoteKey string) string {
	return joinKey(g.prefix, remoteKey)
}

// Send streams the file into a new object. A completed write is 201; API
// refusals carry the API status code without an error.
func (g *GCS) Send(ctx context.Context, localPath, remoteKey string) (int, error) {
	ctx, cancel := boundContext(ctx, g.timeout)
	defer cancel()

	file, err := os.Open(localPath)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", localPath, err)
	}
	defer file.Close()

	w := g.client.Bucket(g.bucket).Object(g.ObjectName(remoteKey)).NewWriter(ctx)
	w.ContentType = "application/octet-stream"
	w.Metadata = map[string]string{"source_key": remoteKey}

	if _, err := io.Copy(w, file); err != nil {
		_ = w.Close()
		return statusFromGoogleError(err)
	}
	if err := w.Close(); err != nil {
		return statusFromGoogleError(err)
	}
	return StatusCreated, nil
}

// Close releases the storage client.
func (g *GCS) Close() error {
	return g.client.Close()
}

func statusFromGoogleError(err error) (int, error) {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code >= 400 && apiErr.Code < 500 {
		return apiErr.Code, nil
	}
	return 0, fmt.Errorf("gcs upload: %w", err)
}
