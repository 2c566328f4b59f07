// Package storage uploads generation artifacts to an S3-compatible
// object store. A nil *Client is valid and performs no uploads, so
// callers need not branch on whether storage is configured.
package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/BaSui01/meshflow/config"
	"github.com/BaSui01/meshflow/internal/tlsutil"
)

// Client wraps an S3-compatible object store holding generation
// artifacts under generations/<id>/ prefixes.
type Client struct {
	client *minio.Client
	bucket string
	logger *zap.Logger
}

// New builds a Client from the storage configuration. It returns
// (nil, nil) when storage is disabled, and ensures the bucket exists
// otherwise.
func New(cfg config.StorageConfig, logger *zap.Logger) (*Client, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("storage endpoint is required")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("storage credentials are required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("storage bucket is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	cli, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:    cfg.UseSSL,
		Transport: tlsutil.SecureTransport(),
	})
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	exists, err := cli.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := cli.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}

	c := &Client{
		client: cli,
		bucket: cfg.Bucket,
		logger: logger.With(zap.String("component", "storage")),
	}
	c.logger.Info("object storage ready",
		zap.String("endpoint", cfg.Endpoint),
		zap.String("bucket", cfg.Bucket),
	)
	return c, nil
}

// Enabled reports whether uploads will actually happen.
func (c *Client) Enabled() bool {
	return c != nil
}

// Upload streams one object and returns its canonical URL.
func (c *Client) Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	if c == nil {
		return "", nil
	}
	_, err := c.client.PutObject(ctx, c.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("put %s: %w", key, err)
	}
	return c.ObjectURL(key), nil
}

// UploadFile uploads a local file under the given key.
func (c *Client) UploadFile(ctx context.Context, key, localPath string) (string, error) {
	if c == nil {
		return "", nil
	}
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", localPath, err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", localPath, err)
	}
	return c.Upload(ctx, key, f, st.Size(), ContentTypeFor(localPath))
}

// UploadArtifacts uploads the named generation artifacts to
// generations/<id>/<basename> and returns the object URL per label.
// Empty paths are skipped and upload failures are logged, not fatal.
func (c *Client) UploadArtifacts(ctx context.Context, generationID string, artifacts map[string]string) map[string]string {
	if c == nil || len(artifacts) == 0 {
		return nil
	}
	urls := make(map[string]string, len(artifacts))
	for label, localPath := range artifacts {
		if localPath == "" {
			continue
		}
		key := path.Join("generations", generationID, filepath.Base(localPath))
		u, err := c.UploadFile(ctx, key, localPath)
		if err != nil {
			c.logger.Warn("artifact upload failed",
				zap.String("generation_id", generationID),
				zap.String("label", label),
				zap.Error(err),
			)
			continue
		}
		c.logger.Debug("artifact uploaded",
			zap.String("generation_id", generationID),
			zap.String("key", key),
		)
		urls[label] = u
	}
	return urls
}

// PresignGet returns a time-limited download URL for an object.
func (c *Client) PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error) {
	if c == nil {
		return "", fmt.Errorf("storage is not configured")
	}
	u, err := c.client.PresignedGetObject(ctx, c.bucket, key, expiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return u.String(), nil
}

// ObjectURL returns the canonical, non-expiring URL of an object.
func (c *Client) ObjectURL(key string) string {
	if c == nil {
		return ""
	}
	base := c.client.EndpointURL()
	return fmt.Sprintf("%s://%s/%s/%s", base.Scheme, base.Host, c.bucket, key)
}

// ContentTypeFor maps an artifact file name to its MIME type.
func ContentTypeFor(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json":
		return "application/json"
	case ".yaml", ".yml":
		return "application/yaml"
	case ".png":
		return "image/png"
	default:
		return "application/octet-stream"
	}
}
