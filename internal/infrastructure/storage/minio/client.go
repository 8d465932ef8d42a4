// Package minio stores raw PGN files in an S3-compatible object store.
// Postgres keeps only metadata and results; the canonical game notation
// lives here under one bucket, keyed by game ID.
package minio

import (
	"context"
	"io"
	"net/url"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/turtacn/FairPlay-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/FairPlay-Intelligence/pkg/errors"
)

// Config holds the object store connection settings.
type Config struct {
	Endpoint      string        `mapstructure:"endpoint"`
	AccessKey     string        `mapstructure:"access_key"`
	SecretKey     string        `mapstructure:"secret_key"`
	Bucket        string        `mapstructure:"bucket"`
	UseSSL        bool          `mapstructure:"use_ssl"`
	Region        string        `mapstructure:"region"`
	PresignExpiry time.Duration `mapstructure:"presign_expiry"`
}

func applyDefaults(cfg *Config) {
	if cfg.Bucket == "" {
		cfg.Bucket = "fairplay-pgn"
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if cfg.PresignExpiry == 0 {
		cfg.PresignExpiry = time.Hour
	}
}

// API is the object store surface this package uses. *minio.Client is
// adapted to it so tests can substitute a fake.
type API interface {
	ListBuckets(ctx context.Context) ([]minio.BucketInfo, error)
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	GetObject(ctx context.Context, bucket, key string, opts minio.GetObjectOptions) (io.ReadCloser, error)
	StatObject(ctx context.Context, bucket, key string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	RemoveObject(ctx context.Context, bucket, key string, opts minio.RemoveObjectOptions) error
	PresignedGetObject(ctx context.Context, bucket, key string, expiry time.Duration, params url.Values) (*url.URL, error)
}

// apiAdapter narrows *minio.Client to the API surface. GetObject is
// re-declared because the library returns *minio.Object, not io.ReadCloser.
type apiAdapter struct {
	*minio.Client
}

func (a apiAdapter) GetObject(ctx context.Context, bucket, key string, opts minio.GetObjectOptions) (io.ReadCloser, error) {
	obj, err := a.Client.GetObject(ctx, bucket, key, opts)
	if err != nil {
		return nil, err
	}
	return obj, nil
}

// Client wraps the object store connection and owns the PGN bucket.
type Client struct {
	api       API
	config    Config
	logger    logging.Logger
	closeOnce sync.Once
}

// NewClient connects to the object store, verifies reachability and creates
// the PGN bucket when missing.
func NewClient(cfg Config, log logging.Logger) (*Client, error) {
	applyDefaults(&cfg)
	if log == nil {
		log = logging.NewNopLogger()
	}
	log = log.Named("minio")

	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeObjectStoreFailed, "creating object store client")
	}

	c := &Client{api: apiAdapter{mc}, config: cfg, logger: log}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := c.api.ListBuckets(ctx); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeObjectStoreFailed, "connecting to object store")
	}
	if err := c.EnsureBucket(ctx); err != nil {
		return nil, err
	}

	log.Info("object store connected",
		logging.String("endpoint", cfg.Endpoint),
		logging.String("bucket", cfg.Bucket),
		logging.Bool("ssl", cfg.UseSSL),
	)
	return c, nil
}

// EnsureBucket creates the PGN bucket when it does not exist yet.
func (c *Client) EnsureBucket(ctx context.Context) error {
	exists, err := c.api.BucketExists(ctx, c.config.Bucket)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeBucketInitFailed, "checking bucket "+c.config.Bucket)
	}
	if exists {
		return nil
	}
	if err := c.api.MakeBucket(ctx, c.config.Bucket, minio.MakeBucketOptions{Region: c.config.Region}); err != nil {
		return errors.Wrap(err, errors.ErrCodeBucketInitFailed, "creating bucket "+c.config.Bucket)
	}
	c.logger.Info("bucket created", logging.String("bucket", c.config.Bucket))
	return nil
}

// Bucket returns the PGN bucket name.
func (c *Client) Bucket() string {
	return c.config.Bucket
}

// HealthCheck verifies the store answers and the PGN bucket exists.
func (c *Client) HealthCheck(ctx context.Context) error {
	start := time.Now()
	if _, err := c.api.ListBuckets(ctx); err != nil {
		return errors.Wrap(err, errors.ErrCodeObjectStoreFailed, "object store unreachable")
	}
	exists, err := c.api.BucketExists(ctx, c.config.Bucket)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeObjectStoreFailed, "checking bucket "+c.config.Bucket)
	}
	if !exists {
		return errors.Newf(errors.ErrCodeObjectStoreFailed, "bucket %s is missing", c.config.Bucket)
	}

	c.logger.Debug("object store health check passed",
		logging.Duration("latency", time.Since(start)))
	return nil
}

// Close logs the shutdown. The underlying HTTP client needs no teardown.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.logger.Info("object store client closed")
	})
	return nil
}
