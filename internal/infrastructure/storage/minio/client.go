package minio

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/turtacn/NeuroRisk-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/NeuroRisk-Intelligence/pkg/errors"
)

// ObjectAPI is the subset of the MinIO client used to read knowledge documents.
type ObjectAPI interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	GetObject(ctx context.Context, bucketName, objectName string) (io.ReadCloser, error)
}

// Config describes where the knowledge documents live in an S3-compatible store.
type Config struct {
	Endpoint        string        `mapstructure:"endpoint"`
	AccessKeyID     string        `mapstructure:"access_key_id"`
	SecretAccessKey string        `mapstructure:"secret_access_key"`
	UseSSL          bool          `mapstructure:"use_ssl"`
	Region          string        `mapstructure:"region"`
	Bucket          string        `mapstructure:"bucket"`
	Prefix          string        `mapstructure:"prefix"`
	ProfilesObject  string        `mapstructure:"profiles_object"`
	CatalogObject   string        `mapstructure:"catalog_object"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
}

const (
	defaultRegion         = "us-east-1"
	defaultBucket         = "neurorisk-knowledge"
	defaultConnectTimeout = 10 * time.Second
)

func applyDefaults(cfg *Config) {
	if cfg.Region == "" {
		cfg.Region = defaultRegion
	}
	if cfg.Bucket == "" {
		cfg.Bucket = defaultBucket
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}
	cfg.Prefix = strings.Trim(cfg.Prefix, "/")
}

// clientAdapter narrows *minio.Client to ObjectAPI.
type clientAdapter struct {
	client *minio.Client
}

func (a clientAdapter) BucketExists(ctx context.Context, bucketName string) (bool, error) {
	return a.client.BucketExists(ctx, bucketName)
}

func (a clientAdapter) GetObject(ctx context.Context, bucketName, objectName string) (io.ReadCloser, error) {
	return a.client.GetObject(ctx, bucketName, objectName, minio.GetObjectOptions{})
}

// Connect creates a MinIO client and checks that the configured bucket exists.
func Connect(ctx context.Context, cfg Config, log logging.Logger) (*ObjectSource, error) {
	applyDefaults(&cfg)
	if log == nil {
		log = logging.NewNopLogger()
	}
	if cfg.Endpoint == "" {
		return nil, errors.InvalidConfiguration("minio endpoint is required")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to create minio client")
	}

	src := NewObjectSource(clientAdapter{client: client}, cfg)
	checkCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()
	if err := src.CheckBucket(checkCtx); err != nil {
		return nil, err
	}

	log.Info("MinIO knowledge source connected",
		logging.String("endpoint", cfg.Endpoint),
		logging.Bool("ssl", cfg.UseSSL),
		logging.String("bucket", cfg.Bucket))
	return src, nil
}
