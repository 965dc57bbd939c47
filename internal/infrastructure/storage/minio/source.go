// Package minio reads the knowledge documents from an S3-compatible bucket.
package minio

import (
	"context"
	"fmt"
	"io"
	"path"

	"github.com/minio/minio-go/v7"

	"github.com/turtacn/NeuroRisk-Intelligence/internal/infrastructure/source"
	"github.com/turtacn/NeuroRisk-Intelligence/pkg/errors"
)

// ObjectSource implements source.Source on top of a bucket. Both documents are
// read under the same prefix.
type ObjectSource struct {
	api    ObjectAPI
	bucket string
	prefix string

	profilesObject string
	catalogObject  string
}

var _ source.Source = (*ObjectSource)(nil)

func NewObjectSource(api ObjectAPI, cfg Config) *ObjectSource {
	applyDefaults(&cfg)
	profiles := cfg.ProfilesObject
	if profiles == "" {
		profiles = source.DefaultProfilesName
	}
	catalog := cfg.CatalogObject
	if catalog == "" {
		catalog = source.DefaultCatalogName
	}
	return &ObjectSource{
		api:            api,
		bucket:         cfg.Bucket,
		prefix:         cfg.Prefix,
		profilesObject: profiles,
		catalogObject:  catalog,
	}
}

func (s *ObjectSource) ProfilesKey() string { return s.key(s.profilesObject) }
func (s *ObjectSource) CatalogKey() string  { return s.key(s.catalogObject) }

func (s *ObjectSource) key(name string) string {
	if s.prefix == "" {
		return name
	}
	return path.Join(s.prefix, name)
}

func (s *ObjectSource) ReadProfiles(ctx context.Context) ([]byte, error) {
	return s.read(ctx, s.ProfilesKey())
}

func (s *ObjectSource) ReadCatalog(ctx context.Context) ([]byte, error) {
	return s.read(ctx, s.CatalogKey())
}

func (s *ObjectSource) Describe() string {
	if s.prefix == "" {
		return "s3://" + s.bucket
	}
	return "s3://" + s.bucket + "/" + s.prefix
}

// CheckBucket fails when the bucket is missing or unreachable.
func (s *ObjectSource) CheckBucket(ctx context.Context) error {
	ok, err := s.api.BucketExists(ctx, s.bucket)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeServiceUnavailable, "failed to reach minio")
	}
	if !ok {
		return errors.NotFound(fmt.Sprintf("bucket %s not found", s.bucket))
	}
	return nil
}

func (s *ObjectSource) read(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	obj, err := s.api.GetObject(ctx, s.bucket, key)
	if err != nil {
		return nil, s.readError(err, key)
	}
	defer obj.Close()

	// minio.Object defers request errors to the first Read.
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, s.readError(err, key)
	}
	return data, nil
}

func (s *ObjectSource) readError(err error, key string) error {
	appErr := errors.SourceLoad(err, fmt.Sprintf("read s3://%s/%s", s.bucket, key))
	if code := minio.ToErrorResponse(err).Code; code != "" {
		return appErr.WithDetail(code)
	}
	return appErr
}
