// Package miniostore implements blobstore.BlobStore on
// github.com/minio/minio-go/v7, grounded on the AgileExecutives modules'
// minio-go usage (SPEC_FULL.md §4.16).
package miniostore

import (
	"bytes"
	"context"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/einvoice-platform/pipeline/internal/blobstore"
	"github.com/einvoice-platform/pipeline/internal/pipelineerr"
)

// Store addresses a single bucket through a minio-go client.
type Store struct {
	client *minio.Client
	bucket string
}

// Config names the minio-go dial parameters.
type Config struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	Bucket          string
}

// Open dials the endpoint described by cfg.
func Open(cfg Config) (*Store, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, pipelineerr.Transient("miniostore.Open", err)
	}
	return &Store{client: client, bucket: cfg.Bucket}, nil
}

// Get downloads the object at uri (an object key within the configured
// bucket).
func (s *Store) Get(ctx context.Context, uri string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, uri, minio.GetObjectOptions{})
	if err != nil {
		return nil, pipelineerr.Transient("miniostore.Get", err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, blobstore.ErrNotFound
		}
		return nil, pipelineerr.Transient("miniostore.Get.read", err)
	}
	return data, nil
}

// Put uploads data under uri. A prior identical upload is tolerated as a
// no-op success per §6 — minio-go's PutObject already overwrites
// idempotently, so no explicit existence check is required.
func (s *Store) Put(ctx context.Context, uri string, data []byte) error {
	_, err := s.client.PutObject(ctx, s.bucket, uri, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	if err != nil {
		return pipelineerr.Transient("miniostore.Put", err)
	}
	return nil
}
