package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/dmitrijs2005/gophshare/internal/common"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// objectClient narrows *minio.Client to what MinioStorage needs. GetObject
// is folded into get so that a missing key is reported eagerly.
type objectClient interface {
	put(ctx context.Context, bucket, key string, data []byte) error
	get(ctx context.Context, bucket, key string) ([]byte, error)
	remove(ctx context.Context, bucket, key string) error
	ensureBucket(ctx context.Context, bucket, region string) error
}

type minioClient struct {
	cl *minio.Client
}

func (m minioClient) put(ctx context.Context, bucket, key string, data []byte) error {
	_, err := m.cl.PutObject(ctx, bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	return err
}

func (m minioClient) get(ctx context.Context, bucket, key string) ([]byte, error) {
	obj, err := m.cl.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()
	return io.ReadAll(obj)
}

func (m minioClient) remove(ctx context.Context, bucket, key string) error {
	return m.cl.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{})
}

func (m minioClient) ensureBucket(ctx context.Context, bucket, region string) error {
	ok, err := m.cl.BucketExists(ctx, bucket)
	if err != nil || ok {
		return err
	}
	return m.cl.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: region})
}

// MinioStorage stores blobs through minio-go.
type MinioStorage struct {
	client objectClient
	bucket string
	region string
}

func NewMinioStorage(cfg ObjectStoreConfig) (*MinioStorage, error) {
	endpoint, secure := minioEndpoint(cfg.Endpoint, cfg.UseSSL)
	cl, err := minio.New(endpoint, &minio.Options{
		Creds:        credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:       secure,
		Region:       cfg.Region,
		BucketLookup: minio.BucketLookupPath,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	return &MinioStorage{client: minioClient{cl: cl}, bucket: cfg.Bucket, region: cfg.Region}, nil
}

// minioEndpoint accepts either host:port or a URL; an https scheme forces TLS.
func minioEndpoint(raw string, useSSL bool) (string, bool) {
	if !strings.Contains(raw, "://") {
		return raw, useSSL
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw, useSSL
	}
	return u.Host, useSSL || u.Scheme == "https"
}

func isMinioNotFound(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NoSuchObject"
}

// EnsureBucket creates the bucket when it does not exist yet.
func (s *MinioStorage) EnsureBucket(ctx context.Context) error {
	if err := s.client.ensureBucket(ctx, s.bucket, s.region); err != nil {
		return fmt.Errorf("ensure bucket %q: %w", s.bucket, err)
	}
	return nil
}

func (s *MinioStorage) Save(ctx context.Context, data []byte, p string) error {
	if err := ValidateLocator(p); err != nil {
		return err
	}
	if err := s.client.put(ctx, s.bucket, p, data); err != nil {
		return fmt.Errorf("put object %q: %w", p, err)
	}
	return nil
}

func (s *MinioStorage) Read(ctx context.Context, p string) ([]byte, error) {
	if err := ValidateLocator(p); err != nil {
		return nil, err
	}
	data, err := s.client.get(ctx, s.bucket, p)
	if err != nil {
		if isMinioNotFound(err) {
			return nil, fmt.Errorf("blob %q: %w", p, common.ErrorNotFound)
		}
		return nil, fmt.Errorf("get object %q: %w", p, err)
	}
	return data, nil
}

func (s *MinioStorage) Delete(ctx context.Context, p string) error {
	if err := ValidateLocator(p); err != nil {
		return err
	}
	if err := s.client.remove(ctx, s.bucket, p); err != nil && !isMinioNotFound(err) {
		return fmt.Errorf("remove object %q: %w", p, err)
	}
	return nil
}
