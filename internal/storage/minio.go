package storage

import (
	"context"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type MinioOpts func(c *minioConfig)

type minioConfig struct {
	endpoint        string
	accessKey       string
	secretAccessKey string
	sessionToken    string
	region          string
	useSSL          bool
}

func newMinioConfig(opts ...MinioOpts) *minioConfig {
	cfg := &minioConfig{useSSL: false}
	for _, o := range opts {
		o(cfg)
	}
	return cfg
}

var _ ObjectStore = (*MinioStore)(nil)

// MinioStore talks to any S3-compatible endpoint, typically a local MinIO
// used for development runs.
type MinioStore struct {
	client *minio.Client
}

func NewMinioStore(opts ...MinioOpts) (*MinioStore, error) {
	cfg := newMinioConfig(opts...)

	client, err := minio.New(cfg.endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.accessKey, cfg.secretAccessKey, cfg.sessionToken),
		Secure:    cfg.useSSL,
		Region:    cfg.region,
		Transport: newTransport(),
	})
	if err != nil {
		return nil, err
	}
	return &MinioStore{client: client}, nil
}

func (s *MinioStore) GetObject(ctx context.Context, bucket, key string) ([]byte, error) {
	loc := Location{Bucket: bucket, Key: key}
	object, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, classifyMinio(loc, err)
	}
	defer object.Close()

	b, err := io.ReadAll(object)
	if err != nil {
		return nil, classifyMinio(loc, err)
	}
	return b, nil
}

func (s *MinioStore) PutObject(ctx context.Context, bucket, key string, body io.Reader, size int64) error {
	if _, err := s.client.PutObject(ctx, bucket, key, body, size, minio.PutObjectOptions{}); err != nil {
		return classifyMinio(Location{Bucket: bucket, Key: key}, err)
	}
	return nil
}

func (s *MinioStore) HeadObject(ctx context.Context, bucket, key string) error {
	if _, err := s.client.StatObject(ctx, bucket, key, minio.StatObjectOptions{}); err != nil {
		return classifyMinio(Location{Bucket: bucket, Key: key}, err)
	}
	return nil
}

func (s *MinioStore) HeadBucket(ctx context.Context, bucket string) error {
	loc := Location{Bucket: bucket}
	exists, err := s.client.BucketExists(ctx, bucket)
	if err != nil {
		return classifyMinio(loc, err)
	}
	if !exists {
		return NewErrNotFound(loc, minio.ErrorResponse{Code: "NoSuchBucket", StatusCode: http.StatusNotFound, BucketName: bucket})
	}
	return nil
}

func (s *MinioStore) ListObjects(ctx context.Context, bucket, prefix string) ([]string, error) {
	var keys []string
	for obj := range s.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, classifyMinio(Location{Bucket: bucket, Key: prefix}, obj.Err)
		}
		keys = append(keys, obj.Key)
	}
	return keys, nil
}

func WithEndpoint(endpoint string) MinioOpts {
	return func(c *minioConfig) {
		c.endpoint = endpoint
	}
}

func WithCredentials(accessKey, secretKey, sessionToken string) MinioOpts {
	return func(c *minioConfig) {
		c.accessKey = accessKey
		c.secretAccessKey = secretKey
		c.sessionToken = sessionToken
	}
}

func WithRegion(region string) MinioOpts {
	return func(c *minioConfig) {
		c.region = region
	}
}

func WithSSL(useSSL bool) MinioOpts {
	return func(c *minioConfig) {
		c.useSSL = useSSL
	}
}

func newTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}
